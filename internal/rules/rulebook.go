// internal/rules/rulebook.go
package rules

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/solatis/commissar/internal/entity"
	"github.com/solatis/commissar/internal/types"
)

// RuleBook is the ordered registry of compiled rules.
//
// Rules are registered during a single-threaded setup phase and the book is
// then sealed. A sealed book is read-only and safe for concurrent
// evaluation; each evaluation allocates its own ResultCard.
type RuleBook struct {
	rules  []*Rule
	names  map[string]struct{}
	sealed atomic.Bool
}

// NewRuleBook creates an empty, unsealed book.
func NewRuleBook() *RuleBook {
	return &RuleBook{names: make(map[string]struct{})}
}

// Register appends rule. Named rules must be unique within the book.
func (b *RuleBook) Register(rule *Rule) error {
	if b.sealed.Load() {
		return types.ErrRuleBookSealed
	}
	if rule.Name != "" {
		if _, dup := b.names[rule.Name]; dup {
			return fmt.Errorf("%w: %q", types.ErrDuplicateRule, rule.Name)
		}
		b.names[rule.Name] = struct{}{}
	}
	b.rules = append(b.rules, rule)
	return nil
}

// RegisterDefinition compiles def and registers the result.
// A definition that fails to compile is not registered.
func (b *RuleBook) RegisterDefinition(def *types.RuleDefinition) (*Rule, error) {
	rule, err := Compile(def)
	if err != nil {
		return nil, err
	}
	if err := b.Register(rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// Seal ends the registration phase.
func (b *RuleBook) Seal() {
	b.sealed.Store(true)
}

// Sealed reports whether registration has ended.
func (b *RuleBook) Sealed() bool {
	return b.sealed.Load()
}

// Len returns the number of registered rules.
func (b *RuleBook) Len() int {
	return len(b.rules)
}

// Rules returns the registered rules in registration order.
func (b *RuleBook) Rules() []*Rule {
	return append([]*Rule(nil), b.rules...)
}

// ApplicableRules lists the rules that would run for e on event.
func (b *RuleBook) ApplicableRules(ctx context.Context, e entity.Entity, event string) []*Rule {
	var out []*Rule
	for _, r := range b.rules {
		if r.Applicable(ctx, e, event) {
			out = append(out, r)
		}
	}
	return out
}

// EvaluateApplicableRules runs every applicable rule in registration order
// and returns the aggregated card. Evaluation never stops early, so the
// card carries the full picture even when an abort was raised.
func (b *RuleBook) EvaluateApplicableRules(ctx context.Context, e entity.Entity, event string) *ResultCard {
	card := NewResultCard()
	for _, r := range b.rules {
		if !r.Applicable(ctx, e, event) {
			continue
		}
		card.RegisterStatuses(r.Outcomes...)
		r.Evaluate(ctx, e, card)
	}
	return card
}
