// internal/rules/compile.go
package rules

import (
	"fmt"
	"slices"

	"github.com/solatis/commissar/internal/types"
)

/*
 * Rule compilation and validation.
 *
 * Compiles types.RuleDefinition into a Rule with built condition trees and
 * precompiled regexps. Every configuration error is caught here so a
 * malformed definition never reaches a rule book.
 *
 * Compilation workflow:
 *   1. Validate targets and events are non-empty
 *   2. Fold gate terms left to right (optional)
 *   3. Build the test condition for the directive kind
 *   4. Pick the active field that will carry the rule's error
 *
 * Term order is preserved exactly as declared. Reordering would change the
 * meaning of a precedence-free and/or chain.
 */

// Compile validates and builds a rule from its definition.
func Compile(def *types.RuleDefinition) (*Rule, error) {
	if len(def.Targets) == 0 {
		return nil, fmt.Errorf("rule %q: %w", def.Name, types.ErrNoTargets)
	}
	if len(def.Events) == 0 {
		return nil, fmt.Errorf("rule %q: %w", def.Name, types.ErrNoEvents)
	}

	rule := &Rule{
		Name:        def.Name,
		Source:      def.Source,
		Message:     def.Message,
		Targets:     slices.Clone(def.Targets),
		Events:      slices.Clone(def.Events),
		ChildField:  def.ChildField,
		Outcomes:    slices.Clone(def.Outcomes),
		AbortOnFail: def.AbortOnFail,
	}

	if def.ChildField != "" {
		if _, err := SplitPath(def.ChildField); err != nil {
			return nil, fmt.Errorf("rule %q: child field: %w", def.Name, err)
		}
	}

	if len(def.Gate) > 0 {
		gate, err := compileChain(def.Gate)
		if err != nil {
			return nil, fmt.Errorf("rule %q: gate: %w", def.Name, err)
		}
		rule.Gate = gate
	}

	test, field, err := compileTest(def.Test)
	if err != nil {
		return nil, fmt.Errorf("rule %q: test: %w", def.Name, err)
	}
	rule.Test = test
	rule.ActiveField = field
	if def.ChildField != "" {
		rule.ActiveField = def.ChildField
	}

	return rule, nil
}

// compileTest builds the test condition and reports its active field.
func compileTest(t types.Test) (Condition, string, error) {
	switch t.Kind {
	case types.TestCompare:
		cond, err := compileChain(t.Terms)
		if err != nil {
			return nil, "", err
		}
		return cond, t.Terms[0].Field, nil
	case types.TestRequired:
		p, err := RequiredPredicate(t.Field)
		return p, t.Field, err
	case types.TestUnique:
		p, err := UniquePredicate(t.Fields...)
		return p, "", err
	case types.TestUnchanged:
		p, err := UnchangedPredicate(t.Field)
		return p, t.Field, err
	default:
		return nil, "", types.ErrMissingTest
	}
}

// compileChain folds terms left to right.
func compileChain(terms []types.Term) (Condition, error) {
	if len(terms) == 0 {
		return nil, types.ErrEmptyCondition
	}
	var b Builder
	for i, term := range terms {
		p, err := compileTerm(term)
		if err != nil {
			return nil, fmt.Errorf("term %d: %w", i+1, err)
		}
		b.Join(term.Combinator, p)
	}
	return b.Build()
}

// compileTerm builds a single comparison, pattern or length predicate.
func compileTerm(term types.Term) (*Predicate, error) {
	op, ok := ParseOperator(term.Operator)
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidOperator, term.Operator)
	}
	return NewPredicate(term.Field, op, term.Value)
}
