// internal/rules/rule.go
package rules

import (
	"context"
	"reflect"
	"slices"

	"github.com/solatis/commissar/internal/entity"
)

// Rule is a compiled, immutable unit of business-rule evaluation.
//
// Evaluation results are returned as an Outcome rather than stored on the
// rule, so one Rule value is shared by concurrent evaluations.
type Rule struct {
	Name        string
	Source      string // failure payload
	Message     string // human-readable failure message
	Targets     []string
	Events      []string
	Gate        Condition // nil means no gate
	Test        Condition
	ChildField  string // when set, Test applies to every element of this collection
	Outcomes    []string
	AbortOnFail bool
	ActiveField string // field that receives the error, "" for whole-entity
}

// Outcome is the result of one rule evaluation.
type Outcome struct {
	Rule    *Rule
	Passed  bool
	Failure string // Rule.Source when !Passed
}

// Applicable reports whether the rule should run for e on event.
func (r *Rule) Applicable(ctx context.Context, e entity.Entity, event string) bool {
	if !slices.Contains(r.Events, event) {
		return false
	}
	if !slices.Contains(r.Targets, e.TypeName()) {
		return false
	}
	if r.Gate == nil {
		return true
	}
	return Evaluate(ctx, r.Gate, e)
}

// PassesGate evaluates only the gate condition. Rules without a gate pass.
func (r *Rule) PassesGate(ctx context.Context, e entity.Entity) bool {
	return r.Gate == nil || Evaluate(ctx, r.Gate, e)
}

// Check computes pass/fail for e without recording it anywhere.
func (r *Rule) Check(ctx context.Context, e entity.Entity) bool {
	if r.Test == nil {
		return false
	}
	if r.ChildField == "" {
		return Evaluate(ctx, r.Test, e)
	}

	children, ok := r.children(e)
	if !ok {
		return false
	}
	for _, child := range children {
		if !Evaluate(ctx, r.Test, child) {
			return false
		}
	}
	return true
}

// Evaluate checks e and registers the outcome into card.
func (r *Rule) Evaluate(ctx context.Context, e entity.Entity, card *ResultCard) Outcome {
	out := Outcome{Rule: r, Passed: r.Check(ctx, e)}
	if out.Passed {
		card.RegisterPass(r)
	} else {
		out.Failure = r.Source
		card.RegisterFailure(r, out.Failure, r.AbortOnFail)
	}
	return out
}

// children returns the child collection. An absent or nil collection is
// empty; a value that is not a collection of entities is rejected.
func (r *Rule) children(e entity.Entity) ([]entity.Entity, bool) {
	value, present := fieldValue(e, r.ChildField)
	if !present || value == nil {
		return nil, true
	}
	if kids, ok := value.([]entity.Entity); ok {
		return kids, true
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	kids := make([]entity.Entity, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		kid, ok := rv.Index(i).Interface().(entity.Entity)
		if !ok {
			return nil, false
		}
		kids = append(kids, kid)
	}
	return kids, true
}

// Field returns the field that should carry this rule's error.
func (r *Rule) Field() string {
	return r.ActiveField
}

// ErrorMessage returns the human-readable failure message.
func (r *Rule) ErrorMessage() string {
	if r.Message != "" {
		return r.Message
	}
	if r.Name != "" {
		return r.Name + " failed"
	}
	return r.Source
}
