// internal/rules/condition.go
package rules

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/solatis/commissar/internal/entity"
	"github.com/solatis/commissar/internal/types"
)

/*
 * Condition expression tree.
 *
 * A Condition is either a Predicate (one field test) or a Chain joining two
 * conditions with and/or. Chains are built strictly left to right with no
 * precedence: "A and B or C" is ((A and B) or C).
 *
 * Conditions are immutable once built and hold no per-evaluation state, so a
 * single tree is evaluated concurrently against many entities.
 */

// Condition is a node of the expression tree: *Predicate or *Chain.
type Condition interface {
	fmt.Stringer
	condition()
}

// Predicate is a leaf condition over one field (or several, for unique).
type Predicate struct {
	Op      Operator
	Field   string
	Fields  []string      // unique only
	Literal types.Literal // comparison operators only
	Limit   int           // no_longer_than only
	pattern *regexp.Regexp
}

// Chain is an internal node combining Left and Right.
type Chain struct {
	Left       Condition
	Combinator types.Combinator
	Right      Condition
}

func (*Predicate) condition() {}
func (*Chain) condition()     {}

// String renders the predicate in DSL form.
func (p *Predicate) String() string {
	switch p.Op {
	case OpRequired:
		return "has_required " + p.Field
	case OpUnique:
		return "has_unique " + strings.Join(p.Fields, ", ")
	case OpUnchanged:
		return "has_not_changed " + p.Field
	case OpMatchingPattern:
		return fmt.Sprintf("%s %s %s", p.Field, p.Op, strconv.Quote(p.Literal.String))
	case OpNoLongerThan:
		return fmt.Sprintf("%s %s %d", p.Field, p.Op, p.Limit)
	default:
		return fmt.Sprintf("%s %s %s", p.Field, p.Op, p.Literal.Format())
	}
}

// String renders the chain with explicit grouping.
func (c *Chain) String() string {
	return fmt.Sprintf("(%s %s %s)", c.Left, c.Combinator, c.Right)
}

// NewComparison builds a typed comparison predicate.
func NewComparison(field string, op Operator, lit types.Literal) (*Predicate, error) {
	if err := checkField(field); err != nil {
		return nil, err
	}
	if !op.isComparison() {
		return nil, fmt.Errorf("%w: %s takes no literal", types.ErrInvalidOperator, op)
	}
	return &Predicate{Op: op, Field: field, Literal: lit}, nil
}

// MatchingPattern builds an unanchored regexp predicate.
func MatchingPattern(field, pattern string) (*Predicate, error) {
	if err := checkField(field); err != nil {
		return nil, err
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidPattern, err)
	}
	return &Predicate{Op: OpMatchingPattern, Field: field, Literal: types.StringLiteral(pattern), pattern: re}, nil
}

// NoLongerThanPredicate builds a length bound predicate. n must be >= 0.
func NoLongerThanPredicate(field string, n int) (*Predicate, error) {
	if err := checkField(field); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: length bound %d is negative", types.ErrInvalidLiteral, n)
	}
	return &Predicate{Op: OpNoLongerThan, Field: field, Limit: n, Literal: types.NumberLiteral(float64(n))}, nil
}

// RequiredPredicate builds a presence predicate.
func RequiredPredicate(field string) (*Predicate, error) {
	if err := checkField(field); err != nil {
		return nil, err
	}
	return &Predicate{Op: OpRequired, Field: field}, nil
}

// UniquePredicate builds a uniqueness predicate over fields.
func UniquePredicate(fields ...string) (*Predicate, error) {
	if len(fields) == 0 {
		return nil, types.ErrMissingTestField
	}
	if len(fields) > types.MaxUniqueFields {
		return nil, types.ErrTooManyUniqueFields
	}
	for _, f := range fields {
		if err := checkField(f); err != nil {
			return nil, err
		}
	}
	return &Predicate{Op: OpUnique, Fields: append([]string(nil), fields...)}, nil
}

// UnchangedPredicate builds a "has not changed since persisted" predicate.
func UnchangedPredicate(field string) (*Predicate, error) {
	if err := checkField(field); err != nil {
		return nil, err
	}
	return &Predicate{Op: OpUnchanged, Field: field}, nil
}

// NewPredicate builds a single-field predicate from a DSL operator and literal.
func NewPredicate(field string, op Operator, lit types.Literal) (*Predicate, error) {
	switch {
	case op.isComparison():
		return NewComparison(field, op, lit)
	case op == OpMatchingPattern:
		if lit.Kind != types.LiteralString {
			return nil, fmt.Errorf("%w: %s needs a string pattern", types.ErrInvalidLiteral, op)
		}
		return MatchingPattern(field, lit.String)
	case op == OpNoLongerThan:
		if lit.Kind != types.LiteralNumber || lit.Number != math.Trunc(lit.Number) {
			return nil, fmt.Errorf("%w: %s needs a whole number", types.ErrInvalidLiteral, op)
		}
		return NoLongerThanPredicate(field, int(lit.Number))
	default:
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidOperator, op)
	}
}

func checkField(field string) error {
	if field == "" {
		return types.ErrMissingTestField
	}
	_, err := SplitPath(field)
	return err
}

// Builder folds predicates into a left-to-right chain.
// The first error sticks; later calls are ignored.
type Builder struct {
	cond Condition
	err  error
}

// Term starts the chain. Calling it on a non-empty chain is an error.
func (b *Builder) Term(c Condition) *Builder {
	if b.err != nil {
		return b
	}
	if b.cond != nil {
		b.err = types.ErrMissingCombinator
		return b
	}
	b.cond = c
	return b
}

// And joins c to everything built so far.
func (b *Builder) And(c Condition) *Builder {
	return b.join(types.CombinatorAnd, c)
}

// Or joins c to everything built so far.
func (b *Builder) Or(c Condition) *Builder {
	return b.join(types.CombinatorOr, c)
}

// Join dispatches on comb; CombinatorNone behaves like Term.
func (b *Builder) Join(comb types.Combinator, c Condition) *Builder {
	if comb == types.CombinatorNone {
		return b.Term(c)
	}
	return b.join(comb, c)
}

func (b *Builder) join(comb types.Combinator, c Condition) *Builder {
	if b.err != nil {
		return b
	}
	if b.cond == nil {
		b.err = fmt.Errorf("%w: leading %s", types.ErrDanglingCombinator, comb)
		return b
	}
	b.cond = &Chain{Left: b.cond, Combinator: comb, Right: c}
	return b
}

// Build returns the folded condition.
func (b *Builder) Build() (Condition, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.cond == nil {
		return nil, types.ErrEmptyCondition
	}
	return b.cond, nil
}

// Evaluate interprets c against e. A nil condition is false.
func Evaluate(ctx context.Context, c Condition, e entity.Entity) bool {
	switch n := c.(type) {
	case *Chain:
		left := Evaluate(ctx, n.Left, e)
		switch n.Combinator {
		case types.CombinatorAnd:
			return left && Evaluate(ctx, n.Right, e)
		case types.CombinatorOr:
			return left || Evaluate(ctx, n.Right, e)
		default:
			return false
		}
	case *Predicate:
		return evaluatePredicate(ctx, n, e)
	default:
		return false
	}
}

func evaluatePredicate(ctx context.Context, p *Predicate, e entity.Entity) bool {
	switch p.Op {
	case OpUnique:
		return Unique(ctx, e, p.Fields)
	case OpUnchanged:
		return Unchanged(ctx, e, p.Field)
	}

	value, present := fieldValue(e, p.Field)
	switch p.Op {
	case OpRequired:
		return Required(value, present)
	case OpMatchingPattern:
		return present && MatchPattern(value, p.pattern)
	case OpNoLongerThan:
		return present && NoLongerThan(value, p.Limit)
	default:
		return present && Compare(p.Op, value, p.Literal)
	}
}
