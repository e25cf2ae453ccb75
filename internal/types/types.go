// Package types provides domain models shared across Commissar components.
//
// Wire-agnostic design: rule definitions live here in plain Go form so the
// DSL parser, the YAML loader and the gRPC layer can all produce them without
// depending on the evaluator. Compilation into evaluable rules happens in
// internal/rules.
package types

import (
	"fmt"
	"strconv"
	"time"
)

// RecordID identifies a persisted entity.
// Empty until the entity has been saved at least once.
type RecordID string

// LiteralKind is the declared type of a comparison literal.
type LiteralKind int

const (
	LiteralString LiteralKind = iota
	LiteralNumber
	LiteralDate
)

// String returns the DSL name of the kind.
func (k LiteralKind) String() string {
	switch k {
	case LiteralString:
		return "string"
	case LiteralNumber:
		return "number"
	case LiteralDate:
		return "date"
	default:
		return "unknown"
	}
}

// Literal is a typed constant on the right-hand side of a comparison.
// Only the field matching Kind is meaningful.
type Literal struct {
	Kind   LiteralKind
	String string
	Number float64
	Date   time.Time
}

// StringLiteral returns a string-typed literal.
func StringLiteral(s string) Literal {
	return Literal{Kind: LiteralString, String: s}
}

// NumberLiteral returns a number-typed literal.
func NumberLiteral(n float64) Literal {
	return Literal{Kind: LiteralNumber, Number: n}
}

// DateLiteral returns a date-typed literal.
func DateLiteral(t time.Time) Literal {
	return Literal{Kind: LiteralDate, Date: t}
}

// Format renders the literal the way the DSL would accept it back.
func (l Literal) Format() string {
	switch l.Kind {
	case LiteralNumber:
		return strconv.FormatFloat(l.Number, 'f', -1, 64)
	case LiteralDate:
		return l.Date.Format(time.RFC3339)
	default:
		return strconv.Quote(l.String)
	}
}

// GoString implements fmt.GoStringer for readable test failures.
func (l Literal) GoString() string {
	return fmt.Sprintf("%s(%s)", l.Kind, l.Format())
}

// Resource limits enforced at compile and resolution time.
const (
	// MaxPathDepth bounds dotted field paths such as "asset.product.title".
	MaxPathDepth = 8

	// MaxUniqueFields bounds the criteria list of a uniqueness check.
	MaxUniqueFields = 16
)
