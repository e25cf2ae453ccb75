// internal/rules/operators.go
package rules

import (
	"cmp"
	"reflect"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/solatis/commissar/internal/types"
)

/*
 * Operator comparison logic.
 *
 * Comparison operators (equal_to, not_equal_to, greater_than,
 * greater_or_equal, less_than, less_or_equal) coerce the field value into the
 * literal's declared kind first. A null value or a kind mismatch makes every
 * operator return false, including not_equal_to.
 *
 * Field-shape operators:
 *   - matching_pattern: unanchored regexp search over the value's text form
 *   - no_longer_than: length <= n for strings (runes) and collections
 *   - required: present, non-nil and non-empty
 *
 * Lookup operators (unique, unchanged) live in predicates.go.
 */

// Operator identifies a predicate.
type Operator int

const (
	OpUnspecified Operator = iota
	OpEqualTo
	OpNotEqualTo
	OpGreaterThan
	OpGreaterOrEqual
	OpLessThan
	OpLessOrEqual
	OpMatchingPattern
	OpNoLongerThan
	OpRequired
	OpUnique
	OpUnchanged
)

var operatorNames = map[Operator]string{
	OpEqualTo:         "equal_to",
	OpNotEqualTo:      "not_equal_to",
	OpGreaterThan:     "greater_than",
	OpGreaterOrEqual:  "greater_or_equal",
	OpLessThan:        "less_than",
	OpLessOrEqual:     "less_or_equal",
	OpMatchingPattern: "matching_pattern",
	OpNoLongerThan:    "no_longer_than",
	OpRequired:        "required",
	OpUnique:          "unique",
	OpUnchanged:       "unchanged",
}

// String returns the DSL name of the operator.
func (op Operator) String() string {
	if name, ok := operatorNames[op]; ok {
		return name
	}
	return "unspecified"
}

// ParseOperator maps a DSL operator name to its Operator.
func ParseOperator(name string) (Operator, bool) {
	for op, n := range operatorNames {
		if n == name {
			return op, true
		}
	}
	return OpUnspecified, false
}

// isComparison reports whether op takes a typed literal.
func (op Operator) isComparison() bool {
	switch op {
	case OpEqualTo, OpNotEqualTo, OpGreaterThan, OpGreaterOrEqual, OpLessThan, OpLessOrEqual:
		return true
	default:
		return false
	}
}

// Compare applies a comparison operator to value against lit.
// Non-comparison operators return false.
func Compare(op Operator, value any, lit types.Literal) bool {
	coerced, err := Coerce(value, lit.Kind)
	if err != nil || coerced.IsNull {
		return false
	}
	c, ok := compareTo(coerced.Value, lit)
	if !ok {
		return false
	}
	switch op {
	case OpEqualTo:
		return c == 0
	case OpNotEqualTo:
		return c != 0
	case OpGreaterThan:
		return c > 0
	case OpGreaterOrEqual:
		return c >= 0
	case OpLessThan:
		return c < 0
	case OpLessOrEqual:
		return c <= 0
	default:
		return false
	}
}

// compareTo performs three-way comparison of a coerced value against lit.
func compareTo(value any, lit types.Literal) (int, bool) {
	switch lit.Kind {
	case types.LiteralString:
		s, ok := value.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(s, lit.String), true
	case types.LiteralNumber:
		f, ok := value.(float64)
		if !ok {
			return 0, false
		}
		return cmp.Compare(f, lit.Number), true
	case types.LiteralDate:
		t, ok := value.(time.Time)
		if !ok {
			return 0, false
		}
		return t.Compare(lit.Date), true
	default:
		return 0, false
	}
}

// MatchPattern reports whether the text form of value contains a match for re.
func MatchPattern(value any, re *regexp.Regexp) bool {
	if re == nil {
		return false
	}
	s, ok := stringForm(value)
	if !ok {
		return false
	}
	return re.MatchString(s)
}

// NoLongerThan reports whether value has length <= n.
// Strings count runes; slices, arrays and maps count elements.
// Null and length-less values return false.
func NoLongerThan(value any, n int) bool {
	l, ok := length(value)
	if !ok {
		return false
	}
	return l <= n
}

// Required reports whether value is present, non-nil and non-empty.
func Required(value any, present bool) bool {
	if !present || value == nil {
		return false
	}
	return !isEmpty(value)
}

func length(value any) (int, bool) {
	switch v := value.(type) {
	case nil:
		return 0, false
	case string:
		return utf8.RuneCountInString(v), true
	case []byte:
		return utf8.RuneCount(v), true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len(), true
	default:
		return 0, false
	}
}

// isEmpty treats "", empty collections and nil pointers as empty.
func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

// valuesEqual compares two field values of unknown type.
// Numbers compare by value across widths, times by instant.
func valuesEqual(a, b any) bool {
	if fa, ok := toFloat64(a); ok {
		fb, ok := toFloat64(b)
		return ok && fa == fb
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}
