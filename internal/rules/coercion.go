// internal/rules/coercion.go
package rules

import (
	"strconv"
	"time"

	"github.com/solatis/commissar/internal/types"
)

/*
 * Type coercion for comparisons.
 *
 * A literal declares one of three kinds (string, number, date). The field
 * value is converted into that kind or rejected; no cross-kind conversion
 * happens, so a numeric field never equals the string literal "10" and a
 * string field "10" never equals the number 10.
 *
 * Null values are reported separately from coercion failures so callers can
 * tell "absent" from "wrong type". Both end as a failed predicate.
 *
 * Accepted runtime types:
 *   - string:  string, []byte
 *   - number:  all int, uint and float widths
 *   - date:    time.Time, *time.Time
 */

// CoercionResult holds the coerced value or indicates null.
type CoercionResult struct {
	Value  any  // string, float64 or time.Time (valid only if !IsNull)
	IsNull bool // true if input was nil
}

// Coerce converts value to the given literal kind.
// Returns CoercionResult with IsNull=true for nil input.
// Returns ErrCoercionFailed when the runtime type does not belong to kind.
func Coerce(value any, kind types.LiteralKind) (CoercionResult, error) {
	if value == nil {
		return CoercionResult{IsNull: true}, nil
	}

	switch kind {
	case types.LiteralString:
		return coerceString(value)
	case types.LiteralNumber:
		return coerceNumber(value)
	case types.LiteralDate:
		return coerceDate(value)
	default:
		return CoercionResult{}, types.ErrCoercionFailed
	}
}

func coerceString(value any) (CoercionResult, error) {
	switch v := value.(type) {
	case string:
		return CoercionResult{Value: v}, nil
	case []byte:
		return CoercionResult{Value: string(v)}, nil
	default:
		return CoercionResult{}, types.ErrCoercionFailed
	}
}

// coerceNumber widens every numeric type to float64. Strings are rejected
// even when they look numeric.
func coerceNumber(value any) (CoercionResult, error) {
	if f, ok := toFloat64(value); ok {
		return CoercionResult{Value: f}, nil
	}
	return CoercionResult{}, types.ErrCoercionFailed
}

func coerceDate(value any) (CoercionResult, error) {
	switch v := value.(type) {
	case time.Time:
		return CoercionResult{Value: v}, nil
	case *time.Time:
		if v == nil {
			return CoercionResult{IsNull: true}, nil
		}
		return CoercionResult{Value: *v}, nil
	default:
		return CoercionResult{}, types.ErrCoercionFailed
	}
}

// toFloat64 converts value to float64 if it's a numeric type.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// stringForm renders a scalar for pattern matching.
// Returns false for nil and for values with no natural text form.
func stringForm(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case []byte:
		return string(v), true
	case bool:
		return strconv.FormatBool(v), true
	case time.Time:
		return v.Format(time.RFC3339), true
	}
	if f, ok := toFloat64(value); ok {
		return strconv.FormatFloat(f, 'f', -1, 64), true
	}
	return "", false
}
