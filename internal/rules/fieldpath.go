// internal/rules/fieldpath.go
package rules

import (
	"strings"

	"github.com/solatis/commissar/internal/entity"
	"github.com/solatis/commissar/internal/types"
)

/*
 * Field path resolution against entities.
 *
 * A field name may be dotted ("asset.title") to reach through a nested
 * entity or a map[string]any. Each segment is read with Entity.Field or a map
 * lookup; anything else in the middle of a path ends resolution.
 *
 * Missing segments surface as ErrFieldNotFound. Predicates translate that
 * into "absent", which fails every comparison and the required check.
 */

// ResolveResult contains the resolved value.
type ResolveResult struct {
	Value any  // resolved value (nil if not found)
	Found bool // true if every segment resolved
}

// SplitPath breaks a dotted field name into segments.
// Returns ErrPathTooDeep if the path exceeds MaxPathDepth and
// ErrFieldNotFound for empty segments.
func SplitPath(field string) ([]string, error) {
	segs := strings.Split(field, ".")
	if len(segs) > types.MaxPathDepth {
		return nil, types.ErrPathTooDeep
	}
	for _, s := range segs {
		if s == "" {
			return nil, types.ErrFieldNotFound
		}
	}
	return segs, nil
}

// Resolve reads the dotted field from e.
func Resolve(e entity.Entity, field string) (ResolveResult, error) {
	path, err := SplitPath(field)
	if err != nil {
		return ResolveResult{}, err
	}
	return resolveRecursive(path, e)
}

func resolveRecursive(path []string, current any) (ResolveResult, error) {
	if len(path) == 0 {
		return ResolveResult{Value: current, Found: true}, nil
	}

	seg := path[0]
	remaining := path[1:]

	switch v := current.(type) {
	case entity.Entity:
		val, ok := v.Field(seg)
		if !ok {
			return ResolveResult{}, types.ErrFieldNotFound
		}
		return resolveRecursive(remaining, val)

	case map[string]any:
		val, ok := v[seg]
		if !ok {
			return ResolveResult{}, types.ErrFieldNotFound
		}
		return resolveRecursive(remaining, val)

	default:
		// Null or scalar value but path continues
		return ResolveResult{}, types.ErrFieldNotFound
	}
}

// fieldValue resolves field and flattens the error into a presence flag.
func fieldValue(e entity.Entity, field string) (any, bool) {
	res, err := Resolve(e, field)
	if err != nil || !res.Found {
		return nil, false
	}
	return res.Value, true
}
