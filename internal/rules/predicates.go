// internal/rules/predicates.go
package rules

import (
	"context"
	"errors"

	"github.com/solatis/commissar/internal/entity"
	"github.com/solatis/commissar/internal/types"
)

/*
 * Lookup predicates.
 *
 * unique and unchanged consult persisted state through the entity's optional
 * lookup capabilities. A missing capability or a failing lookup makes the
 * predicate fail; only "the persisted copy does not exist" is treated as a
 * pass for unchanged, since there is nothing to have changed from.
 */

// Unique reports whether no other persisted entity shares the values of all
// fields with e. A single match carrying e's own identity still passes.
func Unique(ctx context.Context, e entity.Entity, fields []string) bool {
	finder, ok := e.(entity.CriteriaFinder)
	if !ok || len(fields) == 0 {
		return false
	}

	criteria := make([]entity.Criterion, 0, len(fields))
	for _, f := range fields {
		v, _ := fieldValue(e, f)
		criteria = append(criteria, entity.Criterion{Field: f, Value: v})
	}

	matches, err := finder.FindByCriteria(ctx, criteria)
	if err != nil {
		return false
	}
	switch {
	case len(matches) == 0:
		return true
	case len(matches) > 1:
		return false
	default:
		return matches[0].ID() != "" && matches[0].ID() == e.ID()
	}
}

// Unchanged reports whether field still holds its persisted value.
// New entities, entities whose persisted copy is gone and persisted copies
// with a null or empty field all pass.
func Unchanged(ctx context.Context, e entity.Entity, field string) bool {
	if e.IsNew() {
		return true
	}
	finder, ok := e.(entity.IdentityFinder)
	if !ok {
		return false
	}

	persisted, err := finder.FindByID(ctx, e.ID())
	if err != nil {
		return errors.Is(err, types.ErrRecordNotFound)
	}
	if persisted == nil {
		return true
	}

	before, found := fieldValue(persisted, field)
	if !found || before == nil || isEmpty(before) {
		return true
	}
	current, _ := fieldValue(e, field)
	return valuesEqual(before, current)
}
