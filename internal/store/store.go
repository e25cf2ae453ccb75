// Package store persists records and answers the lookups rule predicates
// need.
//
// Two implementations share one contract: MemoryStore for tests and
// single-process use, SQLStore over SQLite or PostgreSQL. Both attach
// themselves to every record they save or return, so has_unique and
// has_not_changed work against what is actually stored.
//
// Records read with FindByID come back with their child collections loaded
// per the Schema's associations. FindByCriteria returns flat records.
package store

import (
	"context"
	"fmt"

	"github.com/solatis/commissar/internal/entity"
	"github.com/solatis/commissar/internal/types"
)

// Store is a Repository that can also persist records.
type Store interface {
	entity.Repository
	// Save inserts or updates rec and the child collections named by the
	// schema, assigning identities to new records.
	Save(ctx context.Context, rec *entity.Record) error
}

// loadChildren fills rec's associated collections from repo.
func loadChildren(ctx context.Context, repo entity.Repository, schema *Schema, rec *entity.Record, depth int) error {
	assocs := schema.For(rec.TypeName())
	if len(assocs) == 0 {
		return nil
	}
	if depth >= types.MaxPathDepth {
		return fmt.Errorf("%s: associations nest deeper than %d", rec, types.MaxPathDepth)
	}

	for _, a := range assocs {
		kids, err := repo.FindByCriteria(ctx, a.ChildType, []entity.Criterion{{Field: a.ForeignKey, Value: rec.ID()}})
		if err != nil {
			return fmt.Errorf("load %s.%s: %w", rec.TypeName(), a.Field, err)
		}
		for _, kid := range kids {
			if err := loadChildren(ctx, repo, schema, kid, depth+1); err != nil {
				return err
			}
		}
		rec.SetChildren(a.Field, kids)
	}
	return nil
}

// childrenToSave pairs every loaded child collection of rec with its
// association. A collection with no association is an error, since it
// would otherwise be dropped silently.
func childrenToSave(schema *Schema, rec *entity.Record) ([]childSet, error) {
	var out []childSet
	for _, name := range rec.ChildNames() {
		a, ok := schema.Lookup(rec.TypeName(), name)
		if !ok {
			return nil, fmt.Errorf("%s.%s: %w", rec.TypeName(), name, types.ErrUnknownAssociation)
		}
		kids := rec.Children(name)
		for _, kid := range kids {
			if kid.TypeName() != a.ChildType {
				return nil, fmt.Errorf("%s.%s: child is %s, want %s: %w", rec.TypeName(), name, kid.TypeName(), a.ChildType, types.ErrUnknownAssociation)
			}
		}
		out = append(out, childSet{assoc: a, kids: kids})
	}
	return out, nil
}

// checkTree validates the child collections of rec and its descendants
// before anything is written.
func checkTree(schema *Schema, rec *entity.Record, depth int) error {
	if depth > types.MaxPathDepth {
		return fmt.Errorf("%s: children nest deeper than %d", rec, types.MaxPathDepth)
	}
	sets, err := childrenToSave(schema, rec)
	if err != nil {
		return err
	}
	for _, set := range sets {
		for _, kid := range set.kids {
			if err := checkTree(schema, kid, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

type childSet struct {
	assoc Association
	kids  []*entity.Record
}
