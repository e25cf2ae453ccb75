package rules

import (
	"context"

	"github.com/solatis/commissar/internal/entity"
	"github.com/solatis/commissar/internal/types"
)

// fakeRepo answers lookups from fixed data.
type fakeRepo struct {
	byID     map[string]*entity.Record
	criteria func(criteria []entity.Criterion) []*entity.Record
	err      error
}

func (f *fakeRepo) FindByID(_ context.Context, _ string, id string) (*entity.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	rec, ok := f.byID[id]
	if !ok {
		return nil, types.ErrRecordNotFound
	}
	return rec, nil
}

func (f *fakeRepo) FindByCriteria(_ context.Context, _ string, criteria []entity.Criterion) ([]*entity.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.criteria == nil {
		return nil, nil
	}
	return f.criteria(criteria), nil
}

// itemRepo mirrors a table holding one persisted item "item1".
// A single-field lookup matches two rows; a multi-field lookup matches item1.
func itemRepo() *fakeRepo {
	item1 := entity.NewRecord("Item", map[string]any{
		"title":       "item",
		"artist_name": "item1",
		"icpn":        "item1",
	})
	item1.MarkPersisted("item1")
	item2 := entity.NewRecord("Item", map[string]any{
		"title":       "item",
		"artist_name": "item2",
	})
	item2.MarkPersisted("item2")

	return &fakeRepo{
		byID: map[string]*entity.Record{"item1": item1},
		criteria: func(criteria []entity.Criterion) []*entity.Record {
			if len(criteria) == 1 {
				return []*entity.Record{item1, item2}
			}
			return []*entity.Record{item1}
		},
	}
}

func newItem(id string, fields map[string]any) *entity.Record {
	rec := entity.NewRecord("Item", fields)
	if id != "" {
		rec.MarkPersisted(id)
	}
	return rec
}

// opaque is an Entity with no lookup capabilities.
type opaque struct {
	fields map[string]any
}

func (o opaque) TypeName() string { return "Opaque" }
func (o opaque) ID() string       { return "opaque-1" }
func (o opaque) IsNew() bool      { return false }
func (o opaque) Field(name string) (any, bool) {
	v, ok := o.fields[name]
	return v, ok
}

func mustPredicate(p *Predicate, err error) *Predicate {
	if err != nil {
		panic(err)
	}
	return p
}

func eq(field, value string) *Predicate {
	return mustPredicate(NewComparison(field, OpEqualTo, types.StringLiteral(value)))
}
