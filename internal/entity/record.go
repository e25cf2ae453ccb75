package entity

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"time"

	"github.com/solatis/commissar/internal/types"
)

// Repository is the persistence backend a Record delegates lookups to.
// Implemented by internal/store.
type Repository interface {
	FindByID(ctx context.Context, typeName, id string) (*Record, error)
	FindByCriteria(ctx context.Context, typeName string, criteria []Criterion) ([]*Record, error)
}

// Record is a map-backed Entity with lookup and error-sink capabilities.
// Lookups fail with types.ErrLookupUnsupported until a Repository is attached.
type Record struct {
	typeName  string
	id        string
	fields    map[string]any
	children  map[string][]*Record
	repo      Repository
	errors    Errors
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewRecord creates an unpersisted record of typeName with a copy of fields.
func NewRecord(typeName string, fields map[string]any) *Record {
	f := make(map[string]any, len(fields))
	maps.Copy(f, fields)
	return &Record{typeName: typeName, fields: f}
}

// TypeName implements Entity.
func (r *Record) TypeName() string { return r.typeName }

// ID implements Entity.
func (r *Record) ID() string { return r.id }

// IsNew implements Entity.
func (r *Record) IsNew() bool { return r.id == "" }

// Field implements Entity. Child collections are returned as []Entity.
func (r *Record) Field(name string) (any, bool) {
	if kids, ok := r.children[name]; ok {
		out := make([]Entity, len(kids))
		for i, k := range kids {
			out[i] = k
		}
		return out, true
	}
	v, ok := r.fields[name]
	return v, ok
}

// Set assigns a scalar field.
func (r *Record) Set(name string, value any) {
	if r.fields == nil {
		r.fields = make(map[string]any)
	}
	r.fields[name] = value
}

// Assign copies attrs over the record's fields.
func (r *Record) Assign(attrs map[string]any) {
	for k, v := range attrs {
		r.Set(k, v)
	}
}

// Fields returns a copy of the scalar fields.
func (r *Record) Fields() map[string]any {
	out := make(map[string]any, len(r.fields))
	maps.Copy(out, r.fields)
	return out
}

// SetChildren replaces the named child collection.
func (r *Record) SetChildren(name string, kids []*Record) {
	if r.children == nil {
		r.children = make(map[string][]*Record)
	}
	r.children[name] = kids
}

// Children returns the named child collection.
func (r *Record) Children(name string) []*Record {
	return r.children[name]
}

// ChildNames returns the names of the loaded child collections, sorted.
func (r *Record) ChildNames() []string {
	names := make([]string, 0, len(r.children))
	for name := range r.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MarkPersisted sets the identity assigned by the store.
func (r *Record) MarkPersisted(id string) {
	r.id = id
}

// Attach binds the record and all of its children to a repository for
// lookups.
func (r *Record) Attach(repo Repository) {
	r.repo = repo
	for _, kids := range r.children {
		for _, kid := range kids {
			kid.Attach(repo)
		}
	}
}

// Clone returns a detached-error copy sharing the repository binding.
func (r *Record) Clone() *Record {
	c := &Record{
		typeName:  r.typeName,
		id:        r.id,
		fields:    r.Fields(),
		repo:      r.repo,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	for name, kids := range r.children {
		c.SetChildren(name, append([]*Record(nil), kids...))
	}
	return c
}

// FindByID implements IdentityFinder.
func (r *Record) FindByID(ctx context.Context, id string) (Entity, error) {
	if r.repo == nil {
		return nil, types.ErrLookupUnsupported
	}
	found, err := r.repo.FindByID(ctx, r.typeName, id)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, types.ErrRecordNotFound
	}
	return found, nil
}

// FindByCriteria implements CriteriaFinder.
func (r *Record) FindByCriteria(ctx context.Context, criteria []Criterion) ([]Entity, error) {
	if r.repo == nil {
		return nil, types.ErrLookupUnsupported
	}
	found, err := r.repo.FindByCriteria(ctx, r.typeName, criteria)
	if err != nil {
		return nil, err
	}
	out := make([]Entity, 0, len(found))
	for _, f := range found {
		if f != nil {
			out = append(out, f)
		}
	}
	return out, nil
}

// AddFieldError implements ErrorSink.
func (r *Record) AddFieldError(field, message string) {
	r.errors.AddFieldError(field, message)
}

// AddBaseError implements ErrorSink.
func (r *Record) AddBaseError(message string) {
	r.errors.AddBaseError(message)
}

// Errors returns the errors collected by enforcement.
func (r *Record) Errors() *Errors {
	return &r.errors
}

// String implements fmt.Stringer.
func (r *Record) String() string {
	if r.id == "" {
		return fmt.Sprintf("%s(new)", r.typeName)
	}
	return fmt.Sprintf("%s(%s)", r.typeName, r.id)
}
