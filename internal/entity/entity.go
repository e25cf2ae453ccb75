// Package entity defines the capability surface the rule engine consumes.
//
// The engine never sees a concrete model type. It reads fields by name,
// asks for identity and "new record" state, and reaches optional lookup
// capabilities by interface assertion. An entity that does not implement a
// capability makes the predicates that need it fail closed.
package entity

import (
	"context"
)

// Entity is the minimal capability every evaluated object must provide.
type Entity interface {
	// TypeName returns the entity type name matched against rule targets.
	TypeName() string
	// ID returns the persisted identity, or "" before the first save.
	ID() string
	// IsNew reports whether the entity has never been persisted.
	IsNew() bool
	// Field returns the named field value and whether it is present.
	Field(name string) (any, bool)
}

// Criterion is one field/value pair of a lookup-by-criteria query.
type Criterion struct {
	Field string
	Value any
}

// IdentityFinder loads the persisted copy of an entity of the same type.
// Returns an error wrapping types.ErrRecordNotFound when nothing matches.
type IdentityFinder interface {
	FindByID(ctx context.Context, id string) (Entity, error)
}

// CriteriaFinder lists persisted entities of the same type whose fields
// equal every criterion.
type CriteriaFinder interface {
	FindByCriteria(ctx context.Context, criteria []Criterion) ([]Entity, error)
}

// ErrorSink receives field-level and whole-entity errors from enforcement.
type ErrorSink interface {
	AddFieldError(field, message string)
	AddBaseError(message string)
}
