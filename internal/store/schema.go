package store

import (
	"fmt"
)

// Association declares that records of Type own a collection Field of
// ChildType records, linked by the child's ForeignKey field holding the
// parent's ID.
type Association struct {
	Type       string
	Field      string
	ChildType  string
	ForeignKey string
}

// Schema indexes associations by parent type.
type Schema struct {
	byType map[string][]Association
}

// NewSchema validates assocs and indexes them.
func NewSchema(assocs ...Association) (*Schema, error) {
	s := &Schema{byType: make(map[string][]Association)}
	for i, a := range assocs {
		if a.Type == "" || a.Field == "" || a.ChildType == "" || a.ForeignKey == "" {
			return nil, fmt.Errorf("association %d: type, field, child_type and foreign_key are required", i)
		}
		if _, dup := s.Lookup(a.Type, a.Field); dup {
			return nil, fmt.Errorf("association %d: %s.%s declared twice", i, a.Type, a.Field)
		}
		s.byType[a.Type] = append(s.byType[a.Type], a)
	}
	return s, nil
}

// For returns the associations owned by typeName. A nil schema has none.
func (s *Schema) For(typeName string) []Association {
	if s == nil {
		return nil
	}
	return s.byType[typeName]
}

// Lookup finds the association for typeName.field.
func (s *Schema) Lookup(typeName, field string) (Association, bool) {
	for _, a := range s.For(typeName) {
		if a.Field == field {
			return a, true
		}
	}
	return Association{}, false
}
