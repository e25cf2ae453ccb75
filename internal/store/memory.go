package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/solatis/commissar/internal/entity"
	"github.com/solatis/commissar/internal/types"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]map[string]*entity.Record // type -> id -> snapshot
	schema  *Schema
	now     func() time.Time
}

// NewMemoryStore creates an empty store. schema may be nil.
func NewMemoryStore(schema *Schema) *MemoryStore {
	return &MemoryStore{
		records: make(map[string]map[string]*entity.Record),
		schema:  schema,
		now:     time.Now,
	}
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, rec *entity.Record) error {
	if err := checkTree(s.schema, rec, 0); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveLocked(rec)
	return nil
}

// saveLocked writes rec and its children. The tree was validated by
// checkTree, so nothing here fails.
func (s *MemoryStore) saveLocked(rec *entity.Record) {
	children, _ := childrenToSave(s.schema, rec)

	now := s.now().UTC()
	id := rec.ID()
	byID := s.records[rec.TypeName()]
	if byID == nil {
		byID = make(map[string]*entity.Record)
		s.records[rec.TypeName()] = byID
	}

	createdAt := now
	if rec.IsNew() {
		id = string(types.NewRecordID())
	} else if prev, ok := byID[id]; ok {
		createdAt = prev.CreatedAt
	}

	snap := entity.NewRecord(rec.TypeName(), rec.Fields())
	snap.MarkPersisted(id)
	snap.CreatedAt = createdAt
	snap.UpdatedAt = now
	byID[id] = snap

	rec.MarkPersisted(id)
	rec.CreatedAt = createdAt
	rec.UpdatedAt = now
	rec.Attach(s)

	for _, set := range children {
		for _, kid := range set.kids {
			kid.Set(set.assoc.ForeignKey, id)
			s.saveLocked(kid)
		}
	}
}

// FindByID implements entity.Repository.
func (s *MemoryStore) FindByID(ctx context.Context, typeName, id string) (*entity.Record, error) {
	s.mu.RLock()
	snap, ok := s.records[typeName][id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", typeName, id, types.ErrRecordNotFound)
	}

	rec := s.detach(snap)
	if err := loadChildren(ctx, s, s.schema, rec, 0); err != nil {
		return nil, err
	}
	return rec, nil
}

// FindByCriteria implements entity.Repository. Results are ordered by ID.
func (s *MemoryStore) FindByCriteria(ctx context.Context, typeName string, criteria []entity.Criterion) ([]*entity.Record, error) {
	if len(criteria) == 0 {
		return nil, fmt.Errorf("find %s: no criteria", typeName)
	}
	keys := make([]string, len(criteria))
	for i, c := range criteria {
		keys[i] = valueKey(c.Value)
	}

	s.mu.RLock()
	var out []*entity.Record
	for _, snap := range s.records[typeName] {
		if matches(snap, criteria, keys) {
			out = append(out, s.detach(snap))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

// matches reports whether every criterion field is present on snap with an
// equal value key.
func matches(snap *entity.Record, criteria []entity.Criterion, keys []string) bool {
	for i, c := range criteria {
		v, ok := snap.Field(c.Field)
		if !ok || valueKey(v) != keys[i] {
			return false
		}
	}
	return true
}

// detach returns a caller-owned copy of snap bound to the store.
func (s *MemoryStore) detach(snap *entity.Record) *entity.Record {
	rec := snap.Clone()
	rec.Attach(s)
	return rec
}
