package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/commissar/internal/core/db"
	"github.com/solatis/commissar/internal/entity"
	"github.com/solatis/commissar/internal/rules"
	"github.com/solatis/commissar/internal/types"
)

type storeFactory func(t *testing.T, schema *Schema) Store

func newMemory(t *testing.T, schema *Schema) Store {
	return NewMemoryStore(schema)
}

func newSQLite(t *testing.T, schema *Schema) Store {
	t.Helper()
	ctx := context.Background()
	conn, err := db.Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "commissar.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	_, err = db.MigrateUp(ctx, conn, nil)
	require.NoError(t, err)

	s, err := NewSQLStore(conn, schema, nil)
	require.NoError(t, err)
	return s
}

func assetSchema(t *testing.T) *Schema {
	t.Helper()
	schema, err := NewSchema(Association{Type: "Asset", Field: "tracks", ChildType: "Track", ForeignKey: "asset_id"})
	require.NoError(t, err)
	return schema
}

func forEachStore(t *testing.T, fn func(t *testing.T, newStore storeFactory)) {
	t.Run("memory", func(t *testing.T) { fn(t, newMemory) })
	t.Run("sqlite", func(t *testing.T) { fn(t, newSQLite) })
}

func TestStore_SaveAndFind(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore storeFactory) {
		ctx := context.Background()
		s := newStore(t, nil)

		released := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
		rec := entity.NewRecord("Item", map[string]any{
			"title":    "Blue",
			"price":    9.5,
			"released": released,
			"notes":    nil,
		})
		require.True(t, rec.IsNew())
		require.NoError(t, s.Save(ctx, rec))
		require.False(t, rec.IsNew())

		_, err := types.ParseRecordID(rec.ID())
		require.NoError(t, err)

		got, err := s.FindByID(ctx, "Item", rec.ID())
		require.NoError(t, err)
		assert.Equal(t, rec.ID(), got.ID())

		title, _ := got.Field("title")
		assert.Equal(t, "Blue", title)
		price, _ := got.Field("price")
		assert.Equal(t, 9.5, price)
		when, _ := got.Field("released")
		require.IsType(t, time.Time{}, when)
		assert.True(t, released.Equal(when.(time.Time)))
		notes, present := got.Field("notes")
		assert.True(t, present)
		assert.Nil(t, notes)
	})
}

func TestStore_Update(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore storeFactory) {
		ctx := context.Background()
		s := newStore(t, nil)

		rec := entity.NewRecord("Item", map[string]any{"title": "Blue"})
		require.NoError(t, s.Save(ctx, rec))
		id := rec.ID()

		rec.Set("title", "Green")
		require.NoError(t, s.Save(ctx, rec))
		assert.Equal(t, id, rec.ID())

		got, err := s.FindByID(ctx, "Item", id)
		require.NoError(t, err)
		title, _ := got.Field("title")
		assert.Equal(t, "Green", title)

		matches, err := s.FindByCriteria(ctx, "Item", []entity.Criterion{{Field: "title", Value: "Blue"}})
		require.NoError(t, err)
		assert.Empty(t, matches, "stale index entry")
	})
}

func TestStore_ClientSuppliedID(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore storeFactory) {
		ctx := context.Background()
		s := newStore(t, nil)

		rec := entity.NewRecord("Item", map[string]any{"title": "Blue"})
		rec.MarkPersisted("item-42")
		require.NoError(t, s.Save(ctx, rec))

		got, err := s.FindByID(ctx, "Item", "item-42")
		require.NoError(t, err)
		assert.Equal(t, "item-42", got.ID())
	})
}

func TestStore_NotFound(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore storeFactory) {
		ctx := context.Background()
		s := newStore(t, nil)

		_, err := s.FindByID(ctx, "Item", "missing")
		assert.ErrorIs(t, err, types.ErrRecordNotFound)

		rec := entity.NewRecord("Item", map[string]any{"title": "Blue"})
		require.NoError(t, s.Save(ctx, rec))
		_, err = s.FindByID(ctx, "Other", rec.ID())
		assert.ErrorIs(t, err, types.ErrRecordNotFound)
	})
}

func TestStore_FindByCriteria(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore storeFactory) {
		ctx := context.Background()
		s := newStore(t, nil)

		save := func(fields map[string]any) *entity.Record {
			rec := entity.NewRecord("Item", fields)
			require.NoError(t, s.Save(ctx, rec))
			return rec
		}
		item1 := save(map[string]any{"title": "item", "artist_name": "item1", "track_count": 3})
		item2 := save(map[string]any{"title": "item", "artist_name": "item2", "track_count": 4})
		item3 := save(map[string]any{"title": "other", "artist_name": nil})

		tests := []struct {
			name     string
			criteria []entity.Criterion
			want     []string
		}{
			{"single field", []entity.Criterion{{Field: "title", Value: "item"}}, []string{item1.ID(), item2.ID()}},
			{"all fields", []entity.Criterion{{Field: "title", Value: "item"}, {Field: "artist_name", Value: "item1"}}, []string{item1.ID()}},
			{"numbers across widths", []entity.Criterion{{Field: "track_count", Value: 4.0}}, []string{item2.ID()}},
			{"no match", []entity.Criterion{{Field: "title", Value: "none"}}, nil},
			{"absent field", []entity.Criterion{{Field: "label", Value: nil}}, nil},
			{"stored nil", []entity.Criterion{{Field: "artist_name", Value: nil}}, []string{item3.ID()}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := s.FindByCriteria(ctx, "Item", tt.criteria)
				require.NoError(t, err)
				var ids []string
				for _, r := range got {
					ids = append(ids, r.ID())
				}
				assert.ElementsMatch(t, tt.want, ids)
			})
		}

		_, err := s.FindByCriteria(ctx, "Item", nil)
		assert.Error(t, err)
	})
}

func TestStore_Associations(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore storeFactory) {
		ctx := context.Background()
		s := newStore(t, assetSchema(t))

		asset := entity.NewRecord("Asset", map[string]any{"title": "Album"})
		asset.SetChildren("tracks", []*entity.Record{
			entity.NewRecord("Track", map[string]any{"name": "One"}),
			entity.NewRecord("Track", map[string]any{"name": "Two"}),
		})
		require.NoError(t, s.Save(ctx, asset))

		for _, kid := range asset.Children("tracks") {
			assert.False(t, kid.IsNew())
			fk, _ := kid.Field("asset_id")
			assert.Equal(t, asset.ID(), fk)
		}

		got, err := s.FindByID(ctx, "Asset", asset.ID())
		require.NoError(t, err)
		tracks := got.Children("tracks")
		require.Len(t, tracks, 2)
		var names []any
		for _, tr := range tracks {
			n, _ := tr.Field("name")
			names = append(names, n)
		}
		assert.ElementsMatch(t, []any{"One", "Two"}, names)

		field, ok := got.Field("tracks")
		require.True(t, ok)
		assert.Len(t, field, 2)
	})
}

func TestStore_RejectsUnknownChildren(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore storeFactory) {
		ctx := context.Background()
		s := newStore(t, assetSchema(t))

		asset := entity.NewRecord("Asset", nil)
		asset.SetChildren("covers", []*entity.Record{entity.NewRecord("Image", nil)})
		require.ErrorIs(t, s.Save(ctx, asset), types.ErrUnknownAssociation)
		assert.True(t, asset.IsNew())

		wrongType := entity.NewRecord("Asset", nil)
		wrongType.SetChildren("tracks", []*entity.Record{entity.NewRecord("Image", nil)})
		require.ErrorIs(t, s.Save(ctx, wrongType), types.ErrUnknownAssociation)
		assert.True(t, wrongType.IsNew())
	})
}

// Stored records carry the store, so lookup predicates see persisted state.
func TestStore_LookupPredicates(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore storeFactory) {
		ctx := context.Background()
		s := newStore(t, nil)

		first := entity.NewRecord("Item", map[string]any{"icpn": "5012345678900"})
		require.NoError(t, s.Save(ctx, first))

		assert.True(t, rules.Unique(ctx, first, []string{"icpn"}), "a record is unique against itself")

		dup := entity.NewRecord("Item", map[string]any{"icpn": "5012345678900"})
		dup.Attach(s)
		assert.False(t, rules.Unique(ctx, dup, []string{"icpn"}))

		first.Set("icpn", "0000000000000")
		assert.False(t, rules.Unchanged(ctx, first, "icpn"))
		first.Set("icpn", "5012345678900")
		assert.True(t, rules.Unchanged(ctx, first, "icpn"))
	})
}

func TestNewSchema(t *testing.T) {
	_, err := NewSchema(Association{Type: "Asset", Field: "tracks"})
	assert.Error(t, err)

	a := Association{Type: "Asset", Field: "tracks", ChildType: "Track", ForeignKey: "asset_id"}
	_, err = NewSchema(a, a)
	assert.Error(t, err)

	var nilSchema *Schema
	assert.Empty(t, nilSchema.For("Asset"))
}

func TestValueKey(t *testing.T) {
	when := time.Date(2024, 1, 15, 10, 0, 0, 0, time.FixedZone("X", 3600))
	tests := []struct {
		a, b  any
		equal bool
	}{
		{3, 3.0, true},
		{int64(3), uint8(3), true},
		{"3", 3, false},
		{nil, "", false},
		{true, "true", false},
		{when, when.UTC(), true},
		{[]byte("x"), "x", true},
	}
	for _, tt := range tests {
		if got := valueKey(tt.a) == valueKey(tt.b); got != tt.equal {
			t.Errorf("valueKey(%v) == valueKey(%v) is %v, want %v", tt.a, tt.b, got, tt.equal)
		}
	}
}
