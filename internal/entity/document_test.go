package entity

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/solatis/commissar/internal/types"
)

func TestDecodeValue(t *testing.T) {
	released := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		in      any
		want    any
		wantErr bool
	}{
		{"string", "x", "x", false},
		{"number", 3.5, 3.5, false},
		{"nil", nil, nil, false},
		{"rfc3339 date", map[string]any{DateKey: "2024-03-01T12:30:00Z"}, released, false},
		{"date only", map[string]any{DateKey: "2024-03-01"}, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), false},
		{"nested", map[string]any{"at": map[string]any{DateKey: "2024-03-01T12:30:00Z"}}, map[string]any{"at": released}, false},
		{"list", []any{map[string]any{DateKey: "2024-03-01T12:30:00Z"}, "y"}, []any{released, "y"}, false},
		{"date with siblings is a map", map[string]any{DateKey: "2024-03-01", "x": 1.0}, map[string]any{DateKey: "2024-03-01", "x": 1.0}, false},
		{"bad date", map[string]any{DateKey: "soon"}, nil, true},
		{"non-string date", map[string]any{DateKey: 7.0}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeValue(tt.in)
			if tt.wantErr {
				if !errors.Is(err, types.ErrInvalidLiteral) {
					t.Errorf("DecodeValue() error = %v, want ErrInvalidLiteral", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeValue() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DecodeValue() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDocument_RoundTrip(t *testing.T) {
	released := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	asset := NewRecord("Asset", map[string]any{"title": "Blue", "released": released, "rating": 4.0})
	asset.MarkPersisted("a1")
	track := NewRecord("Track", map[string]any{"title": "Intro", "asset_id": "a1"})
	track.MarkPersisted("t1")
	asset.SetChildren("tracks", []*Record{track})

	data, err := json.Marshal(DocumentOf(asset))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	got, err := doc.Record()
	if err != nil {
		t.Fatalf("Record() failed: %v", err)
	}

	if got.TypeName() != "Asset" || got.ID() != "a1" {
		t.Errorf("got %s, want Asset(a1)", got)
	}
	if v, _ := got.Field("released"); !reflect.DeepEqual(v, released) {
		t.Errorf("released = %#v, want %v", v, released)
	}
	if v, _ := got.Field("rating"); v != 4.0 {
		t.Errorf("rating = %#v, want 4", v)
	}
	kids := got.Children("tracks")
	if len(kids) != 1 || kids[0].ID() != "t1" {
		t.Fatalf("tracks = %v, want [Track(t1)]", kids)
	}
	if v, _ := kids[0].Field("asset_id"); v != "a1" {
		t.Errorf("track asset_id = %v, want a1", v)
	}
}

func TestDocument_Errors(t *testing.T) {
	if _, err := (Document{Fields: map[string]any{}}).Record(); err == nil {
		t.Error("expected error for document without type")
	}

	doc := Document{
		Type:     "Asset",
		Children: map[string][]Document{"tracks": {{Fields: map[string]any{}}}},
	}
	if _, err := doc.Record(); err == nil {
		t.Error("expected error for child without type")
	}
}
