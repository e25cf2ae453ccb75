// internal/entity/document.go
package entity

import (
	"fmt"
	"time"

	"github.com/solatis/commissar/internal/types"
)

/*
 * Wire form of records.
 *
 * A Document is the JSON-friendly shape of a Record used by the CLI, the
 * gRPC service and the SQL store. JSON has no date type, so time values are
 * written as a single-key object {"$date": "<RFC3339>"} and read back as
 * time.Time. "$date" also accepts YYYY-MM-DD. Every other value passes
 * through unchanged; JSON numbers arrive as float64.
 */

// DateKey marks an encoded time value.
const DateKey = "$date"

// Document is the serialized form of a Record and its child collections.
type Document struct {
	Type     string                `json:"type"`
	ID       string                `json:"id,omitempty"`
	Fields   map[string]any        `json:"fields"`
	Children map[string][]Document `json:"children,omitempty"`
}

// Record decodes d into an unattached Record. A non-empty ID marks the
// record as persisted.
func (d Document) Record() (*Record, error) {
	if d.Type == "" {
		return nil, fmt.Errorf("document has no type")
	}
	fields, err := DecodeFields(d.Fields)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.Type, err)
	}
	rec := NewRecord(d.Type, fields)
	if d.ID != "" {
		rec.MarkPersisted(d.ID)
	}
	for name, docs := range d.Children {
		kids := make([]*Record, 0, len(docs))
		for i, doc := range docs {
			kid, err := doc.Record()
			if err != nil {
				return nil, fmt.Errorf("%s.%s[%d]: %w", d.Type, name, i, err)
			}
			kids = append(kids, kid)
		}
		rec.SetChildren(name, kids)
	}
	return rec, nil
}

// DocumentOf encodes rec and its loaded child collections.
func DocumentOf(rec *Record) Document {
	doc := Document{
		Type:   rec.TypeName(),
		ID:     rec.ID(),
		Fields: EncodeFields(rec.Fields()),
	}
	for _, name := range rec.ChildNames() {
		if doc.Children == nil {
			doc.Children = make(map[string][]Document)
		}
		kids := rec.children[name]
		out := make([]Document, len(kids))
		for i, k := range kids {
			out[i] = DocumentOf(k)
		}
		doc.Children[name] = out
	}
	return doc
}

// EncodeFields returns a JSON-safe copy of fields.
func EncodeFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = EncodeValue(v)
	}
	return out
}

// EncodeValue converts v into a JSON-safe value.
func EncodeValue(v any) any {
	switch x := v.(type) {
	case time.Time:
		return map[string]any{DateKey: x.UTC().Format(time.RFC3339Nano)}
	case *time.Time:
		if x == nil {
			return nil
		}
		return EncodeValue(*x)
	case []byte:
		return string(x)
	case map[string]any:
		return EncodeFields(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = EncodeValue(e)
		}
		return out
	default:
		return v
	}
}

// DecodeFields reverses EncodeFields.
func DecodeFields(fields map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		dv, err := DecodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		out[k] = dv
	}
	return out, nil
}

// DecodeValue reverses EncodeValue.
func DecodeValue(v any) (any, error) {
	switch x := v.(type) {
	case map[string]any:
		if raw, ok := x[DateKey]; ok && len(x) == 1 {
			s, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s must be a string", types.ErrInvalidLiteral, DateKey)
			}
			return parseDate(s)
		}
		return DecodeFields(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			dv, err := DecodeValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = dv
		}
		return out, nil
	default:
		return v, nil
	}
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: bad date %q", types.ErrInvalidLiteral, s)
}
