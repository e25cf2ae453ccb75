package entity

import (
	"sort"
	"strings"
)

// Errors collects validation messages keyed by field.
// Base holds messages that belong to the entity as a whole.
type Errors struct {
	Fields map[string][]string
	Base   []string
}

// AddFieldError appends message under field.
func (e *Errors) AddFieldError(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

// AddBaseError appends a whole-entity message.
func (e *Errors) AddBaseError(message string) {
	e.Base = append(e.Base, message)
}

// On returns the messages recorded for field.
func (e *Errors) On(field string) []string {
	return e.Fields[field]
}

// Empty reports whether no message has been recorded.
func (e *Errors) Empty() bool {
	return len(e.Base) == 0 && len(e.Fields) == 0
}

// Count returns the total number of messages.
func (e *Errors) Count() int {
	n := len(e.Base)
	for _, msgs := range e.Fields {
		n += len(msgs)
	}
	return n
}

// Clear drops every recorded message.
func (e *Errors) Clear() {
	e.Fields = nil
	e.Base = nil
}

// FullMessages flattens errors as "field message" lines, base first,
// fields in sorted order.
func (e *Errors) FullMessages() []string {
	out := append([]string(nil), e.Base...)
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		for _, msg := range e.Fields[f] {
			out = append(out, strings.TrimSpace(f+" "+msg))
		}
	}
	return out
}
