// Package store defines the document store contract the core persists
// through, plus helpers to move typed models in and out of documents.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Collections.
const (
	Events         = "events"
	Participations = "participations"
	Participants   = "participants" // legacy, read-only
	Payments       = "payments"
	Teams          = "teams"
	Attendances    = "attendances"
)

var (
	// ErrNotFound indicates a requested document is missing.
	ErrNotFound = errors.New("document not found")
	// ErrConflict indicates a write would break a uniqueness constraint.
	ErrConflict = errors.New("document conflicts with an existing one")
)

// Doc is a single document. Field names match the models' JSON tags.
type Doc map[string]any

// Filter is an equality match on a top-level document field.
type Filter struct {
	Field string
	Value any
}

// Where is shorthand for Filter{field, value}.
func Where(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

// DocumentStore persists documents in named collections.
type DocumentStore interface {
	Get(ctx context.Context, collection, id string) (Doc, error)
	List(ctx context.Context, collection string, filters ...Filter) ([]Doc, error)
	Set(ctx context.Context, collection, id string, data Doc, merge bool) error
	Update(ctx context.Context, collection, id string, patch Doc) error
	Delete(ctx context.Context, collection, id string) error
}

// Encode turns a model into a document via its JSON form.
func Encode(v any) (Doc, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var d Doc
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return d, nil
}

// Decode fills dst from a document.
func Decode(d Doc, dst any) error {
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// DecodeAll decodes a list of documents into a slice of T. Documents that do
// not decode are skipped and reported through skipped.
func DecodeAll[T any](docs []Doc) (out []T, skipped int) {
	out = make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := Decode(d, &v); err != nil {
			skipped++
			continue
		}
		out = append(out, v)
	}
	return out, skipped
}

// Merge copies patch over base and returns base. A nil base is allocated.
func Merge(base, patch Doc) Doc {
	if base == nil {
		base = Doc{}
	}
	for k, v := range patch {
		base[k] = v
	}
	return base
}

// Matches reports whether d satisfies every filter. Values are compared by
// their JSON form so typed filter values match decoded numbers and strings.
func Matches(d Doc, filters []Filter) bool {
	for _, f := range filters {
		got, ok := d[f.Field]
		if !ok {
			return false
		}
		if !sameJSON(got, f.Value) {
			return false
		}
	}
	return true
}

func sameJSON(a, b any) bool {
	ab, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(ab) == string(bb)
}
