// Package memstore is an in-process DocumentStore.
package memstore

import (
	"context"
	"sort"
	"sync"

	"club-events/internal/store"
)

type Store struct {
	mu   sync.RWMutex
	data map[string]map[string]store.Doc
}

var _ store.DocumentStore = (*Store)(nil)

func New() *Store {
	return &Store{data: map[string]map[string]store.Doc{}}
}

func (s *Store) Get(_ context.Context, collection, id string) (store.Doc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.data[collection][id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return clone(d), nil
}

// List returns matching documents ordered by id.
func (s *Store) List(_ context.Context, collection string, filters ...store.Filter) ([]store.Doc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.data[collection]))
	for id := range s.data[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := []store.Doc{}
	for _, id := range ids {
		d := s.data[collection][id]
		if store.Matches(d, filters) {
			out = append(out, clone(d))
		}
	}
	return out, nil
}

func (s *Store) Set(_ context.Context, collection, id string, data store.Doc, merge bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, ok := s.data[collection]
	if !ok {
		coll = map[string]store.Doc{}
		s.data[collection] = coll
	}
	if merge {
		coll[id] = store.Merge(coll[id], clone(data))
		return nil
	}
	coll[id] = clone(data)
	return nil
}

func (s *Store) Update(_ context.Context, collection, id string, patch store.Doc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.data[collection][id]
	if !ok {
		return store.ErrNotFound
	}
	s.data[collection][id] = store.Merge(d, clone(patch))
	return nil
}

func (s *Store) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[collection], id)
	return nil
}

// clone copies the top level of a document. Stored documents come from
// store.Encode, so nested values are never shared with callers that mutate.
func clone(d store.Doc) store.Doc {
	if d == nil {
		return nil
	}
	out := make(store.Doc, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
