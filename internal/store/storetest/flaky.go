// Package storetest has helpers for exercising store failure paths in tests.
package storetest

import (
	"context"
	"errors"
	"sync"

	"club-events/internal/store"
)

// ErrInjected is returned by Flaky for every injected failure.
var ErrInjected = errors.New("injected store failure")

// Flaky wraps a DocumentStore and fails writes selected by FailWrite.
type Flaky struct {
	store.DocumentStore

	mu sync.Mutex
	// FailWrite decides whether a Set/Update/Delete on collection/id fails.
	FailWrite func(op, collection, id string) bool
	// FailList makes List on a collection fail.
	FailList map[string]bool
	writes   int
}

func NewFlaky(inner store.DocumentStore) *Flaky {
	return &Flaky{DocumentStore: inner, FailList: map[string]bool{}}
}

// FailAllWrites makes every write fail.
func (f *Flaky) FailAllWrites() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FailWrite = func(string, string, string) bool { return true }
}

// FailWritesTo makes writes to one collection fail.
func (f *Flaky) FailWritesTo(collection string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FailWrite = func(_ string, c, _ string) bool { return c == collection }
}

// Heal clears all injected failures.
func (f *Flaky) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FailWrite = nil
	f.FailList = map[string]bool{}
}

// Writes reports how many writes reached the inner store.
func (f *Flaky) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

func (f *Flaky) shouldFail(op, collection, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWrite != nil && f.FailWrite(op, collection, id) {
		return true
	}
	f.writes++
	return false
}

func (f *Flaky) List(ctx context.Context, collection string, filters ...store.Filter) ([]store.Doc, error) {
	f.mu.Lock()
	fail := f.FailList[collection]
	f.mu.Unlock()
	if fail {
		return nil, ErrInjected
	}
	return f.DocumentStore.List(ctx, collection, filters...)
}

func (f *Flaky) Set(ctx context.Context, collection, id string, data store.Doc, merge bool) error {
	if f.shouldFail("set", collection, id) {
		return ErrInjected
	}
	return f.DocumentStore.Set(ctx, collection, id, data, merge)
}

func (f *Flaky) Update(ctx context.Context, collection, id string, patch store.Doc) error {
	if f.shouldFail("update", collection, id) {
		return ErrInjected
	}
	return f.DocumentStore.Update(ctx, collection, id, patch)
}

func (f *Flaky) Delete(ctx context.Context, collection, id string) error {
	if f.shouldFail("delete", collection, id) {
		return ErrInjected
	}
	return f.DocumentStore.Delete(ctx, collection, id)
}
