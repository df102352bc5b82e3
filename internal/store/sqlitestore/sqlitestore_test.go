package sqlitestore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"club-events/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func participation(id, eventID, userID, status string) store.Doc {
	return store.Doc{"id": id, "eventId": eventID, "userId": userID, "status": status}
}

func TestSetGetUpdateDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.Get(ctx, store.Events, "E1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := s.Set(ctx, store.Events, "E1", store.Doc{"id": "E1", "title": "Ride"}, false); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, store.Events, "E1", store.Doc{"location": "Han river"}, true); err != nil {
		t.Fatalf("merge set: %v", err)
	}
	if err := s.Update(ctx, store.Events, "E1", store.Doc{"title": "Morning ride"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	d, err := s.Get(ctx, store.Events, "E1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if d["title"] != "Morning ride" || d["location"] != "Han river" {
		t.Fatalf("unexpected doc %v", d)
	}

	if err := s.Update(ctx, store.Events, "missing", store.Doc{"x": 1}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found on update, got %v", err)
	}
	if err := s.Delete(ctx, store.Events, "E1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, store.Events, "E1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestListFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_ = s.Set(ctx, store.Events, "E2", store.Doc{"id": "E2", "isSpecial": true, "maxParticipants": 20}, false)
	_ = s.Set(ctx, store.Events, "E1", store.Doc{"id": "E1", "isSpecial": false, "maxParticipants": 10}, false)

	all, err := s.List(ctx, store.Events)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0]["id"] != "E1" {
		t.Fatalf("expected ordered by id, got %v", all)
	}

	special, err := s.List(ctx, store.Events, store.Where("isSpecial", true))
	if err != nil {
		t.Fatalf("list special: %v", err)
	}
	if len(special) != 1 || special[0]["id"] != "E2" {
		t.Fatalf("expected only E2, got %v", special)
	}

	byMax, _ := s.List(ctx, store.Events, store.Where("maxParticipants", 10))
	if len(byMax) != 1 || byMax[0]["id"] != "E1" {
		t.Fatalf("expected only E1, got %v", byMax)
	}

	if _, err := s.List(ctx, store.Events, store.Where("x') OR 1=1 --", 1)); err == nil {
		t.Fatal("expected invalid field to be rejected")
	}
}

func TestActiveParticipationIsUnique(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.Set(ctx, store.Participations, "p1", participation("p1", "E1", "U1", "pending"), false); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	err := s.Set(ctx, store.Participations, "p2", participation("p2", "E1", "U1", "pending"), false)
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	docs, _ := s.List(ctx, store.Participations, store.Where("eventId", "E1"), store.Where("userId", "U1"))
	if len(docs) != 1 {
		t.Fatalf("expected exactly one row, got %d", len(docs))
	}

	// A cancelled row frees the slot.
	if err := s.Update(ctx, store.Participations, "p1", store.Doc{"status": "cancelled"}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := s.Set(ctx, store.Participations, "p2", participation("p2", "E1", "U1", "pending"), false); err != nil {
		t.Fatalf("re-registration after cancel: %v", err)
	}

	// Reactivating the cancelled row collides with the new one.
	err = s.Update(ctx, store.Participations, "p1", store.Doc{"status": "confirmed"})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict on reactivation, got %v", err)
	}

	// Other users and events are unaffected.
	if err := s.Set(ctx, store.Participations, "p3", participation("p3", "E1", "U2", "pending"), false); err != nil {
		t.Fatalf("other user: %v", err)
	}
	if err := s.Set(ctx, store.Participations, "p4", participation("p4", "E2", "U1", "pending"), false); err != nil {
		t.Fatalf("other event: %v", err)
	}
}

func TestPaymentPerParticipationIsUnique(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.Set(ctx, store.Payments, "pay1", store.Doc{"id": "pay1", "participationId": "p1"}, false); err != nil {
		t.Fatalf("first payment: %v", err)
	}
	err := s.Set(ctx, store.Payments, "pay2", store.Doc{"id": "pay2", "participationId": "p1"}, false)
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	// Rewriting the same payment is fine.
	if err := s.Set(ctx, store.Payments, "pay1", store.Doc{"paymentStatus": "confirmed"}, true); err != nil {
		t.Fatalf("update same payment: %v", err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = s.Set(ctx, store.Teams, "t1", store.Doc{"id": "t1", "eventId": "E1"}, false)
	_ = s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	d, err := s.Get(ctx, store.Teams, "t1")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if d["eventId"] != "E1" {
		t.Fatalf("unexpected doc %v", d)
	}
}
