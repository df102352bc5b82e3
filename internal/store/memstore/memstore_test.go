package memstore

import (
	"context"
	"errors"
	"testing"

	"club-events/internal/store"
)

func TestSetGetUpdateDelete(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.Get(ctx, store.Events, "E1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := s.Set(ctx, store.Events, "E1", store.Doc{"id": "E1", "title": "Ride"}, false); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Update(ctx, store.Events, "E1", store.Doc{"title": "Morning ride"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	d, err := s.Get(ctx, store.Events, "E1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if d["title"] != "Morning ride" || d["id"] != "E1" {
		t.Fatalf("unexpected doc %v", d)
	}

	if err := s.Update(ctx, store.Events, "missing", store.Doc{"title": "x"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found on update, got %v", err)
	}

	if err := s.Delete(ctx, store.Events, "E1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, store.Events, "E1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestSetMerge(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.Set(ctx, store.Events, "E1", store.Doc{"id": "E1", "title": "Ride"}, false)
	_ = s.Set(ctx, store.Events, "E1", store.Doc{"location": "Han river"}, true)
	d, _ := s.Get(ctx, store.Events, "E1")
	if d["title"] != "Ride" || d["location"] != "Han river" {
		t.Fatalf("expected merged doc, got %v", d)
	}

	_ = s.Set(ctx, store.Events, "E1", store.Doc{"id": "E1"}, false)
	d, _ = s.Get(ctx, store.Events, "E1")
	if _, ok := d["title"]; ok {
		t.Fatalf("expected replace without merge, got %v", d)
	}
}

func TestListFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.Set(ctx, store.Participations, "p2", store.Doc{"eventId": "E1", "status": "pending"}, false)
	_ = s.Set(ctx, store.Participations, "p1", store.Doc{"eventId": "E1", "status": "cancelled"}, false)
	_ = s.Set(ctx, store.Participations, "p3", store.Doc{"eventId": "E2", "status": "pending"}, false)

	all, err := s.List(ctx, store.Participations, store.Where("eventId", "E1"))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0]["status"] != "cancelled" {
		t.Fatalf("expected p1 then p2, got %v", all)
	}

	pending, _ := s.List(ctx, store.Participations, store.Where("eventId", "E1"), store.Where("status", "pending"))
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending, got %d", len(pending))
	}

	empty, _ := s.List(ctx, "nothing")
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil list, got %v", empty)
	}
}

func TestReturnedDocsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.Set(ctx, store.Events, "E1", store.Doc{"title": "Ride"}, false)
	d, _ := s.Get(ctx, store.Events, "E1")
	d["title"] = "changed"
	again, _ := s.Get(ctx, store.Events, "E1")
	if again["title"] != "Ride" {
		t.Fatal("expected stored doc to be unaffected by caller mutation")
	}
}
