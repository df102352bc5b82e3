package events

import (
	"testing"
	"time"

	"club-events/internal/models"
)

var now = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

func day(d int) time.Time { return now.AddDate(0, 0, d) }

func TestSelectNearestFuturePublished(t *testing.T) {
	evs := []models.Event{
		{ID: "past", Date: day(-1), IsPublished: true},
		{ID: "far", Date: day(20), IsPublished: true},
		{ID: "near", Date: day(14), IsPublished: true},
		{ID: "draft", Date: day(2), IsPublished: true, IsDraft: true},
		{ID: "hidden", Date: day(3)},
		{ID: "special", Date: day(1), IsPublished: true, IsSpecial: true},
	}

	got, ok := Select(evs, nil, false, now)
	if !ok || got.ID != "near" {
		t.Fatalf("expected near, got %q (ok=%v)", got.ID, ok)
	}

	sp, ok := Select(evs, nil, true, now)
	if !ok || sp.ID != "special" {
		t.Fatalf("expected special, got %q (ok=%v)", sp.ID, ok)
	}
}

func TestSelectNoCandidate(t *testing.T) {
	evs := []models.Event{{ID: "past", Date: day(-3), IsPublished: true}}
	if _, ok := Select(evs, nil, false, now); ok {
		t.Fatal("expected no current event")
	}
	if _, ok := Select(nil, nil, true, now); ok {
		t.Fatal("expected no special event")
	}
}

func TestSelectEventAtNowIsUpcoming(t *testing.T) {
	evs := []models.Event{{ID: "now", Date: now, IsPublished: true}}
	if got, ok := Select(evs, nil, false, now); !ok || got.ID != "now" {
		t.Fatalf("expected event dated now to be selected, got %q", got.ID)
	}
}

func TestSelectDerivesParticipantCount(t *testing.T) {
	evs := []models.Event{{ID: "E1", Date: day(14), IsPublished: true, CurrentParticipants: 99}}
	parts := []models.Participation{
		{ID: "p1", EventID: "E1", Status: models.StatusPending},
		{ID: "p2", EventID: "E1", Status: models.StatusConfirmed},
		{ID: "p3", EventID: "E1", Status: models.StatusCancelled},
		{ID: "p4", EventID: "E2", Status: models.StatusPending},
	}
	got, ok := Select(evs, parts, false, now)
	if !ok {
		t.Fatal("expected event")
	}
	if got.CurrentParticipants != 2 {
		t.Fatalf("expected derived count 2, got %d", got.CurrentParticipants)
	}
	if evs[0].CurrentParticipants != 99 {
		t.Fatal("expected input slice to be left untouched")
	}
}

func TestUpcomingOrdersByDate(t *testing.T) {
	evs := []models.Event{
		{ID: "b", Date: day(5), IsPublished: true},
		{ID: "a", Date: day(2), IsPublished: true},
	}
	got := Upcoming(evs, now)
	if len(got) != 2 || got[0].ID != "a" {
		t.Fatalf("unexpected order %+v", got)
	}
}
