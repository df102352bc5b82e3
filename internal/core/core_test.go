package core

import (
	"context"
	"testing"
	"time"

	"club-events/internal/models"
	"club-events/internal/registrar"
	"club-events/internal/store/memstore"
	"club-events/internal/weather"
)

var now = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

func TestCurrentAndSpecialRecomputedPerCall(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	svc := New(st, Options{Now: func() time.Time { return now }})

	if _, ok := svc.CurrentEvent(); ok {
		t.Fatal("expected no current event on an empty store")
	}

	_, _ = svc.Events.Save(ctx, models.Event{ID: "E1", Date: now.AddDate(0, 0, 14), Cost: "60,000원", IsPublished: true})
	_, _ = svc.Events.Save(ctx, models.Event{ID: "S1", Date: now.AddDate(0, 0, 30), IsPublished: true, IsSpecial: true})

	cur, ok := svc.CurrentEvent()
	if !ok || cur.ID != "E1" || cur.CurrentParticipants != 0 {
		t.Fatalf("unexpected current event %+v", cur)
	}
	sp, ok := svc.SpecialEvent()
	if !ok || sp.ID != "S1" {
		t.Fatalf("unexpected special event %+v", sp)
	}

	res, err := svc.Registrar.Register(ctx, registrar.RegisterInput{EventID: "E1", UserID: "U1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if res.Payment == nil || res.Payment.Amount != 60000 {
		t.Fatalf("expected payment provisioned through the catalog cost, got %+v", res.Payment)
	}
	cur, _ = svc.CurrentEvent()
	if cur.CurrentParticipants != 1 {
		t.Fatalf("expected 1 participant, got %d", cur.CurrentParticipants)
	}
	ev, _ := svc.Event("E1")
	if ev.CurrentParticipants != 1 {
		t.Fatalf("expected live count on Event, got %d", ev.CurrentParticipants)
	}
}

func TestLoadRestoresMirrors(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	clock := func() time.Time { return now }

	first := New(st, Options{Now: clock})
	_, _ = first.Events.Save(ctx, models.Event{ID: "E1", Date: now.AddDate(0, 0, 7), IsPublished: true})
	_, _ = first.Registrar.Register(ctx, registrar.RegisterInput{EventID: "E1", UserID: "U1"})
	_, _ = first.Teams.SetTeamsForEvent(ctx, "E1", []models.Team{{Members: []models.TeamMember{{UserID: "U1"}}}})

	second := New(st, Options{Now: clock, WeatherCache: weather.NewMemoryCache()})
	if err := second.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	cur, ok := second.CurrentEvent()
	if !ok || cur.CurrentParticipants != 1 {
		t.Fatalf("expected reloaded event with 1 participant, got %+v", cur)
	}
	if len(second.Teams.TeamsByEvent("E1")) != 1 {
		t.Fatal("expected reloaded roster")
	}
	if _, ok := second.Payments.ByParticipation(second.Registrar.All()[0].ID); !ok {
		t.Fatal("expected reloaded payment")
	}
}
