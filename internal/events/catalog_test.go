package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"club-events/internal/errs"
	"club-events/internal/models"
	"club-events/internal/store"
	"club-events/internal/store/memstore"
	"club-events/internal/store/storetest"
)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestSaveAndReload(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	c := NewCatalog(st, fixedClock(now))

	e, err := c.Save(ctx, models.Event{Title: "Spring ride", Date: day(14), Cost: "60,000원"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if e.ID == "" || !e.CreatedAt.Equal(now) {
		t.Fatalf("expected generated id and created time, got %+v", e)
	}

	later := NewCatalog(st, fixedClock(now.Add(time.Hour)))
	if err := later.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	got, ok := later.Get(e.ID)
	if !ok || got.Title != "Spring ride" {
		t.Fatalf("expected reloaded event, got %+v", got)
	}
	cost, ok := later.Cost(e.ID)
	if !ok || cost != "60,000원" {
		t.Fatalf("unexpected cost %q", cost)
	}

	got.Title = "Spring ride (moved)"
	saved, err := later.Save(ctx, got)
	if err != nil {
		t.Fatalf("resave: %v", err)
	}
	if !saved.CreatedAt.Equal(now) || !saved.UpdatedAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("expected created time kept and updated time bumped, got %+v", saved)
	}
}

func TestSetPublishedClearsDraft(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	c := NewCatalog(st, fixedClock(now))
	e, _ := c.Save(ctx, models.Event{Title: "Draft", Date: day(3), IsDraft: true})

	got, err := c.SetPublished(ctx, e.ID, true)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !got.IsPublished || got.IsDraft {
		t.Fatalf("expected published non-draft, got %+v", got)
	}
	d, _ := st.Get(ctx, store.Events, e.ID)
	if d["isDraft"] != false || d["isPublished"] != true {
		t.Fatalf("expected stored flags updated, got %v", d)
	}

	if _, err := c.SetPublished(ctx, "missing", true); !errors.Is(err, errs.ErrEventNotFound) {
		t.Fatalf("expected event not found, got %v", err)
	}
}

func TestStoreFailureLeavesMirror(t *testing.T) {
	ctx := context.Background()
	st := storetest.NewFlaky(memstore.New())
	c := NewCatalog(st, fixedClock(now))
	e, _ := c.Save(ctx, models.Event{Title: "Ride", Date: day(3)})

	st.FailAllWrites()
	if _, err := c.SetPublished(ctx, e.ID, true); errs.KindOf(err) != errs.KindStore {
		t.Fatalf("expected store failure, got %v", err)
	}
	got, _ := c.Get(e.ID)
	if got.IsPublished {
		t.Fatal("expected mirror unchanged after failed write")
	}

	if _, err := c.SetWeather(ctx, e.ID, models.WeatherSnapshot{Temperature: 5}); err == nil {
		t.Fatal("expected weather write to fail")
	}
	got, _ = c.Get(e.ID)
	if got.Weather != nil {
		t.Fatal("expected no weather in mirror after failed write")
	}
}

func TestLoadFailure(t *testing.T) {
	st := storetest.NewFlaky(memstore.New())
	st.FailList[store.Events] = true
	c := NewCatalog(st, fixedClock(now))
	if err := c.Load(context.Background()); errs.CodeOf(err) != errs.CodeStoreFailure {
		t.Fatalf("expected store failure, got %v", err)
	}
}
