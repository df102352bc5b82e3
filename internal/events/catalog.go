// Package events owns the event mirror and the pure current/special event
// derivation.
package events

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"club-events/internal/errs"
	"club-events/internal/models"
	"club-events/internal/store"
)

// Catalog mirrors the events collection. Writes hit the store first; the
// mirror changes only after the store accepted them.
type Catalog struct {
	st  store.DocumentStore
	now func() time.Time

	mu     sync.RWMutex
	events map[string]models.Event
}

func NewCatalog(st store.DocumentStore, now func() time.Time) *Catalog {
	if now == nil {
		now = time.Now
	}
	return &Catalog{st: st, now: now, events: map[string]models.Event{}}
}

// Load replaces the mirror with the stored events.
func (c *Catalog) Load(ctx context.Context) error {
	docs, err := c.st.List(ctx, store.Events)
	if err != nil {
		return errs.Store("list events", err)
	}
	list, skipped := store.DecodeAll[models.Event](docs)
	if skipped > 0 {
		slog.Warn("events_load_skipped", "count", skipped)
	}
	m := make(map[string]models.Event, len(list))
	for _, e := range list {
		m[e.ID] = e
	}
	c.mu.Lock()
	c.events = m
	c.mu.Unlock()
	return nil
}

// Get returns the mirrored event.
func (c *Catalog) Get(id string) (models.Event, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.events[id]
	return e, ok
}

// List returns all mirrored events ordered by date.
func (c *Catalog) List() []models.Event {
	c.mu.RLock()
	out := make([]models.Event, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e)
	}
	c.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Cost returns the free-text cost of an event.
func (c *Catalog) Cost(id string) (string, bool) {
	e, ok := c.Get(id)
	return e.Cost, ok
}

// Save creates or fully replaces an event. A missing ID is generated.
func (c *Catalog) Save(ctx context.Context, e models.Event) (models.Event, error) {
	now := c.now()
	if e.ID == "" {
		e.ID = uuid.NewString()
		e.CreatedAt = now
	} else if prev, ok := c.Get(e.ID); ok {
		e.CreatedAt = prev.CreatedAt
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	doc, err := store.Encode(e)
	if err != nil {
		return models.Event{}, err
	}
	if err := c.st.Set(ctx, store.Events, e.ID, doc, false); err != nil {
		return models.Event{}, errs.Store("save event", err)
	}
	c.put(e)
	slog.Info("event_event", "event", "event_saved", "event_id", e.ID, "published", e.IsPublished)
	return e, nil
}

// SetPublished flips publication and clears the draft flag when publishing.
func (c *Catalog) SetPublished(ctx context.Context, id string, published bool) (models.Event, error) {
	e, ok := c.Get(id)
	if !ok {
		return models.Event{}, errs.ErrEventNotFound
	}
	patch := store.Doc{"isPublished": published, "updatedAt": c.now()}
	if published {
		patch["isDraft"] = false
	}
	if err := c.update(ctx, id, patch); err != nil {
		return models.Event{}, err
	}
	e.IsPublished = published
	if published {
		e.IsDraft = false
	}
	e.UpdatedAt = patch["updatedAt"].(time.Time)
	c.put(e)
	return e, nil
}

// SetWeather stores a new weather snapshot on the event.
func (c *Catalog) SetWeather(ctx context.Context, id string, w models.WeatherSnapshot) (models.Event, error) {
	e, ok := c.Get(id)
	if !ok {
		return models.Event{}, errs.ErrEventNotFound
	}
	wd, err := store.Encode(w)
	if err != nil {
		return models.Event{}, err
	}
	if err := c.update(ctx, id, store.Doc{"weather": wd}); err != nil {
		return models.Event{}, err
	}
	e.Weather = &w
	c.put(e)
	return e, nil
}

func (c *Catalog) update(ctx context.Context, id string, patch store.Doc) error {
	if err := c.st.Update(ctx, store.Events, id, patch); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errs.ErrEventNotFound
		}
		return errs.Store("update event", err)
	}
	return nil
}

func (c *Catalog) put(e models.Event) {
	c.mu.Lock()
	c.events[e.ID] = e
	c.mu.Unlock()
}
