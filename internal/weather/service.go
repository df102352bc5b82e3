package weather

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"club-events/internal/errs"
	"club-events/internal/events"
	"club-events/internal/metrics"
	"club-events/internal/models"
)

// CurrentTTL is how long a current-weather fetch is shared by all callers.
const CurrentTTL = 10 * time.Minute

// EventStore is the part of the event catalog the weather tier writes to.
type EventStore interface {
	Get(id string) (models.Event, bool)
	List() []models.Event
	SetWeather(ctx context.Context, id string, w models.WeatherSnapshot) (models.Event, error)
}

// Service combines the source with the two cache tiers. Source failures are
// never returned; the fallback snapshot is served instead.
type Service struct {
	source Source // nil when unconfigured
	cache  Cache
	events EventStore
	now    Clock
}

func NewService(source Source, cache Cache, events EventStore, now Clock) *Service {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if now == nil {
		now = time.Now
	}
	return &Service{source: source, cache: cache, events: events, now: now}
}

// Current returns the current weather, served from the shared cache while
// the last successful fetch is younger than CurrentTTL.
func (s *Service) Current(ctx context.Context) models.WeatherSnapshot {
	now := s.now()
	if e, ok := s.cache.Get(); ok && now.Sub(e.FetchedAt) < CurrentTTL {
		metrics.WeatherCacheHits.Inc()
		return e.Snapshot
	}
	snap, ok := s.fetch(ctx, now)
	if ok {
		s.cache.Set(Entry{Snapshot: snap, FetchedAt: now})
	}
	return snap
}

// ForDate returns a snapshot for date without touching either cache.
func (s *Service) ForDate(ctx context.Context, date time.Time) models.WeatherSnapshot {
	snap, _ := s.fetch(ctx, date)
	return snap
}

// ClearCurrent drops the shared current-weather entry.
func (s *Service) ClearCurrent() { s.cache.Clear() }

// fetch reads the source for target; ok is false when the fallback was used.
func (s *Service) fetch(ctx context.Context, target time.Time) (models.WeatherSnapshot, bool) {
	now := s.now()
	if s.source == nil {
		metrics.WeatherFetches.WithLabelValues("fallback").Inc()
		return Fallback(now), false
	}
	obs, err := s.source.Fetch(ctx, target)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			metrics.WeatherFetches.WithLabelValues("fallback").Inc()
		} else {
			metrics.WeatherFetches.WithLabelValues("error").Inc()
			slog.Warn("weather_fetch_failed", "source", s.source.Name(), "target", target.Format(time.RFC3339), "err", err)
		}
		return Fallback(now), false
	}
	metrics.WeatherFetches.WithLabelValues("ok").Inc()
	return Normalize(obs, now), true
}

// CheckAndUpdate refreshes the event's snapshot when it is missing or older
// than models.WeatherFreshness. updated is false for the no-op case. Only a
// failed store write is returned as an error.
func (s *Service) CheckAndUpdate(ctx context.Context, eventID string) (ev models.Event, updated bool, err error) {
	ev, ok := s.events.Get(eventID)
	if !ok {
		return models.Event{}, false, errs.ErrEventNotFound
	}
	if ev.Weather.IsFresh(s.now()) {
		return ev, false, nil
	}
	snap, _ := s.fetch(ctx, ev.Date)
	ev, err = s.events.SetWeather(ctx, eventID, snap)
	if err != nil {
		return models.Event{}, false, err
	}
	slog.Info("weather_event", "event", "event_weather_updated", "event_id", eventID, "condition", snap.Condition)
	return ev, true, nil
}

// RefreshUpcoming runs CheckAndUpdate over every upcoming published event.
// Failures are logged and skipped; the number of refreshed events is returned.
func (s *Service) RefreshUpcoming(ctx context.Context) int {
	n := 0
	for _, ev := range events.Upcoming(s.events.List(), s.now()) {
		if ctx.Err() != nil {
			break
		}
		_, updated, err := s.CheckAndUpdate(ctx, ev.ID)
		if err != nil {
			slog.Warn("weather_refresh_failed", "event_id", ev.ID, "err", err)
			continue
		}
		if updated {
			n++
		}
	}
	return n
}
