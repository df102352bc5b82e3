// Package core wires the event, registration, payment, team, attendance and
// weather components over one document store.
package core

import (
	"context"
	"time"

	"club-events/internal/attendance"
	"club-events/internal/events"
	"club-events/internal/models"
	"club-events/internal/payments"
	"club-events/internal/registrar"
	"club-events/internal/store"
	"club-events/internal/teams"
	"club-events/internal/weather"
)

type Options struct {
	Now           func() time.Time
	WeatherSource weather.Source // nil: always serve the fallback
	WeatherCache  weather.Cache
}

type Service struct {
	Events     *events.Catalog
	Registrar  *registrar.Registrar
	Payments   *payments.Provisioner
	Teams      *teams.Assigner
	Attendance *attendance.Aggregator
	Weather    *weather.Service

	now func() time.Time
}

func New(st store.DocumentStore, o Options) *Service {
	now := o.Now
	if now == nil {
		now = time.Now
	}
	catalog := events.NewCatalog(st, now)
	prov := payments.NewProvisioner(st, now)
	return &Service{
		Events:     catalog,
		Registrar:  registrar.New(st, catalog, prov, now),
		Payments:   prov,
		Teams:      teams.NewAssigner(st),
		Attendance: attendance.NewAggregator(st, now),
		Weather:    weather.NewService(o.WeatherSource, o.WeatherCache, catalog, weather.Clock(now)),
		now:        now,
	}
}

// Load fills every mirror from the store.
func (s *Service) Load(ctx context.Context) error {
	for _, load := range []func(context.Context) error{
		s.Events.Load,
		s.Registrar.Load,
		s.Payments.Load,
		s.Teams.Load,
		s.Attendance.Load,
	} {
		if err := load(ctx); err != nil {
			return err
		}
	}
	return nil
}

// CurrentEvent is the nearest upcoming regular event, recomputed per call.
func (s *Service) CurrentEvent() (models.Event, bool) {
	return events.Select(s.Events.List(), s.Registrar.All(), false, s.now())
}

// SpecialEvent is the nearest upcoming special event, recomputed per call.
func (s *Service) SpecialEvent() (models.Event, bool) {
	return events.Select(s.Events.List(), s.Registrar.All(), true, s.now())
}

// Event returns any event with its live participant count.
func (s *Service) Event(id string) (models.Event, bool) {
	e, ok := s.Events.Get(id)
	if !ok {
		return models.Event{}, false
	}
	e.CurrentParticipants = events.CountActive(s.Registrar.ListByEvent(id), id)
	return e, true
}
