// Package weather fetches, normalises and caches weather snapshots.
package weather

import (
	"context"
	"errors"
	"time"
)

// ErrNotConfigured is returned by a source that has no credential.
var ErrNotConfigured = errors.New("weather source not configured")

// Observation is the raw reading a source returns for a point in time.
type Observation struct {
	Temperature float64 // °C
	// Sky is the sky-state code: 1 clear, 3 mostly cloudy, 4 overcast.
	Sky int
	// PrecipitationType is 0 for none, otherwise a rain or snow family code.
	PrecipitationType int
	Humidity          int     // %
	WindSpeed         float64 // m/s
	// PrecipitationProbability is the chance of precipitation in percent.
	PrecipitationProbability int
}

// Source returns the observation (or forecast) for target.
type Source interface {
	Name() string
	Fetch(ctx context.Context, target time.Time) (Observation, error)
}

// Clock returns the current time. Tests inject fixed clocks.
type Clock func() time.Time
