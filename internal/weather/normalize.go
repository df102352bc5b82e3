package weather

import (
	"math"
	"time"

	"club-events/internal/models"
)

// Sky-state and precipitation-type codes of the forecast feed.
const (
	SkyClear        = 1
	SkyMostlyCloudy = 3
	SkyOvercast     = 4

	PrecipNone       = 0
	PrecipRain       = 1
	PrecipRainSnow   = 2
	PrecipSnow       = 3
	PrecipShower     = 4
	PrecipDrizzle    = 5
	PrecipSleet      = 6
	PrecipSnowFlurry = 7
)

// isSnowFamily reports precipitation codes that carry snow.
func isSnowFamily(code int) bool {
	switch code {
	case PrecipRainSnow, PrecipSnow, PrecipSleet, PrecipSnowFlurry:
		return true
	}
	return false
}

// Condition maps the precipitation code first and the sky code second.
func Condition(obs Observation) string {
	if obs.PrecipitationType != PrecipNone {
		if isSnowFamily(obs.PrecipitationType) {
			return models.ConditionSnowy
		}
		return models.ConditionRainy
	}
	if obs.Sky == SkyClear {
		return models.ConditionSunny
	}
	return models.ConditionCloudy
}

// FeelsLike is temperature minus half the wind speed, rounded.
func FeelsLike(temperature, windSpeed float64) float64 {
	return math.Round(temperature - windSpeed*0.5)
}

// EstimateUV buckets UV exposure from condition and temperature.
func EstimateUV(condition string, temperature float64) string {
	switch condition {
	case models.ConditionRainy, models.ConditionSnowy:
		return models.UVLow
	case models.ConditionCloudy:
		if temperature > 20 {
			return models.UVModerate
		}
		return models.UVLow
	}
	switch {
	case temperature > 25:
		return models.UVVeryHigh
	case temperature > 20:
		return models.UVHigh
	default:
		return models.UVModerate
	}
}

// Normalize turns a raw observation into a snapshot stamped at now.
func Normalize(obs Observation, now time.Time) models.WeatherSnapshot {
	cond := Condition(obs)
	return models.WeatherSnapshot{
		Temperature:   obs.Temperature,
		FeelsLike:     FeelsLike(obs.Temperature, obs.WindSpeed),
		Condition:     cond,
		Precipitation: obs.PrecipitationProbability,
		WindSpeed:     obs.WindSpeed,
		Humidity:      obs.Humidity,
		UVIndex:       EstimateUV(cond, obs.Temperature),
		LastUpdated:   now,
	}
}

// Fallback is the fixed snapshot served whenever no source reading is
// available. Only LastUpdated varies.
func Fallback(now time.Time) models.WeatherSnapshot {
	return models.WeatherSnapshot{
		Temperature:   20,
		FeelsLike:     19,
		Condition:     models.ConditionCloudy,
		Precipitation: 20,
		WindSpeed:     2,
		Humidity:      60,
		UVIndex:       models.UVLow,
		LastUpdated:   now,
	}
}
