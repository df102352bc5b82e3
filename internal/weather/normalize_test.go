package weather

import (
	"testing"
	"time"

	"club-events/internal/models"
)

func TestCondition(t *testing.T) {
	cases := []struct {
		name string
		obs  Observation
		want string
	}{
		{"clear sky", Observation{Sky: SkyClear}, models.ConditionSunny},
		{"mostly cloudy", Observation{Sky: SkyMostlyCloudy}, models.ConditionCloudy},
		{"overcast", Observation{Sky: SkyOvercast}, models.ConditionCloudy},
		{"rain beats clear sky", Observation{Sky: SkyClear, PrecipitationType: PrecipRain}, models.ConditionRainy},
		{"shower", Observation{PrecipitationType: PrecipShower}, models.ConditionRainy},
		{"drizzle", Observation{PrecipitationType: PrecipDrizzle}, models.ConditionRainy},
		{"rain and snow", Observation{PrecipitationType: PrecipRainSnow}, models.ConditionSnowy},
		{"snow", Observation{PrecipitationType: PrecipSnow}, models.ConditionSnowy},
		{"sleet", Observation{PrecipitationType: PrecipSleet}, models.ConditionSnowy},
		{"flurry", Observation{PrecipitationType: PrecipSnowFlurry}, models.ConditionSnowy},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Condition(tc.obs); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestFeelsLike(t *testing.T) {
	if got := FeelsLike(10, 4); got != 8 {
		t.Fatalf("expected 8, got %v", got)
	}
	if got := FeelsLike(3.4, 1.5); got != 3 {
		t.Fatalf("expected 3, got %v", got)
	}
}

func TestEstimateUV(t *testing.T) {
	cases := []struct {
		cond string
		temp float64
		want string
	}{
		{models.ConditionRainy, 30, models.UVLow},
		{models.ConditionSnowy, -2, models.UVLow},
		{models.ConditionCloudy, 21, models.UVModerate},
		{models.ConditionCloudy, 20, models.UVLow},
		{models.ConditionSunny, 26, models.UVVeryHigh},
		{models.ConditionSunny, 22, models.UVHigh},
		{models.ConditionSunny, 15, models.UVModerate},
	}
	for _, tc := range cases {
		if got := EstimateUV(tc.cond, tc.temp); got != tc.want {
			t.Errorf("EstimateUV(%s, %v) = %s, want %s", tc.cond, tc.temp, got, tc.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	got := Normalize(Observation{Temperature: 22, Sky: SkyClear, Humidity: 40, WindSpeed: 2, PrecipitationProbability: 10}, now)
	want := models.WeatherSnapshot{
		Temperature: 22, FeelsLike: 21, Condition: models.ConditionSunny,
		Precipitation: 10, WindSpeed: 2, Humidity: 40, UVIndex: models.UVHigh, LastUpdated: now,
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestFallback(t *testing.T) {
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	f := Fallback(now)
	if f.Temperature != 20 || f.FeelsLike != 19 || f.Condition != models.ConditionCloudy || f.Precipitation != 20 ||
		f.WindSpeed != 2 || f.Humidity != 60 || f.UVIndex != models.UVLow || !f.LastUpdated.Equal(now) {
		t.Fatalf("unexpected fallback %+v", f)
	}
}
