package tgbot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"club-events/internal/attendance"
	"club-events/internal/models"
	"club-events/internal/weather"
)

var eventDateLayouts = []string{"2006-01-02 15:04", "2006-01-02T15:04", "2006-01-02"}

// parseEventDate reads an admin-typed date as Korean local time, the zone
// the forecasts are published in.
func parseEventDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range eventDateLayouts {
		if t, err := time.ParseInLocation(layout, s, weather.KST); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// escapeMarkdown makes user-entered text safe inside a Markdown message.
func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// formatAmount renders 60000 as "60,000".
func formatAmount(n int64) string {
	s := strconv.FormatInt(n, 10)
	if n < 0 {
		return "-" + formatAmount(-n)
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func formatEvent(e models.Event, registered bool) string {
	var b strings.Builder
	if e.IsSpecial {
		b.WriteString("⭐ ")
	}
	fmt.Fprintf(&b, "*%s*\n📅 %s\n📍 %s\n", escapeMarkdown(e.Title), e.Date.In(weather.KST).Format("2006-01-02 15:04"), escapeMarkdown(e.Location))
	if e.MaxParticipants > 0 {
		fmt.Fprintf(&b, "👥 %d / %d\n", e.CurrentParticipants, e.MaxParticipants)
	} else {
		fmt.Fprintf(&b, "👥 %d registered\n", e.CurrentParticipants)
	}
	if strings.TrimSpace(e.Cost) != "" {
		fmt.Fprintf(&b, "💳 %s\n", escapeMarkdown(e.Cost))
	}
	if e.Weather != nil {
		fmt.Fprintf(&b, "🌦 %s %.0f°C\n", e.Weather.Condition, e.Weather.Temperature)
	}
	if registered {
		b.WriteString("\nYou are registered.")
	}
	return b.String()
}

func formatWeather(w models.WeatherSnapshot) string {
	return fmt.Sprintf("%s, %.0f°C (feels like %.0f°C)\n☔ %d%%  💧 %d%%  💨 %.1f m/s\nUV: %s",
		w.Condition, w.Temperature, w.FeelsLike, w.Precipitation, w.Humidity, w.WindSpeed, w.UVIndex)
}

func formatTeams(roster []models.Team) string {
	var b strings.Builder
	for i, t := range roster {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Team %d", t.Number)
		if t.LeaderName != "" {
			fmt.Fprintf(&b, " (leader: %s)", t.LeaderName)
		}
		b.WriteString("\n")
		for _, m := range t.Members {
			b.WriteString(" • " + m.Name)
			if m.Company != "" {
				b.WriteString(", " + m.Company)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func formatStats(s attendance.Stats) string {
	return fmt.Sprintf("📊 Attendance: %d%%\nPresent %d · Late %d · Absent %d · Excused %d (of %d)",
		s.AttendanceRate, s.Present, s.Late, s.Absent, s.Excused, s.Total)
}

func formatLeaderboard(all []attendance.Stats) string {
	var b strings.Builder
	b.WriteString("📊 Attendance ranking\n")
	for i, s := range all {
		name := s.UserName
		if name == "" {
			name = s.UserID
		}
		fmt.Fprintf(&b, "%d. %s: %d%% (%d/%d)\n", i+1, name, s.AttendanceRate, s.Present, s.Total)
	}
	return b.String()
}
