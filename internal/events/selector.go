package events

import (
	"sort"
	"time"

	"club-events/internal/models"
)

// CountActive returns the number of non-cancelled participations for eventID.
func CountActive(participations []models.Participation, eventID string) int {
	n := 0
	for _, p := range participations {
		if p.EventID == eventID && p.Active() {
			n++
		}
	}
	return n
}

// Upcoming returns published, non-draft events dated at or after now,
// ordered by date.
func Upcoming(events []models.Event, now time.Time) []models.Event {
	out := make([]models.Event, 0, len(events))
	for _, e := range events {
		if e.IsDraft || !e.IsPublished || e.Date.Before(now) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Select picks the nearest upcoming published event whose IsSpecial equals
// special. The returned copy carries the live participant count. It has no
// side effects and must be called again after any change to its inputs.
func Select(events []models.Event, participations []models.Participation, special bool, now time.Time) (models.Event, bool) {
	for _, e := range Upcoming(events, now) {
		if e.IsSpecial != special {
			continue
		}
		e.CurrentParticipants = CountActive(participations, e.ID)
		return e, true
	}
	return models.Event{}, false
}
