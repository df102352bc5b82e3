// Package attendance records who showed up and derives per-user statistics.
package attendance

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"club-events/internal/errs"
	"club-events/internal/metrics"
	"club-events/internal/models"
	"club-events/internal/store"
)

// MarkInput identifies the attendee, the outcome and the acting user.
type MarkInput struct {
	EventID    string
	UserID     string
	UserName   string
	Status     string
	RecordedBy string
}

// Stats summarises one user's records.
type Stats struct {
	UserID         string `json:"userId"`
	UserName       string `json:"userName"`
	Total          int    `json:"total"`
	Present        int    `json:"present"`
	Absent         int    `json:"absent"`
	Late           int    `json:"late"`
	Excused        int    `json:"excused"`
	AttendanceRate int    `json:"attendanceRate"` // percent, rounded
}

type Aggregator struct {
	st    store.DocumentStore
	now   func() time.Time
	newID func() string

	mu      sync.RWMutex
	records map[string]models.AttendanceRecord
}

func NewAggregator(st store.DocumentStore, now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	return &Aggregator{st: st, now: now, newID: uuid.NewString, records: map[string]models.AttendanceRecord{}}
}

// Load replaces the mirror with the stored attendance records.
func (a *Aggregator) Load(ctx context.Context) error {
	docs, err := a.st.List(ctx, store.Attendances)
	if err != nil {
		return errs.Store("list attendances", err)
	}
	list, skipped := store.DecodeAll[models.AttendanceRecord](docs)
	if skipped > 0 {
		slog.Warn("attendances_load_skipped", "count", skipped)
	}
	m := make(map[string]models.AttendanceRecord, len(list))
	for _, r := range list {
		m[r.ID] = r
	}
	a.mu.Lock()
	a.records = m
	a.mu.Unlock()
	return nil
}

// Mark upserts the record for (event, user). Check-in time is stamped for
// present and late and cleared for every other status.
func (a *Aggregator) Mark(ctx context.Context, in MarkInput) (models.AttendanceRecord, error) {
	in.EventID = strings.TrimSpace(in.EventID)
	in.UserID = strings.TrimSpace(in.UserID)
	if in.EventID == "" || in.UserID == "" {
		return models.AttendanceRecord{}, errs.New(errs.CodeInvalidInput, "event id and user id are required")
	}
	if !models.ValidAttendanceStatus(in.Status) {
		return models.AttendanceRecord{}, errs.New(errs.CodeInvalidStatus, "unknown attendance status %q", in.Status)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	var checkIn *time.Time
	if in.Status == models.AttendancePresent || in.Status == models.AttendanceLate {
		checkIn = &now
	}

	rec, exists := a.findLocked(in.EventID, in.UserID)
	if exists {
		patch := store.Doc{"attendanceStatus": in.Status, "checkInTime": nil, "updatedAt": now}
		if checkIn != nil {
			patch["checkInTime"] = now
		}
		if err := a.st.Update(ctx, store.Attendances, rec.ID, patch); err != nil {
			return models.AttendanceRecord{}, errs.Store("update attendance", err)
		}
		rec.Status = in.Status
		rec.CheckInTime = checkIn
		rec.UpdatedAt = now
	} else {
		rec = models.AttendanceRecord{
			ID:          a.newID(),
			EventID:     in.EventID,
			UserID:      in.UserID,
			UserName:    in.UserName,
			Status:      in.Status,
			CheckInTime: checkIn,
			RecordedBy:  in.RecordedBy,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		doc, err := store.Encode(rec)
		if err != nil {
			return models.AttendanceRecord{}, err
		}
		if err := a.st.Set(ctx, store.Attendances, rec.ID, doc, false); err != nil {
			return models.AttendanceRecord{}, errs.Store("create attendance", err)
		}
	}
	a.records[rec.ID] = rec

	metrics.AttendanceMarks.WithLabelValues(in.Status).Inc()
	slog.Info("attendance_event", "event", "attendance_marked", "event_id", in.EventID, "user_id", in.UserID, "status", in.Status, "created", !exists)
	return rec, nil
}

func (a *Aggregator) findLocked(eventID, userID string) (models.AttendanceRecord, bool) {
	for _, r := range a.records {
		if r.EventID == eventID && r.UserID == userID {
			return r, true
		}
	}
	return models.AttendanceRecord{}, false
}

// ListByEvent returns an event's records ordered by user name.
func (a *Aggregator) ListByEvent(eventID string) []models.AttendanceRecord {
	a.mu.RLock()
	out := []models.AttendanceRecord{}
	for _, r := range a.records {
		if r.EventID == eventID {
			out = append(out, r)
		}
	}
	a.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UserName == out[j].UserName {
			return out[i].UserID < out[j].UserID
		}
		return out[i].UserName < out[j].UserName
	})
	return out
}

// UserStats computes a user's statistics; false when they have no records.
func (a *Aggregator) UserStats(userID string) (Stats, bool) {
	a.mu.RLock()
	var recs []models.AttendanceRecord
	for _, r := range a.records {
		if r.UserID == userID {
			recs = append(recs, r)
		}
	}
	a.mu.RUnlock()
	return computeStats(userID, recs)
}

// AllStats computes statistics for every user with records, highest
// attendance rate first.
func (a *Aggregator) AllStats() []Stats {
	a.mu.RLock()
	byUser := map[string][]models.AttendanceRecord{}
	for _, r := range a.records {
		byUser[r.UserID] = append(byUser[r.UserID], r)
	}
	a.mu.RUnlock()

	out := make([]Stats, 0, len(byUser))
	for userID, recs := range byUser {
		if s, ok := computeStats(userID, recs); ok {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].AttendanceRate == out[j].AttendanceRate {
			return out[i].UserID < out[j].UserID
		}
		return out[i].AttendanceRate > out[j].AttendanceRate
	})
	return out
}

func computeStats(userID string, recs []models.AttendanceRecord) (Stats, bool) {
	if len(recs) == 0 {
		return Stats{}, false
	}
	s := Stats{UserID: userID, Total: len(recs)}
	var latest time.Time
	for _, r := range recs {
		switch r.Status {
		case models.AttendancePresent:
			s.Present++
		case models.AttendanceAbsent:
			s.Absent++
		case models.AttendanceLate:
			s.Late++
		case models.AttendanceExcused:
			s.Excused++
		}
		if r.UserName != "" && !r.UpdatedAt.Before(latest) {
			s.UserName = r.UserName
			latest = r.UpdatedAt
		}
	}
	s.AttendanceRate = int(math.Round(float64(s.Present) / float64(s.Total) * 100))
	return s, true
}
