package attendance

import (
	"context"
	"testing"
	"time"

	"club-events/internal/errs"
	"club-events/internal/models"
	"club-events/internal/store"
	"club-events/internal/store/memstore"
	"club-events/internal/store/storetest"
)

var now = time.Date(2026, 2, 15, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return now }

func mark(t *testing.T, a *Aggregator, eventID, userID, status string) models.AttendanceRecord {
	t.Helper()
	rec, err := a.Mark(context.Background(), MarkInput{EventID: eventID, UserID: userID, UserName: "name-" + userID, Status: status, RecordedBy: "admin"})
	if err != nil {
		t.Fatalf("mark %s/%s: %v", eventID, userID, err)
	}
	return rec
}

func TestUserStats(t *testing.T) {
	a := NewAggregator(memstore.New(), fixedClock)
	mark(t, a, "E1", "U1", models.AttendancePresent)
	mark(t, a, "E2", "U1", models.AttendancePresent)
	mark(t, a, "E3", "U1", models.AttendanceAbsent)
	mark(t, a, "E4", "U1", models.AttendanceLate)

	s, ok := a.UserStats("U1")
	if !ok {
		t.Fatal("expected stats")
	}
	if s.Total != 4 || s.Present != 2 || s.Absent != 1 || s.Late != 1 || s.Excused != 0 {
		t.Fatalf("unexpected counts %+v", s)
	}
	if s.AttendanceRate != 50 {
		t.Fatalf("expected rate 50, got %d", s.AttendanceRate)
	}

	if _, ok := a.UserStats("nobody"); ok {
		t.Fatal("expected no stats for a user without records")
	}
}

func TestAttendanceRateRounds(t *testing.T) {
	a := NewAggregator(memstore.New(), fixedClock)
	mark(t, a, "E1", "U1", models.AttendancePresent)
	mark(t, a, "E2", "U1", models.AttendancePresent)
	mark(t, a, "E3", "U1", models.AttendanceExcused)

	s, _ := a.UserStats("U1")
	if s.AttendanceRate != 67 {
		t.Fatalf("expected 67, got %d", s.AttendanceRate)
	}
}

func TestMarkUpsertsAndCheckIn(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	a := NewAggregator(st, fixedClock)

	first := mark(t, a, "E1", "U1", models.AttendancePresent)
	if first.CheckInTime == nil || !first.CheckInTime.Equal(now) {
		t.Fatalf("expected check-in stamped, got %+v", first.CheckInTime)
	}

	second := mark(t, a, "E1", "U1", models.AttendanceExcused)
	if second.ID != first.ID {
		t.Fatalf("expected upsert on same record, got %s and %s", first.ID, second.ID)
	}
	if second.CheckInTime != nil {
		t.Fatal("expected check-in cleared for excused")
	}
	if len(a.ListByEvent("E1")) != 1 {
		t.Fatal("expected one record per event and user")
	}

	reloaded := NewAggregator(st, fixedClock)
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	recs := reloaded.ListByEvent("E1")
	if len(recs) != 1 || recs[0].Status != models.AttendanceExcused || recs[0].CheckInTime != nil {
		t.Fatalf("unexpected reloaded record %+v", recs)
	}

	late := mark(t, a, "E1", "U1", models.AttendanceLate)
	if late.CheckInTime == nil {
		t.Fatal("expected check-in stamped for late")
	}
}

func TestMarkValidation(t *testing.T) {
	a := NewAggregator(memstore.New(), fixedClock)
	ctx := context.Background()
	if _, err := a.Mark(ctx, MarkInput{EventID: "E1", UserID: "U1", Status: "sleeping"}); errs.CodeOf(err) != errs.CodeInvalidStatus {
		t.Fatalf("expected invalid status, got %v", err)
	}
	if _, err := a.Mark(ctx, MarkInput{UserID: "U1", Status: models.AttendancePresent}); errs.CodeOf(err) != errs.CodeInvalidInput {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestMarkStoreFailure(t *testing.T) {
	st := storetest.NewFlaky(memstore.New())
	st.FailWritesTo(store.Attendances)
	a := NewAggregator(st, fixedClock)
	_, err := a.Mark(context.Background(), MarkInput{EventID: "E1", UserID: "U1", Status: models.AttendancePresent})
	if errs.KindOf(err) != errs.KindStore {
		t.Fatalf("expected store failure, got %v", err)
	}
	if _, ok := a.UserStats("U1"); ok {
		t.Fatal("expected nothing mirrored after failure")
	}
}

func TestAllStatsOrder(t *testing.T) {
	a := NewAggregator(memstore.New(), fixedClock)
	mark(t, a, "E1", "U2", models.AttendanceAbsent)
	mark(t, a, "E1", "U1", models.AttendancePresent)
	mark(t, a, "E1", "U3", models.AttendancePresent)
	mark(t, a, "E2", "U3", models.AttendanceAbsent)

	all := a.AllStats()
	if len(all) != 3 {
		t.Fatalf("expected 3 users, got %d", len(all))
	}
	want := []string{"U1", "U3", "U2"}
	for i, id := range want {
		if all[i].UserID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, all[i].UserID)
		}
	}
	if all[0].UserName != "name-U1" {
		t.Fatalf("expected user name carried, got %q", all[0].UserName)
	}
}
