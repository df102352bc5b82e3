// Package teams keeps per-event team rosters.
package teams

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"club-events/internal/errs"
	"club-events/internal/models"
	"club-events/internal/store"
)

// PartialWriteError reports a roster replacement that stopped partway. The
// teams in Written reached the store; the in-memory roster was not replaced.
type PartialWriteError struct {
	EventID string
	Written []string
	Failed  string
	Err     error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("set teams for event %s: team %s failed after %d written: %v",
		e.EventID, e.Failed, len(e.Written), e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }

type Assigner struct {
	st    store.DocumentStore
	newID func() string

	mu      sync.RWMutex
	rosters map[string][]models.Team
}

func NewAssigner(st store.DocumentStore) *Assigner {
	return &Assigner{st: st, newID: uuid.NewString, rosters: map[string][]models.Team{}}
}

// Load rebuilds every roster from the teams collection, ordered by number.
func (a *Assigner) Load(ctx context.Context) error {
	docs, err := a.st.List(ctx, store.Teams)
	if err != nil {
		return errs.Store("list teams", err)
	}
	list, skipped := store.DecodeAll[models.Team](docs)
	if skipped > 0 {
		slog.Warn("teams_load_skipped", "count", skipped)
	}
	rosters := map[string][]models.Team{}
	for _, t := range list {
		rosters[t.EventID] = append(rosters[t.EventID], t)
	}
	for _, r := range rosters {
		sortRoster(r)
	}
	a.mu.Lock()
	a.rosters = rosters
	a.mu.Unlock()
	return nil
}

// SetTeamsForEvent replaces the roster of eventID. Each team is written on
// its own; the first failing write stops the run and is reported as a
// *PartialWriteError wrapping a store error, with the mirror left as it was.
// After a full write, stored teams that are no longer part of the roster are
// deleted on a best-effort basis.
func (a *Assigner) SetTeamsForEvent(ctx context.Context, eventID string, teams []models.Team) ([]models.Team, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, errs.New(errs.CodeInvalidInput, "event id is required")
	}

	next := make([]models.Team, 0, len(teams))
	keep := map[string]bool{}
	for i, t := range teams {
		t.ID = strings.TrimSpace(t.ID)
		if t.ID == "" {
			t.ID = a.newID()
		} else if keep[t.ID] {
			return nil, errs.New(errs.CodeInvalidInput, "team id %s is given twice", t.ID)
		}
		t.EventID = eventID
		if t.Number == 0 {
			t.Number = i + 1
		}
		if t.Members == nil {
			t.Members = []models.TeamMember{}
		} else {
			t.Members = append([]models.TeamMember(nil), t.Members...)
		}
		next = append(next, t)
		keep[t.ID] = true
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, t := range next {
		if other, ok := a.ownerLocked(ctx, t.ID); ok && other != eventID {
			return nil, errs.New(errs.CodeInvalidInput, "team id %s belongs to event %s", t.ID, other)
		}
	}

	written := make([]string, 0, len(next))
	for _, t := range next {
		doc, err := store.Encode(t)
		if err == nil {
			err = a.st.Set(ctx, store.Teams, t.ID, doc, false)
		}
		if err != nil {
			slog.Error("teams_write_failed", "event_id", eventID, "team_id", t.ID, "written", len(written), "err", err)
			return nil, &PartialWriteError{EventID: eventID, Written: written, Failed: t.ID, Err: errs.Store("set team", err)}
		}
		written = append(written, t.ID)
	}

	for _, id := range a.storedIDsLocked(ctx, eventID) {
		if keep[id] {
			continue
		}
		if err := a.st.Delete(ctx, store.Teams, id); err != nil {
			slog.Warn("teams_prune_failed", "event_id", eventID, "team_id", id, "err", err)
		}
	}

	sortRoster(next)
	a.rosters[eventID] = next
	slog.Info("team_event", "event", "roster_replaced", "event_id", eventID, "teams", len(next))
	return cloneRoster(next), nil
}

// storedIDsLocked lists the team ids stored for eventID, including teams
// left behind by an earlier partial write. A failed listing falls back to
// the in-memory roster.
func (a *Assigner) storedIDsLocked(ctx context.Context, eventID string) []string {
	docs, err := a.st.List(ctx, store.Teams, store.Where("eventId", eventID))
	if err != nil {
		slog.Warn("teams_prune_list_failed", "event_id", eventID, "err", err)
		ids := make([]string, 0, len(a.rosters[eventID]))
		for _, t := range a.rosters[eventID] {
			ids = append(ids, t.ID)
		}
		return ids
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		if id, ok := d["id"].(string); ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// ownerLocked reports which event a team id is already filed under.
func (a *Assigner) ownerLocked(ctx context.Context, teamID string) (string, bool) {
	for ev, roster := range a.rosters {
		for _, t := range roster {
			if t.ID == teamID {
				return ev, true
			}
		}
	}
	d, err := a.st.Get(ctx, store.Teams, teamID)
	if err != nil {
		return "", false
	}
	ev, ok := d["eventId"].(string)
	return ev, ok && ev != ""
}

// TeamsByEvent returns a copy of the roster, or an empty slice.
func (a *Assigner) TeamsByEvent(eventID string) []models.Team {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return cloneRoster(a.rosters[eventID])
}

// TeamOf returns the team a user is a member or leader of for an event.
func (a *Assigner) TeamOf(eventID, userID string) (models.Team, bool) {
	for _, t := range a.TeamsByEvent(eventID) {
		if t.LeaderID == userID {
			return t, true
		}
		for _, m := range t.Members {
			if m.UserID == userID {
				return t, true
			}
		}
	}
	return models.Team{}, false
}

func sortRoster(r []models.Team) {
	sort.SliceStable(r, func(i, j int) bool { return r[i].Number < r[j].Number })
}

func cloneRoster(r []models.Team) []models.Team {
	out := make([]models.Team, len(r))
	for i, t := range r {
		t.Members = append([]models.TeamMember(nil), t.Members...)
		out[i] = t
	}
	return out
}
