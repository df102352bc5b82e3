// Package registrar owns the participation lifecycle: register, cancel,
// status changes and team assignment.
package registrar

import (
	"context"
	"errors"
	"log/slog"
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

// EventLookup resolves the cost text of an event.
type EventLookup interface {
	Cost(eventID string) (string, bool)
}

// PaymentProvisioner creates the payment that follows a registration.
type PaymentProvisioner interface {
	CreateForParticipation(ctx context.Context, part models.Participation, costText string) (models.Payment, bool, error)
}

// RegisterInput carries the registrant's identity.
type RegisterInput struct {
	EventID   string
	UserID    string
	UserName  string
	UserEmail string
	IsGuest   bool
}

// RegisterResult is a successful registration. Payment is nil when
// provisioning failed; the registration stands regardless.
type RegisterResult struct {
	Participation models.Participation
	Payment       *models.Payment
}

type Registrar struct {
	st       store.DocumentStore
	events   EventLookup
	payments PaymentProvisioner
	now      func() time.Time
	newID    func() string

	// mu is held across the duplicate check and the store write, so one
	// process never admits two active registrations for the same key.
	mu    sync.RWMutex
	parts map[string]models.Participation
}

func New(st store.DocumentStore, events EventLookup, payments PaymentProvisioner, now func() time.Time) *Registrar {
	if now == nil {
		now = time.Now
	}
	return &Registrar{
		st:       st,
		events:   events,
		payments: payments,
		now:      now,
		newID:    uuid.NewString,
		parts:    map[string]models.Participation{},
	}
}

// Load replaces the mirror with stored participations. Records from the
// legacy participants collection are merged in unless a participation with
// the same id exists.
func (r *Registrar) Load(ctx context.Context) error {
	docs, err := r.st.List(ctx, store.Participations)
	if err != nil {
		return errs.Store("list participations", err)
	}
	current, skipped := store.DecodeAll[models.Participation](docs)

	legacyDocs, err := r.st.List(ctx, store.Participants)
	if err != nil {
		return errs.Store("list participants", err)
	}
	legacy, legacySkipped := store.DecodeAll[models.Participation](legacyDocs)
	if skipped+legacySkipped > 0 {
		slog.Warn("participations_load_skipped", "count", skipped+legacySkipped)
	}

	m := make(map[string]models.Participation, len(current)+len(legacy))
	for _, p := range current {
		m[p.ID] = p
	}
	for _, p := range legacy {
		if _, ok := m[p.ID]; ok || p.ID == "" {
			continue
		}
		if p.Status == "" {
			p.Status = models.StatusPending
		}
		m[p.ID] = p
	}

	r.mu.Lock()
	r.parts = m
	r.mu.Unlock()
	return nil
}

// Register creates a pending participation and then provisions its payment.
// A second active registration for the same event and user fails with
// errs.CodeDuplicateRegistration and touches nothing.
func (r *Registrar) Register(ctx context.Context, in RegisterInput) (RegisterResult, error) {
	in.EventID = strings.TrimSpace(in.EventID)
	in.UserID = strings.TrimSpace(in.UserID)
	if in.EventID == "" || in.UserID == "" {
		return RegisterResult{}, errs.New(errs.CodeInvalidInput, "event id and user id are required")
	}
	cost, ok := r.events.Cost(in.EventID)
	if !ok {
		return RegisterResult{}, errs.ErrEventNotFound
	}

	part, err := r.insert(ctx, in)
	if err != nil {
		return RegisterResult{}, err
	}

	res := RegisterResult{Participation: part}
	if r.payments == nil {
		return res, nil
	}
	pay, _, err := r.payments.CreateForParticipation(ctx, part, cost)
	if err != nil {
		slog.Error("payment_provision_failed", "participation_id", part.ID, "event_id", part.EventID, "err", err)
		return res, nil
	}
	res.Payment = &pay
	return res, nil
}

func (r *Registrar) insert(ctx context.Context, in RegisterInput) (models.Participation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.findActiveLocked(in.EventID, in.UserID); ok {
		metrics.Registrations.WithLabelValues("duplicate").Inc()
		slog.Info("registration_event", "event", "duplicate_rejected", "event_id", in.EventID, "user_id", in.UserID, "participation_id", existing.ID)
		return models.Participation{}, errs.New(errs.CodeDuplicateRegistration, "user %s is already registered for event %s", in.UserID, in.EventID)
	}

	now := r.now()
	part := models.Participation{
		ID:           r.newID(),
		EventID:      in.EventID,
		UserID:       in.UserID,
		UserName:     in.UserName,
		UserEmail:    in.UserEmail,
		IsGuest:      in.IsGuest,
		Status:       models.StatusPending,
		RegisteredAt: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	doc, err := store.Encode(part)
	if err != nil {
		return models.Participation{}, err
	}
	if err := r.st.Set(ctx, store.Participations, part.ID, doc, false); err != nil {
		if errors.Is(err, store.ErrConflict) {
			metrics.Registrations.WithLabelValues("duplicate").Inc()
			return models.Participation{}, errs.New(errs.CodeDuplicateRegistration, "user %s is already registered for event %s", in.UserID, in.EventID)
		}
		metrics.Registrations.WithLabelValues("error").Inc()
		return models.Participation{}, errs.Store("create participation", err)
	}
	r.parts[part.ID] = part

	metrics.Registrations.WithLabelValues("created").Inc()
	slog.Info("registration_event", "event", "participation_created", "participation_id", part.ID, "event_id", part.EventID, "user_id", part.UserID, "guest", part.IsGuest)
	return part, nil
}

// Cancel soft-cancels a participation. The record is kept for audit.
// Cancelling an already cancelled participation is a no-op.
func (r *Registrar) Cancel(ctx context.Context, id, reason string) (models.Participation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.parts[id]
	if !ok {
		return models.Participation{}, errs.ErrParticipationNotFound
	}
	if p.Status == models.StatusCancelled {
		return p, nil
	}
	now := r.now()
	patch := store.Doc{
		"status":             models.StatusCancelled,
		"cancelledAt":        now,
		"cancellationReason": reason,
		"updatedAt":          now,
	}
	if err := r.update(ctx, id, patch); err != nil {
		return models.Participation{}, err
	}
	p.Status = models.StatusCancelled
	p.CancelledAt = &now
	p.CancellationReason = reason
	p.UpdatedAt = now
	r.parts[id] = p

	metrics.Cancellations.Inc()
	slog.Info("registration_event", "event", "participation_cancelled", "participation_id", id, "event_id", p.EventID, "reason", reason)
	return p, nil
}

// UpdateStatus changes only the status. Reactivating a cancelled
// participation is refused when the user already holds another active one.
func (r *Registrar) UpdateStatus(ctx context.Context, id, status string) (models.Participation, error) {
	if !models.ValidParticipationStatus(status) {
		return models.Participation{}, errs.New(errs.CodeInvalidStatus, "unknown participation status %q", status)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.parts[id]
	if !ok {
		return models.Participation{}, errs.ErrParticipationNotFound
	}
	if !p.Active() && status != models.StatusCancelled {
		if other, ok := r.findActiveLocked(p.EventID, p.UserID); ok && other.ID != id {
			return models.Participation{}, errs.New(errs.CodeDuplicateRegistration, "user %s is already registered for event %s", p.UserID, p.EventID)
		}
	}
	now := r.now()
	if err := r.update(ctx, id, store.Doc{"status": status, "updatedAt": now}); err != nil {
		return models.Participation{}, err
	}
	p.Status = status
	p.UpdatedAt = now
	r.parts[id] = p
	return p, nil
}

// AssignTeam sets only the team fields.
func (r *Registrar) AssignTeam(ctx context.Context, id, teamID, teamName string) (models.Participation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.parts[id]
	if !ok {
		return models.Participation{}, errs.ErrParticipationNotFound
	}
	now := r.now()
	if err := r.update(ctx, id, store.Doc{"teamId": teamID, "teamName": teamName, "updatedAt": now}); err != nil {
		return models.Participation{}, err
	}
	p.TeamID = teamID
	p.TeamName = teamName
	p.UpdatedAt = now
	r.parts[id] = p
	return p, nil
}

// update writes a patch. Legacy records live in the old collection, so a
// missing participation document is recreated there from the mirror.
func (r *Registrar) update(ctx context.Context, id string, patch store.Doc) error {
	err := r.st.Update(ctx, store.Participations, id, patch)
	if errors.Is(err, store.ErrNotFound) {
		doc, encErr := store.Encode(r.parts[id])
		if encErr != nil {
			return encErr
		}
		err = r.st.Set(ctx, store.Participations, id, store.Merge(doc, patch), false)
	}
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return errs.New(errs.CodeDuplicateRegistration, "participation %s conflicts with an active registration", id)
		}
		return errs.Store("update participation", err)
	}
	return nil
}

// Get returns a mirrored participation.
func (r *Registrar) Get(id string) (models.Participation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.parts[id]
	return p, ok
}

// FindActive returns the user's non-cancelled participation for an event.
func (r *Registrar) FindActive(eventID, userID string) (models.Participation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.findActiveLocked(eventID, userID)
}

func (r *Registrar) findActiveLocked(eventID, userID string) (models.Participation, bool) {
	for _, p := range r.parts {
		if p.EventID == eventID && p.UserID == userID && p.Active() {
			return p, true
		}
	}
	return models.Participation{}, false
}

// All returns every participation ordered by registration time.
func (r *Registrar) All() []models.Participation {
	return r.filter(func(models.Participation) bool { return true })
}

// ListByEvent returns an event's participations, cancelled ones included.
func (r *Registrar) ListByEvent(eventID string) []models.Participation {
	return r.filter(func(p models.Participation) bool { return p.EventID == eventID })
}

// ListByUser returns a user's participations across events.
func (r *Registrar) ListByUser(userID string) []models.Participation {
	return r.filter(func(p models.Participation) bool { return p.UserID == userID })
}

func (r *Registrar) filter(keep func(models.Participation) bool) []models.Participation {
	r.mu.RLock()
	out := []models.Participation{}
	for _, p := range r.parts {
		if keep(p) {
			out = append(out, p)
		}
	}
	r.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RegisteredAt.Equal(out[j].RegisteredAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].RegisteredAt.Before(out[j].RegisteredAt)
	})
	return out
}
