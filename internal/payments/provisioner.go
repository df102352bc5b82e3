package payments

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"club-events/internal/errs"
	"club-events/internal/metrics"
	"club-events/internal/models"
	"club-events/internal/store"
)

// PendingMemo is the memo of a freshly provisioned payment.
const PendingMemo = "registration pending payment"

// ParseAmount keeps only the digits of a free-text cost ("60,000원" -> 60000).
// Empty, digit-free or overflowing input yields 0.
func ParseAmount(cost string) int64 {
	var b strings.Builder
	for _, r := range cost {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0
	}
	n, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Provisioner creates and transitions payment records. It mirrors the
// payments collection; each operation is an independent field update with no
// transaction spanning the participation record.
type Provisioner struct {
	st    store.DocumentStore
	now   func() time.Time
	newID func() string

	mu       sync.RWMutex
	payments map[string]models.Payment
	byPart   map[string]string // participationID -> paymentID
}

func NewProvisioner(st store.DocumentStore, now func() time.Time) *Provisioner {
	if now == nil {
		now = time.Now
	}
	return &Provisioner{
		st:       st,
		now:      now,
		newID:    uuid.NewString,
		payments: map[string]models.Payment{},
		byPart:   map[string]string{},
	}
}

// Load replaces the mirror with the stored payments.
func (p *Provisioner) Load(ctx context.Context) error {
	docs, err := p.st.List(ctx, store.Payments)
	if err != nil {
		return errs.Store("list payments", err)
	}
	list, skipped := store.DecodeAll[models.Payment](docs)
	if skipped > 0 {
		slog.Warn("payments_load_skipped", "count", skipped)
	}
	payments := make(map[string]models.Payment, len(list))
	byPart := make(map[string]string, len(list))
	for _, pay := range list {
		payments[pay.ID] = pay
		byPart[pay.ParticipationID] = pay.ID
	}
	p.mu.Lock()
	p.payments, p.byPart = payments, byPart
	p.mu.Unlock()
	return nil
}

// CreateForParticipation provisions the payment for a registration. It is
// idempotent by participation id: when a payment already references it, the
// existing payment is returned with created=false.
func (p *Provisioner) CreateForParticipation(ctx context.Context, part models.Participation, costText string) (pay models.Payment, created bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if id, ok := p.byPart[part.ID]; ok {
		slog.Info("payment_event", "event", "payment_exists", "participation_id", part.ID, "payment_id", id)
		metrics.PaymentsProvisioned.WithLabelValues("existing").Inc()
		return p.payments[id], false, nil
	}

	now := p.now()
	pay = models.Payment{
		ID:              p.newID(),
		ParticipationID: part.ID,
		EventID:         part.EventID,
		UserID:          part.UserID,
		Amount:          ParseAmount(costText),
		Status:          models.PaymentPending,
		Memo:            PendingMemo,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	doc, err := store.Encode(pay)
	if err != nil {
		metrics.PaymentsProvisioned.WithLabelValues("error").Inc()
		return models.Payment{}, false, err
	}
	if err := p.st.Set(ctx, store.Payments, pay.ID, doc, false); err != nil {
		metrics.PaymentsProvisioned.WithLabelValues("error").Inc()
		if errors.Is(err, store.ErrConflict) {
			// Another writer provisioned it first; the store index is authoritative.
			return p.adoptExisting(ctx, part.ID)
		}
		return models.Payment{}, false, errs.Store("create payment", err)
	}
	p.payments[pay.ID] = pay
	p.byPart[pay.ParticipationID] = pay.ID
	metrics.PaymentsProvisioned.WithLabelValues("created").Inc()
	slog.Info("payment_event", "event", "payment_created", "payment_id", pay.ID, "participation_id", part.ID, "amount", pay.Amount)
	return pay, true, nil
}

// adoptExisting loads the stored payment for a participation into the
// mirror. Caller holds p.mu.
func (p *Provisioner) adoptExisting(ctx context.Context, participationID string) (models.Payment, bool, error) {
	docs, err := p.st.List(ctx, store.Payments, store.Where("participationId", participationID))
	if err != nil {
		return models.Payment{}, false, errs.Store("list payments", err)
	}
	list, _ := store.DecodeAll[models.Payment](docs)
	if len(list) == 0 {
		return models.Payment{}, false, errs.Store("create payment", store.ErrConflict)
	}
	pay := list[0]
	p.payments[pay.ID] = pay
	p.byPart[participationID] = pay.ID
	return pay, false, nil
}

// Confirm marks a payment confirmed and stamps the payment date.
func (p *Provisioner) Confirm(ctx context.Context, id string) (models.Payment, error) {
	now := p.now()
	return p.transition(ctx, id, func(pay *models.Payment) {
		pay.Status = models.PaymentConfirmed
		pay.PaymentDate = &now
	}, store.Doc{"paymentStatus": models.PaymentConfirmed, "paymentDate": now, "updatedAt": now})
}

// Cancel marks a payment cancelled with reason as its memo.
func (p *Provisioner) Cancel(ctx context.Context, id, reason string) (models.Payment, error) {
	now := p.now()
	return p.transition(ctx, id, func(pay *models.Payment) {
		pay.Status = models.PaymentCancelled
		pay.Memo = reason
	}, store.Doc{"paymentStatus": models.PaymentCancelled, "memo": reason, "updatedAt": now})
}

func (p *Provisioner) transition(ctx context.Context, id string, apply func(*models.Payment), patch store.Doc) (models.Payment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pay, ok := p.payments[id]
	if !ok {
		return models.Payment{}, errs.ErrPaymentNotFound
	}
	if err := p.st.Update(ctx, store.Payments, id, patch); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Payment{}, errs.ErrPaymentNotFound
		}
		return models.Payment{}, errs.Store("update payment", err)
	}
	apply(&pay)
	pay.UpdatedAt = patch["updatedAt"].(time.Time)
	p.payments[id] = pay
	metrics.PaymentTransitions.WithLabelValues(pay.Status).Inc()
	slog.Info("payment_event", "event", "payment_"+pay.Status, "payment_id", id)
	return pay, nil
}

// Get returns a mirrored payment.
func (p *Provisioner) Get(id string) (models.Payment, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pay, ok := p.payments[id]
	return pay, ok
}

// ByParticipation returns the payment provisioned for a participation.
func (p *Provisioner) ByParticipation(participationID string) (models.Payment, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.byPart[participationID]
	if !ok {
		return models.Payment{}, false
	}
	return p.payments[id], true
}

// ListByEvent returns an event's payments ordered by creation time.
func (p *Provisioner) ListByEvent(eventID string) []models.Payment {
	p.mu.RLock()
	out := []models.Payment{}
	for _, pay := range p.payments {
		if pay.EventID == eventID {
			out = append(out, pay)
		}
	}
	p.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
