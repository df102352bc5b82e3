package payments

import (
	"context"

	"club-events/internal/models"
)

// Webhook statuses reported by checkout providers.
const (
	WebhookPaid      = "paid"
	WebhookCancelled = "cancelled"
)

type PaymentProvider interface {
	Name() string

	// CreateCheckout returns a link where the payment can be settled and the
	// invoice the provider will echo back in its webhook.
	CreateCheckout(ctx context.Context, pay models.Payment, returnURL string) (payURL string, invoice string, err error)

	// HandleWebhook validates a provider callback and returns the payment it
	// refers to with status paid/cancelled.
	HandleWebhook(ctx context.Context, body []byte, headers map[string]string) (paymentID string, status string, err error)
}
