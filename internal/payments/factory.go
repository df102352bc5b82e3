package payments

import (
	"fmt"

	"club-events/internal/config"
	"club-events/internal/payments/stub"
)

func NewProvider(cfg config.Config) (PaymentProvider, error) {
	switch cfg.PaymentProvider {
	case "stub":
		return stub.New(cfg.PaymentWebhookSecret, cfg.BasePublicURL), nil
	default:
		return nil, fmt.Errorf("unknown payment provider: %s", cfg.PaymentProvider)
	}
}
