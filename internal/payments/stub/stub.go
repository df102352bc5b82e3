package stub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"club-events/internal/models"
	"club-events/internal/util"
)

// Stub provider:
// - CreateCheckout: builds /pay/stub?invoice=<paymentID>:<amount>:<ts>
// - Webhook: POST /webhooks/stub signed with X-Signature (HMAC SHA-256 of the body)

type Provider struct {
	secret  string
	baseURL string
}

func New(secret, baseURL string) *Provider {
	return &Provider{secret: secret, baseURL: strings.TrimRight(baseURL, "/")}
}

func (p *Provider) Name() string { return "stub" }

func (p *Provider) CreateCheckout(ctx context.Context, pay models.Payment, returnURL string) (string, string, error) {
	if pay.ID == "" {
		return "", "", fmt.Errorf("payment id required")
	}
	invoice := fmt.Sprintf("%s:%d:%s", pay.ID, pay.Amount, util.NowISO())

	q := url.Values{}
	q.Set("invoice", invoice)
	if returnURL != "" {
		q.Set("return", returnURL)
	}
	u := "/pay/stub?" + q.Encode()
	if p.baseURL != "" {
		u = p.baseURL + u
	}
	return u, invoice, nil
}

type webhookPayload struct {
	Invoice string `json:"invoice"`
	Status  string `json:"status"` // paid/cancelled
}

func (p *Provider) HandleWebhook(ctx context.Context, body []byte, headers map[string]string) (paymentID string, status string, err error) {
	sig := headers["x-signature"]
	expected := util.HMACSHA256Hex(p.secret, string(body))
	if sig == "" || !util.EqualHex(sig, expected) {
		return "", "", fmt.Errorf("invalid signature")
	}

	var pl webhookPayload
	if err := json.Unmarshal(body, &pl); err != nil {
		return "", "", err
	}

	parts := strings.Split(pl.Invoice, ":")
	if len(parts) < 2 || parts[0] == "" {
		return "", "", fmt.Errorf("bad invoice")
	}
	paymentID = parts[0]

	status = strings.TrimSpace(pl.Status)
	switch status {
	case "":
		status = "paid"
	case "paid", "cancelled":
	default:
		return "", "", fmt.Errorf("unknown status %q", status)
	}
	return paymentID, status, nil
}
