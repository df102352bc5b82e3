package server

import (
	"encoding/json"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"club-events/internal/config"
	"club-events/internal/core"
	"club-events/internal/errs"
	"club-events/internal/payments"
	"club-events/internal/util"
)

// Notifier delivers a short message to a registrant. The Telegram app
// implements it; nil disables notifications.
type Notifier interface {
	NotifyUser(userID, text string) error
}

func New(cfg config.Config, svc *core.Service, pay payments.PaymentProvider, notify Notifier) *http.Server {
	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: Handler(cfg, svc, pay, notify),
	}
}

// Handler builds the routes. Split from New for httptest.
func Handler(cfg config.Config, svc *core.Service, pay payments.PaymentProvider, notify Notifier) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Stub payment page (for testing)
	mux.HandleFunc("GET /pay/stub", func(w http.ResponseWriter, r *http.Request) {
		invoice := r.URL.Query().Get("invoice")
		if invoice == "" {
			http.Error(w, "invoice required", http.StatusBadRequest)
			return
		}
		// Real providers host their own checkout; this page only fires the webhook.
		page := `<!doctype html><html><head><meta charset="utf-8"><title>Stub Pay</title></head><body>
<h2>Payment (test provider)</h2>
<p>Invoice: ` + html.EscapeString(invoice) + `</p>
<button onclick="send('paid')">Pay</button>
<button onclick="send('cancelled')">Cancel</button>
<pre id="out"></pre>
<script>
async function send(status){
  const body = JSON.stringify({invoice: ` + jsString(invoice) + `, status});
  const res = await fetch("/webhooks/stub", {method:"POST", headers: {"Content-Type":"application/json"}, body});
  document.getElementById("out").textContent = await res.text();
}
</script>
</body></html>`
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	})

	// Payment webhooks
	mux.HandleFunc("POST /webhooks/stub", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(io.LimitReader(r.Body, 1<<16))
		headers := map[string]string{}
		for k, v := range r.Header {
			if len(v) > 0 {
				headers[strings.ToLower(k)] = v[0]
			}
		}

		// DEV: the stub page cannot sign, so sign on its behalf when running locally.
		if headers["x-signature"] == "" && isLocal(cfg.BasePublicURL) {
			headers["x-signature"] = util.HMACSHA256Hex(cfg.PaymentWebhookSecret, string(body))
		}

		paymentID, status, err := pay.HandleWebhook(r.Context(), body, headers)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var msg string
		switch status {
		case payments.WebhookCancelled:
			p, err := svc.Payments.Cancel(r.Context(), paymentID, "cancelled at checkout")
			if err != nil {
				writeErr(w, err)
				return
			}
			status, msg = p.Status, "❌ Payment cancelled."
			go notifyUser(notify, p.UserID, msg)
		default:
			p, err := svc.Payments.Confirm(r.Context(), paymentID)
			if err != nil {
				writeErr(w, err)
				return
			}
			status, msg = p.Status, "✅ Payment confirmed. Your spot is secured."
			go notifyUser(notify, p.UserID, msg)
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"ok":             true,
			"payment_id":     paymentID,
			"payment_status": status,
			"ts":             util.NowISO(),
		})
	})

	// Read API for the presentation layer.
	mux.HandleFunc("GET /api/events/current", func(w http.ResponseWriter, r *http.Request) {
		e, ok := svc.CurrentEvent()
		if !ok {
			writeJSON(w, http.StatusOK, map[string]any{"event": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"event": e})
	})
	mux.HandleFunc("GET /api/events/special", func(w http.ResponseWriter, r *http.Request) {
		e, ok := svc.SpecialEvent()
		if !ok {
			writeJSON(w, http.StatusOK, map[string]any{"event": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"event": e})
	})
	mux.HandleFunc("GET /api/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		e, ok := svc.Event(r.PathValue("id"))
		if !ok {
			writeErr(w, errs.ErrEventNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"event": e})
	})
	mux.HandleFunc("GET /api/events/{id}/teams", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"teams": svc.Teams.TeamsByEvent(r.PathValue("id"))})
	})
	mux.HandleFunc("POST /api/events/{id}/weather", func(w http.ResponseWriter, r *http.Request) {
		e, updated, err := svc.Weather.CheckAndUpdate(r.Context(), r.PathValue("id"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"updated": updated, "weather": e.Weather})
	})
	mux.HandleFunc("GET /api/weather/current", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"weather": svc.Weather.Current(r.Context())})
	})
	mux.HandleFunc("GET /api/attendance/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"stats": svc.Attendance.AllStats()})
	})
	mux.HandleFunc("GET /api/attendance/stats/{userId}", func(w http.ResponseWriter, r *http.Request) {
		s, ok := svc.Attendance.UserStats(r.PathValue("userId"))
		if !ok {
			writeJSON(w, http.StatusOK, map[string]any{"stats": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"stats": s})
	})

	return mux
}

func notifyUser(n Notifier, userID, msg string) {
	if n == nil || userID == "" {
		return
	}
	if err := n.NotifyUser(userID, msg); err != nil {
		slog.Warn("notify_user_failed", "user_id", userID, "err", err)
	}
}

// isLocal is true only for an explicit loopback base URL; an unset URL is
// treated as public.
func isLocal(baseURL string) bool {
	if baseURL == "" {
		return false
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	h := u.Hostname()
	return h == "localhost" || h == "127.0.0.1"
}

// jsString renders s as a JS string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errs.CodeOf(err) {
	case errs.CodeEventNotFound, errs.CodeParticipationNotFound, errs.CodePaymentNotFound:
		status = http.StatusNotFound
	case errs.CodeDuplicateRegistration:
		status = http.StatusConflict
	case errs.CodeInvalidInput, errs.CodeInvalidStatus:
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		slog.Error("http_request_failed", "err", err)
	}
	writeJSON(w, status, map[string]any{
		"ok":     false,
		"code":   errs.CodeOf(err),
		"reason": errs.Reason(err),
	})
}
