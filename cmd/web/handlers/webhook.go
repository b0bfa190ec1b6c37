package handlers

import (
	"context"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"portal/internal/payment"
)

const maxWebhookBody = 1 << 20

type WebhookServiceContract interface {
	IngestWebhook(ctx context.Context, providerName string, payload []byte, signature string, timestamp time.Time) (*payment.IngestResult, error)
}

type Webhook struct {
	svc WebhookServiceContract
	now func() time.Time
}

func NewWebhook(svc WebhookServiceContract) *Webhook {
	return &Webhook{svc: svc, now: time.Now}
}

// signature headers vary by gateway; the generic pair wins when present.
func webhookSignature(r *http.Request, providerName string) string {
	if sig := r.Header.Get("X-Webhook-Signature"); sig != "" {
		return sig
	}
	switch providerName {
	case "paystack":
		return r.Header.Get("x-paystack-signature")
	case "flutterwave":
		return r.Header.Get("verif-hash")
	}
	return ""
}

func (h *Webhook) Receive(w http.ResponseWriter, r *http.Request) {
	providerName := chi.URLParam(r, "provider")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		log.Printf("layer=handler component=webhook method=Receive provider=%s err=%v", providerName, err)
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unreadable body"})
		return
	}
	defer func() { _ = r.Body.Close() }()

	ts := h.now()
	if raw := r.Header.Get("X-Webhook-Timestamp"); raw != "" {
		unix, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid timestamp header"})
			return
		}
		ts = time.Unix(unix, 0)
	}

	res, err := h.svc.IngestWebhook(r.Context(), providerName, body, webhookSignature(r, providerName), ts)
	if err != nil {
		log.Printf("layer=handler component=webhook method=Receive provider=%s err=%v", providerName, err)
		writeError(w, err)
		return
	}

	// Gateways retry on anything but 2xx, so duplicates acknowledge too.
	out := map[string]any{
		"received":     true,
		"duplicate":    res.Duplicate,
		"transitioned": res.Transitioned,
	}
	if res.Transaction != nil {
		out["payment_id"] = res.Transaction.ID
		out["status"] = string(res.Transaction.Status)
	}
	writeJSON(w, http.StatusOK, out)
}
