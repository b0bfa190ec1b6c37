package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	playground "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"portal/cmd/web/validator"
	"portal/internal/payment"
	"portal/internal/readmodels"
)

type PaymentServiceContract interface {
	Initiate(ctx context.Context, req payment.InitiateRequest) (*payment.InitiateResult, error)
	Get(ctx context.Context, paymentID string) (*payment.Transaction, error)
	ListEvents(ctx context.Context, paymentID string) ([]payment.Event, error)
	VerifyWithProvider(ctx context.Context, paymentID string) (*payment.Transaction, error)
}

type PaymentReadModelContract interface {
	ListByCandidate(candidateID string) []readmodels.PaymentView
}

type Payment struct {
	json     *validator.JSON
	validate *playground.Validate
	svc      PaymentServiceContract
	rm       PaymentReadModelContract
}

func NewPayment(jsonV *validator.JSON, svc PaymentServiceContract, rm PaymentReadModelContract) *Payment {
	return &Payment{json: jsonV, validate: playground.New(), svc: svc, rm: rm}
}

type initiateReq struct {
	CandidateID       string            `json:"candidate_id" validate:"required"`
	Purpose           string            `json:"purpose" validate:"required"`
	Amount            string            `json:"amount" validate:"required"`
	Currency          string            `json:"currency" validate:"required,len=3"`
	Session           string            `json:"session" validate:"required"`
	Email             string            `json:"email" validate:"omitempty,email"`
	Phone             string            `json:"phone"`
	PreferredProvider string            `json:"preferred_provider"`
	IdempotencyKey    string            `json:"idempotency_key" validate:"required"`
	Metadata          map[string]string `json:"metadata"`
}

type transactionResp struct {
	PaymentID         string `json:"payment_id"`
	CandidateID       string `json:"candidate_id"`
	Purpose           string `json:"purpose"`
	Provider          string `json:"provider"`
	ProviderReference string `json:"provider_reference"`
	Amount            string `json:"amount"`
	Currency          string `json:"currency"`
	Status            string `json:"status"`
	Session           string `json:"session"`
	ReceiptURL        string `json:"receipt_url,omitempty"`
	ExpiresAt         string `json:"expires_at,omitempty"`
}

func toTransactionResp(tx *payment.Transaction) transactionResp {
	resp := transactionResp{
		PaymentID:         tx.ID,
		CandidateID:       tx.CandidateID,
		Purpose:           string(tx.Purpose),
		Provider:          tx.Provider,
		ProviderReference: tx.ProviderReference,
		Amount:            tx.Amount.StringFixed(2),
		Currency:          tx.Currency,
		Status:            string(tx.Status),
		Session:           tx.Session,
		ReceiptURL:        tx.ReceiptURL,
	}
	if !tx.ExpiresAt.IsZero() {
		resp.ExpiresAt = tx.ExpiresAt.Format(time.RFC3339)
	}
	return resp
}

func (h *Payment) Create(w http.ResponseWriter, r *http.Request) {
	var req initiateReq
	if err := h.json.Decode(w, r, &req); err != nil {
		log.Printf("layer=handler component=payment method=Create err=%v", err)
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Printf("layer=handler component=payment method=Create candidate_id=%s err=%v", req.CandidateID, err)
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid amount format"})
		return
	}

	res, err := h.svc.Initiate(r.Context(), payment.InitiateRequest{
		CandidateID:       req.CandidateID,
		Purpose:           payment.Purpose(req.Purpose),
		Amount:            amount,
		Currency:          req.Currency,
		Session:           req.Session,
		Email:             req.Email,
		Phone:             req.Phone,
		PreferredProvider: req.PreferredProvider,
		IdempotencyKey:    req.IdempotencyKey,
		Metadata:          req.Metadata,
	})
	if err != nil {
		log.Printf("layer=handler component=payment method=Create candidate_id=%s err=%v", req.CandidateID, err)
		writeError(w, err)
		return
	}

	code := http.StatusCreated
	if res.Replayed {
		code = http.StatusOK
	}
	writeJSON(w, code, map[string]any{
		"success":            true,
		"replayed":           res.Replayed,
		"payment":            toTransactionResp(res.Transaction),
		"provider_reference": res.Transaction.ProviderReference,
		"payment_url":        res.PaymentURL,
		"redirect_url":       res.RedirectURL,
	})
}

func (h *Payment) Get(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentID")
	tx, err := h.svc.Get(r.Context(), paymentID)
	if err != nil {
		log.Printf("layer=handler component=payment method=Get payment_id=%s err=%v", paymentID, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResp(tx))
}

func (h *Payment) Events(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentID")
	evts, err := h.svc.ListEvents(r.Context(), paymentID)
	if err != nil {
		log.Printf("layer=handler component=payment method=Events payment_id=%s err=%v", paymentID, err)
		writeError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(evts))
	for _, e := range evts {
		out = append(out, map[string]any{
			"event_id":          e.ID,
			"event_type":        string(e.EventType),
			"from_status":       string(e.FromStatus),
			"to_status":         string(e.ToStatus),
			"provider_event_id": e.ProviderEventID,
			"created_at":        e.CreatedAt.Format(time.RFC3339Nano),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"payment_id": paymentID, "events": out})
}

// Requery asks the gateway for the authoritative status and applies
// whatever transition it implies.
func (h *Payment) Requery(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentID")
	tx, err := h.svc.VerifyWithProvider(r.Context(), paymentID)
	if err != nil {
		log.Printf("layer=handler component=payment method=Requery payment_id=%s err=%v", paymentID, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResp(tx))
}

func (h *Payment) ListByCandidate(w http.ResponseWriter, r *http.Request) {
	candidateID := chi.URLParam(r, "candidateID")
	if h.rm == nil {
		writeJSON(w, http.StatusOK, map[string]any{"candidate_id": candidateID, "payments": []any{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"candidate_id": candidateID,
		"payments":     h.rm.ListByCandidate(candidateID),
	})
}
