package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	playground "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"portal/cmd/web/validator"
	"portal/internal/reconciliation"
)

type Reconciliation struct {
	json     *validator.JSON
	validate *playground.Validate
	svc      reconciliation.ServiceContract
}

func NewReconciliation(jsonV *validator.JSON, svc reconciliation.ServiceContract) *Reconciliation {
	return &Reconciliation{json: jsonV, validate: playground.New(), svc: svc}
}

func actorID(r *http.Request) string {
	if actor := r.Header.Get("X-Actor-Id"); actor != "" {
		return actor
	}
	return "system"
}

func (h *Reconciliation) Verify(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentID")
	tx, err := h.svc.VerifyPayment(r.Context(), actorID(r), paymentID)
	if err != nil {
		log.Printf("layer=handler component=reconciliation method=Verify payment_id=%s err=%v", paymentID, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"payment":     toTransactionResp(tx),
		"verified_at": tx.VerifiedAt.Format(time.RFC3339),
	})
}

type refundReq struct {
	Amount string `json:"amount" validate:"required"`
	Reason string `json:"reason" validate:"required"`
}

func (h *Reconciliation) Refund(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentID")

	var req refundReq
	if err := h.json.Decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid amount format"})
		return
	}

	tx, err := h.svc.RefundPayment(r.Context(), actorID(r), paymentID, amount, req.Reason)
	if err != nil {
		log.Printf("layer=handler component=reconciliation method=Refund payment_id=%s err=%v", paymentID, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payment": toTransactionResp(tx)})
}

type disputeReq struct {
	Reason      string `json:"reason" validate:"required"`
	Description string `json:"description"`
}

func toDisputeResp(d *reconciliation.Dispute) map[string]any {
	out := map[string]any{
		"dispute_id":  d.ID,
		"payment_id":  d.PaymentID,
		"reason":      d.Reason,
		"description": d.Description,
		"status":      string(d.Status),
		"created_at":  d.CreatedAt.Format(time.RFC3339),
	}
	if d.Resolution != "" {
		out["resolution"] = d.Resolution
		out["resolved_by"] = d.ResolvedBy
		out["resolved_at"] = d.ResolvedAt.Format(time.RFC3339)
	}
	return out
}

func (h *Reconciliation) OpenDispute(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentID")

	var req disputeReq
	if err := h.json.Decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	d, err := h.svc.CreateDispute(r.Context(), actorID(r), paymentID, req.Reason, req.Description)
	if err != nil {
		log.Printf("layer=handler component=reconciliation method=OpenDispute payment_id=%s err=%v", paymentID, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDisputeResp(d))
}

type resolveReq struct {
	Resolution string `json:"resolution" validate:"required"`
}

func (h *Reconciliation) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	disputeID := chi.URLParam(r, "disputeID")

	var req resolveReq
	if err := h.json.Decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	d, err := h.svc.ResolveDispute(r.Context(), actorID(r), disputeID, req.Resolution)
	if err != nil {
		log.Printf("layer=handler component=reconciliation method=ResolveDispute dispute_id=%s err=%v", disputeID, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDisputeResp(d))
}

func (h *Reconciliation) GetDispute(w http.ResponseWriter, r *http.Request) {
	disputeID := chi.URLParam(r, "disputeID")
	d, err := h.svc.GetDispute(r.Context(), disputeID)
	if err != nil {
		log.Printf("layer=handler component=reconciliation method=GetDispute dispute_id=%s err=%v", disputeID, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDisputeResp(d))
}
