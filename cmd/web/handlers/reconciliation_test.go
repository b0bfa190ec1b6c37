package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"portal/cmd/web/validator"
	"portal/internal/payment"
	"portal/internal/reconciliation"
	"portal/kit/db"
)

type reconServiceMock struct{ mock.Mock }

func (m *reconServiceMock) VerifyPayment(ctx context.Context, actorID, paymentID string) (*payment.Transaction, error) {
	args := m.Called(ctx, actorID, paymentID)
	tx, _ := args.Get(0).(*payment.Transaction)
	return tx, args.Error(1)
}

func (m *reconServiceMock) RefundPayment(ctx context.Context, actorID, paymentID string, amount decimal.Decimal, reason string) (*payment.Transaction, error) {
	args := m.Called(ctx, actorID, paymentID, amount, reason)
	tx, _ := args.Get(0).(*payment.Transaction)
	return tx, args.Error(1)
}

func (m *reconServiceMock) CreateDispute(ctx context.Context, actorID, paymentID, reason, description string) (*reconciliation.Dispute, error) {
	args := m.Called(ctx, actorID, paymentID, reason, description)
	d, _ := args.Get(0).(*reconciliation.Dispute)
	return d, args.Error(1)
}

func (m *reconServiceMock) ResolveDispute(ctx context.Context, actorID, disputeID, resolution string) (*reconciliation.Dispute, error) {
	args := m.Called(ctx, actorID, disputeID, resolution)
	d, _ := args.Get(0).(*reconciliation.Dispute)
	return d, args.Error(1)
}

func (m *reconServiceMock) GetDispute(ctx context.Context, disputeID string) (*reconciliation.Dispute, error) {
	args := m.Called(ctx, disputeID)
	d, _ := args.Get(0).(*reconciliation.Dispute)
	return d, args.Error(1)
}

func reconRouter(h *Reconciliation) http.Handler {
	r := chi.NewRouter()
	r.Post("/admin/payments/{paymentID}/verify", h.Verify)
	r.Post("/admin/payments/{paymentID}/refund", h.Refund)
	r.Post("/admin/payments/{paymentID}/disputes", h.OpenDispute)
	r.Post("/admin/disputes/{disputeID}/resolve", h.ResolveDispute)
	r.Get("/admin/disputes/{disputeID}", h.GetDispute)
	return r
}

func TestReconciliation_Refund(t *testing.T) {
	mkReq := func(t *testing.T, body any) *http.Request {
		t.Helper()
		b, err := json.Marshal(body)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/admin/payments/p1/refund", bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Actor-Id", "admin-1")
		return req
	}

	var tests = []struct {
		name       string
		body       map[string]any
		service    func() *reconServiceMock
		assertResp func(t *testing.T, rr *httptest.ResponseRecorder)
	}{
		{
			name:    "missing reason",
			body:    map[string]any{"amount": "2000"},
			service: func() *reconServiceMock { return new(reconServiceMock) },
			assertResp: func(t *testing.T, rr *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusBadRequest, rr.Code)
			},
		},
		{
			name:    "unparseable amount",
			body:    map[string]any{"amount": "lots", "reason": "dup"},
			service: func() *reconServiceMock { return new(reconServiceMock) },
			assertResp: func(t *testing.T, rr *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusBadRequest, rr.Code)
			},
		},
		{
			name: "refund above amount maps to 400",
			body: map[string]any{"amount": "3000", "reason": "dup"},
			service: func() *reconServiceMock {
				svc := new(reconServiceMock)
				svc.On("RefundPayment", mock.Anything, "admin-1", "p1", decimal.NewFromInt(3000), "dup").
					Return(nil, db.ErrInvalid)
				return svc
			},
			assertResp: func(t *testing.T, rr *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusBadRequest, rr.Code)
			},
		},
		{
			name: "wrong state maps to 409",
			body: map[string]any{"amount": "2000", "reason": "dup"},
			service: func() *reconServiceMock {
				svc := new(reconServiceMock)
				svc.On("RefundPayment", mock.Anything, "admin-1", "p1", decimal.NewFromInt(2000), "dup").
					Return(nil, db.ErrConflict)
				return svc
			},
			assertResp: func(t *testing.T, rr *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusConflict, rr.Code)
			},
		},
		{
			name: "refunded",
			body: map[string]any{"amount": "2000", "reason": "dup"},
			service: func() *reconServiceMock {
				svc := new(reconServiceMock)
				tx := sampleTx()
				tx.Status = payment.StatusRefunded
				svc.On("RefundPayment", mock.Anything, "admin-1", "p1", decimal.NewFromInt(2000), "dup").
					Return(tx, nil)
				return svc
			},
			assertResp: func(t *testing.T, rr *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusOK, rr.Code)
				var out struct {
					Payment transactionResp `json:"payment"`
				}
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
				require.Equal(t, "refunded", out.Payment.Status)
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rr := httptest.NewRecorder()
			h := NewReconciliation(validator.NewJSON(), tt.service())
			reconRouter(h).ServeHTTP(rr, mkReq(t, tt.body))
			tt.assertResp(t, rr)
		})
	}
}

func TestReconciliation_DisputeFlow(t *testing.T) {
	svc := new(reconServiceMock)
	svc.On("CreateDispute", mock.Anything, "admin-1", "p1", "chargeback", "double billed").
		Return(&reconciliation.Dispute{ID: "d1", PaymentID: "p1", Reason: "chargeback", Status: reconciliation.DisputeOpen}, nil)
	svc.On("ResolveDispute", mock.Anything, "admin-2", "d1", "upheld").
		Return(&reconciliation.Dispute{ID: "d1", PaymentID: "p1", Status: reconciliation.DisputeResolved, Resolution: "upheld", ResolvedBy: "admin-2"}, nil)
	svc.On("GetDispute", mock.Anything, "missing").Return(nil, db.ErrNotFound)
	h := NewReconciliation(validator.NewJSON(), svc)

	body, _ := json.Marshal(map[string]string{"reason": "chargeback", "description": "double billed"})
	req := httptest.NewRequest(http.MethodPost, "/admin/payments/p1/disputes", bytes.NewReader(body))
	req.Header.Set("X-Actor-Id", "admin-1")
	rr := httptest.NewRecorder()
	reconRouter(h).ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)

	body, _ = json.Marshal(map[string]string{"resolution": "upheld"})
	req = httptest.NewRequest(http.MethodPost, "/admin/disputes/d1/resolve", bytes.NewReader(body))
	req.Header.Set("X-Actor-Id", "admin-2")
	rr = httptest.NewRecorder()
	reconRouter(h).ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Equal(t, "resolved", out["status"])
	require.Equal(t, "upheld", out["resolution"])

	rr = httptest.NewRecorder()
	reconRouter(h).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/disputes/missing", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestReconciliation_VerifyDefaultsActor(t *testing.T) {
	svc := new(reconServiceMock)
	tx := sampleTx()
	tx.Status = payment.StatusSuccess
	svc.On("VerifyPayment", mock.Anything, "system", "p1").Return(tx, nil)
	h := NewReconciliation(validator.NewJSON(), svc)

	// No X-Actor-Id header falls back to the system actor.
	rr := httptest.NewRecorder()
	reconRouter(h).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/admin/payments/p1/verify", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}
