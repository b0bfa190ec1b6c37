package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"portal/cmd/web/validator"
	"portal/internal/payment"
	"portal/internal/readmodels"
	"portal/kit/db"
)

type paymentServiceMock struct{ mock.Mock }

func (m *paymentServiceMock) Initiate(ctx context.Context, req payment.InitiateRequest) (*payment.InitiateResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*payment.InitiateResult)
	return res, args.Error(1)
}

func (m *paymentServiceMock) Get(ctx context.Context, paymentID string) (*payment.Transaction, error) {
	args := m.Called(ctx, paymentID)
	tx, _ := args.Get(0).(*payment.Transaction)
	return tx, args.Error(1)
}

func (m *paymentServiceMock) ListEvents(ctx context.Context, paymentID string) ([]payment.Event, error) {
	args := m.Called(ctx, paymentID)
	evts, _ := args.Get(0).([]payment.Event)
	return evts, args.Error(1)
}

func (m *paymentServiceMock) VerifyWithProvider(ctx context.Context, paymentID string) (*payment.Transaction, error) {
	args := m.Called(ctx, paymentID)
	tx, _ := args.Get(0).(*payment.Transaction)
	return tx, args.Error(1)
}

type readModelMock struct{ mock.Mock }

func (m *readModelMock) ListByCandidate(candidateID string) []readmodels.PaymentView {
	args := m.Called(candidateID)
	views, _ := args.Get(0).([]readmodels.PaymentView)
	return views
}

func paymentRouter(h *Payment) http.Handler {
	r := chi.NewRouter()
	r.Post("/payments", h.Create)
	r.Get("/payments/{paymentID}", h.Get)
	r.Get("/payments/{paymentID}/events", h.Events)
	r.Post("/payments/{paymentID}/requery", h.Requery)
	r.Get("/candidates/{candidateID}/payments", h.ListByCandidate)
	return r
}

func sampleTx() *payment.Transaction {
	return &payment.Transaction{
		ID:                "p1",
		CandidateID:       "cand-1",
		Purpose:           payment.PurposeApplicationFee,
		Provider:          "paystack",
		ProviderReference: "PAY-REF-1",
		Amount:            decimal.NewFromInt(2000),
		Currency:          "NGN",
		Status:            payment.StatusInitiated,
		Session:           "2026/2027",
	}
}

func validBody() map[string]any {
	return map[string]any{
		"candidate_id":    "cand-1",
		"purpose":         "application-fee",
		"amount":          "2000",
		"currency":        "NGN",
		"session":         "2026/2027",
		"email":           "cand-1@example.test",
		"idempotency_key": "idem-1",
	}
}

func TestPayment_Create(t *testing.T) {
	mkReq := func(t *testing.T, body any) *http.Request {
		t.Helper()
		b, err := json.Marshal(body)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
		return req
	}

	var tests = []struct {
		name       string
		req        func(t *testing.T) *http.Request
		handler    func() *Payment
		assertResp func(t *testing.T, rr *httptest.ResponseRecorder)
	}{
		{
			name: "invalid json",
			req: func(t *testing.T) *http.Request {
				_ = t
				return httptest.NewRequest(http.MethodPost, "/payments", bytes.NewReader([]byte("{")))
			},
			handler: func() *Payment {
				return NewPayment(validator.NewJSON(), new(paymentServiceMock), nil)
			},
			assertResp: func(t *testing.T, rr *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusBadRequest, rr.Code)
			},
		},
		{
			name: "missing idempotency key",
			req: func(t *testing.T) *http.Request {
				body := validBody()
				delete(body, "idempotency_key")
				return mkReq(t, body)
			},
			handler: func() *Payment {
				return NewPayment(validator.NewJSON(), new(paymentServiceMock), nil)
			},
			assertResp: func(t *testing.T, rr *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusBadRequest, rr.Code)
			},
		},
		{
			name: "unparseable amount",
			req: func(t *testing.T) *http.Request {
				body := validBody()
				body["amount"] = "two thousand"
				return mkReq(t, body)
			},
			handler: func() *Payment {
				return NewPayment(validator.NewJSON(), new(paymentServiceMock), nil)
			},
			assertResp: func(t *testing.T, rr *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusBadRequest, rr.Code)
			},
		},
		{
			name: "idempotency conflict maps to 409",
			req:  func(t *testing.T) *http.Request { return mkReq(t, validBody()) },
			handler: func() *Payment {
				svc := new(paymentServiceMock)
				svc.On("Initiate", mock.Anything, mock.Anything).Return(nil, db.ErrConflict)
				return NewPayment(validator.NewJSON(), svc, nil)
			},
			assertResp: func(t *testing.T, rr *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusConflict, rr.Code)
			},
		},
		{
			name: "created",
			req:  func(t *testing.T) *http.Request { return mkReq(t, validBody()) },
			handler: func() *Payment {
				svc := new(paymentServiceMock)
				svc.On("Initiate", mock.Anything, mock.Anything).Return(&payment.InitiateResult{
					Transaction: sampleTx(),
					PaymentURL:  "https://checkout.paystack.com/abc",
				}, nil)
				return NewPayment(validator.NewJSON(), svc, nil)
			},
			assertResp: func(t *testing.T, rr *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusCreated, rr.Code)
				var out map[string]any
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
				require.Equal(t, true, out["success"])
				require.Equal(t, false, out["replayed"])
				require.Equal(t, "https://checkout.paystack.com/abc", out["payment_url"])
			},
		},
		{
			name: "replay returns 200",
			req:  func(t *testing.T) *http.Request { return mkReq(t, validBody()) },
			handler: func() *Payment {
				svc := new(paymentServiceMock)
				svc.On("Initiate", mock.Anything, mock.Anything).Return(&payment.InitiateResult{
					Transaction: sampleTx(),
					Replayed:    true,
				}, nil)
				return NewPayment(validator.NewJSON(), svc, nil)
			},
			assertResp: func(t *testing.T, rr *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusOK, rr.Code)
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rr := httptest.NewRecorder()
			paymentRouter(tt.handler()).ServeHTTP(rr, tt.req(t))
			tt.assertResp(t, rr)
		})
	}
}

func TestPayment_Get(t *testing.T) {
	svc := new(paymentServiceMock)
	svc.On("Get", mock.Anything, "p1").Return(sampleTx(), nil)
	svc.On("Get", mock.Anything, "missing").Return(nil, db.ErrNotFound)
	h := NewPayment(validator.NewJSON(), svc, nil)

	rr := httptest.NewRecorder()
	paymentRouter(h).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/payments/p1", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var out transactionResp
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Equal(t, "p1", out.PaymentID)
	require.Equal(t, "2000.00", out.Amount)

	rr = httptest.NewRecorder()
	paymentRouter(h).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/payments/missing", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPayment_Events(t *testing.T) {
	svc := new(paymentServiceMock)
	svc.On("ListEvents", mock.Anything, "p1").Return([]payment.Event{
		{ID: 1, PaymentID: "p1", EventType: payment.EventInitiated, ToStatus: payment.StatusInitiated, CreatedAt: time.Now()},
		{ID: 2, PaymentID: "p1", EventType: payment.EventWebhookReceived, FromStatus: payment.StatusInitiated, ToStatus: payment.StatusSuccess, CreatedAt: time.Now()},
	}, nil)
	h := NewPayment(validator.NewJSON(), svc, nil)

	rr := httptest.NewRecorder()
	paymentRouter(h).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/payments/p1/events", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var out struct {
		PaymentID string           `json:"payment_id"`
		Events    []map[string]any `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Equal(t, "p1", out.PaymentID)
	require.Len(t, out.Events, 2)
	require.Equal(t, "webhook_received", out.Events[1]["event_type"])
}

func TestPayment_ListByCandidate(t *testing.T) {
	rm := new(readModelMock)
	rm.On("ListByCandidate", "cand-1").Return([]readmodels.PaymentView{
		{PaymentID: "p1", CandidateID: "cand-1", Status: "success"},
	})
	h := NewPayment(validator.NewJSON(), new(paymentServiceMock), rm)

	rr := httptest.NewRecorder()
	paymentRouter(h).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/candidates/cand-1/payments", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var out struct {
		CandidateID string                  `json:"candidate_id"`
		Payments    []readmodels.PaymentView `json:"payments"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Equal(t, "cand-1", out.CandidateID)
	require.Len(t, out.Payments, 1)
}
