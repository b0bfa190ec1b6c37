package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"portal/internal/payment"
	"portal/internal/provider"
)

type webhookServiceMock struct{ mock.Mock }

func (m *webhookServiceMock) IngestWebhook(ctx context.Context, providerName string, payload []byte, signature string, timestamp time.Time) (*payment.IngestResult, error) {
	args := m.Called(ctx, providerName, payload, signature, timestamp)
	res, _ := args.Get(0).(*payment.IngestResult)
	return res, args.Error(1)
}

func webhookRouter(h *Webhook) http.Handler {
	r := chi.NewRouter()
	r.Post("/webhooks/{provider}", h.Receive)
	return r
}

func TestWebhook_Receive(t *testing.T) {
	payload := []byte(`{"event_id":"evt-1","reference":"PAY-REF-1","status":"success","amount":2000}`)

	var tests = []struct {
		name       string
		headers    map[string]string
		service    func() *webhookServiceMock
		assertResp func(t *testing.T, rr *httptest.ResponseRecorder)
	}{
		{
			name:    "bad signature maps to 401",
			headers: map[string]string{"X-Webhook-Signature": "bad"},
			service: func() *webhookServiceMock {
				svc := new(webhookServiceMock)
				svc.On("IngestWebhook", mock.Anything, "paystack", payload, "bad", mock.Anything).
					Return(nil, provider.ErrBadSignature)
				return svc
			},
			assertResp: func(t *testing.T, rr *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusUnauthorized, rr.Code)
			},
		},
		{
			name:    "provider specific header is honoured",
			headers: map[string]string{"x-paystack-signature": "sig-ps"},
			service: func() *webhookServiceMock {
				svc := new(webhookServiceMock)
				svc.On("IngestWebhook", mock.Anything, "paystack", payload, "sig-ps", mock.Anything).
					Return(&payment.IngestResult{Transaction: sampleTx(), Transitioned: true}, nil)
				return svc
			},
			assertResp: func(t *testing.T, rr *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusOK, rr.Code)
			},
		},
		{
			name:    "invalid timestamp header",
			headers: map[string]string{"X-Webhook-Signature": "sig", "X-Webhook-Timestamp": "yesterday"},
			service: func() *webhookServiceMock { return new(webhookServiceMock) },
			assertResp: func(t *testing.T, rr *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusBadRequest, rr.Code)
			},
		},
		{
			name: "timestamp header is forwarded",
			headers: map[string]string{
				"X-Webhook-Signature": "sig",
				"X-Webhook-Timestamp": strconv.FormatInt(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC).Unix(), 10),
			},
			service: func() *webhookServiceMock {
				svc := new(webhookServiceMock)
				want := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
				svc.On("IngestWebhook", mock.Anything, "paystack", payload, "sig",
					mock.MatchedBy(func(ts time.Time) bool { return ts.Equal(want) })).
					Return(&payment.IngestResult{Transaction: sampleTx(), Transitioned: true}, nil)
				return svc
			},
			assertResp: func(t *testing.T, rr *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusOK, rr.Code)
			},
		},
		{
			name:    "duplicate delivery still acknowledged",
			headers: map[string]string{"X-Webhook-Signature": "sig"},
			service: func() *webhookServiceMock {
				svc := new(webhookServiceMock)
				tx := sampleTx()
				tx.Status = payment.StatusSuccess
				svc.On("IngestWebhook", mock.Anything, "paystack", payload, "sig", mock.Anything).
					Return(&payment.IngestResult{Transaction: tx, Duplicate: true}, nil)
				return svc
			},
			assertResp: func(t *testing.T, rr *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusOK, rr.Code)
				var out map[string]any
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
				require.Equal(t, true, out["duplicate"])
				require.Equal(t, false, out["transitioned"])
				require.Equal(t, "success", out["status"])
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", bytes.NewReader(payload))
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rr := httptest.NewRecorder()
			webhookRouter(NewWebhook(tt.service())).ServeHTTP(rr, req)
			tt.assertResp(t, rr)
		})
	}
}
