package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestPaystack_Initialize(t *testing.T) {
	var tests = []struct {
		name        string
		handler     http.HandlerFunc
		expectedErr error
	}{
		{
			name: "success",
			handler: func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, http.MethodPost, r.Method)
				require.Equal(t, "/transaction/initialize", r.URL.Path)
				require.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
				_, _ = w.Write([]byte(`{"status":true,"data":{"authorization_url":"https://checkout.paystack.com/abc","access_code":"abc","reference":"PAY-REF-1"}}`))
			},
		},
		{
			name: "declined envelope",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"status":false,"message":"Invalid key"}`))
			},
			expectedErr: ErrGatewayRejected,
		},
		{
			name: "http 401",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
			expectedErr: ErrGatewayRejected,
		},
		{
			name: "http 500",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			expectedErr: ErrUpstream,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			p := NewPaystack(PaystackConfig{Secret: "sk_test", BaseURL: srv.URL})
			resp, err := p.Initialize(context.Background(), InitializeRequest{
				Reference: "PAY-REF-1",
				Email:     "cand@example.test",
				Amount:    decimal.NewFromInt(2000),
				Currency:  "NGN",
			})
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, "PAY-REF-1", resp.ProviderReference)
			require.Equal(t, "https://checkout.paystack.com/abc", resp.PaymentURL)
			require.Equal(t, "abc", resp.AccessCode)
			require.False(t, resp.ExpiresAt.IsZero())
		})
	}
}

func TestPaystack_InitializeTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	p := NewPaystack(PaystackConfig{Secret: "sk_test", BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := p.Initialize(context.Background(), InitializeRequest{
		Reference: "PAY-REF-1",
		Amount:    decimal.NewFromInt(2000),
		Currency:  "NGN",
	})
	require.ErrorIs(t, err, ErrTimeout)
}

func TestPaystack_Verify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transaction/verify/PAY-REF-1", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":true,"data":{"status":"success","amount":200000,"currency":"NGN","paid_at":"2026-03-01T10:00:00Z"}}`))
	}))
	defer srv.Close()

	p := NewPaystack(PaystackConfig{Secret: "sk_test", BaseURL: srv.URL})
	res, err := p.Verify(context.Background(), "PAY-REF-1")
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, res.Status)
	// 200000 kobo is 2000 naira.
	require.True(t, res.Amount.Equal(decimal.NewFromInt(2000)))
	require.Equal(t, "NGN", res.Currency)
	require.False(t, res.PaidAt.IsZero())
}

func TestPaystack_ParseWebhook(t *testing.T) {
	p := NewPaystack(PaystackConfig{Secret: "sk_test", BaseURL: "http://unused"})

	var tests = []struct {
		name     string
		payload  string
		valid    bool
		eventID  string
		status   Status
		amount   int64
	}{
		{
			name:    "charge success",
			payload: `{"event":"charge.success","data":{"id":12345,"reference":"PAY-REF-1","status":"success","amount":200000,"currency":"NGN"}}`,
			valid:   true,
			eventID: "12345",
			status:  StatusSuccess,
			amount:  2000,
		},
		{
			name:    "abandoned maps to cancelled",
			payload: `{"event":"charge.abandoned","data":{"id":12346,"reference":"PAY-REF-1","status":"abandoned","amount":200000,"currency":"NGN"}}`,
			valid:   true,
			eventID: "12346",
			status:  StatusCancelled,
			amount:  2000,
		},
		{
			name:    "unknown status stays pending",
			payload: `{"event":"charge.whatever","data":{"id":12347,"reference":"PAY-REF-1","status":"queued","amount":200000,"currency":"NGN"}}`,
			valid:   true,
			eventID: "12347",
			status:  StatusPending,
			amount:  2000,
		},
		{
			name:    "missing event id still parses",
			payload: `{"event":"charge.success","data":{"reference":"PAY-REF-1","status":"success","amount":200000,"currency":"NGN"}}`,
			valid:   true,
			eventID: "",
			status:  StatusSuccess,
			amount:  2000,
		},
		{name: "malformed", payload: `{"event":`, valid: false},
		{name: "missing reference", payload: `{"event":"charge.success","data":{"id":1,"status":"success","amount":200000}}`, valid: false},
		{name: "missing status", payload: `{"event":"charge.success","data":{"id":1,"reference":"PAY-REF-1","amount":200000}}`, valid: false},
		{name: "zero amount", payload: `{"event":"charge.success","data":{"id":1,"reference":"PAY-REF-1","status":"success","amount":0}}`, valid: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := p.ParseWebhook([]byte(tt.payload))
			require.Equal(t, tt.valid, res.Valid)
			if !tt.valid {
				require.NotEmpty(t, res.Reason)
				return
			}
			require.Equal(t, tt.eventID, res.EventID)
			require.Equal(t, tt.status, res.Status)
			require.True(t, res.Amount.Equal(decimal.NewFromInt(tt.amount)))
		})
	}
}

func TestPaystack_CheckSignature(t *testing.T) {
	p := NewPaystack(PaystackConfig{Secret: "sk_test", BaseURL: "http://unused"})
	payload := []byte(`{"event":"charge.success"}`)
	now := time.Now()

	require.True(t, p.CheckSignature(payload, SignSHA512("sk_test", payload, now), now))
	// Paystack signs with SHA-512, never SHA-256.
	require.False(t, p.CheckSignature(payload, SignSHA256("sk_test", payload, now), now))
	require.False(t, p.CheckSignature(payload, SignSHA512("other", payload, now), now))
}
