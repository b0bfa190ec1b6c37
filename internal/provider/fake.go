package provider

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const NameFake = "fake"

// FakeAdapter is an in-process gateway used by tests and local runs. It
// never performs network I/O; failure modes are injected through fields.
type FakeAdapter struct {
	AdapterName string
	Secret      string
	InitErr     error
	VerifyErr   error
	VerifyRes   *VerificationResult
	Now         func() time.Time
}

func NewFakeAdapter(secret string) *FakeAdapter {
	return &FakeAdapter{Secret: secret}
}

func (a *FakeAdapter) Name() string {
	if a.AdapterName != "" {
		return a.AdapterName
	}
	return NameFake
}

func (a *FakeAdapter) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now().UTC()
}

func (a *FakeAdapter) Initialize(ctx context.Context, req InitializeRequest) (*GatewayResponse, error) {
	if a.InitErr != nil {
		return nil, a.InitErr
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return &GatewayResponse{
		ProviderReference: req.Reference,
		PaymentURL:        "https://checkout.fake.test/" + req.Reference,
		RedirectURL:       "https://checkout.fake.test/" + req.Reference,
		ExpiresAt:         a.now().Add(MaxSessionTTL),
	}, nil
}

func (a *FakeAdapter) Verify(ctx context.Context, providerReference string) (*VerificationResult, error) {
	if a.VerifyErr != nil {
		return nil, a.VerifyErr
	}
	if a.VerifyRes != nil {
		return a.VerifyRes, nil
	}
	return &VerificationResult{
		ProviderReference: providerReference,
		Status:            StatusPending,
		RawStatus:         "pending",
	}, nil
}

func (a *FakeAdapter) CheckSignature(payload []byte, signature string, timestamp time.Time) bool {
	return checkHMAC(sha256.New, a.Secret, payload, signature, timestamp)
}

// Sign produces a signature the adapter itself accepts; tests use it to
// build well-formed deliveries.
func (a *FakeAdapter) Sign(payload []byte, timestamp time.Time) string {
	return SignSHA256(a.Secret, payload, timestamp)
}

type fakeWebhook struct {
	EventID   string          `json:"event_id"`
	Reference string          `json:"reference"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
}

func (a *FakeAdapter) ParseWebhook(payload []byte) WebhookResult {
	var wh fakeWebhook
	if err := json.Unmarshal(payload, &wh); err != nil {
		return WebhookResult{Reason: "malformed payload"}
	}
	if wh.Reference == "" {
		return WebhookResult{Reason: "missing reference"}
	}
	if wh.Status == "" {
		return WebhookResult{Reason: "missing status"}
	}
	if wh.Amount.Sign() <= 0 {
		return WebhookResult{Reason: "missing or invalid amount"}
	}
	return WebhookResult{
		Valid:     true,
		EventID:   wh.EventID,
		Reference: wh.Reference,
		Status:    fakeStatus(wh.Status),
		RawStatus: wh.Status,
		Amount:    wh.Amount,
		Currency:  wh.Currency,
	}
}

func fakeStatus(s string) Status {
	switch s {
	case "success", "successful":
		return StatusSuccess
	case "failed":
		return StatusFailed
	case "cancelled":
		return StatusCancelled
	case "processing":
		return StatusProcessing
	default:
		return StatusPending
	}
}
