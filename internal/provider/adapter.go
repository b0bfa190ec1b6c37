package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrTimeout         = errors.New("provider: gateway timeout")
	ErrUpstream        = errors.New("provider: gateway 5xx")
	ErrGatewayRejected = errors.New("provider: gateway 4xx")
	ErrUnknownProvider = errors.New("provider: unknown provider")
	ErrBadSignature    = errors.New("provider: bad signature or stale timestamp")
	ErrCircuitOpen     = errors.New("provider: circuit open")
)

// ReplayWindow is the maximum accepted age of a webhook timestamp.
const ReplayWindow = 5 * time.Minute

// MaxSessionTTL caps how far out a gateway payment session may expire.
const MaxSessionTTL = 24 * time.Hour

// Status is the canonical transaction status as reported by a gateway.
// Adapters map every gateway-specific status string onto this set;
// anything unrecognized maps to StatusPending, never to a terminal state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

type InitializeRequest struct {
	Reference   string
	CandidateID string
	Email       string
	Phone       string
	Amount      decimal.Decimal
	Currency    string
	Purpose     string
	Session     string
	Metadata    map[string]string
}

type GatewayResponse struct {
	ProviderReference string
	PaymentURL        string
	RedirectURL       string
	AccessCode        string
	ExpiresAt         time.Time
	Metadata          map[string]string
}

type VerificationResult struct {
	ProviderReference string
	Status            Status
	RawStatus         string
	Amount            decimal.Decimal
	Currency          string
	PaidAt            time.Time
}

// WebhookResult carries the parsed content of a gateway notification.
// Missing mandatory fields yield Valid=false with a Reason instead of an
// error so the caller can log and reject without dropping the connection.
type WebhookResult struct {
	Valid     bool
	Reason    string
	EventID   string
	Reference string
	Status    Status
	RawStatus string
	Amount    decimal.Decimal
	Currency  string
}

// Adapter is the uniform contract over one external payment gateway.
type Adapter interface {
	Name() string
	Initialize(ctx context.Context, req InitializeRequest) (*GatewayResponse, error)
	Verify(ctx context.Context, providerReference string) (*VerificationResult, error)
	CheckSignature(payload []byte, signature string, timestamp time.Time) bool
	ParseWebhook(payload []byte) WebhookResult
}

// Pinger is implemented by adapters that can probe gateway reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DeriveReference builds the provider reference for one logical payment
// attempt. The candidate/purpose/session prefix keeps retries traceable to
// the same obligation; the idempotency key suffix keeps distinct attempts
// distinct.
func DeriveReference(candidateID, purpose, session, idempotencyKey string) string {
	base := sha256.Sum256([]byte(candidateID + "|" + purpose + "|" + session))
	attempt := sha256.Sum256([]byte(idempotencyKey))
	return fmt.Sprintf(
		"PAY-%s-%s",
		strings.ToUpper(hex.EncodeToString(base[:5])),
		strings.ToUpper(hex.EncodeToString(attempt[:4])),
	)
}
