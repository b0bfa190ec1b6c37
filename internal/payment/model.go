package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusInitiated  Status = "initiated"
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusDisputed   Status = "disputed"
	StatusRefunded   Status = "refunded"
)

type Purpose string

const (
	PurposeApplicationFee Purpose = "application-fee"
	PurposeAcceptanceFee  Purpose = "acceptance-fee"
	PurposeTuition        Purpose = "tuition"
	PurposeOther          Purpose = "other"
)

func ValidPurpose(p Purpose) bool {
	switch p {
	case PurposeApplicationFee, PurposeAcceptanceFee, PurposeTuition, PurposeOther:
		return true
	}
	return false
}

// Transaction is the financial record of one payment attempt. Amount is
// immutable after creation; Status moves only through the transition
// graph.
type Transaction struct {
	ID                string
	CandidateID       string
	Purpose           Purpose
	Provider          string
	ProviderReference string
	Amount            decimal.Decimal
	Currency          string
	Status            Status
	Session           string
	IdempotencyKey    string
	RequestHash       string
	ExternalReference string
	Metadata          map[string]string
	ExpiresAt         time.Time
	ReceiptURL        string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	FirstRequestAt    time.Time
	LastRequestAt     time.Time
	WebhookReceivedAt time.Time
	VerifiedAt        time.Time
	RefundedAt        time.Time
}

type EventType string

const (
	EventInitiated       EventType = "initiated"
	EventWebhookReceived EventType = "webhook_received"
	EventStatusChanged   EventType = "status_changed"
	EventVerified        EventType = "verified"
	EventRefunded        EventType = "refunded"
	EventDisputeOpened   EventType = "dispute_opened"
	EventDisputeResolved EventType = "dispute_resolved"
)

// Event is an append-only audit fact about a transaction. Events are never
// updated or deleted. ProviderEventID, when set, is unique across all
// events and enforces at-most-once webhook application.
type Event struct {
	ID              int64
	PaymentID       string
	EventType       EventType
	FromStatus      Status
	ToStatus        Status
	ProviderEventID string
	SignatureHash   string
	ProviderData    string
	Metadata        map[string]string
	CreatedAt       time.Time
}
