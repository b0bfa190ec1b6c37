package reconciliation

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"portal/internal/audit"
	"portal/internal/payment"
	"portal/kit/broker"
)

// LedgerContract define the payment ledger operations reconciliation
// needs.
type LedgerContract interface {
	Get(ctx context.Context, id string) (*payment.Transaction, error)
	ApplyTransition(ctx context.Context, req payment.TransitionRequest) (*payment.Event, error)
	AppendEvent(ctx context.Context, evt *payment.Event) (*payment.Event, error)
	MarkVerified(ctx context.Context, paymentID string, at time.Time) error
}

// DisputeRepositoryContract define dispute persistence responsibility.
type DisputeRepositoryContract interface {
	Create(ctx context.Context, d *Dispute) error
	Get(ctx context.Context, id string) (*Dispute, error)
	ListByPayment(ctx context.Context, paymentID string) ([]Dispute, error)
	Resolve(ctx context.Context, id, resolution, resolvedBy string, at time.Time) (*Dispute, error)
}

// AuditContract define audit trail responsibility.
type AuditContract interface {
	Record(ctx context.Context, e audit.Entry)
}

// PublisherContract define publish responsibility (broker).
type PublisherContract interface {
	Publish(ctx context.Context, evt broker.Event) []error
}

// ServiceContract define reconciliation responsibility.
type ServiceContract interface {
	VerifyPayment(ctx context.Context, actorID, paymentID string) (*payment.Transaction, error)
	RefundPayment(ctx context.Context, actorID, paymentID string, amount decimal.Decimal, reason string) (*payment.Transaction, error)
	CreateDispute(ctx context.Context, actorID, paymentID, reason, description string) (*Dispute, error)
	ResolveDispute(ctx context.Context, actorID, disputeID, resolution string) (*Dispute, error)
	GetDispute(ctx context.Context, disputeID string) (*Dispute, error)
}
