package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"portal/internal/provider"
	"portal/kit/broker"
)

// RegistryContract define adapter selection responsibility.
type RegistryContract interface {
	Get(name string) (provider.Adapter, error)
	Pick(preferred string) (provider.Adapter, error)
}

// PricingContract define fee schedule lookup responsibility.
type PricingContract interface {
	Amount(purpose Purpose, session string) (decimal.Decimal, string, error)
}

// PublisherContract define publish responsibility (broker).
type PublisherContract interface {
	Publish(ctx context.Context, evt broker.Event) []error
}

// ServiceContract define orchestrator responsibility.
type ServiceContract interface {
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error)
	IngestWebhook(ctx context.Context, providerName string, payload []byte, signature string, timestamp time.Time) (*IngestResult, error)
	VerifyWithProvider(ctx context.Context, paymentID string) (*Transaction, error)
	Get(ctx context.Context, paymentID string) (*Transaction, error)
	ListEvents(ctx context.Context, paymentID string) ([]Event, error)
}
