package receipt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"portal/internal/events"
	"portal/kit/broker"
	"portal/kit/observability"
)

// LedgerContract define the slice of the payment ledger the receipt
// service needs.
type LedgerContract interface {
	SetReceiptURL(ctx context.Context, paymentID, url string) error
}

// Service issues a receipt for every succeeded payment. It runs as a bus
// subscriber: a receipt failure is logged and independently retryable,
// never a reason to roll back the payment itself.
type Service struct {
	logger  *observability.Logger
	ledger  LedgerContract
	metrics *observability.Metrics
	baseURL string
}

func NewService(logger *observability.Logger, ledger LedgerContract, metrics *observability.Metrics, baseURL string) *Service {
	if baseURL == "" {
		baseURL = "https://receipts.portal.local"
	}
	return &Service{logger: logger, ledger: ledger, metrics: metrics, baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *Service) HandlePaymentSucceeded(ctx context.Context, evt broker.Event) error {
	e, ok := evt.(events.PaymentSucceeded)
	if !ok {
		return nil
	}

	number := fmt.Sprintf("RCPT-%s-%s", time.Now().UTC().Format("20060102"), strings.ToUpper(uuid.NewString()[:8]))
	url := s.baseURL + "/" + number

	if err := s.ledger.SetReceiptURL(ctx, e.PaymentID, url); err != nil {
		if s.logger != nil {
			s.logger.Error("receipt error", "payment_id", e.PaymentID, "receipt", number, "error", err.Error())
		}
		return err
	}

	if s.metrics != nil {
		s.metrics.ReceiptsIssued.Add(1)
	}
	if s.logger != nil {
		s.logger.Info("receipt issued", "payment_id", e.PaymentID, "candidate_id", e.CandidateID, "receipt", number)
	}
	return nil
}
