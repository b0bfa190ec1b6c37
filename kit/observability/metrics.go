package observability

import "sync/atomic"

type Metrics struct {
	PaymentsInitiated atomic.Int64
	PaymentsSucceeded atomic.Int64
	PaymentsFailed    atomic.Int64
	WebhooksReceived  atomic.Int64
	WebhooksDuplicate atomic.Int64
	WebhooksRejected  atomic.Int64
	RefundsProcessed  atomic.Int64
	DisputesOpened    atomic.Int64
	DisputesResolved  atomic.Int64
	ReceiptsIssued    atomic.Int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"payments_initiated": m.PaymentsInitiated.Load(),
		"payments_succeeded": m.PaymentsSucceeded.Load(),
		"payments_failed":    m.PaymentsFailed.Load(),
		"webhooks_received":  m.WebhooksReceived.Load(),
		"webhooks_duplicate": m.WebhooksDuplicate.Load(),
		"webhooks_rejected":  m.WebhooksRejected.Load(),
		"refunds_processed":  m.RefundsProcessed.Load(),
		"disputes_opened":    m.DisputesOpened.Load(),
		"disputes_resolved":  m.DisputesResolved.Load(),
		"receipts_issued":    m.ReceiptsIssued.Load(),
	}
}
