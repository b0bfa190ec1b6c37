package reconciliation

import "time"

type DisputeStatus string

const (
	DisputeOpen        DisputeStatus = "open"
	DisputeUnderReview DisputeStatus = "under_review"
	DisputeResolved    DisputeStatus = "resolved"
	DisputeClosed      DisputeStatus = "closed"
)

// Dispute is opened against a succeeded transaction and resolved at most
// once; resolution is terminal.
type Dispute struct {
	ID          string
	PaymentID   string
	CandidateID string
	Reason      string
	Description string
	Status      DisputeStatus
	Resolution  string
	ResolvedBy  string
	ResolvedAt  time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func resolvable(s DisputeStatus) bool {
	return s == DisputeOpen || s == DisputeUnderReview
}
