package events

import "time"

type PaymentInitiated struct {
	PaymentID         string    `json:"payment_id"`
	CandidateID       string    `json:"candidate_id"`
	Purpose           string    `json:"purpose"`
	Amount            string    `json:"amount"`
	Currency          string    `json:"currency"`
	Session           string    `json:"session"`
	Provider          string    `json:"provider"`
	ProviderReference string    `json:"provider_reference"`
	At                time.Time `json:"at"`
}

func (PaymentInitiated) Name() string { return "payment.initiated" }

func (e PaymentInitiated) PartitionKey() string { return e.PaymentID }

type PaymentStatusChanged struct {
	PaymentID       string    `json:"payment_id"`
	CandidateID     string    `json:"candidate_id"`
	FromStatus      string    `json:"from_status"`
	ToStatus        string    `json:"to_status"`
	Provider        string    `json:"provider"`
	ProviderEventID string    `json:"provider_event_id,omitempty"`
	At              time.Time `json:"at"`
}

func (PaymentStatusChanged) Name() string { return "payment.status_changed" }

func (e PaymentStatusChanged) PartitionKey() string { return e.PaymentID }

type PaymentSucceeded struct {
	PaymentID         string    `json:"payment_id"`
	CandidateID       string    `json:"candidate_id"`
	Purpose           string    `json:"purpose"`
	Amount            string    `json:"amount"`
	Currency          string    `json:"currency"`
	Session           string    `json:"session"`
	Provider          string    `json:"provider"`
	ProviderReference string    `json:"provider_reference"`
	At                time.Time `json:"at"`
}

func (PaymentSucceeded) Name() string { return "payment.succeeded" }

func (e PaymentSucceeded) PartitionKey() string { return e.PaymentID }

type PaymentFailed struct {
	PaymentID   string    `json:"payment_id"`
	CandidateID string    `json:"candidate_id"`
	Reason      string    `json:"reason"`
	At          time.Time `json:"at"`
}

func (PaymentFailed) Name() string { return "payment.failed" }

func (e PaymentFailed) PartitionKey() string { return e.PaymentID }

type PaymentVerified struct {
	PaymentID string    `json:"payment_id"`
	Actor     string    `json:"actor"`
	At        time.Time `json:"at"`
}

func (PaymentVerified) Name() string { return "payment.verified" }

func (e PaymentVerified) PartitionKey() string { return e.PaymentID }

type PaymentRefunded struct {
	PaymentID string    `json:"payment_id"`
	Actor     string    `json:"actor"`
	Amount    string    `json:"amount"`
	Reason    string    `json:"reason"`
	At        time.Time `json:"at"`
}

func (PaymentRefunded) Name() string { return "payment.refunded" }

func (e PaymentRefunded) PartitionKey() string { return e.PaymentID }

type DisputeOpened struct {
	DisputeID   string    `json:"dispute_id"`
	PaymentID   string    `json:"payment_id"`
	CandidateID string    `json:"candidate_id"`
	Reason      string    `json:"reason"`
	At          time.Time `json:"at"`
}

func (DisputeOpened) Name() string { return "dispute.opened" }

func (e DisputeOpened) PartitionKey() string { return e.PaymentID }

type DisputeResolved struct {
	DisputeID  string    `json:"dispute_id"`
	PaymentID  string    `json:"payment_id"`
	Resolution string    `json:"resolution"`
	ResolvedBy string    `json:"resolved_by"`
	At         time.Time `json:"at"`
}

func (DisputeResolved) Name() string { return "dispute.resolved" }

func (e DisputeResolved) PartitionKey() string { return e.PaymentID }
