package payment

import (
	"time"

	"portal/internal/events"
)

func ToInitiatedEvent(tx *Transaction) events.PaymentInitiated {
	return events.PaymentInitiated{
		PaymentID:         tx.ID,
		CandidateID:       tx.CandidateID,
		Purpose:           string(tx.Purpose),
		Amount:            tx.Amount.StringFixed(2),
		Currency:          tx.Currency,
		Session:           tx.Session,
		Provider:          tx.Provider,
		ProviderReference: tx.ProviderReference,
		At:                time.Now().UTC(),
	}
}

func ToStatusChangedEvent(tx *Transaction, from, to Status, providerEventID string) events.PaymentStatusChanged {
	return events.PaymentStatusChanged{
		PaymentID:       tx.ID,
		CandidateID:     tx.CandidateID,
		FromStatus:      string(from),
		ToStatus:        string(to),
		Provider:        tx.Provider,
		ProviderEventID: providerEventID,
		At:              time.Now().UTC(),
	}
}

func ToSucceededEvent(tx *Transaction) events.PaymentSucceeded {
	return events.PaymentSucceeded{
		PaymentID:         tx.ID,
		CandidateID:       tx.CandidateID,
		Purpose:           string(tx.Purpose),
		Amount:            tx.Amount.StringFixed(2),
		Currency:          tx.Currency,
		Session:           tx.Session,
		Provider:          tx.Provider,
		ProviderReference: tx.ProviderReference,
		At:                time.Now().UTC(),
	}
}

func ToFailedEvent(tx *Transaction, reason string) events.PaymentFailed {
	return events.PaymentFailed{
		PaymentID:   tx.ID,
		CandidateID: tx.CandidateID,
		Reason:      reason,
		At:          time.Now().UTC(),
	}
}
