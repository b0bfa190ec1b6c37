package readmodels

import (
	"context"
	"sort"
	"sync"
	"time"

	"portal/internal/events"
	"portal/kit/broker"
)

type PaymentView struct {
	PaymentID         string
	CandidateID       string
	Purpose           string
	Amount            string
	Currency          string
	Session           string
	Status            string
	Provider          string
	ProviderReference string
	UpdatedAt         time.Time
}

// Projector keeps per-candidate payment views fed by the event bus.
type Projector struct {
	mu          sync.RWMutex
	payments    map[string]PaymentView
	byCandidate map[string][]string
}

func NewProjector() *Projector {
	return &Projector{
		payments:    make(map[string]PaymentView),
		byCandidate: make(map[string][]string),
	}
}

func (p *Projector) Apply(ctx context.Context, evt broker.Event) error {
	switch e := evt.(type) {
	case events.PaymentInitiated:
		p.applyInitiated(e)
	case events.PaymentStatusChanged:
		p.setStatus(e.PaymentID, e.ToStatus, e.At)
	case events.PaymentRefunded:
		p.setStatus(e.PaymentID, "refunded", e.At)
	case events.DisputeOpened:
		p.setStatus(e.PaymentID, "disputed", e.At)
	case events.DisputeResolved:
		p.setStatus(e.PaymentID, "success", e.At)
	}
	return nil
}

func (p *Projector) applyInitiated(e events.PaymentInitiated) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.payments[e.PaymentID]; !ok {
		p.byCandidate[e.CandidateID] = append(p.byCandidate[e.CandidateID], e.PaymentID)
	}
	p.payments[e.PaymentID] = PaymentView{
		PaymentID:         e.PaymentID,
		CandidateID:       e.CandidateID,
		Purpose:           e.Purpose,
		Amount:            e.Amount,
		Currency:          e.Currency,
		Session:           e.Session,
		Status:            "initiated",
		Provider:          e.Provider,
		ProviderReference: e.ProviderReference,
		UpdatedAt:         e.At,
	}
}

func (p *Projector) setStatus(paymentID, status string, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.payments[paymentID]
	if !ok {
		return
	}
	v.Status = status
	v.UpdatedAt = at
	p.payments[paymentID] = v
}

func (p *Projector) GetPayment(paymentID string) (PaymentView, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.payments[paymentID]
	return v, ok
}

func (p *Projector) ListByCandidate(candidateID string) []PaymentView {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := p.byCandidate[candidateID]
	out := make([]PaymentView, 0, len(ids))
	for _, id := range ids {
		out = append(out, p.payments[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out
}
