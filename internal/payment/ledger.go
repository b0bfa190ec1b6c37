package payment

import (
	"context"
	"log"
	"sync"
	"time"

	"portal/kit/db"
)

// TransitionRequest describes one state transition to commit together
// with its event. From must match the transaction's current status at
// commit time or the request fails with db.ErrConflict; the losing side
// of a race never overwrites the winner.
type TransitionRequest struct {
	PaymentID       string
	From            Status
	To              Status
	EventType       EventType
	ProviderEventID string
	SignatureHash   string
	ProviderData    string
	Metadata        map[string]string

	WebhookReceivedAt time.Time
	VerifiedAt        time.Time
	RefundedAt        time.Time
}

// Ledger owns all reads and writes of transactions and their append-only
// events. It is the only component allowed to mutate transaction state.
type Ledger interface {
	Create(ctx context.Context, tx *Transaction) (*Event, error)
	Get(ctx context.Context, id string) (*Transaction, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*Transaction, error)
	GetByProviderReference(ctx context.Context, providerName, reference string) (*Transaction, error)
	HasProviderEvent(ctx context.Context, providerEventID string) (bool, error)
	ApplyTransition(ctx context.Context, req TransitionRequest) (*Event, error)
	AppendEvent(ctx context.Context, evt *Event) (*Event, error)
	ListEvents(ctx context.Context, paymentID string) ([]Event, error)
	MarkVerified(ctx context.Context, paymentID string, at time.Time) error
	SetReceiptURL(ctx context.Context, paymentID, url string) error
	TouchRequest(ctx context.Context, paymentID string, at time.Time) error
}

// InMemoryLedger mirrors SQLLedger semantics for tests, including the
// uniqueness guarantees and conditional transitions.
type InMemoryLedger struct {
	mu        sync.Mutex
	byID      map[string]*Transaction
	byIdem    map[string]string
	byRef     map[string]string
	events    map[string][]Event
	seenPEIDs map[string]bool
	nextEvent int64
	now       func() time.Time
}

func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{
		byID:      make(map[string]*Transaction),
		byIdem:    make(map[string]string),
		byRef:     make(map[string]string),
		events:    make(map[string][]Event),
		seenPEIDs: make(map[string]bool),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func refKey(providerName, reference string) string { return providerName + "|" + reference }

func (l *InMemoryLedger) Create(ctx context.Context, tx *Transaction) (*Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.byID[tx.ID]; ok {
		return nil, db.ErrConflict
	}
	if _, ok := l.byIdem[tx.IdempotencyKey]; ok {
		return nil, db.ErrDuplicate
	}
	if _, ok := l.byRef[refKey(tx.Provider, tx.ProviderReference)]; ok {
		return nil, db.ErrDuplicate
	}

	cpy := cloneTx(tx)
	l.byID[tx.ID] = cpy
	l.byIdem[tx.IdempotencyKey] = tx.ID
	l.byRef[refKey(tx.Provider, tx.ProviderReference)] = tx.ID

	evt := l.appendLocked(Event{
		PaymentID: tx.ID,
		EventType: EventInitiated,
		ToStatus:  tx.Status,
	})
	return evt, nil
}

func (l *InMemoryLedger) Get(ctx context.Context, id string) (*Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tx, ok := l.byID[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return cloneTx(tx), nil
}

func (l *InMemoryLedger) GetByIdempotencyKey(ctx context.Context, key string) (*Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.byIdem[key]
	if !ok {
		return nil, db.ErrNotFound
	}
	return cloneTx(l.byID[id]), nil
}

func (l *InMemoryLedger) GetByProviderReference(ctx context.Context, providerName, reference string) (*Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.byRef[refKey(providerName, reference)]
	if !ok {
		return nil, db.ErrNotFound
	}
	return cloneTx(l.byID[id]), nil
}

func (l *InMemoryLedger) HasProviderEvent(ctx context.Context, providerEventID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seenPEIDs[providerEventID], nil
}

func (l *InMemoryLedger) ApplyTransition(ctx context.Context, req TransitionRequest) (*Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, ok := l.byID[req.PaymentID]
	if !ok {
		return nil, db.ErrNotFound
	}
	if req.ProviderEventID != "" && l.seenPEIDs[req.ProviderEventID] {
		return nil, db.ErrDuplicate
	}
	if tx.Status != req.From {
		log.Printf("layer=ledger component=payment method=ApplyTransition payment_id=%s expected=%s actual=%s err=%v",
			req.PaymentID, req.From, tx.Status, db.ErrConflict)
		return nil, db.ErrConflict
	}

	now := l.now()
	if req.To != req.From {
		tx.Status = req.To
	}
	tx.UpdatedAt = now
	if !req.WebhookReceivedAt.IsZero() {
		tx.WebhookReceivedAt = req.WebhookReceivedAt
	}
	if !req.VerifiedAt.IsZero() {
		tx.VerifiedAt = req.VerifiedAt
	}
	if !req.RefundedAt.IsZero() {
		tx.RefundedAt = req.RefundedAt
	}

	evt := l.appendLocked(Event{
		PaymentID:       req.PaymentID,
		EventType:       req.EventType,
		FromStatus:      req.From,
		ToStatus:        req.To,
		ProviderEventID: req.ProviderEventID,
		SignatureHash:   req.SignatureHash,
		ProviderData:    req.ProviderData,
		Metadata:        req.Metadata,
	})
	return evt, nil
}

func (l *InMemoryLedger) AppendEvent(ctx context.Context, evt *Event) (*Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.byID[evt.PaymentID]; !ok {
		return nil, db.ErrNotFound
	}
	if evt.ProviderEventID != "" && l.seenPEIDs[evt.ProviderEventID] {
		return nil, db.ErrDuplicate
	}
	return l.appendLocked(*evt), nil
}

func (l *InMemoryLedger) appendLocked(evt Event) *Event {
	l.nextEvent++
	evt.ID = l.nextEvent
	evt.CreatedAt = l.now()
	l.events[evt.PaymentID] = append(l.events[evt.PaymentID], evt)
	if evt.ProviderEventID != "" {
		l.seenPEIDs[evt.ProviderEventID] = true
	}
	return &evt
}

func (l *InMemoryLedger) ListEvents(ctx context.Context, paymentID string) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events[paymentID]...), nil
}

func (l *InMemoryLedger) MarkVerified(ctx context.Context, paymentID string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	tx, ok := l.byID[paymentID]
	if !ok {
		return db.ErrNotFound
	}
	tx.VerifiedAt = at
	tx.UpdatedAt = l.now()
	return nil
}

func (l *InMemoryLedger) SetReceiptURL(ctx context.Context, paymentID, url string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	tx, ok := l.byID[paymentID]
	if !ok {
		return db.ErrNotFound
	}
	tx.ReceiptURL = url
	tx.UpdatedAt = l.now()
	return nil
}

func (l *InMemoryLedger) TouchRequest(ctx context.Context, paymentID string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	tx, ok := l.byID[paymentID]
	if !ok {
		return db.ErrNotFound
	}
	tx.LastRequestAt = at
	tx.UpdatedAt = l.now()
	return nil
}

func cloneTx(tx *Transaction) *Transaction {
	cpy := *tx
	if tx.Metadata != nil {
		cpy.Metadata = make(map[string]string, len(tx.Metadata))
		for k, v := range tx.Metadata {
			cpy.Metadata[k] = v
		}
	}
	return &cpy
}
