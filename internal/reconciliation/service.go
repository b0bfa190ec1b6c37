package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"portal/internal/audit"
	"portal/internal/events"
	"portal/internal/payment"
	"portal/kit/db"
	"portal/kit/observability"
)

// Service layers the administrative verify/refund/dispute operations on
// top of the ledger. Every action writes a general audit entry outside
// the payment subsystem.
type Service struct {
	ledger   LedgerContract
	disputes DisputeRepositoryContract
	auditor  AuditContract
	bus      PublisherContract
	metrics  *observability.Metrics
	now      func() time.Time
	newID    func() string
}

func NewService(ledger LedgerContract, disputes DisputeRepositoryContract, auditor AuditContract, bus PublisherContract, metrics *observability.Metrics) *Service {
	return &Service{
		ledger:   ledger,
		disputes: disputes,
		auditor:  auditor,
		bus:      bus,
		metrics:  metrics,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

func (s *Service) VerifyPayment(ctx context.Context, actorID, paymentID string) (*payment.Transaction, error) {
	tx, err := s.ledger.Get(ctx, paymentID)
	if err != nil {
		log.Printf("layer=service component=reconciliation method=VerifyPayment payment_id=%s err=%v", paymentID, err)
		return nil, err
	}
	if tx.Status != payment.StatusSuccess {
		log.Printf("layer=service component=reconciliation method=VerifyPayment payment_id=%s status=%s err=%v",
			paymentID, tx.Status, db.ErrConflict)
		return nil, errors.Join(db.ErrConflict, fmt.Errorf("verify requires status %s, have %s", payment.StatusSuccess, tx.Status))
	}

	now := s.now()
	if err := s.ledger.MarkVerified(ctx, tx.ID, now); err != nil {
		return nil, err
	}
	if _, err := s.ledger.AppendEvent(ctx, &payment.Event{
		PaymentID:  tx.ID,
		EventType:  payment.EventVerified,
		FromStatus: tx.Status,
		ToStatus:   tx.Status,
		Metadata:   map[string]string{"actor": actorID},
	}); err != nil {
		return nil, err
	}

	updated, err := s.ledger.Get(ctx, tx.ID)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actorID, "payment.verify", tx.ID, tx, updated)
	if s.bus != nil {
		s.bus.Publish(ctx, events.PaymentVerified{PaymentID: tx.ID, Actor: actorID, At: now})
	}
	return updated, nil
}

func (s *Service) RefundPayment(ctx context.Context, actorID, paymentID string, amount decimal.Decimal, reason string) (*payment.Transaction, error) {
	tx, err := s.ledger.Get(ctx, paymentID)
	if err != nil {
		log.Printf("layer=service component=reconciliation method=RefundPayment payment_id=%s err=%v", paymentID, err)
		return nil, err
	}
	if tx.Status != payment.StatusSuccess {
		log.Printf("layer=service component=reconciliation method=RefundPayment payment_id=%s status=%s err=%v",
			paymentID, tx.Status, db.ErrConflict)
		return nil, errors.Join(db.ErrConflict, fmt.Errorf("refund requires status %s, have %s", payment.StatusSuccess, tx.Status))
	}
	if amount.Sign() <= 0 || amount.GreaterThan(tx.Amount) {
		log.Printf("layer=service component=reconciliation method=RefundPayment payment_id=%s amount=%s max=%s err=%v",
			paymentID, amount, tx.Amount, db.ErrInvalid)
		return nil, errors.Join(db.ErrInvalid, fmt.Errorf("refund amount %s exceeds transaction amount %s", amount, tx.Amount))
	}

	now := s.now()
	if _, err := s.ledger.ApplyTransition(ctx, payment.TransitionRequest{
		PaymentID:  tx.ID,
		From:       tx.Status,
		To:         payment.StatusRefunded,
		EventType:  payment.EventRefunded,
		Metadata:   map[string]string{"actor": actorID, "reason": reason, "refund_amount": amount.StringFixed(2)},
		RefundedAt: now,
	}); err != nil {
		return nil, err
	}

	updated, err := s.ledger.Get(ctx, tx.ID)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actorID, "payment.refund", tx.ID, tx, updated)
	if s.metrics != nil {
		s.metrics.RefundsProcessed.Add(1)
	}
	if s.bus != nil {
		s.bus.Publish(ctx, events.PaymentRefunded{
			PaymentID: tx.ID,
			Actor:     actorID,
			Amount:    amount.StringFixed(2),
			Reason:    reason,
			At:        now,
		})
	}
	return updated, nil
}

func (s *Service) CreateDispute(ctx context.Context, actorID, paymentID, reason, description string) (*Dispute, error) {
	if reason == "" {
		return nil, errors.Join(db.ErrInvalid, errors.New("dispute reason is required"))
	}
	tx, err := s.ledger.Get(ctx, paymentID)
	if err != nil {
		log.Printf("layer=service component=reconciliation method=CreateDispute payment_id=%s err=%v", paymentID, err)
		return nil, err
	}
	if tx.Status != payment.StatusSuccess {
		log.Printf("layer=service component=reconciliation method=CreateDispute payment_id=%s status=%s err=%v",
			paymentID, tx.Status, db.ErrConflict)
		return nil, errors.Join(db.ErrConflict, fmt.Errorf("dispute requires status %s, have %s", payment.StatusSuccess, tx.Status))
	}

	now := s.now()
	d := &Dispute{
		ID:          s.newID(),
		PaymentID:   tx.ID,
		CandidateID: tx.CandidateID,
		Reason:      reason,
		Description: description,
		Status:      DisputeOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// The conditional transition is the concurrency gate; only the
	// winner creates the dispute row.
	if _, err := s.ledger.ApplyTransition(ctx, payment.TransitionRequest{
		PaymentID: tx.ID,
		From:      tx.Status,
		To:        payment.StatusDisputed,
		EventType: payment.EventDisputeOpened,
		Metadata:  map[string]string{"actor": actorID, "dispute_id": d.ID, "reason": reason},
	}); err != nil {
		return nil, err
	}
	if err := s.disputes.Create(ctx, d); err != nil {
		log.Printf("layer=service component=reconciliation method=CreateDispute payment_id=%s dispute_id=%s err=%v",
			paymentID, d.ID, err)
		return nil, err
	}

	updated, err := s.ledger.Get(ctx, tx.ID)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actorID, "dispute.create", tx.ID, tx, updated)
	if s.metrics != nil {
		s.metrics.DisputesOpened.Add(1)
	}
	if s.bus != nil {
		s.bus.Publish(ctx, events.DisputeOpened{
			DisputeID:   d.ID,
			PaymentID:   tx.ID,
			CandidateID: tx.CandidateID,
			Reason:      reason,
			At:          now,
		})
	}
	return d, nil
}

func (s *Service) ResolveDispute(ctx context.Context, actorID, disputeID, resolution string) (*Dispute, error) {
	if resolution == "" {
		return nil, errors.Join(db.ErrInvalid, errors.New("dispute resolution is required"))
	}
	before, err := s.disputes.Get(ctx, disputeID)
	if err != nil {
		log.Printf("layer=service component=reconciliation method=ResolveDispute dispute_id=%s err=%v", disputeID, err)
		return nil, err
	}
	if !resolvable(before.Status) {
		log.Printf("layer=service component=reconciliation method=ResolveDispute dispute_id=%s status=%s err=%v",
			disputeID, before.Status, db.ErrConflict)
		return nil, errors.Join(db.ErrConflict, fmt.Errorf("dispute in status %s cannot be resolved", before.Status))
	}

	now := s.now()
	resolved, err := s.disputes.Resolve(ctx, disputeID, resolution, actorID, now)
	if err != nil {
		return nil, err
	}

	if _, err := s.ledger.ApplyTransition(ctx, payment.TransitionRequest{
		PaymentID: resolved.PaymentID,
		From:      payment.StatusDisputed,
		To:        payment.StatusSuccess,
		EventType: payment.EventDisputeResolved,
		Metadata:  map[string]string{"actor": actorID, "dispute_id": disputeID, "resolution": resolution},
	}); err != nil && !db.IsConflict(err) {
		return nil, err
	}

	s.audit(ctx, actorID, "dispute.resolve", resolved.PaymentID, before, resolved)
	if s.metrics != nil {
		s.metrics.DisputesResolved.Add(1)
	}
	if s.bus != nil {
		s.bus.Publish(ctx, events.DisputeResolved{
			DisputeID:  disputeID,
			PaymentID:  resolved.PaymentID,
			Resolution: resolution,
			ResolvedBy: actorID,
			At:         now,
		})
	}
	return resolved, nil
}

func (s *Service) GetDispute(ctx context.Context, disputeID string) (*Dispute, error) {
	d, err := s.disputes.Get(ctx, disputeID)
	if err != nil {
		log.Printf("layer=service component=reconciliation method=GetDispute dispute_id=%s err=%v", disputeID, err)
		return nil, err
	}
	return d, nil
}

func (s *Service) audit(ctx context.Context, actorID, action, paymentID string, before, after any) {
	if s.auditor == nil {
		return
	}
	s.auditor.Record(ctx, audit.Entry{
		Actor:    actorID,
		Action:   action,
		Resource: "payments/" + paymentID,
		Before:   before,
		After:    after,
	})
}
