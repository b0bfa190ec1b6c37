package payment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"portal/internal/provider"
	"portal/kit/db"
	"portal/kit/observability"
)

type InitiateResult struct {
	Transaction *Transaction
	PaymentURL  string
	RedirectURL string
	Replayed    bool
}

type IngestResult struct {
	Transaction  *Transaction
	Event        *Event
	Duplicate    bool
	Transitioned bool
}

// Service orchestrates the payment lifecycle: initiation through the
// provider registry, webhook ingestion with at-most-once application, and
// provider-driven verification.
type Service struct {
	registry       RegistryContract
	ledger         Ledger
	pricing        PricingContract
	bus            PublisherContract
	metrics        *observability.Metrics
	gatewayTimeout time.Duration
	now            func() time.Time
	newID          func() string
}

func NewService(registry RegistryContract, ledger Ledger, pricing PricingContract, bus PublisherContract, metrics *observability.Metrics, gatewayTimeout time.Duration) *Service {
	if gatewayTimeout <= 0 {
		gatewayTimeout = 10 * time.Second
	}
	return &Service{
		registry:       registry,
		ledger:         ledger,
		pricing:        pricing,
		bus:            bus,
		metrics:        metrics,
		gatewayTimeout: gatewayTimeout,
		now:            func() time.Time { return time.Now().UTC() },
		newID:          uuid.NewString,
	}
}

func (s *Service) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	if err := ValidateInitiateRequest(req); err != nil {
		log.Printf("layer=service component=payment method=Initiate candidate_id=%s err=%v", req.CandidateID, err)
		return nil, errors.Join(db.ErrInvalid, err)
	}
	hash := RequestHash(req)

	if existing, err := s.ledger.GetByIdempotencyKey(ctx, req.IdempotencyKey); err == nil {
		return s.replay(ctx, existing, hash)
	} else if !db.IsNotFound(err) {
		return nil, err
	}

	expected, currency, err := s.pricing.Amount(req.Purpose, req.Session)
	if err != nil {
		log.Printf("layer=service component=payment method=Initiate candidate_id=%s purpose=%s session=%s err=%v",
			req.CandidateID, req.Purpose, req.Session, err)
		return nil, errors.Join(db.ErrInvalid, err)
	}
	if !req.Amount.Equal(expected) || req.Currency != currency {
		log.Printf("layer=service component=payment method=Initiate candidate_id=%s purpose=%s got=%s%s want=%s%s err=amount_mismatch",
			req.CandidateID, req.Purpose, req.Currency, req.Amount, currency, expected)
		return nil, errors.Join(db.ErrInvalid,
			fmt.Errorf("amount %s %s does not match configured fee %s %s", req.Currency, req.Amount, currency, expected))
	}

	adapter, err := s.registry.Pick(req.PreferredProvider)
	if err != nil {
		return nil, err
	}

	reference := provider.DeriveReference(req.CandidateID, string(req.Purpose), req.Session, req.IdempotencyKey)

	callCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()
	resp, err := adapter.Initialize(callCtx, provider.InitializeRequest{
		Reference:   reference,
		CandidateID: req.CandidateID,
		Email:       req.Email,
		Phone:       req.Phone,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Purpose:     string(req.Purpose),
		Session:     req.Session,
		Metadata:    req.Metadata,
	})
	if err != nil {
		log.Printf("layer=service component=payment method=Initiate candidate_id=%s provider=%s err=%v",
			req.CandidateID, adapter.Name(), err)
		return nil, err
	}

	now := s.now()
	expiresAt := resp.ExpiresAt
	if maxExpiry := now.Add(provider.MaxSessionTTL); expiresAt.IsZero() || expiresAt.After(maxExpiry) {
		expiresAt = maxExpiry
	}

	tx := &Transaction{
		ID:                s.newID(),
		CandidateID:       req.CandidateID,
		Purpose:           req.Purpose,
		Provider:          adapter.Name(),
		ProviderReference: resp.ProviderReference,
		Amount:            req.Amount,
		Currency:          req.Currency,
		Status:            StatusInitiated,
		Session:           req.Session,
		IdempotencyKey:    req.IdempotencyKey,
		RequestHash:       hash,
		ExternalReference: resp.AccessCode,
		Metadata:          req.Metadata,
		ExpiresAt:         expiresAt,
		CreatedAt:         now,
		UpdatedAt:         now,
		FirstRequestAt:    now,
		LastRequestAt:     now,
	}
	if _, err := s.ledger.Create(ctx, tx); err != nil {
		if db.IsDuplicate(err) {
			// Lost a race on the idempotency key; the winner's row decides.
			if existing, gErr := s.ledger.GetByIdempotencyKey(ctx, req.IdempotencyKey); gErr == nil {
				return s.replay(ctx, existing, hash)
			}
		}
		log.Printf("layer=service component=payment method=Initiate candidate_id=%s payment_id=%s err=%v",
			req.CandidateID, tx.ID, err)
		return nil, err
	}

	if s.bus != nil {
		s.bus.Publish(ctx, ToInitiatedEvent(tx))
	}
	if s.metrics != nil {
		s.metrics.PaymentsInitiated.Add(1)
	}
	return &InitiateResult{Transaction: tx, PaymentURL: resp.PaymentURL, RedirectURL: resp.RedirectURL}, nil
}

// replay handles a re-submitted idempotency key: the same logical request
// returns the original transaction, a different one is a hard conflict.
func (s *Service) replay(ctx context.Context, existing *Transaction, hash string) (*InitiateResult, error) {
	if existing.RequestHash != hash {
		log.Printf("layer=service component=payment method=Initiate payment_id=%s err=idempotency_key_reuse", existing.ID)
		return nil, errors.Join(db.ErrConflict, errors.New("idempotency key reused with different request"))
	}
	if err := s.ledger.TouchRequest(ctx, existing.ID, s.now()); err != nil {
		log.Printf("layer=service component=payment method=Initiate payment_id=%s err=%v", existing.ID, err)
	}
	return &InitiateResult{Transaction: existing, Replayed: true}, nil
}

func (s *Service) IngestWebhook(ctx context.Context, providerName string, payload []byte, signature string, timestamp time.Time) (*IngestResult, error) {
	if s.metrics != nil {
		s.metrics.WebhooksReceived.Add(1)
	}

	adapter, err := s.registry.Get(providerName)
	if err != nil {
		return nil, err
	}

	if !adapter.CheckSignature(payload, signature, timestamp) {
		if s.metrics != nil {
			s.metrics.WebhooksRejected.Add(1)
		}
		log.Printf("layer=service component=payment method=IngestWebhook provider=%s err=%v", providerName, provider.ErrBadSignature)
		return nil, provider.ErrBadSignature
	}

	parsed := adapter.ParseWebhook(payload)
	if !parsed.Valid {
		if s.metrics != nil {
			s.metrics.WebhooksRejected.Add(1)
		}
		log.Printf("layer=service component=payment method=IngestWebhook provider=%s reason=%q err=%v",
			providerName, parsed.Reason, db.ErrInvalid)
		return nil, errors.Join(db.ErrInvalid, errors.New(parsed.Reason))
	}

	peid := providerEventID(providerName, parsed.EventID, payload)

	if seen, err := s.ledger.HasProviderEvent(ctx, peid); err != nil {
		return nil, err
	} else if seen {
		return s.absorbDuplicate(ctx, providerName, parsed.Reference)
	}

	tx, err := s.ledger.GetByProviderReference(ctx, providerName, parsed.Reference)
	if err != nil {
		// A webhook for a transaction never initiated is a bug or fraud;
		// it must not create one implicitly.
		log.Printf("layer=service component=payment method=IngestWebhook provider=%s reference=%s err=%v",
			providerName, parsed.Reference, err)
		return nil, err
	}

	if !parsed.Amount.Equal(tx.Amount) {
		if s.metrics != nil {
			s.metrics.WebhooksRejected.Add(1)
		}
		log.Printf("layer=service component=payment method=IngestWebhook payment_id=%s got=%s want=%s err=amount_mismatch",
			tx.ID, parsed.Amount, tx.Amount)
		return nil, errors.Join(db.ErrInvalid, errors.New("webhook amount does not match transaction"))
	}

	newStatus := statusFromProvider(parsed.Status)
	if newStatus != tx.Status && !CanTransition(tx.Status, newStatus) {
		log.Printf("layer=service component=payment method=IngestWebhook payment_id=%s from=%s to=%s err=illegal_transition",
			tx.ID, tx.Status, newStatus)
		return nil, errors.Join(db.ErrConflict, fmt.Errorf("illegal transition %s -> %s", tx.Status, newStatus))
	}

	sigSum := sha256.Sum256([]byte(signature))
	evt, err := s.ledger.ApplyTransition(ctx, TransitionRequest{
		PaymentID:         tx.ID,
		From:              tx.Status,
		To:                newStatus,
		EventType:         EventWebhookReceived,
		ProviderEventID:   peid,
		SignatureHash:     hex.EncodeToString(sigSum[:]),
		ProviderData:      string(payload),
		Metadata:          map[string]string{"raw_status": parsed.RawStatus},
		WebhookReceivedAt: s.now(),
	})
	if err != nil {
		if db.IsDuplicate(err) {
			// Concurrent delivery of the same event won the insert race.
			return s.absorbDuplicate(ctx, providerName, parsed.Reference)
		}
		return nil, err
	}

	updated, err := s.ledger.Get(ctx, tx.ID)
	if err != nil {
		return nil, err
	}
	if newStatus != tx.Status {
		s.publishTransition(ctx, updated, tx.Status, newStatus, peid, parsed.RawStatus)
	}
	return &IngestResult{Transaction: updated, Event: evt, Transitioned: newStatus != tx.Status}, nil
}

func (s *Service) absorbDuplicate(ctx context.Context, providerName, reference string) (*IngestResult, error) {
	if s.metrics != nil {
		s.metrics.WebhooksDuplicate.Add(1)
	}
	tx, err := s.ledger.GetByProviderReference(ctx, providerName, reference)
	if err != nil {
		return nil, err
	}
	return &IngestResult{Transaction: tx, Duplicate: true}, nil
}

func (s *Service) VerifyWithProvider(ctx context.Context, paymentID string) (*Transaction, error) {
	tx, err := s.ledger.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	adapter, err := s.registry.Get(tx.Provider)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()
	vr, err := adapter.Verify(callCtx, tx.ProviderReference)
	if err != nil {
		log.Printf("layer=service component=payment method=VerifyWithProvider payment_id=%s provider=%s err=%v",
			paymentID, tx.Provider, err)
		return nil, err
	}

	newStatus := statusFromProvider(vr.Status)
	if newStatus == tx.Status {
		if err := s.ledger.MarkVerified(ctx, tx.ID, s.now()); err != nil {
			return nil, err
		}
		return s.ledger.Get(ctx, tx.ID)
	}
	if !CanTransition(tx.Status, newStatus) {
		log.Printf("layer=service component=payment method=VerifyWithProvider payment_id=%s from=%s to=%s err=illegal_transition",
			tx.ID, tx.Status, newStatus)
		return nil, errors.Join(db.ErrConflict, fmt.Errorf("illegal transition %s -> %s", tx.Status, newStatus))
	}

	if _, err := s.ledger.ApplyTransition(ctx, TransitionRequest{
		PaymentID:  tx.ID,
		From:       tx.Status,
		To:         newStatus,
		EventType:  EventStatusChanged,
		Metadata:   map[string]string{"raw_status": vr.RawStatus, "source": "provider_verify"},
		VerifiedAt: s.now(),
	}); err != nil {
		return nil, err
	}

	updated, err := s.ledger.Get(ctx, tx.ID)
	if err != nil {
		return nil, err
	}
	s.publishTransition(ctx, updated, tx.Status, newStatus, "", vr.RawStatus)
	return updated, nil
}

func (s *Service) publishTransition(ctx context.Context, tx *Transaction, from, to Status, providerEventID, rawStatus string) {
	if s.bus != nil {
		s.bus.Publish(ctx, ToStatusChangedEvent(tx, from, to, providerEventID))
	}
	switch to {
	case StatusSuccess:
		if s.metrics != nil {
			s.metrics.PaymentsSucceeded.Add(1)
		}
		if s.bus != nil {
			// Receipt generation hangs off this event; a failing
			// subscriber never rolls back the committed transition.
			s.bus.Publish(ctx, ToSucceededEvent(tx))
		}
	case StatusFailed, StatusCancelled:
		if s.metrics != nil {
			s.metrics.PaymentsFailed.Add(1)
		}
		if s.bus != nil {
			s.bus.Publish(ctx, ToFailedEvent(tx, rawStatus))
		}
	}
}

func (s *Service) Get(ctx context.Context, paymentID string) (*Transaction, error) {
	tx, err := s.ledger.Get(ctx, paymentID)
	if err != nil {
		log.Printf("layer=service component=payment method=Get payment_id=%s err=%v", paymentID, err)
		return nil, err
	}
	return tx, nil
}

func (s *Service) ListEvents(ctx context.Context, paymentID string) ([]Event, error) {
	if _, err := s.ledger.Get(ctx, paymentID); err != nil {
		return nil, err
	}
	return s.ledger.ListEvents(ctx, paymentID)
}

// providerEventID keys webhook deduplication off the gateway-supplied
// event id when one exists; otherwise the exact wire bytes decide.
func providerEventID(providerName, eventID string, payload []byte) string {
	if eventID != "" {
		return providerName + ":" + eventID
	}
	sum := sha256.Sum256(payload)
	return providerName + ":" + hex.EncodeToString(sum[:])
}
