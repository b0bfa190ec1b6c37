package payment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"

	"portal/kit/db"
)

// SQLLedger persists transactions and events in sqlite. Uniqueness of
// idempotency keys, provider references, and provider event ids is
// enforced by the schema; state transitions use a current-status-aware
// UPDATE so concurrent writers cannot both win.
type SQLLedger struct {
	conn *sql.DB
	node *snowflake.Node
	now  func() time.Time
}

func NewSQLLedger(conn *sql.DB, node *snowflake.Node) *SQLLedger {
	return &SQLLedger{conn: conn, node: node, now: func() time.Time { return time.Now().UTC() }}
}

const (
	qInsertPayment = `INSERT INTO payments (
		payment_id, candidate_id, purpose, provider, provider_reference,
		amount, currency, status, session, idempotency_key, request_hash,
		external_reference, metadata, expires_at, receipt_url,
		created_at, updated_at, first_request_at, last_request_at,
		webhook_received_at, verified_at, refunded_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	qSelectPayment = `SELECT
		payment_id, candidate_id, purpose, provider, provider_reference,
		amount, currency, status, session, idempotency_key, request_hash,
		external_reference, metadata, expires_at, receipt_url,
		created_at, updated_at, first_request_at, last_request_at,
		webhook_received_at, verified_at, refunded_at
	FROM payments`

	qInsertEvent = `INSERT INTO payment_events (
		event_id, payment_id, event_type, from_status, to_status,
		provider_event_id, signature_hash, provider_data, metadata, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
)

func (l *SQLLedger) Create(ctx context.Context, tx *Transaction) (*Event, error) {
	sqlTx, err := l.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Join(db.ErrInternal, err)
	}
	defer func() { _ = sqlTx.Rollback() }()

	meta, err := json.Marshal(orEmpty(tx.Metadata))
	if err != nil {
		return nil, errors.Join(db.ErrInvalid, err)
	}

	_, err = sqlTx.ExecContext(ctx, qInsertPayment,
		tx.ID, tx.CandidateID, string(tx.Purpose), tx.Provider, tx.ProviderReference,
		tx.Amount.String(), tx.Currency, string(tx.Status), tx.Session, tx.IdempotencyKey, tx.RequestHash,
		tx.ExternalReference, string(meta), timeOrNull(tx.ExpiresAt), tx.ReceiptURL,
		fmtTime(tx.CreatedAt), fmtTime(tx.UpdatedAt), timeOrNull(tx.FirstRequestAt), timeOrNull(tx.LastRequestAt),
		timeOrNull(tx.WebhookReceivedAt), timeOrNull(tx.VerifiedAt), timeOrNull(tx.RefundedAt),
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, errors.Join(db.ErrDuplicate, err)
		}
		log.Printf("layer=ledger component=payment method=Create payment_id=%s err=%v", tx.ID, err)
		return nil, errors.Join(db.ErrInternal, err)
	}

	evt := &Event{
		ID:        l.node.Generate().Int64(),
		PaymentID: tx.ID,
		EventType: EventInitiated,
		ToStatus:  tx.Status,
		CreatedAt: l.now(),
	}
	if err := l.insertEvent(ctx, sqlTx, evt); err != nil {
		return nil, err
	}
	if err := sqlTx.Commit(); err != nil {
		return nil, errors.Join(db.ErrInternal, err)
	}
	return evt, nil
}

func (l *SQLLedger) Get(ctx context.Context, id string) (*Transaction, error) {
	return l.getOne(ctx, qSelectPayment+" WHERE payment_id = ?", id)
}

func (l *SQLLedger) GetByIdempotencyKey(ctx context.Context, key string) (*Transaction, error) {
	return l.getOne(ctx, qSelectPayment+" WHERE idempotency_key = ?", key)
}

func (l *SQLLedger) GetByProviderReference(ctx context.Context, providerName, reference string) (*Transaction, error) {
	return l.getOne(ctx, qSelectPayment+" WHERE provider = ? AND provider_reference = ?", providerName, reference)
}

func (l *SQLLedger) getOne(ctx context.Context, query string, args ...any) (*Transaction, error) {
	tx, err := scanPayment(l.conn.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		log.Printf("layer=ledger component=payment method=getOne err=%v", err)
		return nil, errors.Join(db.ErrInternal, err)
	}
	return tx, nil
}

func (l *SQLLedger) HasProviderEvent(ctx context.Context, providerEventID string) (bool, error) {
	var n int
	err := l.conn.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM payment_events WHERE provider_event_id = ?", providerEventID).Scan(&n)
	if err != nil {
		return false, errors.Join(db.ErrInternal, err)
	}
	return n > 0, nil
}

func (l *SQLLedger) ApplyTransition(ctx context.Context, req TransitionRequest) (*Event, error) {
	sqlTx, err := l.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Join(db.ErrInternal, err)
	}
	defer func() { _ = sqlTx.Rollback() }()

	now := l.now()
	res, err := sqlTx.ExecContext(ctx, `UPDATE payments SET
			status = ?,
			updated_at = ?,
			webhook_received_at = COALESCE(?, webhook_received_at),
			verified_at = COALESCE(?, verified_at),
			refunded_at = COALESCE(?, refunded_at)
		WHERE payment_id = ? AND status = ?`,
		string(req.To), fmtTime(now),
		timeOrNull(req.WebhookReceivedAt), timeOrNull(req.VerifiedAt), timeOrNull(req.RefundedAt),
		req.PaymentID, string(req.From),
	)
	if err != nil {
		return nil, errors.Join(db.ErrInternal, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, errors.Join(db.ErrInternal, err)
	}
	if affected == 0 {
		// Row missing or its status moved under us; tell them apart for
		// the caller.
		if _, gErr := l.Get(ctx, req.PaymentID); gErr != nil {
			return nil, gErr
		}
		log.Printf("layer=ledger component=payment method=ApplyTransition payment_id=%s expected=%s err=%v",
			req.PaymentID, req.From, db.ErrConflict)
		return nil, db.ErrConflict
	}

	evt := &Event{
		ID:              l.node.Generate().Int64(),
		PaymentID:       req.PaymentID,
		EventType:       req.EventType,
		FromStatus:      req.From,
		ToStatus:        req.To,
		ProviderEventID: req.ProviderEventID,
		SignatureHash:   req.SignatureHash,
		ProviderData:    req.ProviderData,
		Metadata:        req.Metadata,
		CreatedAt:       now,
	}
	if err := l.insertEvent(ctx, sqlTx, evt); err != nil {
		return nil, err
	}
	if err := sqlTx.Commit(); err != nil {
		return nil, errors.Join(db.ErrInternal, err)
	}
	return evt, nil
}

func (l *SQLLedger) AppendEvent(ctx context.Context, evt *Event) (*Event, error) {
	cpy := *evt
	cpy.ID = l.node.Generate().Int64()
	cpy.CreatedAt = l.now()

	sqlTx, err := l.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Join(db.ErrInternal, err)
	}
	defer func() { _ = sqlTx.Rollback() }()
	if err := l.insertEvent(ctx, sqlTx, &cpy); err != nil {
		return nil, err
	}
	if err := sqlTx.Commit(); err != nil {
		return nil, errors.Join(db.ErrInternal, err)
	}
	return &cpy, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (l *SQLLedger) insertEvent(ctx context.Context, ex execer, evt *Event) error {
	meta, err := json.Marshal(orEmpty(evt.Metadata))
	if err != nil {
		return errors.Join(db.ErrInvalid, err)
	}
	var peid any
	if evt.ProviderEventID != "" {
		peid = evt.ProviderEventID
	}
	_, err = ex.ExecContext(ctx, qInsertEvent,
		evt.ID, evt.PaymentID, string(evt.EventType), string(evt.FromStatus), string(evt.ToStatus),
		peid, evt.SignatureHash, evt.ProviderData, string(meta), fmtTime(evt.CreatedAt),
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return errors.Join(db.ErrDuplicate, err)
		}
		log.Printf("layer=ledger component=payment method=insertEvent payment_id=%s err=%v", evt.PaymentID, err)
		return errors.Join(db.ErrInternal, err)
	}
	return nil
}

func (l *SQLLedger) ListEvents(ctx context.Context, paymentID string) ([]Event, error) {
	rows, err := l.conn.QueryContext(ctx, `SELECT
			event_id, payment_id, event_type, from_status, to_status,
			provider_event_id, signature_hash, provider_data, metadata, created_at
		FROM payment_events WHERE payment_id = ? ORDER BY event_id`, paymentID)
	if err != nil {
		return nil, errors.Join(db.ErrInternal, err)
	}
	defer func() { _ = rows.Close() }()

	var out []Event
	for rows.Next() {
		var (
			evt     Event
			peid    sql.NullString
			meta    string
			created string
		)
		if err := rows.Scan(&evt.ID, &evt.PaymentID, &evt.EventType, &evt.FromStatus, &evt.ToStatus,
			&peid, &evt.SignatureHash, &evt.ProviderData, &meta, &created); err != nil {
			return nil, errors.Join(db.ErrInternal, err)
		}
		evt.ProviderEventID = peid.String
		evt.CreatedAt = parseTime(created)
		if meta != "" && meta != "{}" {
			_ = json.Unmarshal([]byte(meta), &evt.Metadata)
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

func (l *SQLLedger) MarkVerified(ctx context.Context, paymentID string, at time.Time) error {
	return l.stamp(ctx, "UPDATE payments SET verified_at = ?, updated_at = ? WHERE payment_id = ?", fmtTime(at), paymentID)
}

func (l *SQLLedger) SetReceiptURL(ctx context.Context, paymentID, url string) error {
	return l.stamp(ctx, "UPDATE payments SET receipt_url = ?, updated_at = ? WHERE payment_id = ?", url, paymentID)
}

func (l *SQLLedger) TouchRequest(ctx context.Context, paymentID string, at time.Time) error {
	return l.stamp(ctx, "UPDATE payments SET last_request_at = ?, updated_at = ? WHERE payment_id = ?", fmtTime(at), paymentID)
}

func (l *SQLLedger) stamp(ctx context.Context, query string, value any, paymentID string) error {
	res, err := l.conn.ExecContext(ctx, query, value, fmtTime(l.now()), paymentID)
	if err != nil {
		return errors.Join(db.ErrInternal, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Join(db.ErrInternal, err)
	}
	if affected == 0 {
		return db.ErrNotFound
	}
	return nil
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func timeOrNull(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return fmtTime(t)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseNullTime(s sql.NullString) time.Time {
	if !s.Valid {
		return time.Time{}
	}
	return parseTime(s.String)
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (*Transaction, error) {
	var (
		tx        Transaction
		amount    string
		meta      string
		expires   sql.NullString
		created   string
		updated   string
		firstReq  sql.NullString
		lastReq   sql.NullString
		webhookAt sql.NullString
		verified  sql.NullString
		refunded  sql.NullString
	)
	err := row.Scan(
		&tx.ID, &tx.CandidateID, &tx.Purpose, &tx.Provider, &tx.ProviderReference,
		&amount, &tx.Currency, &tx.Status, &tx.Session, &tx.IdempotencyKey, &tx.RequestHash,
		&tx.ExternalReference, &meta, &expires, &tx.ReceiptURL,
		&created, &updated, &firstReq, &lastReq,
		&webhookAt, &verified, &refunded,
	)
	if err != nil {
		return nil, err
	}

	tx.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, err
	}
	if meta != "" {
		_ = json.Unmarshal([]byte(meta), &tx.Metadata)
	}
	tx.ExpiresAt = parseNullTime(expires)
	tx.CreatedAt = parseTime(created)
	tx.UpdatedAt = parseTime(updated)
	tx.FirstRequestAt = parseNullTime(firstReq)
	tx.LastRequestAt = parseNullTime(lastReq)
	tx.WebhookReceivedAt = parseNullTime(webhookAt)
	tx.VerifiedAt = parseNullTime(verified)
	tx.RefundedAt = parseNullTime(refunded)
	return &tx, nil
}
