package reconciliation

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"sync"
	"time"

	"portal/kit/db"
)

// InMemoryDisputeRepository mirrors SQLDisputeRepository semantics for
// tests.
type InMemoryDisputeRepository struct {
	mu   sync.Mutex
	data map[string]*Dispute
	now  func() time.Time
}

func NewInMemoryDisputeRepository() *InMemoryDisputeRepository {
	return &InMemoryDisputeRepository{
		data: make(map[string]*Dispute),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (r *InMemoryDisputeRepository) Create(ctx context.Context, d *Dispute) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[d.ID]; ok {
		return db.ErrConflict
	}
	cpy := *d
	r.data[d.ID] = &cpy
	return nil
}

func (r *InMemoryDisputeRepository) Get(ctx context.Context, id string) (*Dispute, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.data[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cpy := *d
	return &cpy, nil
}

func (r *InMemoryDisputeRepository) ListByPayment(ctx context.Context, paymentID string) ([]Dispute, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Dispute
	for _, d := range r.data {
		if d.PaymentID == paymentID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *InMemoryDisputeRepository) Resolve(ctx context.Context, id, resolution, resolvedBy string, at time.Time) (*Dispute, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.data[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	if !resolvable(d.Status) {
		return nil, db.ErrConflict
	}
	d.Status = DisputeResolved
	d.Resolution = resolution
	d.ResolvedBy = resolvedBy
	d.ResolvedAt = at
	d.UpdatedAt = r.now()
	cpy := *d
	return &cpy, nil
}

type SQLDisputeRepository struct {
	conn *sql.DB
	now  func() time.Time
}

func NewSQLDisputeRepository(conn *sql.DB) *SQLDisputeRepository {
	return &SQLDisputeRepository{conn: conn, now: func() time.Time { return time.Now().UTC() }}
}

const qSelectDispute = `SELECT
	dispute_id, payment_id, candidate_id, reason, description,
	status, resolution, resolved_by, resolved_at, created_at, updated_at
FROM payment_disputes`

func (r *SQLDisputeRepository) Create(ctx context.Context, d *Dispute) error {
	_, err := r.conn.ExecContext(ctx, `INSERT INTO payment_disputes (
			dispute_id, payment_id, candidate_id, reason, description,
			status, resolution, resolved_by, resolved_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.PaymentID, d.CandidateID, d.Reason, d.Description,
		string(d.Status), d.Resolution, d.ResolvedBy, nullTime(d.ResolvedAt),
		d.CreatedAt.UTC().Format(time.RFC3339Nano), d.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return errors.Join(db.ErrConflict, err)
		}
		log.Printf("layer=repo component=reconciliation method=Create dispute_id=%s err=%v", d.ID, err)
		return errors.Join(db.ErrInternal, err)
	}
	return nil
}

func (r *SQLDisputeRepository) Get(ctx context.Context, id string) (*Dispute, error) {
	d, err := scanDispute(r.conn.QueryRowContext(ctx, qSelectDispute+" WHERE dispute_id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, errors.Join(db.ErrInternal, err)
	}
	return d, nil
}

func (r *SQLDisputeRepository) ListByPayment(ctx context.Context, paymentID string) ([]Dispute, error) {
	rows, err := r.conn.QueryContext(ctx, qSelectDispute+" WHERE payment_id = ? ORDER BY created_at", paymentID)
	if err != nil {
		return nil, errors.Join(db.ErrInternal, err)
	}
	defer func() { _ = rows.Close() }()

	var out []Dispute
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, errors.Join(db.ErrInternal, err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// Resolve flips an open or under_review dispute to resolved with a
// status-aware UPDATE; concurrent resolutions cannot both win.
func (r *SQLDisputeRepository) Resolve(ctx context.Context, id, resolution, resolvedBy string, at time.Time) (*Dispute, error) {
	res, err := r.conn.ExecContext(ctx, `UPDATE payment_disputes SET
			status = ?, resolution = ?, resolved_by = ?, resolved_at = ?, updated_at = ?
		WHERE dispute_id = ? AND status IN (?, ?)`,
		string(DisputeResolved), resolution, resolvedBy,
		at.UTC().Format(time.RFC3339Nano), r.now().UTC().Format(time.RFC3339Nano),
		id, string(DisputeOpen), string(DisputeUnderReview),
	)
	if err != nil {
		return nil, errors.Join(db.ErrInternal, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, errors.Join(db.ErrInternal, err)
	}
	if affected == 0 {
		if _, gErr := r.Get(ctx, id); gErr != nil {
			return nil, gErr
		}
		log.Printf("layer=repo component=reconciliation method=Resolve dispute_id=%s err=%v", id, db.ErrConflict)
		return nil, db.ErrConflict
	}
	return r.Get(ctx, id)
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDispute(row rowScanner) (*Dispute, error) {
	var (
		d          Dispute
		resolvedAt sql.NullString
		created    string
		updated    string
	)
	if err := row.Scan(&d.ID, &d.PaymentID, &d.CandidateID, &d.Reason, &d.Description,
		&d.Status, &d.Resolution, &d.ResolvedBy, &resolvedAt, &created, &updated); err != nil {
		return nil, err
	}
	if resolvedAt.Valid {
		d.ResolvedAt, _ = time.Parse(time.RFC3339Nano, resolvedAt.String)
	}
	d.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	d.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return &d, nil
}
