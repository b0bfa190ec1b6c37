package db

import (
	"database/sql"
	"log"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS payments (
	payment_id          TEXT PRIMARY KEY,
	candidate_id        TEXT NOT NULL,
	purpose             TEXT NOT NULL,
	provider            TEXT NOT NULL,
	provider_reference  TEXT NOT NULL,
	amount              TEXT NOT NULL,
	currency            TEXT NOT NULL,
	status              TEXT NOT NULL,
	session             TEXT NOT NULL,
	idempotency_key     TEXT NOT NULL,
	request_hash        TEXT NOT NULL,
	external_reference  TEXT NOT NULL DEFAULT '',
	metadata            TEXT NOT NULL DEFAULT '{}',
	expires_at          TEXT,
	receipt_url         TEXT NOT NULL DEFAULT '',
	created_at          TEXT NOT NULL,
	updated_at          TEXT NOT NULL,
	first_request_at    TEXT,
	last_request_at     TEXT,
	webhook_received_at TEXT,
	verified_at         TEXT,
	refunded_at         TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_payments_idempotency_key ON payments(idempotency_key);
CREATE UNIQUE INDEX IF NOT EXISTS ux_payments_provider_reference ON payments(provider, provider_reference);

CREATE TABLE IF NOT EXISTS payment_events (
	event_id          INTEGER PRIMARY KEY,
	payment_id        TEXT NOT NULL REFERENCES payments(payment_id),
	event_type        TEXT NOT NULL,
	from_status       TEXT NOT NULL DEFAULT '',
	to_status         TEXT NOT NULL DEFAULT '',
	provider_event_id TEXT,
	signature_hash    TEXT NOT NULL DEFAULT '',
	provider_data     TEXT NOT NULL DEFAULT '',
	metadata          TEXT NOT NULL DEFAULT '{}',
	created_at        TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_payment_events_provider_event_id
	ON payment_events(provider_event_id) WHERE provider_event_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS ix_payment_events_payment_id ON payment_events(payment_id);

CREATE TABLE IF NOT EXISTS payment_disputes (
	dispute_id   TEXT PRIMARY KEY,
	payment_id   TEXT NOT NULL REFERENCES payments(payment_id),
	candidate_id TEXT NOT NULL,
	reason       TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL,
	resolution   TEXT NOT NULL DEFAULT '',
	resolved_by  TEXT NOT NULL DEFAULT '',
	resolved_at  TEXT,
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL
);
`

// Open opens the sqlite database at dsn and applies the schema.
// The schema is idempotent so startup can always run it.
func Open(dsn string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Printf("layer=kit component=db method=Open dsn=%s err=%v", dsn, err)
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		log.Printf("layer=kit component=db method=Open dsn=%s err=%v", dsn, err)
		_ = conn.Close()
		return nil, err
	}
	if _, err := conn.Exec(schema); err != nil {
		log.Printf("layer=kit component=db method=Open dsn=%s err=%v", dsn, err)
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}
