package reconcile

import (
	"context"
	"database/sql"

	"github.com/subgate/subgate/internal/storage"
)

// PostgresStore persists webhook events in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed webhook event store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, e *WebhookEvent) error {
	_, err := storage.Exec(ctx, p.db).ExecContext(ctx, `
		INSERT INTO webhook_events (id, provider, event_id, event_type, payload, processed, processed_at, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (provider, event_id) DO NOTHING`,
		e.ID, e.Provider, e.EventID, e.EventType, []byte(e.Payload),
		e.Processed, e.ProcessedAt, nullStr(e.Error), e.CreatedAt,
	)
	return err
}

func (p *PostgresStore) GetByProviderEventID(ctx context.Context, provider, eventID string) (*WebhookEvent, error) {
	e := &WebhookEvent{}
	var (
		payload []byte
		errMsg  sql.NullString
	)
	err := storage.Exec(ctx, p.db).QueryRowContext(ctx, `
		SELECT id, provider, event_id, event_type, payload, processed, processed_at, error, created_at
		FROM webhook_events WHERE provider = $1 AND event_id = $2`, provider, eventID).
		Scan(&e.ID, &e.Provider, &e.EventID, &e.EventType, &payload,
			&e.Processed, &e.ProcessedAt, &errMsg, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	e.Payload = payload
	if errMsg.Valid {
		e.Error = errMsg.String
	}
	return e, nil
}

func (p *PostgresStore) Update(ctx context.Context, e *WebhookEvent) error {
	result, err := storage.Exec(ctx, p.db).ExecContext(ctx, `
		UPDATE webhook_events SET processed = $1, processed_at = $2, error = $3
		WHERE id = $4`,
		e.Processed, e.ProcessedAt, nullStr(e.Error), e.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrEventNotFound
	}
	return nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Migrate creates the webhook_events table (used in dev/test; prod uses migration files).
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS webhook_events (
			id           TEXT PRIMARY KEY,
			provider     TEXT NOT NULL,
			event_id     TEXT NOT NULL,
			event_type   TEXT NOT NULL DEFAULT '',
			payload      JSONB NOT NULL DEFAULT '{}',
			processed    BOOLEAN NOT NULL DEFAULT FALSE,
			processed_at TIMESTAMPTZ,
			error        TEXT,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (provider, event_id)
		);
	`)
	return err
}

var _ Store = (*PostgresStore)(nil)
