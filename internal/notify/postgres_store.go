package notify

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/subgate/subgate/internal/storage"
)

// PostgresStore is a PostgreSQL-backed endpoint store.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL endpoint store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the notification_endpoints table. Used in dev/test;
// production deployments run the migration files instead.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS notification_endpoints (
			id TEXT PRIMARY KEY,
			application_id TEXT NOT NULL,
			url TEXT NOT NULL,
			secret TEXT NOT NULL DEFAULT '',
			event_types TEXT[] NOT NULL DEFAULT '{}',
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL,
			last_success TIMESTAMPTZ,
			last_error TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_notification_endpoints_app
			ON notification_endpoints(application_id);
	`)
	return err
}

func (p *PostgresStore) Create(ctx context.Context, e *Endpoint) error {
	_, err := storage.Exec(ctx, p.db).ExecContext(ctx, `
		INSERT INTO notification_endpoints (id, application_id, url, secret, event_types, active, created_at, last_success, last_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.ApplicationID, e.URL, e.Secret, pq.Array(e.EventTypes), e.Active, e.CreatedAt, e.LastSuccess, e.LastError)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Endpoint, error) {
	return scanEndpoint(storage.Exec(ctx, p.db).QueryRowContext(ctx, `
		SELECT id, application_id, url, secret, event_types, active, created_at, last_success, last_error
		FROM notification_endpoints WHERE id = $1`, id))
}

func (p *PostgresStore) ListByApplication(ctx context.Context, applicationID string) ([]*Endpoint, error) {
	rows, err := storage.Exec(ctx, p.db).QueryContext(ctx, `
		SELECT id, application_id, url, secret, event_types, active, created_at, last_success, last_error
		FROM notification_endpoints WHERE application_id = $1`, applicationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Endpoint
	for rows.Next() {
		e, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Update(ctx context.Context, e *Endpoint) error {
	res, err := storage.Exec(ctx, p.db).ExecContext(ctx, `
		UPDATE notification_endpoints
		SET url = $2, secret = $3, event_types = $4, active = $5, last_success = $6, last_error = $7
		WHERE id = $1`,
		e.ID, e.URL, e.Secret, pq.Array(e.EventTypes), e.Active, e.LastSuccess, e.LastError)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrEndpointNotFound
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := storage.Exec(ctx, p.db).ExecContext(ctx, `
		DELETE FROM notification_endpoints WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrEndpointNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEndpoint(row rowScanner) (*Endpoint, error) {
	var e Endpoint
	var eventTypes pq.StringArray
	err := row.Scan(&e.ID, &e.ApplicationID, &e.URL, &e.Secret, &eventTypes, &e.Active, &e.CreatedAt, &e.LastSuccess, &e.LastError)
	if err == sql.ErrNoRows {
		return nil, ErrEndpointNotFound
	}
	if err != nil {
		return nil, err
	}
	e.EventTypes = []string(eventTypes)
	return &e, nil
}

var _ Store = (*PostgresStore)(nil)
