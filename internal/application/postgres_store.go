package application

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/subgate/subgate/internal/storage"
)

// PostgresStore persists applications in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed application store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, a *Application) error {
	_, err := storage.Exec(ctx, p.db).ExecContext(ctx, `
		INSERT INTO applications (id, external_id, name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.ExternalID, a.Name, string(a.Status), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrExternalIDUsed
		}
		return err
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Application, error) {
	return p.scanApp(storage.Exec(ctx, p.db).QueryRowContext(ctx, `
		SELECT id, external_id, name, status, created_at, updated_at
		FROM applications WHERE id = $1`, id))
}

func (p *PostgresStore) GetByExternalID(ctx context.Context, externalID string) (*Application, error) {
	return p.scanApp(storage.Exec(ctx, p.db).QueryRowContext(ctx, `
		SELECT id, external_id, name, status, created_at, updated_at
		FROM applications WHERE external_id = $1`, externalID))
}

func (p *PostgresStore) Update(ctx context.Context, a *Application) error {
	result, err := storage.Exec(ctx, p.db).ExecContext(ctx, `
		UPDATE applications SET name = $1, status = $2, updated_at = $3
		WHERE id = $4`,
		a.Name, string(a.Status), a.UpdatedAt, a.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrAppNotFound
	}
	return nil
}

func (p *PostgresStore) List(ctx context.Context) ([]*Application, error) {
	rows, err := storage.Exec(ctx, p.db).QueryContext(ctx, `
		SELECT id, external_id, name, status, created_at, updated_at
		FROM applications ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var apps []*Application
	for rows.Next() {
		a := &Application{}
		var status string
		if err := rows.Scan(&a.ID, &a.ExternalID, &a.Name, &status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		a.Status = Status(status)
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

func (p *PostgresStore) scanApp(row *sql.Row) (*Application, error) {
	a := &Application{}
	var status string
	err := row.Scan(&a.ID, &a.ExternalID, &a.Name, &status, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrAppNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Status = Status(status)
	return a, nil
}

// Migrate creates the applications table (used in dev/test; prod uses migration files).
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS applications (
			id          TEXT PRIMARY KEY,
			external_id TEXT NOT NULL UNIQUE,
			name        TEXT NOT NULL,
			status      TEXT NOT NULL DEFAULT 'active',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	return err
}

var _ Store = (*PostgresStore)(nil)
