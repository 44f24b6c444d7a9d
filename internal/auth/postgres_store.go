package auth

import (
	"context"
	"database/sql"

	"github.com/subgate/subgate/internal/storage"
)

// PostgresStore persists API keys in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed key store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, key *APIKey) error {
	_, err := storage.Exec(ctx, p.db).ExecContext(ctx, `
		INSERT INTO api_keys (id, hash, application_id, name, created_at, last_used, expires_at, revoked)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.Hash, key.ApplicationID, key.Name, key.CreatedAt,
		nullTime(key.LastUsed), key.ExpiresAt, key.Revoked,
	)
	return err
}

func (p *PostgresStore) GetByHash(ctx context.Context, hash string) (*APIKey, error) {
	return p.scanKey(storage.Exec(ctx, p.db).QueryRowContext(ctx, `
		SELECT id, hash, application_id, name, created_at, last_used, expires_at, revoked
		FROM api_keys WHERE hash = $1`, hash))
}

func (p *PostgresStore) GetByApplication(ctx context.Context, applicationID string) ([]*APIKey, error) {
	rows, err := storage.Exec(ctx, p.db).QueryContext(ctx, `
		SELECT id, hash, application_id, name, created_at, last_used, expires_at, revoked
		FROM api_keys WHERE application_id = $1 ORDER BY created_at`, applicationID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var keys []*APIKey
	for rows.Next() {
		k := &APIKey{}
		var lastUsed sql.NullTime
		if err := rows.Scan(&k.ID, &k.Hash, &k.ApplicationID, &k.Name, &k.CreatedAt,
			&lastUsed, &k.ExpiresAt, &k.Revoked); err != nil {
			return nil, err
		}
		if lastUsed.Valid {
			k.LastUsed = lastUsed.Time
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (p *PostgresStore) Update(ctx context.Context, key *APIKey) error {
	result, err := storage.Exec(ctx, p.db).ExecContext(ctx, `
		UPDATE api_keys SET name = $1, last_used = $2, expires_at = $3, revoked = $4
		WHERE id = $5`,
		key.Name, nullTime(key.LastUsed), key.ExpiresAt, key.Revoked, key.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrKeyNotFound
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	_, err := storage.Exec(ctx, p.db).ExecContext(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	return err
}

func (p *PostgresStore) scanKey(row *sql.Row) (*APIKey, error) {
	k := &APIKey{}
	var lastUsed sql.NullTime
	err := row.Scan(&k.ID, &k.Hash, &k.ApplicationID, &k.Name, &k.CreatedAt,
		&lastUsed, &k.ExpiresAt, &k.Revoked)
	if err == sql.ErrNoRows {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastUsed.Valid {
		k.LastUsed = lastUsed.Time
	}
	return k, nil
}

func nullTime(t interface{ IsZero() bool }) any {
	if t.IsZero() {
		return nil
	}
	return t
}

// Migrate creates the api_keys table (used in dev/test; prod uses migration files).
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS api_keys (
			id              TEXT PRIMARY KEY,
			hash            TEXT NOT NULL UNIQUE,
			application_id  TEXT NOT NULL,
			name            TEXT NOT NULL DEFAULT '',
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_used       TIMESTAMPTZ,
			expires_at      TIMESTAMPTZ,
			revoked         BOOLEAN NOT NULL DEFAULT FALSE
		);
		CREATE INDEX IF NOT EXISTS idx_api_keys_application ON api_keys(application_id);
	`)
	return err
}

var _ Store = (*PostgresStore)(nil)
