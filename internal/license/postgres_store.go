package license

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/subgate/subgate/internal/storage"
)

// PostgresStore persists licenses in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed license store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const licenseColumns = `id, tenant_id, subscription_id, jti, type, status, issued_at, expires_at,
	entitlements, created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, l *License) error {
	entJSON, err := json.Marshal(l.Entitlements)
	if err != nil {
		return err
	}
	_, err = storage.Exec(ctx, p.db).ExecContext(ctx, `
		INSERT INTO licenses (`+licenseColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		l.ID, l.TenantID, l.SubscriptionID, l.JTI, string(l.Type), string(l.Status),
		l.IssuedAt, l.ExpiresAt, entJSON, l.CreatedAt, l.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) GetByJTI(ctx context.Context, jti string) (*License, error) {
	l, err := scanLicense(storage.Exec(ctx, p.db).QueryRowContext(ctx, `
		SELECT `+licenseColumns+` FROM licenses WHERE jti = $1`, jti))
	if err == sql.ErrNoRows {
		return nil, ErrLicenseNotFound
	}
	return l, err
}

func (p *PostgresStore) Update(ctx context.Context, l *License) error {
	entJSON, err := json.Marshal(l.Entitlements)
	if err != nil {
		return err
	}
	result, err := storage.Exec(ctx, p.db).ExecContext(ctx, `
		UPDATE licenses SET type = $1, status = $2, expires_at = $3, entitlements = $4, updated_at = $5
		WHERE id = $6`,
		string(l.Type), string(l.Status), l.ExpiresAt, entJSON, l.UpdatedAt, l.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrLicenseNotFound
	}
	return nil
}

func (p *PostgresStore) ListActiveBySubscription(ctx context.Context, subscriptionID string) ([]*License, error) {
	rows, err := storage.Exec(ctx, p.db).QueryContext(ctx, `
		SELECT `+licenseColumns+` FROM licenses
		WHERE subscription_id = $1 AND status = 'active'
		ORDER BY issued_at`, subscriptionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*License
	for rows.Next() {
		l, err := scanLicense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLicense(row rowScanner) (*License, error) {
	l := &License{}
	var (
		typ, status string
		entJSON     []byte
	)
	err := row.Scan(&l.ID, &l.TenantID, &l.SubscriptionID, &l.JTI, &typ, &status,
		&l.IssuedAt, &l.ExpiresAt, &entJSON, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.Type = Type(typ)
	l.Status = Status(status)
	if len(entJSON) > 0 {
		_ = json.Unmarshal(entJSON, &l.Entitlements)
	}
	return l, nil
}

// Migrate creates the licenses table (used in dev/test; prod uses migration files).
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS licenses (
			id              TEXT PRIMARY KEY,
			tenant_id       TEXT NOT NULL,
			subscription_id TEXT NOT NULL,
			jti             TEXT NOT NULL UNIQUE,
			type            TEXT NOT NULL,
			status          TEXT NOT NULL,
			issued_at       TIMESTAMPTZ NOT NULL,
			expires_at      TIMESTAMPTZ NOT NULL,
			entitlements    JSONB NOT NULL DEFAULT '{}',
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_licenses_subscription ON licenses(subscription_id);
		CREATE INDEX IF NOT EXISTS idx_licenses_tenant ON licenses(tenant_id);
	`)
	return err
}

var _ Store = (*PostgresStore)(nil)
