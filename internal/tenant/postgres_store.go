package tenant

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/subgate/subgate/internal/storage"
)

// PostgresStore persists tenants in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed tenant store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, t *Tenant) error {
	_, err := storage.Exec(ctx, p.db).ExecContext(ctx, `
		INSERT INTO tenants (id, application_id, name, organization_name, owner_user_id, owner_email, billing_email, domain, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.ID, t.ApplicationID, t.Name, t.OrganizationName, t.OwnerUserID, t.OwnerEmail,
		t.BillingEmail, t.Domain, string(t.Status), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrTenantExists
		}
		return err
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Tenant, error) {
	return p.scanTenant(storage.Exec(ctx, p.db).QueryRowContext(ctx, `
		SELECT id, application_id, name, organization_name, owner_user_id, owner_email, billing_email, domain, status, created_at, updated_at
		FROM tenants WHERE id = $1`, id))
}

func (p *PostgresStore) GetByAppOwner(ctx context.Context, applicationID, ownerUserID string) (*Tenant, error) {
	return p.scanTenant(storage.Exec(ctx, p.db).QueryRowContext(ctx, `
		SELECT id, application_id, name, organization_name, owner_user_id, owner_email, billing_email, domain, status, created_at, updated_at
		FROM tenants WHERE application_id = $1 AND owner_user_id = $2`, applicationID, ownerUserID))
}

func (p *PostgresStore) GetByAppEmail(ctx context.Context, applicationID, ownerEmail string) (*Tenant, error) {
	return p.scanTenant(storage.Exec(ctx, p.db).QueryRowContext(ctx, `
		SELECT id, application_id, name, organization_name, owner_user_id, owner_email, billing_email, domain, status, created_at, updated_at
		FROM tenants WHERE application_id = $1 AND LOWER(owner_email) = LOWER($2)`, applicationID, ownerEmail))
}

func (p *PostgresStore) Update(ctx context.Context, t *Tenant) error {
	result, err := storage.Exec(ctx, p.db).ExecContext(ctx, `
		UPDATE tenants SET name = $1, organization_name = $2, owner_email = $3,
			billing_email = $4, domain = $5, status = $6, updated_at = $7
		WHERE id = $8`,
		t.Name, t.OrganizationName, t.OwnerEmail, t.BillingEmail, t.Domain,
		string(t.Status), t.UpdatedAt, t.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrTenantNotFound
	}
	return nil
}

func (p *PostgresStore) scanTenant(row *sql.Row) (*Tenant, error) {
	t := &Tenant{}
	var (
		orgName, billingEmail, domain sql.NullString
		status                        string
	)
	err := row.Scan(&t.ID, &t.ApplicationID, &t.Name, &orgName, &t.OwnerUserID, &t.OwnerEmail,
		&billingEmail, &domain, &status, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, err
	}
	t.Status = Status(status)
	if orgName.Valid {
		t.OrganizationName = orgName.String
	}
	if billingEmail.Valid {
		t.BillingEmail = billingEmail.String
	}
	if domain.Valid {
		t.Domain = domain.String
	}
	return t, nil
}

// Migrate creates the tenants table (used in dev/test; prod uses migration files).
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tenants (
			id                TEXT PRIMARY KEY,
			application_id    TEXT NOT NULL,
			name              TEXT NOT NULL,
			organization_name TEXT,
			owner_user_id     TEXT NOT NULL,
			owner_email       TEXT NOT NULL,
			billing_email     TEXT,
			domain            TEXT,
			status            TEXT NOT NULL DEFAULT 'active',
			created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (application_id, owner_user_id)
		);
		CREATE INDEX IF NOT EXISTS idx_tenants_app_email ON tenants(application_id, LOWER(owner_email));
		CREATE INDEX IF NOT EXISTS idx_tenants_status ON tenants(status);
	`)
	return err
}

var _ Store = (*PostgresStore)(nil)
