package subscription

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/subgate/subgate/internal/storage"
)

// PostgresStore persists subscriptions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed subscription store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const subColumns = `id, tenant_id, plan_id, application_id, status, period_start, period_end,
	trial_start, trial_end, payment_provider, provider_subscription_id, provider_customer_id,
	canceled_at, metadata, version, created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, s *Subscription) error {
	metaJSON, err := json.Marshal(s.Metadata)
	if err != nil {
		return err
	}
	_, err = storage.Exec(ctx, p.db).ExecContext(ctx, `
		INSERT INTO subscriptions (`+subColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		s.ID, s.TenantID, s.PlanID, s.ApplicationID, string(s.Status), s.PeriodStart, s.PeriodEnd,
		s.TrialStart, s.TrialEnd, nullStr(s.PaymentProvider), nullStr(s.ProviderSubscriptionID),
		nullStr(s.ProviderCustomerID), s.CanceledAt, metaJSON, s.Version, s.CreatedAt, s.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Subscription, error) {
	s, err := scanSub(storage.Exec(ctx, p.db).QueryRowContext(ctx, `
		SELECT `+subColumns+` FROM subscriptions WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, ErrSubNotFound
	}
	return s, err
}

func (p *PostgresStore) GetCurrentByTenant(ctx context.Context, tenantID string) (*Subscription, error) {
	s, err := scanSub(storage.Exec(ctx, p.db).QueryRowContext(ctx, `
		SELECT `+subColumns+` FROM subscriptions
		WHERE tenant_id = $1 AND status IN ('trialing', 'active', 'past_due')
		ORDER BY created_at DESC LIMIT 1`, tenantID))
	if err == sql.ErrNoRows {
		return nil, ErrNoCurrentSub
	}
	return s, err
}

func (p *PostgresStore) ListByTenant(ctx context.Context, tenantID string) ([]*Subscription, error) {
	rows, err := storage.Exec(ctx, p.db).QueryContext(ctx, `
		SELECT `+subColumns+` FROM subscriptions
		WHERE tenant_id = $1 ORDER BY created_at`, tenantID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var subs []*Subscription
	for rows.Next() {
		s, err := scanSub(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

func (p *PostgresStore) GetByProviderSubID(ctx context.Context, providerSubID string) (*Subscription, error) {
	s, err := scanSub(storage.Exec(ctx, p.db).QueryRowContext(ctx, `
		SELECT `+subColumns+` FROM subscriptions WHERE provider_subscription_id = $1`, providerSubID))
	if err == sql.ErrNoRows {
		return nil, ErrSubNotFound
	}
	return s, err
}

// Update applies an optimistic-concurrency write keyed on version.
func (p *PostgresStore) Update(ctx context.Context, s *Subscription) error {
	metaJSON, err := json.Marshal(s.Metadata)
	if err != nil {
		return err
	}
	result, err := storage.Exec(ctx, p.db).ExecContext(ctx, `
		UPDATE subscriptions SET plan_id = $1, status = $2, period_start = $3, period_end = $4,
			trial_start = $5, trial_end = $6, payment_provider = $7, provider_subscription_id = $8,
			provider_customer_id = $9, canceled_at = $10, metadata = $11,
			version = version + 1, updated_at = $12
		WHERE id = $13 AND version = $14`,
		s.PlanID, string(s.Status), s.PeriodStart, s.PeriodEnd, s.TrialStart, s.TrialEnd,
		nullStr(s.PaymentProvider), nullStr(s.ProviderSubscriptionID), nullStr(s.ProviderCustomerID),
		s.CanceledAt, metaJSON, s.UpdatedAt, s.ID, s.Version,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		// Distinguish missing row from stale version.
		var exists bool
		if err := storage.Exec(ctx, p.db).QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM subscriptions WHERE id = $1)`, s.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrSubNotFound
		}
		return ErrVersionConflict
	}
	s.Version++
	return nil
}

func (p *PostgresStore) ListTrialingExpired(ctx context.Context, cutoff time.Time, limit int) ([]*Subscription, error) {
	rows, err := storage.Exec(ctx, p.db).QueryContext(ctx, `
		SELECT `+subColumns+` FROM subscriptions
		WHERE status = 'trialing' AND trial_end <= $1
		ORDER BY trial_end LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var subs []*Subscription
	for rows.Next() {
		s, err := scanSub(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSub(row rowScanner) (*Subscription, error) {
	s := &Subscription{}
	var (
		status                         string
		provider, provSubID, provCusID sql.NullString
		metaJSON                       []byte
	)
	err := row.Scan(&s.ID, &s.TenantID, &s.PlanID, &s.ApplicationID, &status,
		&s.PeriodStart, &s.PeriodEnd, &s.TrialStart, &s.TrialEnd,
		&provider, &provSubID, &provCusID, &s.CanceledAt, &metaJSON,
		&s.Version, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Status = Status(status)
	if provider.Valid {
		s.PaymentProvider = provider.String
	}
	if provSubID.Valid {
		s.ProviderSubscriptionID = provSubID.String
	}
	if provCusID.Valid {
		s.ProviderCustomerID = provCusID.String
	}
	if len(metaJSON) > 0 {
		_ = json.Unmarshal(metaJSON, &s.Metadata)
	}
	return s, nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Migrate creates the subscriptions table (used in dev/test; prod uses migration files).
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS subscriptions (
			id                       TEXT PRIMARY KEY,
			tenant_id                TEXT NOT NULL,
			plan_id                  TEXT NOT NULL,
			application_id           TEXT NOT NULL,
			status                   TEXT NOT NULL,
			period_start             TIMESTAMPTZ NOT NULL,
			period_end               TIMESTAMPTZ NOT NULL,
			trial_start              TIMESTAMPTZ,
			trial_end                TIMESTAMPTZ,
			payment_provider         TEXT,
			provider_subscription_id TEXT,
			provider_customer_id     TEXT,
			canceled_at              TIMESTAMPTZ,
			metadata                 JSONB NOT NULL DEFAULT '{}',
			version                  BIGINT NOT NULL DEFAULT 0,
			created_at               TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at               TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_subscriptions_tenant ON subscriptions(tenant_id);
		CREATE INDEX IF NOT EXISTS idx_subscriptions_provider_sub ON subscriptions(provider_subscription_id);
		CREATE INDEX IF NOT EXISTS idx_subscriptions_trialing ON subscriptions(trial_end) WHERE status = 'trialing';
	`)
	return err
}

var _ Store = (*PostgresStore)(nil)
