package plan

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/lib/pq"

	"github.com/subgate/subgate/internal/storage"
)

// PostgresStore persists plans in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed plan store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, pl *Plan) error {
	entJSON, err := json.Marshal(pl.Entitlements)
	if err != nil {
		return err
	}
	_, err = storage.Exec(ctx, p.db).ExecContext(ctx, `
		INSERT INTO plans (id, application_id, name, price, currency, billing_cycle, trial_days, entitlements, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		pl.ID, pl.ApplicationID, pl.Name, pl.Price, pl.Currency, string(pl.BillingCycle),
		pl.TrialDays, entJSON, pl.IsActive, pl.CreatedAt, pl.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrNameTaken
		}
		return err
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Plan, error) {
	return p.scanPlan(storage.Exec(ctx, p.db).QueryRowContext(ctx, `
		SELECT id, application_id, name, price, currency, billing_cycle, trial_days, entitlements, is_active, created_at, updated_at
		FROM plans WHERE id = $1`, id))
}

func (p *PostgresStore) GetByName(ctx context.Context, applicationID, name string) (*Plan, error) {
	return p.scanPlan(storage.Exec(ctx, p.db).QueryRowContext(ctx, `
		SELECT id, application_id, name, price, currency, billing_cycle, trial_days, entitlements, is_active, created_at, updated_at
		FROM plans WHERE application_id = $1 AND name = $2`, applicationID, name))
}

func (p *PostgresStore) ListActive(ctx context.Context) ([]*Plan, error) {
	rows, err := storage.Exec(ctx, p.db).QueryContext(ctx, `
		SELECT id, application_id, name, price, currency, billing_cycle, trial_days, entitlements, is_active, created_at, updated_at
		FROM plans WHERE is_active = TRUE
		ORDER BY price, name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var plans []*Plan
	for rows.Next() {
		pl, err := scanPlanRow(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, pl)
	}
	return plans, rows.Err()
}

func (p *PostgresStore) Update(ctx context.Context, pl *Plan) error {
	entJSON, err := json.Marshal(pl.Entitlements)
	if err != nil {
		return err
	}
	result, err := storage.Exec(ctx, p.db).ExecContext(ctx, `
		UPDATE plans SET name = $1, price = $2, currency = $3, billing_cycle = $4,
			trial_days = $5, entitlements = $6, is_active = $7, updated_at = $8
		WHERE id = $9`,
		pl.Name, pl.Price, pl.Currency, string(pl.BillingCycle),
		pl.TrialDays, entJSON, pl.IsActive, pl.UpdatedAt, pl.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrPlanNotFound
	}
	return nil
}

// GetFeature looks up feature catalog metadata by code.
func (p *PostgresStore) GetFeature(ctx context.Context, code string) (*Feature, error) {
	f := &Feature{}
	var unit sql.NullString
	err := storage.Exec(ctx, p.db).QueryRowContext(ctx, `
		SELECT code, name, value_type, unit FROM features WHERE code = $1`, code).
		Scan(&f.Code, &f.Name, &f.ValueType, &unit)
	if err == sql.ErrNoRows {
		return nil, ErrFeatureNotFound
	}
	if err != nil {
		return nil, err
	}
	if unit.Valid {
		f.Unit = unit.String
	}
	return f, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (p *PostgresStore) scanPlan(row *sql.Row) (*Plan, error) {
	pl, err := scanPlanRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrPlanNotFound
	}
	return pl, err
}

func scanPlanRow(row rowScanner) (*Plan, error) {
	pl := &Plan{}
	var (
		cycle   string
		entJSON []byte
	)
	err := row.Scan(&pl.ID, &pl.ApplicationID, &pl.Name, &pl.Price, &pl.Currency, &cycle,
		&pl.TrialDays, &entJSON, &pl.IsActive, &pl.CreatedAt, &pl.UpdatedAt)
	if err != nil {
		return nil, err
	}
	pl.BillingCycle = BillingCycle(cycle)
	if len(entJSON) > 0 {
		_ = json.Unmarshal(entJSON, &pl.Entitlements)
	}
	return pl, nil
}

// Migrate creates the plans and features tables (used in dev/test; prod uses migration files).
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS plans (
			id              TEXT PRIMARY KEY,
			application_id  TEXT NOT NULL,
			name            TEXT NOT NULL,
			price           BIGINT NOT NULL DEFAULT 0,
			currency        TEXT NOT NULL DEFAULT 'USD',
			billing_cycle   TEXT NOT NULL DEFAULT 'monthly',
			trial_days      INT NOT NULL DEFAULT 0,
			entitlements    JSONB NOT NULL DEFAULT '{}',
			is_active       BOOLEAN NOT NULL DEFAULT TRUE,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (application_id, name)
		);
		CREATE INDEX IF NOT EXISTS idx_plans_active ON plans(is_active);
		CREATE TABLE IF NOT EXISTS features (
			code        TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			value_type  TEXT NOT NULL DEFAULT 'boolean',
			unit        TEXT
		);
	`)
	return err
}

var (
	_ Store          = (*PostgresStore)(nil)
	_ FeatureCatalog = (*PostgresStore)(nil)
)
