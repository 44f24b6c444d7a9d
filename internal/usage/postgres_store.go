package usage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/subgate/subgate/internal/storage"
)

// PostgresStore is a PostgreSQL-backed usage store.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL usage store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the usage_records table. Used in dev/test; production
// deployments run the migration files instead.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS usage_records (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			application_id TEXT NOT NULL,
			metric TEXT NOT NULL,
			value DOUBLE PRECISION NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			recorded_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_usage_tenant_metric_time
			ON usage_records(tenant_id, metric, recorded_at);
	`)
	return err
}

func (p *PostgresStore) Create(ctx context.Context, r *Record) error {
	metadata, err := json.Marshal(r.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = storage.Exec(ctx, p.db).ExecContext(ctx, `
		INSERT INTO usage_records (id, tenant_id, application_id, metric, value, metadata, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.TenantID, r.ApplicationID, r.Metric, r.Value, metadata, r.RecordedAt)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Record, error) {
	row := storage.Exec(ctx, p.db).QueryRowContext(ctx, `
		SELECT id, tenant_id, application_id, metric, value, metadata, recorded_at
		FROM usage_records WHERE id = $1`, id)
	return scanRecord(row)
}

func (p *PostgresStore) ListByTenantMetric(ctx context.Context, tenantID, metric string, from, to time.Time) ([]*Record, error) {
	rows, err := storage.Exec(ctx, p.db).QueryContext(ctx, `
		SELECT id, tenant_id, application_id, metric, value, metadata, recorded_at
		FROM usage_records
		WHERE tenant_id = $1 AND metric = $2 AND recorded_at >= $3 AND recorded_at < $4
		ORDER BY recorded_at DESC`,
		tenantID, metric, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PostgresStore) SumByTenantMetric(ctx context.Context, tenantID, metric string, from, to time.Time) (float64, error) {
	var total float64
	err := storage.Exec(ctx, p.db).QueryRowContext(ctx, `
		SELECT COALESCE(SUM(value), 0)
		FROM usage_records
		WHERE tenant_id = $1 AND metric = $2 AND recorded_at >= $3 AND recorded_at < $4`,
		tenantID, metric, from, to).Scan(&total)
	return total, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var r Record
	var metadata []byte
	err := row.Scan(&r.ID, &r.TenantID, &r.ApplicationID, &r.Metric, &r.Value, &metadata, &r.RecordedAt)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &r.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &r, nil
}

var _ Store = (*PostgresStore)(nil)
