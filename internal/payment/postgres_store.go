package payment

import (
	"context"
	"database/sql"

	"github.com/subgate/subgate/internal/pagination"
	"github.com/subgate/subgate/internal/storage"
)

// PostgresStore persists payments in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed payment store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const paymentColumns = `id, subscription_id, tenant_id, plan_id, amount, currency, status,
	payment_provider, provider_transaction_id, period_start, period_end, paid_at, failed_at,
	failure_reason, refund_amount, created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, pay *SubscriptionPayment) error {
	ex := storage.Exec(ctx, p.db)

	if pay.Status == StatusPending {
		var exists bool
		err := ex.QueryRowContext(ctx, `
			SELECT EXISTS (SELECT 1 FROM subscription_payments
			WHERE subscription_id = $1 AND status = 'pending')`, pay.SubscriptionID).Scan(&exists)
		if err != nil {
			return err
		}
		if exists {
			return ErrPendingExists
		}
	}

	_, err := ex.ExecContext(ctx, `
		INSERT INTO subscription_payments (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		pay.ID, pay.SubscriptionID, pay.TenantID, pay.PlanID, pay.Amount, pay.Currency,
		string(pay.Status), nullStr(pay.PaymentProvider), nullStr(pay.ProviderTransactionID),
		pay.PeriodStart, pay.PeriodEnd, pay.PaidAt, pay.FailedAt, nullStr(pay.FailureReason),
		pay.RefundAmount, pay.CreatedAt, pay.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*SubscriptionPayment, error) {
	pay, err := scanPayment(storage.Exec(ctx, p.db).QueryRowContext(ctx, `
		SELECT `+paymentColumns+` FROM subscription_payments WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, ErrPaymentNotFound
	}
	return pay, err
}

func (p *PostgresStore) Update(ctx context.Context, pay *SubscriptionPayment) error {
	result, err := storage.Exec(ctx, p.db).ExecContext(ctx, `
		UPDATE subscription_payments SET status = $1, payment_provider = $2,
			provider_transaction_id = $3, paid_at = $4, failed_at = $5, failure_reason = $6,
			refund_amount = $7, updated_at = $8
		WHERE id = $9`,
		string(pay.Status), nullStr(pay.PaymentProvider), nullStr(pay.ProviderTransactionID),
		pay.PaidAt, pay.FailedAt, nullStr(pay.FailureReason), pay.RefundAmount, pay.UpdatedAt, pay.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (p *PostgresStore) GetPendingBySubscription(ctx context.Context, subscriptionID string) (*SubscriptionPayment, error) {
	pay, err := scanPayment(storage.Exec(ctx, p.db).QueryRowContext(ctx, `
		SELECT `+paymentColumns+` FROM subscription_payments
		WHERE subscription_id = $1 AND status = 'pending'
		ORDER BY created_at LIMIT 1`, subscriptionID))
	if err == sql.ErrNoRows {
		return nil, ErrPaymentNotFound
	}
	return pay, err
}

func (p *PostgresStore) ListPending(ctx context.Context, after *pagination.Cursor, limit int) ([]*SubscriptionPayment, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if after != nil {
		rows, err = storage.Exec(ctx, p.db).QueryContext(ctx, `
			SELECT `+paymentColumns+` FROM subscription_payments
			WHERE status = 'pending' AND (created_at, id) > ($1, $2)
			ORDER BY created_at, id LIMIT $3`, after.CreatedAt, after.ID, limit)
	} else {
		rows, err = storage.Exec(ctx, p.db).QueryContext(ctx, `
			SELECT `+paymentColumns+` FROM subscription_payments
			WHERE status = 'pending'
			ORDER BY created_at, id LIMIT $1`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*SubscriptionPayment
	for rows.Next() {
		pay, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pay)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (*SubscriptionPayment, error) {
	pay := &SubscriptionPayment{}
	var (
		status                          string
		provider, provTxnID, failReason sql.NullString
	)
	err := row.Scan(&pay.ID, &pay.SubscriptionID, &pay.TenantID, &pay.PlanID, &pay.Amount,
		&pay.Currency, &status, &provider, &provTxnID, &pay.PeriodStart, &pay.PeriodEnd,
		&pay.PaidAt, &pay.FailedAt, &failReason, &pay.RefundAmount, &pay.CreatedAt, &pay.UpdatedAt)
	if err != nil {
		return nil, err
	}
	pay.Status = Status(status)
	if provider.Valid {
		pay.PaymentProvider = provider.String
	}
	if provTxnID.Valid {
		pay.ProviderTransactionID = provTxnID.String
	}
	if failReason.Valid {
		pay.FailureReason = failReason.String
	}
	return pay, nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Migrate creates the subscription_payments table (used in dev/test; prod uses migration files).
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS subscription_payments (
			id                      TEXT PRIMARY KEY,
			subscription_id         TEXT NOT NULL,
			tenant_id               TEXT NOT NULL,
			plan_id                 TEXT NOT NULL,
			amount                  BIGINT NOT NULL DEFAULT 0,
			currency                TEXT NOT NULL DEFAULT 'USD',
			status                  TEXT NOT NULL,
			payment_provider        TEXT,
			provider_transaction_id TEXT,
			period_start            TIMESTAMPTZ NOT NULL,
			period_end              TIMESTAMPTZ NOT NULL,
			paid_at                 TIMESTAMPTZ,
			failed_at               TIMESTAMPTZ,
			failure_reason          TEXT,
			refund_amount           BIGINT NOT NULL DEFAULT 0,
			created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at              TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_single_pending
			ON subscription_payments(subscription_id) WHERE status = 'pending';
		CREATE INDEX IF NOT EXISTS idx_payments_status ON subscription_payments(status, created_at);
	`)
	return err
}

var _ Store = (*PostgresStore)(nil)
