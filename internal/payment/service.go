package payment

import (
	"context"
	"log/slog"
	"time"

	"github.com/subgate/subgate/internal/idgen"
	"github.com/subgate/subgate/internal/metrics"
)

// RecordParams describes a new ledger row.
type RecordParams struct {
	SubscriptionID  string
	TenantID        string
	PlanID          string
	Amount          int64
	Currency        string
	PaymentProvider string
	ProviderTxnID   string
	PeriodStart     time.Time
	PeriodEnd       time.Time
}

// Service manages the payment ledger.
type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new payment service.
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger, now: time.Now}
}

// WithClock overrides the service clock. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Store returns the underlying payment store.
func (s *Service) Store() Store {
	return s.store
}

// RecordPending appends a pending billing attempt. Fails with
// ErrPendingExists if the subscription already has one outstanding.
func (s *Service) RecordPending(ctx context.Context, params RecordParams) (*SubscriptionPayment, error) {
	return s.record(ctx, params, StatusPending)
}

// RecordCompleted appends an already-settled payment, e.g. when a
// provider webhook confirms a charge we never saw as pending.
func (s *Service) RecordCompleted(ctx context.Context, params RecordParams) (*SubscriptionPayment, error) {
	return s.record(ctx, params, StatusCompleted)
}

func (s *Service) record(ctx context.Context, params RecordParams, status Status) (*SubscriptionPayment, error) {
	now := s.now().UTC()
	pay := &SubscriptionPayment{
		ID:                    idgen.WithPrefix("pay_"),
		SubscriptionID:        params.SubscriptionID,
		TenantID:              params.TenantID,
		PlanID:                params.PlanID,
		Amount:                params.Amount,
		Currency:              params.Currency,
		Status:                status,
		PaymentProvider:       params.PaymentProvider,
		ProviderTransactionID: params.ProviderTxnID,
		PeriodStart:           params.PeriodStart,
		PeriodEnd:             params.PeriodEnd,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if status == StatusCompleted {
		pay.PaidAt = &now
	}

	if err := s.store.Create(ctx, pay); err != nil {
		return nil, err
	}

	metrics.PaymentsRecordedTotal.WithLabelValues(string(status)).Inc()
	s.logger.Info("payment recorded",
		"payment_id", pay.ID,
		"subscription_id", pay.SubscriptionID,
		"status", string(status),
		"amount", pay.Amount)
	return pay, nil
}

// Complete marks a payment as settled. Completing an already-completed
// payment is a no-op: the ledger transitions each row at most once and
// revenue is never double-counted.
func (s *Service) Complete(ctx context.Context, paymentID, providerTxnID string) (*SubscriptionPayment, error) {
	pay, err := s.store.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if pay.Status == StatusCompleted {
		return pay, nil
	}

	now := s.now().UTC()
	pay.Status = StatusCompleted
	pay.PaidAt = &now
	pay.FailedAt = nil
	pay.FailureReason = ""
	if providerTxnID != "" {
		pay.ProviderTransactionID = providerTxnID
	}
	pay.UpdatedAt = now

	if err := s.store.Update(ctx, pay); err != nil {
		return nil, err
	}

	metrics.PaymentsRecordedTotal.WithLabelValues(string(StatusCompleted)).Inc()
	s.logger.Info("payment completed", "payment_id", pay.ID, "subscription_id", pay.SubscriptionID)
	return pay, nil
}

// Fail marks a payment as failed with a reason.
func (s *Service) Fail(ctx context.Context, paymentID, reason string) (*SubscriptionPayment, error) {
	pay, err := s.store.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if pay.Status == StatusFailed {
		return pay, nil
	}

	now := s.now().UTC()
	pay.Status = StatusFailed
	pay.FailedAt = &now
	pay.FailureReason = reason
	pay.UpdatedAt = now

	if err := s.store.Update(ctx, pay); err != nil {
		return nil, err
	}

	metrics.PaymentsRecordedTotal.WithLabelValues(string(StatusFailed)).Inc()
	s.logger.Info("payment failed", "payment_id", pay.ID, "reason", reason)
	return pay, nil
}
