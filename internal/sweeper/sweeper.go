// Package sweeper resolves expired trials in batches. Each run walks
// trialing subscriptions whose trial window has closed and hands them
// to the subscription service, then adjusts the tenant's licenses to
// match the resulting status. One bad row never aborts the run.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/subgate/subgate/internal/license"
	"github.com/subgate/subgate/internal/metrics"
	"github.com/subgate/subgate/internal/subscription"
)

const defaultBatchSize = 100

// ItemResult records what happened to one subscription during a sweep.
type ItemResult struct {
	SubscriptionID string                    `json:"subscription_id"`
	TenantID       string                    `json:"tenant_id"`
	Outcome        subscription.TrialOutcome `json:"outcome"`
	Error          string                    `json:"error,omitempty"`
}

// Report summarizes one sweep run.
type Report struct {
	Total     int          `json:"total"`
	Activated int          `json:"activated"`
	PastDue   int          `json:"past_due"`
	Skipped   int          `json:"skipped"`
	Failed    int          `json:"failed"`
	Details   []ItemResult `json:"details"`
}

// Service runs trial expiry sweeps.
type Service struct {
	subs      subscription.Store
	subSvc    *subscription.Service
	licSvc    *license.Service
	batchSize int
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a trial sweeper.
func NewService(subs subscription.Store, subSvc *subscription.Service, licSvc *license.Service, logger *slog.Logger) *Service {
	return &Service{
		subs:      subs,
		subSvc:    subSvc,
		licSvc:    licSvc,
		batchSize: defaultBatchSize,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the sweeper clock. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithBatchSize overrides how many subscriptions one batch fetches.
func (s *Service) WithBatchSize(n int) *Service {
	if n > 0 {
		s.batchSize = n
	}
	return s
}

// Run sweeps all trialing subscriptions whose trial has expired as of
// now. Re-running immediately is safe: resolved subscriptions are no
// longer trialing so the next run finds nothing.
func (s *Service) Run(ctx context.Context) (*Report, error) {
	cutoff := s.now().UTC()
	report := &Report{Details: []ItemResult{}}
	metrics.SweepRunsTotal.Inc()

	for {
		batch, err := s.subs.ListTrialingExpired(ctx, cutoff, s.batchSize)
		if err != nil {
			return report, err
		}
		if len(batch) == 0 {
			break
		}

		progressed := false
		for _, sub := range batch {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			res := s.sweepOne(ctx, sub)
			report.Details = append(report.Details, res)
			report.Total++
			switch {
			case res.Error != "":
				report.Failed++
				metrics.SweepOutcomesTotal.WithLabelValues("failed").Inc()
			case res.Outcome == subscription.TrialActivated:
				report.Activated++
				progressed = true
				metrics.SweepOutcomesTotal.WithLabelValues("activated").Inc()
			case res.Outcome == subscription.TrialPastDue:
				report.PastDue++
				progressed = true
				metrics.SweepOutcomesTotal.WithLabelValues("past_due").Inc()
			default:
				report.Skipped++
				metrics.SweepOutcomesTotal.WithLabelValues("skipped").Inc()
			}
		}

		// Every row in the batch failed or was skipped: fetching again
		// would return the same rows forever.
		if !progressed {
			break
		}
	}

	s.logger.Info("trial sweep finished",
		"total", report.Total,
		"activated", report.Activated,
		"past_due", report.PastDue,
		"skipped", report.Skipped,
		"failed", report.Failed)
	return report, nil
}

func (s *Service) sweepOne(ctx context.Context, sub *subscription.Subscription) ItemResult {
	res := ItemResult{SubscriptionID: sub.ID, TenantID: sub.TenantID}

	outcome, err := s.subSvc.ResolveTrialExpiry(ctx, sub)
	if err != nil {
		// Losing the version race to a concurrent webhook is fine; the
		// webhook already resolved the subscription.
		s.logger.Warn("trial resolution failed",
			"subscription_id", sub.ID, "error", err)
		res.Error = err.Error()
		return res
	}
	res.Outcome = outcome

	switch outcome {
	case subscription.TrialActivated:
		if err := s.licSvc.MarkPaid(ctx, sub.ID, sub.PeriodEnd); err != nil {
			s.logger.Warn("failed to upgrade trial licenses",
				"subscription_id", sub.ID, "error", err)
			res.Error = err.Error()
		}
	case subscription.TrialPastDue:
		if err := s.licSvc.ExpireForSubscription(ctx, sub.ID); err != nil {
			s.logger.Warn("failed to expire trial licenses",
				"subscription_id", sub.ID, "error", err)
			res.Error = err.Error()
		}
	}
	return res
}
