package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/subgate/subgate/internal/idgen"
	"github.com/subgate/subgate/internal/metrics"
	"github.com/subgate/subgate/internal/payment"
	"github.com/subgate/subgate/internal/subscription"
)

// Outcome classifies what happened to one processed event.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeFailed    Outcome = "failed"
)

// Processor applies normalized payment events to subscription state
// and the payment ledger.
type Processor struct {
	events Store
	subs   subscription.Store
	subSvc *subscription.Service
	paySvc *payment.Service
	logger *slog.Logger
	now    func() time.Time
}

// NewProcessor creates a reconciliation processor.
func NewProcessor(events Store, subs subscription.Store, subSvc *subscription.Service, paySvc *payment.Service, logger *slog.Logger) *Processor {
	return &Processor{
		events: events,
		subs:   subs,
		subSvc: subSvc,
		paySvc: paySvc,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the processor clock. Used by tests.
func (p *Processor) WithClock(now func() time.Time) *Processor {
	p.now = now
	return p
}

// Process persists the event, then applies it. The persist happens
// first so no delivery is lost even if processing crashes; a
// processing failure is written back onto the stored row and returned
// so the HTTP layer reports 500 and the provider redelivers.
//
// Redeliveries of an event that already processed successfully are
// skipped.
func (p *Processor) Process(ctx context.Context, ev *NormalizedEvent) (Outcome, error) {
	existing, err := p.events.GetByProviderEventID(ctx, ev.Provider, ev.EventID)
	if err != nil && err != ErrEventNotFound {
		return OutcomeFailed, err
	}

	var record *WebhookEvent
	if existing != nil {
		if existing.Processed {
			metrics.WebhookEventsTotal.WithLabelValues(ev.Provider, string(OutcomeDuplicate)).Inc()
			p.logger.Info("webhook event already processed, skipping",
				"provider", ev.Provider, "event_id", ev.EventID)
			return OutcomeDuplicate, nil
		}
		// Redelivery of a previously failed event: retry processing.
		record = existing
	} else {
		record = &WebhookEvent{
			ID:        idgen.WithPrefix("evt_"),
			Provider:  ev.Provider,
			EventID:   ev.EventID,
			EventType: ev.EventType,
			Payload:   ev.Payload,
			CreatedAt: p.now().UTC(),
		}
		if err := p.events.Create(ctx, record); err != nil {
			return OutcomeFailed, err
		}
	}

	if err := p.apply(ctx, ev); err != nil {
		record.Error = err.Error()
		record.Processed = false
		if uerr := p.events.Update(ctx, record); uerr != nil {
			p.logger.Error("failed to record webhook processing error",
				"provider", ev.Provider, "event_id", ev.EventID, "error", uerr)
		}
		metrics.WebhookEventsTotal.WithLabelValues(ev.Provider, string(OutcomeFailed)).Inc()
		return OutcomeFailed, err
	}

	now := p.now().UTC()
	record.Processed = true
	record.ProcessedAt = &now
	record.Error = ""
	if err := p.events.Update(ctx, record); err != nil {
		return OutcomeFailed, err
	}

	metrics.WebhookEventsTotal.WithLabelValues(ev.Provider, string(OutcomeProcessed)).Inc()
	p.logger.Info("webhook event processed",
		"provider", ev.Provider,
		"event_id", ev.EventID,
		"kind", string(ev.Kind))
	return OutcomeProcessed, nil
}

func (p *Processor) apply(ctx context.Context, ev *NormalizedEvent) error {
	if ev.ProviderSubscriptionID == "" {
		return fmt.Errorf("event %s has no provider subscription id", ev.EventID)
	}

	sub, err := p.subs.GetByProviderSubID(ctx, ev.ProviderSubscriptionID)
	if err != nil {
		return fmt.Errorf("subscription for provider id %q: %w", ev.ProviderSubscriptionID, err)
	}

	switch ev.Kind {
	case KindSucceeded:
		if err := p.subSvc.ApplySuccessfulPayment(ctx, sub); err != nil {
			return err
		}
		return p.settleLedger(ctx, sub, ev)

	case KindFailed:
		if sub.Status != subscription.StatusPastDue {
			if err := p.subSvc.Transition(ctx, sub, subscription.StatusPastDue); err != nil {
				return err
			}
		}
		if pending, err := p.paySvc.Store().GetPendingBySubscription(ctx, sub.ID); err == nil {
			if _, err := p.paySvc.Fail(ctx, pending.ID, ev.FailureReason); err != nil {
				return err
			}
		}
		return nil

	case KindCanceled:
		if sub.Status == subscription.StatusCanceled {
			return nil
		}
		return p.subSvc.Transition(ctx, sub, subscription.StatusCanceled)

	case KindPaused:
		if sub.Status == subscription.StatusPaused {
			return nil
		}
		return p.subSvc.Transition(ctx, sub, subscription.StatusPaused)

	default:
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}
}

// settleLedger completes the subscription's pending payment if one
// exists, otherwise appends a completed row for the confirmed charge.
func (p *Processor) settleLedger(ctx context.Context, sub *subscription.Subscription, ev *NormalizedEvent) error {
	if pending, err := p.paySvc.Store().GetPendingBySubscription(ctx, sub.ID); err == nil {
		_, err := p.paySvc.Complete(ctx, pending.ID, ev.ProviderTransactionID)
		return err
	}

	_, err := p.paySvc.RecordCompleted(ctx, payment.RecordParams{
		SubscriptionID:  sub.ID,
		TenantID:        sub.TenantID,
		PlanID:          sub.PlanID,
		Amount:          ev.Amount,
		Currency:        ev.Currency,
		PaymentProvider: ev.Provider,
		ProviderTxnID:   ev.ProviderTransactionID,
		PeriodStart:     sub.PeriodStart,
		PeriodEnd:       sub.PeriodEnd,
	})
	return err
}
