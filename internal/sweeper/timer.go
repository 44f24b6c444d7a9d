package sweeper

import (
	"context"
	"log/slog"
	"time"
)

// Timer periodically runs the trial sweep.
type Timer struct {
	service  *Service
	interval time.Duration
	logger   *slog.Logger
	stop     chan struct{}
}

// NewTimer creates a sweep timer.
func NewTimer(service *Service, interval time.Duration, logger *slog.Logger) *Timer {
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	return &Timer{
		service:  service,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Start begins the sweep loop. Call in a goroutine.
func (t *Timer) Start(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		case <-ticker.C:
			t.sweep(ctx)
		}
	}
}

// Stop signals the timer to stop.
func (t *Timer) Stop() {
	select {
	case t.stop <- struct{}{}:
	default:
	}
}

func (t *Timer) sweep(ctx context.Context) {
	report, err := t.service.Run(ctx)
	if err != nil {
		t.logger.Warn("scheduled trial sweep failed", "error", err)
		return
	}
	if report.Total > 0 {
		t.logger.Info("scheduled trial sweep processed subscriptions",
			"total", report.Total,
			"activated", report.Activated,
			"past_due", report.PastDue)
	}
}
