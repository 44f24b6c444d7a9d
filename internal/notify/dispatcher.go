package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/subgate/subgate/internal/metrics"
	"github.com/subgate/subgate/internal/retry"
	"github.com/subgate/subgate/internal/subscription"
)

const (
	queueDepth      = 256
	deliveryTimeout = 10 * time.Second
	maxAttempts     = 3
	baseBackoff     = 500 * time.Millisecond
)

type delivery struct {
	endpoint *Endpoint
	event    subscription.LifecycleEvent
}

// Dispatcher fans lifecycle events out to registered endpoints. It
// implements subscription.Publisher; Publish never blocks the caller.
type Dispatcher struct {
	store         Store
	client        *http.Client
	logger        *slog.Logger
	queue         chan delivery
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
	started       sync.Once
	stopped       sync.Once
	defaultSecret string
}

// Option configures the dispatcher.
type Option func(*Dispatcher)

// WithSigningSecret sets a fallback HMAC secret used for endpoints
// that were registered without their own.
func WithSigningSecret(secret string) Option {
	return func(d *Dispatcher) {
		d.defaultSecret = secret
	}
}

// NewDispatcher creates an outbound webhook dispatcher.
func NewDispatcher(store Store, logger *slog.Logger, opts ...Option) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		store:  store,
		client: &http.Client{Timeout: deliveryTimeout},
		logger: logger,
		queue:  make(chan delivery, queueDepth),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the delivery workers.
func (d *Dispatcher) Start(workers int) {
	if workers <= 0 {
		workers = 2
	}
	d.started.Do(func() {
		for i := 0; i < workers; i++ {
			d.wg.Add(1)
			go d.worker()
		}
	})
}

// Stop drains the workers. Queued deliveries that have not started are
// dropped.
func (d *Dispatcher) Stop() {
	d.stopped.Do(func() {
		d.cancel()
		d.wg.Wait()
	})
}

// Publish queues the event for every matching endpoint of the event's
// application. A full queue drops the delivery rather than blocking
// the state machine.
func (d *Dispatcher) Publish(event subscription.LifecycleEvent) {
	endpoints, err := d.store.ListByApplication(d.ctx, event.ApplicationID)
	if err != nil {
		d.logger.Error("failed to list notification endpoints",
			"application_id", event.ApplicationID, "error", err)
		return
	}

	for _, ep := range endpoints {
		if !ep.Active || !ep.wants(event.Type) {
			continue
		}
		select {
		case d.queue <- delivery{endpoint: ep, event: event}:
		default:
			metrics.NotifyDeliveriesTotal.WithLabelValues("dropped").Inc()
			d.logger.Warn("notification queue full, dropping delivery",
				"endpoint_id", ep.ID, "event_type", event.Type)
		}
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case del := <-d.queue:
			d.deliver(del)
		}
	}
}

func (d *Dispatcher) deliver(del delivery) {
	payload, err := json.Marshal(del.event)
	if err != nil {
		d.recordError(del.endpoint, "failed to marshal event")
		return
	}

	err = retry.Do(d.ctx, maxAttempts, baseBackoff, func() error {
		return d.post(del.endpoint, del.event, payload)
	})
	if err != nil {
		metrics.NotifyDeliveriesTotal.WithLabelValues("failed").Inc()
		d.recordError(del.endpoint, err.Error())
		d.logger.Warn("notification delivery failed",
			"endpoint_id", del.endpoint.ID,
			"event_type", del.event.Type,
			"error", err)
		return
	}

	metrics.NotifyDeliveriesTotal.WithLabelValues("delivered").Inc()
	d.recordSuccess(del.endpoint)
}

func (d *Dispatcher) post(ep *Endpoint, event subscription.LifecycleEvent, payload []byte) error {
	req, err := http.NewRequestWithContext(d.ctx, http.MethodPost, ep.URL, bytes.NewReader(payload))
	if err != nil {
		return retry.Permanent(err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Subgate-Event", event.Type)
	req.Header.Set("X-Subgate-Timestamp", fmt.Sprintf("%d", event.At.Unix()))
	if secret := d.secretFor(ep); secret != "" {
		req.Header.Set("X-Subgate-Signature", sign(payload, secret))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	// Client errors other than 429 will not improve on retry.
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return retry.Permanent(fmt.Errorf("endpoint returned status %d", resp.StatusCode))
	}
	return fmt.Errorf("endpoint returned status %d", resp.StatusCode)
}

func (d *Dispatcher) secretFor(ep *Endpoint) string {
	if ep.Secret != "" {
		return ep.Secret
	}
	return d.defaultSecret
}

func sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

func (d *Dispatcher) recordSuccess(ep *Endpoint) {
	now := time.Now().UTC()
	ep.LastSuccess = &now
	ep.LastError = ""
	if err := d.store.Update(d.ctx, ep); err != nil {
		d.logger.Warn("failed to update endpoint state", "endpoint_id", ep.ID, "error", err)
	}
}

func (d *Dispatcher) recordError(ep *Endpoint, msg string) {
	ep.LastError = msg
	if err := d.store.Update(d.ctx, ep); err != nil {
		d.logger.Warn("failed to update endpoint state", "endpoint_id", ep.ID, "error", err)
	}
}

var _ subscription.Publisher = (*Dispatcher)(nil)
