package realtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/subgate/subgate/internal/subscription"
)

func testHub() *Hub {
	return NewHub(slog.New(slog.DiscardHandler))
}

func activeEvent() subscription.LifecycleEvent {
	return subscription.LifecycleEvent{
		Type:           "subscription.active",
		TenantID:       "ten_1",
		SubscriptionID: "sub_1",
		ApplicationID:  "app_1",
		From:           subscription.StatusTrialing,
		To:             subscription.StatusActive,
		At:             time.Now(),
	}
}

// ---------------------------------------------------------------------------
// filter tests
// ---------------------------------------------------------------------------

func TestWants_AllEvents(t *testing.T) {
	client := &Client{filter: Filter{AllEvents: true}}
	if !client.wants(activeEvent()) {
		t.Error("AllEvents client should receive all events")
	}
}

func TestWants_EventTypeFilter(t *testing.T) {
	client := &Client{filter: Filter{
		EventTypes: []string{"subscription.canceled", "subscription.past_due"},
	}}

	if client.wants(activeEvent()) {
		t.Error("Should NOT receive subscription.active")
	}

	canceled := activeEvent()
	canceled.Type = "subscription.canceled"
	if !client.wants(canceled) {
		t.Error("Should receive subscription.canceled")
	}
}

func TestWants_TenantFilter(t *testing.T) {
	client := &Client{filter: Filter{TenantIDs: []string{"ten_1"}}}

	if !client.wants(activeEvent()) {
		t.Error("Should match on tenant id")
	}

	other := activeEvent()
	other.TenantID = "ten_other"
	if client.wants(other) {
		t.Error("Should NOT match unrelated tenants")
	}
}

func TestWants_ApplicationFilter(t *testing.T) {
	client := &Client{filter: Filter{ApplicationIDs: []string{"app_2"}}}
	if client.wants(activeEvent()) {
		t.Error("Should NOT match unrelated applications")
	}
}

func TestWants_EmptyFilter(t *testing.T) {
	client := &Client{filter: Filter{}}
	if !client.wants(activeEvent()) {
		t.Error("Empty filter should receive events")
	}
}

// ---------------------------------------------------------------------------
// Hub lifecycle tests
// ---------------------------------------------------------------------------

func TestHub_Stats_Initial(t *testing.T) {
	h := testHub()

	stats := h.Stats()
	if stats["connectedClients"].(int) != 0 {
		t.Errorf("Expected 0 connected clients, got %v", stats["connectedClients"])
	}
	if stats["totalEvents"].(int64) != 0 {
		t.Errorf("Expected 0 total events, got %v", stats["totalEvents"])
	}
}

func TestHub_PublishAndStats(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	h.Publish(activeEvent())
	time.Sleep(50 * time.Millisecond)

	stats := h.Stats()
	if stats["totalEvents"].(int64) != 1 {
		t.Errorf("Expected 1 total event, got %v", stats["totalEvents"])
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	client := &Client{
		hub:    h,
		send:   make(chan []byte, 256),
		filter: Filter{AllEvents: true},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	stats := h.Stats()
	if stats["connectedClients"].(int) != 1 {
		t.Errorf("Expected 1 connected client, got %v", stats["connectedClients"])
	}
	if stats["peakClients"].(int64) != 1 {
		t.Errorf("Expected peak 1, got %v", stats["peakClients"])
	}

	h.unregister <- client
	time.Sleep(50 * time.Millisecond)

	stats = h.Stats()
	if stats["connectedClients"].(int) != 0 {
		t.Errorf("Expected 0 connected clients after unregister, got %v", stats["connectedClients"])
	}
	if stats["peakClients"].(int64) != 1 {
		t.Errorf("Expected peak still 1, got %v", stats["peakClients"])
	}
}

func TestHub_BroadcastToClient(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	client := &Client{
		hub:    h,
		send:   make(chan []byte, 256),
		filter: Filter{AllEvents: true},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	h.Publish(activeEvent())

	select {
	case msg := <-client.send:
		if len(msg) == 0 {
			t.Error("Expected non-empty message")
		}
	case <-time.After(time.Second):
		t.Error("Timeout waiting for broadcast")
	}
}

func TestHub_FilteredBroadcast(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	// Client only wants cancellations.
	client := &Client{
		hub:    h,
		send:   make(chan []byte, 256),
		filter: Filter{EventTypes: []string{"subscription.canceled"}},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	h.Publish(activeEvent())
	time.Sleep(100 * time.Millisecond)

	select {
	case <-client.send:
		t.Error("Client should NOT receive subscription.active")
	default:
	}

	canceled := activeEvent()
	canceled.Type = "subscription.canceled"
	canceled.To = subscription.StatusCanceled
	h.Publish(canceled)

	select {
	case msg := <-client.send:
		if len(msg) == 0 {
			t.Error("Expected non-empty message")
		}
	case <-time.After(time.Second):
		t.Error("Client should receive subscription.canceled")
	}
}

func TestHub_ContextCancellation(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("Hub did not stop after context cancellation")
	}
}
