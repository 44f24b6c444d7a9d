package ratelimit

import (
	"testing"
	"time"
)

func TestAllowWithinBurst(t *testing.T) {
	l := New(Config{RequestsPerMinute: 60, BurstSize: 5, CleanupInterval: time.Hour})
	defer l.Stop()

	for i := 0; i < 5; i++ {
		if !l.Allow("client") {
			t.Fatalf("request %d within burst should be allowed", i)
		}
	}
	if l.Allow("client") {
		t.Fatal("request beyond burst should be denied")
	}
}

func TestAllowRefills(t *testing.T) {
	// 600 rpm = 10 tokens/sec, so 200ms refills ~2 tokens
	l := New(Config{RequestsPerMinute: 600, BurstSize: 1, CleanupInterval: time.Hour})
	defer l.Stop()

	if !l.Allow("client") {
		t.Fatal("first request should be allowed")
	}
	if l.Allow("client") {
		t.Fatal("bucket should be empty immediately after burst")
	}

	time.Sleep(200 * time.Millisecond)
	if !l.Allow("client") {
		t.Fatal("bucket should refill after waiting")
	}
}

func TestAllowIsolatesKeys(t *testing.T) {
	l := New(Config{RequestsPerMinute: 60, BurstSize: 1, CleanupInterval: time.Hour})
	defer l.Stop()

	if !l.Allow("a") {
		t.Fatal("first request for key a should be allowed")
	}
	if !l.Allow("b") {
		t.Fatal("first request for key b should be allowed")
	}
	if l.Allow("a") {
		t.Fatal("second request for key a should be denied")
	}
}
