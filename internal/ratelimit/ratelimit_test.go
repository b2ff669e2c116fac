package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWindowLimiterMinuteCeiling(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	wl := NewWindowLimiter(2, 0, 0, true)
	wl.now = func() time.Time { return now }

	if !wl.Allow() || !wl.Allow() {
		t.Fatal("first two requests should be allowed")
	}
	if wl.Allow() {
		t.Fatal("third request within a minute should be rejected")
	}

	now = now.Add(61 * time.Second)
	if !wl.Allow() {
		t.Fatal("request after the minute window should be allowed")
	}

	stats := wl.Stats()
	if stats.RequestsLastMinute != 1 || stats.RequestsLastHour != 3 || stats.Rejected != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.RemainingThisMinute != 1 || stats.RemainingThisHour != -1 {
		t.Errorf("unexpected remaining: %+v", stats)
	}
}

func TestWindowLimiterDayCeiling(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	wl := NewWindowLimiter(0, 0, 3, true)
	wl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !wl.Allow() {
			t.Fatalf("request %d should be allowed", i)
		}
		now = now.Add(2 * time.Hour)
	}
	if wl.Allow() {
		t.Fatal("fourth request within a day should be rejected")
	}

	now = now.Add(20 * time.Hour)
	if !wl.Allow() {
		t.Fatal("request after the first one expired should be allowed")
	}
}

func TestWindowLimiterDisabled(t *testing.T) {
	wl := NewWindowLimiter(1, 1, 1, false)
	for i := 0; i < 5; i++ {
		if !wl.Allow() {
			t.Fatal("disabled limiter should allow everything")
		}
	}
	if wl.Stats().Enabled {
		t.Error("stats should report disabled")
	}
}

func TestSiteLimiterSpacesRequests(t *testing.T) {
	sl := NewSiteLimiter(1, 50*time.Millisecond, 0)
	ctx := context.Background()

	if err := sl.Acquire(ctx); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	sl.Release()

	start := time.Now()
	if err := sl.Acquire(ctx); err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	sl.Release()

	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("second acquire returned after %v, want at least the base delay", elapsed)
	}
	if sl.InFlight() != 0 {
		t.Errorf("in flight: got %d", sl.InFlight())
	}
}

func TestSiteLimiterHonoursContext(t *testing.T) {
	sl := NewSiteLimiter(1, 0, 0)
	if err := sl.Acquire(context.Background()); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := sl.Acquire(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if sl.InFlight() != 1 {
		t.Errorf("failed acquire must not hold a slot, in flight = %d", sl.InFlight())
	}
	sl.Release()
}
