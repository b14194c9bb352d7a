package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGovernor_StartsEmptyAndRefills(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	g := New(60, 0, WithClock(clock))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- g.Acquire(ctx) }()

	select {
	case <-done:
		t.Fatalf("acquire should not succeed before any refill")
	case <-time.After(20 * time.Millisecond):
	}

	now = now.Add(1100 * time.Millisecond)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected acquire to succeed after refill: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("acquire did not unblock after refill window elapsed")
	}
}

func TestGovernor_ObserveClampsDownNeverUp(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	g := New(60, 0, WithClock(func() time.Time { return now }))

	now = now.Add(10 * time.Second)
	low := 1
	g.Observe(Headers{MinuteRemaining: &low})

	g.mu.Lock()
	tokens := g.tokens
	g.mu.Unlock()
	if tokens != 1 {
		t.Fatalf("expected bucket clamped to observed remaining 1, got %f", tokens)
	}

	high := 999
	g.Observe(Headers{MinuteRemaining: &high})

	g.mu.Lock()
	tokens = g.tokens
	g.mu.Unlock()
	if tokens != 1 {
		t.Fatalf("expected bucket to stay clamped, got %f", tokens)
	}
}

func TestGovernor_EmergencyStop(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	g := New(60, 100, WithClock(func() time.Time { return now }))

	remaining := 5
	g.Observe(Headers{DailyRemaining: &remaining})

	err := g.Acquire(context.Background())
	if !errors.Is(err, ErrEmergencyStop) {
		t.Fatalf("expected emergency stop, got %v", err)
	}
}

func TestGovernor_AcquireRespectsContextCancellation(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	g := New(1, 0, WithClock(func() time.Time { return now }))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := g.Acquire(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestGovernor_ObserveRateLimitedZeroesBucket(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	g := New(60, 0, WithClock(func() time.Time { return now }))

	now = now.Add(5 * time.Second)
	g.ObserveRateLimited()

	g.mu.Lock()
	tokens := g.tokens
	g.mu.Unlock()
	if tokens != 0 {
		t.Fatalf("expected zeroed bucket after rate-limit observation, got %f", tokens)
	}
}
