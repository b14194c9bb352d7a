// Package ratelimit implements the token-bucket quota governor that sits in
// front of every outbound upstream call.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrEmergencyStop is returned by Acquire once the observed daily remaining
// quota drops below the configured emergency threshold. It is fatal for the
// current run but never for the process: the next run may have quota again.
var ErrEmergencyStop = errors.New("ratelimit: emergency stop threshold reached")

// Governor is a token bucket with capacity Capacity refilling at
// Capacity/60 tokens per second, plus a best-effort daily remaining counter
// fed by observed response headers.
type Governor struct {
	mu sync.Mutex

	capacity             float64
	refillPerSecond      float64
	emergencyStopThreshold int

	tokens       float64
	lastRefillAt time.Time

	dailyRemaining    int
	dailyRemainingSet bool

	now func() time.Time
}

type Option func(*Governor)

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(g *Governor) { g.now = now }
}

// New builds a Governor for a per-minute capacity. The bucket starts empty
// so the process cannot burst its quota on startup (§4.2).
func New(perMinuteCapacity int, emergencyStopThreshold int, opts ...Option) *Governor {
	if perMinuteCapacity < 1 {
		perMinuteCapacity = 1
	}

	g := &Governor{
		capacity:               float64(perMinuteCapacity),
		refillPerSecond:        float64(perMinuteCapacity) / 60,
		emergencyStopThreshold: emergencyStopThreshold,
		tokens:                 0,
		now:                    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.lastRefillAt = g.now()
	return g
}

// Acquire blocks until a token is available or ctx is cancelled. It returns
// ErrEmergencyStop immediately, without consuming a token, once the observed
// daily remaining has fallen below the emergency threshold.
func (g *Governor) Acquire(ctx context.Context) error {
	for {
		g.mu.Lock()
		g.refillLocked()

		if g.dailyRemainingSet && g.dailyRemaining < g.emergencyStopThreshold {
			g.mu.Unlock()
			return ErrEmergencyStop
		}

		if g.tokens >= 1 {
			g.tokens--
			g.mu.Unlock()
			return nil
		}

		wait := g.waitForNextTokenLocked()
		g.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Observe folds an upstream response's rate-limit headers into the local
// estimate. The per-minute bucket is only ever clamped down to the observed
// remaining, never raised, so an optimistic header cannot grant a burst
// (§4.2).
func (g *Governor) Observe(headers Headers) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.refillLocked()

	if headers.MinuteRemaining != nil && float64(*headers.MinuteRemaining) < g.tokens {
		g.tokens = float64(*headers.MinuteRemaining)
	}
	if headers.DailyRemaining != nil {
		g.dailyRemaining = *headers.DailyRemaining
		g.dailyRemainingSet = true
	}
}

// ObserveRateLimited folds in a rate-limit signal with no structured header
// data — an HTTP 429 or an envelope-level errors.rateLimit entry — by
// zeroing the per-minute bucket so the next Acquire waits out a full refill
// (§4.2, §4.3).
func (g *Governor) ObserveRateLimited() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.refillLocked()
	g.tokens = 0
}

// DailyRemaining reports the last-observed daily remaining quota and
// whether any response has reported one yet. Used by callers that must
// gate their own work on quota (§4.10.2: the verifier only proceeds when
// daily_remaining >= min_daily_quota).
func (g *Governor) DailyRemaining() (remaining int, observed bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dailyRemaining, g.dailyRemainingSet
}

func (g *Governor) refillLocked() {
	now := g.now()
	elapsed := now.Sub(g.lastRefillAt).Seconds()
	if elapsed <= 0 {
		return
	}
	g.tokens += elapsed * g.refillPerSecond
	if g.tokens > g.capacity {
		g.tokens = g.capacity
	}
	g.lastRefillAt = now
}

func (g *Governor) waitForNextTokenLocked() time.Duration {
	deficit := 1 - g.tokens
	if deficit <= 0 {
		return 0
	}
	seconds := deficit / g.refillPerSecond
	return time.Duration(seconds * float64(time.Second))
}

// Headers is the subset of an upstream response's rate-limit headers the
// governor cares about. Both fields are optional: a provider may omit
// either on a given response.
type Headers struct {
	MinuteRemaining *int
	DailyRemaining  *int
}
