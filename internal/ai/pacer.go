package ai

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer enforces a minimum spacing between outbound calls. One Pacer is
// shared by every caller in the process.
//
// Wait reserves its slot before suspending: reading the clock, computing the
// wait and advancing the next free slot happen under one lock, so concurrent
// callers never observe a stale slot. A caller that gives up
// while waiting keeps its reservation, and the slot still throttles the
// next caller.
type Pacer struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	minDelay time.Duration
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// PacerOption customizes a Pacer.
type PacerOption func(*Pacer)

// WithClock overrides the time source.
func WithClock(now func() time.Time) PacerOption {
	return func(p *Pacer) {
		if now != nil {
			p.now = now
		}
	}
}

// WithPacerSleeper overrides how the pacer suspends callers.
func WithPacerSleeper(sleep func(ctx context.Context, d time.Duration) error) PacerOption {
	return func(p *Pacer) {
		if sleep != nil {
			p.sleep = sleep
		}
	}
}

// NewPacer returns a pacer allowing one call per minDelay.
func NewPacer(minDelay time.Duration, opts ...PacerOption) *Pacer {
	p := &Pacer{
		minDelay: minDelay,
		now:      time.Now,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.limiter = newLimiter(minDelay)
	return p
}

func newLimiter(minDelay time.Duration) *rate.Limiter {
	if minDelay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(minDelay), 1)
}

// MinDelay returns the enforced spacing.
func (p *Pacer) MinDelay() time.Duration {
	return p.minDelay
}

// Wait blocks until the caller's slot arrives and returns how long it
// waited.
func (p *Pacer) Wait(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.mu.Lock()
	now := p.now()
	delay := p.limiter.ReserveN(now, 1).DelayFrom(now)
	p.mu.Unlock()

	if delay <= 0 {
		return 0, nil
	}
	if err := p.sleep(ctx, delay); err != nil {
		return 0, err
	}
	return delay, nil
}

// ResetForTesting forgets every reservation.
func (p *Pacer) ResetForTesting() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.limiter = newLimiter(p.minDelay)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
