package ratelimit

import (
	"context"
	"time"
)

// Pacer enforces a minimum interval between the starts of consecutive
// iterations. Time already spent inside an iteration counts toward the
// interval, so only the remainder is slept.
type Pacer struct {
	delay time.Duration
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Pacer
type Option func(*Pacer)

// WithClock replaces the time source
func WithClock(now func() time.Time) Option {
	return func(p *Pacer) {
		p.now = now
	}
}

// WithSleep replaces the blocking sleep
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Pacer) {
		p.sleep = sleep
	}
}

// NewPacer creates a pacer with the given minimum interval
func NewPacer(delay time.Duration, opts ...Option) *Pacer {
	p := &Pacer{
		delay: delay,
		now:   time.Now,
		sleep: sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start marks the beginning of an iteration
func (p *Pacer) Start() time.Time {
	return p.now()
}

// Remaining returns how long is left of the interval that began at start
func (p *Pacer) Remaining(start time.Time) time.Duration {
	remaining := p.delay - p.now().Sub(start)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Pace blocks for the remainder of the interval that began at start.
// It returns the context error if ctx is cancelled first.
func (p *Pacer) Pace(ctx context.Context, start time.Time) error {
	remaining := p.Remaining(start)
	if remaining == 0 {
		return ctx.Err()
	}
	return p.sleep(ctx, remaining)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
