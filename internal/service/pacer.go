package service

import (
	"context"
	"math/rand"
	"time"
)

// Pacer decides how long the orchestrator waits between two sends.
type Pacer interface {
	// Wait is called after send number `sent` (1-based) when more remain.
	Wait(ctx context.Context, sent int) error
}

// FixedPacer waits Interval plus up to Jitter, capped at Cap when Cap > 0.
type FixedPacer struct {
	Interval time.Duration
	Jitter   time.Duration
	Cap      time.Duration

	// Sleep and Rand are replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
	Rand  func() float64
}

// DefaultPacer matches the provider's documented rate limit.
func DefaultPacer() *FixedPacer {
	return &FixedPacer{Interval: 600 * time.Millisecond}
}

// Delay is the pause Wait will take.
func (p *FixedPacer) Delay() time.Duration {
	d := p.Interval
	if p.Jitter > 0 {
		r := rand.Float64
		if p.Rand != nil {
			r = p.Rand
		}
		d += time.Duration(r() * float64(p.Jitter))
	}
	if p.Cap > 0 && d > p.Cap {
		d = p.Cap
	}
	if d < 0 {
		d = 0
	}
	return d
}

func (p *FixedPacer) Wait(ctx context.Context, _ int) error {
	d := p.Delay()
	if d == 0 {
		return ctx.Err()
	}
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return sleepContext(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
