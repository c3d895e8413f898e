// Package retry implements bounded retry with exponential backoff and
// jitter. In gpload only cleanup operations retry: dropping a leftover
// staging table is attempted a fixed number of times and the job never
// fails because of it. Primary data-moving operations (create table,
// COPY, rename) are never retried here; resubmitting the whole job is
// the caller's remediation.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Policy defines retry behavior.
type Policy struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	Multiplier      float64
	RandomizeFactor float64
}

// NewPolicy creates a policy with exponential backoff between attempts.
func NewPolicy(maxAttempts int, initialDelay time.Duration) *Policy {
	return &Policy{
		MaxAttempts:     maxAttempts,
		InitialDelay:    initialDelay,
		MaxDelay:        30 * time.Second,
		Multiplier:      2.0,
		RandomizeFactor: 0.25,
	}
}

// DefaultCleanupPolicy returns the policy used for staging-table drops:
// 3 attempts with a short initial delay.
func DefaultCleanupPolicy() *Policy {
	return NewPolicy(3, 500*time.Millisecond)
}

// Execute runs fn until it succeeds, the attempts are exhausted, or the
// context is cancelled. After each failed attempt, onFailure is
// invoked with the attempt number and error; pass nil to skip
// per-attempt reporting.
func (p *Policy) Execute(ctx context.Context, fn func() error, onFailure func(attempt int, err error)) error {
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		if onFailure != nil {
			onFailure(attempt, err)
		}

		if attempt == p.MaxAttempts {
			break
		}

		timer := time.NewTimer(p.delay(attempt - 1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("all %d attempts failed: %w", p.MaxAttempts, lastErr)
}

// delay computes the backoff before the next attempt. attempt is
// zero-based.
func (p *Policy) delay(attempt int) time.Duration {
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt))

	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	if p.RandomizeFactor > 0 {
		delta := delay * p.RandomizeFactor
		delay = delay - delta + rand.Float64()*2*delta
	}

	return time.Duration(delay)
}

// GetDelay returns the delay for a specific zero-based attempt, for
// testing and preview.
func (p *Policy) GetDelay(attempt int) time.Duration {
	return p.delay(attempt)
}
