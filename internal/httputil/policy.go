// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"fmt"
	"time"
)

// Policy is an explicit retry policy for whole-fetch operations. It
// retries a complete operation a bounded number of times with a fixed
// delay between attempts; it is not applied to every sub-call. Keeping
// the policy a plain value makes retry semantics inspectable and
// testable without real network calls.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first
	// (default 3).
	MaxAttempts int

	// Delay is the fixed pause between attempts (default 2s).
	Delay time.Duration
}

// DefaultPolicy matches the transient-failure retry used around source
// fetches: three attempts, two seconds apart.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, Delay: 2 * time.Second}
}

// Do runs fn until it succeeds or the policy is exhausted. The last
// error is returned wrapped with the attempt count. A cancelled context
// aborts the wait between attempts.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay):
		}
	}
	return fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}
