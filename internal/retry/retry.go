// Package retry runs remote calls again with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy bounds a retry loop.
type Policy struct {
	Attempts        int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// Permanent reports errors that must not be retried. Nil retries everything.
	Permanent func(error) bool
}

func DefaultPolicy() Policy {
	return Policy{Attempts: 3, InitialInterval: 500 * time.Millisecond, MaxInterval: 5 * time.Second}
}

// Do calls fn until it succeeds, returns a permanent error, the attempts are used up or ctx is done.
// The last error is returned wrapped.
func Do(ctx context.Context, p Policy, fn func() error) error {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}

	expBackoff := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		expBackoff.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		expBackoff.MaxInterval = p.MaxInterval
	}
	expBackoff.Reset()

	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if p.Permanent != nil && p.Permanent(err) {
			return err
		}
		if attempt >= p.Attempts {
			break
		}

		delay := expBackoff.NextBackOff()
		if delay == backoff.Stop {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", p.Attempts, err)
}
