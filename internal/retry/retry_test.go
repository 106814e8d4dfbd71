package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errFlaky = errors.New("flaky")

func fastPolicy(attempts int) Policy {
	return Policy{Attempts: attempts, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), func() error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoGivesUp(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(2), func() error {
		calls++
		return errFlaky
	})
	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 2, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	p := fastPolicy(5)
	p.Permanent = func(err error) bool { return errors.Is(err, errFlaky) }

	calls := 0
	err := Do(context.Background(), p, func() error {
		calls++
		return errFlaky
	})
	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 1, calls)
}

func TestDoHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := Policy{Attempts: 5, InitialInterval: time.Hour, MaxInterval: time.Hour}
	err := Do(ctx, p, func() error { return errFlaky })
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, errFlaky)
}
