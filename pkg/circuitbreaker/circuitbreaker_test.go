package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/learnhub-core/pkg/timeutil"
)

var errBoom = errors.New("boom")

func fail(context.Context) error    { return errBoom }
func succeed(context.Context) error { return nil }

func TestBreakerOpensAfterThreshold(t *testing.T) {
	clock := timeutil.NewFixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	var changes []string
	cb := New("test",
		WithFailureThreshold(2),
		WithCoolDown(10*time.Second),
		WithClock(clock),
		WithOnStateChange(func(_ string, from, to State) {
			changes = append(changes, from.String()+"->"+to.String())
		}),
	)
	ctx := context.Background()

	assert.ErrorIs(t, cb.Execute(ctx, fail), errBoom)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, fail), errBoom)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.True(t, IsRejected(err))
	assert.False(t, called)
	assert.Equal(t, 1, cb.Counts().Rejected)

	clock.Advance(10 * time.Second)
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateHalfOpen, cb.State(), "needs two probe successes by default")
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, cb.State())

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, changes)
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	clock := timeutil.NewFixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	cb := New("test", WithFailureThreshold(1), WithCoolDown(time.Second), WithClock(clock))
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	require.Equal(t, StateOpen, cb.State())

	clock.Advance(time.Second)
	assert.ErrorIs(t, cb.Execute(ctx, fail), errBoom)
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrOpen, "cool-down restarts")
}

func TestBreakerProbeLimit(t *testing.T) {
	clock := timeutil.NewFixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	cb := New("test", WithFailureThreshold(1), WithCoolDown(time.Second), WithClock(clock))
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clock.Advance(time.Second)

	err := cb.Execute(ctx, func(ctx context.Context) error {
		// A second call while the probe is in flight is rejected.
		return cb.Execute(ctx, succeed)
	})
	assert.ErrorIs(t, err, ErrProbeLimit)
}

func TestBreakerIgnoresFilteredErrors(t *testing.T) {
	errMiss := errors.New("miss")
	cb := New("test",
		WithFailureThreshold(1),
		WithIsFailure(func(err error) bool { return !errors.Is(err, errMiss) }),
	)

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(context.Background(), func(context.Context) error { return errMiss }), errMiss)
	}
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Counts().TotalFailures)

	cb.Reset()
	assert.Equal(t, Counts{}, cb.Counts())
}
