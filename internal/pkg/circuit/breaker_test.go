package circuit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cb := NewCircuitBreaker("venue", 2, time.Minute)
	cb.nowFn = func() time.Time { return now }
	boom := errors.New("boom")

	assert.Equal(t, boom, cb.Do(func() error { return boom }))
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, boom, cb.Do(func() error { return boom }))
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Do(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestBreakerHalfOpenRecovers(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cb := NewCircuitBreaker("venue", 1, time.Second)
	cb.nowFn = func() time.Time { return now }

	_ = cb.Do(func() error { return errors.New("down") })
	assert.Equal(t, StateOpen, cb.State())

	now = now.Add(2 * time.Second)
	assert.NoError(t, cb.Do(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerFailurePredicate(t *testing.T) {
	cb := NewCircuitBreaker("venue", 1, time.Minute)
	rejected := errors.New("rejected by venue")
	cb.SetFailurePredicate(func(err error) bool { return !errors.Is(err, rejected) })

	assert.Equal(t, rejected, cb.Do(func() error { return rejected }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerDefaultsNonPositiveCooldown(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cb := NewCircuitBreaker("venue", 1, 0)
	cb.nowFn = func() time.Time { return now }

	assert.Error(t, cb.Do(func() error { return errors.New("boom") }))
	assert.Equal(t, StateOpen, cb.State())

	now = now.Add(time.Second)
	assert.ErrorIs(t, cb.Do(func() error { return nil }), ErrOpen, "still open before the default cooldown")

	now = now.Add(DefaultCooldown)
	assert.NoError(t, cb.Do(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}
