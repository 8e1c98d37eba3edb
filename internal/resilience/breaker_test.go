package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = Transient(errors.New("503"), 503)

func call(b *Breaker, err error) (int, error) {
	calls := 0
	_, got := Guard(context.Background(), b, func(context.Context) (struct{}, error) {
		calls++
		return struct{}{}, err
	})
	return calls, got
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker("results.example", BreakerConfig{Threshold: 3, Cooldown: time.Minute})

	for range 3 {
		_, _ = call(b, errFlaky)
	}
	assert.Equal(t, Open, b.State())

	calls, err := call(b, nil)
	assert.Zero(t, calls)
	assert.ErrorIs(t, err, ErrOpen)
}

func TestBreaker_PermanentErrorsDoNotTrip(t *testing.T) {
	b := NewBreaker("results.example", BreakerConfig{Threshold: 1})

	_, err := call(b, errors.New("404"))
	require.Error(t, err)
	assert.Equal(t, Closed, b.State())
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	b := NewBreaker("results.example", BreakerConfig{Threshold: 2, Cooldown: time.Minute})

	_, _ = call(b, errFlaky)
	_, _ = call(b, nil)
	_, _ = call(b, errFlaky)
	assert.Equal(t, Closed, b.State())
}

func TestBreaker_ProbeAfterCooldown(t *testing.T) {
	clock := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker("results.example", BreakerConfig{Threshold: 1, Cooldown: 10 * time.Second})
	b.now = func() time.Time { return clock }

	_, _ = call(b, errFlaky)
	assert.Equal(t, Open, b.State())

	clock = clock.Add(11 * time.Second)
	assert.Equal(t, Probing, b.State())

	// A failed probe reopens immediately.
	calls, _ := call(b, errFlaky)
	assert.Equal(t, 1, calls)
	assert.Equal(t, Open, b.State())

	clock = clock.Add(11 * time.Second)
	calls, err := call(b, nil)
	assert.Equal(t, 1, calls)
	assert.NoError(t, err)
	assert.Equal(t, Closed, b.State())
}

func TestBreakers_OnePerKey(t *testing.T) {
	r := NewBreakers(BreakerConfig{})
	assert.Same(t, r.For("a.example"), r.For("a.example"))
	assert.NotSame(t, r.For("a.example"), r.For("b.example"))
}
