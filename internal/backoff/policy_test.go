package backoff

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponentialBackoffPolicy_DoublesUntilCapped(t *testing.T) {
	p := &ExponentialBackoffPolicy{
		InitialInterval: 2 * time.Second,
		BackoffFactor:   2.0,
		MaxInterval:     10 * time.Second,
	}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 2 * time.Second},
		{1, 4 * time.Second},
		{2, 8 * time.Second},
		{3, 10 * time.Second}, // 16s capped at 10s
	}
	for _, tc := range cases {
		got, err := p.NextInterval(tc.attempt)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestExponentialBackoffPolicy_MaxRetries(t *testing.T) {
	p := NewExponentialBackoffPolicy(time.Second)
	p.MaxRetries = 2

	_, err := p.NextInterval(0)
	require.NoError(t, err)
	_, err = p.NextInterval(1)
	require.NoError(t, err)
	_, err = p.NextInterval(2)
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestConstantBackoffPolicy(t *testing.T) {
	p := NewConstantBackoffPolicy(3 * time.Second)
	for attempt := 0; attempt < 5; attempt++ {
		got, err := p.NextInterval(attempt)
		require.NoError(t, err)
		assert.Equal(t, 3*time.Second, got)
	}
}

func TestRetrier_NextWaitsAndAdvances(t *testing.T) {
	r := NewRetrier(NewConstantBackoffPolicy(5 * time.Millisecond))
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, r.Next(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestRetrier_Reset(t *testing.T) {
	policy := &ConstantBackoffPolicy{Interval: time.Millisecond, MaxRetries: 1}
	r := NewRetrier(policy)
	ctx := context.Background()

	require.NoError(t, r.Next(ctx))
	err := r.Next(ctx)
	assert.ErrorIs(t, err, ErrExhausted)

	r.Reset()
	assert.NoError(t, r.Next(ctx))
}
