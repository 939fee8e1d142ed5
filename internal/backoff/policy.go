// Package backoff provides the retry-interval policies shared by the
// remote backend's Redis connect path and the worker's task retry path. The
// general shape — a Policy that turns an attempt count into a wait duration,
// and a stateful Retrier that walks a policy under a context deadline —
// follows the same split used by Temporal's retry policy
// (https://github.com/temporalio/temporal/blob/2a1044994085bffbeeee789cad52ecf2650c501c/common/backoff/retrypolicy.go),
// trimmed to the two policies the orchestrator actually needs.
package backoff

import (
	"errors"
	"math"
	"time"
)

// ErrExhausted is returned once a policy's MaxRetries has been reached.
var ErrExhausted = errors.New("backoff: retries exhausted")

// unbounded means a policy's MaxRetries imposes no ceiling.
const unbounded = 0

// Policy turns a retry attempt (0-indexed) into the interval to wait before
// making that attempt, or ErrExhausted once the policy's retry budget runs
// out.
type Policy interface {
	NextInterval(attempt int) (time.Duration, error)
}

// ExponentialBackoffPolicy doubles (or scales by BackoffFactor) the wait on
// each attempt, capped at MaxInterval (no cap when MaxInterval is 0). The
// remote backend's Redis connection retry and the worker's per-task retry
// delay both use this shape, matching
// the orchestrator's `base_delay * factor**attempt` backoff formula.
type ExponentialBackoffPolicy struct {
	InitialInterval time.Duration `json:"initial_interval,omitempty"`
	BackoffFactor   float64       `json:"backoff_factor,omitempty"`
	MaxInterval     time.Duration `json:"max_interval,omitempty"`
	// MaxRetries caps the number of attempts the policy permits; 0 (unbounded)
	// leaves retries to the caller's own loop bound or context deadline.
	MaxRetries int `json:"max_retries,omitempty"`
}

// NewExponentialBackoffPolicy returns a policy with a 2x factor, a 10s cap,
// and no retry ceiling of its own.
func NewExponentialBackoffPolicy(initialInterval time.Duration) *ExponentialBackoffPolicy {
	return &ExponentialBackoffPolicy{
		InitialInterval: initialInterval,
		BackoffFactor:   2.0,
		MaxInterval:     10 * time.Second,
		MaxRetries:      unbounded,
	}
}

func (p *ExponentialBackoffPolicy) NextInterval(attempt int) (time.Duration, error) {
	if p.MaxRetries > unbounded && attempt >= p.MaxRetries {
		return 0, ErrExhausted
	}

	factor := p.BackoffFactor
	if factor <= 0 {
		factor = 2.0
	}
	scaled := float64(p.InitialInterval) * math.Pow(factor, float64(attempt))

	interval := time.Duration(scaled)
	if p.MaxInterval > 0 && interval > p.MaxInterval {
		interval = p.MaxInterval
	}
	return interval, nil
}

// ConstantBackoffPolicy waits the same interval before every attempt.
type ConstantBackoffPolicy struct {
	Interval   time.Duration `json:"interval,omitempty"`
	MaxRetries int           `json:"max_retries,omitempty"`
}

func NewConstantBackoffPolicy(interval time.Duration) *ConstantBackoffPolicy {
	return &ConstantBackoffPolicy{Interval: interval, MaxRetries: unbounded}
}

func (p *ConstantBackoffPolicy) NextInterval(attempt int) (time.Duration, error) {
	if p.MaxRetries > unbounded && attempt >= p.MaxRetries {
		return 0, ErrExhausted
	}
	return p.Interval, nil
}
