// Package backoff provides exponential backoff with jitter and the
// retry loop used around model calls, including Retry-After honoring
// and the persistent-429 model fallback hook.
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Policy defines the delay schedule for a retry loop.
type Policy struct {
	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration
	// MaxDelay caps the doubled delay.
	MaxDelay time.Duration
	// Jitter is the randomization factor applied symmetrically, so an
	// effective delay lands in [delay*(1-Jitter), delay*(1+Jitter)].
	Jitter float64
}

// DefaultPolicy returns the schedule used for model calls:
// 5s initial, 30s cap, 30% jitter.
func DefaultPolicy() Policy {
	return Policy{
		InitialDelay: 5 * time.Second,
		MaxDelay:     30 * time.Second,
		Jitter:       0.3,
	}
}

// JitterDelay randomizes delay by ±Jitter.
func (p Policy) JitterDelay(delay time.Duration) time.Duration {
	return p.JitterDelayWithRand(delay, rand.Float64()) // #nosec G404 -- jitter does not require cryptographic randomness
}

// JitterDelayWithRand randomizes delay using a provided random value
// in [0.0, 1.0), for deterministic tests.
func (p Policy) JitterDelayWithRand(delay time.Duration, randomValue float64) time.Duration {
	spread := (2*randomValue - 1) * p.Jitter
	jittered := float64(delay) * (1 + spread)
	return time.Duration(math.Max(0, jittered))
}

// Next doubles the delay up to the cap.
func (p Policy) Next(delay time.Duration) time.Duration {
	doubled := delay * 2
	if doubled > p.MaxDelay {
		return p.MaxDelay
	}
	return doubled
}
