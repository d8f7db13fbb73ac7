package backoff

import (
	"context"
	"net/http"
	"time"
)

// DefaultMaxAttempts bounds the retry loop for model calls.
const DefaultMaxAttempts = 5

// FallbackHandler is consulted after two consecutive 429 responses.
// It returns the id of a fallback model to retarget to, or "" to
// keep retrying the current model.
type FallbackHandler func(ctx context.Context, authType string) string

// Options configures a retry loop.
type Options struct {
	Policy      Policy
	MaxAttempts int
	// ShouldRetry classifies errors; nil means DefaultShouldRetry.
	ShouldRetry func(error) bool

	// AuthType is passed through to the fallback handler.
	AuthType string
	// OnFallback, when set, consults the handler after two consecutive
	// rate-limit responses.
	OnFallback FallbackHandler
	// FallbackApplied tells the caller to retarget to the returned
	// model before the next attempt.
	FallbackApplied func(model string)

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultOptions returns the retry configuration used for model calls.
func DefaultOptions() Options {
	return Options{
		Policy:      DefaultPolicy(),
		MaxAttempts: DefaultMaxAttempts,
		ShouldRetry: DefaultShouldRetry,
	}
}

// Result carries the outcome of a retry loop.
type Result[T any] struct {
	Value T
	// Attempts counts calls to fn, including ones voided by a model
	// fallback reset.
	Attempts int
	// FallbackModel is the model id a fallback switched to, if any.
	FallbackModel string
}

// Retry runs fn until it succeeds, the attempt budget is exhausted,
// an error is classified non-retryable, or the context ends.
//
// Delay schedule: a server-provided Retry-After is honored exactly
// and resets the backoff to its initial value; otherwise the current
// delay is jittered ±30% and then doubled up to the cap. Two
// consecutive 429 responses consult the fallback handler; a non-empty
// model id resets the attempt counter and backoff, and the caller is
// expected to retarget via FallbackApplied.
func Retry[T any](ctx context.Context, opts Options, fn func(ctx context.Context) (T, error)) (Result[T], error) {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.ShouldRetry == nil {
		opts.ShouldRetry = DefaultShouldRetry
	}
	if opts.Policy == (Policy{}) {
		opts.Policy = DefaultPolicy()
	}
	sleep := opts.sleep
	if sleep == nil {
		sleep = SleepWithContext
	}

	var result Result[T]
	delay := opts.Policy.InitialDelay
	attempt := 0
	consecutive429 := 0

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		attempt++
		result.Attempts++

		value, err := fn(ctx)
		if err == nil {
			result.Value = value
			return result, nil
		}

		if StatusOf(err) == http.StatusTooManyRequests {
			consecutive429++
		} else {
			consecutive429 = 0
		}

		if consecutive429 >= 2 && opts.OnFallback != nil {
			if model := opts.OnFallback(ctx, opts.AuthType); model != "" {
				result.FallbackModel = model
				if opts.FallbackApplied != nil {
					opts.FallbackApplied(model)
				}
				attempt = 0
				consecutive429 = 0
				delay = opts.Policy.InitialDelay
				continue
			}
		}

		if attempt >= opts.MaxAttempts || !opts.ShouldRetry(err) {
			return result, err
		}

		if retryAfter, ok := RetryAfterOf(err); ok {
			if serr := sleep(ctx, retryAfter); serr != nil {
				return result, serr
			}
			delay = opts.Policy.InitialDelay
			continue
		}

		if serr := sleep(ctx, opts.Policy.JitterDelay(delay)); serr != nil {
			return result, serr
		}
		delay = opts.Policy.Next(delay)
	}
}
