package backoff

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// HTTPError carries the provider-visible status of a failed call so
// the retry loop can classify it without sniffing error strings.
type HTTPError struct {
	Status  int
	Message string

	// RetryAfter is the server-requested delay, when the response
	// carried a Retry-After header. Zero with HasRetryAfter false
	// means no header was present.
	RetryAfter    time.Duration
	HasRetryAfter bool

	Err error
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("http %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("http %d: %s", e.Status, http.StatusText(e.Status))
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// ParseRetryAfter interprets a Retry-After header value: either a
// delay in seconds or an HTTP-date.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		d := at.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

// StatusOf extracts the HTTP status from err, or 0 if err does not
// wrap an HTTPError.
func StatusOf(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status
	}
	return 0
}

// RetryAfterOf extracts the server-requested delay from err.
func RetryAfterOf(err error) (time.Duration, bool) {
	var he *HTTPError
	if errors.As(err, &he) && he.HasRetryAfter {
		return he.RetryAfter, true
	}
	return 0, false
}

// DefaultShouldRetry retries rate limits and server errors, never
// client errors.
func DefaultShouldRetry(err error) bool {
	switch status := StatusOf(err); {
	case status == http.StatusTooManyRequests:
		return true
	case status >= 500 && status < 600:
		return true
	default:
		return false
	}
}
