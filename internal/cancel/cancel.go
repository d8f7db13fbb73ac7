// Package cancel provides the session-scoped cancellation signal.
// Unlike a context, the signal is latched by an explicit user action
// and observed cooperatively at safe points.
package cancel

import "sync"

// Signal is a one-way latch. The zero value is not usable; create one
// with NewSignal.
type Signal struct {
	once sync.Once
	done chan struct{}
}

// NewSignal returns an unset signal.
func NewSignal() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Set latches the signal. Further calls are no-ops.
func (s *Signal) Set() {
	s.once.Do(func() { close(s.done) })
}

// IsSet reports whether the signal has been latched.
func (s *Signal) IsSet() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the signal is set.
func (s *Signal) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the signal is set.
func (s *Signal) Wait() {
	<-s.done
}
