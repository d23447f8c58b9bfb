// Package oneshot provides a single-assignment future with a fixed deadline.
//
// A Signal is created immediately before the action expected to produce its
// value. Fire settles it at most once; Await blocks until it is settled, the
// deadline passes, or the caller's context ends. Reaching the deadline is a
// normal terminal state reported as ErrTimeout.
package oneshot

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTimeout is returned by Await when the deadline passes without a value.
var ErrTimeout = errors.New("signal deadline exceeded")

// Signal is a one-shot future for the next occurrence of an event within a deadline.
type Signal[T any] struct {
	deadline time.Time
	done     chan struct{}

	mu      sync.Mutex
	value   T
	fired   bool
	expired bool

	settleOnce sync.Once
	onSettle   []func()
	timer      *time.Timer
}

// New creates a Signal whose deadline is timeout from now.
func New[T any](timeout time.Duration) *Signal[T] {
	s := &Signal[T]{
		deadline: time.Now().Add(timeout),
		done:     make(chan struct{}),
	}
	// Expire on our own so cleanup hooks run even if nobody ever awaits.
	s.mu.Lock()
	s.timer = time.AfterFunc(timeout, s.expire)
	s.mu.Unlock()
	return s
}

// OnSettle registers fn to run once the signal is fired, expired or cancelled.
// If the signal is already settled fn runs immediately.
func (s *Signal[T]) OnSettle(fn func()) {
	s.mu.Lock()
	if s.fired || s.expired {
		s.mu.Unlock()
		fn()
		return
	}
	s.onSettle = append(s.onSettle, fn)
	s.mu.Unlock()
}

// Fire settles the signal with v. It reports whether this call won; later calls are ignored.
func (s *Signal[T]) Fire(v T) bool {
	s.mu.Lock()
	if s.fired || s.expired {
		s.mu.Unlock()
		return false
	}
	s.value = v
	s.fired = true
	s.mu.Unlock()

	s.settle()
	return true
}

// Cancel expires the signal early. A value that already arrived is kept.
func (s *Signal[T]) Cancel() {
	s.expire()
}

func (s *Signal[T]) expire() {
	s.mu.Lock()
	if s.fired || s.expired {
		s.mu.Unlock()
		return
	}
	s.expired = true
	s.mu.Unlock()

	s.settle()
}

func (s *Signal[T]) settle() {
	s.settleOnce.Do(func() {
		close(s.done)

		s.mu.Lock()
		timer := s.timer
		hooks := s.onSettle
		s.onSettle = nil
		s.mu.Unlock()

		if timer != nil {
			timer.Stop()
		}
		for _, fn := range hooks {
			fn()
		}
	})
}

// Await blocks until the signal settles or ctx ends.
// It returns ErrTimeout when the deadline passed without a value. A signal
// that has already settled wins over a finished ctx.
func (s *Signal[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-s.done:
	default:
		select {
		case <-s.done:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.fired {
		var zero T
		return zero, ErrTimeout
	}
	return s.value, nil
}

// Done is closed once the signal settles.
func (s *Signal[T]) Done() <-chan struct{} {
	return s.done
}

// Fired reports whether a value arrived.
func (s *Signal[T]) Fired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fired
}

// Deadline returns the instant after which the signal can no longer fire.
func (s *Signal[T]) Deadline() time.Time {
	return s.deadline
}
