package errx

import (
	"fmt"
	"time"
)

// ErrPreempted is the sentinel for a request superseded by newer input on the
// same conversation. Wrapped with KindPreempted so callers can test either
// with errors.Is or by kind.
var ErrPreempted = fmt.Errorf("request preempted by newer input")

// ErrStopped is the sentinel for a request abandoned by conversation teardown.
var ErrStopped = fmt.Errorf("conversation stopped")

// Preempted returns the canonical preemption error.
func Preempted() *Error {
	return New(ErrPreempted, KindPreempted, "superseded by a newer request")
}

// Stopped returns the canonical teardown error.
func Stopped() *Error {
	return New(ErrStopped, KindStopped, "conversation torn down")
}

// TimeoutError records diagnostics for a request that hit the global ceiling:
// the machine state last observed and how many transitions had happened.
type TimeoutError struct {
	Op          string
	LastState   string
	Transitions uint64
	Elapsed     time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s (last state %s, %d transitions)",
		e.Op, e.Elapsed, e.LastState, e.Transitions)
}

// Timeout wraps a TimeoutError into the errx taxonomy.
func Timeout(op, lastState string, transitions uint64, elapsed time.Duration) *Error {
	return New(
		&TimeoutError{Op: op, LastState: lastState, Transitions: transitions, Elapsed: elapsed},
		KindTimeout,
		"deadline exceeded",
	)
}
