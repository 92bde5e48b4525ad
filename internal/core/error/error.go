package errx

import (
	"errors"
	"fmt"
)

// Kind classifies how a failure affects the request that produced it.
type Kind int

const (
	// KindDegradable failures fall back to a default value; the request proceeds.
	KindDegradable Kind = iota
	// KindRequestFatal failures end the current request only; the conversation
	// returns to idle and accepts new input.
	KindRequestFatal
	// KindTimeout marks a deadline expiry, either per-attempt or the global
	// ceiling on a whole request.
	KindTimeout
	// KindPreempted marks a request superseded by newer input on the same
	// conversation before its result was delivered.
	KindPreempted
	// KindStopped marks a request abandoned because its conversation was torn down.
	KindStopped
	// KindNotFound marks a missing record (e.g. redis.Nil).
	KindNotFound
	// KindUnavailable marks an infrastructure failure (e.g. Redis unreachable).
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindDegradable:
		return "degradable"
	case KindRequestFatal:
		return "request_fatal"
	case KindTimeout:
		return "timeout"
	case KindPreempted:
		return "preempted"
	case KindStopped:
		return "stopped"
	case KindNotFound:
		return "not_found"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with a failure kind and a safe message.
type Error struct {
	Err     error
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether the target matches the underlying error.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to Error or the wrapped error in a chain.
func (e *Error) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**Error); ok {
		*t = e
		return true
	}
	return false
}

// New creates a new Error with the provided information.
func New(err error, kind Kind, message string) *Error {
	return &Error{Err: err, Kind: kind, Message: message}
}

// RequestFatal wraps err as a failure that ends the current request only.
func RequestFatal(err error, message string) *Error {
	return New(err, KindRequestFatal, message)
}

// KindOf extracts the Kind from an error chain. Errors outside the errx
// taxonomy are treated as request-fatal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindRequestFatal
}
