package resilient

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrTransient marks errors that are eligible for retry.
	ErrTransient = errors.New("transient failure")

	// ErrPostconditionUnmet is returned by a guarded attempt whose action
	// ran but whose post-condition never appeared.
	ErrPostconditionUnmet = errors.New("post-condition not met")

	// ErrAttemptTimeout is recorded for an attempt that returned success
	// only after its own deadline had passed.
	ErrAttemptTimeout = errors.New("attempt outlived its deadline")
)

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }

func (e *transientError) Unwrap() []error { return []error{e.err, ErrTransient} }

// Transient marks err as retryable. errors.Is(Transient(err), ErrTransient)
// holds and err stays reachable through errors.Is/As. Nil stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTransient) {
		return err
	}
	return &transientError{err: err}
}

// AssertionError is a failed expectation about the application under test.
// It is never retried.
type AssertionError struct {
	Msg string
}

func (e *AssertionError) Error() string { return "assertion failed: " + e.Msg }

// Assertf builds an AssertionError.
func Assertf(format string, args ...any) error {
	return &AssertionError{Msg: fmt.Sprintf(format, args...)}
}

// RetryExhaustedError is returned when every attempt failed transiently.
type RetryExhaustedError struct {
	Attempts int
	// Last is the error of the final attempt.
	Last error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retry exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Last }

// IsExhausted reports whether err is a RetryExhaustedError and returns it.
func IsExhausted(err error) (*RetryExhaustedError, bool) {
	var re *RetryExhaustedError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// Classify maps an attempt error to its kind. Deadline errors are
// transient; cancellation is reported separately; everything else is
// treated as an assertion-class failure. An exhausted inner run is
// terminal and is not retried again by an outer one.
func Classify(err error) ErrorKind {
	var re *RetryExhaustedError
	switch {
	case err == nil:
		return KindNone
	case errors.As(err, &re):
		return KindAssertion
	case errors.Is(err, ErrTransient), errors.Is(err, context.DeadlineExceeded):
		return KindTransient
	case errors.Is(err, context.Canceled):
		return KindCanceled
	default:
		return KindAssertion
	}
}
