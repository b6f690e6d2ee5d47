// Package resilient runs flaky UI interactions inside a bounded retry
// envelope. Transient failures (an element that has not rendered yet, a
// state that has not settled) are retried with a constant backoff;
// anything else propagates on first occurrence.
package resilient

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Action performs one UI step. It must honor ctx: the executor bounds
// every attempt with its own deadline and relies on the action returning
// once that deadline passes.
type Action func(ctx context.Context) error

// Check reports whether a post-condition currently holds. It should probe
// rather than wait.
type Check func(ctx context.Context) (bool, error)

// Policy bounds a retried action. Policies are plain values, fixed per
// call site.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int `yaml:"max_attempts"`

	// PerAttemptTimeout time-boxes each attempt independently.
	PerAttemptTimeout time.Duration `yaml:"per_attempt_timeout"`

	// BackoffDelay is the fixed pause between a transient failure and the
	// next attempt.
	BackoffDelay time.Duration `yaml:"backoff_delay"`
}

// DefaultPolicy returns the policy used by most call sites:
// 3 attempts, 5s per attempt, 1s between attempts.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:       3,
		PerAttemptTimeout: 5 * time.Second,
		BackoffDelay:      time.Second,
	}
}

// Validate reports whether p can drive an executor run.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be >= 1, got %d", p.MaxAttempts)
	}
	if p.PerAttemptTimeout <= 0 {
		return fmt.Errorf("per_attempt_timeout must be positive, got %v", p.PerAttemptTimeout)
	}
	if p.BackoffDelay < 0 {
		return errors.New("backoff_delay must not be negative")
	}
	return nil
}

// ErrorKind classifies the error produced by an attempt.
type ErrorKind int

const (
	// KindNone means the attempt succeeded.
	KindNone ErrorKind = iota
	// KindTransient is a timing failure that more wall-clock time may fix.
	KindTransient
	// KindAssertion is a logical failure. Retrying cannot change it.
	KindAssertion
	// KindCanceled means the caller's context ended the run.
	KindCanceled
)

// String returns a string representation of the ErrorKind.
func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "None"
	case KindTransient:
		return "Transient"
	case KindAssertion:
		return "Assertion"
	case KindCanceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}

// State is a state of a single executor run.
type State int

const (
	StateIdle State = iota
	StateAttempting
	StateWaitingBackoff
	StateSucceeded
	StateExhausted
	// StateAborted ends runs stopped by a non-transient error or by
	// cancellation of the caller's context.
	StateAborted
)

// String returns a string representation of the State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAttempting:
		return "Attempting"
	case StateWaitingBackoff:
		return "WaitingBackoff"
	case StateSucceeded:
		return "Succeeded"
	case StateExhausted:
		return "Exhausted"
	case StateAborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateExhausted || s == StateAborted
}

// Outcome describes one finished attempt.
type Outcome struct {
	Attempt int
	Err     error
	Kind    ErrorKind
	Elapsed time.Duration
}

// Report is the trace of one executor run.
type Report struct {
	// Attempts is the number of times the action was invoked.
	Attempts int
	// Waits is the number of backoff pauses taken.
	Waits int
	// States lists every state entered, starting with StateIdle.
	States []State
	// Elapsed is the wall time of the run as seen by the executor clock.
	Elapsed time.Duration
}

// Final returns the last state of the run.
func (r Report) Final() State {
	if len(r.States) == 0 {
		return StateIdle
	}
	return r.States[len(r.States)-1]
}
