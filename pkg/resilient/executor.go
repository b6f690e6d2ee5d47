package resilient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/qmuntal/stateless"
	"github.com/sethvargo/go-retry"

	"github.com/thesyncim/shopcheck/pkg/resilient/internal"
)

// DefaultPollInterval is how often a guarded attempt re-checks its
// post-condition after acting.
const DefaultPollInterval = 100 * time.Millisecond

type trigger int

const (
	triggerAttempt trigger = iota
	triggerBackoff
	triggerSucceed
	triggerExhaust
	triggerAbort
)

// Executor runs actions under a Policy. An Executor holds no per-run
// state, so one value can serve a whole test; separate tests should still
// use separate executors when they install observers.
type Executor struct {
	log      *slog.Logger
	clock    internal.Clock
	observe  func(Outcome)
	classify func(error) ErrorKind
	poll     time.Duration
}

// Option is a functional option for configuring an Executor.
type Option func(*Executor)

// WithLogger sets the logger. Failed attempts are logged at Debug,
// exhaustion at Warn.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.log = l
		}
	}
}

// WithClock sets the clock used to time attempts.
func WithClock(c internal.Clock) Option {
	return func(e *Executor) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithObserver registers a callback invoked after every attempt.
func WithObserver(fn func(Outcome)) Option {
	return func(e *Executor) { e.observe = fn }
}

// WithClassifier replaces Classify for this executor.
func WithClassifier(fn func(error) ErrorKind) Option {
	return func(e *Executor) {
		if fn != nil {
			e.classify = fn
		}
	}
}

// WithPollInterval sets how often Ensure re-checks its post-condition.
func WithPollInterval(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.poll = d
		}
	}
}

// New creates an Executor.
func New(opts ...Option) *Executor {
	e := &Executor{
		log:      slog.Default(),
		clock:    internal.MonotonicClock{},
		classify: Classify,
		poll:     DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Do runs action until it succeeds, fails non-transiently, or exhausts
// p.MaxAttempts. See Run.
func (e *Executor) Do(ctx context.Context, p Policy, action Action) error {
	_, err := e.Run(ctx, p, action)
	return err
}

// Run executes action under p and returns the run trace.
//
// Each attempt gets its own p.PerAttemptTimeout deadline; an attempt that
// returns after it, whatever it returns, failed transiently. A transient
// failure is followed by a p.BackoffDelay pause and another attempt; the
// pause ends early if ctx is done. Non-transient errors are returned
// unchanged after the attempt that produced them. When every attempt
// failed transiently the result is a *RetryExhaustedError carrying the
// last error.
func (e *Executor) Run(ctx context.Context, p Policy, action Action) (Report, error) {
	if err := p.Validate(); err != nil {
		return Report{}, fmt.Errorf("invalid retry policy: %w", err)
	}
	if action == nil {
		return Report{}, errors.New("nil action")
	}

	r := newRun(e)
	if err := ctx.Err(); err != nil {
		r.fire(triggerAbort)
		return r.report, fmt.Errorf("retry stopped before first attempt: %w", err)
	}
	start := e.clock.Now()

	var (
		last     error
		lastKind ErrorKind
	)
	err := retry.Do(ctx, r.backoff(p), func(ctx context.Context) error {
		r.fire(triggerAttempt)
		r.report.Attempts++
		n := r.report.Attempts

		attemptStart := e.clock.Now()
		actx, cancel := context.WithTimeout(ctx, p.PerAttemptTimeout)
		err := action(actx)
		ownDeadline := errors.Is(actx.Err(), context.DeadlineExceeded)
		cancel()

		// Anything that ends after the attempt's own deadline is transient,
		// including a late success.
		kind := e.classify(err)
		switch {
		case ctx.Err() != nil:
			if err != nil {
				kind = KindCanceled
			}
		case ownDeadline:
			if err == nil {
				err = Transient(fmt.Errorf("%w (%s)", ErrAttemptTimeout, p.PerAttemptTimeout))
			}
			kind = KindTransient
		}
		last, lastKind = err, kind

		if e.observe != nil {
			e.observe(Outcome{Attempt: n, Err: err, Kind: kind, Elapsed: e.clock.Now().Sub(attemptStart)})
		}
		if err == nil {
			return nil
		}
		e.log.Debug("attempt failed", "attempt", n, "max_attempts", p.MaxAttempts, "kind", kind.String(), "error", err)
		if kind == KindTransient {
			return retry.RetryableError(err)
		}
		return err
	})
	r.report.Elapsed = e.clock.Now().Sub(start)

	switch {
	case err == nil:
		r.fire(triggerSucceed)
		return r.report, nil
	case ctx.Err() != nil:
		r.fire(triggerAbort)
		if last != nil {
			return r.report, fmt.Errorf("retry stopped after %d attempts: %w (last error: %v)", r.report.Attempts, ctx.Err(), last)
		}
		return r.report, fmt.Errorf("retry stopped before first attempt: %w", ctx.Err())
	case lastKind == KindTransient:
		r.fire(triggerExhaust)
		e.log.Warn("retry exhausted", "attempts", r.report.Attempts, "waits", r.report.Waits, "error", last)
		return r.report, &RetryExhaustedError{Attempts: r.report.Attempts, Last: last}
	default:
		r.fire(triggerAbort)
		return r.report, err
	}
}

// Guard describes a verify-then-act step. Every attempt first checks
// Verify and only calls Act when the post-condition is absent, so a retry
// after an attempt whose effect landed late does not repeat the mutation.
type Guard struct {
	// Verify probes the post-condition. It should not block.
	Verify Check
	// Act performs the mutation.
	Act Action
	// Await waits for the post-condition after Act. When nil, Verify is
	// polled until the attempt deadline.
	Await Action
}

// Ensure runs g under p. A post-condition that already holds costs one
// Verify call and no Act calls.
func (e *Executor) Ensure(ctx context.Context, p Policy, g Guard) error {
	if g.Verify == nil || g.Act == nil {
		return errors.New("guard needs both Verify and Act")
	}
	return e.Do(ctx, p, func(ctx context.Context) error {
		ok, err := g.Verify(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if err := g.Act(ctx); err != nil {
			return err
		}
		if g.Await != nil {
			return g.Await(ctx)
		}
		return Until(ctx, e.poll, g.Verify)
	})
}

// Until polls check every interval until it holds or ctx is done. Running
// out of time yields a transient ErrPostconditionUnmet; errors from check
// other than transient ones end the wait immediately.
func Until(ctx context.Context, interval time.Duration, check Check) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	err := retry.Do(ctx, retry.NewConstant(interval), func(ctx context.Context) error {
		ok, err := check(ctx)
		if err != nil {
			if Classify(err) == KindTransient {
				return retry.RetryableError(err)
			}
			return err
		}
		if !ok {
			return retry.RetryableError(ErrPostconditionUnmet)
		}
		return nil
	})
	if err != nil && ctx.Err() != nil {
		return Transient(fmt.Errorf("%w: %w", ErrPostconditionUnmet, ctx.Err()))
	}
	return err
}

var defaultExecutor = New()

// Do runs action with a default executor.
func Do(ctx context.Context, p Policy, action Action) error {
	return defaultExecutor.Do(ctx, p, action)
}

// Ensure runs g with a default executor.
func Ensure(ctx context.Context, p Policy, g Guard) error {
	return defaultExecutor.Ensure(ctx, p, g)
}

// run is the per-call state of Executor.Run.
type run struct {
	e      *Executor
	fsm    *stateless.StateMachine
	report Report
}

func newRun(e *Executor) *run {
	fsm := stateless.NewStateMachine(StateIdle)

	fsm.Configure(StateIdle).
		Permit(triggerAttempt, StateAttempting).
		Permit(triggerAbort, StateAborted)

	fsm.Configure(StateAttempting).
		Permit(triggerBackoff, StateWaitingBackoff).
		Permit(triggerSucceed, StateSucceeded).
		Permit(triggerExhaust, StateExhausted).
		Permit(triggerAbort, StateAborted)

	fsm.Configure(StateWaitingBackoff).
		Permit(triggerAttempt, StateAttempting).
		Permit(triggerAbort, StateAborted)

	fsm.Configure(StateSucceeded)
	fsm.Configure(StateExhausted)
	fsm.Configure(StateAborted)

	return &run{
		e:      e,
		fsm:    fsm,
		report: Report{States: []State{StateIdle}},
	}
}

func (r *run) fire(t trigger) {
	if err := r.fsm.Fire(t); err != nil {
		r.e.log.Error("invalid retry state transition", "trigger", int(t), "error", err)
		return
	}
	r.report.States = append(r.report.States, r.fsm.MustState().(State))
}

// backoff allows p.MaxAttempts-1 constant waits and records each one as
// it is granted.
func (r *run) backoff(p Policy) retry.Backoff {
	var b retry.Backoff
	if p.BackoffDelay > 0 {
		b = retry.NewConstant(p.BackoffDelay)
	} else {
		b = retry.BackoffFunc(func() (time.Duration, bool) { return 0, false })
	}
	b = retry.WithMaxRetries(uint64(p.MaxAttempts-1), b)

	return retry.BackoffFunc(func() (time.Duration, bool) {
		next, stop := b.Next()
		if !stop {
			r.fire(triggerBackoff)
			r.report.Waits++
		}
		return next, stop
	})
}
