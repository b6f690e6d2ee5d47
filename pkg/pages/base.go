// Package pages holds the page objects for the Swag Labs storefront.
//
// Most interactions go straight to the Driver. The few that are known to
// flake (login submission, add/remove cart, sort selection) run through a
// resilient.Executor as verify-then-act guards: each attempt checks the
// post-condition first and only touches the page when it is absent.
package pages

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/thesyncim/shopcheck/pkg/browser"
	"github.com/thesyncim/shopcheck/pkg/resilient"
)

// Title is the document title of every storefront page.
const Title = "Swag Labs"

// Policies holds the retry policy of each flaky call site.
type Policies struct {
	Default   resilient.Policy
	Login     resilient.Policy
	AddToCart resilient.Policy
	Sort      resilient.Policy
}

// DefaultPolicies returns the policies the suite ships with.
func DefaultPolicies() Policies {
	return Policies{
		Default:   resilient.DefaultPolicy(),
		Login:     resilient.Policy{MaxAttempts: 2, PerAttemptTimeout: 5 * time.Second, BackoffDelay: time.Second},
		AddToCart: resilient.Policy{MaxAttempts: 3, PerAttemptTimeout: 3 * time.Second, BackoffDelay: time.Second},
		Sort:      resilient.Policy{MaxAttempts: 3, PerAttemptTimeout: 2 * time.Second, BackoffDelay: time.Second},
	}
}

// Option is a functional option for configuring a Base.
type Option func(*Base)

// WithPolicies replaces the retry policies.
func WithPolicies(p Policies) Option {
	return func(b *Base) { b.policies = p }
}

// WithExecutor sets the executor used for retried interactions.
func WithExecutor(e *resilient.Executor) Option {
	return func(b *Base) {
		if e != nil {
			b.exec = e
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Base) {
		if l != nil {
			b.log = l
		}
	}
}

// WithProbeTimeout sets how long visibility probes and verifications
// wait before giving up (default 5s).
func WithProbeTimeout(d time.Duration) Option {
	return func(b *Base) {
		if d > 0 {
			b.probe = d
		}
	}
}

// Base is shared by all page objects of one test. It borrows the Driver
// and never closes it.
type Base struct {
	d        Driver
	baseURL  string
	exec     *resilient.Executor
	policies Policies
	probe    time.Duration
	log      *slog.Logger
}

// NewBase creates a Base for the storefront at baseURL.
func NewBase(d Driver, baseURL string, opts ...Option) *Base {
	b := &Base{
		d:        d,
		baseURL:  strings.TrimRight(baseURL, "/") + "/",
		policies: DefaultPolicies(),
		probe:    5 * time.Second,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.exec == nil {
		b.exec = resilient.New(resilient.WithLogger(b.log))
	}
	return b
}

// Driver returns the borrowed driver.
func (b *Base) Driver() Driver { return b.d }

// URLFor joins path onto the storefront base URL.
func (b *Base) URLFor(path string) string {
	return b.baseURL + strings.TrimLeft(path, "/")
}

// NavigateTo opens path relative to the base URL.
func (b *Base) NavigateTo(ctx context.Context, path string) error {
	url := b.URLFor(path)
	b.log.Info("navigating", "url", url)
	return b.d.Navigate(ctx, url)
}

// CurrentURL returns the current page URL.
func (b *Base) CurrentURL(ctx context.Context) (string, error) {
	return b.d.URL(ctx)
}

// VerifyTitle asserts that the document title contains expected.
func (b *Base) VerifyTitle(ctx context.Context, expected string) error {
	actual, err := b.d.Title(ctx)
	if err != nil {
		return err
	}
	if !strings.Contains(actual, expected) {
		return resilient.Assertf("expected title %q not found in %q", expected, actual)
	}
	return nil
}

// VerifyURL asserts that the current URL contains expected.
func (b *Base) VerifyURL(ctx context.Context, expected string) error {
	actual, err := b.d.URL(ctx)
	if err != nil {
		return err
	}
	if !strings.Contains(actual, expected) {
		return resilient.Assertf("expected URL %q not found in %q", expected, actual)
	}
	return nil
}

// IsVisible waits up to timeout for selector to become visible.
func (b *Base) IsVisible(ctx context.Context, selector string, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return b.d.WaitFor(ctx, selector, browser.StateVisible) == nil
}

// Screenshot captures the full page.
func (b *Base) Screenshot(ctx context.Context) ([]byte, error) {
	return b.d.Screenshot(ctx)
}

func (b *Base) click(ctx context.Context, selector string) error {
	b.log.Debug("clicking element", "selector", selector)
	if err := b.d.WaitFor(ctx, selector, browser.StateVisible); err != nil {
		return err
	}
	return b.d.Click(ctx, selector)
}

func (b *Base) fill(ctx context.Context, selector, value string) error {
	b.log.Debug("filling input", "selector", selector)
	if err := b.d.WaitFor(ctx, selector, browser.StateVisible); err != nil {
		return err
	}
	return b.d.Fill(ctx, selector, value)
}

func (b *Base) text(ctx context.Context, selector string) (string, error) {
	if err := b.d.WaitFor(ctx, selector, browser.StateVisible); err != nil {
		return "", err
	}
	return b.d.Text(ctx, selector)
}

// clickWithRetry clicks selector until done holds.
func (b *Base) clickWithRetry(ctx context.Context, p resilient.Policy, selector string, done resilient.Check) error {
	return b.exec.Ensure(ctx, p, resilient.Guard{
		Verify: done,
		Act:    func(ctx context.Context) error { return b.click(ctx, selector) },
	})
}

// fillWithRetry fills selector until it holds value.
func (b *Base) fillWithRetry(ctx context.Context, p resilient.Policy, selector, value string) error {
	return b.exec.Ensure(ctx, p, resilient.Guard{
		Verify: func(ctx context.Context) (bool, error) {
			v, err := b.d.InputValue(ctx, selector)
			return v == value, err
		},
		Act: func(ctx context.Context) error { return b.fill(ctx, selector, value) },
	})
}

// selectWithRetry selects opt in selector until done holds.
func (b *Base) selectWithRetry(ctx context.Context, p resilient.Policy, selector string, opt browser.Option, done resilient.Check) error {
	return b.exec.Ensure(ctx, p, resilient.Guard{
		Verify: done,
		Act: func(ctx context.Context) error {
			if err := b.d.WaitFor(ctx, selector, browser.StateVisible); err != nil {
				return err
			}
			return b.d.Select(ctx, selector, opt)
		},
	})
}

// expect polls check for up to the probe timeout and turns a check that
// never held into an AssertionError built from format and args.
func (b *Base) expect(ctx context.Context, check resilient.Check, format string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, b.probe)
	defer cancel()
	err := resilient.Until(ctx, 50*time.Millisecond, check)
	if errors.Is(err, resilient.ErrPostconditionUnmet) {
		return resilient.Assertf(format, args...)
	}
	return err
}

// parsePrice parses "$29.99" or "29.99".
func parsePrice(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimPrefix(strings.TrimSpace(s), "$"), 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", s, err)
	}
	return v, nil
}
