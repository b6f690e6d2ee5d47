package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"

	"github.com/thesyncim/shopcheck/pkg/resilient"
)

// ErrNotFound is returned by non-waiting probes when no element matches.
var ErrNotFound = errors.New("element not found")

// State is an element state WaitFor can wait for.
type State int

const (
	StateVisible State = iota
	StateHidden
	StateAttached
	StateEnabled
)

func (s State) String() string {
	switch s {
	case StateVisible:
		return "visible"
	case StateHidden:
		return "hidden"
	case StateAttached:
		return "attached"
	case StateEnabled:
		return "enabled"
	default:
		return "unknown"
	}
}

// SelectBy says how an Option picks a <select> entry.
type SelectBy int

const (
	ByValue SelectBy = iota
	ByLabel
	ByIndex
)

// Option identifies one entry of a <select> element.
type Option struct {
	By    SelectBy
	Value string
	Index int
}

// Value selects the option whose value attribute equals v.
func Value(v string) Option { return Option{By: ByValue, Value: v} }

// Label selects the option whose visible text matches label.
func Label(label string) Option { return Option{By: ByLabel, Value: label} }

// Index selects the i-th option, counting from zero.
func Index(i int) Option { return Option{By: ByIndex, Index: i} }

var keys = map[string]input.Key{
	"Enter":     input.Enter,
	"Tab":       input.Tab,
	"Escape":    input.Escape,
	"Backspace": input.Backspace,
	"Space":     input.Space,
}

// Page is one browser tab. It is borrowed by page objects; only the code
// that opened it closes it.
type Page struct {
	page       *rod.Page
	incognito  *rod.Browser // browser context owned by this page
	timeout    time.Duration
	navTimeout time.Duration
	log        *slog.Logger

	closeOnce    sync.Once
	closeErr     error
	stopWatching context.CancelFunc
}

// bound returns the rod page tied to ctx, capped at d.
func (p *Page) bound(ctx context.Context, d time.Duration) (*rod.Page, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, d)
	return p.page.Context(ctx), cancel
}

// classify wraps err with op and marks timing failures transient.
func classify(op, target string, err error) error {
	if err == nil {
		return nil
	}
	err = fmt.Errorf("%s %s: %w", op, target, err)

	var (
		notFound  *rod.ElementNotFoundError
		covered   *rod.CoveredError
		invisible *rod.InvisibleShapeError
		notReady  *rod.NotInteractableError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &notFound),
		errors.As(err, &covered),
		errors.As(err, &invisible),
		errors.As(err, &notReady):
		return resilient.Transient(err)
	}
	return err
}

// Navigate loads url and waits for the load event.
func (p *Page) Navigate(ctx context.Context, url string) error {
	rp, cancel := p.bound(ctx, p.navTimeout)
	defer cancel()
	if err := rp.Navigate(url); err != nil {
		return classify("navigate", url, err)
	}
	return classify("navigate", url, rp.WaitLoad())
}

// URL returns the current page URL.
func (p *Page) URL(ctx context.Context) (string, error) {
	rp, cancel := p.bound(ctx, p.timeout)
	defer cancel()
	info, err := rp.Info()
	if err != nil {
		return "", classify("read", "url", err)
	}
	return info.URL, nil
}

// Title returns the document title.
func (p *Page) Title(ctx context.Context) (string, error) {
	rp, cancel := p.bound(ctx, p.timeout)
	defer cancel()
	info, err := rp.Info()
	if err != nil {
		return "", classify("read", "title", err)
	}
	return info.Title, nil
}

// WaitFor blocks until selector reaches state or ctx (capped at the
// session timeout) expires.
func (p *Page) WaitFor(ctx context.Context, selector string, state State) error {
	rp, cancel := p.bound(ctx, p.timeout)
	defer cancel()

	op := "wait " + state.String()
	switch state {
	case StateHidden:
		err := rp.Wait(rod.Eval(`(s) => {
			const el = document.querySelector(s);
			return !el || !(el.offsetWidth || el.offsetHeight || el.getClientRects().length);
		}`, selector))
		return classify(op, selector, err)
	case StateAttached:
		_, err := rp.Element(selector)
		return classify(op, selector, err)
	case StateVisible, StateEnabled:
		el, err := rp.Element(selector)
		if err != nil {
			return classify(op, selector, err)
		}
		if state == StateVisible {
			return classify(op, selector, el.WaitVisible())
		}
		return classify(op, selector, el.WaitEnabled())
	default:
		return fmt.Errorf("wait %s: unknown state %d", selector, state)
	}
}

// Click waits for selector to become interactable and clicks it.
func (p *Page) Click(ctx context.Context, selector string) error {
	rp, cancel := p.bound(ctx, p.timeout)
	defer cancel()
	el, err := rp.Element(selector)
	if err != nil {
		return classify("click", selector, err)
	}
	return classify("click", selector, el.Click(proto.InputMouseButtonLeft, 1))
}

// ClickText clicks the first element matching selector whose text
// contains text.
func (p *Page) ClickText(ctx context.Context, selector, text string) error {
	rp, cancel := p.bound(ctx, p.timeout)
	defer cancel()
	target := fmt.Sprintf("%s:has-text(%q)", selector, text)
	el, err := rp.ElementR(selector, regexp.QuoteMeta(text))
	if err != nil {
		return classify("click", target, err)
	}
	return classify("click", target, el.Click(proto.InputMouseButtonLeft, 1))
}

// Fill clears the input matching selector and types value.
func (p *Page) Fill(ctx context.Context, selector, value string) error {
	rp, cancel := p.bound(ctx, p.timeout)
	defer cancel()
	el, err := rp.Element(selector)
	if err != nil {
		return classify("fill", selector, err)
	}
	if err := el.WaitVisible(); err != nil {
		return classify("fill", selector, err)
	}
	_, err = el.Eval(`function () {
		this.value = '';
		this.dispatchEvent(new Event('input', { bubbles: true }));
	}`)
	if err != nil {
		return classify("fill", selector, err)
	}
	if value == "" {
		return nil
	}
	return classify("fill", selector, el.Input(value))
}

// Select picks opt in the <select> matching selector and fires its
// input and change events.
func (p *Page) Select(ctx context.Context, selector string, opt Option) error {
	rp, cancel := p.bound(ctx, p.timeout)
	defer cancel()
	el, err := rp.Element(selector)
	if err != nil {
		return classify("select", selector, err)
	}

	switch opt.By {
	case ByValue:
		err = el.Select([]string{fmt.Sprintf("option[value=%q]", opt.Value)}, true, rod.SelectorTypeCSSSector)
	case ByLabel:
		err = el.Select([]string{opt.Value}, true, rod.SelectorTypeText)
	case ByIndex:
		if opt.Index < 0 {
			return fmt.Errorf("select %s: negative option index %d", selector, opt.Index)
		}
		res, evalErr := el.Eval(`function (i) {
			if (i >= this.options.length) return false;
			this.selectedIndex = i;
			this.dispatchEvent(new Event('input', { bubbles: true }));
			this.dispatchEvent(new Event('change', { bubbles: true }));
			return true;
		}`, opt.Index)
		if evalErr != nil {
			return classify("select", selector, evalErr)
		}
		if !res.Value.Bool() {
			return fmt.Errorf("select %s: option index %d out of range", selector, opt.Index)
		}
	default:
		return fmt.Errorf("select %s: unknown option kind %d", selector, opt.By)
	}
	return classify("select", selector, err)
}

// Press sends a named key ("Enter", "Tab", "Escape", "Backspace",
// "Space") to the element matching selector.
func (p *Page) Press(ctx context.Context, selector, key string) error {
	k, ok := keys[key]
	if !ok {
		return fmt.Errorf("press %s: unsupported key %q", selector, key)
	}
	rp, cancel := p.bound(ctx, p.timeout)
	defer cancel()
	el, err := rp.Element(selector)
	if err != nil {
		return classify("press", selector, err)
	}
	return classify("press", selector, el.Type(k))
}

// Text returns the rendered text of the first element matching selector.
func (p *Page) Text(ctx context.Context, selector string) (string, error) {
	rp, cancel := p.bound(ctx, p.timeout)
	defer cancel()
	el, err := rp.Element(selector)
	if err != nil {
		return "", classify("text", selector, err)
	}
	s, err := el.Text()
	if err != nil {
		return "", classify("text", selector, err)
	}
	return strings.TrimSpace(s), nil
}

// Attribute returns an attribute of the first element matching selector.
// The boolean is false when the attribute is absent.
func (p *Page) Attribute(ctx context.Context, selector, name string) (string, bool, error) {
	rp, cancel := p.bound(ctx, p.timeout)
	defer cancel()
	el, err := rp.Element(selector)
	if err != nil {
		return "", false, classify("attribute", selector, err)
	}
	v, err := el.Attribute(name)
	if err != nil {
		return "", false, classify("attribute", selector, err)
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

// InputValue returns the current value property of a form control.
func (p *Page) InputValue(ctx context.Context, selector string) (string, error) {
	rp, cancel := p.bound(ctx, p.timeout)
	defer cancel()
	el, err := rp.Element(selector)
	if err != nil {
		return "", classify("value", selector, err)
	}
	v, err := el.Property("value")
	if err != nil {
		return "", classify("value", selector, err)
	}
	return v.Str(), nil
}

// Count returns how many elements currently match selector. It does not
// wait.
func (p *Page) Count(ctx context.Context, selector string) (int, error) {
	rp, cancel := p.bound(ctx, p.timeout)
	defer cancel()
	els, err := rp.Elements(selector)
	if err != nil {
		return 0, classify("count", selector, err)
	}
	return len(els), nil
}

// Texts returns the trimmed text of every element matching selector, in
// document order. It does not wait.
func (p *Page) Texts(ctx context.Context, selector string) ([]string, error) {
	rp, cancel := p.bound(ctx, p.timeout)
	defer cancel()
	els, err := rp.Elements(selector)
	if err != nil {
		return nil, classify("texts", selector, err)
	}
	out := make([]string, 0, len(els))
	for _, el := range els {
		s, err := el.Text()
		if err != nil {
			return nil, classify("texts", selector, err)
		}
		out = append(out, strings.TrimSpace(s))
	}
	return out, nil
}

// Visible reports whether an element matching selector exists and is
// visible right now.
func (p *Page) Visible(ctx context.Context, selector string) (bool, error) {
	rp, cancel := p.bound(ctx, p.timeout)
	defer cancel()
	has, el, err := rp.Has(selector)
	if err != nil {
		return false, classify("visible", selector, err)
	}
	if !has {
		return false, nil
	}
	v, err := el.Visible()
	if err != nil {
		return false, classify("visible", selector, err)
	}
	return v, nil
}

// Enabled reports whether the element matching selector is enabled.
// A missing element yields ErrNotFound.
func (p *Page) Enabled(ctx context.Context, selector string) (bool, error) {
	rp, cancel := p.bound(ctx, p.timeout)
	defer cancel()
	has, el, err := rp.Has(selector)
	if err != nil {
		return false, classify("enabled", selector, err)
	}
	if !has {
		return false, fmt.Errorf("enabled %s: %w", selector, ErrNotFound)
	}
	disabled, err := el.Disabled()
	if err != nil {
		return false, classify("enabled", selector, err)
	}
	return !disabled, nil
}

// WaitURLChange blocks until the page URL differs from from.
func (p *Page) WaitURLChange(ctx context.Context, from string) error {
	rp, cancel := p.bound(ctx, p.navTimeout)
	defer cancel()
	return classify("wait url change from", from, rp.Wait(rod.Eval(`(u) => location.href !== u`, from)))
}

// WaitStable waits until the DOM has not changed for d.
func (p *Page) WaitStable(ctx context.Context, d time.Duration) error {
	rp, cancel := p.bound(ctx, p.timeout)
	defer cancel()
	return classify("wait", "stable", rp.WaitStable(d))
}

// Screenshot captures the full page as PNG.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	rp, cancel := p.bound(ctx, p.timeout)
	defer cancel()
	img, err := rp.Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, classify("screenshot", "page", err)
	}
	return img, nil
}

// Close stops the console watcher, closes the tab and disposes the
// page's browser context. Later calls return the first result.
func (p *Page) Close() error {
	p.closeOnce.Do(func() {
		if p.stopWatching != nil {
			p.stopWatching()
		}
		var errs []error
		if p.page != nil {
			if err := p.page.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close tab: %w", err))
			}
		}
		if p.incognito != nil {
			if err := p.incognito.Close(); err != nil {
				errs = append(errs, fmt.Errorf("dispose browser context: %w", err))
			}
		}
		p.closeErr = errors.Join(errs...)
	})
	return p.closeErr
}

func (p *Page) watchConsole() {
	ctx, cancel := context.WithCancel(context.Background())
	p.stopWatching = cancel
	go p.page.Context(ctx).EachEvent(func(e *proto.RuntimeConsoleAPICalled) {
		args := make([]string, 0, len(e.Args))
		for _, a := range e.Args {
			args = append(args, a.Value.String())
		}
		p.log.Debug("browser console", "type", string(e.Type), "text", strings.Join(args, " "))
	}, func(e *proto.RuntimeExceptionThrown) {
		if e.ExceptionDetails != nil {
			p.log.Warn("page error", "error", e.ExceptionDetails.Text)
		}
	})()
}
