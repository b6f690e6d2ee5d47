// Package browser drives Chrome through Rod for the storefront suite.
//
// A Session owns the Chrome process. Pages are borrowed by page objects
// and actions; nothing outside the test scaffolding closes or replaces
// them. Every Page method is bounded by the caller's context and the
// session's default timeout, and timeouts come back marked as transient
// (see resilient.Transient) so the retry executor can tell them apart from
// real failures.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
)

// Config configures Chrome launch options.
type Config struct {
	Headless          bool          // Run in headless mode (default: true)
	Timeout           time.Duration // Default operation timeout (default: 30s)
	NavigationTimeout time.Duration // Page load timeout (default: 30s)
	SlowMotion        time.Duration // Delay before each input action (default: 0)
	ViewportWidth     int           // default: 1920
	ViewportHeight    int           // default: 1080
	Args              []string      // Chrome flags, "name" or "name=value", leading dashes optional
	Debug             bool          // Log console messages and uncaught page errors
	Logger            *slog.Logger
}

// DefaultConfig returns the desktop configuration the suite runs with.
func DefaultConfig() Config {
	return Config{
		Headless:          true,
		Timeout:           30 * time.Second,
		NavigationTimeout: 30 * time.Second,
		ViewportWidth:     1920,
		ViewportHeight:    1080,
		Args: []string{
			"no-sandbox",
			"disable-dev-shm-usage",
			"disable-extensions",
			"disable-gpu",
		},
	}
}

// Session is a running Chrome instance.
type Session struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	cfg      Config
	log      *slog.Logger
}

// Launch starts Chrome (downloading it on first use) and connects to it.
// Always call Close (via defer) to prevent orphaned Chrome processes.
func Launch(cfg Config) (*Session, error) {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = def.NavigationTimeout
	}
	if cfg.ViewportWidth <= 0 || cfg.ViewportHeight <= 0 {
		cfg.ViewportWidth, cfg.ViewportHeight = def.ViewportWidth, def.ViewportHeight
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	l := launcher.New().Headless(cfg.Headless)
	for _, arg := range cfg.Args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if name == "" {
			continue
		}
		if hasValue {
			l = l.Set(flags.Flag(name), value)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}
	l = l.Set("window-size", fmt.Sprintf("%d,%d", cfg.ViewportWidth, cfg.ViewportHeight))

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch Chrome: %w", err)
	}

	b := rod.New().ControlURL(url)
	if cfg.SlowMotion > 0 {
		b = b.SlowMotion(cfg.SlowMotion)
	}
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to Chrome: %w", err)
	}

	log.Info("browser launched", "headless", cfg.Headless, "viewport", fmt.Sprintf("%dx%d", cfg.ViewportWidth, cfg.ViewportHeight))
	return &Session{browser: b, launcher: l, cfg: cfg, log: log}, nil
}

// NewPage opens a page in a fresh incognito context, so cookies and
// storage never leak between tests sharing a Session. Page.Close disposes
// the context.
func (s *Session) NewPage(ctx context.Context) (*Page, error) {
	incognito, err := s.browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	rp, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = incognito.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	err = rp.Context(ctx).SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             s.cfg.ViewportWidth,
		Height:            s.cfg.ViewportHeight,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		_ = rp.Close()
		_ = incognito.Close()
		return nil, fmt.Errorf("failed to set viewport: %w", err)
	}

	p := &Page{
		page:       rp,
		incognito:  incognito,
		timeout:    s.cfg.Timeout,
		navTimeout: s.cfg.NavigationTimeout,
		log:        s.log,
	}
	if s.cfg.Debug {
		p.watchConsole()
	}
	return p, nil
}

// Contexts returns the number of open incognito browser contexts.
func (s *Session) Contexts() (int, error) {
	res, err := proto.TargetGetBrowserContexts{}.Call(s.browser)
	if err != nil {
		return 0, fmt.Errorf("list browser contexts: %w", err)
	}
	return len(res.BrowserContextIDs), nil
}

// Close cleans up browser resources.
func (s *Session) Close() error {
	if s.browser != nil {
		return s.browser.Close()
	}
	return nil
}
