// Package shop provides an importable Swag Labs storefront for the suite.
// This allows tests to programmatically start/stop a target site without
// depending on the public demo.
package shop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

// Config holds server configuration options.
type Config struct {
	Addr         string        // Listen address (e.g., ":8080" or ":0" for random port)
	ReadTimeout  time.Duration // HTTP read timeout
	WriteTimeout time.Duration // HTTP write timeout

	// RenderDelay postpones every client-side DOM update that follows a
	// cart change or a sort, like a slow single-page app.
	RenderDelay time.Duration
	// GlitchDelay slows down logins of performance_glitch_user.
	GlitchDelay time.Duration

	Logger *slog.Logger
}

// DefaultConfig returns a configuration suitable for testing.
// Uses ":0" to bind to a random available port.
func DefaultConfig() Config {
	return Config{
		Addr:         ":0",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		RenderDelay:  300 * time.Millisecond,
		GlitchDelay:  2 * time.Second,
	}
}

// Server is an importable HTTP server for the storefront.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	addr       string
	mu         sync.Mutex
	running    bool
	stopped    bool

	store *store
	log   *slog.Logger
}

// NewServer creates a new server with the given configuration.
// The server is not started until Start() is called.
func NewServer(cfg Config) (*Server, error) {
	if cfg.RenderDelay < 0 || cfg.GlitchDelay < 0 {
		return nil, errors.New("shop: delays must not be negative")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		store: newStore(),
		log:   log,
	}
	h := &handler{cfg: cfg, store: s.store, log: log}

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      h.routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s, nil
}

// Handler returns the HTTP handler, for use with httptest.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// ErrStopped is returned by Start after Shutdown; a Server runs once.
var ErrStopped = errors.New("storefront was shut down")

// Start begins listening and serving HTTP requests.
// Returns the actual address the server is listening on (useful when port is 0).
// This method is non-blocking - the server runs in a goroutine.
func (s *Server) Start() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return s.addr, nil
	}
	if s.stopped {
		return "", ErrStopped
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	s.listener = ln
	s.addr = ln.Addr().String()
	s.running = true

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("storefront stopped", "error", err)
		}
	}()

	s.log.Info("storefront listening", "addr", s.addr)
	return s.addr, nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.running = false
	s.stopped = true
	s.addr = ""
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the address the server is listening on.
// Returns empty string if server is not running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// URL returns the storefront base URL ("http://127.0.0.1:port/"), or an
// empty string if the server is not running. Wildcard listen addresses
// are reported as loopback.
func (s *Server) URL() string {
	addr := s.Addr()
	if addr == "" {
		return ""
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return ""
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/"
}

// Orders returns the ids of all completed orders.
func (s *Server) Orders() []string { return s.store.orderIDs() }
