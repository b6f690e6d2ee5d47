// Package apiclient is a small JSON client for the storefront's users API.
//
// Responses are returned whatever their status: a 404 is a result the
// caller asserts on, not an error. Only transport failures and 5xx/429
// answers are retried, with exponential backoff.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Response is a decoded API answer.
type Response struct {
	StatusCode int
	OK         bool
	// JSON is the decoded body, or the body as a string when it is not
	// JSON.
	JSON   any
	Body   []byte
	Header http.Header
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode %d response: %w", r.StatusCode, err)
	}
	return nil
}

// Object returns the body as a JSON object, or nil.
func (r *Response) Object() map[string]any {
	m, _ := r.JSON.(map[string]any)
	return m
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds each request (default 10s).
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithMaxRetries sets how many times a failed request is repeated
// (default 2).
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithBackOff replaces the backoff schedule. newBackOff is called once per
// request.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(c *Client) {
		if newBackOff != nil {
			c.newBackOff = newBackOff
		}
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.header.Add(key, value) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// Client talks to one API base URL.
type Client struct {
	base       string
	http       *http.Client
	header     http.Header
	maxRetries int
	newBackOff func() backoff.BackOff
	log        *slog.Logger
}

// New creates a client for baseURL ("https://reqres.in/api").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base:       strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: 10 * time.Second},
		header:     http.Header{},
		maxRetries: 2,
		newBackOff: defaultBackOff,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 10 * time.Second
	b.RandomizationFactor = 0.1
	return b
}

// URL resolves endpoint against the base URL. "users" and "/users" are
// the same endpoint.
func (c *Client) URL(endpoint string) string {
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return c.base + endpoint
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, endpoint string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, endpoint, nil)
}

// Post sends body as JSON.
func (c *Client) Post(ctx context.Context, endpoint string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPost, endpoint, body)
}

// Put sends body as JSON.
func (c *Client) Put(ctx context.Context, endpoint string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPut, endpoint, body)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, endpoint string) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, endpoint, nil)
}

// retryableStatus is returned inside the retry loop for 5xx and 429.
type retryableStatus struct{ code int }

func (e *retryableStatus) Error() string { return fmt.Sprintf("server answered %d", e.code) }

// Do sends one request, retrying transport failures and retryable
// statuses. When retries run out on a retryable status, the last response
// is returned without error.
func (c *Client) Do(ctx context.Context, method, endpoint string, body any) (*Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s body: %w", method, endpoint, err)
		}
	}
	url := c.URL(endpoint)

	var (
		last    *Response
		attempt int
	)
	op := func() error {
		attempt++
		resp, err := c.send(ctx, method, url, payload)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			c.log.Debug("api request failed", "method", method, "url", url, "attempt", attempt, "error", err)
			return err
		}
		last = resp
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			c.log.Debug("api request retryable status", "method", method, "url", url, "attempt", attempt, "status", resp.StatusCode)
			return &retryableStatus{code: resp.StatusCode}
		}
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(c.maxRetries)), ctx)
	err := backoff.Retry(op, b)
	var rs *retryableStatus
	switch {
	case err == nil:
		return last, nil
	case errors.As(err, &rs):
		return last, nil
	default:
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
}

func (c *Client) send(ctx context.Context, method, url string, payload []byte) (*Response, error) {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	resp := &Response{
		StatusCode: res.StatusCode,
		OK:         res.StatusCode < 400,
		Body:       data,
		Header:     res.Header,
	}
	if len(data) > 0 {
		var v any
		if json.Unmarshal(data, &v) == nil {
			resp.JSON = v
		} else {
			resp.JSON = string(data)
		}
	}
	return resp, nil
}
