package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/thesyncim/shopcheck/pkg/apiclient"
	"github.com/thesyncim/shopcheck/pkg/apispec"
	"github.com/thesyncim/shopcheck/pkg/config"
	"github.com/thesyncim/shopcheck/pkg/fixtures"
)

type apiCheck struct {
	Name       string `json:"name"`
	Status     int    `json:"status,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

type apiSummary struct {
	Success   bool       `json:"success"`
	BaseURL   string     `json:"base_url"`
	Checks    []apiCheck `json:"checks"`
	ElapsedMS int64      `json:"elapsed_ms"`
}

// checkList collects results from concurrent checks.
type checkList struct {
	mu     sync.Mutex
	checks []apiCheck
}

func (l *checkList) run(ctx context.Context, name string, fn func(ctx context.Context) (int, error)) error {
	start := time.Now()
	status, err := fn(ctx)
	c := apiCheck{Name: name, Status: status, DurationMS: time.Since(start).Milliseconds()}
	if err != nil {
		c.Error = err.Error()
	}
	l.mu.Lock()
	l.checks = append(l.checks, c)
	l.mu.Unlock()
	return err
}

func expect(resp *apiclient.Response, status int, schema string) (int, error) {
	if resp.StatusCode != status {
		return resp.StatusCode, fmt.Errorf("status %d, want %d", resp.StatusCode, status)
	}
	if schema == "" {
		return resp.StatusCode, nil
	}
	return resp.StatusCode, apispec.ValidateJSON(schema, resp.Body)
}

// runAPIChecks lists the user pages concurrently, then walks one user
// through create, update and delete. List failures do not stop the
// round trip; every check is reported.
func runAPIChecks(ctx context.Context, c *apiclient.Client, pageCount, workers int) apiSummary {
	var list checkList
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for page := 1; page <= pageCount; page++ {
		g.Go(func() error {
			_ = list.run(gctx, fmt.Sprintf("list users page %d", page), func(ctx context.Context) (int, error) {
				resp, err := c.Get(ctx, fmt.Sprintf("/users?page=%d", page))
				if err != nil {
					return 0, err
				}
				return expect(resp, http.StatusOK, apispec.SchemaUserList)
			})
			return nil
		})
	}
	_ = g.Wait()

	profile := fixtures.FakeUser()
	var id string
	round := []struct {
		name string
		fn   func(ctx context.Context) (int, error)
	}{
		{"get user 2", func(ctx context.Context) (int, error) {
			resp, err := c.Get(ctx, "/users/2")
			if err != nil {
				return 0, err
			}
			return expect(resp, http.StatusOK, apispec.SchemaSingleUser)
		}},
		{"get missing user", func(ctx context.Context) (int, error) {
			resp, err := c.Get(ctx, "/users/23")
			if err != nil {
				return 0, err
			}
			return expect(resp, http.StatusNotFound, "")
		}},
		{"create user", func(ctx context.Context) (int, error) {
			resp, err := c.Post(ctx, "/users", map[string]string{
				"name": profile.FirstName + " " + profile.LastName,
				"job":  profile.Job,
			})
			if err != nil {
				return 0, err
			}
			status, err := expect(resp, http.StatusCreated, apispec.SchemaCreated)
			if err == nil {
				id, _ = resp.Object()["id"].(string)
			}
			return status, err
		}},
		{"update user", func(ctx context.Context) (int, error) {
			if id == "" {
				id = "2"
			}
			resp, err := c.Put(ctx, "/users/"+id, map[string]string{"job": "manager"})
			if err != nil {
				return 0, err
			}
			return expect(resp, http.StatusOK, apispec.SchemaUpdated)
		}},
		{"delete user", func(ctx context.Context) (int, error) {
			resp, err := c.Delete(ctx, "/users/"+id)
			if err != nil {
				return 0, err
			}
			return expect(resp, http.StatusNoContent, "")
		}},
	}
	for _, step := range round {
		_ = list.run(ctx, step.name, step.fn)
	}

	sum := apiSummary{Success: true, Checks: list.checks, ElapsedMS: time.Since(start).Milliseconds()}
	for _, c := range sum.Checks {
		if c.Error != "" {
			sum.Success = false
		}
	}
	return sum
}

func newAPICmd(a *app) *cobra.Command {
	var (
		apiURL string
		pages  int
	)

	cmd := &cobra.Command{
		Use:   "api",
		Short: "Check the users API against its OpenAPI document",
		RunE: func(cmd *cobra.Command, args []string) error {
			if pages < 1 {
				return fmt.Errorf("--pages must be >= 1, got %d", pages)
			}
			base, stop, err := a.apiTarget(apiURL)
			if err != nil {
				return err
			}
			defer stop()

			c := apiclient.New(base,
				apiclient.WithTimeout(a.cfg.APITimeout),
				apiclient.WithMaxRetries(a.cfg.MaxRetries),
				apiclient.WithLogger(a.log),
			)
			sum := runAPIChecks(cmd.Context(), c, pages, a.cfg.ParallelWorkers)
			sum.BaseURL = base

			if err := printJSON(a.out, sum); err != nil {
				return err
			}
			if !sum.Success {
				return fmt.Errorf("%w: api checks", errReported)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&apiURL, "api-url", "", "API base URL (default: $API_BASE_URL, or the local storefront in the local environment)")
	cmd.Flags().IntVar(&pages, "pages", 2, "Number of user pages to list")
	return cmd
}

// apiTarget resolves the API base URL. The local environment talks to the
// bundled storefront unless an API URL was configured.
func (a *app) apiTarget(flag string) (string, func(), error) {
	if flag != "" {
		return flag, func() {}, nil
	}
	if a.cfg.BaseURL() != "" || a.cfg.APIBaseURL != config.Default().APIBaseURL {
		return a.cfg.APIBaseURL, func() {}, nil
	}
	url, stop, err := a.localShop()
	if err != nil {
		return "", nil, err
	}
	return strings.TrimSuffix(url, "/") + "/api", stop, nil
}
