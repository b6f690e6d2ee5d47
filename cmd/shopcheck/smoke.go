package main

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/thesyncim/shopcheck/pkg/artifacts"
	"github.com/thesyncim/shopcheck/pkg/browser"
	"github.com/thesyncim/shopcheck/pkg/fixtures"
	"github.com/thesyncim/shopcheck/pkg/pages"
	"github.com/thesyncim/shopcheck/pkg/resilient"
	"github.com/thesyncim/shopcheck/pkg/steps"
)

type stepResult struct {
	Name       string `json:"name"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
	Kind       string `json:"kind,omitempty"`
}

type smokeSummary struct {
	Success    bool         `json:"success"`
	BaseURL    string       `json:"base_url"`
	User       string       `json:"user"`
	Products   []string     `json:"products"`
	Steps      []stepResult `json:"steps"`
	Screenshot string       `json:"screenshot,omitempty"`
	ElapsedMS  int64        `json:"elapsed_ms"`
}

type journeyStep struct {
	name string
	run  func(ctx context.Context) error
}

// runJourney logs in, fills the cart, sorts, checks out and stops at the
// first failing step.
func runJourney(ctx context.Context, s *steps.Shopper, user fixtures.User, products []fixtures.Product, info fixtures.CheckoutInfo) smokeSummary {
	names := make([]string, len(products))
	var want float64
	for i, p := range products {
		names[i] = p.Name
		want += p.Price
	}

	plan := []journeyStep{
		{"open login page", s.GivenOnLoginPage},
		{"log in", func(ctx context.Context) error {
			if err := s.WhenLoginWith(ctx, user.Username, user.Password); err != nil {
				return err
			}
			return s.ThenRedirectedToInventory(ctx)
		}},
		{"add products", func(ctx context.Context) error {
			if err := s.WhenAddProducts(ctx, names...); err != nil {
				return err
			}
			return s.ThenCartBadge(ctx, len(names))
		}},
		{"sort by price", func(ctx context.Context) error {
			if err := s.WhenSortBy(ctx, "Price (low to high)"); err != nil {
				return err
			}
			return s.ThenSorted(ctx, "Price (low to high)")
		}},
		{"open cart", func(ctx context.Context) error {
			if err := s.WhenOpenCart(ctx); err != nil {
				return err
			}
			if err := s.ThenOnCartPage(ctx); err != nil {
				return err
			}
			return s.ThenCartHasItems(ctx, len(names))
		}},
		{"check out", func(ctx context.Context) error {
			if err := s.Cart.Checkout(ctx); err != nil {
				return err
			}
			if err := s.Checkout.FillInformation(ctx, info.FirstName, info.LastName, info.PostalCode); err != nil {
				return err
			}
			if err := s.Checkout.Continue(ctx); err != nil {
				return err
			}
			total, err := s.Checkout.ItemTotal(ctx)
			if err != nil {
				return err
			}
			if math.Abs(total-want) > 0.005 {
				return resilient.Assertf("item total $%.2f, want $%.2f", total, want)
			}
			if err := s.Checkout.Finish(ctx); err != nil {
				return err
			}
			return s.Checkout.VerifyComplete(ctx)
		}},
	}

	sum := smokeSummary{User: user.Username, Products: names, Success: true}
	start := time.Now()
	for _, st := range plan {
		t0 := time.Now()
		err := st.run(ctx)
		res := stepResult{Name: st.name, DurationMS: time.Since(t0).Milliseconds()}
		if err != nil {
			res.Error = err.Error()
			res.Kind = resilient.Classify(err).String()
			sum.Success = false
		}
		sum.Steps = append(sum.Steps, res)
		if err != nil {
			break
		}
	}
	sum.ElapsedMS = time.Since(start).Milliseconds()
	return sum
}

func newSmokeCmd(a *app) *cobra.Command {
	var (
		baseURL  string
		headless bool
		userKind string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Run the login, cart and checkout journey in Chrome",
		RunE: func(cmd *cobra.Command, args []string) error {
			url, stop, err := a.target(baseURL)
			if err != nil {
				return err
			}
			defer stop()

			bc := a.cfg.Browser(a.log)
			if cmd.Flags().Changed("headless") {
				bc.Headless = headless
			}
			sess, err := browser.Launch(bc)
			if err != nil {
				return err
			}
			defer sess.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			page, err := sess.NewPage(ctx)
			if err != nil {
				return err
			}
			defer page.Close()

			b := pages.NewBase(page, url, a.cfg.PageOptions(a.log)...)
			products := []fixtures.Product{fixtures.Cheapest(), fixtures.MostExpensive()}
			sum := runJourney(ctx, steps.NewShopper(b), fixtures.ValidUser(userKind), products, fixtures.ValidCheckout())
			sum.BaseURL = url

			if !sum.Success {
				// The journey context may have expired; the screenshot gets its own.
				shotCtx, shotCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer shotCancel()
				rec := artifacts.NewRecorder(a.cfg.ScreenshotsDir, a.recorderOptions(shotCtx)...)
				if path, err := rec.Capture(shotCtx, page, "smoke"); err != nil {
					a.log.Warn("failed to capture screenshot", "error", err)
				} else {
					sum.Screenshot = path
				}
			}

			if path, err := a.writeReport("smoke", sum); err != nil {
				a.log.Warn("failed to write report", "error", err)
			} else {
				a.log.Info("report written", "path", path)
			}
			if err := printJSON(a.out, sum); err != nil {
				return err
			}
			if !sum.Success {
				return fmt.Errorf("%w: %s", errReported, sum.Steps[len(sum.Steps)-1].Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "Storefront URL (default: from config, else a local storefront)")
	cmd.Flags().BoolVar(&headless, "headless", true, "Run Chrome headless (default: $HEADLESS)")
	cmd.Flags().StringVar(&userKind, "user", "standard", "Account kind: standard, problem or performance")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Overall journey timeout")
	return cmd
}

// recorderOptions wires the object store when one is configured. Upload
// setup problems are logged and leave the recorder local-only.
func (a *app) recorderOptions(ctx context.Context) []artifacts.Option {
	opts := []artifacts.Option{artifacts.WithLogger(a.log)}
	store := a.cfg.Artifacts
	if !store.Enabled() {
		return opts
	}
	u, err := artifacts.NewUploader(artifacts.StoreConfig{
		Endpoint:  store.Endpoint,
		AccessKey: store.AccessKey,
		SecretKey: store.SecretKey,
		Bucket:    store.Bucket,
		Region:    store.Region,
		UseSSL:    store.UseSSL,
		Prefix:    time.Now().UTC().Format("20060102"),
	})
	if err != nil {
		a.log.Warn("artifact store disabled", "error", err)
		return opts
	}
	// Bucket setup outlives an expired caller context.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := u.EnsureBucket(ctx); err != nil {
		a.log.Warn("artifact store disabled", "error", err)
		return opts
	}
	return append(opts, artifacts.WithUploader(u))
}
