package main

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/thesyncim/shopcheck/pkg/browser"
	"github.com/thesyncim/shopcheck/pkg/fixtures"
	"github.com/thesyncim/shopcheck/pkg/pages"
	"github.com/thesyncim/shopcheck/pkg/steps"
)

// soakOptions bounds a soak run.
type soakOptions struct {
	Duration       time.Duration
	Interval       time.Duration
	StatusInterval time.Duration
	MaxFailureRate float64 // fraction of journeys allowed to fail
	MaxHeapMB      float64
}

// soakResult contains the results of a soak run.
type soakResult struct {
	Duration    time.Duration `json:"duration_ns"`
	Journeys    int           `json:"journeys"`
	Failures    int           `json:"failures"`
	LastError   string        `json:"last_error,omitempty"`
	PeakHeapMB  float64       `json:"peak_heap_mb"`
	TotalGC     uint32        `json:"total_gc"`
	SlowestMS   int64         `json:"slowest_ms"`
	FailureRate float64       `json:"failure_rate"`
	Status      string        `json:"status"`
}

// runSoak repeats journey every Interval until Duration elapses or ctx is
// canceled. Status lines go to w.
func runSoak(ctx context.Context, opts soakOptions, journey func(ctx context.Context) smokeSummary, w io.Writer) soakResult {
	res := soakResult{Status: "PASS"}
	var mem runtime.MemStats

	start := time.Now()
	lastStatus := start
	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	finish := func() soakResult {
		res.Duration = time.Since(start)
		if res.Journeys > 0 {
			res.FailureRate = float64(res.Failures) / float64(res.Journeys)
		}
		if res.Journeys == 0 || res.FailureRate > opts.MaxFailureRate {
			res.Status = "FAIL"
		}
		return res
	}

	for {
		select {
		case <-ctx.Done():
			return finish()
		case now := <-ticker.C:
			elapsed := now.Sub(start)
			if elapsed >= opts.Duration {
				return finish()
			}

			sum := journey(ctx)
			res.Journeys++
			if sum.ElapsedMS > res.SlowestMS {
				res.SlowestMS = sum.ElapsedMS
			}
			if !sum.Success && ctx.Err() == nil {
				res.Failures++
				last := sum.Steps[len(sum.Steps)-1]
				res.LastError = last.Name + ": " + last.Error
				fmt.Fprintf(w, "[%s] journey %d failed at %s\n", formatDuration(elapsed), res.Journeys, res.LastError)
			}

			if now.Sub(lastStatus) >= opts.StatusInterval {
				lastStatus = now
				runtime.ReadMemStats(&mem)
				heapMB := float64(mem.HeapAlloc) / (1024 * 1024)
				if heapMB > res.PeakHeapMB {
					res.PeakHeapMB = heapMB
				}
				res.TotalGC = mem.NumGC
				fmt.Fprintf(w, "[%s] Journeys: %d, Failures: %d, HeapAlloc: %.2f MB, NumGC: %d\n",
					formatDuration(elapsed), res.Journeys, res.Failures, heapMB, mem.NumGC)
				if heapMB > opts.MaxHeapMB {
					fmt.Fprintf(w, "[%s] ERROR: Memory limit exceeded: %.2f MB\n", formatDuration(elapsed), heapMB)
					res.Status = "FAIL"
				}
			}
		}
	}
}

func printSoakSummary(w io.Writer, res soakResult, opts soakOptions) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Soak Run Complete\n")
	fmt.Fprintf(w, "=================\n")
	fmt.Fprintf(w, "Duration:        %v\n", res.Duration.Round(time.Second))
	fmt.Fprintf(w, "Journeys:        %d\n", res.Journeys)
	fmt.Fprintf(w, "Failures:        %d (%.1f%%)\n", res.Failures, res.FailureRate*100)
	fmt.Fprintf(w, "Slowest journey: %dms\n", res.SlowestMS)
	fmt.Fprintf(w, "Peak HeapAlloc:  %.2f MB\n", res.PeakHeapMB)
	fmt.Fprintf(w, "Total GC cycles: %d\n", res.TotalGC)
	fmt.Fprintf(w, "Status:          %s\n", res.Status)
	fmt.Fprintf(w, "\n")

	fmt.Fprintf(w, "Pass Criteria:\n")
	fmt.Fprintf(w, "  - At least one journey:   %s\n", checkMark(res.Journeys > 0))
	fmt.Fprintf(w, "  - Failure rate <= %.0f%%:   %s\n", opts.MaxFailureRate*100, checkMark(res.FailureRate <= opts.MaxFailureRate))
	fmt.Fprintf(w, "  - Peak memory < %.0f MB:   %s\n", opts.MaxHeapMB, checkMark(res.PeakHeapMB < opts.MaxHeapMB))
}

func formatDuration(d time.Duration) string {
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func checkMark(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}

func newSoakCmd(a *app) *cobra.Command {
	var (
		baseURL string
		opts    = soakOptions{StatusInterval: time.Minute, MaxHeapMB: 200}
	)

	cmd := &cobra.Command{
		Use:   "soak",
		Short: "Repeat the checkout journey for a long period",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Interval <= 0 {
				return fmt.Errorf("--interval must be positive")
			}
			url, stop, err := a.target(baseURL)
			if err != nil {
				return err
			}
			defer stop()

			sess, err := browser.Launch(a.cfg.Browser(a.log))
			if err != nil {
				return err
			}
			defer sess.Close()

			fmt.Fprintf(a.out, "Shopcheck Soak Runner\n")
			fmt.Fprintf(a.out, "=====================\n")
			fmt.Fprintf(a.out, "Target:   %s\n", url)
			fmt.Fprintf(a.out, "Duration: %v\n\n", opts.Duration)

			products := []fixtures.Product{fixtures.Cheapest(), fixtures.MostExpensive()}
			journey := func(ctx context.Context) smokeSummary {
				page, err := sess.NewPage(ctx)
				if err != nil {
					return smokeSummary{Steps: []stepResult{{Name: "open page", Error: err.Error()}}}
				}
				defer page.Close()
				b := pages.NewBase(page, url, a.cfg.PageOptions(a.log)...)
				return runJourney(ctx, steps.NewShopper(b), fixtures.ValidUser("standard"), products, fixtures.ValidCheckout())
			}

			res := runSoak(cmd.Context(), opts, journey, a.out)
			printSoakSummary(a.out, res, opts)
			if path, err := a.writeReport("soak", res); err != nil {
				a.log.Warn("failed to write report", "error", err)
			} else {
				fmt.Fprintf(a.out, "Report:   %s\n", path)
			}
			if res.Status != "PASS" {
				return fmt.Errorf("%w: soak", errReported)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "Storefront URL (default: from config, else a local storefront)")
	cmd.Flags().DurationVar(&opts.Duration, "duration", time.Hour, "Run duration (e.g., 1h, 24h)")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 5*time.Second, "Delay between journey starts")
	cmd.Flags().Float64Var(&opts.MaxFailureRate, "max-failure-rate", 0.01, "Fraction of journeys allowed to fail")
	return cmd
}
