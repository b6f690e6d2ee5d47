//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/thesyncim/shopcheck/pkg/artifacts"
	"github.com/thesyncim/shopcheck/pkg/browser"
	"github.com/thesyncim/shopcheck/pkg/config"
	"github.com/thesyncim/shopcheck/pkg/pages"
	"github.com/thesyncim/shopcheck/pkg/shop"
	"github.com/thesyncim/shopcheck/pkg/steps"
)

// Shared by every test in the package; set up by TestMain.
var (
	cfg      *config.Config
	log      *slog.Logger
	baseURL  string
	apiURL   string
	session  *browser.Session
	recorder *artifacts.Recorder
)

func TestMain(m *testing.M) {
	code, err := run(m)
	if err != nil {
		fmt.Fprintln(os.Stderr, "e2e setup:", err)
		code = 1
	}

	// Cleanup: Kill any orphaned Chrome processes
	// This is a safety net for test failures/panics where
	// defer session.Close() didn't run
	cleanupOrphanedBrowsers()

	os.Exit(code)
}

func run(m *testing.M) (int, error) {
	var err error
	cfg, err = config.Load("")
	if err != nil {
		return 1, err
	}
	log = cfg.Logger(os.Stderr)

	baseURL = cfg.BaseURL()
	apiURL = cfg.APIBaseURL
	if baseURL == "" {
		scfg := shop.DefaultConfig()
		scfg.Logger = log
		srv, err := shop.NewServer(scfg)
		if err != nil {
			return 1, err
		}
		if _, err := srv.Start(); err != nil {
			return 1, err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
		baseURL = srv.URL()
		if apiURL == config.Default().APIBaseURL {
			apiURL = strings.TrimSuffix(baseURL, "/") + "/api"
		}
	}

	session, err = browser.Launch(cfg.Browser(log))
	if err != nil {
		return 1, err
	}
	defer session.Close()

	recorder = artifacts.NewRecorder(cfg.ScreenshotsDir, artifacts.WithLogger(log))
	log.Info("e2e suite starting", "base_url", baseURL, "api_url", apiURL, "ci", cfg.IsCI())
	return m.Run(), nil
}

// newShopper opens a fresh page on the storefront. The page is closed and,
// on failure, screenshotted when the test ends.
func newShopper(t *testing.T) *steps.Shopper {
	t.Helper()
	page, err := session.NewPage(context.Background())
	if err != nil {
		t.Fatalf("failed to open page: %v", err)
	}
	t.Cleanup(func() {
		if err := page.Close(); err != nil {
			t.Logf("page close: %v", err)
		}
	})
	// Registered after Close so it runs first.
	recorder.OnFailure(t, page)

	return steps.NewShopper(pages.NewBase(page, baseURL, cfg.PageOptions(log)...))
}

// testContext bounds one scenario.
func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)
	return ctx
}

// cleanupOrphanedBrowsers attempts to kill Chrome processes that may have
// been left behind by failed tests. This is best-effort cleanup.
func cleanupOrphanedBrowsers() {
	switch runtime.GOOS {
	case "darwin", "linux":
		// pkill returns non-zero if no processes matched, ignore error
		// Target both chromium (Rod downloads) and chrome (system install)
		_ = exec.Command("pkill", "-f", "chromium|chrome").Run()
	case "windows":
		// taskkill returns non-zero if process not found, ignore error
		_ = exec.Command("taskkill", "/F", "/IM", "chrome.exe").Run()
		_ = exec.Command("taskkill", "/F", "/IM", "chromium.exe").Run()
	}
}
