package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/thesyncim/shopcheck/pkg/config"
	"github.com/thesyncim/shopcheck/pkg/shop"
)

// app carries what every subcommand needs.
type app struct {
	cfgPath string
	cfg     *config.Config
	log     *slog.Logger
	out     io.Writer
}

// errReported marks a failure whose JSON summary was already printed.
var errReported = errors.New("journey failed")

func execute(version string, args []string) error {
	a := &app{out: os.Stdout}
	root := newRootCmd(a, version)
	root.SetArgs(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := root.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, errReported) {
		if a.log == nil {
			a.log = slog.New(slog.NewJSONHandler(os.Stderr, nil))
		}
		a.log.Error("command failed", "error", err.Error())
	}
	return err
}

func newRootCmd(a *app, version string) *cobra.Command {
	root := &cobra.Command{
		Use:           "shopcheck",
		Short:         "Swag Labs storefront and resilient browser journeys",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.cfgPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = cfg.Logger(os.Stderr)
			slog.SetDefault(a.log)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "YAML config file (default: $"+config.FileEnv+")")

	root.AddCommand(newServeCmd(a))
	root.AddCommand(newSmokeCmd(a))
	root.AddCommand(newAPICmd(a))
	root.AddCommand(newSoakCmd(a))
	return root
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// reportLayout stamps report file names.
const reportLayout = "20060102_150405"

// writeReport stores v as <name>_<timestamp>.json under the reports
// directory and returns the path.
func (a *app) writeReport(name string, v any) (string, error) {
	if err := os.MkdirAll(a.cfg.ReportsDir, 0o755); err != nil {
		return "", fmt.Errorf("create reports dir: %w", err)
	}
	path := filepath.Join(a.cfg.ReportsDir, fmt.Sprintf("%s_%s.json", name, time.Now().Format(reportLayout)))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report: %w", err)
	}
	if err := printJSON(f, v); err != nil {
		f.Close()
		return "", fmt.Errorf("write report: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// localShop starts the bundled storefront on a random port and returns
// its URL and a stop function.
func (a *app) localShop() (string, func(), error) {
	cfg := shop.DefaultConfig()
	cfg.Logger = a.log
	srv, err := shop.NewServer(cfg)
	if err != nil {
		return "", nil, err
	}
	if _, err := srv.Start(); err != nil {
		return "", nil, fmt.Errorf("start storefront: %w", err)
	}
	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			a.log.Warn("storefront shutdown", "error", err)
		}
	}
	return srv.URL(), stop, nil
}

// target resolves the storefront URL: the flag, then the config, then a
// local storefront.
func (a *app) target(flag string) (string, func(), error) {
	if flag != "" {
		return flag, func() {}, nil
	}
	if u := a.cfg.BaseURL(); u != "" {
		return u, func() {}, nil
	}
	return a.localShop()
}
