package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/thesyncim/shopcheck/pkg/shop"
)

func newServeCmd(a *app) *cobra.Command {
	cfg := shop.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the demo storefront until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Logger = a.log
			srv, err := shop.NewServer(cfg)
			if err != nil {
				return err
			}
			if _, err := srv.Start(); err != nil {
				return err
			}
			a.log.Info("storefront ready", "url", srv.URL(), "render_delay", cfg.RenderDelay, "glitch_delay", cfg.GlitchDelay)

			<-cmd.Context().Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&cfg.Addr, "addr", ":8080", "Listen address")
	cmd.Flags().DurationVar(&cfg.RenderDelay, "render-delay", cfg.RenderDelay, "Delay before the page reflects cart and sort changes")
	cmd.Flags().DurationVar(&cfg.GlitchDelay, "glitch-delay", cfg.GlitchDelay, "Login delay of performance_glitch_user")
	return cmd
}
