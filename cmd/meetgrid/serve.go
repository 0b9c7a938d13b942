package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"meetgrid/internal/clock"
	"meetgrid/internal/ics"
	appLog "meetgrid/internal/log"
	"meetgrid/internal/web"
)

var listenFlag string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON API",
	Long:  "Serve the JSON API and keep configured calendars refreshed on the cron schedule.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenFlag, "listen", "", "HTTP listen address (overrides config if set)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if listenFlag != "" {
		cfg.Listen = listenFlag
	}
	appLog.Info("meetgrid starting", "version", version, "listen", cfg.Listen)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var subs *ics.Subscriptions
	if len(cfg.Calendars) > 0 {
		subs = ics.NewSubscriptions(ics.NewFetcher(nil, len(cfg.Calendars), 24*time.Hour), cfg.Calendars)

		refresh := func() {
			rctx, cancel := context.WithTimeout(ctx, time.Minute)
			defer cancel()
			subs.Refresh(rctx)
		}
		refresh()

		c := cron.New()
		if _, err := c.AddFunc(cfg.RefreshCron, refresh); err != nil {
			return fmt.Errorf("invalid refresh schedule %q: %w", cfg.RefreshCron, err)
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()
		appLog.Info("calendar refresh scheduled", "cron", cfg.RefreshCron, "calendars", len(cfg.Calendars))
	}

	srv := web.NewServer(cfg, clock.NewSystem(), subs)
	if err := srv.ListenAndServe(ctx); err != nil {
		appLog.Error("http server stopped", err)
		return err
	}

	if sig := ctx.Err(); sig != nil {
		appLog.Info("signal received, shutting down")
	}
	appLog.Info("meetgrid exiting")
	return nil
}
