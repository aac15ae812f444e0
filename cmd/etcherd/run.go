// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/BoostyLabs/runelaunch/internal/logger"
	"github.com/BoostyLabs/runelaunch/internal/metrics"
)

const shutdownTimeout = 5 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daemon submitting pending reveals",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		group, ctx := errgroup.WithContext(ctx)
		group.Go(func() error { return a.fetchKeys(ctx) })
		group.Go(func() error { return serveMetrics(ctx, cfg.MetricsAddr) })

		if err = a.restore(); err != nil {
			stop()
			_ = group.Wait()
			return err
		}

		logger.Logger.Info().Str("network", string(cfg.Network)).Msg("etcher started")

		group.Go(func() error {
			<-ctx.Done()
			return nil
		})

		err = group.Wait()
		logger.Logger.Info().Int("pending_reveals", len(a.scheduler.Pending())).Msg("etcher stopped")

		return err
	},
}

// serveMetrics exposes prometheus metrics until ctx is done. Empty addr disables the server.
func serveMetrics(ctx context.Context, addr string) error {
	if addr == "" {
		return nil
	}

	metrics.Init()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Logger.Info().Str("addr", addr).Msg("serving metrics")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	}
}
