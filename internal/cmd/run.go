package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"timekeeper/internal/adapters/spool"
	"timekeeper/internal/logging"
)

// RunCmd starts the tracking daemon
type RunCmd struct {
	MetricsAddr string `help:"Address for the Prometheus metrics endpoint (empty disables it)" default:"127.0.0.1:9464"`
	NoSpool     bool   `help:"Disable the spool directory watcher"`
}

// Run executes the daemon until interrupted
func (r *RunCmd) Run(cli *CLI) error {
	logging.Logger.Info("Starting timekeeper daemon")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container := cli.Container
	if err := container.Tracker.Start(ctx); err != nil {
		return fmt.Errorf("failed to start tracker: %w", err)
	}
	defer container.Tracker.Stop()

	if err := container.Guard.Start(ctx); err != nil {
		return fmt.Errorf("failed to start session guards: %w", err)
	}
	defer container.Guard.Stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ignoreCancel(container.Effects.Run(gctx))
	})

	if !r.NoSpool {
		watcher := spool.NewWatcher(cli.SpoolDir(), container.Tracker)
		g.Go(func() error {
			return ignoreCancel(watcher.Run(gctx))
		})
	}

	g.Go(func() error {
		return ignoreCancel(r.syncLoop(gctx, cli))
	})

	if r.MetricsAddr != "" {
		g.Go(func() error {
			return r.serveMetrics(gctx, r.MetricsAddr)
		})
	}

	logging.Logger.Info("Daemon running",
		"spool_dir", cli.SpoolDir(),
		"metrics_addr", r.MetricsAddr)
	return g.Wait()
}

// syncLoop queues a periodic sync per worker with live tracking state,
// the background complement to event-triggered SYNC_NOW effects
func (r *RunCmd) syncLoop(ctx context.Context, cli *CLI) error {
	ticker := time.NewTicker(cli.Container.Tuning.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rows, err := cli.Container.Store.ListActiveTracking(ctx)
			if err != nil {
				logging.Logger.Warn("Failed to list workers for periodic sync", "error", err)
				continue
			}
			for _, row := range rows {
				if _, err := cli.Container.SyncEngine.Sync(ctx, row.UserID); err != nil {
					logging.Logger.Warn("Periodic sync failed",
						"user_id", row.UserID,
						"error", err)
				}
			}
		}
	}
}

func (r *RunCmd) serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
