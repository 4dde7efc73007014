// Package app provides the top-level application lifecycle for the
// foldmarket engine. It wires together all dependencies (stores, caches,
// blob storage, and services) and runs the background settlement archiver
// until shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/foldmarket/foldmarket/internal/config"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, starts the
// background workers, and blocks until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("log_level", a.cfg.LogLevel),
		slog.Bool("archive_enabled", a.cfg.Settlement.ArchiveEnabled),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.Settlement.ArchiveEnabled && deps.Archiver != nil {
		g.Go(func() error {
			return a.archiveSweep(ctx, deps)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		return ctx.Err()
	})

	return g.Wait()
}

// archiveSweep periodically batches contracts resolved longer ago than the
// configured retention window into cold storage. Each sweep is independent,
// so a failed upload is retried on the next tick.
func (a *App) archiveSweep(ctx context.Context, deps *Dependencies) error {
	interval := a.cfg.Settlement.ArchiveInterval.Duration
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.logger.InfoContext(ctx, "settlement archiver started",
		slog.Duration("interval", interval),
		slog.Duration("archive_after", a.cfg.Settlement.ArchiveAfter.Duration),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-a.cfg.Settlement.ArchiveAfter.Duration)
			count, err := deps.Archiver.ArchiveResolvedContracts(ctx, cutoff)
			if err != nil {
				a.logger.ErrorContext(ctx, "settlement archive sweep failed",
					slog.String("error", err.Error()),
				)
				continue
			}
			if count > 0 {
				a.logger.InfoContext(ctx, "settlement archive sweep complete",
					slog.Int64("archived", count),
					slog.Time("cutoff", cutoff),
				)
			}
		}
	}
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
