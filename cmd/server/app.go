package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/phrazzld/kotoba-api/internal/config"
	"github.com/phrazzld/kotoba-api/internal/domain/srs"
	"github.com/phrazzld/kotoba-api/internal/events"
	"github.com/phrazzld/kotoba-api/internal/platform/cron"
	"github.com/phrazzld/kotoba-api/internal/service/auth"
	"github.com/phrazzld/kotoba-api/internal/service/practice"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	store  *backend

	jwtService auth.JWTService
	emitter    *events.InMemoryEventEmitter
	feed       *events.Feed
	manager    *practice.Manager
	sweeper    *cron.Sweeper
}

// newApplication wires services on top of an open backend. The caller keeps
// ownership of the backend until cleanup runs.
func newApplication(cfg *config.Config, logger *slog.Logger, b *backend) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		store:  b,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	// Presentation triggers are buffered per session for clients to poll.
	app.feed = events.NewFeed(events.DefaultFeedCapacity)
	app.emitter = events.NewInMemoryEventEmitter(logger)
	app.emitter.RegisterHandler(app.feed)

	app.manager = practice.NewManager(
		b.items,
		b.progress,
		srs.NewDefaultService(),
		practice.NewEventPresenter(app.emitter, logger),
		logger,
		practice.WithPendingWrites(practice.NewPendingWrites(cfg.Practice.MaxPendingWrites, logger)),
		practice.WithSessionClosedHook(app.feed.Forget),
	)

	app.sweeper, err = cron.NewSweeper(app.manager, cron.Config{
		RetryInterval:      cfg.Practice.RetryInterval,
		SessionIdleTimeout: cfg.Practice.SessionIdleTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create sweeper: %w", err)
	}

	logger.Info("application initialized",
		slog.String("database_driver", b.driver),
		slog.Duration("token_lifetime", cfg.Auth.TokenLifetime))
	return app, nil
}

// Run starts background maintenance and serves HTTP until ctx is done.
func (app *application) Run(ctx context.Context) error {
	app.logCatalog(ctx)

	if err := app.sweeper.Start(); err != nil {
		return fmt.Errorf("failed to start sweeper: %w", err)
	}

	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// logCatalog reports how much vocabulary is loaded, so an empty database is
// obvious at startup.
func (app *application) logCatalog(ctx context.Context) {
	counts, err := app.store.items.CountByLevel(ctx)
	if err != nil {
		app.logger.Warn("failed to count vocabulary", slog.String("error", err.Error()))
		return
	}
	if len(counts) == 0 {
		app.logger.Warn("vocabulary catalog is empty; run the import command")
		return
	}
	attrs := make([]any, 0, len(counts))
	for level, n := range counts {
		attrs = append(attrs, slog.Int(level, n))
	}
	app.logger.Info("vocabulary catalog loaded", slog.Group("items_by_level", attrs...))
}

// cleanup stops background work and flushes what it can before the
// database closes.
func (app *application) cleanup(ctx context.Context) {
	if app.sweeper != nil {
		app.sweeper.Stop()
	}
	if app.manager != nil {
		written, remaining := app.manager.FlushPending(ctx)
		if remaining > 0 {
			app.logger.Error("progress writes lost at shutdown",
				slog.Int("written", written),
				slog.Int("remaining", remaining))
		}
	}
	if err := app.store.Close(); err != nil {
		app.logger.Error("error closing database connection", slog.String("error", err.Error()))
	}
	app.logger.Info("application shutdown completed")
}

// healthHandler answers liveness probes.
func (app *application) healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		app.logger.Error("failed to write health check response", slog.String("error", err.Error()))
	}
}
