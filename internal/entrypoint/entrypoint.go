// Package entrypoint assembles the application from configuration and runs
// the web server and the Kafka fetch worker.
package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mrlokans/booktracker/internal/config"
	"github.com/mrlokans/booktracker/internal/telemetry"
)

const readHeaderTimeout = 10 * time.Second

// Serve runs the HTTP server until ctx is cancelled, then shuts it down
// within the configured timeout.
func Serve(ctx context.Context, handler http.Handler, cfg *config.Config, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second
		log.Info("shutting down server", zap.Duration("timeout", timeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Run builds the application and serves it until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config, version string, log *zap.Logger) error {
	log.Info("starting booktracker",
		zap.String("version", version),
		zap.String("env", cfg.Global.Environment),
		zap.String("store", string(cfg.Database.Backend)),
		zap.String("dispatch", string(cfg.EffectiveDispatchMode())))

	shutdownTracing := setupTracing(ctx, cfg, version, log)
	defer shutdownTracing()

	app, err := Build(ctx, cfg, version, log)
	if err != nil {
		return err
	}
	defer app.Close()

	if app.Sweeper != nil {
		if err := app.Sweeper.Start(ctx); err != nil {
			return fmt.Errorf("start pending sweeper: %w", err)
		}
		defer app.Sweeper.Stop()
	}

	return Serve(ctx, app.Router, cfg, log)
}

// setupTracing never fails startup: a broken exporter only costs spans.
func setupTracing(ctx context.Context, cfg *config.Config, version string, log *zap.Logger) func() {
	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry, version, log)
	if err != nil {
		log.Warn("tracing disabled", zap.Error(err))
	}
	return func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			log.Warn("flush traces", zap.Error(err))
		}
	}
}
