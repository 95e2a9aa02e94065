package entrypoint

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/booktracker/internal/auth"
	"github.com/mrlokans/booktracker/internal/badgerstore"
	"github.com/mrlokans/booktracker/internal/barcode"
	"github.com/mrlokans/booktracker/internal/config"
	"github.com/mrlokans/booktracker/internal/database"
	"github.com/mrlokans/booktracker/internal/dispatch"
	http_controllers "github.com/mrlokans/booktracker/internal/http"
	"github.com/mrlokans/booktracker/internal/library"
	"github.com/mrlokans/booktracker/internal/metadata"
	"github.com/mrlokans/booktracker/internal/scheduler"
	"github.com/mrlokans/booktracker/internal/store"
	"github.com/mrlokans/booktracker/internal/tasks"
)

// App holds the wired components of the web process.
type App struct {
	Store      store.Store
	Library    *library.Service
	Dispatcher dispatch.Dispatcher
	Router     *gin.Engine
	Sweeper    *scheduler.PendingSweeper // nil unless enabled

	log     *zap.Logger
	closers []func() error
}

// Build wires every component from cfg. Close releases what it opened.
func Build(ctx context.Context, cfg *config.Config, version string, log *zap.Logger) (*App, error) {
	app := &App{log: log}

	st, sqlDB, err := openStore(cfg, log)
	if err != nil {
		return nil, err
	}
	app.Store = st
	app.onClose(st.Close)

	fetcher := metadata.NewFetcher(st, newCatalog(cfg, log), log)
	dispatcher, err := newDispatcher(ctx, cfg, fetcher, log)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Dispatcher = dispatcher
	app.onClose(dispatcher.Close)

	scanner := barcode.NewScanner(cfg.Barcode.Enabled, log)
	app.Library = library.NewService(st, dispatcher, scanner, log)

	authService := auth.NewService(st, cfg.Auth, log)
	sessions, err := auth.NewSessionManager(sqlDB, cfg.Auth)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("initialize sessions: %w", err)
	}
	secret, err := csrfSecret(cfg.Auth.SessionSecret, log)
	if err != nil {
		app.Close()
		return nil, err
	}
	authController := auth.NewAuthController(authService, sessions, cfg.UI.TemplatesPath, cfg.Auth, log)
	app.onClose(func() error {
		authController.Stop()
		return nil
	})

	if cfg.Global.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	app.Router = http_controllers.NewRouter(http_controllers.RouterConfig{
		Library:        app.Library,
		Store:          st,
		Scanner:        scanner,
		Logger:         log,
		AuthService:    authService,
		SessionManager: sessions,
		AuthController: authController,
		CSRFSecret:     secret,
		SecureCookies:  cfg.Auth.SecureCookies,
		TemplatesPath:  cfg.UI.TemplatesPath,
		StaticPath:     cfg.UI.StaticPath,
		Version:        version,
	})

	if cfg.Sweeper.Enabled && cfg.EffectiveDispatchMode() != config.DispatchModeDisabled {
		app.Sweeper = scheduler.NewPendingSweeper(st, app.Library, cfg.Sweeper, log)
	}

	return app, nil
}

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close releases components in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Error("error during close", zap.Error(err))
		}
	}
	a.closers = nil
}

// openStore returns the configured store. The *sql.DB backs sessions and is
// nil for Badger, which keeps sessions in memory.
func openStore(cfg *config.Config, log *zap.Logger) (store.Store, *sql.DB, error) {
	switch cfg.Database.Backend {
	case config.StoreBackendBadger:
		s, err := badgerstore.Open(cfg.Database.BadgerDir, badgerstore.Options{Logger: log})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize badger store: %w", err)
		}
		log.Warn("sessions are kept in memory with the badger backend")
		return s, nil, nil

	case config.StoreBackendSQLite, "":
		db, err := database.NewDatabase(cfg.Database.Path, database.Options{LogLevel: logger.Warn, Logger: log})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		sqlDB, err := db.DB.DB()
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("failed to get SQL DB for sessions: %w", err)
		}
		return db, sqlDB, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Database.Backend)
	}
}

func newCatalog(cfg *config.Config, log *zap.Logger) metadata.Catalog {
	return metadata.NewGoogleBooksClient(metadata.GoogleBooksOptions{
		BaseURL:           cfg.Metadata.BaseURL,
		APIKey:            cfg.Metadata.APIKey,
		Timeout:           cfg.Metadata.Timeout,
		RequestsPerSecond: cfg.Metadata.RequestsPerSecond,
		Logger:            log,
	})
}

// newDispatcher picks the background fetch transport. Queue workers run
// until ctx is cancelled or the dispatcher is closed.
func newDispatcher(ctx context.Context, cfg *config.Config, syncer dispatch.Syncer, log *zap.Logger) (dispatch.Dispatcher, error) {
	switch mode := cfg.EffectiveDispatchMode(); mode {
	case config.DispatchModeDisabled:
		log.Info("background metadata fetch disabled, new entries stay pending")
		return dispatch.Noop{}, nil

	case config.DispatchModeImmediate, "":
		return dispatch.NewImmediate(syncer, cfg.Dispatch.Timeout, log), nil

	case config.DispatchModeQueue:
		client, err := tasks.NewClient(cfg.Database.Path, tasks.Config{
			Workers:         cfg.Tasks.Workers,
			ReleaseAfter:    cfg.Tasks.ReleaseAfter,
			CleanupInterval: cfg.Tasks.CleanupInterval,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize task queue: %w", err)
		}
		d := tasks.NewDispatcher(client, syncer, log)
		go client.Start(ctx)
		return d, nil

	case config.DispatchModeKafka:
		if len(cfg.Kafka.Brokers) == 0 {
			return nil, errors.New("kafka dispatch requires KAFKA_BROKERS")
		}
		d, err := dispatch.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			return nil, err
		}
		return d, nil

	default:
		return nil, fmt.Errorf("unknown dispatch mode %q", mode)
	}
}

// csrfSecret decodes a hex secret, falls back to the raw bytes, and
// generates a fresh one when none is configured.
func csrfSecret(configured string, log *zap.Logger) ([]byte, error) {
	if configured != "" {
		if secret, err := hex.DecodeString(configured); err == nil {
			return secret, nil
		}
		return []byte(configured), nil
	}

	generated, err := auth.GenerateSessionSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSRF secret: %w", err)
	}
	log.Warn("generated session secret, set AUTH_SESSION_SECRET to keep sessions valid across restarts")
	return hex.DecodeString(generated)
}
