// Package tasks runs metadata fetches through a durable backlite queue
// stored in its own SQLite file next to the main database.
package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikestefanello/backlite"
	"go.uber.org/zap"

	"github.com/mrlokans/booktracker/internal/logging"
)

// Config sizes the worker pool. Zero values take the defaults below.
type Config struct {
	Workers         int           // default 2
	ReleaseAfter    time.Duration // stuck tasks return to the queue, default 15m
	CleanupInterval time.Duration // expired task rows are purged, default 1h
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.ReleaseAfter <= 0 {
		c.ReleaseAfter = 15 * time.Minute
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = time.Hour
	}
	return c
}

// Client owns the queue database and the backlite workers.
type Client struct {
	backlite *backlite.Client
	db       *sql.DB
	workers  int
	log      *zap.Logger

	started atomic.Bool
	closed  atomic.Bool
}

// TasksDBPath puts the queue next to the main database:
// "./booktracker.db" becomes "./booktracker-tasks.db".
func TasksDBPath(mainDBPath string) string {
	ext := filepath.Ext(mainDBPath)
	return strings.TrimSuffix(mainDBPath, ext) + "-tasks" + ext
}

func NewClient(mainDBPath string, cfg Config, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("tasks")
	cfg = cfg.withDefaults()

	path := TasksDBPath(mainDBPath)
	db, err := openQueueDB(path, cfg.Workers)
	if err != nil {
		return nil, err
	}

	bl, err := backlite.NewClient(backlite.ClientConfig{
		DB:              db,
		NumWorkers:      cfg.Workers,
		ReleaseAfter:    cfg.ReleaseAfter,
		CleanupInterval: cfg.CleanupInterval,
		Logger:          logging.NewPrintf(log),
	})
	if err == nil {
		err = bl.Install()
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set up task queue in %s: %w", path, err)
	}

	log.Info("task queue ready", zap.String("path", path), zap.Int("workers", cfg.Workers))
	return &Client{backlite: bl, db: db, workers: cfg.Workers, log: log}, nil
}

// openQueueDB sizes the pool so every worker and a few enqueuers get a connection.
func openQueueDB(path string, workers int) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_timeout=5000&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open tasks database: %w", err)
	}
	db.SetMaxOpenConns(workers + 5)
	db.SetMaxIdleConns(workers + 2)
	db.SetConnMaxLifetime(time.Hour)
	return db, nil
}

// Register adds queues. Call it before Start.
func (c *Client) Register(queues ...backlite.Queue) {
	for _, q := range queues {
		c.backlite.Register(q)
	}
}

// Start launches the workers once. It does not block.
func (c *Client) Start(ctx context.Context) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	c.log.Info("task workers started", zap.Int("workers", c.workers))
	c.backlite.Start(ctx)
}

// Stop waits for running tasks until ctx expires and reports whether all
// of them finished.
func (c *Client) Stop(ctx context.Context) bool {
	if !c.started.Load() {
		return true
	}
	drained := c.backlite.Stop(ctx)
	if !drained {
		c.log.Warn("task workers stopped before running tasks finished")
	}
	return drained
}

// Close releases the queue database. Stop the workers first.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.db.Close()
}

// Add starts enqueueing tasks. Finish with Save.
func (c *Client) Add(tasks ...backlite.Task) *backlite.TaskAddOp {
	return c.backlite.Add(tasks...)
}
