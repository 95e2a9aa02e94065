package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mrlokans/booktracker/internal/metadata"
	"github.com/mrlokans/booktracker/internal/store"
)

var tracer = otel.Tracer("github.com/mrlokans/booktracker/internal/tasks")

// SyncBookTask fetches catalog metadata for one library entry.
type SyncBookTask struct {
	UserBookID string `json:"user_book_id"`
}

// Config runs each task once. Failed fetches stay failed and a lost task
// leaves the entry pending for the sweeper.
func (t SyncBookTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "sync_book",
		MaxAttempts: 1,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// Syncer runs one metadata fetch.
type Syncer interface {
	Sync(ctx context.Context, userBookID string) (*metadata.SyncResult, error)
}

// SyncBookProcessor runs the fetcher. A vanished entry is not a task failure.
func SyncBookProcessor(syncer Syncer, log *zap.Logger) backlite.QueueProcessor[SyncBookTask] {
	return func(ctx context.Context, task SyncBookTask) error {
		if syncer == nil {
			return fmt.Errorf("syncer not configured")
		}

		result, err := syncer.Sync(ctx, task.UserBookID)
		if errors.Is(err, store.ErrNotFound) {
			log.Info("entry vanished before fetch", zap.String("user_book_id", task.UserBookID))
			return nil
		}
		if err != nil {
			return fmt.Errorf("sync book %s: %w", task.UserBookID, err)
		}

		log.Info("metadata fetch finished",
			zap.String("user_book_id", task.UserBookID),
			zap.String("isbn", result.ISBN),
			zap.String("outcome", string(result.Outcome)))
		return nil
	}
}

func NewSyncBookQueue(syncer Syncer, log *zap.Logger) backlite.Queue {
	return backlite.NewQueue(SyncBookProcessor(syncer, log.Named("sync_book")))
}

// Dispatcher enqueues one SyncBookTask per dispatch into the durable queue.
type Dispatcher struct {
	client *Client
	log    *zap.Logger
}

// NewDispatcher registers the sync queue on client. Start the client afterwards.
func NewDispatcher(client *Client, syncer Syncer, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	client.Register(NewSyncBookQueue(syncer, log))
	return &Dispatcher{client: client, log: log.Named("dispatch.queue")}
}

func (d *Dispatcher) Dispatch(ctx context.Context, userBookID string) error {
	ctx, span := tracer.Start(ctx, "dispatch.Queue",
		trace.WithAttributes(attribute.String("user_book.id", userBookID)))
	defer span.End()

	ids, err := d.client.Add(SyncBookTask{UserBookID: userBookID}).Ctx(ctx).Save()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("enqueue sync for %s: %w", userBookID, err)
	}
	d.log.Debug("sync task enqueued", zap.String("user_book_id", userBookID), zap.Strings("task_ids", ids))
	return nil
}

// Close stops the workers, waiting up to a minute for running fetches, and closes the queue database.
func (d *Dispatcher) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	d.client.Stop(ctx)
	return d.client.Close()
}
