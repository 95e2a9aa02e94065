package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mrlokans/booktracker/internal/store"
)

const DefaultImmediateTimeout = 30 * time.Second

// Immediate runs each fetch in its own goroutine, detached from the request.
type Immediate struct {
	syncer  Syncer
	timeout time.Duration
	log     *zap.Logger
	counter counter

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewImmediate(syncer Syncer, timeout time.Duration, log *zap.Logger) *Immediate {
	if timeout <= 0 {
		timeout = DefaultImmediateTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Immediate{
		syncer:  syncer,
		timeout: timeout,
		log:     log.Named("dispatch.immediate"),
		counter: newCounter("immediate"),
	}
}

// Dispatch starts the fetch and returns at once. The fetch gets its own
// context bounded by the timeout, so a finished request does not cancel it.
func (d *Immediate) Dispatch(ctx context.Context, userBookID string) error {
	ctx, span := tracer.Start(ctx, "dispatch.Immediate",
		trace.WithAttributes(attribute.String("user_book.id", userBookID)))
	defer span.End()

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.counter.add(ctx, ErrClosed)
		return ErrClosed
	}
	d.wg.Add(1)
	d.mu.Unlock()

	link := trace.LinkFromContext(ctx)
	go func() {
		defer d.wg.Done()
		d.run(userBookID, link)
	}()

	d.counter.add(ctx, nil)
	return nil
}

func (d *Immediate) run(userBookID string, link trace.Link) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "dispatch.Immediate.run", trace.WithLinks(link))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			d.log.Error("metadata fetch panicked", zap.String("user_book_id", userBookID), zap.Any("panic", r))
		}
	}()

	result, err := d.syncer.Sync(ctx, userBookID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		d.log.Info("entry vanished before fetch", zap.String("user_book_id", userBookID))
	case err != nil:
		d.log.Error("metadata fetch failed", zap.String("user_book_id", userBookID), zap.Error(err))
	default:
		d.log.Debug("metadata fetch finished",
			zap.String("user_book_id", userBookID),
			zap.String("outcome", string(result.Outcome)))
	}
}

// Close rejects new dispatches and waits for in-flight fetches.
func (d *Immediate) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.wg.Wait()
	return nil
}

// Wait blocks until in-flight fetches finish or ctx is done.
func (d *Immediate) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
