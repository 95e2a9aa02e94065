// Package dispatch hands newly added library entries to the metadata fetcher.
//
// Every add path calls Dispatcher.Dispatch after the entry is committed.
// The implementations differ only in where the fetch runs:
//
//	Immediate  a detached goroutine in this process
//	Kafka      a message consumed by the worker command
//	Noop       nowhere (tests, CI)
//
// The durable backlite queue lives in internal/tasks and satisfies the same
// interface. Delivery is at most once in every mode: a lost dispatch leaves
// the entry pending for the sweeper.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mrlokans/booktracker/internal/metadata"
)

const instrumentationName = "github.com/mrlokans/booktracker/internal/dispatch"

var (
	tracer = otel.Tracer(instrumentationName)

	ErrClosed = errors.New("dispatcher closed")
)

type Dispatcher interface {
	Dispatch(ctx context.Context, userBookID string) error
	Close() error
}

// Syncer runs one metadata fetch. *metadata.Fetcher implements it.
type Syncer interface {
	Sync(ctx context.Context, userBookID string) (*metadata.SyncResult, error)
}

// Message is the payload carried by queued dispatches.
type Message struct {
	UserBookID string `json:"user_book_id"`
}

func EncodeMessage(userBookID string) ([]byte, error) {
	return json.Marshal(Message{UserBookID: userBookID})
}

// DecodeMessage parses a payload and rejects one without an entry id.
func DecodeMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decode dispatch message: %w", err)
	}
	if msg.UserBookID == "" {
		return Message{}, errors.New("decode dispatch message: missing user_book_id")
	}
	return msg, nil
}

// Noop drops every dispatch.
type Noop struct{}

func (Noop) Dispatch(context.Context, string) error { return nil }
func (Noop) Close() error { return nil }

// counter counts dispatches per mode and result.
type counter struct {
	c    metric.Int64Counter
	mode string
}

func newCounter(mode string) counter {
	c, _ := otel.Meter(instrumentationName).Int64Counter(
		"booktracker.dispatch.count",
		metric.WithDescription("Metadata fetch dispatches by mode and result"),
	)
	return counter{c: c, mode: mode}
}

func (c counter) add(ctx context.Context, err error) {
	if c.c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.c.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", c.mode),
		attribute.String("result", result),
	))
}
