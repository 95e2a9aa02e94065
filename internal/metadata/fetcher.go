// Package metadata fetches book details from the Google Books catalog and
// applies them to provisional library entries.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mrlokans/booktracker/internal/entities"
	"github.com/mrlokans/booktracker/internal/store"
)

const instrumentationName = "github.com/mrlokans/booktracker/internal/metadata"

var tracer = otel.Tracer(instrumentationName)

// Fallbacks for volume fields the catalog leaves out.
const (
	DefaultDescription = "No description available."
	DefaultCoverURL    = "https://www.press.uillinois.edu/books/images/no_cover_lg.jpg"
	DefaultGenre       = "Uncategorized"
)

type Outcome string

const (
	OutcomeSynced  Outcome = "synced"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// Store is the persistence the fetcher needs.
type Store interface {
	GetUserBook(ctx context.Context, id string) (*entities.UserBook, error)
	GetBook(ctx context.Context, id string) (*entities.Book, error)
	UpdateBook(ctx context.Context, id string, update store.BookUpdate) error
	UpdateUserBook(ctx context.Context, id string, update store.UserBookUpdate) error
}

// SyncResult describes one fetch run.
type SyncResult struct {
	UserBookID string
	BookID     string
	ISBN       string
	Outcome    Outcome
	// Cause is the lookup error when Outcome is failed.
	Cause error
}

type Fetcher struct {
	store   Store
	catalog Catalog
	log     *zap.Logger
	runs    metric.Int64Counter
}

func NewFetcher(s Store, catalog Catalog, log *zap.Logger) *Fetcher {
	if log == nil {
		log = zap.NewNop()
	}
	runs, err := otel.Meter(instrumentationName).Int64Counter(
		"booktracker.metadata.sync.runs",
		metric.WithDescription("Metadata fetch runs by outcome"),
	)
	if err != nil {
		log.Warn("failed to create sync counter", zap.Error(err))
	}
	return &Fetcher{store: s, catalog: catalog, log: log.Named("fetcher"), runs: runs}
}

// Sync fetches metadata for the library entry and records the outcome on it.
//
// A missing entry or book returns store.ErrNotFound and changes nothing.
// Lookup failures are never returned: they mark the entry failed and are
// reported through SyncResult.Cause. Only storage errors surface as err.
func (f *Fetcher) Sync(ctx context.Context, userBookID string) (*SyncResult, error) {
	ctx, span := tracer.Start(ctx, "metadata.Sync",
		trace.WithAttributes(attribute.String("user_book.id", userBookID)))
	defer span.End()

	log := f.log.With(zap.String("user_book_id", userBookID))

	ub, err := f.store.GetUserBook(ctx, userBookID)
	if err != nil {
		return nil, f.loadFailed(ctx, span, log, "user book", err)
	}
	book, err := f.store.GetBook(ctx, ub.BookID)
	if err != nil {
		return nil, f.loadFailed(ctx, span, log.With(zap.String("book_id", ub.BookID)), "book", err)
	}

	result := &SyncResult{UserBookID: ub.ID, BookID: book.ID, ISBN: book.ISBN}
	span.SetAttributes(attribute.String("book.isbn", book.ISBN))
	log = log.With(zap.String("isbn", book.ISBN))
	log.Info("fetching metadata")

	vol, lookupErr := f.catalog.LookupISBN(ctx, book.ISBN)
	if lookupErr != nil {
		log.Warn("metadata lookup failed", zap.Error(lookupErr))
		span.RecordError(lookupErr)
		span.SetStatus(codes.Error, "lookup failed")

		if err := f.markFailed(ctx, ub.ID, book); err != nil {
			return nil, err
		}
		result.Outcome = OutcomeFailed
		result.Cause = lookupErr
		f.count(ctx, OutcomeFailed)
		return result, nil
	}

	if err := f.store.UpdateBook(ctx, book.ID, volumeUpdate(vol)); err != nil {
		return nil, fmt.Errorf("apply metadata to book %s: %w", book.ID, err)
	}
	synced := entities.SyncStatusSynced
	if err := f.store.UpdateUserBook(ctx, ub.ID, store.UserBookUpdate{SyncStatus: &synced}); err != nil {
		return nil, fmt.Errorf("mark user book %s synced: %w", ub.ID, err)
	}

	log.Info("metadata synced", zap.String("title", vol.Title))
	result.Outcome = OutcomeSynced
	f.count(ctx, OutcomeSynced)
	return result, nil
}

func (f *Fetcher) loadFailed(ctx context.Context, span trace.Span, log *zap.Logger, what string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		log.Info(what + " not found, nothing to sync")
		span.SetAttributes(attribute.String("sync.outcome", string(OutcomeSkipped)))
		f.count(ctx, OutcomeSkipped)
		return err
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return fmt.Errorf("load %s: %w", what, err)
}

// markFailed swaps remaining placeholders for "Unknown" and marks the entry failed.
func (f *Fetcher) markFailed(ctx context.Context, userBookID string, book *entities.Book) error {
	var update store.BookUpdate
	unknown := entities.UnknownValue
	if book.HasPlaceholderTitle() {
		update.Title = &unknown
	}
	if book.HasPlaceholderAuthor() {
		update.Author = &unknown
	}
	if !update.IsEmpty() {
		if err := f.store.UpdateBook(ctx, book.ID, update); err != nil {
			return fmt.Errorf("clear placeholders on book %s: %w", book.ID, err)
		}
	}

	failed := entities.SyncStatusFailed
	if err := f.store.UpdateUserBook(ctx, userBookID, store.UserBookUpdate{SyncStatus: &failed}); err != nil {
		return fmt.Errorf("mark user book %s failed: %w", userBookID, err)
	}
	return nil
}

func (f *Fetcher) count(ctx context.Context, outcome Outcome) {
	if f.runs == nil {
		return
	}
	f.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(outcome))))
}

// volumeUpdate maps a catalog volume onto the book, filling catalog gaps with defaults.
func volumeUpdate(vol *Volume) store.BookUpdate {
	title := vol.Title
	if title == "" {
		title = entities.UnknownValue
	}

	author := entities.UnknownValue
	if len(vol.Authors) > 0 {
		author = strings.Join(vol.Authors, ", ")
	}

	description := vol.Description
	if description == "" {
		description = DefaultDescription
	}

	cover := vol.Thumbnail
	if cover == "" {
		cover = DefaultCoverURL
	}

	genre := DefaultGenre
	if len(vol.Categories) > 0 && vol.Categories[0] != "" {
		genre = vol.Categories[0]
	}

	return store.BookUpdate{
		Title:         &title,
		Author:        &author,
		Description:   &description,
		CoverImageURL: &cover,
		Genre:         &genre,
	}
}
