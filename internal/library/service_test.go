package library

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/booktracker/internal/barcode"
	"github.com/mrlokans/booktracker/internal/database"
	"github.com/mrlokans/booktracker/internal/entities"
	"github.com/mrlokans/booktracker/internal/store"
)

type recordingDispatcher struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, userBookID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids = append(d.ids, userBookID)
	return d.err
}

func (d *recordingDispatcher) Close() error { return nil }

type stubScanner struct {
	isbn string
	err  error
}

func (s stubScanner) ScanISBN(string) (string, error) { return s.isbn, s.err }

type fixture struct {
	db         *database.Database
	dispatcher *recordingDispatcher
	svc        *Service
	alice      *entities.User
	bob        *entities.User
}

func newFixture(t *testing.T, scanner Scanner) *fixture {
	t.Helper()
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "test.db"), database.Options{LogLevel: logger.Silent})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	alice, err := db.CreateUser(ctx, store.UserInput{Username: "alice", Email: "alice@example.com", PasswordHash: "h"})
	require.NoError(t, err)
	bob, err := db.CreateUser(ctx, store.UserInput{Username: "bob", Email: "bob@example.com", PasswordHash: "h"})
	require.NoError(t, err)

	d := &recordingDispatcher{}
	return &fixture{
		db:         db,
		dispatcher: d,
		svc:        NewService(db, d, scanner, zap.NewNop()),
		alice:      alice,
		bob:        bob,
	}
}

func ptr[T any](v T) *T { return &v }

func validInput() AddBookInput {
	return AddBookInput{
		ISBN:   "978-0-441-17271-9",
		Title:  " Dune ",
		Author: "Frank Herbert",
		Genre:  "Science Fiction",
		Rating: ptr(5),
		Status: entities.ReadingStatusReading,
	}
}

func TestAddBook_CreatesPendingEntryAndDispatches(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.svc.AddBook(ctx, f.alice.ID, validInput())
	require.NoError(t, err)
	assert.True(t, res.BookCreated)

	ub := res.UserBook
	assert.Equal(t, entities.SyncStatusPending, ub.SyncStatus)
	assert.Equal(t, entities.ReadingStatusReading, ub.Status)
	require.NotNil(t, ub.Rating)
	assert.Equal(t, 5, *ub.Rating)
	require.NotNil(t, ub.Book)
	assert.Equal(t, "9780441172719", ub.Book.ISBN)
	assert.Equal(t, "Dune", ub.Book.Title)

	assert.Equal(t, []string{ub.ID}, f.dispatcher.ids)
}

func TestAddBook_DefaultStatus(t *testing.T) {
	f := newFixture(t, nil)

	in := validInput()
	in.Status = ""
	in.Rating = nil
	res, err := f.svc.AddBook(context.Background(), f.alice.ID, in)
	require.NoError(t, err)
	assert.Equal(t, entities.ReadingStatusToRead, res.UserBook.Status)
	assert.Nil(t, res.UserBook.Rating)
}

func TestAddBook_Duplicate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.AddBook(ctx, f.alice.ID, validInput())
	require.NoError(t, err)

	_, err = f.svc.AddBook(ctx, f.alice.ID, validInput())
	assert.ErrorIs(t, err, ErrAlreadyInLibrary)

	list, err := f.svc.ListBooks(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Len(t, f.dispatcher.ids, 1, "duplicate does not dispatch")
}

func TestAddBook_SecondUserSharesBook(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, err := f.svc.AddBook(ctx, f.alice.ID, validInput())
	require.NoError(t, err)

	in := validInput()
	in.Title = "Another Title"
	second, err := f.svc.AddBook(ctx, f.bob.ID, in)
	require.NoError(t, err)

	assert.False(t, second.BookCreated)
	assert.Equal(t, first.UserBook.BookID, second.UserBook.BookID)
	assert.Equal(t, "Dune", second.UserBook.Book.Title, "first writer wins")
}

func TestAddBook_Validation(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name  string
		edit  func(*AddBookInput)
		field string
	}{
		{"eleven digits", func(in *AddBookInput) { in.ISBN = "12345678901" }, "isbn"},
		{"letters", func(in *AddBookInput) { in.ISBN = "97804411727X9" }, "isbn"},
		{"missing title", func(in *AddBookInput) { in.Title = "   " }, "title"},
		{"missing author", func(in *AddBookInput) { in.Author = "" }, "author"},
		{"bad status", func(in *AddBookInput) { in.Status = "shelved" }, "status"},
		{"rating too high", func(in *AddBookInput) { in.Rating = ptr(6) }, "rating"},
		{"bad cover", func(in *AddBookInput) { in.CoverImageURL = "not a url" }, "cover_image_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.edit(&in)
			_, err := f.svc.AddBook(context.Background(), f.alice.ID, in)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
	assert.Empty(t, f.dispatcher.ids)
}

func TestAddBook_DispatchFailureIsSwallowed(t *testing.T) {
	f := newFixture(t, nil)
	f.dispatcher.err = errors.New("broker down")

	core, logs := observer.New(zap.ErrorLevel)
	f.svc.log = zap.New(core)

	res, err := f.svc.AddBook(context.Background(), f.alice.ID, validInput())
	require.NoError(t, err)
	assert.Equal(t, entities.SyncStatusPending, res.UserBook.SyncStatus)
	assert.Equal(t, 1, logs.Len())
}

func TestScanBook_CreatesPlaceholders(t *testing.T) {
	f := newFixture(t, stubScanner{isbn: "9781234567890"})

	res, err := f.svc.ScanBook(context.Background(), f.alice.ID, "payload")
	require.NoError(t, err)

	assert.True(t, res.BookCreated)
	assert.Equal(t, entities.PlaceholderTitle, res.UserBook.Book.Title)
	assert.Equal(t, entities.PlaceholderAuthor, res.UserBook.Book.Author)
	assert.Equal(t, entities.ReadingStatusToRead, res.UserBook.Status)
	assert.Equal(t, entities.SyncStatusPending, res.UserBook.SyncStatus)
	assert.Equal(t, []string{res.UserBook.ID}, f.dispatcher.ids)
}

func TestScanBook_ExistingBookKeepsMetadata(t *testing.T) {
	f := newFixture(t, stubScanner{isbn: "9780441172719"})
	ctx := context.Background()

	_, err := f.svc.AddBook(ctx, f.bob.ID, validInput())
	require.NoError(t, err)

	res, err := f.svc.ScanBook(ctx, f.alice.ID, "payload")
	require.NoError(t, err)
	assert.False(t, res.BookCreated)
	assert.Equal(t, "Dune", res.UserBook.Book.Title)

	_, err = f.svc.ScanBook(ctx, f.alice.ID, "payload")
	assert.ErrorIs(t, err, ErrAlreadyInLibrary)
}

func TestScanBook_ScannerErrors(t *testing.T) {
	for _, scanErr := range []error{barcode.ErrNoISBN, barcode.ErrCapabilityUnavailable, barcode.ErrInvalidImage} {
		f := newFixture(t, stubScanner{err: scanErr})
		_, err := f.svc.ScanBook(context.Background(), f.alice.ID, "payload")
		assert.ErrorIs(t, err, scanErr)
	}
}

func TestGetUserBook_Ownership(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.svc.AddBook(ctx, f.alice.ID, validInput())
	require.NoError(t, err)

	got, err := f.svc.GetUserBook(ctx, f.alice.ID, res.UserBook.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dune", got.Book.Title)

	_, err = f.svc.GetUserBook(ctx, f.bob.ID, res.UserBook.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.GetUserBook(ctx, f.alice.ID, "ub-missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEditBook_ForcesSynced(t *testing.T) {
	for _, prior := range []entities.SyncStatus{entities.SyncStatusPending, entities.SyncStatusFailed, entities.SyncStatusSynced} {
		t.Run(string(prior), func(t *testing.T) {
			f := newFixture(t, nil)
			ctx := context.Background()

			res, err := f.svc.AddBook(ctx, f.alice.ID, validInput())
			require.NoError(t, err)
			require.NoError(t, f.db.UpdateUserBook(ctx, res.UserBook.ID, store.UserBookUpdate{SyncStatus: &prior}))

			got, err := f.svc.EditBook(ctx, f.alice.ID, res.UserBook.ID, EditBookInput{
				Title:  ptr("Dune Messiah"),
				Status: ptr(entities.ReadingStatusRead),
			})
			require.NoError(t, err)

			assert.Equal(t, entities.SyncStatusSynced, got.SyncStatus)
			assert.Equal(t, entities.ReadingStatusRead, got.Status)
			assert.Equal(t, "Dune Messiah", got.Book.Title)
			assert.Equal(t, "Frank Herbert", got.Book.Author, "unset fields are untouched")
			require.NotNil(t, got.Rating)
			assert.Equal(t, 5, *got.Rating)
		})
	}
}

func TestEditBook_ClearRating(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.svc.AddBook(ctx, f.alice.ID, validInput())
	require.NoError(t, err)

	got, err := f.svc.EditBook(ctx, f.alice.ID, res.UserBook.ID, EditBookInput{ClearRating: true})
	require.NoError(t, err)
	assert.Nil(t, got.Rating)
}

func TestEditBook_EmptyCoverClearsIt(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	in := validInput()
	in.CoverImageURL = "https://covers.example.com/dune.jpg"
	res, err := f.svc.AddBook(ctx, f.alice.ID, in)
	require.NoError(t, err)
	require.Equal(t, "https://covers.example.com/dune.jpg", res.UserBook.Book.CoverImageURL)

	got, err := f.svc.EditBook(ctx, f.alice.ID, res.UserBook.ID, EditBookInput{CoverImageURL: ptr("  ")})
	require.NoError(t, err)
	assert.Empty(t, got.Book.CoverImageURL)
	assert.Equal(t, entities.SyncStatusSynced, got.SyncStatus)

	var verr *ValidationError
	_, err = f.svc.EditBook(ctx, f.alice.ID, res.UserBook.ID, EditBookInput{CoverImageURL: ptr("not a url")})
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "cover_image_url")
}

func TestEditBook_RejectsInvalidAndForeign(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.svc.AddBook(ctx, f.alice.ID, validInput())
	require.NoError(t, err)

	var verr *ValidationError
	_, err = f.svc.EditBook(ctx, f.alice.ID, res.UserBook.ID, EditBookInput{Title: ptr("  ")})
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "title")

	_, err = f.svc.EditBook(ctx, f.alice.ID, res.UserBook.ID, EditBookInput{Rating: ptr(9)})
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "rating")

	_, err = f.svc.EditBook(ctx, f.bob.ID, res.UserBook.ID, EditBookInput{Title: ptr("Mine")})
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := f.svc.GetUserBook(ctx, f.alice.ID, res.UserBook.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dune", got.Book.Title)
	assert.Equal(t, entities.SyncStatusPending, got.SyncStatus)
}

func TestDeleteBook_KeepsSharedBook(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	aliceEntry, err := f.svc.AddBook(ctx, f.alice.ID, validInput())
	require.NoError(t, err)
	bobEntry, err := f.svc.AddBook(ctx, f.bob.ID, validInput())
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.DeleteBook(ctx, f.bob.ID, aliceEntry.UserBook.ID), ErrForbidden)
	require.NoError(t, f.svc.DeleteBook(ctx, f.alice.ID, aliceEntry.UserBook.ID))

	_, err = f.db.GetBook(ctx, aliceEntry.UserBook.BookID)
	assert.NoError(t, err)

	bobs, err := f.svc.ListBooks(ctx, f.bob.ID)
	require.NoError(t, err)
	require.Len(t, bobs, 1)
	assert.Equal(t, bobEntry.UserBook.ID, bobs[0].ID)

	alices, err := f.svc.ListBooks(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Empty(t, alices)
}

func TestRedispatch(t *testing.T) {
	f := newFixture(t, nil)

	require.NoError(t, f.svc.Redispatch(context.Background(), "ub-1"))
	assert.Equal(t, []string{"ub-1"}, f.dispatcher.ids)
}
