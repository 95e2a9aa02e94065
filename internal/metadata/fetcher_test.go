package metadata_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/booktracker/internal/database"
	"github.com/mrlokans/booktracker/internal/entities"
	"github.com/mrlokans/booktracker/internal/metadata"
	"github.com/mrlokans/booktracker/internal/metadata/mocks"
	"github.com/mrlokans/booktracker/internal/store"
)

type fixture struct {
	db      *database.Database
	catalog *mocks.MockCatalog
	fetcher *metadata.Fetcher
	user    *entities.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "test.db"), database.Options{LogLevel: logger.Silent})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	user, err := db.CreateUser(context.Background(), store.UserInput{Username: "reader", Email: "reader@example.com", PasswordHash: "h"})
	require.NoError(t, err)

	catalog := mocks.NewMockCatalog(gomock.NewController(t))
	return &fixture{
		db:      db,
		catalog: catalog,
		fetcher: metadata.NewFetcher(db, catalog, zap.NewNop()),
		user:    user,
	}
}

func (f *fixture) addBook(t *testing.T, in store.BookInput) (*entities.Book, *entities.UserBook) {
	t.Helper()
	ctx := context.Background()
	book, _, err := f.db.GetOrCreateBook(ctx, in)
	require.NoError(t, err)
	ub, err := f.db.CreateUserBook(ctx, store.UserBookInput{UserID: f.user.ID, BookID: book.ID})
	require.NoError(t, err)
	require.Equal(t, entities.SyncStatusPending, ub.SyncStatus)
	return book, ub
}

func (f *fixture) reload(t *testing.T, bookID, userBookID string) (*entities.Book, *entities.UserBook) {
	t.Helper()
	ctx := context.Background()
	book, err := f.db.GetBook(ctx, bookID)
	require.NoError(t, err)
	ub, err := f.db.GetUserBook(ctx, userBookID)
	require.NoError(t, err)
	return book, ub
}

func TestSync_Success(t *testing.T) {
	f := newFixture(t)
	book, ub := f.addBook(t, store.BookInput{
		ISBN:   "9780441172719",
		Title:  entities.PlaceholderTitle,
		Author: entities.PlaceholderAuthor,
	})

	f.catalog.EXPECT().
		LookupISBN(gomock.Any(), "9780441172719").
		Return(&metadata.Volume{
			Title:       "Dune",
			Authors:     []string{"Frank Herbert", "Brian Herbert"},
			Description: "Desert planet.",
			Thumbnail:   "http://books.example/dune.jpg",
			Categories:  []string{"Fiction", "Classics"},
		}, nil)

	result, err := f.fetcher.Sync(context.Background(), ub.ID)
	require.NoError(t, err)
	assert.Equal(t, metadata.OutcomeSynced, result.Outcome)
	assert.NoError(t, result.Cause)

	gotBook, gotUB := f.reload(t, book.ID, ub.ID)
	assert.Equal(t, "Dune", gotBook.Title)
	assert.Equal(t, "Frank Herbert, Brian Herbert", gotBook.Author)
	assert.Equal(t, "Desert planet.", gotBook.Description)
	assert.Equal(t, "http://books.example/dune.jpg", gotBook.CoverImageURL)
	assert.Equal(t, "Fiction", gotBook.Genre)
	assert.Equal(t, entities.SyncStatusSynced, gotUB.SyncStatus)
}

func TestSync_SuccessFillsDefaults(t *testing.T) {
	f := newFixture(t)
	book, ub := f.addBook(t, store.BookInput{ISBN: "9780306406157", Title: "Manual", Author: "Someone"})

	f.catalog.EXPECT().LookupISBN(gomock.Any(), "9780306406157").Return(&metadata.Volume{Title: "Catalog Title"}, nil)

	_, err := f.fetcher.Sync(context.Background(), ub.ID)
	require.NoError(t, err)

	gotBook, _ := f.reload(t, book.ID, ub.ID)
	assert.Equal(t, "Catalog Title", gotBook.Title)
	assert.Equal(t, "Unknown", gotBook.Author)
	assert.Equal(t, metadata.DefaultDescription, gotBook.Description)
	assert.Equal(t, metadata.DefaultCoverURL, gotBook.CoverImageURL)
	assert.Equal(t, metadata.DefaultGenre, gotBook.Genre)
}

func TestSync_NoMatchReplacesPlaceholders(t *testing.T) {
	f := newFixture(t)
	book, ub := f.addBook(t, store.BookInput{
		ISBN:   "9781234567890",
		Title:  entities.PlaceholderTitle,
		Author: entities.PlaceholderAuthor,
	})

	f.catalog.EXPECT().LookupISBN(gomock.Any(), "9781234567890").Return(nil, metadata.ErrNoMatch)

	result, err := f.fetcher.Sync(context.Background(), ub.ID)
	require.NoError(t, err)
	assert.Equal(t, metadata.OutcomeFailed, result.Outcome)
	assert.ErrorIs(t, result.Cause, metadata.ErrNoMatch)

	gotBook, gotUB := f.reload(t, book.ID, ub.ID)
	assert.Equal(t, "Unknown", gotBook.Title)
	assert.Equal(t, "Unknown", gotBook.Author)
	assert.Equal(t, entities.SyncStatusFailed, gotUB.SyncStatus)
}

func TestSync_FailureKeepsUserValues(t *testing.T) {
	for _, lookupErr := range []error{metadata.ErrUpstreamUnavailable, metadata.ErrMalformedResponse, errors.New("boom")} {
		t.Run(lookupErr.Error(), func(t *testing.T) {
			f := newFixture(t)
			book, ub := f.addBook(t, store.BookInput{
				ISBN:   "9780306406157",
				Title:  "My Title",
				Author: entities.PlaceholderAuthor,
				Genre:  "Essays",
			})

			f.catalog.EXPECT().LookupISBN(gomock.Any(), gomock.Any()).Return(nil, lookupErr)

			result, err := f.fetcher.Sync(context.Background(), ub.ID)
			require.NoError(t, err)
			assert.Equal(t, metadata.OutcomeFailed, result.Outcome)

			gotBook, gotUB := f.reload(t, book.ID, ub.ID)
			assert.Equal(t, "My Title", gotBook.Title)
			assert.Equal(t, "Unknown", gotBook.Author)
			assert.Equal(t, "Essays", gotBook.Genre)
			assert.Equal(t, entities.SyncStatusFailed, gotUB.SyncStatus)
		})
	}
}

func TestSync_MissingUserBook(t *testing.T) {
	f := newFixture(t)

	result, err := f.fetcher.Sync(context.Background(), "ub-vanished")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Nil(t, result)
}

func TestSync_DeletedBetweenDispatchAndRun(t *testing.T) {
	f := newFixture(t)
	_, ub := f.addBook(t, store.BookInput{ISBN: "9780306406157", Title: "T", Author: "A"})
	require.NoError(t, f.db.DeleteUserBook(context.Background(), ub.ID))

	_, err := f.fetcher.Sync(context.Background(), ub.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
