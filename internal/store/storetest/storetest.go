// Package storetest holds the conformance suite every store.Store backing must pass.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/mrlokans/booktracker/internal/entities"
	"github.com/mrlokans/booktracker/internal/store"
)

// Factory returns a fresh, empty store. Cleanup is registered on t.
type Factory func(t *testing.T) store.Store

// Run executes the whole suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("GetOrCreateBook is idempotent", func(t *testing.T) { testGetOrCreateBook(t, newStore(t)) })
	t.Run("GetOrCreateBook concurrent callers share one row", func(t *testing.T) { testGetOrCreateBookConcurrent(t, newStore(t)) })
	t.Run("GetOrCreateBook property", func(t *testing.T) { testGetOrCreateBookProperty(t, newStore(t)) })
	t.Run("UpdateBook writes only set fields", func(t *testing.T) { testUpdateBook(t, newStore(t)) })
	t.Run("CreateUserBook rejects duplicates", func(t *testing.T) { testCreateUserBook(t, newStore(t)) })
	t.Run("UpdateUserBook writes only set fields", func(t *testing.T) { testUpdateUserBook(t, newStore(t)) })
	t.Run("ListUserBooks scopes by owner", func(t *testing.T) { testListUserBooks(t, newStore(t)) })
	t.Run("ListUserBooksBySyncStatus filters", func(t *testing.T) { testListBySyncStatus(t, newStore(t)) })
	t.Run("DeleteUserBook keeps the book", func(t *testing.T) { testDeleteUserBook(t, newStore(t)) })
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
}

func mustUser(t *testing.T, s store.Store, name string) *entities.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), store.UserInput{
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	return u
}

func mustBook(t *testing.T, s store.Store, isbn string) *entities.Book {
	t.Helper()
	b, _, err := s.GetOrCreateBook(context.Background(), store.BookInput{
		ISBN:   isbn,
		Title:  "Title " + isbn,
		Author: "Author " + isbn,
	})
	require.NoError(t, err)
	return b
}

func ptr[T any](v T) *T { return &v }

func testGetOrCreateBook(t *testing.T, s store.Store) {
	ctx := context.Background()

	first, created, err := s.GetOrCreateBook(ctx, store.BookInput{ISBN: "9780671027032", Title: "Dune", Author: "Frank Herbert"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, first.ID)

	second, created, err := s.GetOrCreateBook(ctx, store.BookInput{ISBN: "9780671027032", Title: "Other", Author: "Someone"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Dune", second.Title, "first writer wins")

	byISBN, err := s.GetBookByISBN(ctx, "9780671027032")
	require.NoError(t, err)
	assert.Equal(t, first.ID, byISBN.ID)

	_, err = s.GetBook(ctx, "bk-missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetBookByISBN(ctx, "0000000000")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testGetOrCreateBookConcurrent(t *testing.T, s store.Store) {
	ctx := context.Background()
	const workers = 8

	ids := make([]string, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, _, err := s.GetOrCreateBook(ctx, store.BookInput{
				ISBN:   "9781234567890",
				Title:  fmt.Sprintf("writer %d", i),
				Author: "A",
			})
			errs[i] = err
			if b != nil {
				ids[i] = b.ID
			}
		}(i)
	}
	wg.Wait()

	for i := range workers {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
}

func testGetOrCreateBookProperty(t *testing.T, s store.Store) {
	ctx := context.Background()
	rapid.Check(t, func(rt *rapid.T) {
		isbn := rapid.StringMatching(`[0-9]{13}`).Draw(rt, "isbn")
		title := rapid.StringMatching(`[A-Za-z ]{1,20}`).Draw(rt, "title")

		first, _, err := s.GetOrCreateBook(ctx, store.BookInput{ISBN: isbn, Title: title, Author: "A"})
		if err != nil {
			rt.Fatalf("first create: %v", err)
		}
		second, created, err := s.GetOrCreateBook(ctx, store.BookInput{ISBN: isbn, Title: title + "x", Author: "B"})
		if err != nil {
			rt.Fatalf("second create: %v", err)
		}
		if created {
			rt.Fatalf("second call created a new row for %s", isbn)
		}
		if first.ID != second.ID {
			rt.Fatalf("ids differ for %s: %s != %s", isbn, first.ID, second.ID)
		}
	})
}

func testUpdateBook(t *testing.T, s store.Store) {
	ctx := context.Background()
	b, _, err := s.GetOrCreateBook(ctx, store.BookInput{
		ISBN:        "9780000000001",
		Title:       entities.PlaceholderTitle,
		Author:      "Jane Austen",
		Description: "kept",
	})
	require.NoError(t, err)

	err = s.UpdateBook(ctx, b.ID, store.BookUpdate{Title: ptr("Emma"), Genre: ptr("Fiction")})
	require.NoError(t, err)

	got, err := s.GetBook(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Emma", got.Title)
	assert.Equal(t, "Fiction", got.Genre)
	assert.Equal(t, "Jane Austen", got.Author)
	assert.Equal(t, "kept", got.Description)

	err = s.UpdateBook(ctx, "bk-missing", store.BookUpdate{Title: ptr("x")})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testCreateUserBook(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "reader")
	b := mustBook(t, s, "9780000000002")

	ub, err := s.CreateUserBook(ctx, store.UserBookInput{UserID: u.ID, BookID: b.ID})
	require.NoError(t, err)
	assert.NotEmpty(t, ub.ID)
	assert.Equal(t, entities.SyncStatusPending, ub.SyncStatus)
	assert.Equal(t, entities.ReadingStatusToRead, ub.Status)
	assert.Nil(t, ub.Rating)
	assert.False(t, ub.DateAdded.IsZero())

	_, err = s.CreateUserBook(ctx, store.UserBookInput{UserID: u.ID, BookID: b.ID, Status: entities.ReadingStatusRead})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)

	list, err := s.ListUserBooks(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	found, err := s.FindUserBook(ctx, u.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, ub.ID, found.ID)

	_, err = s.GetUserBook(ctx, "ub-missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testUpdateUserBook(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "rater")
	b := mustBook(t, s, "9780000000003")

	ub, err := s.CreateUserBook(ctx, store.UserBookInput{UserID: u.ID, BookID: b.ID, Rating: ptr(3)})
	require.NoError(t, err)

	err = s.UpdateUserBook(ctx, ub.ID, store.UserBookUpdate{SyncStatus: ptr(entities.SyncStatusSynced)})
	require.NoError(t, err)

	got, err := s.GetUserBook(ctx, ub.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.SyncStatusSynced, got.SyncStatus)
	assert.Equal(t, entities.ReadingStatusToRead, got.Status)
	require.NotNil(t, got.Rating)
	assert.Equal(t, 3, *got.Rating)

	err = s.UpdateUserBook(ctx, ub.ID, store.UserBookUpdate{Status: ptr(entities.ReadingStatusReading), ClearRating: true})
	require.NoError(t, err)

	got, err = s.GetUserBook(ctx, ub.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.ReadingStatusReading, got.Status)
	assert.Nil(t, got.Rating)
	assert.Equal(t, entities.SyncStatusSynced, got.SyncStatus)

	err = s.UpdateUserBook(ctx, "ub-missing", store.UserBookUpdate{Rating: ptr(1)})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testListUserBooks(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	bob := mustUser(t, s, "bob")
	b1 := mustBook(t, s, "9780000000010")
	b2 := mustBook(t, s, "9780000000011")

	first, err := s.CreateUserBook(ctx, store.UserBookInput{UserID: alice.ID, BookID: b1.ID})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := s.CreateUserBook(ctx, store.UserBookInput{UserID: alice.ID, BookID: b2.ID})
	require.NoError(t, err)
	_, err = s.CreateUserBook(ctx, store.UserBookInput{UserID: bob.ID, BookID: b1.ID})
	require.NoError(t, err)

	list, err := s.ListUserBooks(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "newest first")
	assert.Equal(t, first.ID, list[1].ID)
	require.NotNil(t, list[0].Book)
	assert.Equal(t, b2.ISBN, list[0].Book.ISBN)

	empty, err := s.ListUserBooks(ctx, "usr-nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testListBySyncStatus(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "sweeper")
	pending, err := s.CreateUserBook(ctx, store.UserBookInput{UserID: u.ID, BookID: mustBook(t, s, "9780000000020").ID})
	require.NoError(t, err)
	failed, err := s.CreateUserBook(ctx, store.UserBookInput{
		UserID:     u.ID,
		BookID:     mustBook(t, s, "9780000000021").ID,
		SyncStatus: entities.SyncStatusFailed,
	})
	require.NoError(t, err)

	future := time.Now().Add(time.Minute)
	got, err := s.ListUserBooksBySyncStatus(ctx, entities.SyncStatusPending, future)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, pending.ID, got[0].ID)

	got, err = s.ListUserBooksBySyncStatus(ctx, entities.SyncStatusFailed, future)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, failed.ID, got[0].ID)

	got, err = s.ListUserBooksBySyncStatus(ctx, entities.SyncStatusPending, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testDeleteUserBook(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	bob := mustUser(t, s, "bob")
	b := mustBook(t, s, "9780000000030")

	aliceLink, err := s.CreateUserBook(ctx, store.UserBookInput{UserID: alice.ID, BookID: b.ID})
	require.NoError(t, err)
	bobLink, err := s.CreateUserBook(ctx, store.UserBookInput{UserID: bob.ID, BookID: b.ID})
	require.NoError(t, err)

	require.NoError(t, s.DeleteUserBook(ctx, aliceLink.ID))

	_, err = s.GetUserBook(ctx, aliceLink.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	book, err := s.GetBook(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ISBN, book.ISBN)

	survivor, err := s.GetUserBook(ctx, bobLink.ID)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, survivor.UserID)

	// the pair can be linked again after deletion
	_, err = s.CreateUserBook(ctx, store.UserBookInput{UserID: alice.ID, BookID: b.ID})
	assert.NoError(t, err)

	assert.ErrorIs(t, s.DeleteUserBook(ctx, aliceLink.ID), store.ErrNotFound)
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()

	count, err := s.CountUsers(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	u := mustUser(t, s, "carol")
	assert.NotEmpty(t, u.ID)

	_, err = s.CreateUser(ctx, store.UserInput{Username: "carol", Email: "other@example.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)
	_, err = s.CreateUser(ctx, store.UserInput{Username: "other", Email: "carol@example.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)

	byEmail, err := s.GetUserByEmail(ctx, "carol@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)
	assert.Equal(t, "hash", byEmail.PasswordHash)

	byName, err := s.GetUserByUsername(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)

	byID, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "carol", byID.Username)

	_, err = s.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)

	count, err = s.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
