package badgerstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/booktracker/internal/store"
	"github.com/mrlokans/booktracker/internal/store/storetest"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_StoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return setupTestStore(t)
	})
}

func TestStore_InMemory(t *testing.T) {
	s, err := Open("", Options{InMemory: true})
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	b, created, err := s.GetOrCreateBook(ctx, store.BookInput{ISBN: "9780306406157", Title: "T", Author: "A"})
	require.NoError(t, err)
	assert.True(t, created)

	got, err := s.GetBookByISBN(ctx, "9780306406157")
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
}

func TestStore_CreateUserBook_MissingReferences(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.CreateUserBook(context.Background(), store.UserBookInput{UserID: "usr-missing", BookID: "bk-missing"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_UserPasswordHashPersists(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, store.UserInput{Username: "reader", Email: "reader@example.com", PasswordHash: "$2a$12$hash"})
	require.NoError(t, err)

	u, err := s.GetUserByEmail(ctx, "reader@example.com")
	require.NoError(t, err)
	assert.Equal(t, "$2a$12$hash", u.PasswordHash)
}

func TestStore_LinkRecordDoesNotEmbedBook(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, store.UserInput{Username: "reader", Email: "reader@example.com", PasswordHash: "h"})
	require.NoError(t, err)
	b, _, err := s.GetOrCreateBook(ctx, store.BookInput{ISBN: "9780306406157", Title: "Old", Author: "A"})
	require.NoError(t, err)
	ub, err := s.CreateUserBook(ctx, store.UserBookInput{UserID: u.ID, BookID: b.ID})
	require.NoError(t, err)

	title := "New"
	require.NoError(t, s.UpdateBook(ctx, b.ID, store.BookUpdate{Title: &title}))

	got, err := s.GetUserBook(ctx, ub.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Book)
	assert.Equal(t, "New", got.Book.Title)
}

func TestStore_Ping(t *testing.T) {
	s, err := Open(t.TempDir(), Options{})
	require.NoError(t, err)

	assert.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Close())
	assert.Error(t, s.Ping(context.Background()))
}
