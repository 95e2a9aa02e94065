// Package store defines the backing-agnostic persistence contract for users,
// books and the per-user library links.
//
// Two implementations exist:
//
//	database/     GORM over SQLite, referential integrity via foreign keys
//	badgerstore/  Badger key-value store, secondary index keys per lookup
//
// Both return the sentinel errors below so callers can match with errors.Is.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/mrlokans/booktracker/internal/entities"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// BookInput carries the fields used when a book is first created.
type BookInput struct {
	ISBN          string
	Title         string
	Author        string
	Genre         string
	CoverImageURL string
	Description   string
}

// BookUpdate lists every book field that can change after creation.
// Nil fields are left untouched.
type BookUpdate struct {
	Title         *string
	Author        *string
	Genre         *string
	CoverImageURL *string
	Description   *string
}

// IsEmpty reports whether no field is set.
func (u BookUpdate) IsEmpty() bool {
	return u.Title == nil && u.Author == nil && u.Genre == nil &&
		u.CoverImageURL == nil && u.Description == nil
}

// Apply copies the set fields onto b.
func (u BookUpdate) Apply(b *entities.Book) {
	if u.Title != nil {
		b.Title = *u.Title
	}
	if u.Author != nil {
		b.Author = *u.Author
	}
	if u.Genre != nil {
		b.Genre = *u.Genre
	}
	if u.CoverImageURL != nil {
		b.CoverImageURL = *u.CoverImageURL
	}
	if u.Description != nil {
		b.Description = *u.Description
	}
}

// UserBookInput carries the fields used when a book is linked to a user.
// An empty SyncStatus means pending and an empty Status means to-read.
type UserBookInput struct {
	UserID     string
	BookID     string
	Status     entities.ReadingStatus
	Rating     *int
	SyncStatus entities.SyncStatus
}

// UserBookUpdate lists the mutable link fields. Nil fields are left untouched.
// ClearRating removes an existing rating and takes precedence over Rating.
type UserBookUpdate struct {
	Status      *entities.ReadingStatus
	Rating      *int
	ClearRating bool
	SyncStatus  *entities.SyncStatus
}

func (u UserBookUpdate) IsEmpty() bool {
	return u.Status == nil && u.Rating == nil && !u.ClearRating && u.SyncStatus == nil
}

// Apply copies the set fields onto ub.
func (u UserBookUpdate) Apply(ub *entities.UserBook) {
	if u.Status != nil {
		ub.Status = *u.Status
	}
	if u.ClearRating {
		ub.Rating = nil
	} else if u.Rating != nil {
		r := *u.Rating
		ub.Rating = &r
	}
	if u.SyncStatus != nil {
		ub.SyncStatus = *u.SyncStatus
	}
}

// UserInput carries a new account. PasswordHash must already be hashed.
type UserInput struct {
	Username     string
	Email        string
	PasswordHash string
}

type BookStore interface {
	// GetOrCreateBook returns the book with in.ISBN, creating it from in when absent.
	// The boolean reports whether this call created the row.
	GetOrCreateBook(ctx context.Context, in BookInput) (*entities.Book, bool, error)
	GetBook(ctx context.Context, id string) (*entities.Book, error)
	GetBookByISBN(ctx context.Context, isbn string) (*entities.Book, error)
	UpdateBook(ctx context.Context, id string, update BookUpdate) error
}

type UserBookStore interface {
	// CreateUserBook links a user to a book, returning ErrAlreadyExists when the pair exists.
	CreateUserBook(ctx context.Context, in UserBookInput) (*entities.UserBook, error)
	GetUserBook(ctx context.Context, id string) (*entities.UserBook, error)
	FindUserBook(ctx context.Context, userID, bookID string) (*entities.UserBook, error)
	// ListUserBooks returns the user's library with Book populated, newest first.
	ListUserBooks(ctx context.Context, userID string) ([]entities.UserBook, error)
	// ListUserBooksBySyncStatus returns links in status added before olderThan.
	ListUserBooksBySyncStatus(ctx context.Context, status entities.SyncStatus, olderThan time.Time) ([]entities.UserBook, error)
	UpdateUserBook(ctx context.Context, id string, update UserBookUpdate) error
	// DeleteUserBook removes only the link. The book stays.
	DeleteUserBook(ctx context.Context, id string) error
}

type UserStore interface {
	CreateUser(ctx context.Context, in UserInput) (*entities.User, error)
	GetUserByID(ctx context.Context, id string) (*entities.User, error)
	GetUserByEmail(ctx context.Context, email string) (*entities.User, error)
	GetUserByUsername(ctx context.Context, username string) (*entities.User, error)
	CountUsers(ctx context.Context) (int64, error)
}

// Store is the full persistence contract.
type Store interface {
	BookStore
	UserBookStore
	UserStore
	Ping(ctx context.Context) error
	Close() error
}
