// Package library implements the per-user book operations behind the web
// UI and the JSON API. Every operation names its owner explicitly.
package library

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mrlokans/booktracker/internal/barcode"
	"github.com/mrlokans/booktracker/internal/dispatch"
	"github.com/mrlokans/booktracker/internal/entities"
	"github.com/mrlokans/booktracker/internal/store"
	"github.com/mrlokans/booktracker/internal/validation"
)

var (
	ErrAlreadyInLibrary = errors.New("book already in library")
	ErrForbidden        = errors.New("book belongs to another user")
)

// ValidationError lists the rejected input fields.
type ValidationError = validation.Error

type Store interface {
	store.BookStore
	store.UserBookStore
}

type Scanner interface {
	ScanISBN(payload string) (string, error)
}

type AddBookInput struct {
	ISBN          string                 `json:"isbn" form:"isbn" validate:"required,numeric,isbn_length"`
	Title         string                 `json:"title" form:"title" validate:"required,max=512"`
	Author        string                 `json:"author" form:"author" validate:"required,max=512"`
	Genre         string                 `json:"genre" form:"genre" validate:"max=128"`
	CoverImageURL string                 `json:"cover_image_url" form:"cover_image_url" validate:"omitempty,url,max=2048"`
	Description   string                 `json:"description" form:"description"`
	Status        entities.ReadingStatus `json:"status" form:"status" validate:"omitempty,oneof=to-read reading read"`
	Rating        *int                   `json:"rating" form:"rating" validate:"omitempty,gte=1,lte=5"`
}

// EditBookInput is a manual edit. Nil fields stay as they are.
type EditBookInput struct {
	Title         *string                 `json:"title" validate:"omitempty,max=512"`
	Author        *string                 `json:"author" validate:"omitempty,max=512"`
	Genre         *string                 `json:"genre" validate:"omitempty,max=128"`
	CoverImageURL *string                 `json:"cover_image_url" validate:"omitempty,url,max=2048"`
	Description   *string                 `json:"description"`
	Status        *entities.ReadingStatus `json:"status" validate:"omitempty,oneof=to-read reading read"`
	Rating        *int                    `json:"rating" validate:"omitempty,gte=1,lte=5"`
	ClearRating   bool                    `json:"clear_rating"`
}

// AddResult is the new library entry with its book.
type AddResult struct {
	UserBook    *entities.UserBook
	BookCreated bool
}

type Service struct {
	store      Store
	dispatcher dispatch.Dispatcher
	scanner    Scanner
	validator  *validation.Validator
	log        *zap.Logger
}

func NewService(s Store, dispatcher dispatch.Dispatcher, scanner Scanner, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if dispatcher == nil {
		dispatcher = dispatch.Noop{}
	}
	return &Service{
		store:      s,
		dispatcher: dispatcher,
		scanner:    scanner,
		validator:  validation.New(),
		log:        log.Named("library"),
	}
}

// AddBook links the book with in.ISBN to the user, creating the book from in
// when no one added it before. The new entry is pending until the fetch runs.
func (s *Service) AddBook(ctx context.Context, userID string, in AddBookInput) (*AddResult, error) {
	in.ISBN = cleanISBN(in.ISBN)
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.Genre = strings.TrimSpace(in.Genre)
	in.CoverImageURL = strings.TrimSpace(in.CoverImageURL)
	if err := s.validator.Validate(in); err != nil {
		return nil, err
	}

	book, created, err := s.store.GetOrCreateBook(ctx, store.BookInput{
		ISBN:          in.ISBN,
		Title:         in.Title,
		Author:        in.Author,
		Genre:         in.Genre,
		CoverImageURL: in.CoverImageURL,
		Description:   in.Description,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve book %s: %w", in.ISBN, err)
	}

	return s.addToLibrary(ctx, userID, book, created, in.Status, in.Rating)
}

// ScanBook resolves an ISBN from a barcode image and adds that book. A book
// nobody added before is created with placeholder title and author.
func (s *Service) ScanBook(ctx context.Context, userID, payload string) (*AddResult, error) {
	if s.scanner == nil {
		return nil, barcode.ErrCapabilityUnavailable
	}
	isbn, err := s.scanner.ScanISBN(payload)
	if err != nil {
		return nil, err
	}

	book, created, err := s.store.GetOrCreateBook(ctx, store.BookInput{
		ISBN:   isbn,
		Title:  entities.PlaceholderTitle,
		Author: entities.PlaceholderAuthor,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve book %s: %w", isbn, err)
	}

	return s.addToLibrary(ctx, userID, book, created, entities.ReadingStatusToRead, nil)
}

func (s *Service) addToLibrary(ctx context.Context, userID string, book *entities.Book, created bool, status entities.ReadingStatus, rating *int) (*AddResult, error) {
	if status == "" {
		status = entities.ReadingStatusToRead
	}

	ub, err := s.store.CreateUserBook(ctx, store.UserBookInput{
		UserID:     userID,
		BookID:     book.ID,
		Status:     status,
		Rating:     rating,
		SyncStatus: entities.SyncStatusPending,
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		return nil, ErrAlreadyInLibrary
	}
	if err != nil {
		return nil, fmt.Errorf("add book %s to library: %w", book.ID, err)
	}
	ub.Book = book

	s.log.Info("book added to library",
		zap.String("user_id", userID),
		zap.String("user_book_id", ub.ID),
		zap.String("isbn", book.ISBN),
		zap.Bool("book_created", created))

	s.dispatch(ctx, ub.ID)
	return &AddResult{UserBook: ub, BookCreated: created}, nil
}

// dispatch never fails the caller: an entry whose dispatch is lost stays pending.
func (s *Service) dispatch(ctx context.Context, userBookID string) {
	if err := s.dispatcher.Dispatch(ctx, userBookID); err != nil {
		s.log.Error("metadata fetch dispatch failed, entry stays pending",
			zap.String("user_book_id", userBookID), zap.Error(err))
	}
}

// ListBooks returns the user's library, newest first.
func (s *Service) ListBooks(ctx context.Context, userID string) ([]entities.UserBook, error) {
	return s.store.ListUserBooks(ctx, userID)
}

// GetUserBook returns the entry when userID owns it.
func (s *Service) GetUserBook(ctx context.Context, userID, userBookID string) (*entities.UserBook, error) {
	ub, err := s.store.GetUserBook(ctx, userBookID)
	if err != nil {
		return nil, err
	}
	if ub.UserID != userID {
		return nil, ErrForbidden
	}
	return ub, nil
}

// EditBook applies a manual edit and marks the entry synced, whatever its
// previous sync status. The book fields and the entry are separate writes.
func (s *Service) EditBook(ctx context.Context, userID, userBookID string, in EditBookInput) (*entities.UserBook, error) {
	ub, err := s.GetUserBook(ctx, userID, userBookID)
	if err != nil {
		return nil, err
	}

	trimPtr(in.Title)
	trimPtr(in.Author)
	trimPtr(in.Genre)
	trimPtr(in.CoverImageURL)
	if err := s.validateEdit(in); err != nil {
		return nil, err
	}

	bookUpdate := store.BookUpdate{
		Title:         in.Title,
		Author:        in.Author,
		Genre:         in.Genre,
		CoverImageURL: in.CoverImageURL,
		Description:   in.Description,
	}
	if !bookUpdate.IsEmpty() {
		if err := s.store.UpdateBook(ctx, ub.BookID, bookUpdate); err != nil {
			return nil, fmt.Errorf("update book %s: %w", ub.BookID, err)
		}
	}

	synced := entities.SyncStatusSynced
	err = s.store.UpdateUserBook(ctx, ub.ID, store.UserBookUpdate{
		Status:      in.Status,
		Rating:      in.Rating,
		ClearRating: in.ClearRating,
		SyncStatus:  &synced,
	})
	if err != nil {
		return nil, fmt.Errorf("update user book %s: %w", ub.ID, err)
	}

	s.log.Info("book edited", zap.String("user_id", userID), zap.String("user_book_id", ub.ID))
	return s.store.GetUserBook(ctx, ub.ID)
}

func (s *Service) validateEdit(in EditBookInput) error {
	// An empty cover URL clears the cover.
	if in.CoverImageURL != nil && *in.CoverImageURL == "" {
		in.CoverImageURL = nil
	}
	if err := s.validator.Validate(in); err != nil {
		return err
	}
	if in.Title != nil && *in.Title == "" {
		return validation.NewError("title", "is required")
	}
	if in.Author != nil && *in.Author == "" {
		return validation.NewError("author", "is required")
	}
	return nil
}

// DeleteBook removes the entry. The book stays for other readers.
func (s *Service) DeleteBook(ctx context.Context, userID, userBookID string) error {
	ub, err := s.GetUserBook(ctx, userID, userBookID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteUserBook(ctx, ub.ID); err != nil {
		return fmt.Errorf("delete user book %s: %w", ub.ID, err)
	}
	s.log.Info("book removed from library", zap.String("user_id", userID), zap.String("user_book_id", ub.ID))
	return nil
}

// Redispatch queues another fetch for an entry, regardless of owner.
func (s *Service) Redispatch(ctx context.Context, userBookID string) error {
	return s.dispatcher.Dispatch(ctx, userBookID)
}

func cleanISBN(isbn string) string {
	isbn = strings.TrimSpace(isbn)
	isbn = strings.ReplaceAll(isbn, "-", "")
	return strings.ReplaceAll(isbn, " ", "")
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}
