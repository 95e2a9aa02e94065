package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/mrlokans/booktracker/internal/entities"
	"github.com/mrlokans/booktracker/internal/id"
	"github.com/mrlokans/booktracker/internal/store"
)

func bookKey(bookID string) []byte {
	return recordKey(prefixBook, bookID)
}

func bookISBNKey(isbn string) []byte {
	return indexKey(prefixBook, "isbn", isbn)
}

// GetOrCreateBook reads the ISBN index and writes the book in the same
// transaction. A concurrent creator makes this commit conflict, and the retry
// then finds the winner through the index.
func (s *Store) GetOrCreateBook(ctx context.Context, in store.BookInput) (*entities.Book, bool, error) {
	var (
		book    *entities.Book
		created bool
	)

	err := s.update(ctx, func(txn *badger.Txn) error {
		book, created = nil, false

		existingID, err := lookupIndex(txn, bookISBNKey(in.ISBN))
		switch {
		case err == nil:
			var existing entities.Book
			if err := getJSON(txn, bookKey(existingID), &existing); err != nil {
				return fmt.Errorf("book index points to missing record %s: %w", existingID, err)
			}
			book = &existing
			return nil
		case !errors.Is(err, store.ErrNotFound):
			return err
		}

		bookID, err := id.Generate(id.PrefixBook)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		fresh := &entities.Book{
			ID:            bookID,
			ISBN:          in.ISBN,
			Title:         in.Title,
			Author:        in.Author,
			Genre:         in.Genre,
			CoverImageURL: in.CoverImageURL,
			Description:   in.Description,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := setJSON(txn, bookKey(bookID), fresh); err != nil {
			return err
		}
		if err := txn.Set(bookISBNKey(in.ISBN), []byte(bookID)); err != nil {
			return err
		}
		book, created = fresh, true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("get or create book %s: %w", in.ISBN, err)
	}
	return book, created, nil
}

func (s *Store) GetBook(_ context.Context, bookID string) (*entities.Book, error) {
	var book entities.Book
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, bookKey(bookID), &book)
	})
	if err != nil {
		return nil, err
	}
	return &book, nil
}

func (s *Store) GetBookByISBN(_ context.Context, isbn string) (*entities.Book, error) {
	var book entities.Book
	err := s.db.View(func(txn *badger.Txn) error {
		bookID, err := lookupIndex(txn, bookISBNKey(isbn))
		if err != nil {
			return err
		}
		return getJSON(txn, bookKey(bookID), &book)
	})
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// UpdateBook is a read-modify-write of the record. Only fields set on update
// change, and a concurrent update of the same book forces a retry against
// the newer value.
func (s *Store) UpdateBook(ctx context.Context, bookID string, update store.BookUpdate) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		var book entities.Book
		if err := getJSON(txn, bookKey(bookID), &book); err != nil {
			return err
		}
		if update.IsEmpty() {
			return nil
		}
		update.Apply(&book)
		book.UpdatedAt = time.Now().UTC()
		return setJSON(txn, bookKey(bookID), &book)
	})
}
