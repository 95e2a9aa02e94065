package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/mrlokans/booktracker/internal/entities"
	"github.com/mrlokans/booktracker/internal/id"
	"github.com/mrlokans/booktracker/internal/store"
)

func userBookKey(linkID string) []byte {
	return recordKey(prefixUserBook, linkID)
}

func userBookPairKey(userID, bookID string) []byte {
	return indexKey(prefixUserBook, "pair", userID, bookID)
}

func userBookOwnerKey(userID, linkID string) []byte {
	return indexKey(prefixUserBook, "user", userID, linkID)
}

func userBookOwnerPrefix(userID string) []byte {
	return append(indexKey(prefixUserBook, "user", userID), ':')
}

// putUserBook stores the link without its hydrated Book.
func putUserBook(txn *badger.Txn, ub *entities.UserBook) error {
	record := *ub
	record.Book = nil
	record.User = nil
	return setJSON(txn, userBookKey(ub.ID), &record)
}

func (s *Store) CreateUserBook(ctx context.Context, in store.UserBookInput) (*entities.UserBook, error) {
	var created *entities.UserBook

	err := s.update(ctx, func(txn *badger.Txn) error {
		created = nil

		if _, err := txn.Get(userKey(in.UserID)); err != nil {
			return referenceError("user", in.UserID, err)
		}
		if _, err := txn.Get(bookKey(in.BookID)); err != nil {
			return referenceError("book", in.BookID, err)
		}

		_, err := lookupIndex(txn, userBookPairKey(in.UserID, in.BookID))
		if err == nil {
			return store.ErrAlreadyExists
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		linkID, err := id.Generate(id.PrefixUserBook)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		ub := &entities.UserBook{
			ID:         linkID,
			UserID:     in.UserID,
			BookID:     in.BookID,
			Status:     in.Status,
			Rating:     in.Rating,
			SyncStatus: in.SyncStatus,
			DateAdded:  now,
			UpdatedAt:  now,
		}
		if ub.Status == "" {
			ub.Status = entities.ReadingStatusToRead
		}
		if ub.SyncStatus == "" {
			ub.SyncStatus = entities.SyncStatusPending
		}

		if err := putUserBook(txn, ub); err != nil {
			return err
		}
		if err := txn.Set(userBookPairKey(in.UserID, in.BookID), []byte(linkID)); err != nil {
			return err
		}
		if err := txn.Set(userBookOwnerKey(in.UserID, linkID), []byte(linkID)); err != nil {
			return err
		}
		created = ub
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create user book: %w", err)
	}
	return created, nil
}

func referenceError(kind, refID string, err error) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%s %s: %w", kind, refID, store.ErrNotFound)
	}
	return err
}

func (s *Store) GetUserBook(_ context.Context, linkID string) (*entities.UserBook, error) {
	var ub entities.UserBook
	err := s.db.View(func(txn *badger.Txn) error {
		if err := getJSON(txn, userBookKey(linkID), &ub); err != nil {
			return err
		}
		return hydrateBook(txn, &ub)
	})
	if err != nil {
		return nil, err
	}
	return &ub, nil
}

func (s *Store) FindUserBook(_ context.Context, userID, bookID string) (*entities.UserBook, error) {
	var ub entities.UserBook
	err := s.db.View(func(txn *badger.Txn) error {
		linkID, err := lookupIndex(txn, userBookPairKey(userID, bookID))
		if err != nil {
			return err
		}
		return getJSON(txn, userBookKey(linkID), &ub)
	})
	if err != nil {
		return nil, err
	}
	return &ub, nil
}

func (s *Store) ListUserBooks(_ context.Context, userID string) ([]entities.UserBook, error) {
	var links []entities.UserBook
	err := s.db.View(func(txn *badger.Txn) error {
		linkIDs, err := scanIndexValues(txn, userBookOwnerPrefix(userID))
		if err != nil {
			return err
		}
		links = make([]entities.UserBook, 0, len(linkIDs))
		for _, linkID := range linkIDs {
			var ub entities.UserBook
			if err := getJSON(txn, userBookKey(linkID), &ub); err != nil {
				return fmt.Errorf("owner index points to missing link %s: %w", linkID, err)
			}
			if err := hydrateBook(txn, &ub); err != nil {
				return err
			}
			links = append(links, ub)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list user books: %w", err)
	}

	slices.SortFunc(links, func(a, b entities.UserBook) int {
		if c := b.DateAdded.Compare(a.DateAdded); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return links, nil
}

// ListUserBooksBySyncStatus scans every link record. Libraries are personal
// scale, so there is no status index to keep in step.
func (s *Store) ListUserBooksBySyncStatus(_ context.Context, status entities.SyncStatus, olderThan time.Time) ([]entities.UserBook, error) {
	var links []entities.UserBook
	err := s.db.View(func(txn *badger.Txn) error {
		return scanRecords(txn, prefixUserBook, func(val []byte) error {
			var ub entities.UserBook
			if err := json.Unmarshal(val, &ub); err != nil {
				return err
			}
			if ub.SyncStatus == status && ub.DateAdded.Before(olderThan) {
				links = append(links, ub)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list user books by sync status: %w", err)
	}

	slices.SortFunc(links, func(a, b entities.UserBook) int {
		return a.DateAdded.Compare(b.DateAdded)
	})
	return links, nil
}

func (s *Store) UpdateUserBook(ctx context.Context, linkID string, update store.UserBookUpdate) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		var ub entities.UserBook
		if err := getJSON(txn, userBookKey(linkID), &ub); err != nil {
			return err
		}
		if update.IsEmpty() {
			return nil
		}
		update.Apply(&ub)
		ub.UpdatedAt = time.Now().UTC()
		return putUserBook(txn, &ub)
	})
}

// DeleteUserBook removes the link and its index keys. The book record stays.
func (s *Store) DeleteUserBook(ctx context.Context, linkID string) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		var ub entities.UserBook
		if err := getJSON(txn, userBookKey(linkID), &ub); err != nil {
			return err
		}
		for _, key := range [][]byte{
			userBookKey(linkID),
			userBookPairKey(ub.UserID, ub.BookID),
			userBookOwnerKey(ub.UserID, linkID),
		} {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

func hydrateBook(txn *badger.Txn, ub *entities.UserBook) error {
	var book entities.Book
	if err := getJSON(txn, bookKey(ub.BookID), &book); err != nil {
		return fmt.Errorf("load book %s for link %s: %w", ub.BookID, ub.ID, err)
	}
	ub.Book = &book
	return nil
}
