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

// userRecord is the stored form of a user. entities.User hides the password
// hash from JSON, so the record carries it explicitly.
type userRecord struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (r userRecord) toEntity() *entities.User {
	return &entities.User{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func userKey(userID string) []byte {
	return recordKey(prefixUser, userID)
}

func userEmailKey(email string) []byte {
	return indexKey(prefixUser, "email", email)
}

func userUsernameKey(username string) []byte {
	return indexKey(prefixUser, "username", username)
}

func (s *Store) CreateUser(ctx context.Context, in store.UserInput) (*entities.User, error) {
	var created *entities.User

	err := s.update(ctx, func(txn *badger.Txn) error {
		created = nil

		for _, key := range [][]byte{userUsernameKey(in.Username), userEmailKey(in.Email)} {
			_, err := lookupIndex(txn, key)
			if err == nil {
				return store.ErrAlreadyExists
			}
			if !errors.Is(err, store.ErrNotFound) {
				return err
			}
		}

		userID, err := id.Generate(id.PrefixUser)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		record := userRecord{
			ID:           userID,
			Username:     in.Username,
			Email:        in.Email,
			PasswordHash: in.PasswordHash,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := setJSON(txn, userKey(userID), record); err != nil {
			return err
		}
		if err := txn.Set(userUsernameKey(in.Username), []byte(userID)); err != nil {
			return err
		}
		if err := txn.Set(userEmailKey(in.Email), []byte(userID)); err != nil {
			return err
		}
		created = record.toEntity()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

func (s *Store) GetUserByID(_ context.Context, userID string) (*entities.User, error) {
	return s.findUser(func(*badger.Txn) (string, error) { return userID, nil })
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*entities.User, error) {
	return s.findUser(func(txn *badger.Txn) (string, error) {
		return lookupIndex(txn, userEmailKey(email))
	})
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*entities.User, error) {
	return s.findUser(func(txn *badger.Txn) (string, error) {
		return lookupIndex(txn, userUsernameKey(username))
	})
}

func (s *Store) CountUsers(_ context.Context) (int64, error) {
	var count int64
	err := s.db.View(func(txn *badger.Txn) error {
		return scanRecords(txn, prefixUser, func([]byte) error {
			count++
			return nil
		})
	})
	return count, err
}

func (s *Store) findUser(resolve func(txn *badger.Txn) (string, error)) (*entities.User, error) {
	var record userRecord
	err := s.db.View(func(txn *badger.Txn) error {
		userID, err := resolve(txn)
		if err != nil {
			return err
		}
		return getJSON(txn, userKey(userID), &record)
	})
	if err != nil {
		return nil, err
	}
	return record.toEntity(), nil
}
