// Package badgerstore is the key-value store.Store backing on Badger.
//
// Every record lives under "<type>:<id>" and every lookup other than by id
// goes through an index key "<type>:idx:<name>:<value>" whose value is the
// record id. Records and their index keys are written in one transaction, and
// conflicting transactions are retried, so uniqueness holds under concurrency.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/mrlokans/booktracker/internal/store"
)

const (
	prefixBook     = "book:"
	prefixUserBook = "userbook:"
	prefixUser     = "user:"
	indexMarker    = "idx:"

	maxTxnRetries = 10
)

// Options control how the Badger database is opened.
type Options struct {
	InMemory bool // tests only
	Logger   *zap.Logger
}

type Store struct {
	db  *badger.DB
	log *zap.Logger
}

// Open opens (or creates) the Badger database in dir.
func Open(dir string, opts Options) (*Store, error) {
	bopts := badger.DefaultOptions(dir)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts.Logger = nil // Badger's own logging is noisy, errors surface through return values
	bopts.SyncWrites = !opts.InMemory

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("badgerstore")
	log.Info("badger database opened", zap.String("dir", dir), zap.Bool("in_memory", opts.InMemory))

	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(_ context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger database is closed")
	}
	return nil
}

// update runs fn in a read-write transaction, retrying on write conflicts.
func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	for attempt := 0; attempt < maxTxnRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debug("transaction conflict, retrying", zap.Int("attempt", attempt+1))
	}
	return fmt.Errorf("transaction conflict after %d attempts: %w", maxTxnRetries, badger.ErrConflict)
}

func recordKey(prefix, id string) []byte {
	return []byte(prefix + id)
}

func indexKey(prefix, name string, parts ...string) []byte {
	key := prefix + indexMarker + name
	for _, p := range parts {
		key += ":" + p
	}
	return []byte(key)
}

// getJSON loads the record at key into dest, mapping a missing key to store.ErrNotFound.
func getJSON(txn *badger.Txn, key []byte, dest any) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, dest)
	})
}

func setJSON(txn *badger.Txn, key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return txn.Set(key, data)
}

// lookupIndex returns the record id stored under an index key.
func lookupIndex(txn *badger.Txn, key []byte) (string, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return "", err
	}
	return string(val), nil
}

// scanRecords calls fn with the raw value of every record under prefix,
// skipping that prefix's index keys.
func scanRecords(txn *badger.Txn, prefix string, fn func(val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	indexPrefix := []byte(prefix + indexMarker)
	for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
		item := it.Item()
		if hasPrefix(item.Key(), indexPrefix) {
			continue
		}
		if err := item.Value(fn); err != nil {
			return err
		}
	}
	return nil
}

// scanIndexValues returns the values of all index keys under prefix.
func scanIndexValues(txn *badger.Txn, prefix []byte) ([]string, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var ids []string
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		val, err := it.Item().ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		ids = append(ids, string(val))
	}
	return ids, nil
}

func hasPrefix(key, prefix []byte) bool {
	return len(key) >= len(prefix) && string(key[:len(prefix)]) == string(prefix)
}
