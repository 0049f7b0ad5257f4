// Package badger provides a Badger-based implementation of the storage interface.
package badger

import (
	"context"
	"errors"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/sallie/companion/pkg/storage"
)

const defaultKeyPrefix = "sallie:"

// Config holds configuration for BadgerStorage.
type Config struct {
	Path              string
	SyncWrites        bool
	ValueLogFileSize  int64
	NumVersionsToKeep int
	// KeyPrefix namespaces every key written by this storage.
	KeyPrefix string
}

// BadgerStorage implements the Storage interface using Badger.
type BadgerStorage struct {
	db     *badger.DB
	config *Config
	prefix string
}

// NewBadgerStorage creates a new Badger storage instance.
func NewBadgerStorage(config *Config) (*BadgerStorage, error) {
	opts := badger.DefaultOptions(config.Path)
	opts.SyncWrites = config.SyncWrites
	if config.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = config.ValueLogFileSize
	}
	if config.NumVersionsToKeep > 0 {
		opts.NumVersionsToKeep = config.NumVersionsToKeep
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, &storage.StorageUnavailableError{Cause: err}
	}

	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}

	return &BadgerStorage{
		db:     db,
		config: config,
		prefix: prefix,
	}, nil
}

func (b *BadgerStorage) key(k string) []byte {
	return []byte(b.prefix + k)
}

// Get retrieves the value stored under key.
func (b *BadgerStorage) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(b.key(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, &storage.NotFoundError{Key: key}
		}
		return nil, &storage.StorageUnavailableError{Cause: err}
	}
	return value, nil
}

// Put stores value under key.
func (b *BadgerStorage) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(b.key(key), value)
	})
	if err != nil {
		return &storage.StorageUnavailableError{Cause: err}
	}
	return nil
}

// Delete removes key.
func (b *BadgerStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(b.key(key))
	})
	if err != nil {
		return &storage.StorageUnavailableError{Cause: err}
	}
	return nil
}

// Scan lists keys with the given prefix. Badger iterates in key order.
func (b *BadgerStorage) Scan(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var keys []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = b.key(prefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, strings.TrimPrefix(string(it.Item().Key()), b.prefix))
		}
		return nil
	})
	if err != nil {
		return nil, &storage.StorageUnavailableError{Cause: err}
	}
	return keys, nil
}

// Close closes the underlying Badger database.
func (b *BadgerStorage) Close() error {
	return b.db.Close()
}
