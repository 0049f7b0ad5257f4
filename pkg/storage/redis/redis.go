// Package redis provides a Redis-backed implementation of the storage interface.
package redis

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sallie/companion/pkg/storage"
)

// Config holds configuration for RedisStorage.
type Config struct {
	// Address is the Redis server address (host:port).
	Address string

	// Password is the optional AUTH password.
	Password string

	// DB is the logical database index.
	DB int

	// KeyPrefix namespaces every key written by this storage.
	KeyPrefix string

	// ScanCount is the COUNT hint passed to SCAN.
	ScanCount int64

	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Address:     "localhost:6379",
		KeyPrefix:   "sallie:",
		ScanCount:   100,
		DialTimeout: 5 * time.Second,
	}
}

// RedisStorage implements the Storage interface on top of a Redis client.
type RedisStorage struct {
	client    redis.Cmdable
	closer    io.Closer
	prefix    string
	scanCount int64
}

// NewRedisStorage dials Redis and verifies the connection with PING.
func NewRedisStorage(ctx context.Context, cfg *Config) (*RedisStorage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Address,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, &storage.StorageUnavailableError{Cause: err}
	}
	s := NewWithClient(client, cfg.KeyPrefix, cfg.ScanCount)
	s.closer = client
	return s, nil
}

// NewWithClient wraps an existing client. The caller keeps ownership of it.
func NewWithClient(client redis.Cmdable, prefix string, scanCount int64) *RedisStorage {
	if scanCount <= 0 {
		scanCount = 100
	}
	return &RedisStorage{
		client:    client,
		prefix:    prefix,
		scanCount: scanCount,
	}
}

func (r *RedisStorage) key(k string) string {
	return r.prefix + k
}

// Get retrieves the value stored under key.
func (r *RedisStorage) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, &storage.NotFoundError{Key: key}
		}
		return nil, &storage.StorageUnavailableError{Cause: err}
	}
	return value, nil
}

// Put stores value under key without expiration.
func (r *RedisStorage) Put(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return &storage.StorageUnavailableError{Cause: err}
	}
	return nil
}

// Delete removes key.
func (r *RedisStorage) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return &storage.StorageUnavailableError{Cause: err}
	}
	return nil
}

// Scan walks the keyspace with SCAN. Results are deduplicated and sorted.
func (r *RedisStorage) Scan(ctx context.Context, prefix string) ([]string, error) {
	match := escapeGlob(r.key(prefix)) + "*"
	seen := make(map[string]struct{})
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, match, r.scanCount).Result()
		if err != nil {
			return nil, &storage.StorageUnavailableError{Cause: err}
		}
		for _, k := range keys {
			seen[strings.TrimPrefix(k, r.prefix)] = struct{}{}
		}
		if next == 0 {
			break
		}
		cursor = next
	}

	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

// Close closes the client when this storage created it.
func (r *RedisStorage) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}
