package storage

import (
	"context"
	"errors"
	"time"
)

// TimeoutStorage bounds every call on the wrapped Storage with a deadline.
// A deadline overrun surfaces as a *StorageUnavailableError.
type TimeoutStorage struct {
	next    Storage
	timeout time.Duration
}

// WithTimeout wraps s so that each operation is bounded by timeout.
// A non-positive timeout returns s unchanged.
func WithTimeout(s Storage, timeout time.Duration) Storage {
	if timeout <= 0 {
		return s
	}
	return &TimeoutStorage{next: s, timeout: timeout}
}

func (t *TimeoutStorage) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	v, err := t.next.Get(ctx, key)
	return v, t.classify(ctx, err)
}

func (t *TimeoutStorage) Put(ctx context.Context, key string, value []byte) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.classify(ctx, t.next.Put(ctx, key, value))
}

func (t *TimeoutStorage) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.classify(ctx, t.next.Delete(ctx, key))
}

func (t *TimeoutStorage) Scan(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	keys, err := t.next.Scan(ctx, prefix)
	return keys, t.classify(ctx, err)
}

func (t *TimeoutStorage) Close() error {
	return t.next.Close()
}

func (t *TimeoutStorage) classify(ctx context.Context, err error) error {
	if err == nil || IsNotFound(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		if IsUnavailable(err) {
			return err
		}
		return &StorageUnavailableError{Cause: err}
	}
	return err
}
