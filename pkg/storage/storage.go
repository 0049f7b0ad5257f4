// Package storage provides the persistence abstraction for companion state.
//
// Components serialize their state as opaque blobs under fixed keys. A Storage
// only has to move bytes; it knows nothing about memories or traits.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Well-known keys used by the companion components.
const (
	KeyMemoryShortTerm  = "memory_short_term"
	KeyMemoryLongTerm   = "memory_long_term"
	KeyPersonalityState = "personality_state"
	KeyEmotionState     = "emotion_state"
)

// Storage defines the repository interface for persisted blobs.
type Storage interface {
	// Get returns the value stored under key, or a *NotFoundError.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Scan returns all keys starting with prefix in lexical order.
	Scan(ctx context.Context, prefix string) ([]string, error)

	// Close releases backend resources.
	Close() error
}

// NotFoundError indicates that the requested key does not exist.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("key not found: %s", e.Key)
}

// StorageUnavailableError indicates that the storage backend is unavailable.
// Callers treat it as transient.
type StorageUnavailableError struct {
	Cause error
}

func (e *StorageUnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable: %v", e.Cause)
}

func (e *StorageUnavailableError) Unwrap() error {
	return e.Cause
}

// SerializationError indicates a failure in data serialization/deserialization.
type SerializationError struct {
	Operation string
	Key       string
	Cause     error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialization error during %s of %s: %v", e.Operation, e.Key, e.Cause)
}

func (e *SerializationError) Unwrap() error {
	return e.Cause
}

// IsNotFound reports whether err is a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsUnavailable reports whether err is a *StorageUnavailableError.
func IsUnavailable(err error) bool {
	var ue *StorageUnavailableError
	return errors.As(err, &ue)
}

// IsCorrupt reports whether err is a *SerializationError.
func IsCorrupt(err error) bool {
	var se *SerializationError
	return errors.As(err, &se)
}

// SaveJSON marshals v and stores it under key.
func SaveJSON(ctx context.Context, s Storage, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return &SerializationError{Operation: "marshal", Key: key, Cause: err}
	}
	return s.Put(ctx, key, data)
}

// LoadJSON reads key and unmarshals it into v. It reports found=false with a
// nil error when the key does not exist.
func LoadJSON(ctx context.Context, s Storage, key string, v any) (found bool, err error) {
	data, err := s.Get(ctx, key)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, &SerializationError{Operation: "unmarshal", Key: key, Cause: err}
	}
	return true, nil
}
