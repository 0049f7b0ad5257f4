package storage

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
)

// StorageTestSuite defines a test suite that can be run against any Storage implementation.
type StorageTestSuite struct {
	NewStorage func(t *testing.T) Storage
}

// RunAllTests runs all storage tests against the provided storage implementation.
func (s *StorageTestSuite) RunAllTests(t *testing.T) {
	t.Run("PutAndGet", s.TestPutAndGet)
	t.Run("Overwrite", s.TestOverwrite)
	t.Run("GetNotFound", s.TestGetNotFound)
	t.Run("Delete", s.TestDelete)
	t.Run("ScanPrefix", s.TestScanPrefix)
	t.Run("JSONRoundTrip", s.TestJSONRoundTrip)
	t.Run("ConcurrentAccess", s.TestConcurrentAccess)
}

// TestPutAndGet tests the basic write/read path.
func (s *StorageTestSuite) TestPutAndGet(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	ctx := context.Background()
	want := []byte(`{"hello":"world"}`)

	if err := store.Put(ctx, "greeting", want); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(ctx, "greeting")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("expected %q, got %q", want, got)
	}
}

// TestOverwrite tests that Put replaces an existing value.
func (s *StorageTestSuite) TestOverwrite(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.Put(ctx, "k", []byte("v1")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Put(ctx, "k", []byte("v2")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "v2" {
		t.Errorf("expected v2, got %q", got)
	}
}

// TestGetNotFound tests that missing keys report a NotFoundError.
func (s *StorageTestSuite) TestGetNotFound(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	_, err := store.Get(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error for missing key")
	}
	if !IsNotFound(err) {
		t.Errorf("expected NotFoundError, got %T: %v", err, err)
	}
}

// TestDelete tests key removal, including removal of a missing key.
func (s *StorageTestSuite) TestDelete(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.Put(ctx, "doomed", []byte("x")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Delete(ctx, "doomed"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "doomed"); !IsNotFound(err) {
		t.Errorf("expected NotFoundError after delete, got %v", err)
	}
	if err := store.Delete(ctx, "never-existed"); err != nil {
		t.Errorf("deleting a missing key should succeed, got %v", err)
	}
}

// TestScanPrefix tests prefix listing and ordering.
func (s *StorageTestSuite) TestScanPrefix(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	ctx := context.Background()
	for _, k := range []string{"memory_long_term", "memory_short_term", "personality_state"} {
		if err := store.Put(ctx, k, []byte("{}")); err != nil {
			t.Fatalf("Put %s failed: %v", k, err)
		}
	}

	keys, err := store.Scan(ctx, "memory_")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d: %v", len(keys), keys)
	}
	if keys[0] != "memory_long_term" || keys[1] != "memory_short_term" {
		t.Errorf("unexpected scan order: %v", keys)
	}

	all, err := store.Scan(ctx, "")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 keys for empty prefix, got %d", len(all))
	}
}

// TestJSONRoundTrip tests the SaveJSON/LoadJSON helpers against the backend.
func (s *StorageTestSuite) TestJSONRoundTrip(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	ctx := context.Background()
	type snapshot struct {
		Name   string             `json:"name"`
		Values map[string]float64 `json:"values"`
	}
	in := snapshot{Name: "traits", Values: map[string]float64{"empathy": 0.8}}

	if err := SaveJSON(ctx, store, KeyPersonalityState, in); err != nil {
		t.Fatalf("SaveJSON failed: %v", err)
	}

	var out snapshot
	found, err := LoadJSON(ctx, store, KeyPersonalityState, &out)
	if err != nil {
		t.Fatalf("LoadJSON failed: %v", err)
	}
	if !found {
		t.Fatal("expected key to be found")
	}
	if out.Name != in.Name || out.Values["empathy"] != 0.8 {
		t.Errorf("round trip mismatch: %+v", out)
	}

	found, err = LoadJSON(ctx, store, "absent", &out)
	if err != nil || found {
		t.Errorf("expected found=false, err=nil for absent key, got %v, %v", found, err)
	}

	if err := store.Put(ctx, "broken", []byte("{not json")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := LoadJSON(ctx, store, "broken", &out); !IsCorrupt(err) {
		t.Errorf("expected SerializationError, got %v", err)
	}
}

// TestConcurrentAccess tests concurrent writers on distinct keys.
func (s *StorageTestSuite) TestConcurrentAccess(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	ctx := context.Background()
	const workers = 10

	var wg sync.WaitGroup
	errs := make(chan error, workers*2)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("concurrent_%02d", n)
			if err := store.Put(ctx, key, []byte(key)); err != nil {
				errs <- err
				return
			}
			if _, err := store.Get(ctx, key); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent operation failed: %v", err)
	}

	keys, err := store.Scan(ctx, "concurrent_")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(keys) != workers {
		t.Errorf("expected %d keys, got %d", workers, len(keys))
	}
}
