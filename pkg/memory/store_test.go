package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sallie/companion/pkg/clock"
	"github.com/sallie/companion/pkg/storage"
	memstorage "github.com/sallie/companion/pkg/storage/memory"
)

var testEpoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func setupTestStore(t *testing.T, opts Options) (*Store, *clock.Manual, storage.Storage) {
	t.Helper()
	clk := clock.NewManual(testEpoch)
	backend := memstorage.NewMemoryStorage()
	t.Cleanup(func() { backend.Close() })
	s := NewStore(opts, Deps{Storage: backend, Clock: clk})
	return s, clk, backend
}

// failingStorage reports every operation as unavailable.
type failingStorage struct{}

var errBackendDown = errors.New("backend down")

func (failingStorage) Get(context.Context, string) ([]byte, error) {
	return nil, &storage.StorageUnavailableError{Cause: errBackendDown}
}
func (failingStorage) Put(context.Context, string, []byte) error {
	return &storage.StorageUnavailableError{Cause: errBackendDown}
}
func (failingStorage) Delete(context.Context, string) error {
	return &storage.StorageUnavailableError{Cause: errBackendDown}
}
func (failingStorage) Scan(context.Context, string) ([]string, error) {
	return nil, &storage.StorageUnavailableError{Cause: errBackendDown}
}
func (failingStorage) Close() error { return nil }

func TestStore_ImportanceClamp(t *testing.T) {
	s, _, _ := setupTestStore(t, DefaultOptions())
	ctx := context.Background()

	high, err := s.StoreMemory(ctx, "an overly important thought", KindFact, WithImportance(1.5))
	require.NoError(t, err)
	low, err := s.StoreMemory(ctx, "a forgettable thought", KindFact, WithImportance(-0.2))
	require.NoError(t, err)
	def, err := s.StoreMemory(ctx, "an ordinary thought", KindFact)
	require.NoError(t, err)

	item, _, err := s.Get(high)
	require.NoError(t, err)
	assert.Equal(t, 1.0, item.Importance)

	item, _, err = s.Get(low)
	require.NoError(t, err)
	assert.Equal(t, 0.0, item.Importance)

	item, _, err = s.Get(def)
	require.NoError(t, err)
	assert.Equal(t, 0.5, item.Importance)
}

func TestStore_RejectsInvalidInput(t *testing.T) {
	s, _, _ := setupTestStore(t, DefaultOptions())
	ctx := context.Background()

	_, err := s.StoreMemory(ctx, "   ", KindFact)
	assert.ErrorIs(t, err, ErrEmptyContent)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = s.StoreMemory(ctx, "something", Kind("dream"))
	assert.ErrorIs(t, err, ErrInvalidKind)
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Equal(t, 0, s.Len())
}

func TestStore_DefaultsToConversation(t *testing.T) {
	s, _, _ := setupTestStore(t, DefaultOptions())

	id, err := s.StoreMemory(context.Background(), "hello there", "")
	require.NoError(t, err)

	item, partition, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, KindConversation, item.Kind)
	assert.Equal(t, ShortTerm, partition)
}

func TestStore_Associations(t *testing.T) {
	s, _, _ := setupTestStore(t, DefaultOptions())
	ctx := context.Background()

	first, err := s.StoreMemory(ctx, "I love hiking in the mountains", KindExperience, WithTags("hiking", "outdoors"))
	require.NoError(t, err)
	second, err := s.StoreMemory(ctx, "Hiking in the mountains is my favorite", KindExperience, WithTags("Outdoors", "hiking"))
	require.NoError(t, err)
	unrelated, err := s.StoreMemory(ctx, "The capital of France is Paris", KindFact)
	require.NoError(t, err)

	a, _, _ := s.Get(first)
	b, _, _ := s.Get(second)
	c, _, _ := s.Get(unrelated)

	assert.Equal(t, []string{second}, a.Associations)
	assert.Equal(t, []string{first}, b.Associations)
	assert.Empty(t, c.Associations)
	assert.Equal(t, []string{"hiking", "outdoors"}, b.Tags)
	assert.Equal(t, 1, s.Stats().Associations)
}

func TestStore_RetrievalRecencyOrdering(t *testing.T) {
	s, clk, _ := setupTestStore(t, DefaultOptions())
	ctx := context.Background()

	old, err := s.StoreMemory(ctx, "User drinks green tea", KindPreference)
	require.NoError(t, err)
	clk.Advance(40 * 24 * time.Hour)
	recent, err := s.StoreMemory(ctx, "User drinks green tea", KindPreference)
	require.NoError(t, err)

	results, err := s.RetrieveRelevant(ctx, "green tea")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, recent, results[0].ID)
	assert.Equal(t, old, results[1].ID)
}

func TestStore_TieBreakByID(t *testing.T) {
	s, _, _ := setupTestStore(t, DefaultOptions())
	ctx := context.Background()

	// Identical content at the same instant scores identically.
	_, err := s.StoreMemory(ctx, "pizza night", KindConversation)
	require.NoError(t, err)
	_, err = s.StoreMemory(ctx, "pizza night", KindConversation)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		results, err := s.RetrieveRelevant(ctx, "pizza")
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Less(t, results[0].ID, results[1].ID)
	}
}

func TestStore_HikingScenario(t *testing.T) {
	s, _, _ := setupTestStore(t, DefaultOptions())
	ctx := context.Background()

	_, err := s.StoreMemory(ctx, "User prefers tea over coffee", KindPreference)
	require.NoError(t, err)
	id, err := s.StoreMemory(ctx, "User loves hiking on weekends", KindPreference,
		WithImportance(0.9), WithTags("hiking", "weekend"))
	require.NoError(t, err)

	results, err := s.RetrieveRelevant(ctx, "What does the user enjoy on weekends?")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, id, results[0].ID)
}

func TestStore_RetrieveUpdatesAccess(t *testing.T) {
	s, clk, _ := setupTestStore(t, DefaultOptions())
	ctx := context.Background()

	id, err := s.StoreMemory(ctx, "the cat is named Miso", KindFact)
	require.NoError(t, err)

	clk.Advance(time.Hour)
	results, err := s.RetrieveRelevant(ctx, "cat name Miso")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].AccessCount)

	item, _, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, 1, item.AccessCount)
	assert.True(t, item.LastAccessedAt.Equal(clk.Now()))

	// Returned items are copies.
	results[0].Content = "mutated"
	item, _, _ = s.Get(id)
	assert.Equal(t, "the cat is named Miso", item.Content)
}

func TestStore_RetrieveFilters(t *testing.T) {
	s, _, _ := setupTestStore(t, DefaultOptions())
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := s.StoreMemory(ctx, fmt.Sprintf("coffee chat number %d", i), KindConversation)
		require.NoError(t, err)
	}
	factID, err := s.StoreMemory(ctx, "coffee contains caffeine", KindFact)
	require.NoError(t, err)

	results, err := s.RetrieveRelevant(ctx, "coffee", WithKind(KindFact))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, factID, results[0].ID)

	results, err = s.RetrieveRelevant(ctx, "coffee", WithLimit(2))
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = s.RetrieveRelevant(ctx, "quantum physics")
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = s.RetrieveRelevant(ctx, "coffee", WithKind(Kind("dream")))
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestStore_GetContext(t *testing.T) {
	s, _, _ := setupTestStore(t, DefaultOptions())
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		_, err := s.StoreMemory(ctx, fmt.Sprintf("we talked about music, take %d", i), KindConversation)
		require.NoError(t, err)
	}
	_, err := s.StoreMemory(ctx, "went to a music festival", KindExperience)
	require.NoError(t, err)
	_, err = s.StoreMemory(ctx, "prefers jazz music", KindPreference)
	require.NoError(t, err)
	_, err = s.StoreMemory(ctx, "music makes the user calm", KindEmotion)
	require.NoError(t, err)
	_, err = s.StoreMemory(ctx, "music theory has twelve notes", KindFact)
	require.NoError(t, err)

	mc, err := s.GetContext(ctx, "music")
	require.NoError(t, err)
	assert.Len(t, mc.Conversation, 5)
	assert.Len(t, mc.Experience, 1)
	assert.Len(t, mc.Preference, 1)
	assert.Len(t, mc.Emotion, 1)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.GetContext(cancelled, "music")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_RoundTrip(t *testing.T) {
	s, clk, backend := setupTestStore(t, DefaultOptions())
	ctx := context.Background()

	_, err := s.StoreMemory(ctx, "User loves hiking", KindPreference, WithImportance(0.9), WithTags("hiking"))
	require.NoError(t, err)
	_, err = s.StoreMemory(ctx, "User went hiking in the Alps", KindExperience, WithTags("hiking"))
	require.NoError(t, err)
	_, err = s.StoreMemory(ctx, "Water boils at 100 degrees", KindFact, WithImportance(0.3))
	require.NoError(t, err)
	clk.Advance(time.Minute)
	_, err = s.Consolidate(ctx)
	require.NoError(t, err)

	restored := NewStore(DefaultOptions(), Deps{Storage: backend, Clock: clk})
	require.NoError(t, restored.Load(ctx))

	for _, p := range []Partition{ShortTerm, LongTerm} {
		want := s.Items(p)
		got := restored.Items(p)
		require.Len(t, got, len(want), "partition %s", p)
		for i := range want {
			assert.Equal(t, want[i].ID, got[i].ID)
			assert.Equal(t, want[i].Content, got[i].Content)
			assert.Equal(t, want[i].Importance, got[i].Importance)
			assert.Equal(t, want[i].Kind, got[i].Kind)
			assert.Equal(t, want[i].Tags, got[i].Tags)
			assert.Equal(t, want[i].Associations, got[i].Associations)
			assert.True(t, want[i].CreatedAt.Equal(got[i].CreatedAt))
		}
	}
	assert.Len(t, restored.Items(LongTerm), 1)
}

func TestStore_LoadMissingStartsEmpty(t *testing.T) {
	s, _, _ := setupTestStore(t, DefaultOptions())
	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, 0, s.Len())
}

func TestStore_LoadCorruptStartsEmpty(t *testing.T) {
	s, _, backend := setupTestStore(t, DefaultOptions())
	ctx := context.Background()

	require.NoError(t, backend.Put(ctx, storage.KeyMemoryShortTerm, []byte("{not json")))
	require.NoError(t, backend.Put(ctx, storage.KeyMemoryLongTerm, []byte(`[{"id":"a","content":"kept","kind":"fact","importance":0.4}]`)))

	require.NoError(t, s.Load(ctx))
	assert.Empty(t, s.Items(ShortTerm))
	assert.Len(t, s.Items(LongTerm), 1)
}

func TestStore_LoadSanitizes(t *testing.T) {
	s, _, backend := setupTestStore(t, DefaultOptions())
	ctx := context.Background()

	short := `[
		{"id":"a","content":"first","kind":"fact","importance":2.5,"associations":["a","b","ghost"]},
		{"id":"dup","content":"short copy","kind":"fact","importance":0.5},
		{"id":"bad","content":"unknown kind","kind":"dream","importance":0.5},
		{"id":"","content":"no id","kind":"fact"}
	]`
	long := `[
		{"id":"b","content":"second","kind":"fact","importance":-1,"tags":["Zed","alpha","alpha"]},
		{"id":"dup","content":"long copy","kind":"fact","importance":0.5}
	]`
	require.NoError(t, backend.Put(ctx, storage.KeyMemoryShortTerm, []byte(short)))
	require.NoError(t, backend.Put(ctx, storage.KeyMemoryLongTerm, []byte(long)))

	require.NoError(t, s.Load(ctx))
	assert.Equal(t, 3, s.Len())

	a, p, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, ShortTerm, p)
	assert.Equal(t, 1.0, a.Importance)
	assert.Equal(t, []string{"b"}, a.Associations)

	b, _, err := s.Get("b")
	require.NoError(t, err)
	assert.Equal(t, 0.0, b.Importance)
	assert.Equal(t, []string{"alpha", "zed"}, b.Tags)
	assert.Equal(t, []string{"a"}, b.Associations, "associations are made symmetric")

	dup, p, err := s.Get("dup")
	require.NoError(t, err)
	assert.Equal(t, LongTerm, p)
	assert.Equal(t, "long copy", dup.Content)

	_, _, err = s.Get("bad")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_PersistenceUnavailable(t *testing.T) {
	s := NewStore(DefaultOptions(), Deps{Storage: failingStorage{}, Clock: clock.NewManual(testEpoch)})
	ctx := context.Background()

	require.NoError(t, s.Load(ctx))
	assert.Equal(t, 0, s.Len())

	id, err := s.StoreMemory(ctx, "remember this anyway", KindFact)
	require.NoError(t, err)
	_, _, err = s.Get(id)
	require.NoError(t, err, "in-memory state stays authoritative")

	results, err := s.RetrieveRelevant(ctx, "remember")
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestStore_WithoutStorage(t *testing.T) {
	s := NewStore(Options{}, Deps{})
	ctx := context.Background()

	require.NoError(t, s.Load(ctx))
	_, err := s.StoreMemory(ctx, "ephemeral", KindFact)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, DefaultOptions().ShortTermCapacity, s.Options().ShortTermCapacity)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s, _, _ := setupTestStore(t, DefaultOptions())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_, err := s.StoreMemory(ctx, fmt.Sprintf("worker %d note %d about gardens", n, j), KindExperience)
				assert.NoError(t, err)
				_, err = s.RetrieveRelevant(ctx, "gardens")
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 10; j++ {
			_, err := s.Consolidate(ctx)
			assert.NoError(t, err)
		}
	}()
	wg.Wait()

	assert.Equal(t, 80, s.Len())
}
