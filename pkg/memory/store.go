package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/sallie/companion/pkg/clock"
	"github.com/sallie/companion/pkg/storage"
)

var tracer = otel.Tracer("github.com/sallie/companion/pkg/memory")

// Logger is the minimal logger interface used by Store.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(msg string, args ...any) {}
func (nopLogger) Info(msg string, args ...any)  {}
func (nopLogger) Warn(msg string, args ...any)  {}
func (nopLogger) Error(msg string, args ...any) {}

// Recorder receives store metrics.
type Recorder interface {
	RecordMemoryStored(kind string)
	RecordMemoryRetrieval(results int, duration time.Duration)
	RecordConsolidation(promoted, evicted, decayed int, duration time.Duration)
	SetMemoryPartitionSize(partition string, size int)
	RecordStorageError(component, operation string)
}

type nopRecorder struct{}

func (nopRecorder) RecordMemoryStored(string)                        {}
func (nopRecorder) RecordMemoryRetrieval(int, time.Duration)         {}
func (nopRecorder) RecordConsolidation(int, int, int, time.Duration) {}
func (nopRecorder) SetMemoryPartitionSize(string, int)               {}
func (nopRecorder) RecordStorageError(string, string)                {}

// Deps wires the collaborators of a Store. Every field is optional.
type Deps struct {
	// Storage persists both partitions. Nil disables persistence.
	Storage storage.Storage
	Clock   clock.Clock
	Logger  Logger
	Metrics Recorder
}

// Store holds short-term and long-term memory items.
type Store struct {
	mu    sync.RWMutex
	opts  Options
	short map[string]*Item
	long  map[string]*Item
	// terms caches the content term set of every item.
	terms map[string]map[string]struct{}

	backend storage.Storage
	clock   clock.Clock
	logger  Logger
	metrics Recorder

	persistMu     sync.Mutex
	consolidating atomic.Bool
}

// NewStore creates an empty store. Call Load to restore persisted state.
func NewStore(opts Options, deps Deps) *Store {
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Logger == nil {
		deps.Logger = nopLogger{}
	}
	if deps.Metrics == nil {
		deps.Metrics = nopRecorder{}
	}
	return &Store{
		opts:    opts.withDefaults(),
		short:   make(map[string]*Item),
		long:    make(map[string]*Item),
		terms:   make(map[string]map[string]struct{}),
		backend: deps.Storage,
		clock:   deps.Clock,
		logger:  deps.Logger,
		metrics: deps.Metrics,
	}
}

// Options returns the effective options.
func (s *Store) Options() Options {
	return s.opts
}

// StoreMemory records a new short-term item and links it to similar items.
func (s *Store) StoreMemory(ctx context.Context, content string, kind Kind, opts ...StoreOption) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyContent
	}
	if kind == "" {
		kind = KindConversation
	}
	if !kind.Valid() {
		return "", ErrInvalidKind
	}

	var p storeParams
	for _, opt := range opts {
		opt(&p)
	}
	importance := s.opts.DefaultImportance
	if p.importance != nil {
		importance = *p.importance
	}

	now := s.clock.Now()
	item := &Item{
		ID:             uuid.New().String(),
		Content:        content,
		Kind:           kind,
		Importance:     clamp01(importance),
		CreatedAt:      now,
		LastAccessedAt: now,
		Tags:           normalizeTags(p.tags),
	}
	terms := termSet(content)

	s.mu.Lock()
	linked := 0
	s.forEachLocked(func(other *Item) {
		if s.opts.similarity(item, other, terms, s.terms[other.ID]) > s.opts.AssociationThreshold {
			item.Associations = addID(item.Associations, other.ID)
			other.Associations = addID(other.Associations, item.ID)
			linked++
		}
	})
	s.short[item.ID] = item
	s.terms[item.ID] = terms
	shortLen := len(s.short)
	s.mu.Unlock()

	s.logger.Debug("memory stored", "id", item.ID, "kind", kind, "importance", item.Importance, "associations", linked)
	s.metrics.RecordMemoryStored(string(kind))
	s.metrics.SetMemoryPartitionSize(string(ShortTerm), shortLen)

	s.persist(ctx)
	return item.ID, nil
}

type scoredItem struct {
	item  *Item
	score float64
}

// RetrieveRelevant returns the items most relevant to query, best first.
// Returned items have their access statistics updated.
func (s *Store) RetrieveRelevant(ctx context.Context, query string, opts ...RetrieveOption) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := retrieveParams{limit: s.opts.DefaultLimit}
	for _, opt := range opts {
		opt(&p)
	}
	if p.kind != "" && !p.kind.Valid() {
		return nil, ErrInvalidKind
	}
	if p.limit <= 0 {
		p.limit = s.opts.DefaultLimit
	}

	items := s.retrieve(query, p)
	if len(items) > 0 {
		s.persist(ctx)
	}
	return items, nil
}

func (s *Store) retrieve(query string, p retrieveParams) []Item {
	start := time.Now()
	queryTerms := termSet(query)

	s.mu.Lock()
	now := s.clock.Now()
	var candidates []scoredItem
	if len(queryTerms) > 0 {
		s.forEachLocked(func(item *Item) {
			if p.kind != "" && item.Kind != p.kind {
				return
			}
			if score := s.opts.relevance(item, queryTerms, s.terms[item.ID], now); score > 0 {
				candidates = append(candidates, scoredItem{item: item, score: score})
			}
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if !a.item.CreatedAt.Equal(b.item.CreatedAt) {
			return a.item.CreatedAt.After(b.item.CreatedAt)
		}
		return a.item.ID < b.item.ID
	})
	if len(candidates) > p.limit {
		candidates = candidates[:p.limit]
	}

	results := make([]Item, 0, len(candidates))
	for _, c := range candidates {
		c.item.AccessCount++
		c.item.LastAccessedAt = now
		results = append(results, *cloneItem(c.item))
	}
	s.mu.Unlock()

	s.metrics.RecordMemoryRetrieval(len(results), time.Since(start))
	return results
}

// GetContext runs one retrieval per kind section concurrently.
func (s *Store) GetContext(ctx context.Context, query string) (*Context, error) {
	limits := s.opts.ContextLimits
	out := &Context{}

	g, gctx := errgroup.WithContext(ctx)
	section := func(dst *[]Item, kind Kind, limit int) {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			*dst = s.retrieve(query, retrieveParams{kind: kind, limit: limit})
			return nil
		})
	}
	section(&out.Conversation, KindConversation, limits.Conversation)
	section(&out.Experience, KindExperience, limits.Experience)
	section(&out.Preference, KindPreference, limits.Preference)
	section(&out.Emotion, KindEmotion, limits.Emotion)

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(out.Conversation)+len(out.Experience)+len(out.Preference)+len(out.Emotion) > 0 {
		s.persist(ctx)
	}
	return out, nil
}

// Get returns a copy of the item with the given id and its partition.
func (s *Store) Get(id string) (Item, Partition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if item, ok := s.short[id]; ok {
		return *cloneItem(item), ShortTerm, nil
	}
	if item, ok := s.long[id]; ok {
		return *cloneItem(item), LongTerm, nil
	}
	return Item{}, "", ErrNotFound
}

// Len returns the number of items in both partitions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.short) + len(s.long)
}

// Items returns copies of a partition's items, oldest first.
func (s *Store) Items(partition Partition) []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedCopies(s.partitionLocked(partition))
}

// Stats returns partition sizes and per-kind counts.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{
		ShortTerm: len(s.short),
		LongTerm:  len(s.long),
		ByKind:    make(map[Kind]int),
	}
	assoc := 0
	s.forEachLocked(func(item *Item) {
		st.ByKind[item.Kind]++
		assoc += len(item.Associations)
	})
	st.Associations = assoc / 2
	return st
}

func (s *Store) partitionLocked(p Partition) map[string]*Item {
	if p == LongTerm {
		return s.long
	}
	return s.short
}

// forEachLocked visits every item. Callers hold s.mu.
func (s *Store) forEachLocked(fn func(*Item)) {
	for _, item := range s.short {
		fn(item)
	}
	for _, item := range s.long {
		fn(item)
	}
}

func sortedCopies(m map[string]*Item) []Item {
	out := make([]Item, 0, len(m))
	for _, item := range m {
		out = append(out, *cloneItem(item))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// addID inserts id into a sorted id set.
func addID(ids []string, id string) []string {
	i := sort.SearchStrings(ids, id)
	if i < len(ids) && ids[i] == id {
		return ids
	}
	ids = append(ids, "")
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}

// removeIDs drops every id in drop from ids.
func removeIDs(ids []string, drop map[string]struct{}) []string {
	out := ids[:0]
	for _, id := range ids {
		if _, ok := drop[id]; !ok {
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// persist writes both partitions. Failures are logged and never roll back
// the in-memory state.
func (s *Store) persist(ctx context.Context) {
	if s.backend == nil {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.RLock()
	short := sortedCopies(s.short)
	long := sortedCopies(s.long)
	s.mu.RUnlock()

	ctx, span := tracer.Start(ctx, "memory.persist")
	defer span.End()
	span.SetAttributes(
		attribute.Int("memory.short_term", len(short)),
		attribute.Int("memory.long_term", len(long)),
	)

	for _, snap := range []struct {
		key   string
		items []Item
	}{
		{storage.KeyMemoryShortTerm, short},
		{storage.KeyMemoryLongTerm, long},
	} {
		if err := storage.SaveJSON(ctx, s.backend, snap.key, snap.items); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.metrics.RecordStorageError("memory", "save")
			s.logger.Warn("failed to persist memory partition", "key", snap.key, "error", err)
		}
	}
}

// Load restores both partitions from storage. Missing, unreadable or corrupt
// snapshots leave the partition empty. Only a done context is reported.
func (s *Store) Load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.backend == nil {
		return nil
	}

	ctx, span := tracer.Start(ctx, "memory.load")
	defer span.End()

	short := s.loadPartition(ctx, storage.KeyMemoryShortTerm)
	long := s.loadPartition(ctx, storage.KeyMemoryLongTerm)

	longMap := make(map[string]*Item, len(long))
	for i := range long {
		longMap[long[i].ID] = &long[i]
	}
	shortMap := make(map[string]*Item, len(short))
	for i := range short {
		if _, dup := longMap[short[i].ID]; dup {
			continue
		}
		shortMap[short[i].ID] = &short[i]
	}

	terms := make(map[string]map[string]struct{}, len(shortMap)+len(longMap))
	known := func(id string) bool {
		_, inShort := shortMap[id]
		_, inLong := longMap[id]
		return inShort || inLong
	}
	for _, m := range []map[string]*Item{shortMap, longMap} {
		for id, item := range m {
			var assoc []string
			for _, other := range item.Associations {
				if other != id && known(other) {
					assoc = addID(assoc, other)
				}
			}
			item.Associations = assoc
			terms[id] = termSet(item.Content)
		}
	}
	for _, m := range []map[string]*Item{shortMap, longMap} {
		for id, item := range m {
			for _, other := range item.Associations {
				if o, ok := shortMap[other]; ok {
					o.Associations = addID(o.Associations, id)
				} else if o, ok := longMap[other]; ok {
					o.Associations = addID(o.Associations, id)
				}
			}
		}
	}

	s.mu.Lock()
	s.short = shortMap
	s.long = longMap
	s.terms = terms
	s.mu.Unlock()

	span.SetAttributes(
		attribute.Int("memory.short_term", len(shortMap)),
		attribute.Int("memory.long_term", len(longMap)),
	)
	s.metrics.SetMemoryPartitionSize(string(ShortTerm), len(shortMap))
	s.metrics.SetMemoryPartitionSize(string(LongTerm), len(longMap))
	s.logger.Info("memory loaded", "short_term", len(shortMap), "long_term", len(longMap))
	return nil
}

func (s *Store) loadPartition(ctx context.Context, key string) []Item {
	var items []Item
	found, err := storage.LoadJSON(ctx, s.backend, key, &items)
	switch {
	case err != nil && storage.IsCorrupt(err):
		s.metrics.RecordStorageError("memory", "decode")
		s.logger.Warn("corrupt memory snapshot, starting empty", "key", key, "error", err)
		return nil
	case err != nil:
		s.metrics.RecordStorageError("memory", "load")
		s.logger.Warn("memory persistence unavailable, starting empty", "key", key, "error", err)
		return nil
	case !found:
		return nil
	}

	valid := items[:0]
	for _, item := range items {
		if item.ID == "" || strings.TrimSpace(item.Content) == "" || !item.Kind.Valid() {
			s.logger.Warn("dropping invalid memory item", "key", key, "id", item.ID)
			continue
		}
		item.Importance = clamp01(item.Importance)
		item.Tags = normalizeTags(item.Tags)
		if item.AccessCount < 0 {
			item.AccessCount = 0
		}
		if item.LastAccessedAt.IsZero() {
			item.LastAccessedAt = item.CreatedAt
		}
		valid = append(valid, item)
	}
	return valid
}
