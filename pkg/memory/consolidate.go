package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"
)

// Consolidate promotes qualifying short-term items, evicts the lowest-value
// short-term items beyond capacity and decays items left untouched. A call
// made while another pass is running returns a skipped report.
func (s *Store) Consolidate(ctx context.Context) (*ConsolidationReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.consolidating.CompareAndSwap(false, true) {
		s.logger.Debug("consolidation already running, skipping")
		return &ConsolidationReport{Skipped: true}, nil
	}
	defer s.consolidating.Store(false)

	start := time.Now()
	report := &ConsolidationReport{}

	s.mu.Lock()
	now := s.clock.Now()
	report.Promoted = s.promoteLocked(now)
	report.Evicted = s.evictLocked()
	report.Decayed = s.decayLocked(now)
	report.ShortTerm = len(s.short)
	report.LongTerm = len(s.long)
	s.mu.Unlock()

	report.Duration = time.Since(start)

	s.metrics.RecordConsolidation(report.Promoted, report.Evicted, report.Decayed, report.Duration)
	s.metrics.SetMemoryPartitionSize(string(ShortTerm), report.ShortTerm)
	s.metrics.SetMemoryPartitionSize(string(LongTerm), report.LongTerm)
	s.logger.Info("memory consolidated",
		"promoted", report.Promoted,
		"evicted", report.Evicted,
		"decayed", report.Decayed,
		"short_term", report.ShortTerm,
		"long_term", report.LongTerm,
	)

	if report.Promoted+report.Evicted+report.Decayed > 0 {
		s.persist(ctx)
	}
	return report, nil
}

// shouldPromote reports whether a short-term item moves to long-term.
func (o Options) shouldPromote(item *Item, now time.Time) bool {
	age := now.Sub(item.CreatedAt)
	return item.Importance >= o.PromoteImportance ||
		(age > o.PromoteAge && item.AccessCount > o.PromoteAccessCount) ||
		age > o.MaxShortTermAge
}

func (s *Store) promoteLocked(now time.Time) int {
	promoted := 0
	for id, item := range s.short {
		if s.opts.shouldPromote(item, now) {
			delete(s.short, id)
			s.long[id] = item
			promoted++
		}
	}
	return promoted
}

// evictLocked trims the short-term partition to capacity, lowest
// importance*accessCount first and oldest first among equals.
func (s *Store) evictLocked() int {
	excess := len(s.short) - s.opts.ShortTermCapacity
	if excess <= 0 {
		return 0
	}

	victims := make([]*Item, 0, len(s.short))
	for _, item := range s.short {
		victims = append(victims, item)
	}
	sort.Slice(victims, func(i, j int) bool {
		a, b := victims[i], victims[j]
		va, vb := a.Importance*float64(a.AccessCount), b.Importance*float64(b.AccessCount)
		if va != vb {
			return va < vb
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	evicted := make(map[string]struct{}, excess)
	for _, item := range victims[:excess] {
		evicted[item.ID] = struct{}{}
		delete(s.short, item.ID)
		delete(s.terms, item.ID)
	}
	s.forEachLocked(func(item *Item) {
		if len(item.Associations) > 0 {
			item.Associations = removeIDs(item.Associations, evicted)
		}
	})
	return excess
}

// decayLocked decays each stale item at most once per DecayInterval, so the
// rate does not depend on how often consolidation runs. A retrieval after the
// last decay restarts the DecayAfter window.
func (s *Store) decayLocked(now time.Time) int {
	decayed := 0
	s.forEachLocked(func(item *Item) {
		if now.Sub(item.LastAccessedAt) <= s.opts.DecayAfter || item.Importance <= s.opts.ImportanceFloor {
			return
		}
		if item.LastDecayedAt.After(item.LastAccessedAt) && now.Sub(item.LastDecayedAt) < s.opts.DecayInterval {
			return
		}
		item.Importance = math.Max(s.opts.ImportanceFloor, item.Importance*s.opts.DecayFactor)
		item.LastDecayedAt = now
		decayed++
	})
	return decayed
}

// Consolidator runs Consolidate on a fixed interval in the background.
type Consolidator struct {
	mu       sync.Mutex
	store    *Store
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}

	// Metrics
	runs   int64
	failed int64
}

// NewConsolidator creates a consolidator for store. A non-positive interval
// uses the store's ConsolidationInterval.
func NewConsolidator(store *Store, interval time.Duration) *Consolidator {
	if interval <= 0 {
		interval = store.opts.ConsolidationInterval
	}
	return &Consolidator{
		store:    store,
		interval: interval,
	}
}

// Start starts the background loop. Calling Start on a running consolidator is a no-op.
func (c *Consolidator) Start(parentCtx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(parentCtx)
	c.cancel = cancel
	c.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.runOnce(ctx)
			case <-ctx.Done():
				return
			}
		}
	}(c.done)
}

func (c *Consolidator) runOnce(ctx context.Context) {
	_, err := c.store.Consolidate(ctx)

	c.mu.Lock()
	c.runs++
	if err != nil {
		c.failed++
	}
	c.mu.Unlock()

	if err != nil && ctx.Err() == nil {
		c.store.logger.Error("consolidation failed", "error", err)
	}
}

// Stop stops the loop and waits for an in-flight pass to finish.
func (c *Consolidator) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Stats returns the number of passes run and how many failed.
func (c *Consolidator) Stats() (runs, failed int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runs, c.failed
}
