// Package companion wires the memory store, the emotional state tracker and
// the personality adapter into one context object owned by the host.
package companion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sallie/companion/pkg/clock"
	"github.com/sallie/companion/pkg/emotion"
	"github.com/sallie/companion/pkg/eventbus"
	"github.com/sallie/companion/pkg/logger"
	"github.com/sallie/companion/pkg/memory"
	"github.com/sallie/companion/pkg/personality"
	"github.com/sallie/companion/pkg/storage"
	memstorage "github.com/sallie/companion/pkg/storage/memory"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/sallie/companion/pkg/companion")

var (
	// ErrAlreadyStarted is returned by Start on a running companion.
	ErrAlreadyStarted = errors.New("companion: already started")
	// ErrNotStarted is returned by Stop on a companion that is not running.
	ErrNotStarted = errors.New("companion: not started")
)

// Recorder is the union of the component metric sinks.
type Recorder interface {
	memory.Recorder
	emotion.Recorder
	personality.Recorder
}

// Options configures a Companion.
type Options struct {
	Memory      memory.Options
	Emotion     emotion.Options
	Personality personality.Options

	// Storage persists all component state. Nil uses an in-process map.
	Storage storage.Storage
	// StorageTimeout bounds each storage call. Zero disables the bound.
	StorageTimeout time.Duration

	// Consolidation starts the background consolidation loop on Start.
	Consolidation bool

	Clock   clock.Clock
	Logger  logger.Logger
	Metrics Recorder
	// Publisher receives companion events. Nil disables publishing.
	Publisher *eventbus.Publisher
}

// Interaction is the outcome of observing one user message.
type Interaction struct {
	Emotion  emotion.State   `json:"emotion"`
	Pattern  emotion.Pattern `json:"pattern"`
	MemoryID string          `json:"memory_id,omitempty"`
	Style    map[string]any  `json:"style"`
	Context  *memory.Context `json:"context"`
}

// Companion owns the three stateful components. It is safe for concurrent use.
type Companion struct {
	store        *memory.Store
	tracker      *emotion.Tracker
	adapter      *personality.Adapter
	consolidator *memory.Consolidator

	backend   storage.Storage
	log       logger.Logger
	metrics   Recorder
	publisher *eventbus.Publisher

	mu          sync.Mutex
	started     bool
	unsubscribe func()
}

// New builds a Companion. Nothing is loaded until Start.
func New(opts Options) (*Companion, error) {
	if opts.Logger == nil {
		opts.Logger = logger.Global()
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Storage == nil {
		opts.Storage = memstorage.NewMemoryStorage()
	}
	backend := storage.WithTimeout(opts.Storage, opts.StorageTimeout)

	// A nil *metrics value must not leak into the components as a non-nil interface.
	var (
		memMetrics  memory.Recorder
		emoMetrics  emotion.Recorder
		persMetrics personality.Recorder
	)
	if opts.Metrics != nil {
		memMetrics, emoMetrics, persMetrics = opts.Metrics, opts.Metrics, opts.Metrics
	}

	adapter := personality.NewAdapter(opts.Personality, personality.Deps{
		Storage: backend,
		Logger:  opts.Logger.With("component", "personality"),
		Metrics: persMetrics,
	})
	store := memory.NewStore(opts.Memory, memory.Deps{
		Storage: backend,
		Clock:   opts.Clock,
		Logger:  opts.Logger.With("component", "memory"),
		Metrics: memMetrics,
	})
	tracker := emotion.NewTracker(opts.Emotion, emotion.Deps{
		Clock:   opts.Clock,
		Logger:  opts.Logger.With("component", "emotion"),
		Metrics: emoMetrics,
	})

	c := &Companion{
		store:     store,
		tracker:   tracker,
		adapter:   adapter,
		backend:   backend,
		log:       opts.Logger.With("component", "companion"),
		metrics:   opts.Metrics,
		publisher: opts.Publisher,
	}
	if opts.Consolidation {
		c.consolidator = memory.NewConsolidator(store, store.Options().ConsolidationInterval)
	}
	return c, nil
}

// Memory returns the memory store.
func (c *Companion) Memory() *memory.Store { return c.store }

// Emotions returns the emotional state tracker.
func (c *Companion) Emotions() *emotion.Tracker { return c.tracker }

// Personality returns the personality adapter.
func (c *Companion) Personality() *personality.Adapter { return c.adapter }

// Started reports whether Start has completed and Stop has not been called.
func (c *Companion) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

// Start loads persisted state, subscribes the adapter to emotion changes and
// starts the consolidation loop. Unreadable state is logged and replaced by
// defaults; only a cancelled context fails Start.
func (c *Companion) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return ErrAlreadyStarted
	}

	if err := c.store.Load(ctx); err != nil {
		return fmt.Errorf("companion: load memory: %w", err)
	}
	if err := c.adapter.Load(ctx); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("companion: load personality: %w", ctx.Err())
		}
		c.log.Warn("personality state unavailable, using defaults", "error", err)
	}
	if err := c.loadEmotion(ctx); err != nil {
		return err
	}

	c.unsubscribe = c.tracker.Subscribe(c.adapter)
	if c.consolidator != nil {
		c.consolidator.Start(ctx)
	}
	c.started = true

	stats := c.store.Stats()
	c.log.Info("companion started",
		"short_term", stats.ShortTerm,
		"long_term", stats.LongTerm,
		"archetype", c.adapter.Archetype().String(),
	)
	return nil
}

func (c *Companion) loadEmotion(ctx context.Context) error {
	var snap emotion.Snapshot
	found, err := storage.LoadJSON(ctx, c.backend, storage.KeyEmotionState, &snap)
	switch {
	case ctx.Err() != nil:
		return fmt.Errorf("companion: load emotion: %w", ctx.Err())
	case err != nil && storage.IsCorrupt(err):
		c.recordStorageError("emotion", "decode")
		c.log.Warn("corrupt emotion snapshot, starting neutral", "error", err)
	case err != nil:
		c.recordStorageError("emotion", "load")
		c.log.Warn("emotion state unavailable, starting neutral", "error", err)
	case found:
		c.tracker.Restore(snap)
	}
	return nil
}

// Stop stops the consolidation loop, detaches the adapter and flushes
// emotion and personality state. Flush failures are returned joined.
func (c *Companion) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return ErrNotStarted
	}
	c.started = false

	if c.consolidator != nil {
		c.consolidator.Stop()
	}
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}

	errs := []error{c.saveEmotion(ctx)}
	if err := c.adapter.Save(ctx); err != nil {
		errs = append(errs, err)
	}
	err := errors.Join(errs...)
	if err != nil {
		c.log.Error("failed to flush state on stop", "error", err)
	} else {
		c.log.Info("companion stopped")
	}
	return err
}

func (c *Companion) saveEmotion(ctx context.Context) error {
	if err := storage.SaveJSON(ctx, c.backend, storage.KeyEmotionState, c.tracker.Snapshot()); err != nil {
		c.recordStorageError("emotion", "save")
		return fmt.Errorf("companion: save emotion: %w", err)
	}
	return nil
}

// UpdateEmotion applies u to the tracker, which notifies the adapter, then
// persists the new state best effort and publishes it.
func (c *Companion) UpdateEmotion(ctx context.Context, u emotion.Update) emotion.State {
	state := c.tracker.UpdateState(u)

	if err := c.saveEmotion(ctx); err != nil {
		c.log.Warn("emotion state not persisted", "error", err)
	}
	if err := c.adapter.Save(ctx); err != nil {
		c.log.Warn("personality state not persisted", "error", err)
	}

	c.publish(ctx, eventbus.EventEmotionChanged, eventbus.EmotionChanged{
		Primary:   string(state.Primary),
		Secondary: labelStrings(state.Secondary),
		Intensity: state.Intensity,
		Valence:   state.Valence,
		Arousal:   state.Arousal,
		Dominance: state.Dominance,
	}, state.Timestamp)
	return state
}

// Remember stores a memory and publishes it.
func (c *Companion) Remember(ctx context.Context, content string, kind memory.Kind, opts ...memory.StoreOption) (string, error) {
	id, err := c.store.StoreMemory(ctx, content, kind, opts...)
	if err != nil {
		return "", err
	}
	if item, _, err := c.store.Get(id); err == nil {
		c.publish(ctx, eventbus.EventMemoryStored, eventbus.MemoryStored{
			ID:         item.ID,
			Kind:       string(item.Kind),
			Importance: item.Importance,
			Tags:       item.Tags,
		}, item.CreatedAt)
	}
	return id, nil
}

// Consolidate runs one consolidation pass and publishes its report.
func (c *Companion) Consolidate(ctx context.Context) (*memory.ConsolidationReport, error) {
	report, err := c.store.Consolidate(ctx)
	if err != nil {
		return nil, err
	}
	if !report.Skipped {
		c.publish(ctx, eventbus.EventMemoryConsolidated, eventbus.MemoryConsolidated{
			Promoted:  report.Promoted,
			Evicted:   report.Evicted,
			Decayed:   report.Decayed,
			ShortTerm: report.ShortTerm,
			LongTerm:  report.LongTerm,
			Duration:  report.Duration,
		}, time.Time{})
	}
	return report, nil
}

// Evolve applies a long-horizon interaction summary to the personality and
// persists the result.
func (c *Companion) Evolve(ctx context.Context, summary personality.InteractionSummary) map[string]float64 {
	c.adapter.Evolve(summary)
	if err := c.adapter.Save(ctx); err != nil {
		c.log.Warn("personality state not persisted", "error", err)
	}

	traits := make(map[string]float64)
	for _, t := range c.adapter.Traits() {
		traits[t.Name] = t.Value
	}
	c.publish(ctx, eventbus.EventTraitsEvolved, eventbus.TraitsEvolved{
		Dominant: string(summary.Dominant),
		Traits:   traits,
	}, time.Time{})
	return traits
}

// Observe runs the full interaction flow for one user message: analyze the
// text, apply the emotion (the adapter reacts), optionally record it as a
// conversation memory tagged with the emotion, and assemble the response
// context.
func (c *Companion) Observe(ctx context.Context, text string, record bool) (*Interaction, error) {
	ctx, span := tracer.Start(ctx, "companion.observe")
	defer span.End()

	if strings.TrimSpace(text) == "" {
		span.SetStatus(codes.Error, "empty text")
		return nil, memory.ErrEmptyContent
	}

	analyzed := c.tracker.AnalyzeText(text)
	state := c.UpdateEmotion(ctx, emotion.UpdateFrom(analyzed))
	span.SetAttributes(
		attribute.String("emotion.primary", string(state.Primary)),
		attribute.Float64("emotion.intensity", state.Intensity),
	)

	out := &Interaction{Emotion: state}
	if record {
		id, err := c.Remember(ctx, text, memory.KindConversation,
			memory.WithImportance(0.3+0.5*state.Intensity),
			memory.WithTags(string(state.Primary)),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "store memory failed")
			return nil, fmt.Errorf("companion: record interaction: %w", err)
		}
		out.MemoryID = id
	}

	memCtx, err := c.store.GetContext(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "memory context failed")
		return nil, fmt.Errorf("companion: memory context: %w", err)
	}
	out.Context = memCtx
	out.Pattern = c.tracker.Context().Pattern
	out.Style = c.adapter.ResponseStyle()
	return out, nil
}

func (c *Companion) publish(ctx context.Context, eventType string, payload any, ts time.Time) {
	if c.publisher == nil {
		return
	}
	if _, err := c.publisher.Publish(ctx, eventbus.Event{
		Type:      eventType,
		Timestamp: ts,
		Payload:   payload,
	}); err != nil {
		c.log.Warn("failed to publish event", "event_type", eventType, "error", err)
	}
}

func (c *Companion) recordStorageError(component, operation string) {
	if c.metrics != nil {
		c.metrics.RecordStorageError(component, operation)
	}
}

func labelStrings(labels []emotion.Label) []string {
	if len(labels) == 0 {
		return nil
	}
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = string(l)
	}
	return out
}
