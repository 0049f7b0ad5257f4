package personality

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sallie/companion/pkg/emotion"
	"github.com/sallie/companion/pkg/storage"
)

// ErrUnknownTrait is returned for trait names the adapter does not hold.
var ErrUnknownTrait = errors.New("personality: unknown trait")

// Logger is the minimal logger interface used by Adapter.
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

// Recorder receives trait metrics.
type Recorder interface {
	SetTraitValue(name string, value float64)
	RecordStorageError(component, operation string)
}

type nopRecorder struct{}

func (nopRecorder) SetTraitValue(string, float64)      {}
func (nopRecorder) RecordStorageError(string, string) {}

// Options configures an Adapter.
type Options struct {
	Archetype Archetype
	// AdjustmentRate scales emotion-driven adjustments.
	AdjustmentRate float64
}

// DefaultOptions returns the default adapter options.
func DefaultOptions() Options {
	return Options{
		Archetype:      Companion,
		AdjustmentRate: 0.05,
	}
}

// Deps wires the collaborators of an Adapter. Every field is optional.
type Deps struct {
	// Storage persists the trait snapshot. Nil disables Save and Load.
	Storage storage.Storage
	Logger  Logger
	Metrics Recorder
}

// Adapter holds the trait set. Every mutation goes through Adjust.
type Adapter struct {
	mu     sync.RWMutex
	opts   Options
	traits map[string]*Trait
	order  []string

	backend storage.Storage
	logger  Logger
	metrics Recorder
}

var _ emotion.Listener = (*Adapter)(nil)

// NewAdapter creates an adapter seeded with DefaultTraits.
func NewAdapter(opts Options, deps Deps) *Adapter {
	if opts.AdjustmentRate <= 0 {
		opts.AdjustmentRate = DefaultOptions().AdjustmentRate
	}
	if deps.Logger == nil {
		deps.Logger = nopLogger{}
	}
	if deps.Metrics == nil {
		deps.Metrics = nopRecorder{}
	}
	a := &Adapter{
		opts:    opts,
		backend: deps.Storage,
		logger:  deps.Logger,
		metrics: deps.Metrics,
	}
	a.Initialize(DefaultTraits())
	return a
}

// Initialize replaces the trait set with defaults, biased by the archetype.
func (a *Adapter) Initialize(defaults []Trait) {
	biases := a.opts.Archetype.biases()

	traits := make(map[string]*Trait, len(defaults))
	order := make([]string, 0, len(defaults))
	for _, d := range defaults {
		if d.Name == "" {
			continue
		}
		t := d
		t.Value = clamp01(t.Value + biases[t.Name])
		t.Stability = clamp01(t.Stability)
		if _, dup := traits[t.Name]; !dup {
			order = append(order, t.Name)
		}
		traits[t.Name] = &t
	}

	a.mu.Lock()
	a.traits = traits
	a.order = order
	a.mu.Unlock()

	for _, name := range order {
		a.metrics.SetTraitValue(name, traits[name].Value)
	}
}

// Archetype returns the configured archetype.
func (a *Adapter) Archetype() Archetype {
	return a.opts.Archetype
}

// Templates returns the response templates of the configured archetype.
func (a *Adapter) Templates() Templates {
	return a.opts.Archetype.Templates()
}

// emotionTraits maps each emotion to the traits it nudges and the direction.
func emotionTraits(label emotion.Label) map[string]float64 {
	switch label {
	case emotion.Joy:
		return map[string]float64{Playfulness: 1, Creativity: 1}
	case emotion.Sadness:
		return map[string]float64{Empathy: 1, Playfulness: -1}
	case emotion.Anger:
		return map[string]float64{Protectiveness: 1, Playfulness: -1}
	case emotion.Fear:
		return map[string]float64{Protectiveness: 1, Empathy: 1}
	case emotion.Surprise:
		return map[string]float64{Creativity: 1}
	case emotion.Disgust:
		return map[string]float64{Wisdom: 1}
	default:
		return nil
	}
}

// OnEmotionChanged nudges the traits associated with label in proportion to
// intensity.
func (a *Adapter) OnEmotionChanged(label emotion.Label, intensity float64) {
	base := a.opts.AdjustmentRate * clamp01(intensity)
	for name, sign := range emotionTraits(label) {
		if _, err := a.Adjust(name, sign*base); err != nil {
			a.logger.Debug("skipping trait adjustment", "trait", name, "error", err)
		}
	}
}

// Adjust moves a trait by delta dampened by its stability, clamped to [0,1],
// and returns the new value.
func (a *Adapter) Adjust(name string, delta float64) (float64, error) {
	a.mu.Lock()
	t, ok := a.traits[name]
	if !ok {
		a.mu.Unlock()
		return 0, fmt.Errorf("%w: %q", ErrUnknownTrait, name)
	}
	before := t.Value
	after := t.apply(delta)
	a.mu.Unlock()

	if after != before {
		a.metrics.SetTraitValue(name, after)
		a.logger.Debug("trait adjusted", "trait", name, "from", before, "to", after)
	}
	return after, nil
}

// Trait returns the current value of a trait.
func (a *Adapter) Trait(name string) (float64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	t, ok := a.traits[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTrait, name)
	}
	return t.Value, nil
}

// Traits returns copies of all traits in initialization order.
func (a *Adapter) Traits() []Trait {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Trait, 0, len(a.order))
	for _, name := range a.order {
		out = append(out, *a.traits[name])
	}
	return out
}

// ResponseStyle returns the trait values plus derived energyLevel, mood and
// archetype fields.
func (a *Adapter) ResponseStyle() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()

	style := make(map[string]any, len(a.order)+3)
	for _, name := range a.order {
		style[name] = a.traits[name].Value
	}
	value := func(name string) float64 {
		if t, ok := a.traits[name]; ok {
			return t.Value
		}
		return 0
	}
	style["energyLevel"] = (value(Playfulness) + value(Creativity)) / 2
	style["mood"] = mood(value(Playfulness), value(Empathy), value(Wisdom))
	style["archetype"] = a.opts.Archetype.String()
	return style
}

func mood(playfulness, empathy, wisdom float64) string {
	switch {
	case playfulness >= 0.7:
		return "playful"
	case empathy >= 0.8:
		return "nurturing"
	case wisdom >= 0.8:
		return "thoughtful"
	default:
		return "balanced"
	}
}

// InteractionSummary aggregates a period of interactions for Evolve.
type InteractionSummary struct {
	Positive int           `json:"positive"`
	Negative int           `json:"negative"`
	Neutral  int           `json:"neutral"`
	Dominant emotion.Label `json:"dominant,omitempty"`
}

// Evolve applies long-horizon adjustments from an interaction summary. The
// dominant emotion is replayed at the strength of the positive or negative
// share, and a clear majority nudges the matching traits.
func (a *Adapter) Evolve(summary InteractionSummary) {
	total := summary.Positive + summary.Negative + summary.Neutral
	if total <= 0 {
		return
	}
	positive := float64(summary.Positive) / float64(total)
	negative := float64(summary.Negative) / float64(total)

	if summary.Dominant != "" && summary.Dominant.Valid() {
		a.OnEmotionChanged(summary.Dominant, max(positive, negative))
	}

	rate := a.opts.AdjustmentRate
	switch {
	case positive > 0.6:
		a.adjustAll(map[string]float64{Playfulness: rate * positive, Creativity: rate * positive / 2})
	case negative > 0.6:
		a.adjustAll(map[string]float64{Empathy: rate * negative, Protectiveness: rate * negative / 2})
	}
}

func (a *Adapter) adjustAll(deltas map[string]float64) {
	for name, delta := range deltas {
		if _, err := a.Adjust(name, delta); err != nil {
			a.logger.Debug("skipping trait adjustment", "trait", name, "error", err)
		}
	}
}

// snapshot is the persisted form of the trait set.
type snapshot struct {
	Archetype Archetype `json:"archetype"`
	Traits    []Trait   `json:"traits"`
}

// Save persists the trait set under storage.KeyPersonalityState.
func (a *Adapter) Save(ctx context.Context) error {
	if a.backend == nil {
		return nil
	}
	snap := snapshot{Archetype: a.opts.Archetype, Traits: a.Traits()}
	if err := storage.SaveJSON(ctx, a.backend, storage.KeyPersonalityState, snap); err != nil {
		a.metrics.RecordStorageError("personality", "save")
		return fmt.Errorf("personality: save: %w", err)
	}
	return nil
}

// Load restores a saved trait set. A missing snapshot keeps the current
// traits. A corrupt snapshot resets to defaults and is not reported as an
// error. Traits absent from the snapshot keep their current values.
func (a *Adapter) Load(ctx context.Context) error {
	if a.backend == nil {
		return nil
	}
	var snap snapshot
	found, err := storage.LoadJSON(ctx, a.backend, storage.KeyPersonalityState, &snap)
	switch {
	case err != nil && storage.IsCorrupt(err):
		a.metrics.RecordStorageError("personality", "decode")
		a.logger.Warn("corrupt personality snapshot, using defaults", "error", err)
		a.Initialize(DefaultTraits())
		return nil
	case err != nil:
		a.metrics.RecordStorageError("personality", "load")
		return fmt.Errorf("personality: load: %w", err)
	case !found:
		return nil
	}

	if snap.Archetype != a.opts.Archetype {
		a.logger.Info("saved personality used a different archetype", "saved", snap.Archetype.String(), "current", a.opts.Archetype.String())
	}

	a.mu.Lock()
	restored := 0
	for _, saved := range snap.Traits {
		t, ok := a.traits[saved.Name]
		if !ok {
			continue
		}
		t.Value = clamp01(saved.Value)
		t.Stability = clamp01(saved.Stability)
		restored++
	}
	a.mu.Unlock()

	for _, t := range a.Traits() {
		a.metrics.SetTraitValue(t.Name, t.Value)
	}
	a.logger.Info("personality loaded", "traits", restored)
	return nil
}
