package emotion

import (
	"sync"

	"github.com/sallie/companion/pkg/clock"
)

// Listener is notified after every state update.
type Listener interface {
	OnEmotionChanged(label Label, intensity float64)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(label Label, intensity float64)

// OnEmotionChanged calls f.
func (f ListenerFunc) OnEmotionChanged(label Label, intensity float64) {
	f(label, intensity)
}

// Logger is the minimal logger interface used by Tracker.
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

// Recorder receives tracker metrics.
type Recorder interface {
	RecordEmotionUpdate(label string, intensity float64)
}

type nopRecorder struct{}

func (nopRecorder) RecordEmotionUpdate(string, float64) {}

// Options configures a Tracker.
type Options struct {
	// HistorySize caps the state history. Oldest entries are dropped.
	HistorySize int
	// BaselineSize is the history length below which no trend is reported.
	BaselineSize int
	// TrendWindow is the number of recent entries averaged for the trend.
	TrendWindow int
	// TrendThreshold is the mean valence beyond which a trend is reported.
	TrendThreshold float64
}

// DefaultOptions returns the default tracker options.
func DefaultOptions() Options {
	return Options{
		HistorySize:    100,
		BaselineSize:   5,
		TrendWindow:    10,
		TrendThreshold: 0.3,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.HistorySize <= 0 {
		o.HistorySize = d.HistorySize
	}
	if o.BaselineSize <= 0 {
		o.BaselineSize = d.BaselineSize
	}
	if o.TrendWindow <= 0 {
		o.TrendWindow = d.TrendWindow
	}
	if o.TrendThreshold <= 0 {
		o.TrendThreshold = d.TrendThreshold
	}
	return o
}

// Deps wires the collaborators of a Tracker. Every field is optional.
type Deps struct {
	Clock   clock.Clock
	Logger  Logger
	Metrics Recorder
}

type subscription struct {
	id       uint64
	listener Listener
}

// Tracker holds the current emotional state and its bounded history.
type Tracker struct {
	mu        sync.RWMutex
	opts      Options
	current   State
	history   []State
	listeners []subscription
	nextID    uint64

	// notifyMu keeps notifications in update order.
	notifyMu sync.Mutex

	clock   clock.Clock
	logger  Logger
	metrics Recorder
}

// NewTracker creates a tracker in the neutral state.
func NewTracker(opts Options, deps Deps) *Tracker {
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Logger == nil {
		deps.Logger = nopLogger{}
	}
	if deps.Metrics == nil {
		deps.Metrics = nopRecorder{}
	}
	return &Tracker{
		opts:    opts.withDefaults(),
		current: NeutralState(deps.Clock.Now()),
		clock:   deps.Clock,
		logger:  deps.Logger,
		metrics: deps.Metrics,
	}
}

// AnalyzeText derives an emotional reading from text without changing the
// tracker's state.
func (t *Tracker) AnalyzeText(text string) State {
	s := AnalyzeText(text)
	s.Timestamp = t.clock.Now()
	return s
}

// Subscribe registers l. Listeners are notified in registration order. The
// returned function removes the subscription. Listeners must not call
// UpdateState.
func (t *Tracker) Subscribe(l Listener) (unsubscribe func()) {
	t.mu.Lock()
	t.nextID++
	id := t.nextID
	t.listeners = append(t.listeners, subscription{id: id, listener: l})
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			for i, sub := range t.listeners {
				if sub.id == id {
					t.listeners = append(t.listeners[:i:i], t.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// UpdateState merges u into the current state, records it in the history and
// notifies every listener before returning. When the primary label changes and
// no dimensions are supplied, they are taken from the label.
func (t *Tracker) UpdateState(u Update) State {
	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()

	t.mu.Lock()
	next := t.current.clone()
	if u.Primary != nil {
		if !u.Primary.Valid() {
			t.logger.Warn("unknown emotion label, using neutral", "label", *u.Primary)
			next.Primary = Neutral
		} else {
			next.Primary = *u.Primary
		}
		if u.Valence == nil && u.Arousal == nil && u.Dominance == nil {
			next.Valence, next.Arousal, next.Dominance = next.Primary.Dimensions()
		}
	}
	if u.Secondary != nil {
		next.Secondary = append([]Label(nil), u.Secondary...)
	}
	if u.Intensity != nil {
		next.Intensity = *u.Intensity
	}
	if u.Valence != nil {
		next.Valence = *u.Valence
	}
	if u.Arousal != nil {
		next.Arousal = *u.Arousal
	}
	if u.Dominance != nil {
		next.Dominance = *u.Dominance
	}
	next = next.clamped()
	next.Timestamp = t.clock.Now()

	t.current = next
	t.history = append(t.history, next.clone())
	if over := len(t.history) - t.opts.HistorySize; over > 0 {
		t.history = append(t.history[:0:0], t.history[over:]...)
	}
	listeners := append([]subscription(nil), t.listeners...)
	t.mu.Unlock()

	t.metrics.RecordEmotionUpdate(string(next.Primary), next.Intensity)
	t.logger.Debug("emotion updated", "primary", next.Primary, "intensity", next.Intensity, "listeners", len(listeners))

	for _, sub := range listeners {
		sub.listener.OnEmotionChanged(next.Primary, next.Intensity)
	}
	return next.clone()
}

// Current returns the current state.
func (t *Tracker) Current() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current.clone()
}

// History returns the recorded states, oldest first.
func (t *Tracker) History() []State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]State, len(t.history))
	for i, s := range t.history {
		out[i] = s.clone()
	}
	return out
}

// Context returns the current state and the recent trend.
func (t *Tracker) Context() Context {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Context{
		UserEmotion: t.current.clone(),
		Pattern:     t.patternLocked(),
	}
}

func (t *Tracker) patternLocked() Pattern {
	if len(t.history) < t.opts.BaselineSize {
		return PatternBaseline
	}
	window := t.history
	if len(window) > t.opts.TrendWindow {
		window = window[len(window)-t.opts.TrendWindow:]
	}
	sum := 0.0
	for _, s := range window {
		sum += s.Valence
	}
	mean := sum / float64(len(window))
	switch {
	case mean > t.opts.TrendThreshold:
		return PatternPositiveTrend
	case mean < -t.opts.TrendThreshold:
		return PatternNegativeTrend
	default:
		return PatternStableNeutral
	}
}

// Snapshot is the persisted form of a Tracker.
type Snapshot struct {
	Current State   `json:"current"`
	History []State `json:"history"`
}

// Snapshot returns the current state and history.
func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{Current: t.Current(), History: t.History()}
}

// Restore replaces the state and history with snap. Values are clamped and the
// history is trimmed to capacity. Listeners are not notified.
func (t *Tracker) Restore(snap Snapshot) {
	current := snap.Current.clamped()
	if current.Timestamp.IsZero() {
		current.Timestamp = t.clock.Now()
	}
	history := make([]State, 0, len(snap.History))
	for _, s := range snap.History {
		history = append(history, s.clamped())
	}
	if over := len(history) - t.opts.HistorySize; over > 0 {
		history = history[over:]
	}

	t.mu.Lock()
	t.current = current
	t.history = history
	t.mu.Unlock()
}
