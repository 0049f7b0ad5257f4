package memory

import "time"

// Options holds the tuning constants of the store.
type Options struct {
	// AssociationThreshold is the blended similarity a pair must exceed to be associated.
	AssociationThreshold float64

	// Blend weights for pairwise similarity.
	TagWeight     float64
	ContentWeight float64
	KindWeight    float64

	// Promotion rules: importance, or age plus access count, or maximum age.
	PromoteImportance  float64
	PromoteAge         time.Duration
	PromoteAccessCount int
	MaxShortTermAge    time.Duration

	// ShortTermCapacity bounds the short-term partition after promotion.
	ShortTermCapacity int

	// Items untouched for longer than DecayAfter have importance multiplied
	// by DecayFactor at most once per DecayInterval, never below
	// ImportanceFloor. The rate is independent of the consolidation interval.
	DecayFactor     float64
	DecayAfter      time.Duration
	DecayInterval   time.Duration
	ImportanceFloor float64

	// RecencyScale is the e-folding time of the retrieval recency decay.
	RecencyScale time.Duration

	DefaultImportance float64
	DefaultLimit      int

	ContextLimits ContextLimits

	// ConsolidationInterval is the period of the background consolidator.
	ConsolidationInterval time.Duration
}

// ContextLimits caps each section of a Context.
type ContextLimits struct {
	Conversation int
	Experience   int
	Preference   int
	Emotion      int
}

// DefaultOptions returns the default store options.
func DefaultOptions() Options {
	return Options{
		AssociationThreshold: 0.6,
		TagWeight:            0.4,
		ContentWeight:        0.4,
		KindWeight:           0.2,
		PromoteImportance:    0.7,
		PromoteAge:           24 * time.Hour,
		PromoteAccessCount:   2,
		MaxShortTermAge:      168 * time.Hour,
		ShortTermCapacity:    100,
		DecayFactor:          0.95,
		DecayAfter:           7 * 24 * time.Hour,
		DecayInterval:        24 * time.Hour,
		ImportanceFloor:      0.1,
		RecencyScale:         30 * 24 * time.Hour,
		DefaultImportance:    0.5,
		DefaultLimit:         10,
		ContextLimits: ContextLimits{
			Conversation: 5,
			Experience:   3,
			Preference:   5,
			Emotion:      3,
		},
		ConsolidationInterval: 5 * time.Minute,
	}
}

// withDefaults fills zero fields from DefaultOptions.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.AssociationThreshold <= 0 {
		o.AssociationThreshold = d.AssociationThreshold
	}
	if o.TagWeight == 0 && o.ContentWeight == 0 && o.KindWeight == 0 {
		o.TagWeight, o.ContentWeight, o.KindWeight = d.TagWeight, d.ContentWeight, d.KindWeight
	}
	if o.PromoteImportance <= 0 {
		o.PromoteImportance = d.PromoteImportance
	}
	if o.PromoteAge <= 0 {
		o.PromoteAge = d.PromoteAge
	}
	if o.PromoteAccessCount <= 0 {
		o.PromoteAccessCount = d.PromoteAccessCount
	}
	if o.MaxShortTermAge <= 0 {
		o.MaxShortTermAge = d.MaxShortTermAge
	}
	if o.ShortTermCapacity <= 0 {
		o.ShortTermCapacity = d.ShortTermCapacity
	}
	if o.DecayFactor <= 0 || o.DecayFactor > 1 {
		o.DecayFactor = d.DecayFactor
	}
	if o.DecayAfter <= 0 {
		o.DecayAfter = d.DecayAfter
	}
	if o.DecayInterval <= 0 {
		o.DecayInterval = d.DecayInterval
	}
	if o.ImportanceFloor <= 0 {
		o.ImportanceFloor = d.ImportanceFloor
	}
	if o.RecencyScale <= 0 {
		o.RecencyScale = d.RecencyScale
	}
	if o.DefaultImportance <= 0 {
		o.DefaultImportance = d.DefaultImportance
	}
	if o.DefaultLimit <= 0 {
		o.DefaultLimit = d.DefaultLimit
	}
	if o.ContextLimits.Conversation <= 0 {
		o.ContextLimits.Conversation = d.ContextLimits.Conversation
	}
	if o.ContextLimits.Experience <= 0 {
		o.ContextLimits.Experience = d.ContextLimits.Experience
	}
	if o.ContextLimits.Preference <= 0 {
		o.ContextLimits.Preference = d.ContextLimits.Preference
	}
	if o.ContextLimits.Emotion <= 0 {
		o.ContextLimits.Emotion = d.ContextLimits.Emotion
	}
	if o.ConsolidationInterval <= 0 {
		o.ConsolidationInterval = d.ConsolidationInterval
	}
	return o
}

// StoreOption customizes a StoreMemory call.
type StoreOption func(*storeParams)

type storeParams struct {
	importance *float64
	tags       []string
}

// WithImportance sets the importance of the new item. Out-of-range values are clamped.
func WithImportance(v float64) StoreOption {
	return func(p *storeParams) { p.importance = &v }
}

// WithTags attaches tags to the new item.
func WithTags(tags ...string) StoreOption {
	return func(p *storeParams) { p.tags = append(p.tags, tags...) }
}

// RetrieveOption customizes a RetrieveRelevant call.
type RetrieveOption func(*retrieveParams)

type retrieveParams struct {
	kind  Kind
	limit int
}

// WithKind restricts retrieval to one kind.
func WithKind(k Kind) RetrieveOption {
	return func(p *retrieveParams) { p.kind = k }
}

// WithLimit caps the number of results. Non-positive values use the default.
func WithLimit(n int) RetrieveOption {
	return func(p *retrieveParams) { p.limit = n }
}
