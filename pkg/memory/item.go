// Package memory implements the companion's memory store: short and long
// term partitions, similarity associations, relevance retrieval and
// periodic consolidation with importance decay.
package memory

import (
	"time"
)

// Item represents a single memory stored in the system.
type Item struct {
	// ID is the unique identifier for this memory.
	ID string `json:"id"`

	// Content is the raw text of the memory.
	Content string `json:"content"`

	// Kind classifies the memory.
	Kind Kind `json:"kind"`

	// Importance is in [0,1]. It decays for items left untouched.
	Importance float64 `json:"importance"`

	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`

	// Tags is a sorted, de-duplicated, lower-cased set.
	Tags []string `json:"tags,omitempty"`

	// Associations holds ids of similar items. Symmetric, never self.
	Associations []string `json:"associations,omitempty"`

	// AccessCount is incremented on every retrieval that returns the item.
	AccessCount int `json:"access_count"`

	// LastDecayedAt is when importance was last decayed; zero if never.
	LastDecayedAt time.Time `json:"last_decayed_at"`
}

// Context is the per-kind memory snapshot used for response generation.
type Context struct {
	Conversation []Item `json:"conversation"`
	Experience   []Item `json:"experience"`
	Preference   []Item `json:"preference"`
	Emotion      []Item `json:"emotion"`
}

// ConsolidationReport summarizes a consolidation pass.
type ConsolidationReport struct {
	Promoted  int           `json:"promoted"`
	Evicted   int           `json:"evicted"`
	Decayed   int           `json:"decayed"`
	ShortTerm int           `json:"short_term"`
	LongTerm  int           `json:"long_term"`
	Duration  time.Duration `json:"duration"`
	// Skipped is set when another pass was already running.
	Skipped bool `json:"skipped"`
}

// Stats holds counters about the store.
type Stats struct {
	ShortTerm    int          `json:"short_term"`
	LongTerm     int          `json:"long_term"`
	ByKind       map[Kind]int `json:"by_kind"`
	Associations int          `json:"associations"`
}
