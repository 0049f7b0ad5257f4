package eventbus

import "time"

// EmotionChanged is the payload of EventEmotionChanged.
type EmotionChanged struct {
	Primary   string   `json:"primary"`
	Secondary []string `json:"secondary,omitempty"`
	Intensity float64  `json:"intensity"`
	Valence   float64  `json:"valence"`
	Arousal   float64  `json:"arousal"`
	Dominance float64  `json:"dominance"`
}

// MemoryStored is the payload of EventMemoryStored.
type MemoryStored struct {
	ID         string   `json:"id"`
	Kind       string   `json:"kind"`
	Importance float64  `json:"importance"`
	Tags       []string `json:"tags,omitempty"`
}

// MemoryConsolidated is the payload of EventMemoryConsolidated.
type MemoryConsolidated struct {
	Promoted  int           `json:"promoted"`
	Evicted   int           `json:"evicted"`
	Decayed   int           `json:"decayed"`
	ShortTerm int           `json:"short_term"`
	LongTerm  int           `json:"long_term"`
	Duration  time.Duration `json:"duration"`
}

// TraitsEvolved is the payload of EventTraitsEvolved.
type TraitsEvolved struct {
	Dominant string             `json:"dominant"`
	Traits   map[string]float64 `json:"traits"`
}
