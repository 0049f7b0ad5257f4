package emotion

import (
	"math"
	"time"
)

// State is an emotional reading.
type State struct {
	Primary   Label     `json:"primary"`
	Secondary []Label   `json:"secondary,omitempty"`
	Intensity float64   `json:"intensity"`
	Valence   float64   `json:"valence"`
	Arousal   float64   `json:"arousal"`
	Dominance float64   `json:"dominance"`
	Timestamp time.Time `json:"timestamp"`
}

// NeutralState returns the resting state stamped with t.
func NeutralState(t time.Time) State {
	v, a, d := Neutral.Dimensions()
	return State{
		Primary:   Neutral,
		Valence:   v,
		Arousal:   a,
		Dominance: d,
		Timestamp: t,
	}
}

// clamped returns s with every dimension in range and an unknown primary
// replaced by neutral.
func (s State) clamped() State {
	if !s.Primary.Valid() {
		s.Primary = Neutral
	}
	if len(s.Secondary) > 0 {
		secondary := make([]Label, 0, len(s.Secondary))
		for _, l := range s.Secondary {
			if l.Valid() && l != s.Primary {
				secondary = append(secondary, l)
			}
		}
		s.Secondary = secondary
	}
	s.Intensity = clamp(s.Intensity, 0, 1)
	s.Valence = clamp(s.Valence, -1, 1)
	s.Arousal = clamp(s.Arousal, 0, 1)
	s.Dominance = clamp(s.Dominance, 0, 1)
	return s
}

func (s State) clone() State {
	if s.Secondary != nil {
		s.Secondary = append([]Label(nil), s.Secondary...)
	}
	return s
}

// Update is a partial state. Nil fields leave the current value unchanged.
// A nil Secondary keeps the current secondary labels; an empty non-nil slice
// clears them.
type Update struct {
	Primary   *Label   `json:"primary,omitempty"`
	Secondary []Label  `json:"secondary,omitempty"`
	Intensity *float64 `json:"intensity,omitempty"`
	Valence   *float64 `json:"valence,omitempty"`
	Arousal   *float64 `json:"arousal,omitempty"`
	Dominance *float64 `json:"dominance,omitempty"`
}

// UpdateFrom returns an Update that replaces every field with those of s.
func UpdateFrom(s State) Update {
	secondary := s.Secondary
	if secondary == nil {
		secondary = []Label{}
	}
	return Update{
		Primary:   &s.Primary,
		Secondary: secondary,
		Intensity: &s.Intensity,
		Valence:   &s.Valence,
		Arousal:   &s.Arousal,
		Dominance: &s.Dominance,
	}
}

// Pattern describes the recent emotional trend.
type Pattern string

const (
	PatternBaseline      Pattern = "establishing_baseline"
	PatternPositiveTrend Pattern = "positive_trend"
	PatternNegativeTrend Pattern = "negative_trend"
	PatternStableNeutral Pattern = "stable_neutral"
)

// Context is the emotional context handed to response generation.
type Context struct {
	UserEmotion State   `json:"user_emotion"`
	Pattern     Pattern `json:"pattern"`
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		v = 0
	}
	return math.Max(lo, math.Min(hi, v))
}
