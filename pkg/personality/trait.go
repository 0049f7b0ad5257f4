// Package personality holds the companion's traits and nudges them in
// response to emotional events, dampened by each trait's stability.
package personality

import "math"

// Trait names.
const (
	Empathy        = "empathy"
	Creativity     = "creativity"
	Loyalty        = "loyalty"
	Wisdom         = "wisdom"
	Playfulness    = "playfulness"
	Protectiveness = "protectiveness"
)

// Trait is a named personality value in [0,1]. Stability in [0,1] is the
// trait's resistance to change.
type Trait struct {
	Name        string  `json:"name"`
	Value       float64 `json:"value"`
	Stability   float64 `json:"stability"`
	Description string  `json:"description,omitempty"`
}

// DefaultTraits returns the default trait set.
func DefaultTraits() []Trait {
	return []Trait{
		{Name: Empathy, Value: 0.8, Stability: 0.7, Description: "Understanding and sharing the user's feelings"},
		{Name: Creativity, Value: 0.7, Stability: 0.5, Description: "Imaginative and original responses"},
		{Name: Loyalty, Value: 0.9, Stability: 0.9, Description: "Steadfast commitment to the user"},
		{Name: Wisdom, Value: 0.7, Stability: 0.8, Description: "Thoughtful, grounded perspective"},
		{Name: Playfulness, Value: 0.6, Stability: 0.4, Description: "Humor and lightheartedness"},
		{Name: Protectiveness, Value: 0.7, Stability: 0.6, Description: "Care for the user's wellbeing"},
	}
}

// apply moves the trait by delta dampened by stability and returns the
// resulting value.
func (t *Trait) apply(delta float64) float64 {
	if math.IsNaN(delta) || t.Stability >= 1 {
		return t.Value
	}
	t.Value = clamp01(t.Value + delta*(1-t.Stability))
	return t.Value
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
