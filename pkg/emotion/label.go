// Package emotion derives a coarse emotional reading from free text and
// tracks the user's current affective state.
package emotion

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownLabel is returned when an emotion name cannot be parsed.
var ErrUnknownLabel = errors.New("emotion: unknown label")

// Label is a coarse emotion category.
type Label string

const (
	Joy      Label = "joy"
	Sadness  Label = "sadness"
	Anger    Label = "anger"
	Fear     Label = "fear"
	Surprise Label = "surprise"
	Disgust  Label = "disgust"
	Neutral  Label = "neutral"
)

// Priority lists the labels in tie-break order, highest first.
var Priority = []Label{Joy, Sadness, Anger, Fear, Surprise, Disgust, Neutral}

var aliases = map[string]Label{
	"happy":     Joy,
	"happiness": Joy,
	"sad":       Sadness,
	"angry":     Anger,
	"mad":       Anger,
	"scared":    Fear,
	"afraid":    Fear,
	"anxious":   Fear,
	"surprised": Surprise,
	"disgusted": Disgust,
	"calm":      Neutral,
	"":          Neutral,
}

// Valid reports whether l is a known label.
func (l Label) Valid() bool {
	switch l {
	case Joy, Sadness, Anger, Fear, Surprise, Disgust, Neutral:
		return true
	}
	return false
}

// ParseLabel parses a label name or one of its aliases.
func ParseLabel(s string) (Label, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if l := Label(s); l.Valid() {
		return l, nil
	}
	if l, ok := aliases[s]; ok {
		return l, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLabel, s)
}

// dimensions holds the valence, arousal and dominance of a label.
type dimensions struct {
	valence, arousal, dominance float64
}

var dimensionTable = map[Label]dimensions{
	Joy:      {0.8, 0.7, 0.6},
	Sadness:  {-0.7, 0.3, 0.2},
	Anger:    {-0.6, 0.8, 0.7},
	Fear:     {-0.7, 0.8, 0.2},
	Surprise: {0.2, 0.8, 0.5},
	Disgust:  {-0.6, 0.5, 0.6},
	Neutral:  {0, 0.3, 0.5},
}

// Dimensions returns the fixed valence, arousal and dominance of l.
func (l Label) Dimensions() (valence, arousal, dominance float64) {
	d, ok := dimensionTable[l]
	if !ok {
		d = dimensionTable[Neutral]
	}
	return d.valence, d.arousal, d.dominance
}
