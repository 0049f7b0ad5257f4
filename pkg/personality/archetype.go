package personality

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownArchetype is returned for archetype names that are not supported.
var ErrUnknownArchetype = errors.New("personality: unknown archetype")

// Archetype selects the persona's trait biases and response templates.
type Archetype int

const (
	Companion Archetype = iota
	Mentor
	Muse
	Guardian
)

// Archetypes lists every supported archetype.
var Archetypes = []Archetype{Companion, Mentor, Muse, Guardian}

func (a Archetype) String() string {
	switch a {
	case Companion:
		return "companion"
	case Mentor:
		return "mentor"
	case Muse:
		return "muse"
	case Guardian:
		return "guardian"
	}
	return fmt.Sprintf("archetype(%d)", int(a))
}

// ParseArchetype parses an archetype name.
func ParseArchetype(s string) (Archetype, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "companion":
		return Companion, nil
	case "mentor":
		return Mentor, nil
	case "muse":
		return Muse, nil
	case "guardian":
		return Guardian, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownArchetype, s)
}

// MarshalText implements encoding.TextMarshaler.
func (a Archetype) MarshalText() ([]byte, error) {
	if a < Companion || a > Guardian {
		return nil, fmt.Errorf("%w: %d", ErrUnknownArchetype, int(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Archetype) UnmarshalText(text []byte) error {
	parsed, err := ParseArchetype(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Templates holds the fixed response templates of an archetype. %s is
// replaced with the user's name.
type Templates struct {
	Greeting  string `json:"greeting"`
	Comfort   string `json:"comfort"`
	Celebrate string `json:"celebrate"`
	Encourage string `json:"encourage"`
}

// Templates returns the response templates of a.
func (a Archetype) Templates() Templates {
	switch a {
	case Mentor:
		return Templates{
			Greeting:  "Good to see you, %s. What are we working through today?",
			Comfort:   "Setbacks are part of the path, %s. Let's look at what we can learn here.",
			Celebrate: "Well earned, %s. That progress came from real effort.",
			Encourage: "You have the tools for this, %s. Take the next small step.",
		}
	case Muse:
		return Templates{
			Greeting:  "Hey %s! What are we dreaming up today?",
			Comfort:   "Even grey days have colors in them, %s. I'm here with you.",
			Celebrate: "Yes, %s! That deserves a little song and dance!",
			Encourage: "Try something wild, %s. The weird idea might be the right one.",
		}
	case Guardian:
		return Templates{
			Greeting:  "Hi %s. I'm here and keeping an eye on things.",
			Comfort:   "You're safe with me, %s. We'll get through this together.",
			Celebrate: "I'm proud of you, %s. You handled that well.",
			Encourage: "I've got your back, %s. You can do this.",
		}
	default:
		return Templates{
			Greeting:  "Hi %s! It's really nice to hear from you.",
			Comfort:   "I'm sorry you're going through this, %s. I'm right here.",
			Celebrate: "That's wonderful, %s! I'm so happy for you!",
			Encourage: "I believe in you, %s. One step at a time.",
		}
	}
}

// biases returns the trait offsets applied on initialization.
func (a Archetype) biases() map[string]float64 {
	switch a {
	case Mentor:
		return map[string]float64{Wisdom: 0.15, Playfulness: -0.1}
	case Muse:
		return map[string]float64{Creativity: 0.15, Playfulness: 0.1, Wisdom: -0.05}
	case Guardian:
		return map[string]float64{Protectiveness: 0.15, Loyalty: 0.05, Playfulness: -0.05}
	default:
		return map[string]float64{Empathy: 0.05}
	}
}
