package eventbus

import (
	"fmt"
	"strings"
)

const (
	// SubjectPrefix is the canonical prefix for companion events.
	SubjectPrefix = "companion"
)

// Domain identifies the component an event originates from.
type Domain string

const (
	DomainEmotion     Domain = "emotion"
	DomainMemory      Domain = "memory"
	DomainPersonality Domain = "personality"
)

// Event types. The subject of an event is SubjectPrefix + "." + type.
const (
	EventEmotionChanged     = "emotion.changed"
	EventMemoryStored       = "memory.stored"
	EventMemoryConsolidated = "memory.consolidated"
	EventTraitsEvolved      = "personality.evolved"
)

// Subject returns the canonical subject for an event type.
func Subject(eventType string) string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, sanitizeSegment(eventType))
}

// DomainOf returns the domain segment of an event type.
func DomainOf(eventType string) Domain {
	domain, _, _ := strings.Cut(eventType, ".")
	return Domain(domain)
}

// DomainWildcardSubject returns the wildcard subject matching every event of a domain.
func DomainWildcardSubject(domain Domain) string {
	return fmt.Sprintf("%s.%s.>", SubjectPrefix, sanitizeSegment(string(domain)))
}

// AllSubjects matches every companion event.
func AllSubjects() string {
	return SubjectPrefix + ".>"
}

func sanitizeSegment(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
