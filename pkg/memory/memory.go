package memory

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the memory store.
var (
	ErrInvalidInput = errors.New("memory: invalid input")
	ErrEmptyContent = fmt.Errorf("%w: content is empty", ErrInvalidInput)
	ErrInvalidKind  = fmt.Errorf("%w: unknown kind", ErrInvalidInput)
	ErrNotFound     = errors.New("memory: item not found")
)

// Kind classifies a memory item.
type Kind string

const (
	KindConversation Kind = "conversation"
	KindExperience   Kind = "experience"
	KindFact         Kind = "fact"
	KindPreference   Kind = "preference"
	KindEmotion      Kind = "emotion"
)

// Kinds lists every valid kind.
var Kinds = []Kind{KindConversation, KindExperience, KindFact, KindPreference, KindEmotion}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindConversation, KindExperience, KindFact, KindPreference, KindEmotion:
		return true
	}
	return false
}

// ParseKind parses a kind name. An empty string yields KindConversation.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return KindConversation, nil
	}
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
	return k, nil
}

// Partition names the two tiers of the store.
type Partition string

const (
	ShortTerm Partition = "short_term"
	LongTerm  Partition = "long_term"
)

// ParsePartition parses a partition name.
func ParsePartition(s string) (Partition, error) {
	switch Partition(strings.ToLower(strings.TrimSpace(s))) {
	case ShortTerm:
		return ShortTerm, nil
	case LongTerm:
		return LongTerm, nil
	}
	return "", fmt.Errorf("%w: unknown partition %q", ErrInvalidInput, s)
}
