package eventbus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ErrBusClosed is returned when publishing to a closed bus.
var ErrBusClosed = errors.New("eventbus: bus closed")

// Message is a delivered event-bus message.
type Message struct {
	Subject   string
	Payload   []byte
	Timestamp time.Time
}

// Bus is a transport that also delivers messages to local subscribers.
type Bus interface {
	Transport
	Subscribe(pattern string, buffer int) (*Subscription, error)
	Close() error
}

// Subscription represents a subject subscription.
type Subscription struct {
	pattern string
	ch      chan Message
	// mu is the owning bus's lock; it guards closed.
	mu          *sync.RWMutex
	closed      bool
	dropped     atomic.Int64
	unsubscribe func(*Subscription)
}

// C returns read-only message channel. It is closed when the subscription
// or the bus is closed.
func (s *Subscription) C() <-chan Message {
	return s.ch
}

// Pattern returns the subject pattern of the subscription.
func (s *Subscription) Pattern() string {
	return s.pattern
}

// Dropped returns the number of messages dropped because the buffer was full.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// Close removes the subscription and closes its channel.
func (s *Subscription) Close() error {
	s.unsubscribe(s)
	return nil
}

// MemoryBus is an in-process pub/sub transport. Slow subscribers lose
// messages instead of blocking publishers.
type MemoryBus struct {
	mu          sync.RWMutex
	subscribers map[string][]*Subscription
	closed      bool
}

// NewMemoryBus creates an in-memory event bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		subscribers: make(map[string][]*Subscription),
	}
}

// Publish publishes to all matching subscriptions.
func (b *MemoryBus) Publish(ctx context.Context, subject string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if subject == "" {
		return fmt.Errorf("eventbus: subject cannot be empty")
	}

	msg := Message{
		Subject:   subject,
		Payload:   append([]byte(nil), payload...),
		Timestamp: time.Now().UTC(),
	}

	// Sends happen under the read lock so a concurrent Close cannot close a
	// channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	for pattern, subs := range b.subscribers {
		if !subjectMatches(pattern, subject) {
			continue
		}
		for _, sub := range subs {
			select {
			case sub.ch <- msg:
			default:
				sub.dropped.Add(1)
			}
		}
	}
	return nil
}

// Subscribe subscribes by subject pattern.
func (b *MemoryBus) Subscribe(pattern string, buffer int) (*Subscription, error) {
	if pattern == "" {
		return nil, fmt.Errorf("eventbus: subscription pattern cannot be empty")
	}
	if buffer <= 0 {
		buffer = 32
	}
	sub := &Subscription{
		pattern:     pattern,
		ch:          make(chan Message, buffer),
		mu:          &b.mu,
		unsubscribe: b.unsubscribe,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}
	b.subscribers[pattern] = append(b.subscribers[pattern], sub)
	return sub, nil
}

// SubscriberCount returns the number of live subscriptions.
func (b *MemoryBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, subs := range b.subscribers {
		n += len(subs)
	}
	return n
}

// Close closes every subscription. Further publishes fail with ErrBusClosed.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, subs := range b.subscribers {
		for _, sub := range subs {
			sub.closed = true
			close(sub.ch)
		}
	}
	b.subscribers = make(map[string][]*Subscription)
	return nil
}

func (b *MemoryBus) unsubscribe(target *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if target.closed {
		return
	}
	target.closed = true
	subs := b.subscribers[target.pattern]
	filtered := subs[:0]
	for _, sub := range subs {
		if sub == target {
			continue
		}
		filtered = append(filtered, sub)
	}
	if len(filtered) == 0 {
		delete(b.subscribers, target.pattern)
	} else {
		b.subscribers[target.pattern] = filtered
	}
	close(target.ch)
}

// subjectMatches supports exact, "*" segment, and ">" suffix wildcards.
func subjectMatches(pattern, subject string) bool {
	if pattern == subject || pattern == ">" {
		return true
	}
	if strings.HasSuffix(pattern, ".>") {
		prefix := strings.TrimSuffix(pattern, ".>")
		if prefix == "" {
			return true
		}
		return strings.HasPrefix(subject, prefix+".")
	}

	patternParts := strings.Split(pattern, ".")
	subjectParts := strings.Split(subject, ".")
	if len(patternParts) != len(subjectParts) {
		return false
	}
	for i := range patternParts {
		if patternParts[i] == "*" {
			continue
		}
		if patternParts[i] != subjectParts[i] {
			return false
		}
	}
	return true
}
