package eventbus

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisChannelPrefix namespaces companion subjects on a shared Redis.
const DefaultRedisChannelPrefix = "sallie:events:"

// RedisClient is the part of the go-redis client the bus uses.
type RedisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	PSubscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// RedisBus carries events over Redis Pub/Sub so several processes can share
// one stream. Delivery is at-most-once; a slow subscriber loses messages.
type RedisBus struct {
	client        RedisClient
	channelPrefix string

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	subs   map[*Subscription]*redis.PubSub
	closed bool
}

// NewRedisBus creates a Redis-backed bus. The caller keeps ownership of client.
func NewRedisBus(client RedisClient, channelPrefix string) *RedisBus {
	if channelPrefix == "" {
		channelPrefix = DefaultRedisChannelPrefix
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisBus{
		client:        client,
		channelPrefix: channelPrefix,
		ctx:           ctx,
		cancel:        cancel,
		subs:          make(map[*Subscription]*redis.PubSub),
	}
}

// Publish sends payload on the channel for subject.
func (b *RedisBus) Publish(ctx context.Context, subject string, payload []byte) error {
	if subject == "" {
		return fmt.Errorf("eventbus: subject cannot be empty")
	}
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return ErrBusClosed
	}
	if err := b.client.Publish(ctx, b.channelPrefix+subject, payload).Err(); err != nil {
		return fmt.Errorf("eventbus: redis publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe subscribes by subject pattern. Wildcards follow MemoryBus.
func (b *RedisBus) Subscribe(pattern string, buffer int) (*Subscription, error) {
	if pattern == "" {
		return nil, fmt.Errorf("eventbus: subscription pattern cannot be empty")
	}
	if buffer <= 0 {
		buffer = 32
	}

	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return nil, ErrBusClosed
	}

	pubsub := b.client.PSubscribe(b.ctx, b.channelPrefix+redisGlob(pattern))
	// Wait for the server to confirm so no message published after
	// Subscribe returns is missed.
	if _, err := pubsub.Receive(b.ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("eventbus: redis subscribe %s: %w", pattern, err)
	}

	sub := &Subscription{
		pattern:     pattern,
		ch:          make(chan Message, buffer),
		mu:          &b.mu,
		unsubscribe: b.unsubscribe,
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		_ = pubsub.Close()
		return nil, ErrBusClosed
	}
	b.subs[sub] = pubsub
	b.mu.Unlock()

	go b.forward(sub, pubsub)
	return sub, nil
}

func (b *RedisBus) forward(sub *Subscription, pubsub *redis.PubSub) {
	for msg := range pubsub.Channel() {
		subject := strings.TrimPrefix(msg.Channel, b.channelPrefix)
		// Redis globs are coarser than subject patterns.
		if !subjectMatches(sub.pattern, subject) {
			continue
		}
		m := Message{
			Subject:   subject,
			Payload:   []byte(msg.Payload),
			Timestamp: time.Now().UTC(),
		}

		b.mu.RLock()
		if sub.closed {
			b.mu.RUnlock()
			return
		}
		select {
		case sub.ch <- m:
		default:
			sub.dropped.Add(1)
		}
		b.mu.RUnlock()
	}
}

func (b *RedisBus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	if sub.closed {
		b.mu.Unlock()
		return
	}
	sub.closed = true
	pubsub := b.subs[sub]
	delete(b.subs, sub)
	close(sub.ch)
	b.mu.Unlock()

	if pubsub != nil {
		_ = pubsub.Close()
	}
}

// Close closes every subscription. The Redis client is left open.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	pubsubs := make([]*redis.PubSub, 0, len(b.subs))
	for sub, pubsub := range b.subs {
		sub.closed = true
		close(sub.ch)
		pubsubs = append(pubsubs, pubsub)
	}
	b.subs = make(map[*Subscription]*redis.PubSub)
	b.mu.Unlock()

	b.cancel()
	for _, pubsub := range pubsubs {
		_ = pubsub.Close()
	}
	return nil
}

// redisGlob turns a subject pattern into a PSUBSCRIBE glob. Glob
// metacharacters in literal segments are escaped.
func redisGlob(pattern string) string {
	parts := strings.Split(pattern, ".")
	for i, part := range parts {
		switch part {
		case "*", ">":
			parts[i] = "*"
		default:
			parts[i] = globEscaper.Replace(part)
		}
	}
	return strings.Join(parts, ".")
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
