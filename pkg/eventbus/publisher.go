package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Transport publishes bytes to a subject.
type Transport interface {
	Publish(ctx context.Context, subject string, payload []byte) error
}

// Telemetry records publish behavior.
type Telemetry interface {
	RecordEventPublish(eventType, status string)
	RecordEventRetry()
	SetEventBusDegraded(active bool)
}

type nopTelemetry struct{}

func (nopTelemetry) RecordEventPublish(eventType, status string) {}
func (nopTelemetry) RecordEventRetry()                           {}
func (nopTelemetry) SetEventBusDegraded(active bool)             {}

// RetryConfig controls retry/backoff behavior for publish attempts.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
}

// DefaultRetryConfig returns default retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		BackoffFactor:  2,
	}
}

// Event is the publish input for companion events.
type Event struct {
	Type string
	// OrderingKey groups events whose sequence numbers must be monotonic.
	// Defaults to the event's domain.
	OrderingKey string
	Schema      string
	Timestamp   time.Time
	Payload     any
}

// Publisher wraps events in envelopes and publishes them with retry.
type Publisher struct {
	transport Transport
	source    string
	retry     RetryConfig
	telemetry Telemetry
	router    *SchemaRouter

	mu        sync.Mutex
	sequences map[string]int64
	degraded  bool
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithTelemetry sets the telemetry sink.
func WithTelemetry(t Telemetry) PublisherOption {
	return func(p *Publisher) {
		if t != nil {
			p.telemetry = t
		}
	}
}

// WithSchemaRouter validates outgoing envelopes against the router.
func WithSchemaRouter(r *SchemaRouter) PublisherOption {
	return func(p *Publisher) { p.router = r }
}

// NewPublisher creates a publisher.
func NewPublisher(source string, transport Transport, retry RetryConfig, opts ...PublisherOption) (*Publisher, error) {
	if source == "" {
		return nil, fmt.Errorf("eventbus: source cannot be empty")
	}
	if transport == nil {
		return nil, fmt.Errorf("eventbus: transport cannot be nil")
	}
	if retry.MaxRetries < 0 {
		return nil, fmt.Errorf("eventbus: max retries cannot be negative")
	}
	if retry.InitialBackoff <= 0 || retry.MaxBackoff <= 0 || retry.BackoffFactor < 1 {
		return nil, fmt.Errorf("eventbus: invalid retry config")
	}
	p := &Publisher{
		transport: transport,
		source:    source,
		retry:     retry,
		telemetry: nopTelemetry{},
		sequences: make(map[string]int64),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Publish publishes an event with retry/backoff and degraded mode handling.
func (p *Publisher) Publish(ctx context.Context, event Event) (Envelope, error) {
	if err := ctx.Err(); err != nil {
		return Envelope{}, err
	}
	if event.Type == "" {
		return Envelope{}, fmt.Errorf("eventbus: event type cannot be empty")
	}
	orderingKey := event.OrderingKey
	if orderingKey == "" {
		orderingKey = string(DomainOf(event.Type))
	}
	seq := p.nextSequence(orderingKey)

	envelope, err := BuildEnvelope(BuildEnvelopeInput{
		EventType:     event.Type,
		SchemaVersion: event.Schema,
		Source:        p.source,
		OrderingKey:   orderingKey,
		Sequence:      seq,
		Timestamp:     event.Timestamp,
		Payload:       event.Payload,
	})
	if err != nil {
		return Envelope{}, err
	}
	if p.router != nil {
		if err := p.router.ValidateOutgoing(envelope); err != nil {
			return Envelope{}, err
		}
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return Envelope{}, fmt.Errorf("eventbus: marshal envelope: %w", err)
	}

	subject := Subject(event.Type)
	backoff := p.retry.InitialBackoff
	var publishErr error
	for attempt := 0; attempt <= p.retry.MaxRetries; attempt++ {
		publishErr = p.transport.Publish(ctx, subject, body)
		if publishErr == nil {
			p.telemetry.RecordEventPublish(event.Type, "success")
			p.setDegraded(false)
			return envelope, nil
		}
		if attempt == p.retry.MaxRetries {
			break
		}
		p.telemetry.RecordEventRetry()
		p.setDegraded(true)

		select {
		case <-ctx.Done():
			return Envelope{}, ctx.Err()
		case <-time.After(backoff):
		}
		backoff = nextBackoff(backoff, p.retry.MaxBackoff, p.retry.BackoffFactor)
	}

	p.telemetry.RecordEventPublish(event.Type, "failed")
	p.setDegraded(true)
	return Envelope{}, fmt.Errorf("eventbus: publish failed: %w", publishErr)
}

// Degraded reports whether the last publish attempt failed.
func (p *Publisher) Degraded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.degraded
}

func (p *Publisher) nextSequence(orderingKey string) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sequences[orderingKey]++
	return p.sequences[orderingKey]
}

func (p *Publisher) setDegraded(active bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.degraded == active {
		return
	}
	p.degraded = active
	p.telemetry.SetEventBusDegraded(active)
}

func nextBackoff(current, max time.Duration, factor float64) time.Duration {
	next := time.Duration(float64(current) * factor)
	if next > max {
		return max
	}
	return next
}
