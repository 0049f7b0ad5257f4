package eventbus

import (
	"encoding/json"
	"fmt"
	"sync"
)

const defaultDedupWindow = 1024

// EnvelopeConsumer validates envelopes and suppresses duplicate deliveries.
// Only the most recent event ids are remembered.
type EnvelopeConsumer struct {
	router *SchemaRouter
	window int

	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
}

// NewEnvelopeConsumer creates a schema-aware consumer. A nil router skips validation.
func NewEnvelopeConsumer(router *SchemaRouter, window int) *EnvelopeConsumer {
	if window <= 0 {
		window = defaultDedupWindow
	}
	return &EnvelopeConsumer{
		router: router,
		window: window,
		seen:   make(map[string]struct{}, window),
	}
}

// DecodeAndValidate decodes raw event bytes, validates them and reports duplicates.
func (c *EnvelopeConsumer) DecodeAndValidate(raw []byte) (Envelope, bool, error) {
	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Envelope{}, false, fmt.Errorf("eventbus: invalid envelope json: %w", err)
	}

	if c.router != nil {
		if err := c.router.ValidateIncoming(envelope); err != nil {
			return Envelope{}, false, err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.seen[envelope.EventID]; exists {
		return envelope, true, nil
	}
	c.seen[envelope.EventID] = struct{}{}
	c.order = append(c.order, envelope.EventID)
	if len(c.order) > c.window {
		delete(c.seen, c.order[0])
		c.order = c.order[1:]
	}
	return envelope, false, nil
}
