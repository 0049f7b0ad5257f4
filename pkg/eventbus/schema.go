package eventbus

import (
	"encoding/json"
	"fmt"
	"sync"
)

// PayloadSchema describes the payload contract for an event type and schema version.
type PayloadSchema struct {
	SchemaVersion string
	EventType     string
	Required      []string
}

// SchemaRouter validates envelopes against registered payload contracts.
type SchemaRouter struct {
	mu             sync.RWMutex
	payloadSchemas map[string]PayloadSchema // key: version:eventType
}

// NewSchemaRouter creates an empty schema router.
func NewSchemaRouter() *SchemaRouter {
	return &SchemaRouter{
		payloadSchemas: make(map[string]PayloadSchema),
	}
}

// DefaultSchemaRouter returns a router with the companion event contracts registered.
func DefaultSchemaRouter() *SchemaRouter {
	r := NewSchemaRouter()
	for _, schema := range []PayloadSchema{
		{SchemaVersion: SchemaVersionV1, EventType: EventEmotionChanged, Required: []string{"primary", "intensity", "valence", "arousal", "dominance"}},
		{SchemaVersion: SchemaVersionV1, EventType: EventMemoryStored, Required: []string{"id", "kind", "importance"}},
		{SchemaVersion: SchemaVersionV1, EventType: EventMemoryConsolidated, Required: []string{"promoted", "evicted", "decayed"}},
		{SchemaVersion: SchemaVersionV1, EventType: EventTraitsEvolved, Required: []string{"traits"}},
	} {
		_ = r.RegisterPayloadSchema(schema)
	}
	return r
}

// RegisterPayloadSchema registers a payload schema contract.
func (r *SchemaRouter) RegisterPayloadSchema(schema PayloadSchema) error {
	if schema.SchemaVersion == "" || schema.EventType == "" {
		return fmt.Errorf("eventbus: schema version and event type are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloadSchemas[schemaKey(schema.SchemaVersion, schema.EventType)] = schema
	return nil
}

// ValidateOutgoing validates a publisher envelope.
func (r *SchemaRouter) ValidateOutgoing(envelope Envelope) error {
	return r.validateEnvelope(envelope)
}

// ValidateIncoming validates a consumer envelope.
func (r *SchemaRouter) ValidateIncoming(envelope Envelope) error {
	return r.validateEnvelope(envelope)
}

func (r *SchemaRouter) validateEnvelope(envelope Envelope) error {
	if envelope.EventID == "" || envelope.EventType == "" || envelope.SchemaVersion == "" {
		return fmt.Errorf("eventbus: missing required envelope fields")
	}
	if envelope.Source == "" || envelope.OrderingKey == "" || envelope.Sequence <= 0 {
		return fmt.Errorf("eventbus: missing required identity/ordering fields")
	}

	r.mu.RLock()
	schema, exists := r.payloadSchemas[schemaKey(envelope.SchemaVersion, envelope.EventType)]
	r.mu.RUnlock()
	if !exists {
		return nil
	}
	return validatePayloadAgainstSchema(envelope.Payload, schema)
}

func validatePayloadAgainstSchema(payload json.RawMessage, schema PayloadSchema) error {
	var payloadMap map[string]json.RawMessage
	if err := json.Unmarshal(payload, &payloadMap); err != nil {
		return fmt.Errorf("eventbus: invalid payload json: %w", err)
	}
	for _, field := range schema.Required {
		if _, ok := payloadMap[field]; !ok {
			return fmt.Errorf("eventbus: required payload field %q missing for %s", field, schema.EventType)
		}
	}
	return nil
}

func schemaKey(version, eventType string) string {
	return version + ":" + eventType
}
