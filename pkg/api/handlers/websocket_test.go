package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sallie/companion/pkg/eventbus"
	"github.com/sallie/companion/pkg/logger"
)

func testWSLogger() logger.Logger {
	return logger.New(&logger.Config{
		Level:  logger.ErrorLevel,
		Format: "json",
		Output: "stdout",
	})
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func readEvent(t *testing.T, conn *websocket.Conn) EventMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got EventMessage
	require.NoError(t, conn.ReadJSON(&got))
	return got
}

func waitForClients(t *testing.T, h *WebSocketHandler, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.Count() == n }, 2*time.Second, 5*time.Millisecond)
}

func TestWebSocketHandler_RejectsNonUpgrade(t *testing.T) {
	handler := NewWebSocketHandler(testWSLogger(), WebSocketConfig{})

	req := httptest.NewRequest(http.MethodGet, "/ws/events", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebSocketHandler_DomainFilter(t *testing.T) {
	handler := NewWebSocketHandler(testWSLogger(), WebSocketConfig{MaxConnections: 5})
	server := httptest.NewServer(handler)
	defer server.Close()
	defer handler.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server.URL)+"?domain=emotion", nil)
	require.NoError(t, err)
	defer conn.Close()
	waitForClients(t, handler, 1)

	require.NoError(t, handler.Broadcast(EventMessage{Type: eventbus.EventMemoryStored, Payload: map[string]any{"id": "m1"}}))
	require.NoError(t, handler.Broadcast(EventMessage{Type: eventbus.EventEmotionChanged, Payload: map[string]any{"primary": "joy"}}))

	got := readEvent(t, conn)
	assert.Equal(t, eventbus.EventEmotionChanged, got.Type)
	assert.False(t, got.Timestamp.IsZero())
}

func TestWebSocketHandler_SubscribeMessage(t *testing.T) {
	handler := NewWebSocketHandler(testWSLogger(), WebSocketConfig{})
	server := httptest.NewServer(handler)
	defer server.Close()
	defer handler.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server.URL), nil)
	require.NoError(t, err)
	defer conn.Close()
	waitForClients(t, handler, 1)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "subscribe", "domain": "personality"}))

	require.Eventually(t, func() bool {
		handler.manager.mu.RLock()
		defer handler.manager.mu.RUnlock()
		for client := range handler.manager.clients {
			return !client.shouldReceive(eventbus.DomainMemory)
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, handler.Broadcast(EventMessage{Type: eventbus.EventMemoryStored}))
	require.NoError(t, handler.Broadcast(EventMessage{Type: eventbus.EventTraitsEvolved}))
	assert.Equal(t, eventbus.EventTraitsEvolved, readEvent(t, conn).Type)
}

func TestWebSocketHandler_ConnectionLimit(t *testing.T) {
	handler := NewWebSocketHandler(testWSLogger(), WebSocketConfig{MaxConnections: 1})
	server := httptest.NewServer(handler)
	defer server.Close()
	defer handler.Close()

	first, _, err := websocket.DefaultDialer.Dial(wsURL(server.URL), nil)
	require.NoError(t, err)
	defer first.Close()
	waitForClients(t, handler, 1)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(server.URL), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestWebSocketHandler_OriginCheck(t *testing.T) {
	handler := NewWebSocketHandler(testWSLogger(), WebSocketConfig{
		AllowedOrigins: []string{"http://allowed.example"},
	})
	server := httptest.NewServer(handler)
	defer server.Close()
	defer handler.Close()

	headers := http.Header{}
	headers.Set("Origin", "http://blocked.example")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(server.URL), headers)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	headers.Set("Origin", "http://allowed.example")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server.URL), headers)
	require.NoError(t, err)
	_ = conn.Close()
}

func TestWebSocketHandler_ForwardsBusEvents(t *testing.T) {
	handler := NewWebSocketHandler(testWSLogger(), WebSocketConfig{})
	server := httptest.NewServer(handler)
	defer server.Close()
	defer handler.Close()

	bus := eventbus.NewMemoryBus()
	defer bus.Close()
	sub, err := bus.Subscribe(eventbus.AllSubjects(), 16)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handler.Forward(ctx, sub, eventbus.NewEnvelopeConsumer(eventbus.DefaultSchemaRouter(), 0))

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server.URL), nil)
	require.NoError(t, err)
	defer conn.Close()
	waitForClients(t, handler, 1)

	pub, err := eventbus.NewPublisher("sallie-test", bus, eventbus.DefaultRetryConfig(),
		eventbus.WithSchemaRouter(eventbus.DefaultSchemaRouter()))
	require.NoError(t, err)

	// Garbage on the bus is dropped without stopping the relay.
	require.NoError(t, bus.Publish(ctx, eventbus.Subject(eventbus.EventMemoryStored), []byte("not json")))

	env, err := pub.Publish(ctx, eventbus.Event{
		Type:        eventbus.EventMemoryStored,
		OrderingKey: "memory",
		Payload:     eventbus.MemoryStored{ID: "m1", Kind: "fact"},
	})
	require.NoError(t, err)

	got := readEvent(t, conn)
	assert.Equal(t, env.EventID, got.ID)
	assert.Equal(t, eventbus.EventMemoryStored, got.Type)

	payload, ok := got.Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "m1", payload["id"])
}

func TestConnectionManager_RegisterUnregisterBroadcast(t *testing.T) {
	manager := NewConnectionManager(2)
	clientA := newWSClient(nil, 4)
	clientB := newWSClient(nil, 4)
	clientA.subscribe(eventbus.DomainEmotion)

	require.NoError(t, manager.Register(clientA))
	require.NoError(t, manager.Register(clientB))
	assert.ErrorIs(t, manager.Register(newWSClient(nil, 4)), ErrConnectionLimit)
	assert.Equal(t, 2, manager.Count())

	require.NoError(t, manager.Broadcast(EventMessage{Type: eventbus.EventEmotionChanged}))
	assert.Len(t, clientA.send, 1)
	assert.Len(t, clientB.send, 1)

	require.NoError(t, manager.Broadcast(EventMessage{Type: eventbus.EventMemoryStored}))
	assert.Len(t, clientA.send, 1)
	assert.Len(t, clientB.send, 2)

	manager.Unregister(clientA)
	assert.Equal(t, 1, manager.Count())
	// Unregister closes the send channel; a second call is a no-op.
	manager.Unregister(clientA)
}

func TestConnectionManager_DropsSlowClients(t *testing.T) {
	manager := NewConnectionManager(0)
	slow := newWSClient(nil, 1)
	require.NoError(t, manager.Register(slow))

	require.NoError(t, manager.Broadcast(EventMessage{Type: eventbus.EventMemoryStored}))
	require.NoError(t, manager.Broadcast(EventMessage{Type: eventbus.EventMemoryStored}))

	assert.Equal(t, 0, manager.Count())
}

func TestEventMessageJSONFormat(t *testing.T) {
	data, err := json.Marshal(EventMessage{
		ID:        "evt-1",
		Type:      eventbus.EventTraitsEvolved,
		Timestamp: time.Now().UTC(),
		Payload:   map[string]any{"traits": map[string]float64{"empathy": 0.8}},
	})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	for _, field := range []string{"id", "type", "timestamp", "payload"} {
		assert.Contains(t, decoded, field)
	}
}
