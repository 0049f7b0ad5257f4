package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sallie/companion/pkg/eventbus"
)

const (
	defaultPingInterval = 30 * time.Second
	defaultPongTimeout  = 10 * time.Second
	defaultWriteTimeout = 10 * time.Second
	defaultSendBuffer   = 64
	maxIncomingMessage  = 4 << 10
)

// ErrConnectionLimit is returned when the event stream is at capacity.
var ErrConnectionLimit = errors.New("websocket connection limit reached")

// WebSocketConfig configures websocket handler behavior.
type WebSocketConfig struct {
	AllowedOrigins []string
	// MaxConnections caps concurrent clients. Zero means unlimited.
	MaxConnections int
	BufferSize     int
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration
}

// EventMessage is the websocket event format.
type EventMessage struct {
	ID        string    `json:"id,omitempty"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// incomingMessage lets a client narrow the stream to some domains, e.g.
// {"type":"subscribe","domain":"emotion"}.
type incomingMessage struct {
	Type   string `json:"type"`
	Domain string `json:"domain"`
}

type wsClient struct {
	conn      *websocket.Conn
	send      chan []byte
	domains   map[eventbus.Domain]struct{}
	mu        sync.RWMutex
	closeOnce sync.Once
}

func newWSClient(conn *websocket.Conn, buffer int) *wsClient {
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	return &wsClient{
		conn:    conn,
		send:    make(chan []byte, buffer),
		domains: make(map[eventbus.Domain]struct{}),
	}
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		close(c.send)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

func (c *wsClient) subscribe(domain eventbus.Domain) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.domains[domain] = struct{}{}
}

func (c *wsClient) unsubscribe(domain eventbus.Domain) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.domains, domain)
}

// shouldReceive reports whether the client wants events of domain. A client
// with no subscriptions receives everything.
func (c *wsClient) shouldReceive(domain eventbus.Domain) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.domains) == 0 {
		return true
	}
	_, ok := c.domains[domain]
	return ok
}

func parseDomain(s string) (eventbus.Domain, bool) {
	switch d := eventbus.Domain(strings.ToLower(strings.TrimSpace(s))); d {
	case eventbus.DomainEmotion, eventbus.DomainMemory, eventbus.DomainPersonality:
		return d, true
	}
	return "", false
}

// ConnectionManager manages active websocket clients.
type ConnectionManager struct {
	mu             sync.RWMutex
	clients        map[*wsClient]struct{}
	maxConnections int
}

// NewConnectionManager creates a manager. A non-positive limit means unlimited.
func NewConnectionManager(maxConnections int) *ConnectionManager {
	return &ConnectionManager{
		clients:        make(map[*wsClient]struct{}),
		maxConnections: maxConnections,
	}
}

func (m *ConnectionManager) fullLocked() bool {
	return m.maxConnections > 0 && len(m.clients) >= m.maxConnections
}

// Register registers a websocket client.
func (m *ConnectionManager) Register(client *wsClient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fullLocked() {
		return ErrConnectionLimit
	}
	m.clients[client] = struct{}{}
	return nil
}

// Unregister unregisters and closes a websocket client.
func (m *ConnectionManager) Unregister(client *wsClient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[client]; !ok {
		return
	}
	delete(m.clients, client)
	client.close()
}

// Count returns active connection count.
func (m *ConnectionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// CanAccept reports whether there is capacity for one more connection.
func (m *ConnectionManager) CanAccept() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.fullLocked()
}

// Broadcast sends event to every interested client. Clients whose buffer is
// full are disconnected rather than allowed to stall the stream.
func (m *ConnectionManager) Broadcast(event EventMessage) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	domain := eventbus.DomainOf(event.Type)

	m.mu.RLock()
	clients := make([]*wsClient, 0, len(m.clients))
	for client := range m.clients {
		clients = append(clients, client)
	}
	m.mu.RUnlock()

	for _, client := range clients {
		if !client.shouldReceive(domain) {
			continue
		}
		// Unregister closes send under the manager lock; hold the read lock so
		// the channel cannot be closed mid-send.
		m.mu.RLock()
		_, live := m.clients[client]
		delivered := true
		if live {
			select {
			case client.send <- payload:
			default:
				delivered = false
			}
		}
		m.mu.RUnlock()
		if !delivered {
			m.Unregister(client)
		}
	}
	return nil
}

// Close closes all active websocket connections.
func (m *ConnectionManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for client := range m.clients {
		client.close()
		delete(m.clients, client)
	}
}

// WebSocketHandler streams companion events to websocket clients at /ws/events.
type WebSocketHandler struct {
	log          Logger
	manager      *ConnectionManager
	upgrader     websocket.Upgrader
	bufferSize   int
	pingInterval time.Duration
	pongTimeout  time.Duration
	writeTimeout time.Duration
}

// NewWebSocketHandler creates a websocket handler.
func NewWebSocketHandler(log Logger, cfg WebSocketConfig) *WebSocketHandler {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = defaultPongTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}

	handler := &WebSocketHandler{
		log:          orNop(log),
		manager:      NewConnectionManager(cfg.MaxConnections),
		bufferSize:   cfg.BufferSize,
		pingInterval: cfg.PingInterval,
		pongTimeout:  cfg.PongTimeout,
		writeTimeout: cfg.WriteTimeout,
	}

	allowedOrigins := append([]string(nil), cfg.AllowedOrigins...)
	handler.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return isWebSocketOriginAllowed(r, allowedOrigins)
		},
	}
	return handler
}

// ServeHTTP upgrades HTTP to websocket and starts client loops.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "websocket upgrade required", http.StatusBadRequest)
		return
	}
	if !h.manager.CanAccept() {
		http.Error(w, ErrConnectionLimit.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := newWSClient(conn, h.bufferSize)
	for _, d := range r.URL.Query()["domain"] {
		if domain, ok := parseDomain(d); ok {
			client.subscribe(domain)
		}
	}
	if err := h.manager.Register(client); err != nil {
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many websocket connections"),
			time.Now().Add(h.writeTimeout),
		)
		_ = conn.Close()
		return
	}

	go h.writePump(client)
	h.readPump(client)
}

func (h *WebSocketHandler) readPump(client *wsClient) {
	defer h.manager.Unregister(client)

	readDeadline := h.pingInterval + h.pongTimeout
	client.conn.SetReadLimit(maxIncomingMessage)
	_ = client.conn.SetReadDeadline(time.Now().Add(readDeadline))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("websocket read error", "error", err)
			}
			return
		}
		h.handleIncomingMessage(client, data)
	}
}

func (h *WebSocketHandler) writePump(client *wsClient) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		h.manager.Unregister(client)
	}()

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				_ = client.conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(h.writeTimeout),
				)
				return
			}
			_ = client.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			if err := client.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.writeTimeout)); err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHandler) handleIncomingMessage(client *wsClient, raw []byte) {
	var message incomingMessage
	if err := json.Unmarshal(raw, &message); err != nil {
		return
	}
	domain, ok := parseDomain(message.Domain)
	if !ok {
		return
	}

	switch strings.ToLower(strings.TrimSpace(message.Type)) {
	case "subscribe":
		client.subscribe(domain)
	case "unsubscribe":
		client.unsubscribe(domain)
	}
}

// Broadcast sends an event to matching websocket clients.
func (h *WebSocketHandler) Broadcast(event EventMessage) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	return h.manager.Broadcast(event)
}

// Forward relays envelopes from a bus subscription to the websocket clients
// until ctx is done or the subscription closes. Invalid and duplicate
// envelopes are dropped.
func (h *WebSocketHandler) Forward(ctx context.Context, sub *eventbus.Subscription, consumer *eventbus.EnvelopeConsumer) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.C():
			if !ok {
				return
			}
			env, dup, err := consumer.DecodeAndValidate(msg.Payload)
			if err != nil {
				h.log.Warn("dropping invalid event", "subject", msg.Subject, "error", err)
				continue
			}
			if dup {
				continue
			}
			if err := h.Broadcast(EventMessage{
				ID:        env.EventID,
				Type:      env.EventType,
				Timestamp: env.Timestamp,
				Payload:   env.Payload,
			}); err != nil {
				h.log.Warn("failed to broadcast event", "event_type", env.EventType, "error", err)
			}
		}
	}
}

// Count returns the number of connected clients.
func (h *WebSocketHandler) Count() int {
	return h.manager.Count()
}

// Close closes all websocket clients.
func (h *WebSocketHandler) Close() {
	h.manager.Close()
}

func isWebSocketOriginAllowed(r *http.Request, allowedOrigins []string) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}

	for _, allowed := range allowedOrigins {
		if allowed == "*" || strings.EqualFold(strings.TrimSpace(allowed), origin) {
			return true
		}
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(originURL.Host, r.Host)
}
