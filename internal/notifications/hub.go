package notifications

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/xoen85/accept-connect-app-oqvfkg/pkg/logger"
	"github.com/xoen85/accept-connect-app-oqvfkg/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 << 10

	defaultBufferSize = 32
)

// Event types pushed to subscribers.
const (
	EventMessageReceived    = "message.received"
	EventMessageResponded   = "message.responded"
	EventProximityConnected = "proximity.connected"
)

// Event represents a payload delivered to push subscribers.
type Event struct {
	Type string    `json:"type"`
	Data any       `json:"data,omitempty"`
	At   time.Time `json:"at"`
}

// Hub fans push events out to every websocket a user has open.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*connection]struct{}
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHub constructs a push hub.
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*connection]struct{}),
		log:     logger.Module(log, "notifications"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Native clients send no Origin; browsers must be same-host or loopback.
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				originHost := hostWithoutPort(origin)
				return originHost == hostWithoutPort(r.Host) || isLoopback(originHost)
			},
		},
	}
}

// Serve upgrades the HTTP connection and registers it for userID until the socket closes.
func (h *Hub) Serve(userID string, w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &connection{
		hub:    h,
		socket: conn,
		userID: userID,
		send:   make(chan Event, defaultBufferSize),
	}
	h.register(client)

	go client.writeLoop()
	client.readLoop()
}

// Notify delivers event to every connection of userID. Slow consumers are disconnected rather
// than allowed to block the caller.
func (h *Hub) Notify(userID string, event Event) {
	userID = strings.TrimSpace(userID)
	if h == nil || userID == "" {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	h.mu.RLock()
	targets := make([]*connection, 0, len(h.clients[userID]))
	for client := range h.clients[userID] {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		client.enqueue(event)
	}
}

// Subscribers returns the number of open connections for userID.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) register(client *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.userID] == nil {
		h.clients[client.userID] = make(map[*connection]struct{})
	}
	h.clients[client.userID][client] = struct{}{}
	metrics.PushSubscribers.Inc()
}

func (h *Hub) unregister(client *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.clients[client.userID]
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.clients, client.userID)
	}
	metrics.PushSubscribers.Dec()
}

type connection struct {
	hub    *Hub
	socket *websocket.Conn
	userID string

	mu     sync.Mutex
	closed bool
	send   chan Event
}

func (c *connection) enqueue(event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	select {
	case c.send <- event:
	default:
		c.hub.log.Warn("dropping slow push subscriber", zap.String("user_id", c.userID))
		c.closeLocked()
	}
}

func (c *connection) readLoop() {
	defer c.close()

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug("unexpected websocket close", zap.String("user_id", c.userID), zap.Error(err))
			}
			return
		}

		var ctrl struct {
			Action string `json:"action"`
		}
		if len(payload) == 0 || json.Unmarshal(payload, &ctrl) != nil {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(ctrl.Action), "ping") {
			c.enqueue(Event{Type: "pong"})
		}
	}
}

func (c *connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.socket.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.socket.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *connection) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *connection) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	c.hub.unregister(c)
	close(c.send)
}

func hostWithoutPort(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}

	for _, scheme := range []string{"http://", "https://"} {
		if strings.HasPrefix(host, scheme) {
			host = strings.TrimPrefix(host, scheme)
			if idx := strings.Index(host, "/"); idx >= 0 {
				host = host[:idx]
			}
			break
		}
	}

	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isLoopback(host string) bool {
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}
