// Package events streams portal lifecycle events to websocket clients.
package events

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/wifiportal/internal/logging"
)

const (
	// Time allowed to write a message to a client
	writeWait = 5 * time.Second

	// Messages queued per client. A client further behind than this is
	// disconnected.
	sendBuffer = 16

	// Inbound messages are discarded; this only bounds their size.
	maxMessageSize = 512
)

// Message is the frame sent to every client.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// client is one websocket connection with its outbound queue. Only the
// client's write loop writes to conn.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans events out to connected websocket clients. It implements
// wifimanager.EventSink. Publish never waits on a client.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub creates a Hub. A nil logger uses the global one.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = logging.Named("events")
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Portal clients reach the device by whatever name the
			// captive DNS handed them, so origins are not checked.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and registers the client until it
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}
	conn.SetReadLimit(maxMessageSize)

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("event client connected", zap.String("remote_addr", r.RemoteAddr))

	go h.writeLoop(c)
	go func() {
		defer h.drop(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// writeLoop delivers queued messages to c. When the queue is closed it
// says goodbye and closes the connection.
func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.drop(c)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "portal closed"),
		time.Now().Add(writeWait))
}

// Publish queues an event for every client. A client whose queue is full
// is disconnected.
func (h *Hub) Publish(eventType string, payload any) {
	data, err := json.Marshal(Message{Type: eventType, Payload: payload})
	if err != nil {
		h.logger.Warn("failed to encode event", zap.String("type", eventType), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Debug("event client too slow, disconnecting",
				zap.String("remote_addr", c.conn.RemoteAddr().String()))
			h.removeLocked(c)
			// Unblock a write stuck on the stalled peer.
			_ = c.conn.Close()
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// CloseClients disconnects every client once its queued events are
// written.
func (h *Hub) CloseClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		h.removeLocked(c)
	}
	h.mu.Unlock()
	if ok {
		_ = c.conn.Close()
		h.logger.Debug("event client disconnected", zap.String("remote_addr", c.conn.RemoteAddr().String()))
	}
}

// removeLocked unregisters c and ends its write loop. Callers hold mu.
func (h *Hub) removeLocked(c *client) {
	delete(h.clients, c)
	close(c.send)
}
