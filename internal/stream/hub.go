package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aaronlmathis/vsflux/internal/lineproto"
	"github.com/aaronlmathis/vsflux/internal/metrics"
)

// Hub fans emitted records out to live WebSocket subscribers
type Hub struct {
	logger *zap.Logger

	// Registered clients
	clients map[*Client]bool

	// Outbound records waiting to be fanned out
	broadcast chan lineproto.Record

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed once Run returns
	done chan struct{}

	mu sync.RWMutex

	maxConnections int
}

// Client is one subscriber connection
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string

	// kind restricts the stream to "host" or "guest"; empty receives everything
	kind string
}

// Message is the frame written to subscribers
type Message struct {
	Type string           `json:"type"`
	Data lineproto.Record `json:"data"`
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Subscribers never send payloads
	maxMessageSize = 512

	broadcastBuffer = 256
	clientBuffer    = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewHub creates a new hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:         logger,
		clients:        make(map[*Client]bool),
		broadcast:      make(chan lineproto.Record, broadcastBuffer),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		done:           make(chan struct{}),
		maxConnections: 100,
	}
}

// Run services registrations and broadcasts until ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			h.logger.Info("Line stream hub stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

			metrics.RecordWebSocketConnection()
			h.logger.Info("Stream client registered",
				zap.String("id", client.id),
				zap.String("kind", client.kind))

		case client := <-h.unregister:
			if h.remove(client) {
				h.logger.Info("Stream client unregistered", zap.String("id", client.id))
			}

		case record := <-h.broadcast:
			h.fanOut(record)
		}
	}
}

// Publish queues a record for subscribers. It never blocks the collector;
// records are dropped when the hub is backed up.
func (h *Hub) Publish(record lineproto.Record) {
	select {
	case h.broadcast <- record:
	default:
		h.logger.Warn("Dropping record for stream subscribers, hub is backed up",
			zap.String("entity", record.Entity))
	}
}

func (h *Hub) fanOut(record lineproto.Record) {
	msg, err := json.Marshal(Message{Type: "record", Data: record})
	if err != nil {
		h.logger.Error("Failed to marshal stream message", zap.Error(err))
		return
	}

	h.mu.RLock()
	var slow []*Client
	for client := range h.clients {
		if client.kind != "" && client.kind != record.Kind {
			continue
		}
		select {
		case client.send <- msg:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.logger.Warn("Removing unresponsive stream client", zap.String("id", client.id))
		h.remove(client)
	}
}

// remove drops a client and closes its send channel; it reports whether the
// client was still registered
func (h *Hub) remove(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return false
	}
	delete(h.clients, client)
	close(client.send)
	metrics.RecordWebSocketDisconnection()
	return true
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
		metrics.RecordWebSocketDisconnection()
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and subscribes it to the stream. The optional
// "kind" query parameter restricts the stream to hosts or guests.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	if kind != "" && kind != "host" && kind != "guest" {
		http.Error(w, "kind must be host or guest", http.StatusBadRequest)
		return
	}

	if count := h.ClientCount(); count >= h.maxConnections {
		h.logger.Warn("Stream connection rejected, connection limit reached",
			zap.Int("current", count),
			zap.Int("limit", h.maxConnections))
		http.Error(w, "Connection limit reached", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection", zap.Error(err))
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, clientBuffer),
		id:   uuid.NewString(),
		kind: kind,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	case <-r.Context().Done():
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump drains control frames and unregisters the client on disconnect
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("Unexpected stream close", zap.String("id", c.id), zap.Error(err))
			}
			return
		}
	}
}

// writePump writes one frame per record and keeps the connection alive with pings
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
