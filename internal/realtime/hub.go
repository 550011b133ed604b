package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

// Message is what clients receive.
type Message struct {
	Type              string `json:"type"`
	CheckoutRequestID string `json:"checkout_request_id,omitempty"`
	Data              any    `json:"data,omitempty"`
}

// request is what clients send: subscribe or unsubscribe to a checkout id.
type request struct {
	Type              string `json:"type"`
	CheckoutRequestID string `json:"checkout_request_id"`
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	subs map[string]bool
}

// Hub fans payment updates out to websocket clients watching a checkout request.
type Hub struct {
	mu       sync.Mutex
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHub creates a Hub. checkOrigin may be nil to accept any origin.
func NewHub(logger *zap.Logger, checkOrigin func(r *http.Request) bool) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		clients: map[*client]struct{}{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger: logger,
	}
}

// ServeWS upgrades the request and serves the client until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		subs: map[string]bool{},
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", zap.String("client_id", c.id))

	go h.writePump(c)
	h.readPump(c)
}

// Publish sends data to every client subscribed to checkoutID. Slow clients
// are dropped rather than blocking the caller.
func (h *Hub) Publish(checkoutID string, data any) {
	payload, err := json.Marshal(Message{Type: "payment_update", CheckoutRequestID: checkoutID, Data: data})
	if err != nil {
		h.logger.Error("failed to encode payment update", zap.String("checkout_request_id", checkoutID), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if !c.subs[checkoutID] {
			continue
		}
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("dropping slow websocket client", zap.String("client_id", c.id))
			h.removeLocked(c)
		}
	}
}

// Subscribers returns how many clients watch checkoutID.
func (h *Hub) Subscribers(checkoutID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for c := range h.clients {
		if c.subs[checkoutID] {
			n++
		}
	}
	return n
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.mu.Lock()
		h.removeLocked(c)
		h.mu.Unlock()
		c.conn.Close()
		h.logger.Debug("websocket client disconnected", zap.String("client_id", c.id))
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}

		var req request
		if err := json.Unmarshal(raw, &req); err != nil || req.CheckoutRequestID == "" {
			continue
		}
		h.mu.Lock()
		switch req.Type {
		case "subscribe":
			c.subs[req.CheckoutRequestID] = true
		case "unsubscribe":
			delete(c.subs, req.CheckoutRequestID)
		}
		h.mu.Unlock()
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
