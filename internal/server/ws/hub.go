// Package ws streams engine notifications to WebSocket clients. Each event
// is sent as a binary frame holding a protobuf-encoded google.protobuf.Struct.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alanyoungcy/batchauction/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

// Pattern is the channel pattern the hub subscribes to on the bus.
const Pattern = "auction:events:*"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// client is a single WebSocket connection. An empty auction set means the
// client receives every auction's events.
type client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	auctions map[uint64]bool
	mu       sync.RWMutex
}

// subscribeMsg is the text frame a client sends to narrow or widen its feed.
type subscribeMsg struct {
	Action   string   `json:"action"` // "subscribe" or "unsubscribe"
	Auctions []uint64 `json:"auctions"`
}

// Hub bridges the signal bus to connected WebSocket clients.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan frame
	register   chan *client
	unregister chan *client
	// done is closed when Run returns; nothing reads register or
	// unregister after that.
	done   chan struct{}
	stop   sync.Once
	bus    domain.SignalBus
	mu     sync.RWMutex
	logger *slog.Logger
}

type frame struct {
	auctionID uint64
	data      []byte
}

// NewHub creates a Hub reading from bus.
func NewHub(bus domain.SignalBus, logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan frame, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		bus:        bus,
		logger:     logger.With(slog.String("component", "ws")),
	}
}

// Run subscribes to the bus and serves the hub until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	defer h.stop.Do(func() { close(h.done) })
	msgs, err := h.bus.Subscribe(ctx, Pattern)
	if err != nil {
		return fmt.Errorf("ws: subscribe %s: %w", Pattern, err)
	}
	h.logger.InfoContext(ctx, "ws: subscribed", slog.String("pattern", Pattern))
	go h.forward(ctx, msgs)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws: client connected", slog.Int("total_clients", n))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws: client disconnected", slog.Int("total_clients", n))

		case f := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if !c.wants(f.auctionID) {
					continue
				}
				select {
				case c.send <- f.data:
				default:
					h.logger.Warn("ws: dropping message for slow client")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// forward encodes bus messages as frames.
func (h *Hub) forward(ctx context.Context, msgs <-chan domain.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-msgs:
			if !ok {
				h.logger.Warn("ws: subscription closed", slog.String("pattern", Pattern))
				return
			}
			f, err := encodeFrame(m)
			if err != nil {
				h.logger.Warn("ws: dropping undecodable event",
					slog.String("channel", m.Channel),
					slog.String("error", err.Error()),
				)
				continue
			}
			select {
			case h.broadcast <- f:
			case <-ctx.Done():
				return
			}
		}
	}
}

// encodeFrame wraps a JSON event payload as {"channel": c, "event": {...}}.
func encodeFrame(m domain.Message) (frame, error) {
	var event map[string]any
	if err := json.Unmarshal(m.Payload, &event); err != nil {
		return frame{}, fmt.Errorf("decode payload: %w", err)
	}
	var auctionID uint64
	if v, ok := event["auctionId"].(float64); ok && v >= 0 {
		auctionID = uint64(v)
	}
	st, err := structpb.NewStruct(map[string]any{
		"channel": m.Channel,
		"event":   event,
	})
	if err != nil {
		return frame{}, fmt.Errorf("build struct: %w", err)
	}
	data, err := proto.Marshal(st)
	if err != nil {
		return frame{}, fmt.Errorf("marshal struct: %w", err)
	}
	return frame{auctionID: auctionID, data: data}, nil
}

// HandleWS upgrades the request and registers the connection.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}
	c := &client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		auctions: make(map[uint64]bool),
	}
	for _, part := range strings.Split(r.URL.Query().Get("auctions"), ",") {
		if id, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64); err == nil {
			c.auctions[id] = true
		}
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// clientCount returns the number of currently connected clients.
func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *client) wants(auctionID uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.auctions) == 0 || c.auctions[auctionID]
}

// readPump handles subscription frames until the connection drops.
func (c *client) readPump() {
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
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close error", slog.String("error", err.Error()))
			}
			return
		}
		var sub subscribeMsg
		if err := json.Unmarshal(message, &sub); err == nil {
			c.apply(sub)
		}
	}
}

func (c *client) apply(msg subscribeMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch msg.Action {
	case "subscribe":
		for _, id := range msg.Auctions {
			c.auctions[id] = true
		}
	case "unsubscribe":
		for _, id := range msg.Auctions {
			delete(c.auctions, id)
		}
	}
}

// writePump sends frames and keepalive pings.
func (c *client) writePump() {
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
			if err := c.conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
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
