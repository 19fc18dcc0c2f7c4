// Package ws bridges the Redis signal bus to browser clients over
// WebSocket. The hub fans every bus message out to the connected clients
// that subscribed to its channel.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/papertrade/dogebot/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

// busChannels are the pub/sub channels the hub relays. They match the
// channels the tracker publishes position, price, account, and signal
// events on.
var busChannels = []string{"positions", "prices", "account", "signals"}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin checks happen in the CORS middleware ahead of the upgrade.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Config carries the runtime metadata included in the status frame sent to
// each client on connect.
type Config struct {
	Mode      string
	Symbol    string
	StartedAt time.Time
}

// envelope pairs a bus message with its source channel for routing.
type envelope struct {
	channel string
	data    []byte
}

// Hub owns the set of connected clients and the relay goroutines.
type Hub struct {
	bus    domain.SignalBus
	logger *slog.Logger

	mode      string
	symbol    string
	startedAt time.Time

	register   chan *client
	unregister chan *client
	broadcast  chan envelope

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub creates a hub over the given signal bus.
func NewHub(bus domain.SignalBus, logger *slog.Logger, cfg Config) *Hub {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "unknown"
	}
	symbol := strings.ToUpper(strings.TrimSpace(cfg.Symbol))
	if symbol == "" {
		symbol = "unknown"
	}
	startedAt := cfg.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}

	return &Hub{
		bus:        bus,
		logger:     logger.With(slog.String("component", "ws")),
		mode:       mode,
		symbol:     symbol,
		startedAt:  startedAt,
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan envelope, 256),
		clients:    make(map[*client]struct{}),
	}
}

// Run relays bus messages to clients until the context is cancelled. Call it
// in its own goroutine.
func (h *Hub) Run(ctx context.Context) error {
	for _, ch := range busChannels {
		go h.relayChannel(ctx, ch)
	}

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return ctx.Err()
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c)
		case env := <-h.broadcast:
			h.fanOut(env)
		}
	}
}

// HandleWS upgrades the request and attaches the client to the hub.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := newClient(h, conn)
	h.register <- c
	c.queue(h.statusFrame())

	go c.writePump()
	go c.readPump()
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("client connected", slog.Int("total_clients", n))
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("client disconnected", slog.Int("total_clients", n))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// fanOut delivers one bus message to every subscribed client. A client whose
// send buffer is full loses the message rather than stalling the loop.
func (h *Hub) fanOut(env envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.subscribed(env.channel) {
			continue
		}
		if !c.queue(env.data) {
			h.logger.Warn("dropping message for slow client", slog.String("channel", env.channel))
		}
	}
}

// relayChannel pipes one bus subscription into the broadcast loop.
func (h *Hub) relayChannel(ctx context.Context, channel string) {
	msgCh, err := h.bus.Subscribe(ctx, channel)
	if err != nil {
		h.logger.Error("subscribe failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return
	}
	h.logger.Info("subscribed", slog.String("channel", channel))

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgCh:
			if !ok {
				h.logger.Warn("subscription closed", slog.String("channel", channel))
				return
			}
			h.broadcast <- envelope{channel: channel, data: data}
		}
	}
}

// statusFrame builds the greeting sent on connect so clients can mark the
// stream healthy before any market event arrives.
func (h *Hub) statusFrame() []byte {
	uptime := max(int64(time.Since(h.startedAt).Seconds()), 0)
	frame, err := json.Marshal(map[string]any{
		"type": "status",
		"payload": map[string]any{
			"mode":           h.mode,
			"symbol":         h.symbol,
			"ws_connected":   true,
			"uptime_seconds": uptime,
		},
	})
	if err != nil {
		return nil
	}
	return frame
}

// client is one WebSocket connection with its channel subscriptions.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu   sync.RWMutex
	subs map[string]bool
}

// controlMsg is the JSON frame clients send to change their subscriptions.
type controlMsg struct {
	Action   string   `json:"action"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

func newClient(h *Hub, conn *websocket.Conn) *client {
	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		subs: make(map[string]bool, len(busChannels)),
	}
	// New connections start with every channel until the client narrows.
	for _, ch := range busChannels {
		c.subs[ch] = true
	}
	return c
}

// queue enqueues a frame without blocking. It reports false when the buffer
// is full and the frame was dropped.
func (c *client) queue(frame []byte) bool {
	if frame == nil {
		return true
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// subscribed reports whether the client listens on channel. A subscription
// ending in '*' matches by prefix, so "positions:*" covers
// "positions:conservative".
func (c *client) subscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.subs[channel] {
		return true
	}
	for sub := range c.subs {
		if prefix, ok := strings.CutSuffix(sub, "*"); ok && strings.HasPrefix(channel, prefix) {
			return true
		}
	}
	return false
}

func (c *client) applyControl(msg controlMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch msg.Action {
	case "subscribe":
		for _, ch := range msg.Channels {
			c.subs[ch] = true
		}
	case "unsubscribe":
		for _, ch := range msg.Channels {
			delete(c.subs, ch)
		}
	}
}

// readPump consumes client frames, treating well-formed JSON as subscription
// control messages and keeping the read deadline fresh via pong handling.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("unexpected close", slog.String("error", err.Error()))
			}
			return
		}

		var msg controlMsg
		if err := json.Unmarshal(frame, &msg); err == nil && msg.Action != "" {
			c.applyControl(msg)
		}
	}
}

// writePump flushes queued frames and sends keepalive pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
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
