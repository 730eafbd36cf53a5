// Package ws streams settlement facts to browser clients. The hub subscribes
// to the signal bus once and fans each fact out to every connected socket
// that wants that channel.
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

	"github.com/streakvault/streakvault/internal/domain"
)

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = pongWait * 9 / 10
	maxFrameSize    = 4096
	clientSendBuf   = 256
	hubBroadcastBuf = 256
)

// factChannels is what every new connection starts subscribed to.
var factChannels = []string{
	domain.ChannelPositions,
	domain.ChannelMarkets,
	domain.ChannelBets,
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin filtering happens in the CORS middleware; the upgrade itself
	// accepts everyone.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Config is the metadata reported to clients in the connect-time status
// envelope.
type Config struct {
	Mode      string
	StartedAt time.Time
}

// fact pairs a bus payload with the channel it arrived on so the hub can
// route it to matching subscribers only.
type fact struct {
	channel string
	data    []byte
}

// Hub owns the client set and the bridge from the signal bus.
type Hub struct {
	bus    domain.SignalBus
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}

	inbound    chan fact
	register   chan *client
	unregister chan *client

	mode      string
	startedAt time.Time
}

// NewHub builds a hub over the given bus. Run must be started for anything
// to flow.
func NewHub(bus domain.SignalBus, logger *slog.Logger, cfg Config) *Hub {
	mode := strings.TrimSpace(strings.ToLower(cfg.Mode))
	if mode == "" {
		mode = "unknown"
	}
	started := cfg.StartedAt
	if started.IsZero() {
		started = time.Now().UTC()
	}

	return &Hub{
		bus:        bus,
		logger:     logger.With(slog.String("component", "ws")),
		clients:    make(map[*client]struct{}),
		inbound:    make(chan fact, hubBroadcastBuf),
		register:   make(chan *client),
		unregister: make(chan *client),
		mode:       mode,
		startedAt:  started,
	}
}

// Run bridges bus facts to clients until ctx ends, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) error {
	for _, ch := range factChannels {
		go h.relay(ctx, ch)
	}

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
			}
			h.clients = make(map[*client]struct{})
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client connected", slog.Int("total_clients", n))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client disconnected", slog.Int("total_clients", n))

		case f := <-h.inbound:
			h.deliver(f)
		}
	}
}

// deliver fans one fact out. A client whose buffer is full loses the fact;
// facts are a live feed, not a queue.
func (h *Hub) deliver(f fact) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.wants(f.channel) {
			continue
		}
		select {
		case c.send <- f.data:
		default:
			h.logger.Warn("dropping fact for slow client", slog.String("channel", f.channel))
		}
	}
}

// relay forwards one bus channel into the hub's inbound queue.
func (h *Hub) relay(ctx context.Context, channel string) {
	msgs, err := h.bus.Subscribe(ctx, channel)
	if err != nil {
		h.logger.Error("bus subscribe failed",
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
		case data, ok := <-msgs:
			if !ok {
				h.logger.Warn("bus subscription closed", slog.String("channel", channel))
				return
			}
			h.inbound <- fact{channel: channel, data: data}
		}
	}
}

// HandleWS upgrades the request and attaches the connection to the hub.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, clientSendBuf),
		subs: make(map[string]struct{}, len(factChannels)),
	}
	for _, ch := range factChannels {
		c.subs[ch] = struct{}{}
	}

	h.register <- c
	c.pushStatus()

	go c.writeLoop()
	go c.readLoop()
}

// client is one socket plus its channel subscriptions.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu   sync.RWMutex
	subs map[string]struct{}
}

// controlMsg is the only inbound frame clients send: channel subscription
// changes.
type controlMsg struct {
	Action   string   `json:"action"` // subscribe | unsubscribe
	Channels []string `json:"channels"`
}

func (c *client) wants(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subs[channel]
	return ok
}

func (c *client) applyControl(msg controlMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range msg.Channels {
		if msg.Action == "subscribe" {
			c.subs[ch] = struct{}{}
		} else if msg.Action == "unsubscribe" {
			delete(c.subs, ch)
		}
	}
}

// pushStatus sends the connect-time envelope so dashboards can show a healthy
// link before the first fact arrives.
func (c *client) pushStatus() {
	uptime := max(int64(time.Since(c.hub.startedAt).Seconds()), 0)
	msg, err := json.Marshal(map[string]any{
		"type": "service_status",
		"payload": map[string]any{
			"mode":           c.hub.mode,
			"ws_connected":   true,
			"uptime_seconds": uptime,
		},
	})
	if err != nil {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// readLoop consumes control frames and keeps the pong deadline fresh. Any
// read error detaches the client.
func (c *client) readLoop() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
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
		if json.Unmarshal(frame, &msg) == nil && msg.Action != "" {
			c.applyControl(msg)
		}
	}
}

// writeLoop sends queued facts as text frames and pings on a timer. The hub
// closing the send channel ends the connection.
func (c *client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
