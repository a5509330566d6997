package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"fxpilot/internal/store"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The REST surface is already open CORS; the feed follows suit.
	CheckOrigin: func(*http.Request) bool { return true },
}

// client is a single WebSocket subscriber. A slow reader that cannot keep
// up with the send buffer gets dropped rather than stalling the broadcast.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub broadcasts snapshot updates to all connected WebSocket clients. It
// polls the snapshot store and pushes the document whenever UpdatedAt
// advances, so subscribers see every engine publish without re-polling the
// REST API themselves.
type Hub struct {
	snaps store.SnapshotStore
	log   *slog.Logger

	mu      sync.Mutex
	clients map[*client]bool
	last    []byte
	lastAt  time.Time
}

// NewHub creates a Hub over the given snapshot store.
func NewHub(snaps store.SnapshotStore, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		snaps:   snaps,
		log:     log.With("component", "ws"),
		clients: make(map[*client]bool),
	}
}

// Run polls the store on the given interval and broadcasts snapshot
// changes until ctx is cancelled. It should be launched as a goroutine.
func (h *Hub) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-ticker.C:
			h.poll(ctx)
		}
	}
}

// poll reads the snapshot and broadcasts it if it changed since the last
// push.
func (h *Hub) poll(ctx context.Context) {
	snap, err := h.snaps.GetSnapshot(ctx)
	if err != nil {
		if err != store.ErrNotFound {
			h.log.Warn("reading snapshot", "err", err)
		}
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if !snap.UpdatedAt.After(h.lastAt) {
		return
	}

	msg, err := json.Marshal(snap)
	if err != nil {
		h.log.Error("encoding snapshot", "err", err)
		return
	}
	h.last = msg
	h.lastAt = snap.UpdatedAt

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// HandleWebSocket upgrades the connection and registers it for snapshot
// broadcasts. The current snapshot, if any, is sent immediately on connect.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "err", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 16)}

	h.mu.Lock()
	h.clients[c] = true
	if h.last != nil {
		c.send <- h.last
	}
	n := len(h.clients)
	h.mu.Unlock()

	h.log.Info("websocket client connected", "remote", r.RemoteAddr, "clients", n)
	go h.writePump(c)
	go h.readPump(c)
}

// writePump drains the client's send channel onto the connection and keeps
// it alive with pings.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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

// readPump discards inbound messages and detects a closed connection. The
// feed is one-way; clients only listen.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		c.conn.Close()
	}
}
