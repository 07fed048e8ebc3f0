// Package wsfanout broadcasts JSON envelopes to connected websocket clients.
// Delivery is best-effort: each client has a bounded send buffer and a
// client that falls behind is disconnected.
package wsfanout

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/stockline/backoffice/pkg/enums"
	"github.com/stockline/backoffice/pkg/logger"
	"github.com/stockline/backoffice/pkg/metrics"
)

const (
	defaultBufferSize = 32
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
)

// Message is the wire envelope pushed to clients.
type Message struct {
	Event enums.BroadcastTag `json:"event"`
	Data  any                `json:"data"`
}

// ResyncFunc returns the messages a freshly connected client needs to catch up.
type ResyncFunc func(ctx context.Context) ([]Message, error)

type Options struct {
	BufferSize     int
	Resync         ResyncFunc
	AllowedOrigins []string
	Logger         *logger.Logger
	Metrics        *metrics.FanoutMetrics
}

type Hub struct {
	upgrader   websocket.Upgrader
	bufferSize int
	logg       *logger.Logger
	metrics    *metrics.FanoutMetrics

	mu      sync.RWMutex
	resync  ResyncFunc
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte

	mu sync.Mutex
	// syncing holds broadcasts in backlog until the resync snapshot is queued.
	syncing bool
	backlog [][]byte
	closed  bool
}

type offerResult int

const (
	offerQueued offerResult = iota
	offerFull
	offerClosed
)

// offer queues payload without blocking. Broadcasts that arrive while the
// client is still syncing wait in the backlog, bounded like the send buffer.
func (c *client) offer(payload []byte, resync bool) offerResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.syncing && !resync && !c.closed {
		if len(c.backlog) >= cap(c.send) {
			return offerFull
		}
		c.backlog = append(c.backlog, payload)
		return offerQueued
	}
	return c.pushLocked(payload)
}

// synced ends the catch-up phase and flushes the backlog behind the
// snapshot.
func (c *client) synced() offerResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.syncing = false
	backlog := c.backlog
	c.backlog = nil
	if c.closed {
		return offerClosed
	}
	for _, payload := range backlog {
		if res := c.pushLocked(payload); res != offerQueued {
			return res
		}
	}
	return offerQueued
}

func (c *client) pushLocked(payload []byte) offerResult {
	if c.closed {
		return offerClosed
	}
	select {
	case c.send <- payload:
		return offerQueued
	default:
		return offerFull
	}
}

// shut closes the send channel once and reports whether this call did it.
func (c *client) shut() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	c.backlog = nil
	close(c.send)
	return true
}

func NewHub(opts Options) *Hub {
	size := opts.BufferSize
	if size <= 0 {
		size = defaultBufferSize
	}
	h := &Hub{
		bufferSize: size,
		logg:       opts.Logger,
		metrics:    opts.Metrics,
		resync:     opts.Resync,
		clients:    map[*client]struct{}{},
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return h
}

// SetResync replaces the resync provider. Used when the provider depends on
// services built after the hub.
func (h *Hub) SetResync(fn ResyncFunc) {
	h.mu.Lock()
	h.resync = fn
	h.mu.Unlock()
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// ServeHTTP upgrades the request and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.warn(r.Context(), fmt.Sprintf("websocket upgrade failed: %v", err))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, h.bufferSize), syncing: true}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	resync := h.resync
	h.mu.Unlock()
	h.metrics.ClientConnected()

	go h.writePump(c)
	h.sendResync(r.Context(), c, resync)
	if c.synced() == offerFull {
		h.metrics.IncDropped()
		h.remove(c)
	}
	go h.readPump(c)
}

func (h *Hub) sendResync(ctx context.Context, c *client, resync ResyncFunc) {
	if resync == nil {
		return
	}
	msgs, err := resync(context.WithoutCancel(ctx))
	if err != nil {
		h.warn(ctx, fmt.Sprintf("websocket resync failed: %v", err))
		return
	}
	for _, m := range msgs {
		payload, err := json.Marshal(m)
		if err != nil {
			h.warn(ctx, fmt.Sprintf("encode resync %s: %v", m.Event, err))
			continue
		}
		if !h.enqueue(c, payload, true) {
			return
		}
	}
}

// Broadcast queues the envelope for every client and returns how many
// clients accepted it.
func (h *Hub) Broadcast(event enums.BroadcastTag, data any) int {
	payload, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		h.warn(context.Background(), fmt.Sprintf("encode broadcast %s: %v", event, err))
		return 0
	}
	h.metrics.IncBroadcast(string(event))

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if h.enqueue(c, payload, false) {
			delivered++
		}
	}
	return delivered
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// enqueue never blocks; a full buffer disconnects the client.
func (h *Hub) enqueue(c *client, payload []byte, resync bool) bool {
	switch c.offer(payload, resync) {
	case offerQueued:
		return true
	case offerFull:
		h.metrics.IncDropped()
		h.remove(c)
	}
	return false
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, registered := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if c.shut() && registered {
		h.metrics.ClientDisconnected()
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.remove(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}

// readPump discards inbound frames and detects disconnects.
func (h *Hub) readPump(c *client) {
	defer h.remove(c)
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		h.remove(c)
	}
}

func (h *Hub) warn(ctx context.Context, msg string) {
	if h.logg != nil {
		h.logg.Warn(ctx, msg)
	}
}
