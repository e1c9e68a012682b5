package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/f451labs/telemetry/internal/api"
)

// Event names carried in Message.Event.
const (
	EventSnapshot = "snapshot"
	EventAlerts   = "alerts"
)

const (
	writeTimeout = 10 * time.Second

	// pongWait is how long a client may stay silent before it is dropped.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	sendBufSize = 16
	maxReadSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Message is the JSON envelope of every frame sent to clients. Data holds an
// api.SnapshotResponse for snapshot events and the same list as
// GET /api/v1/alerts for alert events.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Hub streams row snapshots to WebSocket clients every interval, and the
// active alert list whenever it changes.
type Hub struct {
	deps     api.Deps
	interval time.Duration

	mu        sync.RWMutex
	clients   map[*client]struct{}
	alertsKey string
}

type client struct {
	conn *websocket.Conn
	send chan []byte

	// types limits the rows sent to this client. nil means all rows.
	types map[string]bool
	key   string
}

// New returns a Hub over d. d.Sheet is not used.
func New(d api.Deps, interval time.Duration) *Hub {
	return &Hub{
		deps:     d,
		interval: interval,
		clients:  make(map[*client]struct{}),
	}
}

// Run broadcasts every interval until ctx is cancelled, then closes all
// connections.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-t.C:
			h.Broadcast()
		}
	}
}

// ServeHTTP upgrades the request and streams to the client until it
// disconnects. The optional types query parameter is a comma-separated list
// of data type names to receive. The first snapshot is sent right away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBufSize)}
	c.types, c.key = parseTypes(r.URL.Query().Get("types"))
	if snap, err := api.BuildSnapshot(h.deps.Store, h.deps.Options, h.deps.Uploads); err == nil {
		if data, err := encodeSnapshot(snap, c.types); err == nil {
			c.offer(data)
		}
	}
	h.register(c)
	defer h.unregister(c)
	slog.Debug("ws: client connected", "remote", r.RemoteAddr, "types", c.key)

	go c.writePump()
	c.readPump()
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast pushes the current snapshot to every client, followed by the
// alert list when it changed since the last broadcast. Clients that cannot
// keep up are disconnected.
func (h *Hub) Broadcast() {
	snap, err := api.BuildSnapshot(h.deps.Store, h.deps.Options, h.deps.Uploads)
	if err != nil {
		slog.Error("ws: build snapshot", "err", err)
		return
	}
	alertMsg := h.alertsChanged()

	// Clients with the same filter share one encoded frame.
	frames := make(map[string][]byte)
	var slow []*client

	h.mu.RLock()
	for c := range h.clients {
		data, ok := frames[c.key]
		if !ok {
			if data, err = encodeSnapshot(snap, c.types); err != nil {
				slog.Error("ws: encode snapshot", "err", err)
				continue
			}
			frames[c.key] = data
		}
		if !c.offer(data) || (alertMsg != nil && !c.offer(alertMsg)) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		slog.Warn("ws: client too slow, disconnecting", "remote", c.conn.RemoteAddr().String())
		h.unregister(c)
	}
}

// alertsChanged returns an encoded alerts frame when the set of alert IDs
// and states differs from the previous call, and nil otherwise.
func (h *Hub) alertsChanged() []byte {
	if h.deps.Alerts == nil {
		return nil
	}
	list := h.deps.Alerts.Active()
	parts := make([]string, len(list))
	for i, a := range list {
		parts[i] = a.ID + "=" + a.State
	}
	sort.Strings(parts)
	key := strings.Join(parts, ",")

	h.mu.Lock()
	changed := key != h.alertsKey
	h.alertsKey = key
	h.mu.Unlock()
	if !changed {
		return nil
	}

	data, err := encode(EventAlerts, list)
	if err != nil {
		slog.Error("ws: encode alerts", "err", err)
		return nil
	}
	return data
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// parseTypes turns "a,b" into a lookup set and a canonical key.
func parseTypes(raw string) (map[string]bool, string) {
	var names []string
	for _, n := range strings.Split(raw, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return nil, ""
	}
	sort.Strings(names)
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set, strings.Join(names, ",")
}

func encodeSnapshot(snap api.SnapshotResponse, types map[string]bool) ([]byte, error) {
	if types != nil {
		rows := make([]api.RowResponse, 0, len(types))
		for _, r := range snap.Rows {
			if types[r.Name] {
				rows = append(rows, r)
			}
		}
		snap.Rows = rows
	}
	return encode(EventSnapshot, snap)
}

func encode(event string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Event: event, Data: data})
}

// offer queues msg without blocking and reports whether there was room.
func (c *client) offer(msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// writePump owns all writes to the connection, including pings.
func (c *client) writePump() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		var err error
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			err = c.conn.WriteMessage(websocket.TextMessage, msg)
		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			err = c.conn.WriteMessage(websocket.PingMessage, nil)
		}
		if err != nil {
			return
		}
	}
}

// readPump discards client frames, keeps the read deadline fresh on pongs
// and returns once the connection fails.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(maxReadSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
