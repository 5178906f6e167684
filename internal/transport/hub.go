package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Options tunes hub behavior. Zero values fall back to the defaults
// below.
type Options struct {
	// SendBuffer is the per-connection outbound frame buffer. A full
	// buffer drops the frame rather than blocking the core.
	SendBuffer int
	// WriteTimeout bounds each websocket write.
	WriteTimeout time.Duration
	// PongTimeout closes a connection that produced no pong or data
	// frame within the window.
	PongTimeout time.Duration
	// PingInterval is the keepalive ping period; it must be shorter
	// than PongTimeout.
	PingInterval time.Duration
	// AllowedOrigins lists acceptable Origin headers. "*" allows all.
	AllowedOrigins []string
}

func (o Options) withDefaults() Options {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = 60 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 54 * time.Second
	}
	return o
}

// Hub upgrades HTTP requests to websocket connections, issues each one
// an opaque connection id, and pumps frames between the clients and the
// Handler.
type Hub struct {
	handler  Handler
	opts     Options
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu     sync.RWMutex
	conns  map[string]*conn
	closed bool
}

// conn is one live client connection. The closeOnce guard ensures the
// send channel closes exactly once regardless of which pump fails
// first.
type conn struct {
	id        string
	ws        *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

func (c *conn) shutdown() {
	c.closeOnce.Do(func() { close(c.send) })
}

// NewHub creates a Hub delivering to handler.
func NewHub(handler Handler, opts Options, logger *zap.Logger) *Hub {
	opts = opts.withDefaults()
	h := &Hub{
		handler: handler,
		opts:    opts,
		logger:  logger,
		conns:   make(map[string]*conn),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	allowAll := len(allowed) == 0
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			allowAll = true
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		if allowAll {
			return true
		}
		return set[r.Header.Get("Origin")]
	}
}

// ServeWS handles a websocket upgrade request. On success the
// connection is registered, the handler learns of the connect, and the
// read/write pumps run until the client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &conn{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan []byte, h.opts.SendBuffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = ws.Close()
		return
	}
	h.conns[c.id] = c
	h.mu.Unlock()

	h.handler.HandleConnect(c.id)

	go h.writePump(c)
	go h.readPump(c)
}

// Send delivers one event to a single connection. Unknown connection
// ids and full buffers drop the frame with a diagnostic.
func (h *Hub) Send(connID, name string, data any) {
	frame, err := json.Marshal(outEnvelope{Event: name, Data: data})
	if err != nil {
		h.logger.Error("encoding outbound event",
			zap.String("event", name),
			zap.Error(err),
		)
		return
	}

	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		h.logger.Debug("send to unknown connection",
			zap.String("conn_id", connID),
			zap.String("event", name),
		)
		return
	}
	h.push(c, frame, name)
}

// Broadcast delivers one event to every connected client.
func (h *Hub) Broadcast(name string, data any) {
	frame, err := json.Marshal(outEnvelope{Event: name, Data: data})
	if err != nil {
		h.logger.Error("encoding outbound event",
			zap.String("event", name),
			zap.Error(err),
		)
		return
	}

	h.mu.RLock()
	targets := make([]*conn, 0, len(h.conns))
	for _, c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.push(c, frame, name)
	}
}

func (h *Hub) push(c *conn, frame []byte, name string) {
	select {
	case c.send <- frame:
	default:
		h.logger.Warn("send buffer full, dropping frame",
			zap.String("conn_id", c.id),
			zap.String("event", name),
		)
	}
}

// ConnectionCount returns the number of live connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close tears down every connection. Used during shutdown; the handler
// receives a disconnect for each torn-down connection via its read
// pump.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	conns := make([]*conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.shutdown()
		_ = c.ws.Close()
	}
}

// readPump forwards inbound frames to the handler in arrival order. It
// owns the read deadline: every pong or data frame extends it.
func (h *Hub) readPump(c *conn) {
	reason := "connection closed"
	defer func() {
		h.unregister(c)
		h.handler.HandleDisconnect(c.id, reason)
	}()

	_ = c.ws.SetReadDeadline(time.Now().Add(h.opts.PongTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(h.opts.PongTimeout))
	})

	for {
		msgType, frame, err := c.ws.ReadMessage()
		if err != nil {
			if closeErr, ok := err.(*websocket.CloseError); ok {
				reason = fmt.Sprintf("close %d", closeErr.Code)
			} else if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				reason = "transport error"
				h.logger.Warn("websocket read error",
					zap.String("conn_id", c.id),
					zap.Error(err),
				)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(h.opts.PongTimeout))

		if msgType != websocket.TextMessage {
			continue
		}
		var env Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			h.logger.Warn("dropping undecodable frame",
				zap.String("conn_id", c.id),
				zap.Error(err),
			)
			continue
		}
		if env.Event == "" {
			h.logger.Warn("dropping frame without event name",
				zap.String("conn_id", c.id),
			)
			continue
		}
		h.handler.HandleEvent(c.id, env.Event, env.Data)
	}
}

// writePump drains the send channel and keeps the connection alive with
// periodic pings.
func (h *Hub) writePump(c *conn) {
	ticker := time.NewTicker(h.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) unregister(c *conn) {
	h.mu.Lock()
	if current, ok := h.conns[c.id]; ok && current == c {
		delete(h.conns, c.id)
	}
	h.mu.Unlock()

	c.shutdown()
	_ = c.ws.Close()
}
