package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"TFTracker/internal/domain/models"
	domrepo "TFTracker/internal/domain/repository"
	xhttp "TFTracker/pkg/http"
	applogger "TFTracker/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	defaultSendBuffer   = 32
	defaultWriteTimeout = 10 * time.Second
	defaultPingInterval = 30 * time.Second
)

type HubOption func(*Hub)

// WithAllowedOrigins limits browser clients to the given origins. "*" allows any.
func WithAllowedOrigins(origins []string) HubOption {
	return func(h *Hub) { h.origins = origins }
}

func WithSendBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

func WithPingInterval(d time.Duration) HubOption {
	return func(h *Hub) {
		if d > 0 {
			h.pingInterval = d
		}
	}
}

func WithLogger(l *applogger.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.l = l
		}
	}
}

type client struct {
	conn    *websocket.Conn
	send    chan []byte
	tickers map[string]struct{} // empty means every ticker
	once    sync.Once
}

func (c *client) wants(ticker string) bool {
	if len(c.tickers) == 0 {
		return true
	}
	_, ok := c.tickers[ticker]
	return ok
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub fans committed phase transitions out to websocket subscribers.
// Slow subscribers whose buffer is full are disconnected.
type Hub struct {
	upgrader     websocket.Upgrader
	origins      []string
	sendBuffer   int
	writeTimeout time.Duration
	pingInterval time.Duration
	l            *applogger.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		sendBuffer:   defaultSendBuffer,
		writeTimeout: defaultWriteTimeout,
		pingInterval: defaultPingInterval,
		l:            applogger.Nop(),
		clients:      make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/phase/stream", h.Serve)
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.origins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// Serve upgrades the request. ?tickers=NVDA,BTC-USD narrows the stream.
func (h *Hub) Serve(c echo.Context) error {
	if !h.checkOrigin(c.Request()) {
		return xhttp.AppErrorResponse(c, xhttp.ForbiddenError("Origin not allowed"))
	}
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.l.Warn("ws upgrade failed", applogger.Error(err))
		return nil
	}

	cl := &client{conn: conn, send: make(chan []byte, h.sendBuffer), tickers: map[string]struct{}{}}
	if raw := c.QueryParam("tickers"); raw != "" {
		for _, t := range models.NormalizeTickers(strings.Split(raw, ",")) {
			cl.tickers[t] = struct{}{}
		}
	}
	if !h.add(cl) {
		_ = conn.Close()
		return nil
	}
	h.l.Debug("ws client connected",
		applogger.String("remote", c.RealIP()),
		applogger.Int("clients", h.Len()),
	)

	go h.writePump(cl)
	h.readPump(cl)
	return nil
}

func (h *Hub) add(cl *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[cl] = struct{}{}
	return true
}

func (h *Hub) remove(cl *client) {
	h.mu.Lock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
	}
	h.mu.Unlock()
	cl.close()
}

// readPump drains control frames until the peer goes away.
func (h *Hub) readPump(cl *client) {
	defer h.remove(cl)
	cl.conn.SetReadLimit(512)
	_ = cl.conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
	})
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(cl *client) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// NotifyTransition never blocks on a subscriber.
func (h *Hub) NotifyTransition(_ context.Context, ev models.PhaseTransitionEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal transition: %w", err)
	}

	var slow []*client
	h.mu.RLock()
	for cl := range h.clients {
		if !cl.wants(ev.Ticker) {
			continue
		}
		select {
		case cl.send <- b:
		default:
			slow = append(slow, cl)
		}
	}
	h.mu.RUnlock()

	for _, cl := range slow {
		h.l.Warn("ws client too slow, dropping", applogger.String("ticker", ev.Ticker))
		h.remove(cl)
	}
	return nil
}

// Len reports the number of connected subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for cl := range clients {
		cl.close()
	}
	return nil
}

var _ domrepo.TransitionNotifier = (*Hub)(nil)
