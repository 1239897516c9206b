package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"homehub/internal/events"
	"homehub/internal/logging"
	"homehub/internal/monitor"
	"homehub/internal/status"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeTimeout   = 10 * time.Second
	pongTimeout    = 60 * time.Second
	pingInterval   = (pongTimeout * 9) / 10
	clientQueueLen = 16
)

// StreamMessage is pushed to websocket clients after every cycle.
type StreamMessage struct {
	Type   string         `json:"type"`
	Source string         `json:"source"`
	AtMs   int64          `json:"atMs"`
	Status status.Unified `json:"status"`
	Events []events.Event `json:"events,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans cycles out to websocket clients. Slow clients lose messages
// rather than stalling the poll loop.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	latest  []byte
	closed  bool
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = logging.Ctx(context.Background())
	}
	return &Hub{
		logger: logger.With("component", "stream"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(_ *http.Request) bool { return true },
		},
		clients: make(map[*wsClient]struct{}),
	}
}

// HandleCycle implements monitor.Sink.
func (h *Hub) HandleCycle(_ context.Context, c monitor.Cycle) {
	data, err := json.Marshal(StreamMessage{
		Type:   "cycle",
		Source: c.Source,
		AtMs:   c.At.UnixMilli(),
		Status: c.Status,
		Events: c.Events,
	})
	if err != nil {
		h.logger.Error("failed to encode stream message", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = data
	for cl := range h.clients {
		select {
		case cl.send <- data:
		default:
			h.logger.Debug("dropping message for slow client", "remote", cl.conn.RemoteAddr().String())
		}
	}
}

// Clients is the number of connected websocket clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeWS upgrades the request and streams cycles until the client leaves.
// A new client first receives the latest cycle, if any.
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	cl := &wsClient{conn: conn, send: make(chan []byte, clientQueueLen)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[cl] = struct{}{}
	if h.latest != nil {
		cl.send <- h.latest
	}
	h.mu.Unlock()
	h.logger.Debug("stream client connected", "remote", conn.RemoteAddr().String())

	go h.writePump(cl)
	h.readPump(cl)
}

func (h *Hub) remove(cl *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		close(cl.send)
	}
}

// readPump discards client messages and returns once the connection drops.
func (h *Hub) readPump(cl *wsClient) {
	defer func() {
		h.remove(cl)
		cl.conn.Close()
	}()

	cl.conn.SetReadLimit(512)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(cl *wsClient) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := cl.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for cl := range h.clients {
		delete(h.clients, cl)
		close(cl.send)
	}
}
