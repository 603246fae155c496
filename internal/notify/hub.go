package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/gmsas95/pillpal/internal/metrics"
)

type wsClient interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Hub pushes reminders to connected web UI clients over WebSocket.
type Hub struct {
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	clients map[wsClient]struct{}
	granted bool
}

func NewHub(logger *zap.Logger, m *metrics.Metrics) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.Default()
	}
	return &Hub{
		logger:  logger,
		metrics: m,
		clients: make(map[wsClient]struct{}),
	}
}

func (h *Hub) Name() string { return "websocket" }

// RequestPermission is default until a client connects; the browser decides
// on its side whether it actually displays what it receives.
func (h *Hub) RequestPermission(context.Context) (Permission, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.granted || len(h.clients) > 0 {
		return PermissionGranted, nil
	}
	return PermissionDefault, nil
}

type wsMessage struct {
	Type         string        `json:"type"`
	Notification *Notification `json:"notification,omitempty"`
}

func (h *Hub) Show(_ context.Context, n Notification) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var failed int
	for c := range h.clients {
		if err := c.WriteJSON(wsMessage{Type: "reminder", Notification: &n}); err != nil {
			h.logger.Debug("Dropping websocket client", zap.Error(err))
			c.Close()
			delete(h.clients, c)
			h.metrics.DecrementWSClients()
			failed++
		}
	}
	if failed > 0 && len(h.clients) == 0 {
		return fmt.Errorf("all %d websocket clients failed", failed)
	}
	return nil
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) add(c wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.granted = true
	h.mu.Unlock()
	h.metrics.IncrementWSClients()
}

func (h *Hub) remove(c wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		h.metrics.DecrementWSClients()
	}
}

// Upgrade rejects plain HTTP requests on the WebSocket route
func Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Handler serves a WebSocket subscription. Clients only receive; anything
// they send is read and discarded until the connection closes.
func (h *Hub) Handler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		h.add(conn)
		defer func() {
			h.remove(conn)
			conn.Close()
		}()

		h.mu.Lock()
		err := conn.WriteJSON(wsMessage{Type: "subscribed"})
		h.mu.Unlock()
		if err != nil {
			return
		}

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
}
