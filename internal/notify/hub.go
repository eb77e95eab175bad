// Package notify pushes session change notifications to the user's connected
// browsers over WebSocket.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/victornm/quesgenie/internal/domain"
	"github.com/victornm/quesgenie/internal/event"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

var ErrClosed = errors.New("notify: hub closed")

type Config struct {
	EventBus *event.Bus
	// CheckOrigin defaults to same-origin requests only.
	CheckOrigin func(r *http.Request) bool
}

// Hub keeps the open connections per user.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
	closed  bool
}

func NewHub(c Config) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     c.CheckOrigin,
		},
		clients: make(map[string]map[*client]struct{}),
	}

	c.EventBus.Subscribe(domain.EventNameSessionChanged, func(ctx context.Context, e event.Event) error {
		return h.Broadcast(ctx, e.(domain.EventSessionChanged))
	})

	return h
}

type Notification struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Broadcast sends the change to every connection of the session owner. Slow
// connections are dropped instead of blocking the others.
func (h *Hub) Broadcast(ctx context.Context, e domain.EventSessionChanged) error {
	b, err := json.Marshal(Notification{Event: e.Name(), Data: e})
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[e.UserID] {
		select {
		case c.send <- b:
		default:
			slog.WarnContext(ctx, "notify: client too slow, dropping connection", "user_id", e.UserID)
			go c.close()
		}
	}

	return nil
}

// Connections returns the number of open connections of a user.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Serve upgrades the request and streams notifications until the connection
// closes.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}

	if !h.register(userID, c) {
		c.close()
		return ErrClosed
	}
	defer h.unregister(userID, c)

	go c.writePump()
	c.readPump()
	return nil
}

// Close drops every open connection and refuses new ones. The HTTP server does
// not track hijacked connections, so they are closed here on shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for _, cs := range h.clients {
		for c := range cs {
			c.close()
		}
	}
}

func (h *Hub) register(userID string, c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*client]struct{})
	}
	h.clients[userID][c] = struct{}{}
	return true
}

func (h *Hub) unregister(userID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.clients[userID], c)
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
	c.close()
}

type client struct {
	conn *websocket.Conn
	send chan []byte

	once sync.Once
	done chan struct{}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// readPump only handles control frames, clients never send anything useful.
func (c *client) readPump() {
	defer c.close()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("notify: connection closed", "error", err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
