// Package realtime streams the engine's event feed to WebSocket
// clients: every appended event log entry, fanned out as JSON.
package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/paydefense/sentinel/internal/eventlog"
	"github.com/paydefense/sentinel/internal/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Slow clients are dropped rather than allowed to stall the hub.
	clientBuffer = 64
	replayOnJoin = 25
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is same-host in every deployment mode.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan eventlog.Entry
}

// Hub fans event log entries out to connected clients.
type Hub struct {
	events *eventlog.Log
	logger *slog.Logger

	register   chan *client
	unregister chan *client
	clients    map[*client]bool
}

// NewHub creates a hub over the event log.
func NewHub(events *eventlog.Log, logger *slog.Logger) *Hub {
	return &Hub{
		events:     events,
		logger:     logger,
		register:   make(chan *client),
		unregister: make(chan *client),
		clients:    make(map[*client]bool),
	}
}

// Run subscribes to the event log and pumps entries to clients until
// ctx is cancelled. Call it in its own goroutine.
func (h *Hub) Run(ctx context.Context) {
	feed, cancel := h.events.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			return
		case c := <-h.register:
			h.clients[c] = true
			metrics.ActiveWebSocketClients.Set(float64(len(h.clients)))
		case c := <-h.unregister:
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
				metrics.ActiveWebSocketClients.Set(float64(len(h.clients)))
			}
		case e, ok := <-feed:
			if !ok {
				return
			}
			for c := range h.clients {
				select {
				case c.send <- e:
				default:
					delete(h.clients, c)
					close(c.send)
				}
			}
			metrics.ActiveWebSocketClients.Set(float64(len(h.clients)))
		}
	}
}

// ServeWS upgrades the request and attaches the client to the hub,
// replaying the most recent entries first so a fresh dashboard is not
// empty.
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	cl := &client{hub: h, conn: conn, send: make(chan eventlog.Entry, clientBuffer)}

	for _, e := range h.events.Entries(replayOnJoin) {
		cl.send <- e
	}
	h.register <- cl

	go cl.writePump()
	go cl.readPump()
}

// readPump discards inbound frames; the feed is one-way. It exists to
// process pongs and notice the close.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
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

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case e, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(e); err != nil {
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
