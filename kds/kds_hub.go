package kds

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yeremiapane/restaurant-platform/events"
	"github.com/yeremiapane/restaurant-platform/utils"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 32
)

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type client struct {
	conn *websocket.Conn
	role string
	send chan []byte
}

// Hub holds the connected kitchen/floor screens and pushes every domain
// event to them. It satisfies events.Publisher.
//
// Each client owns a buffered send queue drained by its own writer, so a
// stalled screen never holds up Broadcast or the other screens.
type Hub struct {
	clients   map[*websocket.Conn]*client
	mutex     sync.Mutex
	writeWait time.Duration
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]*client), writeWait: writeWait}
}

func (h *Hub) RegisterClient(conn *websocket.Conn, role string) {
	c := &client{conn: conn, role: role, send: make(chan []byte, sendBuffer)}
	h.mutex.Lock()
	h.clients[conn] = c
	h.mutex.Unlock()
	go h.writeLoop(c)
}

func (h *Hub) UnregisterClient(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.drop(conn)
}

// drop must be called with the mutex held.
func (h *Hub) drop(conn *websocket.Conn) {
	c, ok := h.clients[conn]
	if !ok {
		return
	}
	delete(h.clients, conn)
	close(c.send)
	conn.Close()
}

func (h *Hub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

func (h *Hub) Publish(_ context.Context, e events.Event) error {
	h.Broadcast(Message{Event: e.Subject(), Data: e})
	return nil
}

// Broadcast queues msg for every client. A client whose queue is full is
// dropped instead of waited on.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		utils.ErrorLogger.Printf("Error marshaling message: %v", err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for conn, c := range h.clients {
		select {
		case c.send <- data:
		default:
			utils.ErrorLogger.WithField("role", c.role).Warn("dropping websocket client: send queue full")
			h.drop(conn)
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	for data := range c.send {
		err := c.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
		if err == nil {
			err = c.conn.WriteMessage(websocket.TextMessage, data)
		}
		if err != nil {
			utils.ErrorLogger.WithField("role", c.role).Warnf("dropping websocket client: %v", err)
			h.UnregisterClient(c.conn)
			return
		}
	}
}
