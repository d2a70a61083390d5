package notification

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

// Client is one websocket observer. Only writePump writes to conn.
type Client struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte
}

// Hub tracks live websocket observers per user. Sends never block: an
// observer whose buffer is full misses the event.
type Hub struct {
	connections map[string]map[*Client]struct{}
	mutex       sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		connections: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(userID string, conn *websocket.Conn) *Client {
	c := &Client{userID: userID, conn: conn, send: make(chan []byte, sendBuffer)}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	set, ok := h.connections[userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.connections[userID] = set
	}
	set[c] = struct{}{}
	return c
}

// Unregister closes the client's send channel; sends happen under the read
// lock, so the channel is never written after close.
func (h *Hub) Unregister(userID string, c *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	set, ok := h.connections[userID]
	if !ok {
		return
	}
	if _, ok := set[c]; ok {
		close(c.send)
		_ = c.conn.Close()
		delete(set, c)
	}
	if len(set) == 0 {
		delete(h.connections, userID)
	}
}

// SendToUser queues message on every connection of userID and reports
// whether at least one connection accepted it.
func (h *Hub) SendToUser(userID string, message interface{}) bool {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("level=error msg=websocket_encode_failed user_id=%s err=%v", userID, err)
		return false
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	delivered := false
	for c := range h.connections[userID] {
		select {
		case c.send <- data:
			delivered = true
		default:
			log.Printf("level=warn msg=websocket_buffer_full user_id=%s", userID)
		}
	}
	return delivered
}

func (h *Hub) Publish(_ context.Context, ev BookingEvent) {
	for _, userID := range ev.Recipients() {
		h.SendToUser(userID, ev)
	}
}

// writePump drains c.send and pings until the channel is closed or a write fails.
func (h *Hub) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
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

func (h *Hub) IsOnline(userID string) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	_, exists := h.connections[userID]
	return exists
}

func (h *Hub) GetOnlineCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return len(h.connections)
}

func (h *Hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for userID, set := range h.connections {
		for c := range set {
			close(c.send)
			_ = c.conn.Close()
		}
		delete(h.connections, userID)
	}
}
