// Package realtime pushes booking events to staff dashboards over WebSocket.
package realtime

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"convoydesk/internal/domain"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 4 * 1024
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// connection is one dashboard socket and the guilds it may watch.
type connection struct {
	userID  string
	conn    *websocket.Conn
	send    chan []byte
	allowed map[string]bool
	guilds  map[string]bool
}

type Hub struct {
	mu          sync.RWMutex
	connections map[*connection]struct{}
}

func NewHub() *Hub {
	return &Hub{connections: make(map[*connection]struct{})}
}

func (h *Hub) register(c *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[c] = struct{}{}
}

func (h *Hub) unregister(c *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.connections[c]; ok {
		delete(h.connections, c)
		close(c.send)
	}
}

// Publish delivers ev to every connection subscribed to its guild. Slow
// clients miss events rather than block the caller.
func (h *Hub) Publish(ev domain.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("realtime_encode_error type=%s err=%v", ev.Type, err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.connections {
		if c.guilds[ev.GuildID] {
			select {
			case c.send <- data:
			default:
			}
		}
	}
}

// Subscribers counts connections watching guildID.
func (h *Hub) Subscribers(guildID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.connections {
		if c.guilds[guildID] {
			n++
		}
	}
	return n
}

type clientMessage struct {
	Type    string `json:"type"`
	GuildID string `json:"guild_id"`
}

type serverMessage struct {
	Type    string `json:"type"`
	GuildID string `json:"guild_id,omitempty"`
	Code    string `json:"code,omitempty"`
}

// Serve runs the read and write loops for conn until it disconnects.
// allowed lists the guilds the user is staff in; initial ones are
// subscribed immediately.
func (h *Hub) Serve(conn *websocket.Conn, userID string, allowed, initial []string) {
	c := &connection{
		userID:  userID,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		allowed: make(map[string]bool, len(allowed)),
		guilds:  make(map[string]bool),
	}
	for _, g := range allowed {
		c.allowed[g] = true
	}
	for _, g := range initial {
		if c.allowed[g] {
			c.guilds[g] = true
		}
	}

	h.register(c)
	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) reply(c *connection, msg serverMessage) {
	data, _ := json.Marshal(msg)
	select {
	case c.send <- data:
	default:
	}
}

func (h *Hub) readPump(c *connection) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("realtime_read_error user=%s err=%v", c.userID, err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.reply(c, serverMessage{Type: "error", Code: "INVALID_JSON"})
			continue
		}

		switch msg.Type {
		case "subscribe":
			if !c.allowed[msg.GuildID] {
				h.reply(c, serverMessage{Type: "error", GuildID: msg.GuildID, Code: "FORBIDDEN"})
				continue
			}
			h.mu.Lock()
			c.guilds[msg.GuildID] = true
			h.mu.Unlock()
			h.reply(c, serverMessage{Type: "subscribed", GuildID: msg.GuildID})
		case "unsubscribe":
			h.mu.Lock()
			delete(c.guilds, msg.GuildID)
			h.mu.Unlock()
		case "ping":
			h.reply(c, serverMessage{Type: "pong"})
		default:
			h.reply(c, serverMessage{Type: "error", Code: "UNKNOWN_TYPE"})
		}
	}
}

func (h *Hub) writePump(c *connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
