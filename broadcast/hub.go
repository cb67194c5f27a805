package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Dosada05/tombola/models"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

// Message is the envelope written to websocket clients.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// InboundMessage is what clients send. Payload is decoded by the handler
// that understands Type.
type InboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// InboundHandler reacts to a message read from a client.
type InboundHandler func(ctx context.Context, c *Client, msg InboundMessage)

// UserRoom is the room every connection of a user joins.
func UserRoom(userID int) string {
	return fmt.Sprintf("user_%d", userID)
}

type Client struct {
	ID     string
	UserID int
	Role   models.UserRole
	Room   string
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte

	mu     sync.Mutex
	closed bool
}

// NewClient builds a client for an authenticated principal. It joins the
// principal's user room once registered.
func NewClient(hub *Hub, conn *websocket.Conn, p models.Principal) *Client {
	return &Client{
		ID:     uuid.NewString(),
		UserID: p.UserID,
		Role:   p.Role,
		Room:   UserRoom(p.UserID),
		Hub:    hub,
		Conn:   conn,
		Send:   make(chan []byte, sendBufferSize),
	}
}

func (c *Client) Principal() models.Principal {
	return models.Principal{UserID: c.UserID, Role: c.Role}
}

// enqueue hands data to the write pump. It reports false when the client is
// gone or too slow to keep up.
func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		close(c.Send)
		c.closed = true
	}
}

// SendMessage queues a message for this client only.
func (c *Client) SendMessage(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s message: %w", msg.Type, err)
	}
	if !c.enqueue(data) {
		return fmt.Errorf("client %s is not accepting messages", c.ID)
	}
	return nil
}

// Hub tracks connected clients by room. Registration goes through Run so the
// room map has a single writer.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	rooms      map[string]map[*Client]bool
	mu         sync.RWMutex
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		rooms:      make(map[string]map[*Client]bool),
		logger:     logger,
	}
}

// Run processes registrations until ctx is done, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			if _, ok := h.rooms[client.Room]; !ok {
				h.rooms[client.Room] = make(map[*Client]bool)
			}
			h.rooms[client.Room][client] = true
			size := len(h.rooms[client.Room])
			h.mu.Unlock()
			h.logger.Debug("client registered",
				slog.String("client_id", client.ID),
				slog.String("room", client.Room),
				slog.Int("room_size", size),
			)

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.Room]; ok && clients[client] {
				client.close()
				delete(clients, client)
				if len(clients) == 0 {
					delete(h.rooms, client.Room)
				}
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", slog.String("client_id", client.ID), slog.String("room", client.Room))
		}
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room, clients := range h.rooms {
		for c := range clients {
			c.close()
		}
		delete(h.rooms, room)
	}
}

// RoomSize returns the number of clients currently in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// BroadcastToRoom sends message to every client in room. Slow clients miss
// the message rather than block the others.
func (h *Hub) BroadcastToRoom(room string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message for room %s: %w", room, err)
	}
	h.deliver(room, data)
	return nil
}

// Publish delivers to clients connected to this process.
func (h *Hub) Publish(_ context.Context, room string, msg Message) error {
	return h.BroadcastToRoom(room, msg)
}

func (h *Hub) deliver(room string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.rooms[room] {
		if !client.enqueue(data) {
			h.logger.Warn("dropping message for slow client",
				slog.String("client_id", client.ID),
				slog.String("room", room),
			)
		}
	}
}

// ReadPump reads client messages until the connection drops and passes each
// one to handle. It owns unregistering the client.
func (c *Client) ReadPump(ctx context.Context, handle InboundHandler) {
	logger := c.Hub.logger.With(slog.String("client_id", c.ID), slog.Int("user_id", c.UserID))
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
		logger.Debug("read pump closed")
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket closed unexpectedly", slog.Any("error", err))
			}
			return
		}

		var msg InboundMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			_ = c.SendMessage(Message{Type: EventError, Payload: ErrorPayload{Message: "malformed message"}})
			continue
		}
		if handle != nil {
			handle(ctx, c, msg)
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Hub.logger.Debug("websocket write failed", slog.String("client_id", c.ID), slog.Any("error", err))
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
