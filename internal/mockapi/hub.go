package mockapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pesio-ai/campustrade-client/internal/logger"
)

const (
	authTimeout    = 5 * time.Second
	pingInterval   = 30 * time.Second
	pongWait       = 60 * time.Second
	writeWait      = 10 * time.Second
	maxMessageSize = 8192
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// AuthFunc validates the token sent in the first frame
type AuthFunc func(token string) (userID string, err error)

// MessageHandler handles a typed frame sent by a connected user
type MessageHandler func(userID, messageType string, data json.RawMessage)

type wsClient struct {
	id     string
	userID string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	hub    *Hub
	once   sync.Once
}

// Hub tracks authenticated WebSocket connections per user
type Hub struct {
	mu             sync.RWMutex
	clients        map[string]*wsClient
	authFunc       AuthFunc
	messageHandler MessageHandler
	log            *logger.Logger
}

func NewHub(authFunc AuthFunc, log *logger.Logger) *Hub {
	return &Hub{
		clients:  make(map[string]*wsClient),
		authFunc: authFunc,
		log:      log,
	}
}

func (h *Hub) SetMessageHandler(handler MessageHandler) {
	h.messageHandler = handler
}

// ServeWS upgrades the request and runs the token handshake
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	_ = conn.SetReadDeadline(time.Now().Add(authTimeout))

	var authMsg struct {
		Token string `json:"token"`
	}
	if err := conn.ReadJSON(&authMsg); err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseProtocolError, "auth timeout"))
		_ = conn.Close()
		h.log.Warn().Msg("No auth frame received")
		return
	}

	userID, err := h.authFunc(authMsg.Token)
	if err != nil {
		_ = conn.WriteJSON(map[string]string{"error": "invalid token"})
		_ = conn.Close()
		h.log.Warn().Err(err).Msg("WebSocket auth rejected")
		return
	}

	client := &wsClient{
		id:     uuid.New().String(),
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, 64),
		done:   make(chan struct{}),
		hub:    h,
	}

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// ack before registering so it is always the first frame the client reads
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(map[string]string{"status": "authenticated", "user_id": userID}); err != nil {
		_ = conn.Close()
		return
	}

	h.mu.Lock()
	h.clients[client.id] = client
	h.mu.Unlock()
	h.log.Info().Str("user_id", userID).Str("client_id", client.id).Msg("WebSocket client registered")

	go client.writePump()
	go client.readPump()
}

// SendToUser pushes a typed frame to every connection of userID
func (h *Hub) SendToUser(userID, messageType string, data any) {
	payload, err := json.Marshal(map[string]any{"type": messageType, "data": data})
	if err != nil {
		h.log.Error().Err(err).Str("type", messageType).Msg("Failed to encode frame")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if c.userID != userID {
			continue
		}
		select {
		case c.send <- payload:
		default:
			h.log.Warn().Str("user_id", userID).Msg("Send buffer full, dropping frame")
		}
	}
}

// IsUserConnected reports whether userID has an open connection
func (h *Hub) IsUserConnected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if c.userID == userID {
			return true
		}
	}
	return false
}

// DisconnectUser closes every connection of userID
func (h *Hub) DisconnectUser(userID string) {
	h.mu.RLock()
	var targets []*wsClient
	for _, c := range h.clients {
		if c.userID == userID {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.close()
	}
}

// Close drops every connection
func (h *Hub) Close() {
	h.mu.RLock()
	targets := make([]*wsClient, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.close()
	}
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		h.log.Info().Str("client_id", c.id).Msg("WebSocket client unregistered")
	}
}

func (c *wsClient) close() {
	c.once.Do(func() {
		c.hub.unregister(c)
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *wsClient) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data,omitempty"`
		}
		if err := json.Unmarshal(message, &msg); err != nil {
			c.hub.log.Warn().Err(err).Str("client_id", c.id).Msg("Failed to parse frame")
			continue
		}

		if c.hub.messageHandler != nil {
			c.hub.messageHandler(c.userID, msg.Type, msg.Data)
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return

		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
