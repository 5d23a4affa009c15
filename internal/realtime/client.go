// Package realtime is the client side of the CampusTrade event channel.
//
// The channel is a WebSocket. The first frame the client sends is
// {"token": "..."}; the server answers {"status": "authenticated"} or
// {"error": "..."}. After that every frame is {"type": ..., "data": ...}.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pesio-ai/campustrade-client/internal/logger"
	"github.com/pesio-ai/campustrade-client/internal/repository"
)

// Server to client events
const (
	EventNewMessage   = "newMessage"
	EventNotification = "notification"
)

// EventMarkAsRead is the read receipt the client sends to the server
const EventMarkAsRead = "markAsRead"

const (
	authTimeout    = 5 * time.Second
	writeWait      = 10 * time.Second
	readWait       = 70 * time.Second
	maxMessageSize = 64 * 1024
)

var (
	ErrNotConnected = errors.New("realtime channel is not connected")
	ErrAuthRejected = errors.New("realtime channel rejected the token")
)

// State is the connection state of the channel
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	// Rejected is terminal: the server refused the token and the loop has stopped
	Rejected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Rejected:
		return "rejected"
	default:
		return "disconnected"
	}
}

// Frame is the envelope of every post-handshake message
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Options configures a Client
type Options struct {
	URL          string
	Token        string
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	Dialer       *websocket.Dialer
}

// Client maintains one authenticated channel and reconnects with backoff
type Client struct {
	opts Options
	log  *logger.Logger

	mu            sync.Mutex
	state         State
	conn          *websocket.Conn
	cancel        context.CancelFunc
	done          chan struct{}
	nextID        int
	msgHandlers   map[int]func(repository.Message)
	notifHandlers map[int]func(repository.Notification)
	stateHandlers map[int]func(State)

	writeMu sync.Mutex
}

// New creates a channel client; nothing is dialled until Start
func New(opts Options, log *logger.Logger) *Client {
	if opts.ReconnectMin <= 0 {
		opts.ReconnectMin = time.Second
	}
	if opts.ReconnectMax < opts.ReconnectMin {
		opts.ReconnectMax = opts.ReconnectMin
	}
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{HandshakeTimeout: authTimeout}
	}

	return &Client{
		opts:          opts,
		log:           log,
		msgHandlers:   make(map[int]func(repository.Message)),
		notifHandlers: make(map[int]func(repository.Notification)),
		stateHandlers: make(map[int]func(State)),
	}
}

// Start launches the connection loop. Calling Start on a running client is a no-op.
func (c *Client) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(ctx, c.done)
}

// Close stops the loop, closes the connection and waits for shutdown
func (c *Client) Close() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// State returns the current connection state
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnMessage registers a newMessage handler and returns its unsubscribe func
func (c *Client) OnMessage(fn func(repository.Message)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.msgHandlers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.msgHandlers, id)
	}
}

// OnNotification registers a notification handler and returns its unsubscribe func
func (c *Client) OnNotification(fn func(repository.Notification)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.notifHandlers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.notifHandlers, id)
	}
}

// OnStateChange registers a state handler and returns its unsubscribe func
func (c *Client) OnStateChange(fn func(State)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.stateHandlers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.stateHandlers, id)
	}
}

// Emit sends a typed frame to the server
func (c *Client) Emit(eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", eventType, err)
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(Frame{Type: eventType, Data: payload}); err != nil {
		return fmt.Errorf("failed to send %s: %w", eventType, err)
	}
	return nil
}

// Backoff returns the delay before reconnect attempt n (0-based):
// min doubled n times, capped at max
func Backoff(attempt int, min, max time.Duration) time.Duration {
	d := min
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max || d <= 0 {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

func (c *Client) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	attempt := 0
	for {
		c.setState(Connecting)

		conn, err := c.connect(ctx)
		if err == nil {
			attempt = 0
			c.setConn(conn)
			c.setState(Connected)
			c.log.Info().Str("url", c.opts.URL).Msg("Realtime channel connected")

			err = c.readLoop(ctx, conn)
			c.setConn(nil)
		}

		if ctx.Err() == nil && errors.Is(err, ErrAuthRejected) {
			c.log.Warn().Msg("Realtime channel rejected the session token, giving up")
			c.setState(Rejected)
			return
		}
		c.setState(Disconnected)
		if ctx.Err() != nil {
			return
		}

		delay := Backoff(attempt, c.opts.ReconnectMin, c.opts.ReconnectMax)
		attempt++
		c.log.Warn().Err(err).Dur("retry_in", delay).Msg("Realtime channel lost")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := c.opts.Dialer.DialContext(ctx, c.opts.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial: %w", err)
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(map[string]string{"token": c.opts.Token}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(authTimeout))
	var ack struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	if err := conn.ReadJSON(&ack); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to read auth ack: %w", err)
	}
	if ack.Status != "authenticated" {
		conn.Close()
		return nil, fmt.Errorf("%w: %s", ErrAuthRejected, ack.Error)
	}

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})
	return conn, nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			conn.Close()
		case <-stop:
		}
	}()
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		c.dispatch(data)
	}
}

func (c *Client) dispatch(data []byte) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.log.Warn().Err(err).Msg("Dropping malformed realtime frame")
		return
	}

	switch frame.Type {
	case EventNewMessage:
		var msg repository.Message
		if err := json.Unmarshal(frame.Data, &msg); err != nil {
			c.log.Warn().Err(err).Msg("Dropping malformed newMessage")
			return
		}
		c.mu.Lock()
		handlers := make([]func(repository.Message), 0, len(c.msgHandlers))
		for _, fn := range c.msgHandlers {
			handlers = append(handlers, fn)
		}
		c.mu.Unlock()
		for _, fn := range handlers {
			fn(msg)
		}

	case EventNotification:
		var n repository.Notification
		if err := json.Unmarshal(frame.Data, &n); err != nil {
			c.log.Warn().Err(err).Msg("Dropping malformed notification")
			return
		}
		c.mu.Lock()
		handlers := make([]func(repository.Notification), 0, len(c.notifHandlers))
		for _, fn := range c.notifHandlers {
			handlers = append(handlers, fn)
		}
		c.mu.Unlock()
		for _, fn := range handlers {
			fn(n)
		}

	default:
		c.log.Debug().Str("type", frame.Type).Msg("Ignoring realtime event")
	}
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	handlers := make([]func(State), 0, len(c.stateHandlers))
	for _, fn := range c.stateHandlers {
		handlers = append(handlers, fn)
	}
	c.mu.Unlock()

	for _, fn := range handlers {
		fn(s)
	}
}
