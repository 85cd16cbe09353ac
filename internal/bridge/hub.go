// Package bridge links the agent to browser clients over a websocket: pose
// frames and speech requests go out, speech completions and commands come in.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/normanking/guardavatar/internal/bus"
)

// Message types
const (
	MsgHello     = "hello"
	MsgPose      = "pose"
	MsgSpeak     = "speak"
	MsgAudio     = "audio"
	MsgSpeechEnd = "speech_end"
	MsgEvent     = "event"
	MsgLog       = "log"
	MsgConverse  = "converse"
	MsgPlay      = "play"
	MsgError     = "error"
)

const (
	writeTimeout = 5 * time.Second
	pingInterval = 20 * time.Second
	sendBuffer   = 64
	maxMessage   = 64 << 10
)

// Message is the JSON envelope for both directions.
type Message struct {
	Type  string `json:"type"`
	ID    string `json:"id,omitempty"`
	Text  string `json:"text,omitempty"`
	Label string `json:"label,omitempty"`
	Name  string `json:"name,omitempty"`
	Loop  bool   `json:"loop,omitempty"`
	Level string `json:"level,omitempty"`
	Error string `json:"error,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// MessageHandler handles one inbound message. clientID identifies the sender.
type MessageHandler func(clientID string, msg Message)

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks connected clients and dispatches their messages.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	handlers map[string][]MessageHandler
	closed   bool

	wg       sync.WaitGroup
	upgrader websocket.Upgrader
	eventBus *bus.EventBus
	logger   zerolog.Logger
}

// NewHub creates a hub. eventBus may be nil.
func NewHub(eventBus *bus.EventBus, logger zerolog.Logger) *Hub {
	return &Hub{
		clients:  make(map[*client]struct{}),
		handlers: make(map[string][]MessageHandler),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		eventBus: eventBus,
		logger:   logger.With().Str("component", "bridge").Logger(),
	}
}

// OnMessage registers a handler for an inbound message type.
func (h *Hub) OnMessage(msgType string, fn MessageHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[msgType] = append(h.handlers[msgType], fn)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues msg for every client and returns how many accepted it.
// Clients whose buffer is full miss the message.
func (h *Hub) Broadcast(msg Message) int {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msg.Type).Msg("Failed to encode message")
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for c := range h.clients {
		select {
		case c.send <- data:
			sent++
		default:
			h.logger.Warn().Str("client", c.id).Str("type", msg.Type).Msg("Client send buffer full, dropping message")
		}
	}
	return sent
}

// ServeHTTP upgrades the request and serves the client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("Websocket upgrade failed")
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	if !h.register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeTimeout))
		conn.Close()
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writeLoop(c)
	}()

	h.readLoop(c)
	h.unregister(c)
	<-done
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.clients[c] = struct{}{}
	h.wg.Add(1)
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Info().Str("client", c.id).Int("clients", count).Msg("Client connected")
	h.publish(bus.EventTypeClientConnected, c.id)

	hello, _ := json.Marshal(Message{Type: MsgHello, ID: c.id})
	c.send <- hello
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	count := len(h.clients)
	h.mu.Unlock()
	defer h.wg.Done()

	h.logger.Info().Str("client", c.id).Int("clients", count).Msg("Client disconnected")
	h.publish(bus.EventTypeClientDisconnected, c.id)
}

func (h *Hub) readLoop(c *client) {
	c.conn.SetReadLimit(maxMessage)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug().Err(err).Str("client", c.id).Msg("Read failed")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			h.logger.Warn().Str("client", c.id).Msg("Ignoring malformed message")
			continue
		}

		h.mu.RLock()
		handlers := append([]MessageHandler(nil), h.handlers[msg.Type]...)
		h.mu.RUnlock()

		if len(handlers) == 0 {
			h.logger.Debug().Str("client", c.id).Str("type", msg.Type).Msg("No handler for message")
			continue
		}
		for _, fn := range handlers {
			fn(c.id, msg)
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.conn.Close()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

// Close disconnects every client, refuses new ones and waits for their
// handlers to return.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c.conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
	h.wg.Wait()
}

func (h *Hub) publish(t bus.EventType, clientID string) {
	if h.eventBus == nil {
		return
	}
	h.eventBus.Publish(bus.Event{Type: t, Data: map[string]any{"client": clientID}})
}

// ListenAndServe serves the hub on addr at /ws until ctx is done.
func (h *Hub) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", h)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		h.logger.Info().Str("addr", addr).Msg("Bridge listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		h.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	h.Close()
	if e := <-errc; e != nil && !errors.Is(e, http.ErrServerClosed) {
		return e
	}
	return err
}
