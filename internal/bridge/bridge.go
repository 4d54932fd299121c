package bridge

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"pushtalk/internal/domain"
	"pushtalk/internal/logging"
)

// InputHandler receives raw input events from connected frontends and
// answers status queries.
type InputHandler interface {
	Press(token string)
	Release(token string)
	Cancel(token string)
	Blur()
	Status() domain.Status
	RuntimeInfo() map[string]string
}

const sendBuffer = 16

// inputEvent is one raw frontend signal. PointerID is the opaque contact
// token from whatever event source the frontend uses.
type inputEvent struct {
	Type      string `json:"type"`
	PointerID string `json:"pointerId"`
}

type statusEvent struct {
	Type    string `json:"type"`
	State   string `json:"state"`
	Message string `json:"message,omitempty"`
}

type helloEvent struct {
	Type string            `json:"type"`
	Info map[string]string `json:"info"`
}

// Hub broadcasts status transitions to every connected frontend and routes
// their input events into the handler. It implements ports.StatusSink.
type Hub struct {
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[string]*conn
}

func NewHub() *Hub {
	return &Hub{
		log: logging.L("bridge"),
		upgrader: websocket.Upgrader{
			// The bridge binds to loopback; frontends are local files or
			// dev servers with arbitrary origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[string]*conn),
	}
}

// StatusChanged broadcasts a status transition to all connections.
func (h *Hub) StatusChanged(status domain.Status) {
	event := &statusEvent{Type: "status", State: string(status.Phase), Message: status.Message}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.Lock()
	for id, c := range h.conns {
		select {
		case c.send <- payload:
		default:
			// A stalled frontend must not block the state machine.
			delete(h.conns, id)
			close(c.send)
		}
	}
	h.mu.Unlock()
}

// Handler returns the websocket endpoint wired to the input handler.
func (h *Hub) Handler(handler InputHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		socket, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		c := &conn{
			id:     uuid.NewString(),
			socket: socket,
			send:   make(chan []byte, sendBuffer),
		}

		h.register(c, handler)
		go c.writeLoop()
		h.readLoop(c, handler)
	})
}

func (h *Hub) register(c *conn, handler InputHandler) {
	hello, _ := json.Marshal(helloEvent{Type: "hello", Info: handler.RuntimeInfo()})

	status := handler.Status()
	snapshot, _ := json.Marshal(statusEvent{Type: "status", State: string(status.Phase), Message: status.Message})

	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()

	// Late joiners render current state immediately.
	c.send <- hello
	c.send <- snapshot

	h.log.Info("frontend connected", zap.String("conn", c.id))
}

func (h *Hub) unregister(c *conn) {
	h.mu.Lock()
	if _, ok := h.conns[c.id]; ok {
		delete(h.conns, c.id)
		close(c.send)
	}
	h.mu.Unlock()

	h.log.Info("frontend disconnected", zap.String("conn", c.id))
}

func (h *Hub) readLoop(c *conn, handler InputHandler) {
	defer func() {
		h.unregister(c)
		_ = c.socket.Close()
		// A vanished frontend can no longer release its press; treat the
		// disconnect like focus loss.
		handler.Blur()
	}()

	for {
		_, payload, err := c.socket.ReadMessage()
		if err != nil {
			return
		}

		var event inputEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			h.log.Debug("discarding malformed input event", zap.Error(err))
			continue
		}

		switch event.Type {
		case "press":
			handler.Press(event.PointerID)
		case "release":
			handler.Release(event.PointerID)
		case "cancel":
			handler.Cancel(event.PointerID)
		case "blur":
			handler.Blur()
		default:
			h.log.Debug("discarding unknown input event", zap.String("type", event.Type))
		}
	}
}

// Close disconnects all frontends.
func (h *Hub) Close() {
	h.mu.Lock()
	for id, c := range h.conns {
		delete(h.conns, id)
		close(c.send)
	}
	h.mu.Unlock()
}

type conn struct {
	id     string
	socket *websocket.Conn
	send   chan []byte
}

func (c *conn) writeLoop() {
	for payload := range c.send {
		if err := c.socket.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
	_ = c.socket.Close()
}
