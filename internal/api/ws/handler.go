package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/platform/internal/domain/framework"
	"github.com/GriffinCanCode/AgentOS/platform/internal/domain/service"
	"github.com/GriffinCanCode/AgentOS/platform/internal/shared/id"
)

const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingPeriod   = (pongTimeout * 9) / 10
	queueSize    = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local introspection only
	},
}

// Frame is one message sent to clients.
type Frame struct {
	Type       string    `json:"type"`
	Event      string    `json:"event"`
	Bundle     string    `json:"bundle,omitempty"`
	State      string    `json:"state,omitempty"`
	ServiceID  int64     `json:"service_id,omitempty"`
	Interfaces []string  `json:"interfaces,omitempty"`
	Message    string    `json:"message,omitempty"`
	Time       time.Time `json:"time"`
}

// Handler manages WebSocket subscriptions
type Handler struct {
	loader   *framework.Loader
	registry *service.Registry
	logger   *zap.Logger

	mu            sync.Mutex
	subscriptions map[id.SubscriptionID]*subscription
}

// NewHandler creates a new WebSocket handler
func NewHandler(loader *framework.Loader, registry *service.Registry, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		loader:        loader,
		registry:      registry,
		logger:        logger,
		subscriptions: make(map[id.SubscriptionID]*subscription),
	}
}

// subscription is the registry-facing identity of one connection. It
// implements service.BundleContext so its listener can be removed in one
// call.
type subscription struct {
	id      id.SubscriptionID
	frames  chan Frame
	dropped int

	mu     sync.Mutex
	closed bool
}

func (s *subscription) ContextID() string    { return s.id.String() }
func (s *subscription) SymbolicName() string { return "introspection" }

func (s *subscription) push(f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	select {
	case s.frames <- f:
	default:
		s.dropped++
	}
}

func (s *subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.frames)
	}
}

// Subscribers returns the number of connected clients.
func (h *Handler) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscriptions)
}

// HandleConnection upgrades the request and streams events until the client
// goes away.
func (h *Handler) HandleConnection(c *gin.Context) {
	filter := c.Query("filter")
	if _, err := service.ParseFilter(filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sub := &subscription{id: id.NewSubscriptionID(), frames: make(chan Frame, queueSize)}
	bundleListener := h.loader.AddBundleListener(func(e framework.BundleEvent) {
		sub.push(bundleFrame(e))
	})
	if _, err := h.registry.AddServiceListener(sub, func(e service.Event) {
		sub.push(serviceFrame(e))
	}, filter); err != nil {
		h.loader.RemoveBundleListener(bundleListener)
		h.logger.Warn("Failed to subscribe to service events", zap.Error(err))
		return
	}

	h.mu.Lock()
	h.subscriptions[sub.id] = sub
	h.mu.Unlock()
	h.logger.Info("Event subscriber connected", zap.String("subscription", sub.id.String()))

	defer func() {
		h.loader.RemoveBundleListener(bundleListener)
		h.registry.RemoveAllServiceListeners(sub)
		sub.close()

		h.mu.Lock()
		delete(h.subscriptions, sub.id)
		h.mu.Unlock()
		h.logger.Info("Event subscriber disconnected",
			zap.String("subscription", sub.id.String()),
			zap.Int("dropped", sub.dropped))
	}()

	sub.push(Frame{Type: "system", Event: "CONNECTED", Message: sub.id.String(), Time: time.Now()})

	done := make(chan struct{})
	go h.readLoop(conn, done)
	h.writeLoop(conn, sub, done)
}

// readLoop discards client messages and notices when the client leaves.
func (h *Handler) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) writeLoop(conn *websocket.Conn, sub *subscription, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case f, ok := <-sub.frames:
			if !ok {
				return
			}
			if err := h.send(conn, f); err != nil {
				h.logger.Debug("WebSocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) send(conn *websocket.Conn, f Frame) error {
	data, err := sonic.Marshal(f)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func bundleFrame(e framework.BundleEvent) Frame {
	return Frame{
		Type:   "bundle",
		Event:  e.Type.String(),
		Bundle: e.Bundle.SymbolicName(),
		State:  e.Bundle.State().String(),
		Time:   e.Time,
	}
}

func serviceFrame(e service.Event) Frame {
	return Frame{
		Type:       "service",
		Event:      e.Type.String(),
		Bundle:     e.Reference.Bundle(),
		ServiceID:  e.Reference.ID(),
		Interfaces: e.Reference.Interfaces(),
		Time:       time.Now(),
	}
}
