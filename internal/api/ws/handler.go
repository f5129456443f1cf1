package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/GriffinCanCode/bubblegate/internal/domain/phase"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the control API binds to loopback
	},
}

// PhaseSource is the part of the phase controller the stream follows
type PhaseSource interface {
	Current() phase.Phase
	Subscribe() (<-chan phase.Update, func())
	Post(ctx context.Context, e phase.Event) error
}

// Message is one frame sent to or received from a stream client
type Message struct {
	Type      string       `json:"type"`
	Phase     *phase.Phase `json:"phase,omitempty"`
	Previous  *phase.Phase `json:"previous,omitempty"`
	Signal    phase.Signal `json:"signal,omitempty"`
	Message   string       `json:"message,omitempty"`
	Timestamp int64        `json:"timestamp"`
}

// Handler streams phase updates over WebSocket connections
type Handler struct {
	source PhaseSource
	logger *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(source PhaseSource, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{source: source, logger: logger}
}

// HandleConnection upgrades the request and streams updates until either side closes
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	updates, cancel := h.source.Subscribe()
	defer cancel()

	ctx, stop := context.WithCancel(c.Request.Context())
	defer stop()

	s := &stream{conn: conn}
	current := h.source.Current()
	if err := s.send(Message{Type: "phase", Phase: &current}); err != nil {
		return
	}

	go h.readLoop(ctx, stop, s)

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				_ = s.send(Message{Type: "closed", Message: "controller stopped"})
				return
			}
			p, prev := u.Phase, u.Previous
			msg := Message{Type: "phase", Phase: &p, Previous: &prev, Signal: u.Signal}
			if u.Signal != phase.SignalNone {
				msg.Type = "signal"
			}
			if err := s.send(msg); err != nil {
				h.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		}
	}
}

// readLoop answers pings and forwards retry requests; any read error ends the stream
func (h *Handler) readLoop(ctx context.Context, stop context.CancelFunc, s *stream) {
	defer stop()
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg Message
		if err := sonic.Unmarshal(data, &msg); err != nil {
			_ = s.send(Message{Type: "error", Message: "malformed message"})
			continue
		}

		switch msg.Type {
		case "ping":
			_ = s.send(Message{Type: "pong"})
		case "retry":
			if err := h.source.Post(ctx, phase.RetryRequested{}); err != nil {
				_ = s.send(Message{Type: "error", Message: err.Error()})
			}
		default:
			_ = s.send(Message{Type: "error", Message: "unknown message type"})
		}
	}
}

// stream serializes writes; gorilla connections allow one concurrent writer
type stream struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *stream) send(msg Message) error {
	msg.Timestamp = time.Now().Unix()
	data, err := sonic.Marshal(msg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}
