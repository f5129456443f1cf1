package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/GriffinCanCode/bubblegate/internal/app"
	"github.com/GriffinCanCode/bubblegate/internal/domain/attribution"
	"github.com/GriffinCanCode/bubblegate/internal/domain/connectivity"
	"github.com/GriffinCanCode/bubblegate/internal/domain/phase"
	"github.com/GriffinCanCode/bubblegate/internal/domain/session"
	"github.com/GriffinCanCode/bubblegate/internal/infrastructure/tracing"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// postTimeout bounds how long a request waits for the controller to accept an event
const postTimeout = 5 * time.Second

// PhaseController is the part of the phase controller the API drives
type PhaseController interface {
	Current() phase.Phase
	Post(ctx context.Context, e phase.Event) error
}

// SessionView exposes the browsing session
type SessionView interface {
	Snapshot() session.Snapshot
	CloseSecondary(ctx context.Context) (bool, error)
}

// ConnectivityView reports the last known reachability
type ConnectivityView interface {
	Current() connectivity.State
}

// Handlers contains all HTTP handlers
type Handlers struct {
	controller   PhaseController
	display      SessionView
	connectivity ConnectivityView
	logger       *zap.Logger
	started      time.Time
}

// NewHandlers creates a new handler set; connectivity may be nil
func NewHandlers(controller PhaseController, display SessionView, conn ConnectivityView, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		controller:   controller,
		display:      display,
		connectivity: conn,
		logger:       logger,
		started:      time.Now(),
	}
}

// Register mounts every route on r
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/phase", h.Phase)
	r.GET("/session", h.Session)
	r.POST("/session/close-secondary", h.CloseSecondary)

	events := r.Group("/events")
	events.POST("/attribution", h.Attribution)
	events.POST("/attribution/failure", h.AttributionFailure)
	events.POST("/push-token", h.PushToken)
	events.POST("/notification", h.Notification)
	events.POST("/permission", h.Permission)
	events.POST("/retry", h.Retry)
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "bubblegate",
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	body := gin.H{
		"status":         "healthy",
		"phase":          h.controller.Current(),
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	}
	if h.connectivity != nil {
		body["connectivity"] = h.connectivity.Current().String()
	}
	c.JSON(http.StatusOK, body)
}

// Phase returns the current display phase
func (h *Handlers) Phase(c *gin.Context) {
	c.JSON(http.StatusOK, h.controller.Current())
}

// Session returns the browsing session snapshot
func (h *Handlers) Session(c *gin.Context) {
	c.JSON(http.StatusOK, h.display.Snapshot())
}

// CloseSecondary closes the newest popup or goes back in the primary
func (h *Handlers) CloseSecondary(c *gin.Context) {
	closed, err := h.display.CloseSecondary(c.Request.Context())
	if errors.Is(err, app.ErrNoSession) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"closed": closed})
}

// Attribution posts a conversion payload
func (h *Handlers) Attribution(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attribution payload"})
		return
	}
	h.post(c, phase.AttributionReceived{Payload: attribution.FromMap(body)})
}

// AttributionFailure reports that the attribution SDK gave up
func (h *Handlers) AttributionFailure(c *gin.Context) {
	var body struct {
		Error string `json:"error"`
	}
	_ = c.ShouldBindJSON(&body)
	if body.Error != "" {
		h.logger.Info("attribution failed", zap.String("reason", body.Error))
	}
	h.post(c, phase.AttributionFailed{})
}

// PushToken registers a push token
func (h *Handlers) PushToken(c *gin.Context) {
	var body struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Token) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}
	h.post(c, phase.PushTokenUpdated{Token: strings.TrimSpace(body.Token)})
}

// Notification delivers a tapped notification payload
func (h *Handlers) Notification(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification payload"})
		return
	}
	h.post(c, phase.NotificationReceived{Payload: body})
}

// Permission answers the notification permission prompt
func (h *Handlers) Permission(c *gin.Context) {
	var body struct {
		Answer string `json:"answer" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "answer is required"})
		return
	}
	answer, ok := parseAnswer(body.Answer)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "answer must be granted, denied or deferred"})
		return
	}
	h.post(c, phase.PermissionAnswered{Answer: answer})
}

// Retry asks the controller to leave Offline
func (h *Handlers) Retry(c *gin.Context) {
	h.post(c, phase.RetryRequested{})
}

func (h *Handlers) post(c *gin.Context, e phase.Event) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), postTimeout)
	defer cancel()

	err := h.controller.Post(ctx, e)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{
			"accepted": true,
			"trace_id": tracing.GetTraceID(c.Request.Context()),
		})
	case errors.Is(err, phase.ErrStopped):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "controller busy"})
	default:
		h.logger.Warn("event not delivered", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func parseAnswer(s string) (phase.PermissionAnswer, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "granted":
		return phase.PermissionGranted, true
	case "denied":
		return phase.PermissionDenied, true
	case "deferred":
		return phase.PermissionDeferred, true
	default:
		return 0, false
	}
}
