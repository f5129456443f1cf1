package popup

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/GriffinCanCode/bubblegate/internal/domain/surface"
	"github.com/GriffinCanCode/bubblegate/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/bubblegate/internal/shared/id"
	"go.uber.org/zap"
)

var ErrNoOpener = errors.New("popup requires an opener context")

// Manager creates and destroys secondary browsing contexts
type Manager struct {
	factory surface.Factory
	logger  *zap.Logger
	metrics *monitoring.Metrics

	mu   sync.Mutex
	live map[id.ContextID]surface.Context
}

// NewManager creates a popup manager backed by factory
func NewManager(factory surface.Factory, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		factory: factory,
		logger:  logger,
		live:    make(map[id.ContextID]surface.Context),
	}
}

// WithMetrics attaches a metrics collector
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// Spawn creates a secondary context overlaying the opener, with the edge back
// gesture enabled. The caller starts its load.
func (m *Manager) Spawn(ctx context.Context, opener surface.Context, req surface.WindowRequest, delegate surface.Delegate) (surface.Context, error) {
	if opener == nil {
		return nil, ErrNoOpener
	}

	c, err := m.factory.NewContext(ctx, surface.Options{
		Delegate:        delegate,
		Opener:          opener,
		Bounds:          opener.Bounds(),
		EdgeBackGesture: true,
	})
	if err != nil {
		return nil, fmt.Errorf("spawn popup: %w", err)
	}

	m.mu.Lock()
	m.live[c.ID()] = c
	n := len(m.live)
	m.mu.Unlock()

	m.report(n)
	m.logger.Debug("popup spawned",
		zap.String("popup_id", c.ID().String()),
		zap.String("opener_id", opener.ID().String()),
		zap.String("url", req.URL))
	return c, nil
}

// Destroy stops and closes a popup; unknown contexts are ignored
func (m *Manager) Destroy(c surface.Context) {
	if c == nil {
		return
	}

	m.mu.Lock()
	_, ok := m.live[c.ID()]
	delete(m.live, c.ID())
	n := len(m.live)
	m.mu.Unlock()

	if !ok {
		return
	}

	c.StopLoading()
	c.Close()
	m.report(n)
	m.logger.Debug("popup destroyed", zap.String("popup_id", c.ID().String()))
}

// Count returns the number of live popups
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

func (m *Manager) report(n int) {
	if m.metrics != nil {
		m.metrics.SetPopupsOpen(n)
	}
}
