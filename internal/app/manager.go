package app

import (
	"context"
	"errors"
	"sync"

	"github.com/GriffinCanCode/bubblegate/internal/domain/connectivity"
	"github.com/GriffinCanCode/bubblegate/internal/domain/phase"
	"github.com/GriffinCanCode/bubblegate/internal/domain/popup"
	"github.com/GriffinCanCode/bubblegate/internal/domain/session"
	"github.com/GriffinCanCode/bubblegate/internal/domain/surface"
	"github.com/GriffinCanCode/bubblegate/internal/infrastructure/monitoring"
	"go.uber.org/zap"
)

// ErrNoSession is returned when no web content is displayed
var ErrNoSession = errors.New("no browsing session")

// PhaseSource is the part of the phase controller the display follows
type PhaseSource interface {
	Current() phase.Phase
	Subscribe() (<-chan phase.Update, func())
	Post(ctx context.Context, e phase.Event) error
}

// Manager owns the browsing session for as long as the phase is WebDisplay.
// Entering WebDisplay opens a session, a new URL navigates it and leaving
// WebDisplay closes it.
type Manager struct {
	source  PhaseSource
	factory surface.Factory
	opener  surface.ExternalOpener
	cookies session.CookiePersister
	logger  *zap.Logger
	metrics *monitoring.Metrics
	opts    session.Options

	mu      sync.RWMutex
	tracker *session.Tracker
	url     string
	runCtx  context.Context
}

// NewManager creates a display manager
func NewManager(source PhaseSource, factory surface.Factory, opener surface.ExternalOpener, cookies session.CookiePersister, logger *zap.Logger, opts session.Options) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		source:  source,
		factory: factory,
		opener:  opener,
		cookies: cookies,
		logger:  logger,
		opts:    opts,
		runCtx:  context.Background(),
	}
}

// WithMetrics attaches a metrics collector to every session the manager opens
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// Run follows phase updates until ctx is done or the controller stops.
// The session is closed on return.
func (m *Manager) Run(ctx context.Context) error {
	updates, cancel := m.source.Subscribe()
	defer cancel()

	m.mu.Lock()
	m.runCtx = ctx
	m.mu.Unlock()
	defer m.closeSession(context.WithoutCancel(ctx))

	m.apply(ctx, m.source.Current())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			if u.Signal == phase.SignalPermissionPrompt {
				m.logger.Info("permission prompt requested")
			}
			m.apply(ctx, u.Phase)
		}
	}
}

// ForwardConnectivity posts every connectivity change to the phase controller
func (m *Manager) ForwardConnectivity(ctx context.Context, changes <-chan connectivity.State) {
	for {
		select {
		case <-ctx.Done():
			return
		case state, ok := <-changes:
			if !ok {
				return
			}
			if err := m.source.Post(ctx, phase.ConnectivityChanged{State: state}); err != nil {
				m.logger.Debug("connectivity change dropped", zap.Error(err))
				return
			}
		}
	}
}

// Session returns the live tracker
func (m *Manager) Session() (*session.Tracker, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tracker, m.tracker != nil
}

// Snapshot describes the live session; Open is false when there is none
func (m *Manager) Snapshot() session.Snapshot {
	if t, ok := m.Session(); ok {
		return t.Snapshot()
	}
	return session.Snapshot{Secondaries: []session.ContextInfo{}}
}

// CloseSecondary closes the newest popup or goes back in the primary
func (m *Manager) CloseSecondary(ctx context.Context) (bool, error) {
	t, ok := m.Session()
	if !ok {
		return false, ErrNoSession
	}
	return t.CloseSecondary(ctx), nil
}

func (m *Manager) apply(ctx context.Context, p phase.Phase) {
	if p.Kind != phase.WebDisplay {
		m.closeSession(ctx)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tracker != nil {
		if p.URL == m.url {
			return
		}
		if err := m.tracker.Navigate(ctx, p.URL); err != nil {
			m.logger.Warn("session navigate failed", zap.String("url", p.URL), zap.Error(err))
			return
		}
		m.url = p.URL
		return
	}

	opts := m.opts
	opts.OnNavigationFailed = m.navigationFailed
	popups := popup.NewManager(m.factory, m.logger)
	t := session.NewTracker(m.factory, popups, m.opener, m.cookies, m.logger, opts)
	if m.metrics != nil {
		t.WithMetrics(m.metrics)
	}
	if err := t.Open(ctx, p.URL); err != nil {
		m.logger.Error("session open failed", zap.String("url", p.URL), zap.Error(err))
		return
	}
	m.tracker = t
	m.url = p.URL
}

func (m *Manager) closeSession(ctx context.Context) {
	m.mu.Lock()
	t := m.tracker
	m.tracker = nil
	m.url = ""
	m.mu.Unlock()

	if t == nil {
		return
	}
	if err := t.Close(ctx); err != nil {
		m.logger.Warn("session close", zap.Error(err))
	}
}

// navigationFailed is called from surface goroutines
func (m *Manager) navigationFailed(err error) {
	m.mu.RLock()
	ctx := m.runCtx
	m.mu.RUnlock()

	go func() {
		if perr := m.source.Post(ctx, phase.NavigationFailed{Err: err}); perr != nil {
			m.logger.Debug("navigation failure dropped", zap.Error(perr))
		}
	}()
}
