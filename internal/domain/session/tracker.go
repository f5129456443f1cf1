package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/bubblegate/internal/domain/popup"
	"github.com/GriffinCanCode/bubblegate/internal/domain/redirect"
	"github.com/GriffinCanCode/bubblegate/internal/domain/surface"
	"github.com/GriffinCanCode/bubblegate/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/bubblegate/internal/shared/id"
	"github.com/GriffinCanCode/bubblegate/internal/shared/types"
	"go.uber.org/zap"
)

var (
	ErrClosed      = errors.New("session closed")
	ErrNotOpen     = errors.New("session not open")
	ErrAlreadyOpen = errors.New("session already open")
)

// Options configures a Tracker
type Options struct {
	RedirectLimit int
	Bounds        types.Rect
	// OnNavigationFailed receives failures the tracker could not recover from
	OnNavigationFailed func(err error)
}

// ContextInfo describes one tracked browsing context
type ContextInfo struct {
	ID            id.ContextID `json:"id"`
	URL           string       `json:"url"`
	RedirectCount int          `json:"redirect_count"`
	LastValidURL  string       `json:"last_valid_url,omitempty"`
}

// Snapshot is a point-in-time view of the session
type Snapshot struct {
	Open        bool          `json:"open"`
	Primary     *ContextInfo  `json:"primary,omitempty"`
	Secondaries []ContextInfo `json:"secondaries"`
}

// Tracker manages the primary browsing context and its popups
type Tracker struct {
	factory surface.Factory
	popups  *popup.Manager
	opener  surface.ExternalOpener
	cookies CookiePersister
	logger  *zap.Logger
	metrics *monitoring.Metrics
	opts    Options
	now     func() time.Time

	mu          sync.Mutex
	primary     surface.Context
	secondaries []surface.Context
	guards      map[id.ContextID]*redirect.Guard
	closed      bool
}

// NewTracker creates a tracker. A nil popup manager is built on factory.
func NewTracker(factory surface.Factory, popups *popup.Manager, opener surface.ExternalOpener, cookies CookiePersister, logger *zap.Logger, opts Options) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if popups == nil {
		popups = popup.NewManager(factory, logger)
	}
	return &Tracker{
		factory: factory,
		popups:  popups,
		opener:  opener,
		cookies: cookies,
		logger:  logger,
		opts:    opts,
		now:     defaultNow,
		guards:  make(map[id.ContextID]*redirect.Guard),
	}
}

// WithMetrics attaches a metrics collector
func (t *Tracker) WithMetrics(m *monitoring.Metrics) *Tracker {
	t.metrics = m
	t.popups.WithMetrics(m)
	return t
}

// Open creates the primary context, restores cookies and starts loading url
func (t *Tracker) Open(ctx context.Context, rawURL string) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	if t.primary != nil {
		t.mu.Unlock()
		return ErrAlreadyOpen
	}
	t.mu.Unlock()

	c, err := t.factory.NewContext(ctx, surface.Options{
		Delegate: t,
		Bounds:   t.opts.Bounds,
	})
	if err != nil {
		return fmt.Errorf("create primary context: %w", err)
	}

	// Cookie failures degrade to a cookie-less session
	_ = t.restoreInto(ctx, c)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.primary != nil {
		c.Close()
		if t.closed {
			return ErrClosed
		}
		return ErrAlreadyOpen
	}

	t.primary = c
	guard := redirect.New(t.opts.RedirectLimit)
	t.guards[c.ID()] = guard
	guard.Begin()
	c.Load(rawURL)

	t.logger.Info("session opened",
		zap.String("context_id", c.ID().String()),
		zap.String("url", rawURL))
	return nil
}

// Navigate loads url in the primary context as a fresh navigation
func (t *Tracker) Navigate(ctx context.Context, rawURL string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	if t.primary == nil {
		return ErrNotOpen
	}

	t.guards[t.primary.ID()].Begin()
	t.primary.Load(rawURL)
	t.logger.Info("session navigated", zap.String("url", rawURL))
	return nil
}

// DecidePolicy allows web URLs and hands everything else to the external opener
func (t *Tracker) DecidePolicy(ctx context.Context, c surface.Context, req surface.NavigationRequest) surface.Policy {
	if !isWebURL(req.URL) {
		if t.opener != nil {
			if err := t.opener.Open(ctx, req.URL); err != nil {
				t.logger.Warn("external open failed", zap.String("url", req.URL), zap.Error(err))
			}
		}
		if t.metrics != nil {
			t.metrics.IncExternalSchemes()
		}
		t.logger.Debug("navigation handed off", zap.String("url", req.URL))
		return surface.PolicyCancel
	}

	if req.MainFrame && req.Kind.UserInitiated() {
		if g := t.guardFor(c); g != nil {
			g.Begin()
		}
	}
	return surface.PolicyAllow
}

// ServerRedirect counts the redirect, recovers from loops and persists cookies.
// The committed URL is the recovery target; before the first commit it is the hop's origin.
func (t *Tracker) ServerRedirect(ctx context.Context, c surface.Context, from, to string) {
	t.mu.Lock()
	guard := t.guards[c.ID()]
	if guard == nil {
		t.mu.Unlock()
		return
	}

	origin := c.URL()
	if origin == "" {
		origin = from
	}
	decision := guard.OnServerRedirect(origin)
	t.apply(c, decision)
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.IncRedirects()
	}
	t.logger.Debug("server redirect",
		zap.String("context_id", c.ID().String()),
		zap.String("from", from),
		zap.String("to", to),
		zap.Int("count", guard.Count()),
		zap.Stringer("action", decision.Action))

	// The load may already be stopped; the snapshot must still be taken
	_ = t.persistFrom(context.WithoutCancel(ctx), c)

	if decision.Action == redirect.Stop {
		t.report(c, surface.ErrTooManyRedirects)
	}
}

// apply carries out a guard decision; callers hold t.mu
func (t *Tracker) apply(c surface.Context, d redirect.Decision) {
	switch d.Action {
	case redirect.Stop:
		c.StopLoading()
		t.logger.Warn("redirect loop stopped", zap.String("context_id", c.ID().String()))
	case redirect.Reload:
		c.StopLoading()
		c.Load(d.ReloadURL)
		if t.metrics != nil {
			t.metrics.IncRedirectRecoveries()
		}
		t.logger.Warn("redirect loop, reloading last valid url",
			zap.String("context_id", c.ID().String()),
			zap.String("url", d.ReloadURL))
	}
}

// NavigationFinished logs completed loads
func (t *Tracker) NavigationFinished(ctx context.Context, c surface.Context, rawURL string) {
	t.logger.Debug("navigation finished",
		zap.String("context_id", c.ID().String()),
		zap.String("url", rawURL))
}

// NavigationFailed recovers from surface-level redirect loops and reports the rest
func (t *Tracker) NavigationFailed(ctx context.Context, c surface.Context, err error) {
	if errors.Is(err, surface.ErrCancelled) {
		return
	}

	if errors.Is(err, surface.ErrTooManyRedirects) {
		t.mu.Lock()
		guard := t.guards[c.ID()]
		if guard == nil {
			t.mu.Unlock()
			return
		}
		decision := guard.OnTooManyRedirects()
		if decision.Action == redirect.Reload {
			t.apply(c, decision)
			t.mu.Unlock()
			return
		}
		t.mu.Unlock()
	}

	t.report(c, err)
}

// report counts a failure and hands it to the failure hook
func (t *Tracker) report(c surface.Context, err error) {
	if t.metrics != nil {
		t.metrics.RecordNavigationFailure(failureKind(err))
	}
	t.logger.Warn("navigation failed",
		zap.String("context_id", c.ID().String()),
		zap.Error(err))
	if t.opts.OnNavigationFailed != nil {
		t.opts.OnNavigationFailed(err)
	}
}

// NewWindowRequested opens a popup over the opener and starts loading it
func (t *Tracker) NewWindowRequested(ctx context.Context, opener surface.Context, req surface.WindowRequest) surface.Context {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	c, err := t.popups.Spawn(ctx, opener, req, t)
	if err != nil {
		t.logger.Warn("popup refused", zap.String("url", req.URL), zap.Error(err))
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		t.popups.Destroy(c)
		return nil
	}

	t.secondaries = append(t.secondaries, c)
	guard := redirect.New(t.opts.RedirectLimit)
	t.guards[c.ID()] = guard
	guard.Begin()
	if req.URL != "" {
		c.Load(req.URL)
	}
	return c
}

// BackGesture goes back in the swiped context, closing a popup with no history
func (t *Tracker) BackGesture(ctx context.Context, c surface.Context) {
	if c.CanGoBack() {
		c.GoBack()
		return
	}

	t.mu.Lock()
	idx := t.indexOf(c)
	if idx < 0 {
		t.mu.Unlock()
		return
	}
	t.secondaries = append(t.secondaries[:idx], t.secondaries[idx+1:]...)
	delete(t.guards, c.ID())
	t.mu.Unlock()

	t.popups.Destroy(c)
}

// CloseSecondary closes the newest popup, or goes back in the primary when none is open.
// It reports whether anything happened.
func (t *Tracker) CloseSecondary(ctx context.Context) bool {
	t.mu.Lock()
	if n := len(t.secondaries); n > 0 {
		last := t.secondaries[n-1]
		t.secondaries = t.secondaries[:n-1]
		delete(t.guards, last.ID())
		t.mu.Unlock()

		t.popups.Destroy(last)
		return true
	}
	primary := t.primary
	t.mu.Unlock()

	if primary != nil && primary.CanGoBack() {
		primary.GoBack()
		return true
	}
	return false
}

// SecondaryCount returns the number of open popups
func (t *Tracker) SecondaryCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.secondaries)
}

// Snapshot describes the current session
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := Snapshot{Secondaries: make([]ContextInfo, 0, len(t.secondaries))}
	if t.primary != nil && !t.closed {
		snap.Open = true
		info := t.info(t.primary)
		snap.Primary = &info
	}
	for _, c := range t.secondaries {
		snap.Secondaries = append(snap.Secondaries, t.info(c))
	}
	return snap
}

// Close persists cookies, destroys popups newest first and closes the primary
func (t *Tracker) Close(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	primary := t.primary
	secondaries := t.secondaries
	t.primary = nil
	t.secondaries = nil
	t.guards = make(map[id.ContextID]*redirect.Guard)
	t.mu.Unlock()

	var err error
	if primary != nil {
		err = t.persistFrom(ctx, primary)
	}
	for i := len(secondaries) - 1; i >= 0; i-- {
		t.popups.Destroy(secondaries[i])
	}
	if primary != nil {
		primary.StopLoading()
		primary.Close()
	}

	t.logger.Info("session closed", zap.Int("popups_closed", len(secondaries)))
	return err
}

func (t *Tracker) info(c surface.Context) ContextInfo {
	info := ContextInfo{ID: c.ID(), URL: c.URL()}
	if g := t.guards[c.ID()]; g != nil {
		info.RedirectCount = g.Count()
		info.LastValidURL = g.LastValidURL()
	}
	return info
}

func (t *Tracker) guardFor(c surface.Context) *redirect.Guard {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.guards[c.ID()]
}

func (t *Tracker) indexOf(c surface.Context) int {
	for i, s := range t.secondaries {
		if s.ID() == c.ID() {
			return i
		}
	}
	return -1
}

func isWebURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "about":
		return true
	default:
		return false
	}
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, surface.ErrTooManyRedirects):
		return "redirect_loop"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "other"
	}
}
