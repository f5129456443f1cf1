package phase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/GriffinCanCode/bubblegate/internal/domain/attribution"
	"github.com/GriffinCanCode/bubblegate/internal/domain/connectivity"
	"github.com/GriffinCanCode/bubblegate/internal/domain/remoteconfig"
	"github.com/GriffinCanCode/bubblegate/internal/infrastructure/config"
	"github.com/GriffinCanCode/bubblegate/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/bubblegate/internal/providers/storage"
	"github.com/GriffinCanCode/bubblegate/internal/shared/types"
	"go.uber.org/zap"
)

var ErrStopped = errors.New("phase controller stopped")

// Options configures a Controller
type Options struct {
	OrganicDelay   time.Duration
	PromptInterval time.Duration
	DeepLinkDelay  time.Duration
	App            config.AppConfig
	StoreID        string
	Now            func() time.Time
}

// OptionsFromConfig builds controller options from the application config
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		OrganicDelay:   cfg.Timing.OrganicCheckDelay,
		PromptInterval: cfg.Timing.PromptInterval,
		DeepLinkDelay:  cfg.Timing.DeepLinkDelay,
		App:            cfg.App,
		StoreID:        "id" + cfg.Endpoint.AppID,
	}
}

// Controller owns the display phase. All events are handled one at a time by
// the loop started with Run; slow work runs in goroutines that post their
// completions back to the loop.
type Controller struct {
	resolver remoteconfig.Fetcher
	state    *storage.State
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	opts     Options

	events chan Event
	done   chan struct{}

	mu    sync.RWMutex
	phase Phase

	subMu   sync.Mutex
	subs    map[int]chan Update
	nextSub int

	// owned by the loop
	runCtx             context.Context
	wg                 sync.WaitGroup
	lastPayload        attribution.Payload
	connectivity       connectivity.State
	awaitingPermission bool
	pendingPayload     attribution.Payload
}

// New creates a controller in the Initializing phase
func New(resolver remoteconfig.Fetcher, state *storage.State, logger *zap.Logger, opts Options) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PromptInterval <= 0 {
		opts.PromptInterval = 72 * time.Hour
	}
	return &Controller{
		resolver: resolver,
		state:    state,
		logger:   logger,
		opts:     opts,
		events:   make(chan Event),
		done:     make(chan struct{}),
		phase:    Phase{Kind: Initializing},
		subs:     make(map[int]chan Update),
	}
}

// WithMetrics attaches a metrics collector
func (c *Controller) WithMetrics(m *monitoring.Metrics) *Controller {
	c.metrics = m
	return c
}

// Current returns the current phase
func (c *Controller) Current() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

// Subscribe returns a channel of updates and a func that ends the subscription.
// The channel is closed when the subscription ends or the controller stops.
func (c *Controller) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, 16)

	c.subMu.Lock()
	key := c.nextSub
	c.nextSub++
	select {
	case <-c.done:
		close(ch)
	default:
		c.subs[key] = ch
	}
	c.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			defer c.subMu.Unlock()
			if sub, ok := c.subs[key]; ok {
				delete(c.subs, key)
				close(sub)
			}
		})
	}
}

// Post hands an event to the loop, blocking until it is accepted
func (c *Controller) Post(ctx context.Context, e Event) error {
	select {
	case c.events <- e:
		return nil
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes events until ctx is cancelled
func (c *Controller) Run(ctx context.Context) error {
	c.runCtx = ctx
	c.logger.Info("phase controller started")
	c.publish(Update{Phase: c.Current(), Previous: c.Current(), At: c.opts.Now()})

	defer func() {
		c.wg.Wait()
		c.subMu.Lock()
		close(c.done)
		for key, sub := range c.subs {
			delete(c.subs, key)
			close(sub)
		}
		c.subMu.Unlock()
		c.logger.Info("phase controller stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-c.events:
			c.handle(ctx, e)
		}
	}
}

func (c *Controller) handle(ctx context.Context, e Event) {
	if c.metrics != nil {
		c.metrics.RecordEvent(e.eventName())
	}

	switch ev := e.(type) {
	case AttributionReceived:
		c.onAttribution(ctx, ev.Payload)
	case AttributionFailed:
		c.onAttributionFailed(ctx)
	case organicChecked:
		c.onOrganicChecked(ctx, ev)
	case PermissionAnswered:
		c.onPermissionAnswered(ctx, ev.Answer)
	case ConnectivityChanged:
		c.onConnectivity(ev.State)
	case PushTokenUpdated:
		c.onPushToken(ctx, ev.Token)
	case RetryRequested:
		c.onRetry(ctx)
	case NotificationReceived:
		c.onNotification(ctx, ev.Payload)
	case deepLinkDue:
		c.onDeepLinkDue(ctx, ev.url)
	case configResolved:
		c.onConfigResolved(ctx, ev)
	case NavigationFailed:
		c.logger.Warn("navigation failed", zap.Error(ev.Err))
	}
}

func (c *Controller) onAttribution(ctx context.Context, payload attribution.Payload) {
	if c.Current().Kind != Initializing {
		c.logger.Debug("attribution ignored", zap.Stringer("phase", c.Current()))
		return
	}
	if c.persistedFallback(ctx) {
		c.transition(ctx, Phase{Kind: Fallback}, triggerAttribution)
		return
	}

	c.lastPayload = payload
	firstLaunch := payload.FirstLaunch()
	if payload.IsFirstLaunch == nil {
		launched, err := c.state.HasLaunched(ctx)
		if err != nil {
			c.logger.Warn("launch flag unreadable", zap.Error(err))
		}
		firstLaunch = err == nil && !launched
	}
	if err := c.state.MarkLaunched(ctx); err != nil {
		c.logger.Warn("launch flag not saved", zap.Error(err))
	}

	if firstLaunch && payload.IsOrganic() {
		c.logger.Info("organic first launch, delaying attribution check",
			zap.Duration("delay", c.opts.OrganicDelay))
		c.checkOrganic(payload)
		return
	}
	c.proceed(ctx, payload)
}

func (c *Controller) onAttributionFailed(ctx context.Context) {
	if c.Current().Kind != Initializing {
		return
	}
	if c.persistedFallback(ctx) {
		c.transition(ctx, Phase{Kind: Fallback}, triggerAttribution)
		return
	}
	c.lastPayload = attribution.Payload{}
	c.resolve(ctx, c.lastPayload, triggerAttribution)
}

func (c *Controller) onOrganicChecked(ctx context.Context, ev organicChecked) {
	if c.Current().Kind != Initializing {
		return
	}
	payload := ev.base
	if ev.err == nil {
		payload = payload.Merge(ev.result)
	}
	c.lastPayload = payload
	c.proceed(ctx, payload)
}

// proceed runs the post-attribution checks: pending deep link, permission prompt, resolution
func (c *Controller) proceed(ctx context.Context, payload attribution.Payload) {
	if u, err := c.state.TakeTempURL(ctx); err == nil && u != "" {
		c.transition(ctx, Web(u), triggerDeepLink)
		return
	}

	if c.needsPermissionPrompt(ctx) {
		now := c.opts.Now()
		if err := c.state.SetLastPromptDate(ctx, now); err != nil {
			c.logger.Warn("prompt date not saved", zap.Error(err))
		}
		c.awaitingPermission = true
		c.pendingPayload = payload
		current := c.Current()
		c.publish(Update{Phase: current, Previous: current, Signal: SignalPermissionPrompt, At: now})
		c.logger.Info("waiting for notification permission answer")
		return
	}

	c.resolve(ctx, payload, triggerAttribution)
}

func (c *Controller) needsPermissionPrompt(ctx context.Context) bool {
	decision, err := c.state.PermissionDecision(ctx)
	if err != nil || decision != storage.PermissionUndecided {
		return false
	}
	last, err := c.state.LastPromptDate(ctx)
	if err != nil {
		return false
	}
	return last.IsZero() || c.opts.Now().Sub(last) > c.opts.PromptInterval
}

func (c *Controller) onPermissionAnswered(ctx context.Context, answer PermissionAnswer) {
	var decision storage.PermissionDecision
	switch answer {
	case PermissionGranted:
		decision = storage.PermissionGranted
	case PermissionDenied:
		decision = storage.PermissionDenied
	}
	if decision != storage.PermissionUndecided {
		if err := c.state.SetPermissionDecision(ctx, decision); err != nil {
			c.logger.Warn("permission decision not saved", zap.Error(err))
		}
	}

	if !c.awaitingPermission {
		return
	}
	c.awaitingPermission = false
	payload := c.pendingPayload
	c.pendingPayload = attribution.Payload{}
	c.resolve(ctx, payload, triggerAttribution)
}

func (c *Controller) onConnectivity(state connectivity.State) {
	c.connectivity = state
	if state == connectivity.Unsatisfied && c.Current().Kind == WebDisplay {
		c.transition(c.runCtx, Phase{Kind: Offline}, triggerConnectivity)
	}
}

func (c *Controller) onPushToken(ctx context.Context, token string) {
	if err := c.state.SetPushToken(ctx, token); err != nil {
		c.logger.Warn("push token not saved", zap.Error(err))
	}
	switch c.Current().Kind {
	case Initializing:
		// the attribution flow resolves with the stored token
		c.logger.Debug("push token stored before attribution, not resolving")
		return
	case Offline:
		c.logger.Debug("push token stored while offline, not resolving")
		return
	}
	c.resolve(ctx, c.lastPayload, triggerPushToken)
}

func (c *Controller) onRetry(ctx context.Context) {
	if c.Current().Kind != Offline {
		c.logger.Debug("retry ignored", zap.Stringer("phase", c.Current()))
		return
	}
	if c.connectivity == connectivity.Unsatisfied {
		c.logger.Info("retry ignored while network is unreachable")
		return
	}
	c.resolve(ctx, c.lastPayload, triggerRetry)
}

func (c *Controller) onNotification(ctx context.Context, payload map[string]any) {
	u, ok := attribution.DeepLink(payload)
	if !ok {
		return
	}
	if err := c.state.SetTempURL(ctx, u); err != nil {
		c.logger.Warn("deep link not saved", zap.Error(err))
		return
	}
	c.logger.Info("deep link received", zap.String("url", u))

	if c.Current().Kind == WebDisplay {
		c.after(c.opts.DeepLinkDelay, deepLinkDue{url: u})
	}
}

func (c *Controller) onDeepLinkDue(ctx context.Context, u string) {
	if c.Current().Kind != WebDisplay {
		return
	}
	pending, err := c.state.TakeTempURL(ctx)
	if err != nil || pending == "" {
		return
	}
	c.transition(ctx, Web(pending), triggerDeepLink)
}

func (c *Controller) onConfigResolved(ctx context.Context, ev configResolved) {
	from := c.Current()

	var target Phase
	var cached bool
	switch {
	case ev.err == nil && ev.config != nil:
		target = Web(ev.config.URL)
	default:
		cfg, err := c.state.RemoteConfig(ctx)
		if err != nil {
			c.logger.Warn("cached config unreadable", zap.Error(err))
		}
		if cfg != nil {
			target = Web(cfg.URL)
			cached = true
		} else {
			target = Phase{Kind: Fallback}
		}
	}

	if !allowed(from.Kind, target.Kind, ev.trigger) {
		c.logger.Info("resolution discarded",
			zap.Stringer("phase", from),
			zap.Stringer("target", target),
			zap.Stringer("trigger", ev.trigger))
		return
	}

	switch {
	case target.Kind == Fallback:
		c.saveMode(ctx, types.ModeFallback)
	case !cached:
		if err := c.state.SaveRemoteConfig(ctx, *ev.config); err != nil {
			c.logger.Warn("config not saved", zap.Error(err))
		}
		c.saveMode(ctx, types.ModeWebDisplay)
	default:
		c.logger.Info("using cached config", zap.NamedError("fetch_error", ev.err))
	}

	c.transition(ctx, target, ev.trigger)
}

// resolve starts a config fetch; its completion is posted back to the loop
func (c *Controller) resolve(ctx context.Context, payload attribution.Payload, t trigger) {
	req := remoteconfig.Request{
		Attribution:       payload,
		BundleID:          c.opts.App.BundleID,
		OS:                c.opts.App.OS,
		StoreID:           c.opts.StoreID,
		Locale:            c.opts.App.Locale,
		FirebaseProjectID: c.opts.App.FirebaseProjectID,
	}
	var err error
	if req.DeviceID, err = c.state.DeviceID(ctx); err != nil {
		c.logger.Warn("device id unavailable", zap.Error(err))
	}
	if req.PushToken, err = c.state.PushToken(ctx); err != nil {
		c.logger.Warn("push token unreadable", zap.Error(err))
	}

	c.logger.Debug("resolving remote config", zap.Stringer("trigger", t))
	c.spawn(func(ctx context.Context) Event {
		cfg, err := c.resolver.Fetch(ctx, req)
		return configResolved{trigger: t, config: cfg, err: err}
	})
}

func (c *Controller) checkOrganic(base attribution.Payload) {
	delay := c.opts.OrganicDelay
	c.spawn(func(ctx context.Context) Event {
		if !sleep(ctx, delay) {
			return nil
		}
		deviceID, err := c.state.DeviceID(ctx)
		if err != nil {
			return organicChecked{base: base, err: err}
		}
		result, err := c.resolver.FetchOrganicAttribution(ctx, deviceID)
		return organicChecked{base: base, result: result, err: err}
	})
}

func (c *Controller) after(d time.Duration, e Event) {
	c.spawn(func(ctx context.Context) Event {
		if !sleep(ctx, d) {
			return nil
		}
		return e
	})
}

// spawn runs fn off the loop and posts its event, if any, back to it
func (c *Controller) spawn(fn func(ctx context.Context) Event) {
	ctx := c.runCtx
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if e := fn(ctx); e != nil {
			if err := c.Post(ctx, e); err != nil {
				c.logger.Debug("completion dropped at shutdown", zap.String("event", e.eventName()))
			}
		}
	}()
}

func (c *Controller) transition(ctx context.Context, to Phase, t trigger) bool {
	c.mu.Lock()
	from := c.phase
	if !allowed(from.Kind, to.Kind, t) {
		c.mu.Unlock()
		c.logger.Warn("illegal phase transition rejected",
			zap.Stringer("from", from),
			zap.Stringer("to", to),
			zap.Stringer("trigger", t))
		return false
	}
	if from == to {
		c.mu.Unlock()
		return false
	}
	c.phase = to
	c.mu.Unlock()

	c.logger.Info("phase changed",
		zap.Stringer("from", from),
		zap.Stringer("to", to),
		zap.Stringer("trigger", t))
	if c.metrics != nil {
		c.metrics.RecordPhaseTransition(from.Kind.String(), to.Kind.String())
	}
	c.publish(Update{Phase: to, Previous: from, At: c.opts.Now()})
	return true
}

func (c *Controller) persistedFallback(ctx context.Context) bool {
	mode, err := c.state.AppMode(ctx)
	if err != nil {
		c.logger.Warn("app mode unreadable", zap.Error(err))
		return false
	}
	return mode == types.ModeFallback
}

func (c *Controller) saveMode(ctx context.Context, mode types.AppMode) {
	if err := c.state.SetAppMode(ctx, mode); err != nil {
		c.logger.Warn("app mode not saved", zap.Error(err))
	}
}

// publish fans an update out; a full subscriber loses its oldest update
func (c *Controller) publish(u Update) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	for _, sub := range c.subs {
		select {
		case sub <- u:
			continue
		default:
		}
		select {
		case <-sub:
		default:
		}
		select {
		case sub <- u:
		default:
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
