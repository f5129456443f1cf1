package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/bubblegate/internal/api/http"
	"github.com/GriffinCanCode/bubblegate/internal/api/middleware"
	"github.com/GriffinCanCode/bubblegate/internal/api/ws"
	"github.com/GriffinCanCode/bubblegate/internal/app"
	"github.com/GriffinCanCode/bubblegate/internal/domain/connectivity"
	"github.com/GriffinCanCode/bubblegate/internal/domain/phase"
	"github.com/GriffinCanCode/bubblegate/internal/domain/remoteconfig"
	"github.com/GriffinCanCode/bubblegate/internal/domain/session"
	"github.com/GriffinCanCode/bubblegate/internal/domain/surface"
	"github.com/GriffinCanCode/bubblegate/internal/infrastructure/config"
	"github.com/GriffinCanCode/bubblegate/internal/infrastructure/logging"
	"github.com/GriffinCanCode/bubblegate/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/bubblegate/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/bubblegate/internal/providers/browser"
	"github.com/GriffinCanCode/bubblegate/internal/providers/storage"
	"github.com/GriffinCanCode/bubblegate/internal/shared/types"
)

// Options replaces default collaborators; zero values select the production ones
type Options struct {
	Store   storage.Store
	Prober  connectivity.Prober
	Factory surface.Factory
	Opener  surface.ExternalOpener
	Fetcher remoteconfig.Fetcher
}

// Server wires the phase controller, the display manager and the control API
type Server struct {
	cfg     *config.Config
	logger  *logging.Logger
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer

	store      storage.Store
	state      *storage.State
	controller *phase.Controller
	monitor    *connectivity.Monitor
	display    *app.Manager

	router *gin.Engine
	http   *http.Server

	closeOnce sync.Once
}

// NewServer creates a server from configuration
func NewServer(cfg *config.Config, logger *logging.Logger, opts Options) (*Server, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	logger.Info("initializing bubblegate",
		zap.String("addr", net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)),
		zap.String("config_url", cfg.Endpoint.ConfigURL),
		zap.String("store", cfg.Store.Path))

	metrics := monitoring.NewMetrics()
	tracer := tracing.New("bubblegate", logger.Component("tracing"))

	store := opts.Store
	if store == nil {
		var err error
		store, err = storage.Open(cfg.Store.Path)
		if err != nil {
			tracer.Close()
			return nil, fmt.Errorf("open store: %w", err)
		}
	}
	state := storage.NewState(store)

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = remoteconfig.New(nil, cfg.Endpoint, logger.Component("remoteconfig")).
			WithMetrics(metrics).
			WithTracer(tracer)
	}
	controller := phase.New(fetcher, state, logger.Component("phase"), phase.OptionsFromConfig(cfg)).
		WithMetrics(metrics)

	prober := opts.Prober
	if prober == nil {
		prober = connectivity.NewDialProber(cfg.Connectivity.ProbeAddress, cfg.Connectivity.ProbeTimeout)
	}
	monitor := connectivity.NewMonitor(prober, cfg.Connectivity.Interval, logger.Component("connectivity")).
		WithMetrics(metrics)

	factory := opts.Factory
	if factory == nil {
		factory = browser.New(nil, logger.Component("browser"), browser.Options{
			UserAgent:    cfg.Browsing.UserAgent,
			MaxRedirects: cfg.Browsing.SurfaceMaxRedirects,
		})
	}
	display := app.NewManager(controller, factory, opts.Opener, state, logger.Component("session"), session.Options{
		RedirectLimit: cfg.Browsing.RedirectLimit,
		Bounds: types.Rect{Size: types.Size{
			Width:  cfg.Browsing.ViewportWidth,
			Height: cfg.Browsing.ViewportHeight,
		}},
	}).WithMetrics(metrics)

	s := &Server{
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics,
		tracer:     tracer,
		store:      store,
		state:      state,
		controller: controller,
		monitor:    monitor,
		display:    display,
	}
	s.router = s.routes()
	s.http = &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	if !s.cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(s.tracer))
	router.Use(monitoring.Middleware(s.metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if s.cfg.RateLimit.Enabled {
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = s.cfg.RateLimit.RequestsPerSecond
		rl.Burst = s.cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	apihttp.NewHandlers(s.controller, s.display, s.monitor, s.logger.Component("api")).Register(router)
	router.GET("/stream", ws.NewHandler(s.controller, s.logger.Component("ws")).HandleConnection)
	router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	return router
}

// Router returns the HTTP handler of the control API
func (s *Server) Router() http.Handler {
	return s.router
}

// Controller returns the phase controller
func (s *Server) Controller() *phase.Controller {
	return s.controller
}

// Run starts every component and serves the control API until ctx is done
// or the listener fails. Components are stopped before Run returns.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		if err := s.controller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("phase controller stopped", zap.Error(err))
		}
	}()
	go func() {
		defer wg.Done()
		if err := s.display.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("display manager stopped", zap.Error(err))
		}
	}()
	s.monitor.Start(ctx)
	go func() {
		defer wg.Done()
		s.display.ForwardConnectivity(ctx, s.monitor.Changes())
	}()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("control API listening", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-errCh:
	}

	shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer stop()
	if serr := s.http.Shutdown(shutdownCtx); serr != nil {
		s.logger.Warn("control API shutdown", zap.Error(serr))
	}

	cancel()
	s.monitor.Stop()
	wg.Wait()
	return err
}

// Close releases the store and flushes the tracer and logger
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.tracer.Close()
		err = s.store.Close()
		_ = s.logger.Sync()
	})
	return err
}
