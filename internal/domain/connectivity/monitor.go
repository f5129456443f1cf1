package connectivity

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/GriffinCanCode/bubblegate/internal/infrastructure/monitoring"
	"go.uber.org/zap"
)

// State is the coarse network reachability
type State int

const (
	Unknown State = iota
	Satisfied
	Unsatisfied
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case Satisfied:
		return "satisfied"
	case Unsatisfied:
		return "unsatisfied"
	default:
		return "unknown"
	}
}

// Prober answers whether the network is currently reachable
type Prober interface {
	Probe(ctx context.Context) State
}

// ProberFunc adapts a function to Prober
type ProberFunc func(ctx context.Context) State

// Probe calls f(ctx)
func (f ProberFunc) Probe(ctx context.Context) State { return f(ctx) }

// DialProber reports Satisfied when a TCP connection to Address succeeds
type DialProber struct {
	Address string
	Timeout time.Duration
	dialer  net.Dialer
}

// NewDialProber creates a prober for host:port
func NewDialProber(address string, timeout time.Duration) *DialProber {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &DialProber{Address: address, Timeout: timeout}
}

func (p *DialProber) Probe(ctx context.Context) State {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	conn, err := p.dialer.DialContext(ctx, "tcp", p.Address)
	if err != nil {
		return Unsatisfied
	}
	_ = conn.Close()
	return Satisfied
}

// Monitor polls a Prober and publishes each genuine state transition once
type Monitor struct {
	prober   Prober
	interval time.Duration
	logger   *zap.Logger
	metrics  *monitoring.Metrics

	changes chan State

	mu      sync.RWMutex
	current State

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewMonitor creates a monitor; Start begins polling
func NewMonitor(prober Prober, interval time.Duration, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Monitor{
		prober:   prober,
		interval: interval,
		logger:   logger,
		changes:  make(chan State, 1),
		done:     make(chan struct{}),
	}
}

// WithMetrics attaches a metrics collector
func (m *Monitor) WithMetrics(metrics *monitoring.Metrics) *Monitor {
	m.metrics = metrics
	return m
}

// Changes delivers one value per transition. It is closed after Stop.
func (m *Monitor) Changes() <-chan State {
	return m.changes
}

// Current returns the last observed state
func (m *Monitor) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Start probes immediately and then on every interval until ctx ends or Stop is called
func (m *Monitor) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		ctx, m.cancel = context.WithCancel(ctx)
		go m.run(ctx)
	})
}

// Stop ends polling and waits for the polling goroutine to exit
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		started := true
		m.startOnce.Do(func() {
			started = false
			close(m.changes)
			close(m.done)
		})
		if started {
			m.cancel()
			<-m.done
		}
	})
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)
	defer close(m.changes)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.observe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.observe(ctx)
		}
	}
}

func (m *Monitor) observe(ctx context.Context) {
	state := m.prober.Probe(ctx)
	if ctx.Err() != nil || state == Unknown {
		return
	}

	m.mu.Lock()
	prev := m.current
	m.current = state
	m.mu.Unlock()

	if prev == state {
		return
	}

	m.logger.Info("connectivity changed",
		zap.Stringer("from", prev),
		zap.Stringer("to", state))
	if m.metrics != nil {
		m.metrics.RecordConnectivityChange(state.String())
	}

	select {
	case m.changes <- state:
	case <-ctx.Done():
	}
}
