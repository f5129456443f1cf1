package connectivity

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted replays states, repeating the last one
type scripted struct {
	mu     sync.Mutex
	states []State
}

func (s *scripted) Probe(ctx context.Context) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.states[0]
	if len(s.states) > 1 {
		s.states = s.states[1:]
	}
	return st
}

func collect(t *testing.T, ch <-chan State, n int) []State {
	t.Helper()
	var out []State
	timeout := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case s, ok := <-ch:
			require.True(t, ok, "changes closed early")
			out = append(out, s)
		case <-timeout:
			t.Fatalf("got %v, want %d changes", out, n)
		}
	}
	return out
}

func TestMonitorEmitsOncePerTransition(t *testing.T) {
	prober := &scripted{states: []State{
		Satisfied, Satisfied, Unsatisfied, Unsatisfied, Unknown, Satisfied,
	}}
	m := NewMonitor(prober, time.Millisecond, nil)
	m.Start(context.Background())
	defer m.Stop()

	got := collect(t, m.Changes(), 3)
	assert.Equal(t, []State{Satisfied, Unsatisfied, Satisfied}, got)
	assert.Equal(t, Satisfied, m.Current())
}

func TestMonitorStopClosesChanges(t *testing.T) {
	m := NewMonitor(ProberFunc(func(context.Context) State { return Satisfied }), time.Millisecond, nil)
	m.Start(context.Background())
	collect(t, m.Changes(), 1)

	m.Stop()
	m.Stop()

	_, ok := <-m.Changes()
	assert.False(t, ok)
}

func TestStopWithoutStart(t *testing.T) {
	m := NewMonitor(ProberFunc(func(context.Context) State { return Satisfied }), time.Second, nil)
	m.Stop()
	_, ok := <-m.Changes()
	assert.False(t, ok)
	assert.Equal(t, Unknown, m.Current())
}

func TestDialProber(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c.Close()
		}
	}()

	p := NewDialProber(ln.Addr().String(), time.Second)
	assert.Equal(t, Satisfied, p.Probe(context.Background()))

	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	assert.Equal(t, Unsatisfied, NewDialProber(addr, 200*time.Millisecond).Probe(context.Background()))
}
