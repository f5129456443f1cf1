package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/bubblegate/internal/domain/phase"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu      sync.Mutex
	updates chan phase.Update
	posted  []phase.Event
}

func (f *fakeSource) Current() phase.Phase { return phase.Phase{Kind: phase.Initializing} }

func (f *fakeSource) Subscribe() (<-chan phase.Update, func()) { return f.updates, func() {} }

func (f *fakeSource) Post(ctx context.Context, e phase.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posted = append(f.posted, e)
	return nil
}

func (f *fakeSource) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.posted)
}

// frame mirrors Message with plain strings for decoding
type frame struct {
	Type  string `json:"type"`
	Phase *struct {
		Kind string `json:"kind"`
		URL  string `json:"url"`
	} `json:"phase"`
	Signal string `json:"signal"`
}

func dial(t *testing.T, source *fakeSource) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/stream", NewHandler(source, nil).HandleConnection)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/stream", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var f frame
	require.NoError(t, sonic.Unmarshal(data, &f))
	return f
}

func TestStreamSendsCurrentThenUpdates(t *testing.T) {
	source := &fakeSource{updates: make(chan phase.Update, 4)}
	conn := dial(t, source)

	first := read(t, conn)
	assert.Equal(t, "phase", first.Type)
	require.NotNil(t, first.Phase)
	assert.Equal(t, "Initializing", first.Phase.Kind)

	source.updates <- phase.Update{Phase: phase.Web("https://a.example/")}
	next := read(t, conn)
	assert.Equal(t, "phase", next.Type)
	assert.Equal(t, "WebDisplay", next.Phase.Kind)
	assert.Equal(t, "https://a.example/", next.Phase.URL)

	source.updates <- phase.Update{Phase: phase.Web("https://a.example/"), Signal: phase.SignalPermissionPrompt}
	sig := read(t, conn)
	assert.Equal(t, "signal", sig.Type)
	assert.Equal(t, "permission_prompt", sig.Signal)
}

func TestStreamClientMessages(t *testing.T) {
	source := &fakeSource{updates: make(chan phase.Update)}
	conn := dial(t, source)
	read(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	assert.Equal(t, "pong", read(t, conn).Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"retry"}`)))
	assert.Eventually(t, func() bool { return source.count() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"dance"}`)))
	assert.Equal(t, "error", read(t, conn).Type)
}

func TestStreamEndsWhenControllerStops(t *testing.T) {
	source := &fakeSource{updates: make(chan phase.Update)}
	conn := dial(t, source)
	read(t, conn)

	close(source.updates)
	assert.Equal(t, "closed", read(t, conn).Type)
}
