package remoteconfig

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GriffinCanCode/bubblegate/internal/domain/attribution"
	"github.com/GriffinCanCode/bubblegate/internal/infrastructure/config"
	"github.com/GriffinCanCode/bubblegate/internal/infrastructure/resilience"
	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolver(t *testing.T, handler http.HandlerFunc) (*Resolver, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	endpoint := config.Default().Endpoint
	endpoint.ConfigURL = srv.URL
	endpoint.AttributionURL = srv.URL
	endpoint.AppID = "123456"
	endpoint.DevKey = "dev"
	endpoint.FetchTimeout = 2 * time.Second
	return New(nil, endpoint, nil), &hits
}

func TestFetchSuccess(t *testing.T) {
	var body map[string]any
	r, hits := newResolver(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "/config", req.URL.Path)
		data, _ := io.ReadAll(req.Body)
		_ = sonic.Unmarshal(data, &body)
		_, _ = w.Write([]byte(`{"ok":true,"url":"https://dest.example/x","expires":1893456000}`))
	})

	cfg, err := r.Fetch(context.Background(), Request{
		Attribution: attribution.FromMap(map[string]any{"af_status": "Non-organic", "campaign": "c1"}),
		DeviceID:    "dev-1",
		BundleID:    "com.example",
		OS:          "iOS",
		StoreID:     r.StoreID(),
		Locale:      "en",
		PushToken:   "tok",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://dest.example/x", cfg.URL)
	assert.Equal(t, time.Unix(1893456000, 0).UTC(), cfg.ExpiresAt)
	assert.False(t, cfg.FetchedAt.IsZero())
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))

	assert.Equal(t, "Non-organic", body["af_status"])
	assert.Equal(t, "c1", body["campaign"])
	assert.Equal(t, "dev-1", body["af_id"])
	assert.Equal(t, "id123456", body["store_id"])
	assert.Equal(t, "tok", body["push_token"])
	assert.Contains(t, body, "firebase_project_id")
}

func TestFetchExpiresAsString(t *testing.T) {
	r, _ := newResolver(t, func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true,"url":"https://dest.example","expires":"1893456000"}`))
	})
	cfg, err := r.Fetch(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, int64(1893456000), cfg.ExpiresAt.Unix())
}

func TestFetchFailureKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   Kind
	}{
		{"server error", http.StatusInternalServerError, `{"ok":true,"url":"https://x.example"}`, KindStatus},
		{"not found", http.StatusNotFound, ``, KindStatus},
		{"garbage", http.StatusOK, `not json`, KindMalformed},
		{"missing url", http.StatusOK, `{"ok":true}`, KindMalformed},
		{"relative url", http.StatusOK, `{"ok":true,"url":"/x","expires":1893456000}`, KindMalformed},
		{"missing expires", http.StatusOK, `{"ok":true,"url":"https://x.example"}`, KindMalformed},
		{"unparsable expires", http.StatusOK, `{"ok":true,"url":"https://x.example","expires":"soon"}`, KindMalformed},
		{"zero expires", http.StatusOK, `{"ok":true,"url":"https://x.example","expires":0}`, KindMalformed},
		{"declined", http.StatusOK, `{"ok":false,"url":"https://x.example"}`, KindDeclined},
		{"ok missing", http.StatusOK, `{"url":"https://x.example"}`, KindDeclined},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, hits := newResolver(t, func(w http.ResponseWriter, req *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			cfg, err := r.Fetch(context.Background(), Request{})
			assert.Nil(t, cfg)
			assert.True(t, IsKind(err, tt.kind), "got %v", err)
			assert.Equal(t, int32(1), atomic.LoadInt32(hits), "no retry")
		})
	}
}

func TestFetchTimeoutIsNetwork(t *testing.T) {
	release := make(chan struct{})
	r, _ := newResolver(t, func(w http.ResponseWriter, req *http.Request) {
		select {
		case <-release:
		case <-req.Context().Done():
		}
	})
	defer close(release)
	r.http.SetTimeout(50 * time.Millisecond)

	_, err := r.Fetch(context.Background(), Request{})
	assert.True(t, IsKind(err, KindNetwork), "got %v", err)
}

func TestFetchUnreachableIsNetwork(t *testing.T) {
	endpoint := config.Default().Endpoint
	endpoint.ConfigURL = "http://127.0.0.1:1"
	r := New(nil, endpoint, nil)

	_, err := r.Fetch(context.Background(), Request{})
	assert.True(t, IsKind(err, KindNetwork), "got %v", err)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe.Error(), "fetch config: network")
}

func TestFetchSendsWhileBreakerOpen(t *testing.T) {
	r, hits := newResolver(t, func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true,"url":"https://dest.example","expires":1893456000}`))
	})
	for i := 0; i < 5; i++ {
		_ = r.http.Breaker.Do(func() error { return errors.New("unreachable") })
	}
	require.Equal(t, resilience.StateOpen, r.http.BreakerState())

	cfg, err := r.Fetch(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "https://dest.example", cfg.URL)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))

	_, err = r.FetchOrganicAttribution(context.Background(), "d")
	assert.True(t, IsKind(err, KindNetwork), "got %v", err)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestFetchOrganicAttribution(t *testing.T) {
	r, _ := newResolver(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, http.MethodGet, req.Method)
		assert.Equal(t, "/install_data/v4.0/id123456", req.URL.Path)
		assert.Equal(t, "dev", req.URL.Query().Get("devkey"))
		assert.Equal(t, "device-9", req.URL.Query().Get("device_id"))
		_, _ = w.Write([]byte(`{"af_status":"Non-organic","media_source":"ads","is_first_launch":true}`))
	})

	p, err := r.FetchOrganicAttribution(context.Background(), "device-9")
	require.NoError(t, err)
	assert.Equal(t, "Non-organic", p.Status)
	assert.Equal(t, "ads", p.MediaSource)
	assert.True(t, p.FirstLaunch())
}

func TestFetchOrganicAttributionStatus(t *testing.T) {
	r, _ := newResolver(t, func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	_, err := r.FetchOrganicAttribution(context.Background(), "d")
	assert.True(t, IsKind(err, KindStatus))
}

func TestParseExpires(t *testing.T) {
	tests := []struct {
		in any
		ok bool
	}{
		{1893456000.0, true},
		{"1893456000", true},
		{" 1893456000.5 ", true},
		{"soon", false},
		{nil, false},
		{0.0, false},
		{true, false},
	}
	for _, tt := range tests {
		_, ok := parseExpires(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
	}
}
