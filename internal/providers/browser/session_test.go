package browser_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GriffinCanCode/bubblegate/internal/domain/session"
	"github.com/GriffinCanCode/bubblegate/internal/domain/surface"
	"github.com/GriffinCanCode/bubblegate/internal/providers/browser"
	"github.com/GriffinCanCode/bubblegate/internal/providers/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecoversFromRedirectLoop(t *testing.T) {
	var startHits, loopHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		startHits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<title>start</title>"))
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		n := loopHits.Add(1)
		http.SetCookie(w, &http.Cookie{Name: "hop", Value: strconv.Itoa(int(n)), Path: "/"})
		http.Redirect(w, r, "/loop?n="+strconv.Itoa(int(n)), http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	provider := browser.New(nil, nil, browser.Options{})
	state := storage.NewState(storage.NewMemory())
	failures := make(chan error, 4)
	tracker := session.NewTracker(provider, nil, nil, state, nil, session.Options{
		RedirectLimit:      5,
		OnNavigationFailed: func(err error) { failures <- err },
	})
	ctx := context.Background()
	defer tracker.Close(ctx)

	require.NoError(t, tracker.Open(ctx, srv.URL+"/start"))
	require.Eventually(t, func() bool {
		return tracker.Snapshot().Primary.URL == srv.URL+"/start"
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, tracker.Navigate(ctx, srv.URL+"/loop"))
	require.Eventually(t, func() bool { return startHits.Load() == 2 }, 2*time.Second, 10*time.Millisecond)

	assert.EqualValues(t, 6, loopHits.Load())
	assert.Equal(t, srv.URL+"/start", tracker.Snapshot().Primary.URL)
	assert.Empty(t, failures)

	cookies, err := state.Cookies(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cookies.Len())
}

func TestTrackerReportsLoopOnFirstLoad(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		http.Redirect(w, r, "/loop?n="+strconv.Itoa(int(n)), http.StatusFound)
	}))
	defer srv.Close()

	provider := browser.New(nil, nil, browser.Options{})
	failures := make(chan error, 4)
	tracker := session.NewTracker(provider, nil, nil, storage.NewState(storage.NewMemory()), nil, session.Options{
		RedirectLimit:      5,
		OnNavigationFailed: func(err error) { failures <- err },
	})
	ctx := context.Background()
	defer tracker.Close(ctx)

	require.NoError(t, tracker.Open(ctx, srv.URL+"/loop"))

	select {
	case err := <-failures:
		assert.ErrorIs(t, err, surface.ErrTooManyRedirects)
	case <-time.After(2 * time.Second):
		t.Fatal("redirect loop was not reported")
	}

	// six hits for the first chain, one for the single reload of the last hop origin
	assert.EqualValues(t, 7, hits.Load())
	primary := tracker.Snapshot().Primary
	require.NotNil(t, primary)
	assert.Equal(t, srv.URL+"/loop?n=5", primary.LastValidURL)
	assert.Never(t, func() bool { return len(failures) > 0 }, 200*time.Millisecond, 20*time.Millisecond)
}

func TestTrackerPersistsAcrossProviders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			http.SetCookie(w, &http.Cookie{Name: "sid", Value: "s1", Path: "/", MaxAge: 3600})
			http.Redirect(w, r, "/home", http.StatusFound)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		c, err := r.Cookie("sid")
		if err == nil {
			w.Write([]byte(c.Value))
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	state := storage.NewState(storage.NewMemory())

	first := session.NewTracker(browser.New(nil, nil, browser.Options{}), nil, nil, state, nil, session.Options{})
	require.NoError(t, first.Open(ctx, srv.URL+"/login"))
	require.Eventually(t, func() bool {
		cookies, err := state.Cookies(ctx)
		return err == nil && cookies.Len() == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, first.Close(ctx))

	second := browser.New(nil, nil, browser.Options{})
	tracker := session.NewTracker(second, nil, nil, state, nil, session.Options{})
	defer tracker.Close(ctx)
	require.NoError(t, tracker.Open(ctx, srv.URL+"/home"))

	restored, err := second.Jar().AllCookies(ctx)
	require.NoError(t, err)
	require.Len(t, restored, 1)
	assert.Equal(t, "s1", restored[0].Value)
}
