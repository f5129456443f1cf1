package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/bubblegate/internal/domain/surface"
	"github.com/GriffinCanCode/bubblegate/internal/domain/surface/surfacetest"
	"github.com/GriffinCanCode/bubblegate/internal/providers/storage"
	"github.com/GriffinCanCode/bubblegate/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	factory *surfacetest.Factory
	opener  *surfacetest.Opener
	state   *storage.State
	tracker *Tracker
	failed  []error
	mu      sync.Mutex
}

func newFixture(t *testing.T, limit int) *fixture {
	t.Helper()
	f := &fixture{
		factory: &surfacetest.Factory{Jar: surfacetest.NewCookieJar()},
		opener:  &surfacetest.Opener{},
		state:   storage.NewState(storage.NewMemory()),
	}
	f.tracker = NewTracker(f.factory, nil, f.opener, f.state, nil, Options{
		RedirectLimit: limit,
		Bounds:        types.Rect{Size: types.Size{Width: 390, Height: 844}},
		OnNavigationFailed: func(err error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.failed = append(f.failed, err)
		},
	})
	return f
}

func (f *fixture) open(t *testing.T, url string) *surfacetest.Context {
	t.Helper()
	require.NoError(t, f.tracker.Open(context.Background(), url))
	primary := f.factory.Last()
	primary.Commit(url)
	return primary
}

func (f *fixture) popup(t *testing.T, opener surface.Context, url string) *surfacetest.Context {
	t.Helper()
	c := f.tracker.NewWindowRequested(context.Background(), opener, surface.WindowRequest{URL: url})
	require.NotNil(t, c)
	return f.factory.Last()
}

func TestOpenLoadsPrimary(t *testing.T) {
	f := newFixture(t, 0)
	primary := f.open(t, "https://dest.example")

	assert.Equal(t, []string{"https://dest.example"}, primary.Loads())
	assert.Equal(t, f.tracker, primary.Options().Delegate)
	assert.Nil(t, primary.Options().Opener)

	err := f.tracker.Open(context.Background(), "https://again.example")
	assert.ErrorIs(t, err, ErrAlreadyOpen)
}

func TestNavigateRequiresOpen(t *testing.T) {
	f := newFixture(t, 0)
	assert.ErrorIs(t, f.tracker.Navigate(context.Background(), "https://x.example"), ErrNotOpen)

	primary := f.open(t, "https://a.example")
	require.NoError(t, f.tracker.Navigate(context.Background(), "https://b.example"))
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, primary.Loads())
}

func TestDecidePolicy(t *testing.T) {
	f := newFixture(t, 0)
	primary := f.open(t, "https://a.example")
	ctx := context.Background()

	tests := []struct {
		url  string
		want surface.Policy
	}{
		{"https://b.example/page", surface.PolicyAllow},
		{"http://b.example", surface.PolicyAllow},
		{"about:blank", surface.PolicyAllow},
		{"tel:+15551234", surface.PolicyCancel},
		{"mailto:a@b.example", surface.PolicyCancel},
		{"itms-apps://apps.apple.com/app/id1", surface.PolicyCancel},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got := f.tracker.DecidePolicy(ctx, primary, surface.NavigationRequest{URL: tt.url, MainFrame: true})
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, []string{"tel:+15551234", "mailto:a@b.example", "itms-apps://apps.apple.com/app/id1"}, f.opener.URLs())
}

func TestRedirectLoopReloadsLastValidURL(t *testing.T) {
	f := newFixture(t, 70)
	primary := f.open(t, "https://start.example")
	ctx := context.Background()

	for i := 0; i < 70; i++ {
		f.tracker.ServerRedirect(ctx, primary, primary.URL(), "https://loop.example")
	}
	assert.Equal(t, 0, primary.Stops())

	f.tracker.ServerRedirect(ctx, primary, primary.URL(), "https://loop.example")
	assert.Equal(t, 1, primary.Stops())
	assert.Equal(t, []string{"https://start.example", "https://start.example"}, primary.Loads())
	assert.Equal(t, 71, f.tracker.Snapshot().Primary.RedirectCount)

	assert.Empty(t, f.failed)

	// the reload keeps looping: only stop from now on, and say so
	f.tracker.ServerRedirect(ctx, primary, primary.URL(), "https://loop.example")
	assert.Equal(t, 2, primary.Stops())
	assert.Len(t, primary.Loads(), 2)
	require.Len(t, f.failed, 1)
	assert.ErrorIs(t, f.failed[0], surface.ErrTooManyRedirects)
}

func TestRedirectLoopOnFirstLoadReloadsHopOrigin(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	require.NoError(t, f.tracker.Open(ctx, "https://cfg.example/start"))
	primary := f.factory.Last()
	require.Empty(t, primary.URL())

	f.tracker.ServerRedirect(ctx, primary, "https://cfg.example/start", "https://a.example")
	f.tracker.ServerRedirect(ctx, primary, "https://a.example", "https://b.example")
	assert.Equal(t, "https://a.example", f.tracker.Snapshot().Primary.LastValidURL)

	f.tracker.ServerRedirect(ctx, primary, "https://b.example", "https://a.example")
	assert.Equal(t, 1, primary.Stops())
	assert.Equal(t, []string{"https://cfg.example/start", "https://b.example"}, primary.Loads())
	assert.Empty(t, f.failed)

	f.tracker.ServerRedirect(ctx, primary, "https://a.example", "https://b.example")
	assert.Equal(t, 2, primary.Stops())
	require.Len(t, f.failed, 1)
	assert.ErrorIs(t, f.failed[0], surface.ErrTooManyRedirects)
}

func TestRedirectLoopWithoutRecoveryTargetReportsFailure(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	require.NoError(t, f.tracker.Open(ctx, "https://cfg.example/start"))
	primary := f.factory.Last()

	f.tracker.ServerRedirect(ctx, primary, "", "https://a.example")
	f.tracker.ServerRedirect(ctx, primary, "", "https://a.example")
	assert.Equal(t, 1, primary.Stops())
	assert.Len(t, primary.Loads(), 1)
	require.Len(t, f.failed, 1)
	assert.ErrorIs(t, f.failed[0], surface.ErrTooManyRedirects)
}

func TestUserNavigationResetsRedirectCount(t *testing.T) {
	f := newFixture(t, 2)
	primary := f.open(t, "https://start.example")
	ctx := context.Background()

	f.tracker.ServerRedirect(ctx, primary, primary.URL(), "https://a.example")
	f.tracker.ServerRedirect(ctx, primary, primary.URL(), "https://b.example")
	f.tracker.DecidePolicy(ctx, primary, surface.NavigationRequest{
		URL: "https://c.example", Kind: surface.KindLinkActivated, MainFrame: true,
	})
	assert.Equal(t, 0, f.tracker.Snapshot().Primary.RedirectCount)

	// subframe and reload navigations do not
	f.tracker.ServerRedirect(ctx, primary, primary.URL(), "https://d.example")
	f.tracker.DecidePolicy(ctx, primary, surface.NavigationRequest{URL: "https://e.example", Kind: surface.KindLinkActivated})
	f.tracker.DecidePolicy(ctx, primary, surface.NavigationRequest{URL: "https://e.example", Kind: surface.KindReload, MainFrame: true})
	assert.Equal(t, 1, f.tracker.Snapshot().Primary.RedirectCount)
}

func TestSurfaceRedirectAbortRecovers(t *testing.T) {
	f := newFixture(t, 70)
	primary := f.open(t, "https://start.example")
	ctx := context.Background()

	f.tracker.ServerRedirect(ctx, primary, primary.URL(), "https://a.example")
	f.tracker.NavigationFailed(ctx, primary, surface.ErrTooManyRedirects)
	assert.Equal(t, []string{"https://start.example", "https://start.example"}, primary.Loads())
	assert.Empty(t, f.failed)

	// second abort in the same navigation is reported
	f.tracker.NavigationFailed(ctx, primary, surface.ErrTooManyRedirects)
	require.Len(t, f.failed, 1)
	assert.ErrorIs(t, f.failed[0], surface.ErrTooManyRedirects)
}

func TestNavigationFailedForwardsAndIgnoresCancel(t *testing.T) {
	f := newFixture(t, 0)
	primary := f.open(t, "https://start.example")
	ctx := context.Background()

	f.tracker.NavigationFailed(ctx, primary, surface.ErrCancelled)
	assert.Empty(t, f.failed)

	boom := errors.New("dns failure")
	f.tracker.NavigationFailed(ctx, primary, boom)
	assert.Equal(t, []error{boom}, f.failed)
}

func TestPopupsCloseLIFO(t *testing.T) {
	f := newFixture(t, 0)
	primary := f.open(t, "https://start.example")
	ctx := context.Background()

	first := f.popup(t, primary, "https://pop1.example")
	second := f.popup(t, first, "https://pop2.example")

	assert.Equal(t, 2, f.tracker.SecondaryCount())
	assert.Equal(t, []string{"https://pop1.example"}, first.Loads())
	assert.True(t, first.Options().EdgeBackGesture)
	assert.Equal(t, primary.Bounds(), first.Bounds())

	assert.True(t, f.tracker.CloseSecondary(ctx))
	assert.True(t, second.Closed())
	assert.False(t, first.Closed())

	assert.True(t, f.tracker.CloseSecondary(ctx))
	assert.True(t, first.Closed())
	assert.Equal(t, 0, f.tracker.SecondaryCount())

	// nothing left: primary goes back only when it has history
	assert.False(t, f.tracker.CloseSecondary(ctx))
	primary.SetCanGoBack(true)
	assert.True(t, f.tracker.CloseSecondary(ctx))
	assert.Equal(t, 1, primary.Backs())
	assert.False(t, primary.Closed())
}

func TestBackGestureOnPopup(t *testing.T) {
	f := newFixture(t, 0)
	primary := f.open(t, "https://start.example")
	ctx := context.Background()

	p := f.popup(t, primary, "https://pop.example")
	p.SetCanGoBack(true)
	f.tracker.BackGesture(ctx, p)
	assert.Equal(t, 1, p.Backs())
	assert.Equal(t, 1, f.tracker.SecondaryCount())

	p.SetCanGoBack(false)
	f.tracker.BackGesture(ctx, p)
	assert.True(t, p.Closed())
	assert.Equal(t, 0, f.tracker.SecondaryCount())
}

func TestCookiesSurviveRelaunch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	primary := f.open(t, "https://example.com")

	require.NoError(t, primary.Cookies().SetCookie(ctx, types.Cookie{
		Name: "sid", Value: "s3cr3t", Domain: "example.com", Path: "/",
	}))
	require.NoError(t, primary.Cookies().SetCookie(ctx, types.Cookie{
		Name: "old", Value: "x", Domain: "example.com", Expires: time.Now().Add(-time.Hour),
	}))
	f.tracker.ServerRedirect(ctx, primary, primary.URL(), "https://example.com/next")
	require.NoError(t, f.tracker.Close(ctx))
	assert.True(t, primary.Closed())

	// a new launch with an empty surface cookie store
	relaunch := NewTracker(&surfacetest.Factory{}, nil, nil, f.state, nil, Options{})
	require.NoError(t, relaunch.Open(ctx, "https://example.com"))

	snap := relaunch.Snapshot()
	require.True(t, snap.Open)
	stored, err := f.state.Cookies(ctx)
	require.NoError(t, err)
	sid, ok := stored.Get("example.com", "sid")
	require.True(t, ok)
	assert.Equal(t, "s3cr3t", sid.Value)
	_, ok = stored.Get("example.com", "old")
	assert.False(t, ok)
}

func TestRestoreInstallsCookiesBeforeFirstLoad(t *testing.T) {
	ctx := context.Background()
	state := storage.NewState(storage.NewMemory())
	require.NoError(t, state.SaveCookies(ctx, types.GroupCookies([]types.Cookie{
		{Name: "sid", Value: "abc", Domain: "example.com"},
	})))

	factory := &surfacetest.Factory{}
	tracker := NewTracker(factory, nil, nil, state, nil, Options{})
	require.NoError(t, tracker.Open(ctx, "https://example.com"))

	all, err := factory.Last().Cookies().AllCookies(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "abc", all[0].Value)
}

func TestCookieStoreUnavailableDegrades(t *testing.T) {
	ctx := context.Background()
	jar := surfacetest.NewCookieJar()
	jar.Fail = true
	factory := &surfacetest.Factory{Jar: jar}
	state := storage.NewState(storage.NewMemory())
	require.NoError(t, state.SaveCookies(ctx, types.GroupCookies([]types.Cookie{
		{Name: "sid", Value: "abc", Domain: "example.com"},
	})))

	tracker := NewTracker(factory, nil, nil, state, nil, Options{})
	require.NoError(t, tracker.Open(ctx, "https://example.com"))
	assert.Equal(t, []string{"https://example.com"}, factory.Last().Loads())

	assert.ErrorIs(t, tracker.Persist(ctx), ErrCookieStoreUnavailable)
	assert.ErrorIs(t, tracker.Close(ctx), ErrCookieStoreUnavailable)
}

func TestClosedTrackerRefusesWork(t *testing.T) {
	f := newFixture(t, 0)
	primary := f.open(t, "https://start.example")
	ctx := context.Background()

	f.popup(t, primary, "https://pop.example")
	require.NoError(t, f.tracker.Close(ctx))
	require.NoError(t, f.tracker.Close(ctx))

	assert.ErrorIs(t, f.tracker.Open(ctx, "https://x.example"), ErrClosed)
	assert.ErrorIs(t, f.tracker.Navigate(ctx, "https://x.example"), ErrClosed)
	assert.Nil(t, f.tracker.NewWindowRequested(ctx, primary, surface.WindowRequest{URL: "https://y.example"}))
	assert.False(t, f.tracker.Snapshot().Open)
	assert.ErrorIs(t, f.tracker.Persist(ctx), ErrNotOpen)
}
