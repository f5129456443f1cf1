package browser

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/GriffinCanCode/bubblegate/internal/domain/surface"
	"github.com/GriffinCanCode/bubblegate/internal/providers/http/client"
	"github.com/GriffinCanCode/bubblegate/internal/shared/id"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Options configures the headless surface
type Options struct {
	UserAgent    string
	MaxRedirects int
	Timeout      time.Duration
}

// DefaultOptions returns options resembling a mobile browser
func DefaultOptions() Options {
	return Options{
		UserAgent:    "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148",
		MaxRedirects: 100,
		Timeout:      30 * time.Second,
	}
}

// Provider is a headless surface.Factory that loads pages over HTTP.
// It follows redirects itself so every hop reaches the page delegate.
type Provider struct {
	http   *client.Client
	jar    *Jar
	opts   Options
	logger *zap.Logger

	mu    sync.Mutex
	pages map[id.ContextID]*Page
}

type pageKey struct{}

// New creates a provider; a nil client gets a dedicated one
func New(httpClient *client.Client, logger *zap.Logger, opts Options) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultOptions()
	if opts.UserAgent == "" {
		opts.UserAgent = defaults.UserAgent
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = defaults.MaxRedirects
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if httpClient == nil {
		httpClient = client.NewClient(client.Options{
			Name:         "browser",
			Timeout:      opts.Timeout,
			UserAgent:    opts.UserAgent,
			IsSuccessful: navigationSucceeded,
		})
	}

	p := &Provider{
		http:   httpClient,
		jar:    NewJar(),
		opts:   opts,
		logger: logger,
		pages:  make(map[id.ContextID]*Page),
	}

	// Cookies are handled by the shared Jar so restored cookies apply to every hop
	httpClient.Resty.SetCookieJar(nil)
	httpClient.Resty.SetRedirectPolicy(resty.RedirectPolicyFunc(p.followRedirect))
	return p
}

// Jar returns the shared cookie store
func (p *Provider) Jar() *Jar {
	return p.jar
}

// NewContext creates a page. The page starts blank until Load is called.
func (p *Provider) NewContext(ctx context.Context, opts surface.Options) (surface.Context, error) {
	if opts.Delegate == nil {
		return nil, errors.New("browsing context requires a delegate")
	}
	page := newPage(p, opts)

	p.mu.Lock()
	p.pages[page.id] = page
	p.mu.Unlock()

	p.logger.Debug("page created", zap.String("context_id", page.id.String()))
	return page, nil
}

// Page returns a live page by id
func (p *Provider) Page(pageID id.ContextID) (*Page, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	page, ok := p.pages[pageID]
	return page, ok
}

// Pages returns the number of live pages
func (p *Provider) Pages() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pages)
}

func (p *Provider) release(page *Page) {
	p.mu.Lock()
	delete(p.pages, page.id)
	p.mu.Unlock()
}

// followRedirect runs before each redirect hop of a page load
func (p *Provider) followRedirect(req *http.Request, via []*http.Request) error {
	nav, ok := req.Context().Value(pageKey{}).(*navigation)
	if !ok {
		if len(via) >= p.opts.MaxRedirects {
			return surface.ErrTooManyRedirects
		}
		return nil
	}

	if req.Response != nil {
		p.jar.capture(via[len(via)-1].URL, req.Response)
	}
	if !nav.page.current(nav.gen) {
		return surface.ErrCancelled
	}
	if len(via) > p.opts.MaxRedirects {
		return surface.ErrTooManyRedirects
	}

	nav.page.delegate.ServerRedirect(nav.ctx, nav.page, via[len(via)-1].URL.String(), req.URL.String())
	if nav.ctx.Err() != nil || !nav.page.current(nav.gen) {
		return surface.ErrCancelled
	}

	if cookie := p.jar.header(req.URL); cookie != "" {
		req.Header.Set("Cookie", cookie)
	} else {
		req.Header.Del("Cookie")
	}
	req.Header.Set("Referer", via[len(via)-1].URL.String())
	return nil
}

func navigationSucceeded(err error) bool {
	return err == nil ||
		errors.Is(err, surface.ErrCancelled) ||
		errors.Is(err, surface.ErrTooManyRedirects) ||
		errors.Is(err, context.Canceled)
}
