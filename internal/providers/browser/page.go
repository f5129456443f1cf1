package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/GriffinCanCode/bubblegate/internal/domain/surface"
	"github.com/GriffinCanCode/bubblegate/internal/shared/id"
	"github.com/GriffinCanCode/bubblegate/internal/shared/types"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// NavigationError is reported for loads that reached no page
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("load %s: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}

// Page is one headless browsing context
type Page struct {
	id       id.ContextID
	provider *Provider
	delegate surface.Delegate
	opener   surface.Context
	bounds   types.Rect
	edgeBack bool

	root   context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	gen     uint64
	stop    context.CancelFunc
	doc     Document
	history []string
	index   int
	closed  bool
}

// navigation is the per-load state carried in the request context
type navigation struct {
	ctx  context.Context
	page *Page
	gen  uint64
}

func newPage(p *Provider, opts surface.Options) *Page {
	root, cancel := context.WithCancel(context.Background())
	return &Page{
		id:       id.NewContextID(),
		provider: p,
		delegate: opts.Delegate,
		opener:   opts.Opener,
		bounds:   opts.Bounds,
		edgeBack: opts.EdgeBackGesture,
		root:     root,
		cancel:   cancel,
		index:    -1,
	}
}

func (p *Page) ID() id.ContextID { return p.id }

// URL returns the last committed URL
func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.URL
}

// Document returns what the page currently shows
func (p *Page) Document() Document {
	p.mu.Lock()
	defer p.mu.Unlock()
	doc := p.doc
	doc.Links = append([]string(nil), p.doc.Links...)
	return doc
}

// Load starts a programmatic navigation
func (p *Page) Load(rawURL string) {
	p.start(rawURL, surface.KindOther, true)
}

// Activate follows a link the way a tap would. target "_blank" asks the
// delegate for a new window instead.
func (p *Page) Activate(href, target string) {
	abs := p.resolve(href)
	if abs == "" {
		return
	}
	if target == "_blank" {
		go func() {
			p.delegate.NewWindowRequested(p.root, p, surface.WindowRequest{URL: abs, Kind: surface.KindLinkActivated})
		}()
		return
	}
	p.start(abs, surface.KindLinkActivated, true)
}

// SwipeBack performs the edge back gesture
func (p *Page) SwipeBack() {
	go p.delegate.BackGesture(p.root, p)
}

func (p *Page) StopLoading() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		p.stop()
		p.stop = nil
	}
}

func (p *Page) GoBack() {
	p.mu.Lock()
	if p.index <= 0 {
		p.mu.Unlock()
		return
	}
	p.index--
	target := p.history[p.index]
	p.mu.Unlock()

	p.start(target, surface.KindBackForward, false)
}

func (p *Page) CanGoBack() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.index > 0
}

func (p *Page) Cookies() surface.CookieStore { return p.provider.jar }

func (p *Page) Bounds() types.Rect { return p.bounds }

// Opener returns the context that opened this page, nil for a primary
func (p *Page) Opener() surface.Context { return p.opener }

// EdgeBackGesture reports whether the edge swipe is enabled
func (p *Page) EdgeBackGesture() bool { return p.edgeBack }

func (p *Page) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.gen++
	p.mu.Unlock()

	p.cancel()
	p.provider.release(p)
}

func (p *Page) current(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed && p.gen == gen
}

// start supersedes any load in flight and fetches rawURL in the background
func (p *Page) start(rawURL string, kind surface.NavigationKind, push bool) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	if p.stop != nil {
		p.stop()
	}
	p.gen++
	gen := p.gen
	ctx, stop := context.WithCancel(p.root)
	p.stop = stop
	p.mu.Unlock()

	go p.navigate(ctx, gen, rawURL, kind, push)
}

func (p *Page) navigate(ctx context.Context, gen uint64, rawURL string, kind surface.NavigationKind, push bool) {
	req := surface.NavigationRequest{URL: rawURL, Kind: kind, MainFrame: true}
	if p.delegate.DecidePolicy(ctx, p, req) == surface.PolicyCancel {
		return
	}
	if !p.current(gen) {
		return
	}

	target, err := url.Parse(rawURL)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") {
		if err == nil && target.Scheme == "about" {
			p.commit(gen, Document{URL: rawURL}, push)
			p.delegate.NavigationFinished(ctx, p, rawURL)
			return
		}
		p.fail(ctx, gen, &NavigationError{URL: rawURL, Err: fmt.Errorf("unsupported url")})
		return
	}

	nav := &navigation{page: p, gen: gen}
	nav.ctx = context.WithValue(ctx, pageKey{}, nav)

	httpReq, err := p.provider.http.Request(nav.ctx)
	if err != nil {
		p.fail(ctx, gen, &NavigationError{URL: rawURL, Err: err})
		return
	}
	httpReq.SetHeader("User-Agent", p.provider.opts.UserAgent)
	httpReq.SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	httpReq.SetHeader("Accept-Encoding", acceptEncoding)
	if cookie := p.provider.jar.header(target); cookie != "" {
		httpReq.SetHeader("Cookie", cookie)
	}
	if referer := p.URL(); referer != "" && kind == surface.KindLinkActivated {
		httpReq.SetHeader("Referer", referer)
	}

	resp, err := p.provider.http.Execute(func() (*resty.Response, error) {
		return httpReq.Get(rawURL)
	})
	if err != nil {
		switch {
		case errors.Is(err, surface.ErrTooManyRedirects):
			p.fail(ctx, gen, surface.ErrTooManyRedirects)
		case errors.Is(err, surface.ErrCancelled), ctx.Err() != nil:
			p.fail(ctx, gen, surface.ErrCancelled)
		default:
			p.fail(ctx, gen, &NavigationError{URL: rawURL, Err: err})
		}
		return
	}

	final := target
	if raw := resp.RawResponse; raw != nil && raw.Request != nil {
		final = raw.Request.URL
		p.provider.jar.capture(final, raw)
	}

	body, err := decodeBody(resp.Header().Get("Content-Encoding"), resp.Body())
	if err != nil {
		p.fail(ctx, gen, &NavigationError{URL: final.String(), Err: err})
		return
	}
	doc := Document{
		URL:         final.String(),
		Status:      resp.StatusCode(),
		ContentType: contentType(resp.Header().Get("Content-Type"), body),
	}
	if isHTML(doc.ContentType) {
		parseDocument(&doc, body, final)
	}

	if !p.commit(gen, doc, push) {
		return
	}
	p.provider.logger.Debug("page committed",
		zap.String("context_id", p.id.String()),
		zap.String("url", doc.URL),
		zap.Int("status", doc.Status))
	p.delegate.NavigationFinished(ctx, p, doc.URL)
}

// commit makes doc current unless the load was superseded
func (p *Page) commit(gen uint64, doc Document, push bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.gen != gen {
		return false
	}

	p.doc = doc
	p.stop = nil
	if push {
		p.history = append(p.history[:p.index+1], doc.URL)
		p.index = len(p.history) - 1
	} else if p.index >= 0 {
		p.history[p.index] = doc.URL
	}
	return true
}

// fail reports err unless the load was superseded or the page closed
func (p *Page) fail(ctx context.Context, gen uint64, err error) {
	if !p.current(gen) {
		return
	}
	p.mu.Lock()
	p.stop = nil
	p.mu.Unlock()
	p.delegate.NavigationFailed(ctx, p, err)
}

func (p *Page) resolve(href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	base, err := url.Parse(p.URL())
	if err != nil || base.Scheme == "" {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}
