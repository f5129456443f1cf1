// Package surfacetest provides recording in-memory browsing surfaces for tests.
package surfacetest

import (
	"context"
	"errors"
	"sync"

	"github.com/GriffinCanCode/bubblegate/internal/domain/surface"
	"github.com/GriffinCanCode/bubblegate/internal/shared/id"
	"github.com/GriffinCanCode/bubblegate/internal/shared/types"
)

// ErrUnavailable is returned by a CookieJar with Fail set
var ErrUnavailable = errors.New("cookie store unavailable")

// CookieJar is an in-memory surface.CookieStore
type CookieJar struct {
	mu      sync.Mutex
	cookies types.CookieMap
	Fail    bool
}

// NewCookieJar creates an empty jar
func NewCookieJar() *CookieJar {
	return &CookieJar{cookies: make(types.CookieMap)}
}

func (j *CookieJar) AllCookies(ctx context.Context) ([]types.Cookie, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Fail {
		return nil, ErrUnavailable
	}
	return j.cookies.List(), nil
}

func (j *CookieJar) SetCookie(ctx context.Context, c types.Cookie) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Fail {
		return ErrUnavailable
	}
	j.cookies.Put(c)
	return nil
}

// Context is a recording surface.Context. Nothing is loaded; tests drive the
// delegate by hand.
type Context struct {
	mu        sync.Mutex
	id        id.ContextID
	url       string
	loads     []string
	stops     int
	backs     int
	canGoBack bool
	closed    bool
	opts      surface.Options
	jar       *CookieJar
}

// NewContext creates a standalone fake context
func NewContext(opts surface.Options) *Context {
	return &Context{
		id:   id.NewContextID(),
		opts: opts,
		jar:  NewCookieJar(),
	}
}

func (c *Context) ID() id.ContextID { return c.id }

func (c *Context) URL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.url
}

func (c *Context) Load(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loads = append(c.loads, url)
}

func (c *Context) StopLoading() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stops++
}

func (c *Context) GoBack() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backs++
}

func (c *Context) CanGoBack() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canGoBack
}

func (c *Context) Cookies() surface.CookieStore { return c.jar }

func (c *Context) Bounds() types.Rect { return c.opts.Bounds }

func (c *Context) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// Commit sets the committed URL
func (c *Context) Commit(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.url = url
}

// SetCanGoBack sets the history answer
func (c *Context) SetCanGoBack(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.canGoBack = v
}

// Loads returns every URL passed to Load
func (c *Context) Loads() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.loads...)
}

// Stops returns the number of StopLoading calls
func (c *Context) Stops() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stops
}

// Backs returns the number of GoBack calls
func (c *Context) Backs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backs
}

// Closed reports whether Close was called
func (c *Context) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Options returns the options the context was created with
func (c *Context) Options() surface.Options { return c.opts }

// Jar returns the context's cookie jar
func (c *Context) Jar() *CookieJar { return c.jar }

// Factory hands out fake contexts and remembers them in creation order
type Factory struct {
	mu       sync.Mutex
	contexts []*Context
	Err      error
	// Jar, when set, is shared by every created context
	Jar *CookieJar
}

func (f *Factory) NewContext(ctx context.Context, opts surface.Options) (surface.Context, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	c := NewContext(opts)
	if f.Jar != nil {
		c.jar = f.Jar
	}
	f.contexts = append(f.contexts, c)
	return c, nil
}

// Contexts returns every context created so far
func (f *Factory) Contexts() []*Context {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Context(nil), f.contexts...)
}

// Last returns the most recently created context
func (f *Factory) Last() *Context {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.contexts) == 0 {
		return nil
	}
	return f.contexts[len(f.contexts)-1]
}

// Opener records URLs handed to the platform
type Opener struct {
	mu   sync.Mutex
	urls []string
}

func (o *Opener) Open(ctx context.Context, url string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.urls = append(o.urls, url)
	return nil
}

// URLs returns the opened URLs
func (o *Opener) URLs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.urls...)
}
