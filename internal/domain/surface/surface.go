package surface

import (
	"context"
	"errors"

	"github.com/GriffinCanCode/bubblegate/internal/shared/id"
	"github.com/GriffinCanCode/bubblegate/internal/shared/types"
)

var (
	// ErrTooManyRedirects is reported by a surface that gave up following a redirect chain
	ErrTooManyRedirects = errors.New("too many redirects")
	// ErrCancelled is reported when a load is superseded or stopped
	ErrCancelled = errors.New("navigation cancelled")
)

// NavigationKind describes what started a navigation
type NavigationKind int

const (
	KindOther NavigationKind = iota
	KindLinkActivated
	KindFormSubmitted
	KindBackForward
	KindReload
	KindFormResubmitted
)

// String returns the string representation of the kind
func (k NavigationKind) String() string {
	switch k {
	case KindLinkActivated:
		return "link"
	case KindFormSubmitted:
		return "form"
	case KindBackForward:
		return "back_forward"
	case KindReload:
		return "reload"
	case KindFormResubmitted:
		return "form_resubmit"
	default:
		return "other"
	}
}

// UserInitiated reports whether the kind starts a fresh top-level navigation
func (k NavigationKind) UserInitiated() bool {
	return k == KindLinkActivated || k == KindFormSubmitted || k == KindBackForward
}

// Policy is a delegate's answer to a navigation request
type Policy int

const (
	PolicyAllow Policy = iota
	PolicyCancel
)

// NavigationRequest is a pending navigation awaiting a policy decision
type NavigationRequest struct {
	URL       string
	Kind      NavigationKind
	MainFrame bool
}

// WindowRequest asks for a new window, usually from window.open or target=_blank
type WindowRequest struct {
	URL  string
	Kind NavigationKind
}

// Delegate receives navigation callbacks from a browsing context.
// Callbacks may arrive from any goroutine.
type Delegate interface {
	DecidePolicy(ctx context.Context, c Context, req NavigationRequest) Policy
	// ServerRedirect reports a redirect hop from one URL to the next before it is requested
	ServerRedirect(ctx context.Context, c Context, from, to string)
	NavigationFinished(ctx context.Context, c Context, url string)
	NavigationFailed(ctx context.Context, c Context, err error)
	// NewWindowRequested returns the context that hosts the window, or nil to refuse it
	NewWindowRequested(ctx context.Context, opener Context, req WindowRequest) Context
	BackGesture(ctx context.Context, c Context)
}

// CookieStore is the asynchronous-backed cookie jar of a browsing context
type CookieStore interface {
	AllCookies(ctx context.Context) ([]types.Cookie, error)
	SetCookie(ctx context.Context, c types.Cookie) error
}

// Context is one browsing context. Load, StopLoading and GoBack return
// immediately; outcomes are reported through the Delegate.
type Context interface {
	ID() id.ContextID
	// URL returns the last committed URL
	URL() string
	Load(url string)
	StopLoading()
	GoBack()
	CanGoBack() bool
	Cookies() CookieStore
	Bounds() types.Rect
	Close()
}

// Options configures a new browsing context
type Options struct {
	Delegate Delegate
	// Opener is the context that requested this one, nil for a primary
	Opener          Context
	Bounds          types.Rect
	EdgeBackGesture bool
}

// Factory creates browsing contexts
type Factory interface {
	NewContext(ctx context.Context, opts Options) (Context, error)
}

// ExternalOpener hands non-web URLs to the platform
type ExternalOpener interface {
	Open(ctx context.Context, url string) error
}

// ExternalOpenerFunc adapts a function to ExternalOpener
type ExternalOpenerFunc func(ctx context.Context, url string) error

// Open calls f(ctx, url)
func (f ExternalOpenerFunc) Open(ctx context.Context, url string) error {
	return f(ctx, url)
}
