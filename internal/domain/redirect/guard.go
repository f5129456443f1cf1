package redirect

import "sync"

// DefaultLimit is the number of server redirects tolerated per navigation
const DefaultLimit = 70

// Action tells the caller what to do after a redirect
type Action int

const (
	Proceed Action = iota
	// Stop means loading must stop; no recovery target is available
	Stop
	// Reload means loading must stop and ReloadURL be loaded instead
	Reload
)

// String returns the string representation of the action
func (a Action) String() string {
	switch a {
	case Proceed:
		return "proceed"
	case Stop:
		return "stop"
	case Reload:
		return "reload"
	default:
		return "unknown"
	}
}

// Decision is the outcome of a server redirect
type Decision struct {
	Action    Action
	ReloadURL string
}

// Guard counts server redirects for one browsing context and detects loops.
// A guard is safe for concurrent use.
type Guard struct {
	mu           sync.Mutex
	limit        int
	count        int
	lastValidURL string
	recovered    bool
}

// New creates a guard; a non-positive limit selects DefaultLimit
func New(limit int) *Guard {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Guard{limit: limit}
}

// Begin marks a fresh top-level navigation that is not a redirect.
// The count resets; the last valid URL survives.
func (g *Guard) Begin() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.count = 0
	g.recovered = false
}

// OnServerRedirect records a redirect away from current, the committed URL.
func (g *Guard) OnServerRedirect(current string) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.count++
	if current != "" {
		g.lastValidURL = current
	}
	if g.count <= g.limit {
		return Decision{Action: Proceed}
	}
	return g.overflow()
}

// OnTooManyRedirects handles a surface that aborted the chain on its own
func (g *Guard) OnTooManyRedirects() Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.overflow()
}

func (g *Guard) overflow() Decision {
	if g.lastValidURL == "" || g.recovered {
		return Decision{Action: Stop}
	}
	g.recovered = true
	return Decision{Action: Reload, ReloadURL: g.lastValidURL}
}

// Count returns the redirects seen since the last Begin
func (g *Guard) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count
}

// LastValidURL returns the URL recorded before the most recent redirect
func (g *Guard) LastValidURL() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastValidURL
}

// Limit returns the configured redirect limit
func (g *Guard) Limit() int {
	return g.limit
}
