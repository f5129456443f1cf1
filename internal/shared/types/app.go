package types

import "time"

// AppMode is the persisted display mode that survives restarts
type AppMode string

const (
	ModeUnset      AppMode = ""
	ModeWebDisplay AppMode = "WebDisplay"
	ModeFallback   AppMode = "Fallback"
)

// RemoteConfig is the last successfully fetched remote destination
type RemoteConfig struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Expired reports whether the advisory expiry has passed.
// Callers fall back to an expired config anyway; presence is what counts.
func (c RemoteConfig) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// Point represents a position on screen
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Size represents dimensions on screen
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect represents the bounds a browsing context is attached to
type Rect struct {
	Origin Point `json:"origin"`
	Size   Size  `json:"size"`
}
