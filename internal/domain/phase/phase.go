package phase

import (
	"time"
)

// Kind is one of the four mutually exclusive display phases
type Kind int

const (
	Initializing Kind = iota
	WebDisplay
	Fallback
	Offline
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case Initializing:
		return "Initializing"
	case WebDisplay:
		return "WebDisplay"
	case Fallback:
		return "Fallback"
	case Offline:
		return "Offline"
	default:
		return "Unknown"
	}
}

// MarshalText encodes the kind by name
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Phase is the current display phase; URL is set only for WebDisplay
type Phase struct {
	Kind Kind   `json:"kind"`
	URL  string `json:"url,omitempty"`
}

// Web returns a WebDisplay phase for url
func Web(url string) Phase {
	return Phase{Kind: WebDisplay, URL: url}
}

// String returns the string representation of the phase
func (p Phase) String() string {
	if p.Kind == WebDisplay {
		return "WebDisplay(" + p.URL + ")"
	}
	return p.Kind.String()
}

// Signal is a one-off request to the presentation layer that does not change the phase
type Signal int

const (
	SignalNone Signal = iota
	SignalPermissionPrompt
)

// String returns the string representation of the signal
func (s Signal) String() string {
	switch s {
	case SignalPermissionPrompt:
		return "permission_prompt"
	default:
		return ""
	}
}

// MarshalText encodes the signal by name
func (s Signal) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Update is delivered to subscribers on every transition and signal
type Update struct {
	Phase    Phase     `json:"phase"`
	Previous Phase     `json:"previous"`
	Signal   Signal    `json:"signal,omitempty"`
	At       time.Time `json:"at"`
}

// trigger records what started a resolution
type trigger int

const (
	triggerAttribution trigger = iota
	triggerPushToken
	triggerRetry
	triggerDeepLink
	triggerConnectivity
)

func (t trigger) String() string {
	switch t {
	case triggerAttribution:
		return "attribution"
	case triggerPushToken:
		return "push_token"
	case triggerRetry:
		return "retry"
	case triggerDeepLink:
		return "deep_link"
	case triggerConnectivity:
		return "connectivity"
	default:
		return "unknown"
	}
}

// allowed reports whether from may move to to when started by t.
// Fallback is left only by a push-token resolution; Offline only by a retry.
func allowed(from, to Kind, t trigger) bool {
	switch from {
	case Initializing:
		return to == WebDisplay || to == Fallback
	case WebDisplay:
		switch to {
		case WebDisplay:
			return true
		case Offline:
			return t == triggerConnectivity
		}
	case Offline:
		return (to == WebDisplay || to == Fallback) && t == triggerRetry
	case Fallback:
		return to == WebDisplay && t == triggerPushToken
	}
	return false
}
