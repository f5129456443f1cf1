package attribution

import (
	"strconv"
	"strings"
)

// Well-known attribution keys the gate branches on
const (
	KeyStatus        = "af_status"
	KeyMediaSource   = "media_source"
	KeyCampaign      = "campaign"
	KeyIsFirstLaunch = "is_first_launch"

	StatusOrganic    = "Organic"
	StatusNonOrganic = "Non-organic"
)

// Payload is an attribution result: the fields the gate reads plus every other
// key received, kept verbatim so it can be forwarded to the config endpoint.
type Payload struct {
	Status        string
	MediaSource   string
	Campaign      string
	IsFirstLaunch *bool
	Extra         map[string]any
}

// FromMap parses a loosely typed attribution mapping.
// Unknown keys land in Extra; known keys with unexpected types are coerced when possible.
func FromMap(m map[string]any) Payload {
	p := Payload{Extra: make(map[string]any)}
	for k, v := range m {
		switch k {
		case KeyStatus:
			p.Status = stringValue(v)
		case KeyMediaSource:
			p.MediaSource = stringValue(v)
		case KeyCampaign:
			p.Campaign = stringValue(v)
		case KeyIsFirstLaunch:
			if b, ok := boolValue(v); ok {
				p.IsFirstLaunch = &b
			}
		default:
			p.Extra[k] = v
		}
	}
	return p
}

// Empty reports whether the payload carries no attribution data at all
func (p Payload) Empty() bool {
	return p.Status == "" && p.MediaSource == "" && p.Campaign == "" &&
		p.IsFirstLaunch == nil && len(p.Extra) == 0
}

// IsOrganic reports whether the install was not attributed to a paid source
func (p Payload) IsOrganic() bool {
	return strings.EqualFold(p.Status, StatusOrganic)
}

// FirstLaunch reports the is_first_launch flag, false when absent
func (p Payload) FirstLaunch() bool {
	return p.IsFirstLaunch != nil && *p.IsFirstLaunch
}

// Merge overlays other onto p; non-empty fields of other win
func (p Payload) Merge(other Payload) Payload {
	out := Payload{
		Status:        p.Status,
		MediaSource:   p.MediaSource,
		Campaign:      p.Campaign,
		IsFirstLaunch: p.IsFirstLaunch,
		Extra:         make(map[string]any, len(p.Extra)+len(other.Extra)),
	}
	for k, v := range p.Extra {
		out.Extra[k] = v
	}
	for k, v := range other.Extra {
		out.Extra[k] = v
	}
	if other.Status != "" {
		out.Status = other.Status
	}
	if other.MediaSource != "" {
		out.MediaSource = other.MediaSource
	}
	if other.Campaign != "" {
		out.Campaign = other.Campaign
	}
	if other.IsFirstLaunch != nil {
		out.IsFirstLaunch = other.IsFirstLaunch
	}
	return out
}

// Map flattens the payload back into wire form
func (p Payload) Map() map[string]any {
	m := make(map[string]any, len(p.Extra)+4)
	for k, v := range p.Extra {
		m[k] = v
	}
	if p.Status != "" {
		m[KeyStatus] = p.Status
	}
	if p.MediaSource != "" {
		m[KeyMediaSource] = p.MediaSource
	}
	if p.Campaign != "" {
		m[KeyCampaign] = p.Campaign
	}
	if p.IsFirstLaunch != nil {
		m[KeyIsFirstLaunch] = *p.IsFirstLaunch
	}
	return m
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return ""
	}
}

func boolValue(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		return b, err == nil
	case float64:
		return t != 0, true
	case int:
		return t != 0, true
	case int64:
		return t != 0, true
	default:
		return false, false
	}
}
