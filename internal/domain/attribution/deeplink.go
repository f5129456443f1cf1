package attribution

import (
	"net/url"
	"strings"
)

// DeepLink extracts the target URL of a notification payload.
// The url key is read at the top level first, then under a nested data object.
func DeepLink(notification map[string]any) (string, bool) {
	if u, ok := linkValue(notification["url"]); ok {
		return u, true
	}
	if data, ok := notification["data"].(map[string]any); ok {
		if u, ok := linkValue(data["url"]); ok {
			return u, true
		}
	}
	return "", false
}

func linkValue(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" {
		return "", false
	}
	return s, true
}
