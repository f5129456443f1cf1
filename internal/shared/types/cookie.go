package types

import (
	"sort"
	"strings"
	"time"
)

// Cookie is the property bag persisted for one (domain, name) pair
type Cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain"`
	Path     string    `json:"path,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HTTPOnly bool      `json:"http_only,omitempty"`
	SameSite string    `json:"same_site,omitempty"`
}

// Expired reports whether the cookie has an expiry in the past.
// Session cookies (zero expiry) never expire here.
func (c Cookie) Expired(now time.Time) bool {
	return !c.Expires.IsZero() && !c.Expires.After(now)
}

// CookieMap groups cookies as domain -> name -> cookie
type CookieMap map[string]map[string]Cookie

// NormalizeDomain lowercases a cookie domain and strips the leading dot
func NormalizeDomain(domain string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), ".")
}

// Put stores a cookie, replacing any earlier cookie with the same domain and name
func (m CookieMap) Put(c Cookie) {
	domain := NormalizeDomain(c.Domain)
	byName, ok := m[domain]
	if !ok {
		byName = make(map[string]Cookie)
		m[domain] = byName
	}
	c.Domain = domain
	byName[c.Name] = c
}

// Get returns the cookie stored for domain and name
func (m CookieMap) Get(domain, name string) (Cookie, bool) {
	c, ok := m[NormalizeDomain(domain)][name]
	return c, ok
}

// Len returns the total number of cookies across all domains
func (m CookieMap) Len() int {
	n := 0
	for _, byName := range m {
		n += len(byName)
	}
	return n
}

// List flattens the map into a slice ordered by domain then name
func (m CookieMap) List() []Cookie {
	out := make([]Cookie, 0, m.Len())
	for _, byName := range m {
		for _, c := range byName {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Domain != out[j].Domain {
			return out[i].Domain < out[j].Domain
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// GroupCookies builds a CookieMap from a flat list; later entries win
func GroupCookies(cookies []Cookie) CookieMap {
	m := make(CookieMap)
	for _, c := range cookies {
		m.Put(c)
	}
	return m
}
