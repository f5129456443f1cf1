package browser

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/bubblegate/internal/shared/types"
	"golang.org/x/net/publicsuffix"
)

// Jar is the cookie store shared by every page of a Provider
type Jar struct {
	mu      sync.RWMutex
	cookies types.CookieMap
	now     func() time.Time
}

// NewJar creates an empty jar
func NewJar() *Jar {
	return &Jar{cookies: make(types.CookieMap), now: time.Now}
}

// AllCookies returns every unexpired cookie
func (j *Jar) AllCookies(ctx context.Context) ([]types.Cookie, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	j.mu.RLock()
	defer j.mu.RUnlock()

	now := j.now()
	all := j.cookies.List()
	out := all[:0]
	for _, c := range all {
		if !c.Expired(now) {
			out = append(out, c)
		}
	}
	return out, nil
}

// SetCookie stores c, replacing any cookie with the same domain and name
func (j *Jar) SetCookie(ctx context.Context, c types.Cookie) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cookies.Put(c)
	return nil
}

// capture stores the Set-Cookie headers of resp, sent for request URL u
func (j *Jar) capture(u *url.URL, resp *http.Response) {
	if resp == nil {
		return
	}
	host := canonicalHost(u)
	if host == "" {
		return
	}

	now := j.now()
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, hc := range resp.Cookies() {
		domain, ok := cookieDomain(host, hc.Domain)
		if !ok {
			continue
		}
		c := types.Cookie{
			Name:     hc.Name,
			Value:    hc.Value,
			Domain:   domain,
			Path:     cookiePath(u, hc.Path),
			Secure:   hc.Secure,
			HTTPOnly: hc.HttpOnly,
			SameSite: sameSite(hc.SameSite),
		}
		switch {
		case hc.MaxAge < 0:
			c.Expires = now.Add(-time.Second)
		case hc.MaxAge > 0:
			c.Expires = now.Add(time.Duration(hc.MaxAge) * time.Second)
		case !hc.Expires.IsZero():
			c.Expires = hc.Expires.UTC()
		}

		if c.Expired(now) {
			if byName, ok := j.cookies[domain]; ok {
				delete(byName, c.Name)
			}
			continue
		}
		j.cookies.Put(c)
	}
}

// header builds the Cookie header value for a request to u
func (j *Jar) header(u *url.URL) string {
	host := canonicalHost(u)
	if host == "" {
		return ""
	}
	secure := u.Scheme == "https"
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}

	now := j.now()
	j.mu.RLock()
	defer j.mu.RUnlock()

	var pairs []string
	for _, c := range j.cookies.List() {
		if c.Expired(now) || (c.Secure && !secure) {
			continue
		}
		if !domainMatch(host, c.Domain) || !pathMatch(path, c.Path) {
			continue
		}
		pairs = append(pairs, c.Name+"="+c.Value)
	}
	return strings.Join(pairs, "; ")
}

func canonicalHost(u *url.URL) string {
	return strings.ToLower(u.Hostname())
}

// cookieDomain validates a Domain attribute against the request host.
// Cookies for a public suffix are only accepted as host cookies.
func cookieDomain(host, attr string) (string, bool) {
	attr = types.NormalizeDomain(attr)
	if attr == "" {
		return host, true
	}
	if net.ParseIP(host) != nil {
		return host, attr == host
	}
	if suffix, _ := publicsuffix.PublicSuffix(attr); suffix == attr {
		return host, attr == host
	}
	if !domainMatch(host, attr) {
		return "", false
	}
	return attr, true
}

func domainMatch(host, domain string) bool {
	if host == domain {
		return true
	}
	return strings.HasSuffix(host, "."+domain) && net.ParseIP(host) == nil
}

func cookiePath(u *url.URL, attr string) string {
	if strings.HasPrefix(attr, "/") {
		return attr
	}
	dir := u.EscapedPath()
	i := strings.LastIndex(dir, "/")
	if i <= 0 {
		return "/"
	}
	return dir[:i]
}

func pathMatch(reqPath, cookiePath string) bool {
	if cookiePath == "" || cookiePath == "/" || reqPath == cookiePath {
		return true
	}
	if !strings.HasPrefix(reqPath, cookiePath) {
		return false
	}
	return strings.HasSuffix(cookiePath, "/") || reqPath[len(cookiePath)] == '/'
}

func sameSite(s http.SameSite) string {
	switch s {
	case http.SameSiteLaxMode:
		return "Lax"
	case http.SameSiteStrictMode:
		return "Strict"
	case http.SameSiteNoneMode:
		return "None"
	default:
		return ""
	}
}
