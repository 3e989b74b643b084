package share

import (
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/net/idna"
)

// IsValidURL reports whether s parses as an http or https URL. Other schemes
// (mailto:, intent:, the app's own scheme) are rejected, as is anything that
// contains whitespace.
func IsValidURL(s string) bool {
	if s == "" || strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// Classifier decides whether a link belongs to the application.
type Classifier struct {
	scheme string
	domain string
}

// NewClassifier builds a classifier for the app's custom scheme and canonical domain.
func NewClassifier(scheme, domain string) Classifier {
	return Classifier{
		scheme: strings.ToLower(strings.TrimSuffix(strings.TrimSpace(scheme), "://")),
		domain: normalizeHost(domain),
	}
}

// Scheme returns the app's custom scheme.
func (c Classifier) Scheme() string { return c.scheme }

// Domain returns the app's canonical domain.
func (c Classifier) Domain() string { return c.domain }

// IsInternal reports whether raw addresses the application: either through the
// custom scheme, or through an http(s) URL on the canonical domain or one of
// its subdomains.
func (c Classifier) IsInternal(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" {
		return false
	}
	if c.scheme != "" && u.Scheme == c.scheme {
		return true
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return c.IsAppHost(u.Hostname())
}

// IsAppHost reports whether host is the canonical domain or a subdomain of it.
func (c Classifier) IsAppHost(host string) bool {
	if c.domain == "" {
		return false
	}
	return hostMatches(normalizeHost(host), c.domain)
}

func hostMatches(host, domain string) bool {
	if host == "" || domain == "" {
		return false
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}

func normalizeHost(host string) string {
	h := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	if h == "" {
		return ""
	}
	if ascii, err := idna.Lookup.ToASCII(h); err == nil {
		return ascii
	}
	return h
}
