package post

import (
	"net/url"
	"strings"
)

// NormalizeURL returns the identity key of a post URL: lowercase scheme and
// host, no fragment, no trailing slash. Unparseable input is only trimmed.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(raw, "/")
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawPath = strings.TrimSuffix(u.RawPath, "/")

	return u.String()
}

// Resolve makes href absolute against base. It returns "" when either side
// cannot be parsed.
func Resolve(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}

	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}

	return b.ResolveReference(ref).String()
}

// HostMatches reports whether rawURL's host is domain or one of its subdomains.
func HostMatches(rawURL, domain string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == domain || strings.HasSuffix(host, "."+domain)
}
