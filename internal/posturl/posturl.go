// Package posturl recognizes and normalizes x.com / twitter.com status URLs.
package posturl

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	postPattern   = regexp.MustCompile(`(?i)^https?://(x\.com|twitter\.com)/\w+/status/\d+`)
	statusPattern = regexp.MustCompile(`status/(\d+)`)
	handlePattern = regexp.MustCompile(`(?i)^https?://[^/]+/(\w+)/status/\d+`)
)

// CanonicalHost is the host the oEmbed provider expects.
const CanonicalHost = "twitter.com"

// IsValid reports whether raw is a status URL on x.com or twitter.com.
// Surrounding whitespace is ignored and trailing paths or query strings are allowed.
func IsValid(raw string) bool {
	return postPattern.MatchString(strings.TrimSpace(raw))
}

// StatusID extracts the numeric status identifier from raw.
func StatusID(raw string) (string, bool) {
	m := statusPattern.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Handle returns the author handle path segment of a status URL.
func Handle(raw string) (string, bool) {
	m := handlePattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Canonical rewrites the x.com alias to twitter.com. Anything that does not
// parse as a URL is returned trimmed but otherwise unchanged.
func Canonical(raw string) string {
	trimmed := strings.TrimSpace(raw)
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return trimmed
	}
	switch strings.ToLower(u.Hostname()) {
	case "x.com", "www.x.com", "mobile.x.com":
		u.Host = CanonicalHost
	}
	return u.String()
}
