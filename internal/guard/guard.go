// Package guard screens evidence before it enters the store: personal data
// is redacted from excerpts and suspicious source URLs are rejected.
package guard

import (
	"net/url"
	"regexp"
	"strings"
)

// Guard validates and sanitises candidate evidence content.
type Guard interface {
	// SanitizeText returns text with personal identifiers redacted.
	SanitizeText(text string) string

	// AllowURL reports whether a source URL is acceptable for ingestion.
	AllowURL(raw string) bool
}

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\s().\-]{7,}\d`)
)

// Basic is the default guard: regex-based redaction of emails and phone
// numbers, plus scheme and host screening for URLs.
type Basic struct {
	// BlockedHosts rejects sources by exact host match.
	BlockedHosts map[string]bool
}

// NewBasic returns a guard with an empty blocklist.
func NewBasic() *Basic {
	return &Basic{BlockedHosts: make(map[string]bool)}
}

// SanitizeText redacts email addresses and phone-number-like runs.
//
// Expectations:
//   - "mail me at a@b.com" → "mail me at [REDACTED_EMAIL]"
//   - "+52 55 1234 5678" → "[REDACTED_PHONE]"
//   - text without identifiers is returned unchanged
func (b *Basic) SanitizeText(text string) string {
	out := emailPattern.ReplaceAllString(text, "[REDACTED_EMAIL]")
	out = phonePattern.ReplaceAllString(out, "[REDACTED_PHONE]")
	return out
}

// AllowURL accepts only well-formed http(s) URLs whose host is not blocked.
func (b *Basic) AllowURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	return !b.BlockedHosts[host]
}
