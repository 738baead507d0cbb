package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxExcerptLen caps evidence excerpts at ingest.
const MaxExcerptLen = 1000

// EvidenceSource identifies where an excerpt was fetched from.
// URL is canonicalised before the evidence identity is derived.
type EvidenceSource struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Evidence is one normalised unit of source material. Two pieces of evidence
// with equal ID are the same item; ContentHash catches content-level
// duplicates whose IDs differ.
type Evidence struct {
	ID          string         `json:"id"`
	Source      EvidenceSource `json:"source"`
	Excerpt     string         `json:"excerpt"`
	ContentHash string         `json:"content_hash,omitempty"`
	Score       *float64       `json:"score,omitempty"` // upstream relevance in [0,1]; nil = unscored
	Tags        []string       `json:"tags,omitempty"`
	CitKey      string         `json:"cit_key,omitempty"`
	ProducedBy  string         `json:"produced_by"` // sub-query ID or refinement_* that caused ingest
}

// Relevance returns the upstream score, or 0.5 when the item is unscored.
func (e Evidence) Relevance() float64 {
	if e.Score == nil {
		return 0.5
	}
	return *e.Score
}

// EvidenceID derives the deterministic identity of an evidence item from its
// origin, canonical URL, producing sub-query, and rank within the provider
// response. Equal inputs always produce equal IDs.
func EvidenceID(origin SourceKind, canonicalURL, subQueryID string, ordinal int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%d", origin, canonicalURL, subQueryID, ordinal)))
	return "ev_" + hex.EncodeToString(sum[:])[:16]
}

// HashContent returns the dedupe hash of an excerpt: SHA-256 over the
// lowercased text with runs of whitespace collapsed to single spaces.
func HashContent(excerpt string) string {
	norm := strings.Join(strings.Fields(strings.ToLower(excerpt)), " ")
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:])
}

// CanonicalURL normalises raw for identity comparison: scheme and host are
// lowercased, the fragment is stripped, and default ports (80 for http,
// 443 for https) are removed. Unparseable input is returned unchanged.
//
// Expectations:
//   - "HTTP://Example.COM:80/a#frag" → "http://example.com/a"
//   - "https://example.com:443/x" → "https://example.com/x"
//   - non-default ports are preserved
//   - query strings are preserved
func CanonicalURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	host, port, found := strings.Cut(u.Host, ":")
	if found {
		if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
			u.Host = host
		}
	}
	return u.String()
}

// CapExcerpt truncates text to MaxExcerptLen bytes on a rune boundary.
func CapExcerpt(text string) string {
	if len(text) <= MaxExcerptLen {
		return text
	}
	cut := text[:MaxExcerptLen]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}

// Fingerprint returns a short stable hash of s, used to derive per-run
// collection names from the main query.
func Fingerprint(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:8]
}
