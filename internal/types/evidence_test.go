package types

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestEvidenceIDDeterministic(t *testing.T) {
	// Equal inputs always produce equal IDs.
	a := EvidenceID(SourceWeb, "https://example.com/x", "T01", 0)
	b := EvidenceID(SourceWeb, "https://example.com/x", "T01", 0)
	if a != b {
		t.Errorf("same inputs produced different IDs: %s vs %s", a, b)
	}
	if !strings.HasPrefix(a, "ev_") || len(a) != len("ev_")+16 {
		t.Errorf("unexpected ID shape: %s", a)
	}

	// Any input change produces a different ID.
	variants := []string{
		EvidenceID(SourceNews, "https://example.com/x", "T01", 0),
		EvidenceID(SourceWeb, "https://example.com/y", "T01", 0),
		EvidenceID(SourceWeb, "https://example.com/x", "T02", 0),
		EvidenceID(SourceWeb, "https://example.com/x", "T01", 1),
	}
	for i, v := range variants {
		if v == a {
			t.Errorf("variant %d collided with base ID", i)
		}
	}
}

func TestHashContentNormalises(t *testing.T) {
	// Case and whitespace differences hash identically.
	a := HashContent("Climate  Change\n\tis real")
	b := HashContent("climate change is REAL")
	if a != b {
		t.Errorf("normalised variants hashed differently: %s vs %s", a, b)
	}
	if a == HashContent("something else") {
		t.Error("distinct content produced equal hashes")
	}
}

func TestCanonicalURL(t *testing.T) {
	cases := []struct{ in, want string }{
		{"HTTP://Example.COM:80/a#frag", "http://example.com/a"},
		{"https://example.com:443/x", "https://example.com/x"},
		{"https://example.com:8443/x", "https://example.com:8443/x"},
		{"https://example.com/search?q=go&page=2", "https://example.com/search?q=go&page=2"},
		{"not a url", "not a url"},
	}
	for _, c := range cases {
		if got := CanonicalURL(c.in); got != c.want {
			t.Errorf("CanonicalURL(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCapExcerptRuneSafe(t *testing.T) {
	short := "short text"
	if got := CapExcerpt(short); got != short {
		t.Errorf("short text changed: %q", got)
	}

	// Multibyte runes at the cut point must not be split.
	long := strings.Repeat("é", MaxExcerptLen)
	capped := CapExcerpt(long)
	if len(capped) > MaxExcerptLen {
		t.Errorf("capped excerpt is %d bytes, want <= %d", len(capped), MaxExcerptLen)
	}
	if !utf8.ValidString(capped) {
		t.Error("capped excerpt is not valid UTF-8")
	}
}

func TestRelevanceDefault(t *testing.T) {
	// Unscored evidence defaults to 0.5.
	if got := (Evidence{}).Relevance(); got != 0.5 {
		t.Errorf("Relevance() = %v, want 0.5", got)
	}
	s := 0.9
	if got := (Evidence{Score: &s}).Relevance(); got != 0.9 {
		t.Errorf("Relevance() = %v, want 0.9", got)
	}
}

func TestFingerprintStable(t *testing.T) {
	if Fingerprint("query") != Fingerprint("query") {
		t.Error("fingerprint is not stable")
	}
	if len(Fingerprint("query")) != 8 {
		t.Errorf("fingerprint length = %d, want 8", len(Fingerprint("query")))
	}
	if Fingerprint("query") == Fingerprint("other") {
		t.Error("distinct inputs produced equal fingerprints")
	}
}
