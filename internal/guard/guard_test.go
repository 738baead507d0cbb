package guard

import (
	"strings"
	"testing"
)

func TestSanitizeText(t *testing.T) {
	g := NewBasic()

	// Emails are redacted.
	out := g.SanitizeText("contact me at jane.doe@example.com for details")
	if strings.Contains(out, "jane.doe@example.com") || !strings.Contains(out, "[REDACTED_EMAIL]") {
		t.Errorf("email not redacted: %q", out)
	}

	// Phone-number-like runs are redacted.
	out = g.SanitizeText("call +52 55 1234 5678 today")
	if !strings.Contains(out, "[REDACTED_PHONE]") {
		t.Errorf("phone not redacted: %q", out)
	}

	// Clean text passes through unchanged.
	clean := "renewable energy adoption keeps growing"
	if got := g.SanitizeText(clean); got != clean {
		t.Errorf("clean text changed: %q", got)
	}
}

func TestAllowURL(t *testing.T) {
	g := NewBasic()
	g.BlockedHosts["evil.example.com"] = true

	cases := []struct {
		url  string
		want bool
	}{
		{"https://example.com/article", true},
		{"http://example.com/article", true},
		{"ftp://example.com/file", false},
		{"javascript:alert(1)", false},
		{"https://evil.example.com/page", false},
		{"https://", false},
	}
	for _, c := range cases {
		if got := g.AllowURL(c.url); got != c.want {
			t.Errorf("AllowURL(%q) = %v, want %v", c.url, got, c.want)
		}
	}
}
