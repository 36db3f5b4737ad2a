package domain

import (
	"strings"
	"testing"
)

func TestNewBookmark(t *testing.T) {
	b := NewBookmark(3, "https://example.com", "", "", true)
	if b.AIStatus != StatusPending || b.Title != "https://example.com" {
		t.Errorf("unexpected draft: %+v", b)
	}

	b = NewBookmark(3, "https://example.com", strings.Repeat("x", MaxTitleLength+10), "", false)
	if b.AIStatus != StatusSkipped {
		t.Errorf("expected SKIPPED, got %s", b.AIStatus)
	}
	if n := len([]rune(b.Title)); n != MaxTitleLength {
		t.Errorf("title not clamped: %d runes", n)
	}
	if !b.OwnedBy(3) || b.OwnedBy(4) {
		t.Error("OwnedBy mismatch")
	}
	if b.Enrichable() {
		t.Error("SKIPPED bookmark must not be enrichable")
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		url string
		ok  bool
	}{
		{"https://example.com/a?b=c", true},
		{"http://localhost:8080", true},
		{"  https://example.com  ", true},
		{"mailto:me@example.com", false},
		{"ftp://example.com", false},
		{"https://", false},
		{"/relative", false},
		{"::not a url", false},
	}

	for _, tt := range tests {
		err := ValidateURL(tt.url)
		if (err == nil) != tt.ok {
			t.Errorf("ValidateURL(%q) = %v, want ok=%v", tt.url, err, tt.ok)
		}
	}
}
