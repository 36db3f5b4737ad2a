package domain

import (
	"strings"
	"testing"
)

func TestNormalizeTagName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lower case", "Golang", "golang"},
		{"surrounding whitespace", "  Go  ", "go"},
		{"inner spaces become hyphen", "Machine Learning", "machine-learning"},
		{"underscores become hyphen", "web_dev", "web-dev"},
		{"hyphen runs collapse", "a -- b", "a-b"},
		{"leading and trailing hyphens", "-rust-", "rust"},
		{"only separators", " - _ ", ""},
		{"empty", "", ""},
		{"unicode kept", "Économie", "économie"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeTagName(tt.input); got != tt.want {
				t.Errorf("NormalizeTagName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeTagNameLength(t *testing.T) {
	got := NormalizeTagName(strings.Repeat("a", 49) + " bcd")
	if len([]rune(got)) > MaxTagNameLength {
		t.Fatalf("name too long: %d runes", len([]rune(got)))
	}
	if strings.HasSuffix(got, "-") {
		t.Errorf("cut name must not end with a hyphen: %q", got)
	}
}

func TestNormalizeTagNamesDedupes(t *testing.T) {
	got := NormalizeTagNames([]string{"Go", " go ", "GO", "", "rust", "Rust"})
	want := []string{"go", "rust"}
	if len(got) != len(want) {
		t.Fatalf("NormalizeTagNames() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("NormalizeTagNames()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestClampTitle(t *testing.T) {
	long := strings.Repeat("é", MaxTitleLength+20)
	if n := len([]rune(ClampTitle(long))); n != MaxTitleLength {
		t.Errorf("ClampTitle() = %d runes, want %d", n, MaxTitleLength)
	}
	if got := ClampTitle("  short  "); got != "short" {
		t.Errorf("ClampTitle() = %q, want %q", got, "short")
	}
}
