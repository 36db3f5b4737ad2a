package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindNone},
		{"fetch", &FetchError{URL: "https://x", Err: context.DeadlineExceeded}, KindFetch},
		{"wrapped fetch", fmt.Errorf("stage: %w", &FetchError{URL: "https://x", StatusCode: 502}), KindFetch},
		{"extraction", &ExtractionError{Op: "clean", Err: errors.New("boom")}, KindExtraction},
		{"conversion", NewConversionError(errors.New("empty")), KindExtraction},
		{"ai", &AIError{Op: "summarize", Err: errors.New("429")}, KindAI},
		{"conflict", &ConflictError{Name: "go", Err: errors.New("dup")}, KindConflict},
		{"plain", errors.New("db down"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFetchErrorKeepsCause(t *testing.T) {
	err := &FetchError{URL: "https://example.com", Err: context.DeadlineExceeded}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("FetchError should unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "https://example.com") {
		t.Errorf("FetchError message should carry the URL: %q", err.Error())
	}
}

func TestTruncateMessage(t *testing.T) {
	long := strings.Repeat("ü", 2*MaxAIErrorLength)
	got := TruncateMessage(long)
	if n := utf8.RuneCountInString(got); n != MaxAIErrorLength {
		t.Errorf("TruncateMessage() = %d runes, want %d", n, MaxAIErrorLength)
	}
	if !utf8.ValidString(got) {
		t.Error("TruncateMessage() produced invalid UTF-8")
	}

	if got := TruncateMessage("line one\n\tline two"); got != "line one line two" {
		t.Errorf("TruncateMessage() = %q, want single line", got)
	}
}

func TestFailureMessage(t *testing.T) {
	got := FailureMessage("fetch", &FetchError{URL: "https://a", StatusCode: 404})
	if !strings.HasPrefix(got, "fetch: ") || got == "fetch: " {
		t.Errorf("FailureMessage() = %q", got)
	}
	if got := FailureMessage("ai", nil); got == "" {
		t.Error("FailureMessage(nil) must not be empty")
	}
}
