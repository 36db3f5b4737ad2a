package domain

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// MaxAIErrorLength is the maximum rune count stored in Bookmark.AIError.
	MaxAIErrorLength = 500

	// FailedDescription replaces the description when enrichment fails.
	FailedDescription = "AI processing failed. Could not generate summary."

	// FallbackTitle is used when a page carries neither <title> nor <h1>.
	FallbackTitle = "title not found"
)

// ErrorKind classifies pipeline failures.
type ErrorKind string

const (
	KindNone       ErrorKind = ""
	KindFetch      ErrorKind = "fetch"
	KindExtraction ErrorKind = "extraction"
	KindAI         ErrorKind = "ai"
	KindConflict   ErrorKind = "conflict"
	KindInternal   ErrorKind = "internal"
)

// FetchError covers network errors, timeouts and non-2xx responses.
type FetchError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ExtractionError covers cleaning, title extraction and conversion failures.
type ExtractionError struct {
	Op  string // "clean" | "convert"
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction (%s): %v", e.Op, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// NewConversionError reports a markdown conversion failure.
func NewConversionError(err error) error {
	return &ExtractionError{Op: "convert", Err: err}
}

// AIError covers model call failures, including timeouts and malformed responses.
type AIError struct {
	Op  string // "summarize" | "tags"
	Err error
}

func (e *AIError) Error() string {
	return fmt.Sprintf("ai %s: %v", e.Op, e.Err)
}

func (e *AIError) Unwrap() error { return e.Err }

// ConflictError is a lost tag-creation race. Storage recovers it by
// looking the tag up; it only escapes when the retry budget is exhausted.
type ConflictError struct {
	Name string
	Err  error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("tag %q: persistence conflict: %v", e.Name, e.Err)
}

func (e *ConflictError) Unwrap() error { return e.Err }

// KindOf returns the taxonomy kind of err.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var (
		fetchErr    *FetchError
		extractErr  *ExtractionError
		aiErr       *AIError
		conflictErr *ConflictError
	)
	switch {
	case errors.As(err, &fetchErr):
		return KindFetch
	case errors.As(err, &extractErr):
		return KindExtraction
	case errors.As(err, &aiErr):
		return KindAI
	case errors.As(err, &conflictErr):
		return KindConflict
	default:
		return KindInternal
	}
}

// TruncateMessage flattens msg to a single line and cuts it to
// MaxAIErrorLength runes.
func TruncateMessage(msg string) string {
	msg = strings.Join(strings.Fields(msg), " ")
	if utf8.RuneCountInString(msg) <= MaxAIErrorLength {
		return msg
	}
	r := []rune(msg)
	return string(r[:MaxAIErrorLength])
}

// FailureMessage builds the persisted ai_error for a stage failure.
func FailureMessage(stage string, err error) string {
	if err == nil {
		return TruncateMessage(stage + ": unknown error")
	}
	return TruncateMessage(stage + ": " + err.Error())
}
