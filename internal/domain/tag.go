package domain

import (
	"strings"
	"time"
	"unicode"
)

const (
	// MaxTagNameLength is the maximum rune count of a canonical tag name.
	MaxTagNameLength = 50

	// MaxTagsPerRequest bounds the tag list accepted on bookmark creation.
	MaxTagsPerRequest = 10

	// MaxTitleLength is the maximum rune count of a bookmark title.
	MaxTitleLength = 200
)

// Tag is a shared, case-insensitive label. Name is unique across all users.
type Tag struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TagCount is a tag with the number of bookmarks it is attached to.
type TagCount struct {
	Tag
	Count int64 `json:"bookmark_count" db:"bookmark_count"`
}

// NormalizeTagName returns the canonical form of a free-text tag name:
// lower case, whitespace and underscores folded into single hyphens,
// no leading or trailing hyphen, at most MaxTagNameLength runes.
// An empty result means the input carries no usable name.
func NormalizeTagName(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))

	pendingHyphen := false
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case unicode.IsSpace(r) || r == '_' || r == '-':
			pendingHyphen = b.Len() > 0
		default:
			if pendingHyphen {
				b.WriteByte('-')
				pendingHyphen = false
			}
			b.WriteRune(unicode.ToLower(r))
		}
	}

	name := []rune(b.String())
	if len(name) > MaxTagNameLength {
		name = name[:MaxTagNameLength]
	}
	return strings.TrimRight(string(name), "-")
}

// NormalizeTagNames normalizes names and collapses duplicates, keeping the
// first occurrence order. Empty names are dropped.
func NormalizeTagNames(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		n := NormalizeTagName(r)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// ClampTitle trims a title and cuts it to MaxTitleLength runes.
func ClampTitle(title string) string {
	title = strings.TrimSpace(title)
	r := []rune(title)
	if len(r) <= MaxTitleLength {
		return title
	}
	return strings.TrimSpace(string(r[:MaxTitleLength]))
}
