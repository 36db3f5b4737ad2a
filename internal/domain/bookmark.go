package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Bookmark is a saved URL owned by exactly one user, optionally enriched by AI.
// It is a materialized value: TagNames is always loaded with the record.
type Bookmark struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// ID is the storage-assigned identifier.
	ID int64 `json:"id" db:"id"`

	// UserID is the owning user. Ownership never changes.
	UserID int64 `json:"user_id" db:"user_id"`

	// ─────────────────────────────
	// Content (CRUD path + orchestrator)
	// ─────────────────────────────

	// URL is the absolute http(s) address the bookmark points to.
	URL string `json:"url" db:"url"`

	// Title is user supplied, then replaced by the extracted page title.
	Title string `json:"title" db:"title"`

	// Description holds the AI summary, or the failure placeholder.
	Description string `json:"description" db:"description"`

	// TagNames are the canonical names of the attached tags, sorted.
	TagNames []string `json:"tags" db:"-"`

	Favorite  bool  `json:"favorite" db:"favorite"`
	ViewCount int64 `json:"view_count" db:"view_count"`

	// ─────────────────────────────
	// Enrichment
	// ─────────────────────────────

	// AIEnabled is fixed at creation.
	AIEnabled bool `json:"ai_enabled" db:"ai_enabled"`

	// AIStatus follows the AIStatus state machine.
	AIStatus AIStatus `json:"ai_status" db:"ai_status"`

	// AIError is set only when AIStatus is FAILED (max MaxAIErrorLength runes).
	AIError string `json:"ai_error,omitempty" db:"ai_error"`

	// ─────────────────────────────
	// Metadata
	// ─────────────────────────────

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewBookmark builds a bookmark draft for the creation path.
// The initial status is derived from aiEnabled and never set by callers.
func NewBookmark(userID int64, url, title, description string, aiEnabled bool) *Bookmark {
	status := StatusSkipped
	if aiEnabled {
		status = StatusPending
	}
	if title == "" {
		title = url
	}
	return &Bookmark{
		UserID:      userID,
		URL:         url,
		Title:       ClampTitle(title),
		Description: description,
		AIEnabled:   aiEnabled,
		AIStatus:    status,
	}
}

// OwnedBy reports whether userID owns the bookmark.
func (b *Bookmark) OwnedBy(userID int64) bool {
	return b != nil && b.UserID == userID
}

// Enrichable reports whether the orchestrator may pick the bookmark up.
func (b *Bookmark) Enrichable() bool {
	return b != nil && b.AIEnabled && b.AIStatus != StatusSkipped
}

// ValidateURL accepts absolute http and https URLs with a host.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("url has no host")
	}
	return nil
}
