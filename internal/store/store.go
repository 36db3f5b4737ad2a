// Package store defines the persistence boundary for bookmarks and tags.
// Implementations return materialized values: a Bookmark always carries its
// TagNames, nothing is lazily loaded.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/MrSnakeDoc/marks/internal/domain"
)

var (
	// ErrNotFound is returned when the target row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStatusConflict is returned when a status transition is not allowed
	// from the bookmark's current status.
	ErrStatusConflict = errors.New("status conflict")
)

// Enrichment is the output of a successful pipeline run.
type Enrichment struct {
	Title       string
	Description string
	Tags        []domain.Tag
}

// Bookmarks covers the bookmark rows and their tag links.
type Bookmarks interface {
	// CreateBookmark inserts b and links tags in one transaction, then
	// fills b.ID, timestamps and TagNames.
	CreateBookmark(ctx context.Context, b *domain.Bookmark, tags []domain.Tag) error
	GetBookmark(ctx context.Context, id int64) (*domain.Bookmark, error)
	ListBookmarks(ctx context.Context, userID int64, limit, offset int) ([]*domain.Bookmark, error)
	// DeleteBookmark removes an owned bookmark; links cascade.
	DeleteBookmark(ctx context.Context, id, userID int64) error

	// MarkProcessing durably records job pickup. ErrStatusConflict when the
	// bookmark is SKIPPED.
	MarkProcessing(ctx context.Context, id int64) error
	// CompleteEnrichment replaces title, description and the full tag set,
	// sets COMPLETED and clears ai_error, atomically.
	CompleteEnrichment(ctx context.Context, id int64, e Enrichment) error
	// FailEnrichment sets FAILED, ai_error and the placeholder description.
	// Title and tags are untouched.
	FailEnrichment(ctx context.Context, id int64, aiError string) error
	// MarkPending re-arms enrichment for a COMPLETED or FAILED bookmark.
	MarkPending(ctx context.Context, id int64) error
	// ExpireProcessing fails a bookmark still PROCESSING since before cutoff.
	// Returns false when it moved on in the meantime.
	ExpireProcessing(ctx context.Context, id int64, cutoff time.Time, aiError string) (bool, error)
	// ListByStatus returns bookmarks in status not updated since before, oldest first.
	ListByStatus(ctx context.Context, status domain.AIStatus, before time.Time, limit int) ([]*domain.Bookmark, error)

	// ReplaceBookmarkTags swaps the whole tag set of a bookmark.
	ReplaceBookmarkTags(ctx context.Context, id int64, tags []domain.Tag) error
}

// Tags covers the shared tag vocabulary.
type Tags interface {
	// EnsureTag returns the tag named name, creating it if absent. Safe under
	// concurrent callers racing on the same name.
	EnsureTag(ctx context.Context, name string) (domain.Tag, error)
	ListUserTags(ctx context.Context, userID int64, limit, offset int) ([]domain.TagCount, error)
	PopularTags(ctx context.Context, limit int) ([]domain.TagCount, error)
}

// Store is the full repository.
type Store interface {
	Bookmarks
	Tags
	Ping(ctx context.Context) error
	Close() error
}
