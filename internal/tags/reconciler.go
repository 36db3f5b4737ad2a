// Package tags maps free-text tag names onto the shared tag vocabulary.
package tags

import (
	"context"
	"fmt"

	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/logger"
)

// Ensurer creates-or-returns a tag by canonical name.
type Ensurer interface {
	EnsureTag(ctx context.Context, name string) (domain.Tag, error)
}

// Linker replaces the tag set of a bookmark.
type Linker interface {
	ReplaceBookmarkTags(ctx context.Context, id int64, tags []domain.Tag) error
}

// Store is what Reconcile needs.
type Store interface {
	Ensurer
	Linker
}

// Reconciler resolves names to tag rows. Concurrency safety is delegated to
// EnsureTag, which must be race-safe per name.
type Reconciler struct {
	store Ensurer
	log   logger.Logger
}

func NewReconciler(store Ensurer, log logger.Logger) *Reconciler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Reconciler{store: store, log: log}
}

// Resolve normalizes names, drops empty and duplicate entries and returns
// the matching tags in first-seen order. It fails on the first storage
// error; tags created before the failure stay in the vocabulary.
func (r *Reconciler) Resolve(ctx context.Context, names []string) ([]domain.Tag, error) {
	canonical := domain.NormalizeTagNames(names)
	if dropped := len(names) - len(canonical); dropped > 0 {
		r.log.Debug("tag names collapsed during normalization",
			logger.Int("input", len(names)),
			logger.Int("kept", len(canonical)))
	}

	out := make([]domain.Tag, 0, len(canonical))
	for _, name := range canonical {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tag, err := r.store.EnsureTag(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("resolve tag %q: %w", name, err)
		}
		out = append(out, tag)
	}
	return out, nil
}

// Reconcile resolves names and makes them the full tag set of bookmarkID.
// The store must also implement Linker.
func (r *Reconciler) Reconcile(ctx context.Context, bookmarkID int64, names []string) ([]domain.Tag, error) {
	linker, ok := r.store.(Linker)
	if !ok {
		return nil, fmt.Errorf("tag store %T cannot link bookmarks", r.store)
	}

	resolved, err := r.Resolve(ctx, names)
	if err != nil {
		return nil, err
	}
	if err := linker.ReplaceBookmarkTags(ctx, bookmarkID, resolved); err != nil {
		return nil, fmt.Errorf("link tags to bookmark %d: %w", bookmarkID, err)
	}
	return resolved, nil
}
