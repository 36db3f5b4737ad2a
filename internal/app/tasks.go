package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/sources/homepage"
	"github.com/MrSnakeDoc/marks/internal/store"
)

// ImportResult summarizes an import run.
type ImportResult struct {
	Created  int
	Enqueued int
	Skipped  int
}

// ImportHomepage creates one bookmark per entry of a Homepage bookmarks.yaml
// for userID. With aiEnabled the bookmarks start PENDING and are enqueued
// when a queue is connected; otherwise the pending requeuer picks them up.
func (a *App) ImportHomepage(ctx context.Context, path string, userID int64, aiEnabled bool) (ImportResult, error) {
	var res ImportResult
	if userID <= 0 {
		return res, fmt.Errorf("invalid user id %d", userID)
	}

	cfg, err := homepage.NewLoader(path).Load()
	if err != nil {
		return res, err
	}
	drafts, skipped, err := homepage.NewMapper().Map(cfg)
	for _, s := range skipped {
		a.logger.Warn("homepage entry skipped",
			logger.String("category", s.Category),
			logger.String("name", s.Name),
			logger.String("reason", s.Reason))
	}
	res.Skipped = len(skipped)
	if err != nil {
		return res, err
	}

	for _, draft := range drafts {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		resolved, err := a.tags.Resolve(ctx, draft.Tags)
		if err != nil {
			return res, err
		}
		b := domain.NewBookmark(userID, draft.URL, draft.Title, draft.Description, aiEnabled)
		if err := a.store.CreateBookmark(ctx, b, resolved); err != nil {
			return res, fmt.Errorf("failed to import %s: %w", draft.URL, err)
		}
		res.Created++

		if b.AIStatus == domain.StatusPending && a.queue != nil {
			queued, err := a.queue.Enqueue(ctx, domain.NewJob(b.ID, userID, "import-"+uuid.NewString()))
			if err != nil {
				a.logger.Warn("failed to enqueue imported bookmark",
					logger.Int64("bookmark_id", b.ID), logger.Error(err))
				continue
			}
			if queued {
				res.Enqueued++
			}
		}
	}

	a.logger.Info("homepage import finished",
		logger.String("file", path),
		logger.Int("created", res.Created),
		logger.Int("enqueued", res.Enqueued),
		logger.Int("skipped", res.Skipped))
	return res, nil
}

// ErrNotEnrichable is returned by Enqueue for bookmarks created without AI.
var ErrNotEnrichable = errors.New("bookmark has ai disabled")

// Enqueue re-arms enrichment for a bookmark and pushes a job. PROCESSING
// bookmarks are refused with store.ErrStatusConflict.
func (a *App) Enqueue(ctx context.Context, id int64) (bool, error) {
	if a.queue == nil {
		return false, errors.New("enqueue requires the redis queue")
	}

	b, err := a.store.GetBookmark(ctx, id)
	if err != nil {
		return false, err
	}
	if !b.Enrichable() {
		return false, ErrNotEnrichable
	}
	if !domain.CanTransition(b.AIStatus, domain.StatusPending) {
		return false, fmt.Errorf("%w: bookmark %d is %s", store.ErrStatusConflict, id, b.AIStatus)
	}
	if err := a.store.MarkPending(ctx, id); err != nil {
		return false, err
	}
	return a.queue.Enqueue(ctx, domain.NewJob(b.ID, b.UserID, "cli-"+uuid.NewString()))
}
