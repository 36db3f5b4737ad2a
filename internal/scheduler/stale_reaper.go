package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/logger"
)

const (
	// DefaultStaleAfter is how long a bookmark may stay PROCESSING before
	// its worker is presumed dead
	DefaultStaleAfter = 15 * time.Minute

	reapBatchSize = 100
)

// Store is the storage used by the maintenance loops
type Store interface {
	ListByStatus(ctx context.Context, status domain.AIStatus, before time.Time, limit int) ([]*domain.Bookmark, error)
	ExpireProcessing(ctx context.Context, id int64, cutoff time.Time, aiError string) (bool, error)
}

// StaleReaper fails bookmarks stuck in PROCESSING after a worker crash
type StaleReaper struct {
	store      Store
	logger     logger.Logger
	interval   time.Duration
	staleAfter time.Duration
	stopCh     chan struct{}
	now        func() time.Time
}

// NewStaleReaper creates a new stale reaper
func NewStaleReaper(store Store, log logger.Logger, interval, staleAfter time.Duration) *StaleReaper {
	if staleAfter == 0 {
		staleAfter = DefaultStaleAfter
	}

	return &StaleReaper{
		store:      store,
		logger:     log,
		interval:   interval,
		staleAfter: staleAfter,
		stopCh:     make(chan struct{}),
		now:        time.Now,
	}
}

// Start begins the periodic sweep
func (sr *StaleReaper) Start(ctx context.Context) error {
	// Run immediately on start
	if _, err := sr.Reap(ctx); err != nil {
		sr.logger.Warn("initial stale sweep failed",
			logger.Error(err))
	}

	ticker := time.NewTicker(sr.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := sr.Reap(ctx); err != nil {
					sr.logger.Error("stale sweep failed",
						logger.Error(err))
				}
			case <-sr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the reaper
func (sr *StaleReaper) Stop() {
	close(sr.stopCh)
}

// Reap marks FAILED every bookmark PROCESSING for longer than staleAfter.
// It stands in for an orchestrator whose worker was lost and writes the
// same capped ai_error and placeholder description.
func (sr *StaleReaper) Reap(ctx context.Context) (int, error) {
	cutoff := sr.now().Add(-sr.staleAfter)
	reason := fmt.Sprintf("timeout: enrichment did not finish within %s", sr.staleAfter)

	reaped := 0
	for {
		stale, err := sr.store.ListByStatus(ctx, domain.StatusProcessing, cutoff, reapBatchSize)
		if err != nil {
			return reaped, fmt.Errorf("failed to list stale bookmarks: %w", err)
		}

		expired := 0
		for _, b := range stale {
			ok, err := sr.store.ExpireProcessing(ctx, b.ID, cutoff, reason)
			if err != nil {
				sr.logger.Warn("failed to expire stale bookmark",
					logger.Int64("bookmark_id", b.ID),
					logger.Error(err))
				continue
			}
			if !ok {
				// finished in the meantime
				continue
			}

			sr.logger.Warn("stale enrichment marked failed",
				logger.Int64("bookmark_id", b.ID),
				logger.Int64("user_id", b.UserID),
				logger.String("stuck_for", sr.now().Sub(b.UpdatedAt).Round(time.Second).String()))
			expired++
		}
		reaped += expired

		if len(stale) < reapBatchSize || expired == 0 {
			break
		}
	}

	if reaped > 0 {
		sr.logger.Info("stale sweep completed", logger.Int("reaped", reaped))
	} else {
		sr.logger.Debug("no stale enrichments")
	}
	return reaped, nil
}
