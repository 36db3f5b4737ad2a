package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/logger"
)

const (
	// DefaultRequeueAfter is how long a bookmark may stay PENDING before
	// its job is presumed lost
	DefaultRequeueAfter = 10 * time.Minute

	requeueBatchSize = 200
)

// PendingLister lists bookmarks by status
type PendingLister interface {
	ListByStatus(ctx context.Context, status domain.AIStatus, before time.Time, limit int) ([]*domain.Bookmark, error)
}

// Enqueuer pushes enrichment jobs
type Enqueuer interface {
	Enqueue(ctx context.Context, job domain.Job) (bool, error)
}

// PendingRequeuer re-enqueues PENDING bookmarks whose job never ran, e.g.
// when Redis was down at creation time
type PendingRequeuer struct {
	store         PendingLister
	queue         Enqueuer
	logger        logger.Logger
	interval      time.Duration
	requeueAfter  time.Duration
	stopCh        chan struct{}
	manualTrigger chan struct{}
	now           func() time.Time
}

// NewPendingRequeuer creates a new requeuer. Sending on manualTrigger runs
// a sweep immediately.
func NewPendingRequeuer(
	store PendingLister,
	queue Enqueuer,
	log logger.Logger,
	interval time.Duration,
	requeueAfter time.Duration,
	manualTrigger chan struct{},
) *PendingRequeuer {
	if requeueAfter == 0 {
		requeueAfter = DefaultRequeueAfter
	}

	return &PendingRequeuer{
		store:         store,
		queue:         queue,
		logger:        log,
		interval:      interval,
		requeueAfter:  requeueAfter,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
		now:           time.Now,
	}
}

// Start begins the periodic sweep
func (pr *PendingRequeuer) Start(ctx context.Context) error {
	if _, err := pr.Requeue(ctx); err != nil {
		pr.logger.Warn("initial requeue sweep failed",
			logger.Error(err))
	}

	ticker := time.NewTicker(pr.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := pr.Requeue(ctx); err != nil {
					pr.logger.Error("requeue sweep failed",
						logger.Error(err))
				}
			case <-pr.manualTrigger:
				pr.logger.Info("manual requeue triggered")
				if _, err := pr.Requeue(ctx); err != nil {
					pr.logger.Error("requeue sweep failed",
						logger.Error(err))
				}
			case <-pr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the requeuer
func (pr *PendingRequeuer) Stop() {
	close(pr.stopCh)
}

// Requeue enqueues a job for every bookmark PENDING since before the
// threshold. Bookmarks that already have a job queued are skipped by the
// queue's dedupe.
func (pr *PendingRequeuer) Requeue(ctx context.Context) (int, error) {
	cutoff := pr.now().Add(-pr.requeueAfter)

	pending, err := pr.store.ListByStatus(ctx, domain.StatusPending, cutoff, requeueBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending bookmarks: %w", err)
	}

	requeued := 0
	for _, b := range pending {
		pushed, err := pr.queue.Enqueue(ctx, domain.NewJob(b.ID, b.UserID, "requeue-"+uuid.NewString()))
		if err != nil {
			return requeued, fmt.Errorf("failed to requeue bookmark %d: %w", b.ID, err)
		}
		if pushed {
			requeued++
		}
	}

	if requeued > 0 {
		pr.logger.Info("requeued pending bookmarks",
			logger.Int("requeued", requeued),
			logger.Int("pending", len(pending)))
	} else {
		pr.logger.Debug("no pending bookmarks to requeue")
	}
	return requeued, nil
}
