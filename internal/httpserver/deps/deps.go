package deps

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/store"
	"github.com/MrSnakeDoc/marks/internal/tags"
)

// JobQueue is the producer side of the enrichment queue.
type JobQueue interface {
	Enqueue(ctx context.Context, job domain.Job) (bool, error)
	Depth(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

type Deps struct {
	Logger                logger.Logger
	StartTime             time.Time
	Version               string
	Commit                string
	BuildDate             string
	GoVersion             string
	TimeNow               func() time.Time    // for testing, defaults to time.Now
	AllowedHosts          []string            // Host headers allowed to access ops routes
	AllowedCIDRS          []string            // IPs allowed to access readyz/infra/metrics/requeue
	TrustProxy            bool                // true if running behind a trusted reverse proxy (e.g., cloudflared)
	Store                 store.Store         // bookmarks and tags
	Queue                 JobQueue            // enrichment queue (nil disables enqueue, bookmarks stay PENDING for the requeuer)
	Tags                  *tags.Reconciler    // tag normalization and get-or-create
	AIDefaultOn           bool                // ai_enabled when the creation payload omits it
	RateLimitBurst        int                 // bookmark creation burst per caller
	RateLimitRefillPerMin int                 // bookmark creation refill per caller per minute
	RequeueTrigger        chan struct{}       // manual pending requeue (nil when no requeuer runs in this process)
	Gatherer              prometheus.Gatherer // source for /metrics, defaults to the global registry
}

// Now returns d.TimeNow() or time.Now().
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
