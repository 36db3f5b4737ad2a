package worker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/marks/internal/content"
	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/enrichment"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/queue"
	"github.com/MrSnakeDoc/marks/internal/store/sqlstore"
	"github.com/MrSnakeDoc/marks/internal/tags"
)

func newQueue(t *testing.T) (*queue.Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return queue.New(client, queue.Options{Prefix: "t", Worker: "w"}), mr
}

func startPool(t *testing.T, p *Pool) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("pool did not stop")
		}
	})
	return cancel
}

// recorder is a Processor that fails the first failures calls.
type recorder struct {
	mu       sync.Mutex
	seen     []int64
	failures int
}

func (r *recorder) Process(_ context.Context, job domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, job.BookmarkID)
	if r.failures > 0 {
		r.failures--
		return errors.New("database is locked")
	}
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

func TestPoolRedeliversOnError(t *testing.T) {
	q, _ := newQueue(t)
	ctx := context.Background()
	_, err := q.Enqueue(ctx, domain.NewJob(42, 1, ""))
	require.NoError(t, err)

	rec := &recorder{failures: 1}
	startPool(t, NewPool(q, rec, nil, logger.NewNop(), Options{
		Concurrency: 2,
		PollTimeout: 50 * time.Millisecond,
		NackDelay:   10 * time.Millisecond,
	}))

	require.Eventually(t, func() bool { return rec.count() == 2 }, 3*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		n, _ := q.InFlight(ctx)
		d, _ := q.Depth(ctx)
		return n == 0 && d == 0
	}, 3*time.Second, 10*time.Millisecond)

	pushed, err := q.Enqueue(ctx, domain.NewJob(42, 1, ""))
	require.NoError(t, err)
	assert.True(t, pushed, "acked job releases its marker")
}

func TestPoolDropsMalformedPayload(t *testing.T) {
	q, mr := newQueue(t)
	_, err := mr.Lpush("t:ready", "not json")
	require.NoError(t, err)

	rec := &recorder{}
	startPool(t, NewPool(q, rec, nil, logger.NewNop(), Options{PollTimeout: 50 * time.Millisecond}))

	require.Eventually(t, func() bool {
		d, _ := q.Depth(context.Background())
		n, _ := q.InFlight(context.Background())
		return d == 0 && n == 0
	}, 3*time.Second, 10*time.Millisecond)
	assert.Zero(t, rec.count())
}

func TestPoolStopsOnCancel(t *testing.T) {
	q, _ := newQueue(t)
	cancel := startPool(t, NewPool(q, &recorder{}, nil, logger.NewNop(), Options{PollTimeout: 50 * time.Millisecond}))
	cancel()
}

// stub stages for the end-to-end run
type stubFetcher struct{}

func (stubFetcher) Fetch(context.Context, string) (*content.FetchResult, error) {
	return &content.FetchResult{Body: []byte("<html></html>"), ContentType: "text/html", StatusCode: 200}, nil
}

type stubCleaner struct{}

func (stubCleaner) Clean([]byte, string, string) (*content.CleanResult, error) {
	return &content.CleanResult{Title: "Mocked Title", HTML: "<p>x</p>"}, nil
}

type stubConverter struct{}

func (stubConverter) Convert(string) (string, error) { return "x", nil }

type stubModel struct{}

func (stubModel) Summarize(context.Context, string) (string, error) { return "Mocked AI summary.", nil }

func (stubModel) GenerateTags(context.Context, string) ([]string, error) {
	return []string{"mocked", "ai", "tag"}, nil
}

func TestPoolEndToEnd(t *testing.T) {
	ctx := context.Background()

	dbURL := "sqlite://" + filepath.Join(t.TempDir(), "e2e.db")
	require.NoError(t, sqlstore.MigrateUp(dbURL, logger.NewNop()))
	st, err := sqlstore.Open(ctx, dbURL, sqlstore.Options{})
	require.NoError(t, err)
	defer st.Close()

	metrics := enrichment.NewMetrics(prometheus.NewRegistry())
	orch := enrichment.NewOrchestrator(enrichment.Deps{
		Store:     st,
		Fetcher:   stubFetcher{},
		Cleaner:   stubCleaner{},
		Converter: stubConverter{},
		Model:     stubModel{},
		Tags:      tags.NewReconciler(st, nil),
		Metrics:   metrics,
	}, time.Minute)

	q, _ := newQueue(t)

	b := domain.NewBookmark(1, "https://example.com", "", "", true)
	require.NoError(t, st.CreateBookmark(ctx, b, nil))
	_, err = q.Enqueue(ctx, domain.NewJob(b.ID, b.UserID, "corr-1"))
	require.NoError(t, err)

	startPool(t, NewPool(q, orch, metrics, logger.NewNop(), Options{Concurrency: 2, PollTimeout: 50 * time.Millisecond}))

	require.Eventually(t, func() bool {
		got, err := st.GetBookmark(ctx, b.ID)
		return err == nil && got.AIStatus == domain.StatusCompleted
	}, 5*time.Second, 20*time.Millisecond)

	got, err := st.GetBookmark(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mocked Title", got.Title)
	assert.Equal(t, "Mocked AI summary.", got.Description)
	assert.Contains(t, got.TagNames, "mocked")
}
