package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/marks/internal/config"
	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/queue"
	"github.com/MrSnakeDoc/marks/internal/store"
)

const bookmarksYAML = `---
- Developer:
    - Github:
        - abbr: GH
          href: https://github.com/
    - Go:
        - abbr: GO
          href: https://go.dev/
- Broken:
    - Secret:
        - abbr: SE
          href: {{HOMEPAGE_VAR_SECRET}}
`

func newTestApp(t *testing.T, withQueue bool) (*App, *miniredis.Miniredis) {
	t.Helper()
	cfg := &config.Config{DatabaseURL: MemoryURL}
	a, err := New(context.Background(), cfg, logger.NewNop(), Options{})
	require.NoError(t, err)
	t.Cleanup(a.Close)

	if !withQueue {
		return a, nil
	}
	mr := miniredis.RunT(t)
	a.redisClient = goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	a.queue = queue.New(a.redisClient, queue.Options{Worker: "test"})
	return a, mr
}

func writeYAML(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bookmarks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(bookmarksYAML), 0o644))
	return path
}

func TestImportHomepage_WithoutAI(t *testing.T) {
	a, _ := newTestApp(t, false)
	ctx := context.Background()

	res, err := a.ImportHomepage(ctx, writeYAML(t), 5, false)
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Created: 2, Skipped: 1}, res)

	list, err := a.Store().ListBookmarks(ctx, 5, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, b := range list {
		assert.Equal(t, domain.StatusSkipped, b.AIStatus)
		assert.Equal(t, []string{"developer"}, b.TagNames)
	}
}

func TestImportHomepage_WithAIEnqueues(t *testing.T) {
	a, _ := newTestApp(t, true)
	ctx := context.Background()

	res, err := a.ImportHomepage(ctx, writeYAML(t), 5, true)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 2, res.Enqueued)

	depth, err := a.queue.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), depth)
}

func TestImportHomepage_InvalidUser(t *testing.T) {
	a, _ := newTestApp(t, false)
	_, err := a.ImportHomepage(context.Background(), writeYAML(t), 0, false)
	assert.Error(t, err)
}

func TestEnqueue(t *testing.T) {
	a, _ := newTestApp(t, true)
	ctx := context.Background()
	st := a.Store()

	failed := domain.NewBookmark(1, "https://example.com", "", "", true)
	require.NoError(t, st.CreateBookmark(ctx, failed, nil))
	require.NoError(t, st.MarkProcessing(ctx, failed.ID))
	require.NoError(t, st.FailEnrichment(ctx, failed.ID, "ai: boom"))

	queued, err := a.Enqueue(ctx, failed.ID)
	require.NoError(t, err)
	assert.True(t, queued)

	got, err := st.GetBookmark(ctx, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.AIStatus)

	// the marker dedupes a second request
	queued, err = a.Enqueue(ctx, failed.ID)
	require.NoError(t, err)
	assert.False(t, queued)

	manual := domain.NewBookmark(1, "https://manual.example", "", "", false)
	require.NoError(t, st.CreateBookmark(ctx, manual, nil))
	_, err = a.Enqueue(ctx, manual.ID)
	assert.ErrorIs(t, err, ErrNotEnrichable)

	running := domain.NewBookmark(1, "https://running.example", "", "", true)
	require.NoError(t, st.CreateBookmark(ctx, running, nil))
	require.NoError(t, st.MarkProcessing(ctx, running.ID))
	_, err = a.Enqueue(ctx, running.ID)
	assert.ErrorIs(t, err, store.ErrStatusConflict)

	_, err = a.Enqueue(ctx, 999)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestEnqueue_RequiresQueue(t *testing.T) {
	a, _ := newTestApp(t, false)
	_, err := a.Enqueue(context.Background(), 1)
	assert.Error(t, err)
}

func TestNew_SQLiteAutoMigrate(t *testing.T) {
	cfg := &config.Config{
		DatabaseURL: "sqlite://" + filepath.Join(t.TempDir(), "marks.db"),
		AutoMigrate: true,
	}
	a, err := New(context.Background(), cfg, logger.NewNop(), Options{})
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	require.NoError(t, a.Store().Ping(ctx))

	b := domain.NewBookmark(1, "https://example.com", "", "", false)
	require.NoError(t, a.Store().CreateBookmark(ctx, b, nil))
	assert.NotZero(t, b.ID)
}

func TestRun_RequiresQueue(t *testing.T) {
	a, _ := newTestApp(t, false)
	assert.Error(t, a.Run(context.Background(), Mode{API: true}))
	assert.Error(t, a.Run(context.Background(), Mode{}))
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "api", Mode{API: true}.String())
	assert.Equal(t, "worker", Mode{Worker: true}.String())
	assert.Equal(t, "all-in-one", Mode{API: true, Worker: true}.String())
}
