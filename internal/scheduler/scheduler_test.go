package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/store/memstore"
)

func seed(t *testing.T, m *memstore.MemoryStore, status domain.AIStatus, age time.Duration) *domain.Bookmark {
	t.Helper()
	ctx := context.Background()

	b := domain.NewBookmark(1, "https://example.com", "", "", true)
	if err := m.CreateBookmark(ctx, b, nil); err != nil {
		t.Fatalf("CreateBookmark: %v", err)
	}
	if status == domain.StatusProcessing {
		if err := m.MarkProcessing(ctx, b.ID); err != nil {
			t.Fatalf("MarkProcessing: %v", err)
		}
	}
	m.SetUpdatedAt(b.ID, time.Now().Add(-age))
	return b
}

func TestStaleReaper_Reap(t *testing.T) {
	log := logger.New("error", false)
	m := memstore.New()

	fresh := seed(t, m, domain.StatusProcessing, time.Minute)
	stuck := seed(t, m, domain.StatusProcessing, time.Hour)
	pending := seed(t, m, domain.StatusPending, time.Hour)

	sr := NewStaleReaper(m, log, time.Hour, 15*time.Minute)

	reaped, err := sr.Reap(context.Background())
	if err != nil {
		t.Fatalf("Reap failed: %v", err)
	}
	if reaped != 1 {
		t.Errorf("Expected 1 reaped bookmark, got %d", reaped)
	}

	tests := []struct {
		name string
		id   int64
		want domain.AIStatus
	}{
		{"fresh processing untouched", fresh.ID, domain.StatusProcessing},
		{"stuck processing failed", stuck.ID, domain.StatusFailed},
		{"pending untouched", pending.ID, domain.StatusPending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.GetBookmark(context.Background(), tt.id)
			if err != nil {
				t.Fatalf("GetBookmark: %v", err)
			}
			if got.AIStatus != tt.want {
				t.Errorf("status = %s, want %s", got.AIStatus, tt.want)
			}
		})
	}

	got, _ := m.GetBookmark(context.Background(), stuck.ID)
	if got.Description != domain.FailedDescription || got.AIError == "" {
		t.Errorf("reaped bookmark missing failure details: %+v", got)
	}

	// second sweep is a no-op
	if reaped, _ := sr.Reap(context.Background()); reaped != 0 {
		t.Errorf("Expected idempotent sweep, reaped %d", reaped)
	}
}

type fakeQueue struct {
	mu     sync.Mutex
	queued map[int64]bool
	err    error
}

func (f *fakeQueue) Enqueue(_ context.Context, job domain.Job) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.queued[job.BookmarkID] {
		return false, nil
	}
	f.queued[job.BookmarkID] = true
	return true, nil
}

func (f *fakeQueue) has(id int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queued[id]
}

func TestPendingRequeuer_Requeue(t *testing.T) {
	log := logger.New("error", false)
	m := memstore.New()
	q := &fakeQueue{queued: map[int64]bool{}}

	recent := seed(t, m, domain.StatusPending, time.Minute)
	old := seed(t, m, domain.StatusPending, time.Hour)
	running := seed(t, m, domain.StatusProcessing, time.Hour)

	pr := NewPendingRequeuer(m, q, log, time.Hour, 10*time.Minute, nil)

	n, err := pr.Requeue(context.Background())
	if err != nil {
		t.Fatalf("Requeue failed: %v", err)
	}
	if n != 1 || !q.has(old.ID) {
		t.Errorf("Expected only the old pending bookmark requeued, got %d", n)
	}
	if q.has(recent.ID) || q.has(running.ID) {
		t.Error("Requeued a bookmark that should have been left alone")
	}

	if n, _ := pr.Requeue(context.Background()); n != 0 {
		t.Errorf("Expected dedupe on second sweep, got %d", n)
	}
}

func TestPendingRequeuer_QueueError(t *testing.T) {
	m := memstore.New()
	seed(t, m, domain.StatusPending, time.Hour)

	pr := NewPendingRequeuer(m, &fakeQueue{err: errors.New("redis down")}, logger.NewNop(), time.Hour, time.Minute, nil)
	if _, err := pr.Requeue(context.Background()); err == nil {
		t.Fatal("Expected error when the queue is unavailable")
	}
}

func TestPendingRequeuer_ManualTrigger(t *testing.T) {
	m := memstore.New()
	q := &fakeQueue{queued: map[int64]bool{}}
	trigger := make(chan struct{}, 1)

	pr := NewPendingRequeuer(m, q, logger.NewNop(), time.Hour, 10*time.Minute, trigger)
	if err := pr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer pr.Stop()

	b := seed(t, m, domain.StatusPending, time.Hour)
	trigger <- struct{}{}

	deadline := time.Now().Add(2 * time.Second)
	for !q.has(b.ID) {
		if time.Now().After(deadline) {
			t.Fatal("manual trigger did not requeue the bookmark")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
