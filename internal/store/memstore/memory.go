package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/store"
)

// MemoryStore is an in-process store.Store. It backs "memory://" databases
// and the tests of the packages above storage. Every read returns a copy.
type MemoryStore struct {
	mu        sync.RWMutex
	bookmarks map[int64]*domain.Bookmark   // ID -> Bookmark (TagNames unused)
	links     map[int64]map[int64]struct{} // bookmark ID -> tag IDs
	tags      map[int64]domain.Tag         // ID -> Tag
	tagByName map[string]int64             // name -> ID
	nextID    int64
	nextTagID int64
	now       func() time.Time
}

var _ store.Store = (*MemoryStore)(nil)

// New creates an empty memory store
func New() *MemoryStore {
	return &MemoryStore{
		bookmarks: make(map[int64]*domain.Bookmark),
		links:     make(map[int64]map[int64]struct{}),
		tags:      make(map[int64]domain.Tag),
		tagByName: make(map[string]int64),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

// ─────────────────────────────────────────────────────────────────
// Bookmark methods
// ─────────────────────────────────────────────────────────────────

// CreateBookmark stores a copy of b and links tags
func (m *MemoryStore) CreateBookmark(_ context.Context, b *domain.Bookmark, tags []domain.Tag) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range tags {
		if _, ok := m.tags[t.ID]; !ok {
			return fmt.Errorf("unknown tag %d (%q)", t.ID, t.Name)
		}
	}

	if b.AIEnabled {
		if b.AIStatus == "" || b.AIStatus == domain.StatusSkipped {
			b.AIStatus = domain.StatusPending
		}
	} else {
		b.AIStatus = domain.StatusSkipped
	}

	m.nextID++
	now := m.now()
	b.ID = m.nextID
	b.CreatedAt, b.UpdatedAt = now, now
	b.Title = domain.ClampTitle(b.Title)
	b.AIError = ""

	stored := *b
	stored.TagNames = nil
	m.bookmarks[b.ID] = &stored
	m.setLinks(b.ID, tags)

	b.TagNames = m.tagNamesOf(b.ID)
	return nil
}

// GetBookmark retrieves a bookmark by ID
func (m *MemoryStore) GetBookmark(_ context.Context, id int64) (*domain.Bookmark, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.bookmarks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return m.materialize(b), nil
}

// ListBookmarks returns a page of a user's bookmarks, newest first
func (m *MemoryStore) ListBookmarks(_ context.Context, userID int64, limit, offset int) ([]*domain.Bookmark, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var owned []*domain.Bookmark
	for _, b := range m.bookmarks {
		if b.UserID == userID {
			owned = append(owned, b)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		if !owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
			return owned[i].CreatedAt.After(owned[j].CreatedAt)
		}
		return owned[i].ID > owned[j].ID
	})

	return m.page(owned, limit, offset), nil
}

// DeleteBookmark removes an owned bookmark and its links
func (m *MemoryStore) DeleteBookmark(_ context.Context, id, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookmarks[id]
	if !ok || b.UserID != userID {
		return store.ErrNotFound
	}
	delete(m.bookmarks, id)
	delete(m.links, id)
	return nil
}

func (m *MemoryStore) MarkProcessing(_ context.Context, id int64) error {
	return m.transition(id, domain.StatusProcessing, func(*domain.Bookmark) {})
}

func (m *MemoryStore) CompleteEnrichment(_ context.Context, id int64, e store.Enrichment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range e.Tags {
		if _, ok := m.tags[t.ID]; !ok {
			return fmt.Errorf("unknown tag %d (%q)", t.ID, t.Name)
		}
	}

	return m.transitionLocked(id, domain.StatusCompleted, func(b *domain.Bookmark) {
		b.Title = domain.ClampTitle(e.Title)
		b.Description = e.Description
		b.AIError = ""
		m.setLinks(id, e.Tags)
	})
}

func (m *MemoryStore) FailEnrichment(_ context.Context, id int64, aiError string) error {
	return m.transition(id, domain.StatusFailed, func(b *domain.Bookmark) {
		b.AIError = domain.TruncateMessage(aiError)
		b.Description = domain.FailedDescription
	})
}

func (m *MemoryStore) MarkPending(_ context.Context, id int64) error {
	return m.transition(id, domain.StatusPending, func(b *domain.Bookmark) {
		b.AIError = ""
	})
}

func (m *MemoryStore) ExpireProcessing(_ context.Context, id int64, cutoff time.Time, aiError string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookmarks[id]
	if !ok || !domain.CanTransition(b.AIStatus, domain.StatusFailed) || !b.UpdatedAt.Before(cutoff) {
		return false, nil
	}
	b.AIStatus = domain.StatusFailed
	b.AIError = domain.TruncateMessage(aiError)
	b.Description = domain.FailedDescription
	b.UpdatedAt = m.now()
	return true, nil
}

func (m *MemoryStore) ListByStatus(_ context.Context, status domain.AIStatus, before time.Time, limit int) ([]*domain.Bookmark, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*domain.Bookmark
	for _, b := range m.bookmarks {
		if b.AIStatus == status && b.UpdatedAt.Before(before) {
			matched = append(matched, b)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return matched[i].UpdatedAt.Before(matched[j].UpdatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	return m.page(matched, limit, 0), nil
}

func (m *MemoryStore) ReplaceBookmarkTags(_ context.Context, id int64, tags []domain.Tag) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookmarks[id]
	if !ok {
		return store.ErrNotFound
	}
	for _, t := range tags {
		if _, ok := m.tags[t.ID]; !ok {
			return fmt.Errorf("unknown tag %d (%q)", t.ID, t.Name)
		}
	}
	m.setLinks(id, tags)
	b.UpdatedAt = m.now()
	return nil
}

// ─────────────────────────────────────────────────────────────────
// Tag methods
// ─────────────────────────────────────────────────────────────────

// EnsureTag returns the tag named name, creating it under the write lock
func (m *MemoryStore) EnsureTag(_ context.Context, name string) (domain.Tag, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Tag{}, fmt.Errorf("tag name must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.tagByName[name]; ok {
		return m.tags[id], nil
	}
	m.nextTagID++
	tag := domain.Tag{ID: m.nextTagID, Name: name, CreatedAt: m.now()}
	m.tags[tag.ID] = tag
	m.tagByName[name] = tag.ID
	return tag, nil
}

func (m *MemoryStore) ListUserTags(_ context.Context, userID int64, limit, offset int) ([]domain.TagCount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.countTags(func(b *domain.Bookmark) bool { return b.UserID == userID }, limit, offset), nil
}

func (m *MemoryStore) PopularTags(_ context.Context, limit int) ([]domain.TagCount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.countTags(func(*domain.Bookmark) bool { return true }, limit, 0), nil
}

// TagCount returns the number of tags ever created
func (m *MemoryStore) TagCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.tags)
}

// SetUpdatedAt backdates a bookmark; used to exercise time-based sweeps
func (m *MemoryStore) SetUpdatedAt(id int64, t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.bookmarks[id]; ok {
		b.UpdatedAt = t
	}
}

// ─────────────────────────────────────────────────────────────────
// helpers (caller holds the lock)
// ─────────────────────────────────────────────────────────────────

func (m *MemoryStore) transition(id int64, to domain.AIStatus, apply func(b *domain.Bookmark)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.transitionLocked(id, to, apply)
}

// transitionLocked moves an AI-enabled bookmark to status to when
// domain.CanTransition allows it, then applies the remaining field changes.
func (m *MemoryStore) transitionLocked(id int64, to domain.AIStatus, apply func(b *domain.Bookmark)) error {
	b, ok := m.bookmarks[id]
	if !ok {
		return store.ErrNotFound
	}
	if !b.AIEnabled || !domain.CanTransition(b.AIStatus, to) {
		return fmt.Errorf("%w: bookmark %d is %s", store.ErrStatusConflict, id, b.AIStatus)
	}
	b.AIStatus = to
	apply(b)
	b.UpdatedAt = m.now()
	return nil
}

func (m *MemoryStore) setLinks(id int64, tags []domain.Tag) {
	set := make(map[int64]struct{}, len(tags))
	for _, t := range tags {
		set[t.ID] = struct{}{}
	}
	m.links[id] = set
}

func (m *MemoryStore) tagNamesOf(id int64) []string {
	names := make([]string, 0, len(m.links[id]))
	for tagID := range m.links[id] {
		names = append(names, m.tags[tagID].Name)
	}
	sort.Strings(names)
	return names
}

func (m *MemoryStore) materialize(b *domain.Bookmark) *domain.Bookmark {
	out := *b
	out.TagNames = m.tagNamesOf(b.ID)
	return &out
}

func (m *MemoryStore) page(list []*domain.Bookmark, limit, offset int) []*domain.Bookmark {
	if offset >= len(list) {
		return []*domain.Bookmark{}
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	out := make([]*domain.Bookmark, 0, len(list))
	for _, b := range list {
		out = append(out, m.materialize(b))
	}
	return out
}

func (m *MemoryStore) countTags(include func(*domain.Bookmark) bool, limit, offset int) []domain.TagCount {
	counts := make(map[int64]int64)
	for id, set := range m.links {
		b, ok := m.bookmarks[id]
		if !ok || !include(b) {
			continue
		}
		for tagID := range set {
			counts[tagID]++
		}
	}

	out := make([]domain.TagCount, 0, len(counts))
	for tagID, n := range counts {
		out = append(out, domain.TagCount{Tag: m.tags[tagID], Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})

	if offset >= len(out) {
		return []domain.TagCount{}
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}
