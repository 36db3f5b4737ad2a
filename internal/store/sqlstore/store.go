package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/store"
)

// maxEnsureAttempts bounds the insert-then-lookup loop in EnsureTag.
const maxEnsureAttempts = 3

const bookmarkColumns = `id, user_id, url, title, COALESCE(description, '') AS description,
	favorite, view_count, ai_enabled, ai_status, COALESCE(ai_error, '') AS ai_error,
	created_at, updated_at`

// Store is the SQL implementation of store.Store.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// New wraps an open connection.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }

// ─────────────────────────────
// Bookmarks (CRUD path)
// ─────────────────────────────

func (s *Store) CreateBookmark(ctx context.Context, b *domain.Bookmark, tags []domain.Tag) error {
	if b.AIEnabled {
		if b.AIStatus == "" || b.AIStatus == domain.StatusSkipped {
			b.AIStatus = domain.StatusPending
		}
	} else {
		b.AIStatus = domain.StatusSkipped
	}
	now := s.now()
	b.CreatedAt, b.UpdatedAt = now, now
	b.Title = domain.ClampTitle(b.Title)

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		q := tx.Rebind(`INSERT INTO bookmarks
			(user_id, url, title, description, favorite, view_count, ai_enabled, ai_status, ai_error, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?)
			RETURNING id`)
		if err := tx.QueryRowxContext(ctx, q,
			b.UserID, b.URL, b.Title, nullIfEmpty(b.Description), b.Favorite, b.ViewCount,
			b.AIEnabled, b.AIStatus, b.CreatedAt, b.UpdatedAt,
		).Scan(&b.ID); err != nil {
			return fmt.Errorf("failed to insert bookmark: %w", err)
		}

		if err := insertLinks(ctx, tx, b.ID, tags); err != nil {
			return err
		}
		b.TagNames = tagNames(tags)
		return nil
	})
}

func (s *Store) GetBookmark(ctx context.Context, id int64) (*domain.Bookmark, error) {
	var b domain.Bookmark
	q := s.db.Rebind(`SELECT ` + bookmarkColumns + ` FROM bookmarks WHERE id = ?`)
	if err := s.db.GetContext(ctx, &b, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get bookmark: %w", err)
	}

	list := []*domain.Bookmark{&b}
	if err := s.attachTags(ctx, list); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) ListBookmarks(ctx context.Context, userID int64, limit, offset int) ([]*domain.Bookmark, error) {
	var list []*domain.Bookmark
	q := s.db.Rebind(`SELECT ` + bookmarkColumns + ` FROM bookmarks
		WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`)
	if err := s.db.SelectContext(ctx, &list, q, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	if err := s.attachTags(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Store) DeleteBookmark(ctx context.Context, id, userID int64) error {
	q := s.db.Rebind(`DELETE FROM bookmarks WHERE id = ? AND user_id = ?`)
	result, err := s.db.ExecContext(ctx, q, id, userID)
	return execRequireRows(result, err, store.ErrNotFound)
}

// ─────────────────────────────
// Enrichment transitions
// ─────────────────────────────

func (s *Store) MarkProcessing(ctx context.Context, id int64) error {
	guard, from := statusGuard(domain.StatusProcessing)
	q := s.db.Rebind(`UPDATE bookmarks SET ai_status = ?, updated_at = ?
		WHERE id = ? AND ai_enabled = ? AND ` + guard)
	args := append([]any{domain.StatusProcessing, s.now(), id, true}, from...)
	result, err := s.db.ExecContext(ctx, q, args...)
	return s.transitionResult(ctx, id, result, err)
}

func (s *Store) CompleteEnrichment(ctx context.Context, id int64, e store.Enrichment) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		guard, from := statusGuard(domain.StatusCompleted)
		q := tx.Rebind(`UPDATE bookmarks
			SET title = ?, description = ?, ai_status = ?, ai_error = NULL, updated_at = ?
			WHERE id = ? AND ` + guard)
		args := append([]any{domain.ClampTitle(e.Title), e.Description, domain.StatusCompleted, s.now(), id}, from...)
		result, err := tx.ExecContext(ctx, q, args...)
		if err := s.transitionResultTx(ctx, tx, id, result, err); err != nil {
			return err
		}
		return replaceLinks(ctx, tx, id, e.Tags)
	})
}

func (s *Store) FailEnrichment(ctx context.Context, id int64, aiError string) error {
	guard, from := statusGuard(domain.StatusFailed)
	q := s.db.Rebind(`UPDATE bookmarks SET ai_status = ?, ai_error = ?, description = ?, updated_at = ?
		WHERE id = ? AND ` + guard)
	args := append([]any{domain.StatusFailed, domain.TruncateMessage(aiError), domain.FailedDescription, s.now(), id}, from...)
	result, err := s.db.ExecContext(ctx, q, args...)
	return s.transitionResult(ctx, id, result, err)
}

func (s *Store) MarkPending(ctx context.Context, id int64) error {
	guard, from := statusGuard(domain.StatusPending)
	q := s.db.Rebind(`UPDATE bookmarks SET ai_status = ?, ai_error = NULL, updated_at = ?
		WHERE id = ? AND ai_enabled = ? AND ` + guard)
	args := append([]any{domain.StatusPending, s.now(), id, true}, from...)
	result, err := s.db.ExecContext(ctx, q, args...)
	return s.transitionResult(ctx, id, result, err)
}

func (s *Store) ExpireProcessing(ctx context.Context, id int64, cutoff time.Time, aiError string) (bool, error) {
	guard, from := statusGuard(domain.StatusFailed)
	q := s.db.Rebind(`UPDATE bookmarks SET ai_status = ?, ai_error = ?, description = ?, updated_at = ?
		WHERE id = ? AND updated_at < ? AND ` + guard)
	args := append([]any{domain.StatusFailed, domain.TruncateMessage(aiError), domain.FailedDescription, s.now(),
		id, cutoff.UTC()}, from...)
	result, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("failed to expire bookmark %d: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) ListByStatus(ctx context.Context, status domain.AIStatus, before time.Time, limit int) ([]*domain.Bookmark, error) {
	var list []*domain.Bookmark
	q := s.db.Rebind(`SELECT ` + bookmarkColumns + ` FROM bookmarks
		WHERE ai_status = ? AND updated_at < ? ORDER BY updated_at ASC, id ASC LIMIT ?`)
	if err := s.db.SelectContext(ctx, &list, q, status, before.UTC(), limit); err != nil {
		return nil, fmt.Errorf("failed to list bookmarks by status: %w", err)
	}
	if err := s.attachTags(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Store) ReplaceBookmarkTags(ctx context.Context, id int64, tags []domain.Tag) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		q := tx.Rebind(`UPDATE bookmarks SET updated_at = ? WHERE id = ?`)
		result, err := tx.ExecContext(ctx, q, s.now(), id)
		if err := execRequireRows(result, err, store.ErrNotFound); err != nil {
			return err
		}
		return replaceLinks(ctx, tx, id, tags)
	})
}

// ─────────────────────────────
// Tags
// ─────────────────────────────

// EnsureTag inserts name if absent and reads it back. A lost race shows up
// either as "0 rows inserted" or as a unique violation; both fall through
// to the lookup. name must already be normalized.
func (s *Store) EnsureTag(ctx context.Context, name string) (domain.Tag, error) {
	if name == "" {
		return domain.Tag{}, errors.New("tag name must not be empty")
	}

	insert := s.db.Rebind(`INSERT INTO tags (name, created_at) VALUES (?, ?) ON CONFLICT (name) DO NOTHING`)
	lookup := s.db.Rebind(`SELECT id, name, created_at FROM tags WHERE name = ?`)

	var lastErr error
	for attempt := 1; attempt <= maxEnsureAttempts; attempt++ {
		if _, err := s.db.ExecContext(ctx, insert, name, s.now()); err != nil {
			if !isUniqueViolation(err) && !isBusy(err) {
				return domain.Tag{}, fmt.Errorf("failed to insert tag %q: %w", name, err)
			}
			lastErr = err
		}

		var tag domain.Tag
		err := s.db.GetContext(ctx, &tag, lookup, name)
		if err == nil {
			return tag, nil
		}
		if !errors.Is(err, sql.ErrNoRows) && !isBusy(err) {
			return domain.Tag{}, fmt.Errorf("failed to look up tag %q: %w", name, err)
		}
		lastErr = err
	}

	return domain.Tag{}, &domain.ConflictError{Name: name, Err: lastErr}
}

func (s *Store) ListUserTags(ctx context.Context, userID int64, limit, offset int) ([]domain.TagCount, error) {
	var out []domain.TagCount
	q := s.db.Rebind(`SELECT t.id, t.name, t.created_at, COUNT(bt.bookmark_id) AS bookmark_count
		FROM tags t
		JOIN bookmark_tags bt ON bt.tag_id = t.id
		JOIN bookmarks b ON b.id = bt.bookmark_id
		WHERE b.user_id = ?
		GROUP BY t.id, t.name, t.created_at
		ORDER BY bookmark_count DESC, t.name ASC
		LIMIT ? OFFSET ?`)
	if err := s.db.SelectContext(ctx, &out, q, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list user tags: %w", err)
	}
	return out, nil
}

func (s *Store) PopularTags(ctx context.Context, limit int) ([]domain.TagCount, error) {
	var out []domain.TagCount
	q := s.db.Rebind(`SELECT t.id, t.name, t.created_at, COUNT(bt.bookmark_id) AS bookmark_count
		FROM tags t
		JOIN bookmark_tags bt ON bt.tag_id = t.id
		GROUP BY t.id, t.name, t.created_at
		ORDER BY bookmark_count DESC, t.name ASC
		LIMIT ?`)
	if err := s.db.SelectContext(ctx, &out, q, limit); err != nil {
		return nil, fmt.Errorf("failed to list popular tags: %w", err)
	}
	return out, nil
}

// ─────────────────────────────
// helpers
// ─────────────────────────────

func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// transitionResult turns "0 rows updated" into ErrNotFound or ErrStatusConflict.
func (s *Store) transitionResult(ctx context.Context, id int64, result sql.Result, err error) error {
	return s.classifyMiss(ctx, s.db, id, result, err)
}

func (s *Store) transitionResultTx(ctx context.Context, tx *sqlx.Tx, id int64, result sql.Result, err error) error {
	return s.classifyMiss(ctx, tx, id, result, err)
}

func (s *Store) classifyMiss(ctx context.Context, q sqlx.QueryerContext, id int64, result sql.Result, err error) error {
	if err != nil {
		return fmt.Errorf("failed to update bookmark %d: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var status string
	if err := sqlx.GetContext(ctx, q, &status, s.db.Rebind(`SELECT ai_status FROM bookmarks WHERE id = ?`), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return fmt.Errorf("failed to read bookmark %d status: %w", id, err)
	}
	return fmt.Errorf("%w: bookmark %d is %s", store.ErrStatusConflict, id, status)
}

// attachTags loads TagNames for every bookmark in one query.
func (s *Store) attachTags(ctx context.Context, list []*domain.Bookmark) error {
	if len(list) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(list))
	byID := make(map[int64]*domain.Bookmark, len(list))
	for _, b := range list {
		b.TagNames = []string{}
		ids = append(ids, b.ID)
		byID[b.ID] = b
	}

	query, args, err := sqlx.In(`SELECT bt.bookmark_id, t.name
		FROM bookmark_tags bt JOIN tags t ON t.id = bt.tag_id
		WHERE bt.bookmark_id IN (?) ORDER BY t.name`, ids)
	if err != nil {
		return fmt.Errorf("failed to build tag query: %w", err)
	}

	var rows []struct {
		BookmarkID int64  `db:"bookmark_id"`
		Name       string `db:"name"`
	}
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to load bookmark tags: %w", err)
	}
	for _, r := range rows {
		if b := byID[r.BookmarkID]; b != nil {
			b.TagNames = append(b.TagNames, r.Name)
		}
	}
	return nil
}

// statusGuard renders an "ai_status IN (...)" clause and its arguments for
// every status domain.CanTransition allows to move to to.
func statusGuard(to domain.AIStatus) (string, []any) {
	from := domain.SourcesOf(to)
	args := make([]any, len(from))
	for i, st := range from {
		args[i] = st
	}
	return "ai_status IN (?" + strings.Repeat(", ?", len(from)-1) + ")", args
}

func replaceLinks(ctx context.Context, tx *sqlx.Tx, bookmarkID int64, tags []domain.Tag) error {
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM bookmark_tags WHERE bookmark_id = ?`), bookmarkID); err != nil {
		return fmt.Errorf("failed to detach tags: %w", err)
	}
	return insertLinks(ctx, tx, bookmarkID, tags)
}

func insertLinks(ctx context.Context, tx *sqlx.Tx, bookmarkID int64, tags []domain.Tag) error {
	q := tx.Rebind(`INSERT INTO bookmark_tags (bookmark_id, tag_id) VALUES (?, ?) ON CONFLICT DO NOTHING`)
	for _, t := range tags {
		if _, err := tx.ExecContext(ctx, q, bookmarkID, t.ID); err != nil {
			return fmt.Errorf("failed to attach tag %q: %w", t.Name, err)
		}
	}
	return nil
}

// execRequireRows validates that an ExecContext result affected at least one row.
func execRequireRows(result sql.Result, err, notFoundErr error) error {
	if err != nil {
		return err
	}
	n, affectedErr := result.RowsAffected()
	if affectedErr != nil {
		return affectedErr
	}
	if n == 0 {
		return notFoundErr
	}
	return nil
}

func tagNames(tags []domain.Tag) []string {
	names := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if _, dup := seen[t.Name]; dup {
			continue
		}
		seen[t.Name] = struct{}{}
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

func isBusy(err error) bool {
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code() & 0xff
		return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
	}
	return false
}
