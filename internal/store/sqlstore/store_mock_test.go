package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/store"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	s := New(sqlx.NewDb(mockDB, "postgres"))
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return s, mock
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureTagUniqueViolationFallsBackToLookup(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO tags`).
		WithArgs("go", sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectQuery(`SELECT id, name, created_at FROM tags WHERE name = \$1`).
		WithArgs("go").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_at"}).AddRow(int64(9), "go", time.Now()))

	tag, err := s.EnsureTag(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, int64(9), tag.ID)
	expectationsMet(t, mock)
}

func TestEnsureTagGivesUpAfterBoundedAttempts(t *testing.T) {
	s, mock := newMockStore(t)

	for i := 0; i < maxEnsureAttempts; i++ {
		mock.ExpectExec(`INSERT INTO tags`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT id, name, created_at FROM tags`).WillReturnError(sql.ErrNoRows)
	}

	_, err := s.EnsureTag(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))
	expectationsMet(t, mock)
}

func TestEnsureTagPropagatesDriverError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO tags`).WillReturnError(errors.New("connection reset"))

	_, err := s.EnsureTag(context.Background(), "go")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, domain.KindInternal, domain.KindOf(err))
	expectationsMet(t, mock)
}

func TestCompleteEnrichmentRollsBackOnLinkFailure(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE bookmarks\s+SET title = \$1`).
		WithArgs("T", "D", domain.StatusCompleted, sqlmock.AnyArg(), int64(5), domain.StatusProcessing).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM bookmark_tags WHERE bookmark_id = \$1`).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`INSERT INTO bookmark_tags`).
		WithArgs(int64(5), int64(1)).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.CompleteEnrichment(context.Background(), 5, store.Enrichment{
		Title:       "T",
		Description: "D",
		Tags:        []domain.Tag{{ID: 1, Name: "go"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	expectationsMet(t, mock)
}

func TestFailEnrichmentStatusConflict(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE bookmarks SET ai_status = \$1, ai_error = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT ai_status FROM bookmarks WHERE id = \$1`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"ai_status"}).AddRow("COMPLETED"))

	err := s.FailEnrichment(context.Background(), 5, "boom")
	assert.ErrorIs(t, err, store.ErrStatusConflict)
	expectationsMet(t, mock)
}

func TestMarkProcessingMissingRow(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE bookmarks SET ai_status = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT ai_status FROM bookmarks`).
		WillReturnError(sql.ErrNoRows)

	assert.ErrorIs(t, s.MarkProcessing(context.Background(), 5), store.ErrNotFound)
	expectationsMet(t, mock)
}

func TestExecRequireRows(t *testing.T) {
	sentinel := errors.New("missing")

	assert.ErrorIs(t, execRequireRows(sqlmock.NewResult(0, 0), nil, sentinel), sentinel)
	assert.NoError(t, execRequireRows(sqlmock.NewResult(0, 1), nil, sentinel))

	boom := errors.New("boom")
	assert.ErrorIs(t, execRequireRows(nil, boom, sentinel), boom)
	assert.ErrorIs(t, execRequireRows(sqlmock.NewErrorResult(boom), nil, sentinel), boom)
}
