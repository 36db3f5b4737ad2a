package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marks/internal/httpserver/mw"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/store"
)

type createBookmarkRequest struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	AIEnabled   *bool    `json:"ai_enabled"`
}

type replaceTagsRequest struct {
	Tags []string `json:"tags"`
}

type listBookmarksResponse struct {
	Bookmarks []*domain.Bookmark `json:"bookmarks"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
}

// CreateBookmark stores a bookmark with its payload tags. With AI enabled
// the bookmark starts PENDING and a job is enqueued; an enqueue failure is
// logged and left to the pending requeuer.
func CreateBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())

		var req createBookmarkRequest
		if err := decodeBody(r, &req); err != nil {
			mw.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		link := strings.TrimSpace(req.URL)
		if err := domain.ValidateURL(link); err != nil {
			mw.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		if len(req.Tags) > domain.MaxTagsPerRequest {
			mw.WriteError(w, http.StatusBadRequest, "too many tags")
			return
		}

		aiEnabled := d.AIDefaultOn
		if req.AIEnabled != nil {
			aiEnabled = *req.AIEnabled
		}

		tags, err := d.Tags.Resolve(r.Context(), req.Tags)
		if err != nil {
			writeStoreError(w, d, err, "failed to resolve tags")
			return
		}

		b := domain.NewBookmark(userID, link, strings.TrimSpace(req.Title), req.Description, aiEnabled)
		if err := d.Store.CreateBookmark(r.Context(), b, tags); err != nil {
			writeStoreError(w, d, err, "failed to create bookmark")
			return
		}

		if b.AIStatus == domain.StatusPending {
			enqueue(r.Context(), d, b, middleware.GetReqID(r.Context()))
		}

		mw.WriteJSON(w, http.StatusCreated, b)
	}
}

func ListBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())
		limit, offset, err := page(r, defaultPageSize, maxPageSize)
		if err != nil {
			mw.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		list, err := d.Store.ListBookmarks(r.Context(), userID, limit, offset)
		if err != nil {
			writeStoreError(w, d, err, "failed to list bookmarks")
			return
		}
		if list == nil {
			list = []*domain.Bookmark{}
		}
		mw.WriteJSON(w, http.StatusOK, listBookmarksResponse{Bookmarks: list, Limit: limit, Offset: offset})
	}
}

func GetBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, ok := ownedBookmark(w, r, d)
		if !ok {
			return
		}
		mw.WriteJSON(w, http.StatusOK, b)
	}
}

func DeleteBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())
		id, err := bookmarkID(r)
		if err != nil {
			mw.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := d.Store.DeleteBookmark(r.Context(), id, userID); err != nil {
			writeStoreError(w, d, err, "failed to delete bookmark")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ReplaceBookmarkTags swaps the whole tag set of an owned bookmark.
func ReplaceBookmarkTags(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, ok := ownedBookmark(w, r, d)
		if !ok {
			return
		}

		var req replaceTagsRequest
		if err := decodeBody(r, &req); err != nil {
			mw.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		if len(req.Tags) > domain.MaxTagsPerRequest {
			mw.WriteError(w, http.StatusBadRequest, "too many tags")
			return
		}

		if _, err := d.Tags.Reconcile(r.Context(), b.ID, req.Tags); err != nil {
			writeStoreError(w, d, err, "failed to replace tags")
			return
		}

		updated, err := d.Store.GetBookmark(r.Context(), b.ID)
		if err != nil {
			writeStoreError(w, d, err, "failed to reload bookmark")
			return
		}
		mw.WriteJSON(w, http.StatusOK, updated)
	}
}

// EnrichBookmark re-arms enrichment for a COMPLETED or FAILED bookmark and
// enqueues a job.
func EnrichBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, ok := ownedBookmark(w, r, d)
		if !ok {
			return
		}

		switch {
		case !b.AIEnabled:
			mw.WriteError(w, http.StatusUnprocessableEntity, "ai is disabled for this bookmark")
			return
		case !domain.CanTransition(b.AIStatus, domain.StatusPending):
			mw.WriteError(w, http.StatusConflict, "enrichment already in progress")
			return
		}

		if err := d.Store.MarkPending(r.Context(), b.ID); err != nil {
			writeStoreError(w, d, err, "failed to re-arm enrichment")
			return
		}
		b.AIStatus = domain.StatusPending
		b.AIError = ""

		enqueue(r.Context(), d, b, middleware.GetReqID(r.Context()))
		mw.WriteJSON(w, http.StatusAccepted, b)
	}
}

// ownedBookmark loads the {id} bookmark and hides foreign ones as 404.
func ownedBookmark(w http.ResponseWriter, r *http.Request, d deps.Deps) (*domain.Bookmark, bool) {
	userID, _ := mw.UserID(r.Context())
	id, err := bookmarkID(r)
	if err != nil {
		mw.WriteError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	b, err := d.Store.GetBookmark(r.Context(), id)
	if err == nil && !b.OwnedBy(userID) {
		err = store.ErrNotFound
	}
	if err != nil {
		writeStoreError(w, d, err, "failed to load bookmark")
		return nil, false
	}
	return b, true
}

func enqueue(ctx context.Context, d deps.Deps, b *domain.Bookmark, correlationID string) {
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	log := d.Logger.With(
		logger.Int64("bookmark_id", b.ID),
		logger.Int64("user_id", b.UserID),
		logger.String("correlation_id", correlationID))

	if d.Queue == nil {
		log.Warn("no queue configured, bookmark left for the requeuer")
		return
	}
	queued, err := d.Queue.Enqueue(ctx, domain.NewJob(b.ID, b.UserID, correlationID))
	if err != nil {
		log.Warn("failed to enqueue enrichment job", logger.Error(err))
		return
	}
	if !queued {
		log.Debug("enrichment job already queued")
	}
}
