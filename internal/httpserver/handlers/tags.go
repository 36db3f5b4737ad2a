package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marks/internal/httpserver/mw"
)

const (
	defaultPopularTags = 20
	maxPopularTags     = 100
)

type tagsResponse struct {
	Tags []domain.TagCount `json:"tags"`
}

// ListTags returns the caller's tags with per-tag bookmark counts.
func ListTags(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := mw.UserID(r.Context())
		limit, offset, err := page(r, defaultPageSize, maxPageSize)
		if err != nil {
			mw.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		list, err := d.Store.ListUserTags(r.Context(), userID, limit, offset)
		if err != nil {
			writeStoreError(w, d, err, "failed to list tags")
			return
		}
		writeTags(w, list)
	}
}

// PopularTags returns the most attached tags across all users.
func PopularTags(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _, err := page(r, defaultPopularTags, maxPopularTags)
		if err != nil {
			mw.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		list, err := d.Store.PopularTags(r.Context(), limit)
		if err != nil {
			writeStoreError(w, d, err, "failed to list popular tags")
			return
		}
		writeTags(w, list)
	}
}

func writeTags(w http.ResponseWriter, list []domain.TagCount) {
	if list == nil {
		list = []domain.TagCount{}
	}
	mw.WriteJSON(w, http.StatusOK, tagsResponse{Tags: list})
}
