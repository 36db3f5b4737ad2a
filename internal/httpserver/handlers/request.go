package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marks/internal/httpserver/mw"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/store"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
	maxBodyBytes    = 64 << 10
)

var errNotConfigured = errors.New("not configured")

// decodeBody reads one JSON object into v, rejecting unknown fields.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func bookmarkID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid bookmark id")
	}
	return id, nil
}

// page parses limit/offset query parameters.
func page(r *http.Request, def, maxLimit int) (limit, offset int, err error) {
	q := r.URL.Query()
	limit = def
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 1 {
			return 0, 0, errors.New("limit must be a positive integer")
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, errors.New("offset must be a non-negative integer")
		}
	}
	return limit, offset, nil
}

// writeStoreError maps repository errors onto HTTP statuses. Unknown errors
// are logged and hidden behind a 500.
func writeStoreError(w http.ResponseWriter, d deps.Deps, err error, msg string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		mw.WriteError(w, http.StatusNotFound, "bookmark not found")
	case errors.Is(err, store.ErrStatusConflict):
		mw.WriteError(w, http.StatusConflict, err.Error())
	default:
		d.Logger.Error(msg, logger.Error(err))
		mw.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
