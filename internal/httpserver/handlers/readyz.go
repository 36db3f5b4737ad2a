package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marks/internal/httpserver/mw"
	"github.com/MrSnakeDoc/marks/internal/logger"
)

const probeTimeout = 2 * time.Second

type readyzResponse struct {
	Ready  bool              `json:"ready"`
	Failed map[string]string `json:"failed,omitempty"`
}

// Readyz reports ready only when the database and the queue answer a ping.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		defer cancel()

		failed := map[string]string{}
		if err := pingStore(ctx, d); err != nil {
			failed["database"] = err.Error()
		}
		if err := pingQueue(ctx, d); err != nil {
			failed["redis"] = err.Error()
		}

		if len(failed) > 0 {
			d.Logger.Warn("readiness probe failed", logger.Int("components", len(failed)))
			mw.WriteJSON(w, http.StatusServiceUnavailable, readyzResponse{Ready: false, Failed: failed})
			return
		}
		mw.WriteJSON(w, http.StatusOK, readyzResponse{Ready: true})
	}
}

func pingStore(ctx context.Context, d deps.Deps) error {
	if d.Store == nil {
		return errNotConfigured
	}
	return d.Store.Ping(ctx)
}

func pingQueue(ctx context.Context, d deps.Deps) error {
	if d.Queue == nil {
		return errNotConfigured
	}
	return d.Queue.Ping(ctx)
}
