package handlers

import (
	"context"
	"net/http"

	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marks/internal/httpserver/mw"
)

type componentStatus struct {
	OK     bool   `json:"ok"`
	Mode   string `json:"mode,omitempty"`
	Impact string `json:"impact,omitempty"`
	Depth  *int64 `json:"depth,omitempty"`
	Error  string `json:"error,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

// Infra describes each component and the resulting service mode:
// "operational", "degraded" (queue down, new bookmarks wait for the
// requeuer) or "critical" (database down).
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		defer cancel()

		components := map[string]componentStatus{
			"database": checkDatabase(ctx, d),
			"queue":    checkQueue(ctx, d),
			"requeuer": {
				OK:   d.RequeueTrigger != nil,
				Mode: requeuerMode(d),
			},
		}

		mw.WriteJSON(w, http.StatusOK, infraResponse{
			Mode:       determineMode(components),
			Components: components,
		})
	}
}

func determineMode(components map[string]componentStatus) string {
	if db, ok := components["database"]; ok && !db.OK {
		return "critical"
	}
	if q, ok := components["queue"]; ok && !q.OK {
		return "degraded"
	}
	return "operational"
}

func checkDatabase(ctx context.Context, d deps.Deps) componentStatus {
	if err := pingStore(ctx, d); err != nil {
		return componentStatus{OK: false, Impact: "bookmarks-unavailable", Error: err.Error()}
	}
	return componentStatus{OK: true}
}

func checkQueue(ctx context.Context, d deps.Deps) componentStatus {
	if d.Queue == nil {
		return componentStatus{OK: false, Impact: "enrichment-deferred", Error: errNotConfigured.Error()}
	}
	depth, err := d.Queue.Depth(ctx)
	if err != nil {
		return componentStatus{OK: false, Impact: "enrichment-deferred", Error: err.Error()}
	}
	return componentStatus{OK: true, Depth: &depth}
}

func requeuerMode(d deps.Deps) string {
	if d.RequeueTrigger == nil {
		return "external"
	}
	return "local"
}
