package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marks/internal/httpserver/mw"
	"github.com/MrSnakeDoc/marks/internal/logger"
)

type requeueResponse struct {
	Triggered bool `json:"triggered"`
}

// Requeue asks the pending requeuer for an immediate pass.
func Requeue(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.RequeueTrigger == nil {
			mw.WriteError(w, http.StatusServiceUnavailable, "no requeuer runs in this process")
			return
		}

		select {
		case d.RequeueTrigger <- struct{}{}:
			d.Logger.Info("manual requeue triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			mw.WriteJSON(w, http.StatusAccepted, requeueResponse{Triggered: true})
		default:
			d.Logger.Warn("requeue already in progress",
				logger.String("remote_ip", r.RemoteAddr))
			mw.WriteJSON(w, http.StatusTooManyRequests, requeueResponse{Triggered: false})
		}
	}
}
