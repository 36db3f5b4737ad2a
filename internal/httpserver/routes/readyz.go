package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marks/internal/httpserver/handlers"
)

func init() { Register(SurfaceOps, registerReadyz) }

func registerReadyz(r chi.Router, d deps.Deps) {
	opsGuard(r, d).Get("/readyz", handlers.Readyz(d))
}
