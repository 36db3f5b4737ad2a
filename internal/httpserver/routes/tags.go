package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marks/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/marks/internal/httpserver/mw"
)

func init() { Register(SurfaceAPI, registerTags, mw.RequireUser) }

func registerTags(r chi.Router, d deps.Deps) {
	r.Get("/api/v1/tags", handlers.ListTags(d))
	r.Get("/api/v1/tags/popular", handlers.PopularTags(d))
}
