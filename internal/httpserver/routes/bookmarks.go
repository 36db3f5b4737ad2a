package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marks/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/marks/internal/httpserver/mw"
)

func init() { Register(SurfaceAPI, registerBookmarks, mw.RequireUser) }

func registerBookmarks(r chi.Router, d deps.Deps) {
	limit := mw.RateLimit(mw.RateLimitConfig{
		Burst:        d.RateLimitBurst,
		RefillPerMin: d.RateLimitRefillPerMin,
		MaxEntries:   10000,
		TrustProxy:   d.TrustProxy,
	})

	r.With(limit).Post("/api/v1/bookmarks", handlers.CreateBookmark(d))
	r.Get("/api/v1/bookmarks", handlers.ListBookmarks(d))
	r.Get("/api/v1/bookmarks/{id}", handlers.GetBookmark(d))
	r.Delete("/api/v1/bookmarks/{id}", handlers.DeleteBookmark(d))
	r.Put("/api/v1/bookmarks/{id}/tags", handlers.ReplaceBookmarkTags(d))
	r.Post("/api/v1/bookmarks/{id}/enrich", handlers.EnrichBookmark(d))
}
