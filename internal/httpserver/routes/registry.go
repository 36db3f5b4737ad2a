package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marks/internal/httpserver/mw"
)

// Surface selects which routes a server mounts. The API server mounts
// both, the worker only its ops routes.
type Surface uint8

const (
	SurfaceAPI Surface = 1 << iota
	SurfaceOps

	SurfaceAll = SurfaceAPI | SurfaceOps
)

type (
	Registrar  func(r chi.Router, d deps.Deps)
	Middleware = func(http.Handler) http.Handler
)

type entry struct {
	surface Surface
	reg     Registrar
	mws     []Middleware
}

var registry []entry

// Register a registrar on a surface with optional per-route middlewares.
func Register(surface Surface, reg Registrar, mws ...Middleware) {
	registry = append(registry, entry{surface: surface, reg: reg, mws: mws})
}

// Called once from server.New()
func RegisterAll(r chi.Router, d deps.Deps, surface Surface) {
	for _, e := range registry {
		if e.surface&surface == 0 {
			continue
		}
		if len(e.mws) == 0 {
			e.reg(r, d)
			continue
		}
		sub := r.With(e.mws...) // apply per-route middlewares
		e.reg(sub, d)
	}
}

// opsGuard restricts a route to allowed hosts and CIDRs.
func opsGuard(r chi.Router, d deps.Deps) chi.Router {
	return r.With(
		mw.EnforceHost(d.AllowedHosts, d.Logger),
		mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger),
	)
}
