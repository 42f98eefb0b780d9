// Package router arma el árbol de rutas chi de la API.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	healthctrl "github.com/dropDatabas3/socialjohn/internal/http/v2/controllers/health"
	socialctrl "github.com/dropDatabas3/socialjohn/internal/http/v2/controllers/social"
	httperrors "github.com/dropDatabas3/socialjohn/internal/http/v2/errors"
	mw "github.com/dropDatabas3/socialjohn/internal/http/v2/middlewares"
	"github.com/dropDatabas3/socialjohn/internal/metrics"
	"github.com/dropDatabas3/socialjohn/internal/rate"
)

// Deps contiene todas las dependencias del router.
type Deps struct {
	Social *socialctrl.Controllers
	Health *healthctrl.HealthController

	// Opcionales
	Metrics     *metrics.Metrics
	RateLimiter rate.Limiter
	TrustProxy  bool
}

// New construye el handler raíz.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(mw.WithRecover(), mw.WithRequestID())
	if deps.Metrics != nil {
		r.Use(deps.Metrics.WithMetrics)
	}

	// Rutas inexistentes y providers desconocidos responden el mismo 404.
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	if deps.Social != nil {
		RegisterSocialRoutes(r, SocialRouterDeps{
			Controllers: deps.Social,
			RateLimiter: deps.RateLimiter,
			TrustProxy:  deps.TrustProxy,
		})
	}
	if deps.Health != nil {
		RegisterHealthRoutes(r, HealthRouterDeps{Controller: deps.Health})
	}
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}
	return r
}
