package router

import (
	"github.com/go-chi/chi/v5"

	ctrl "github.com/dropDatabas3/socialjohn/internal/http/v2/controllers/health"
)

// HealthRouterDeps contiene las dependencias para el router de health.
type HealthRouterDeps struct {
	Controller *ctrl.HealthController
}

// RegisterHealthRoutes registra /readyz. Sin logging (muy frecuente).
func RegisterHealthRoutes(r chi.Router, deps HealthRouterDeps) {
	r.Get("/readyz", deps.Controller.Readyz)
}
