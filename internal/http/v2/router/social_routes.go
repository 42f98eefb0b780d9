package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	ctrl "github.com/dropDatabas3/socialjohn/internal/http/v2/controllers/social"
	mw "github.com/dropDatabas3/socialjohn/internal/http/v2/middlewares"
	"github.com/dropDatabas3/socialjohn/internal/rate"
)

// SocialRouterDeps contiene las dependencias para el router social.
type SocialRouterDeps struct {
	Controllers *ctrl.Controllers
	RateLimiter rate.Limiter // Opcional: rate limiting por IP + path
	TrustProxy  bool
}

// RegisterSocialRoutes registra las rutas del login social.
func RegisterSocialRoutes(r chi.Router, deps SocialRouterDeps) {
	c := deps.Controllers

	// GET /social/providers
	r.With(mw.WithLogging()).Get("/social/providers", c.Providers.List)

	// POST /social/{provider}/ - con y sin barra final
	login := loginHandler(deps, http.HandlerFunc(c.Login.Login))
	r.Method(http.MethodPost, "/social/{provider}", login)
	r.Method(http.MethodPost, "/social/{provider}/", login)
}

// loginHandler arma la cadena del endpoint de login: la respuesta lleva un
// token, así que nunca se cachea.
func loginHandler(deps SocialRouterDeps, handler http.Handler) http.Handler {
	chain := []mw.Middleware{
		mw.WithLogging(),
		mw.WithNoStore(),
	}
	if deps.RateLimiter != nil {
		chain = append(chain, mw.WithRateLimit(mw.RateLimitConfig{
			Limiter:    deps.RateLimiter,
			TrustProxy: deps.TrustProxy,
		}))
	}
	return mw.Chain(handler, chain...)
}
