// Package social contiene los services del login social: resolución del
// provider, verificación del token, reconciliación por email y emisión del
// token local.
package social

import (
	"time"

	"github.com/dropDatabas3/socialjohn/internal/http/v2/providers"
	store "github.com/dropDatabas3/socialjohn/internal/store/v2"
)

// Deps contiene las dependencias para crear los services social.
type Deps struct {
	Registry     *providers.Registry
	Store        store.Store
	Tokens       TokenIssuer
	Observer     LoginObserver // opcional
	StoreTimeout time.Duration
}

// Services agrupa los services del dominio social.
type Services struct {
	Login     LoginService
	Providers ProvidersService
}

// NewServices crea el agregador de services social.
func NewServices(d Deps) Services {
	return Services{
		Login: NewLoginService(LoginDeps{
			Registry:     d.Registry,
			Store:        d.Store,
			Reconciler:   NewReconciler(),
			Tokens:       d.Tokens,
			Observer:     d.Observer,
			StoreTimeout: d.StoreTimeout,
		}),
		Providers: NewProvidersService(d.Registry),
	}
}

// ProvidersService expone los providers habilitados.
type ProvidersService interface {
	Enabled() []string
}

type providersService struct {
	registry *providers.Registry
}

// NewProvidersService crea el service de descubrimiento.
func NewProvidersService(r *providers.Registry) ProvidersService {
	return providersService{registry: r}
}

func (p providersService) Enabled() []string {
	ids := p.registry.Enabled()
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
