package social

import svc "github.com/dropDatabas3/socialjohn/internal/http/v2/services/social"

// Controllers agrupa los controllers del dominio social.
type Controllers struct {
	Login     *LoginController
	Providers *ProvidersController
}

// NewControllers crea el aggregator de controllers social.
func NewControllers(s svc.Services) *Controllers {
	return &Controllers{
		Login:     NewLoginController(s.Login),
		Providers: NewProvidersController(s.Providers),
	}
}
