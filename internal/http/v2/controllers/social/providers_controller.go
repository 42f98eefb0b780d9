package social

import (
	"net/http"

	dto "github.com/dropDatabas3/socialjohn/internal/http/v2/dto/social"
	svc "github.com/dropDatabas3/socialjohn/internal/http/v2/services/social"
)

// ProvidersController maneja GET /social/providers.
type ProvidersController struct {
	service svc.ProvidersService
}

func NewProvidersController(service svc.ProvidersService) *ProvidersController {
	return &ProvidersController{service: service}
}

// List devuelve los providers habilitados, ordenados.
func (c *ProvidersController) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.ProvidersResponse{Providers: c.service.Enabled()})
}
