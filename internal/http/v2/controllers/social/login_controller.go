// Package social contiene los controllers HTTP del login social.
package social

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	dto "github.com/dropDatabas3/socialjohn/internal/http/v2/dto/social"
	httperrors "github.com/dropDatabas3/socialjohn/internal/http/v2/errors"
	svc "github.com/dropDatabas3/socialjohn/internal/http/v2/services/social"
	"github.com/dropDatabas3/socialjohn/internal/observability/logger"
)

const maxLoginBody = 64 << 10

// LoginController maneja POST /social/{provider}/.
type LoginController struct {
	service svc.LoginService
}

// NewLoginController crea el controller.
func NewLoginController(service svc.LoginService) *LoginController {
	return &LoginController{service: service}
}

// Login verifica el token del provider y responde con el token local.
//
// El provider se resuelve antes de mirar el body, así un provider desconocido
// siempre da el mismo 404 que una ruta inexistente.
func (c *LoginController) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	provider := chi.URLParam(r, "provider")
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("LoginController.Login"))

	token, parseErr := readAccessToken(w, r)

	res, err := c.service.Login(ctx, svc.LoginRequest{Provider: provider, AccessToken: token})
	if err != nil {
		if parseErr != nil && errors.Is(err, svc.ErrMissingToken) {
			log.Debug("invalid login body", logger.Err(parseErr))
			httperrors.WriteError(w, bodyError(parseErr))
			return
		}
		httperrors.WriteError(w, mapLoginError(err))
		return
	}

	writeJSON(w, http.StatusOK, dto.LoginResponse{Token: res.Token.Value})
}

// readAccessToken acepta JSON y form (urlencoded o multipart).
func readAccessToken(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxLoginBody)
	defer r.Body.Close()

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case ct == "application/json" || strings.HasSuffix(ct, "+json"):
		var body dto.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return strings.TrimSpace(body.AccessToken), nil
	case ct == "multipart/form-data":
		if err := r.ParseMultipartForm(maxLoginBody); err != nil {
			return "", err
		}
		return strings.TrimSpace(r.PostFormValue("access_token")), nil
	default:
		if err := r.ParseForm(); err != nil {
			return "", err
		}
		return strings.TrimSpace(r.PostFormValue("access_token")), nil
	}
}

func bodyError(err error) *httperrors.AppError {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return httperrors.ErrBodyTooLarge
	}
	return httperrors.ErrBadRequest.WithDetail("malformed request body")
}

// mapLoginError traduce la taxonomía del login a respuestas HTTP. Los detalles
// del provider y del store no se exponen.
func mapLoginError(err error) *httperrors.AppError {
	switch {
	case errors.Is(err, svc.ErrUnknownProvider):
		return httperrors.ErrNotFound
	case errors.Is(err, svc.ErrMissingToken):
		return httperrors.ErrMissingFields.WithDetail("access_token is required")
	case errors.Is(err, svc.ErrInvalidToken):
		return httperrors.ErrSocialTokenInvalid.WithCause(err)
	case errors.Is(err, svc.ErrProviderUnavailable):
		return httperrors.ErrProviderUnavailable.WithCause(err)
	default:
		return httperrors.ErrInternalServerError.WithCause(err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
