package social

import (
	"errors"
	"fmt"

	"github.com/dropDatabas3/socialjohn/internal/http/v2/providers"
)

// Motivos de rechazo del login. Todo error devuelto por LoginService envuelve
// exactamente uno.
var (
	ErrUnknownProvider     = errors.New("social: unknown provider")
	ErrMissingToken        = errors.New("social: access_token is required")
	ErrInvalidToken        = errors.New("social: invalid token")
	ErrProviderUnavailable = errors.New("social: provider unavailable")
	ErrStoreFailure        = errors.New("social: store failure")
)

// Etiquetas de outcome para logs y métricas.
const (
	OutcomeSuccess             = "success"
	OutcomeUnknownProvider     = "unknown_provider"
	OutcomeMissingToken        = "missing_token"
	OutcomeInvalidToken        = "invalid_token"
	OutcomeProviderUnavailable = "provider_unavailable"
	OutcomeStoreFailure        = "store_failure"
)

// OutcomeOf clasifica err en una etiqueta de outcome.
func OutcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrUnknownProvider):
		return OutcomeUnknownProvider
	case errors.Is(err, ErrMissingToken):
		return OutcomeMissingToken
	case errors.Is(err, ErrInvalidToken):
		return OutcomeInvalidToken
	case errors.Is(err, ErrProviderUnavailable):
		return OutcomeProviderUnavailable
	default:
		return OutcomeStoreFailure
	}
}

// classifyVerifyError mapea los errores del adapter a la taxonomía del login.
// Cualquier error no clasificado cuenta como proveedor no disponible.
func classifyVerifyError(err error) error {
	if errors.Is(err, providers.ErrTokenInvalid) {
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
}
