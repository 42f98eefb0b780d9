package social

import (
	"context"
	"fmt"

	"github.com/dropDatabas3/socialjohn/internal/http/v2/providers"
	"github.com/dropDatabas3/socialjohn/internal/observability/logger"
	store "github.com/dropDatabas3/socialjohn/internal/store/v2"
)

// Reconciler resuelve la cuenta local de una identidad externa verificada.
// El email es la única clave: el identificador externo nunca decide a qué
// cuenta se entra.
type Reconciler interface {
	Resolve(ctx context.Context, tx store.Tx, id *providers.ExternalIdentity) (acc *store.UserAccount, created bool, err error)
}

type reconciler struct{}

// NewReconciler crea el Reconciler por email.
func NewReconciler() Reconciler {
	return reconciler{}
}

// Resolve hace upsert de la cuenta por email y luego del SocialLink, ambos en tx.
func (reconciler) Resolve(ctx context.Context, tx store.Tx, id *providers.ExternalIdentity) (*store.UserAccount, bool, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("social.reconciler"))

	email := providers.NormalizeEmail(id.Email)
	acc, created, err := tx.UpsertUserByEmail(ctx, store.UpsertUserInput{
		Email:       email,
		DisplayName: id.DisplayName,
		FirstName:   id.FirstName,
		LastName:    id.LastName,
	})
	if err != nil {
		return nil, false, fmt.Errorf("%w: upsert user: %w", ErrStoreFailure, err)
	}

	if err := tx.LinkIdentity(ctx, store.SocialLink{
		Provider:   id.Provider.String(),
		ExternalID: id.ExternalID,
		UserID:     acc.ID,
	}); err != nil {
		return nil, false, fmt.Errorf("%w: link identity: %w", ErrStoreFailure, err)
	}

	log.Debug("account resolved",
		logger.Provider(id.Provider.String()),
		logger.UserID(acc.ID),
		logger.MaskedEmail(email),
		logger.Bool("created", created),
	)
	return acc, created, nil
}
