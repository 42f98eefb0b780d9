package social

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/socialjohn/internal/http/v2/providers"
	"github.com/dropDatabas3/socialjohn/internal/observability/logger"
	store "github.com/dropDatabas3/socialjohn/internal/store/v2"
)

// State es la etapa alcanzada por un intento de login.
type State int

const (
	StateReceived State = iota
	StateProviderResolved
	StateIdentityVerified
	StateAccountResolved
	StateTokenIssued
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "received_request"
	case StateProviderResolved:
		return "provider_resolved"
	case StateIdentityVerified:
		return "identity_verified"
	case StateAccountResolved:
		return "account_resolved"
	case StateTokenIssued:
		return "token_issued"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// LoginRequest entrada del login: nombre de provider tal cual llegó en la ruta y
// el token bearer del provider.
type LoginRequest struct {
	Provider    string
	AccessToken string
}

// LoginResult resultado de un login exitoso.
type LoginResult struct {
	Provider providers.ID
	Account  *store.UserAccount
	Created  bool
	Token    *AccessToken
}

// LoginService orquesta provider → identidad → cuenta → token.
type LoginService interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
}

// LoginObserver recibe el outcome de cada intento (métricas).
type LoginObserver func(provider, outcome string)

// LoginDeps dependencias del LoginService.
type LoginDeps struct {
	Registry   *providers.Registry
	Store      store.Store
	Reconciler Reconciler
	Tokens     TokenIssuer
	Observer   LoginObserver

	// StoreTimeout acota la transacción de reconciliación + emisión. La tx no
	// hereda la cancelación del request.
	StoreTimeout time.Duration
}

const defaultStoreTimeout = 5 * time.Second

type loginService struct {
	registry     *providers.Registry
	store        store.Store
	reconciler   Reconciler
	tokens       TokenIssuer
	observer     LoginObserver
	storeTimeout time.Duration
}

// NewLoginService crea el orquestador. Reconciler nil usa NewReconciler().
func NewLoginService(d LoginDeps) LoginService {
	s := &loginService{
		registry:     d.Registry,
		store:        d.Store,
		reconciler:   d.Reconciler,
		tokens:       d.Tokens,
		observer:     d.Observer,
		storeTimeout: d.StoreTimeout,
	}
	if s.reconciler == nil {
		s.reconciler = NewReconciler()
	}
	if s.storeTimeout <= 0 {
		s.storeTimeout = defaultStoreTimeout
	}
	return s
}

// Login ejecuta la máquina de estados sin reintentos. Cualquier rechazo
// posterior a la verificación deja el store sin cambios.
func (s *loginService) Login(ctx context.Context, req LoginRequest) (res *LoginResult, err error) {
	state := StateReceived
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("social.login"),
		logger.Provider(req.Provider),
		logger.MaskedToken(req.AccessToken),
	)
	defer func() {
		outcome := OutcomeOf(err)
		if s.observer != nil {
			s.observer(observedProvider(req.Provider), outcome)
		}
		if err != nil {
			s.logRejection(log, state, outcome, err)
		}
	}()

	// ReceivedRequest → ProviderResolved
	adapter, err := s.registry.Resolve(req.Provider)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, req.Provider)
	}
	state = StateProviderResolved

	if req.AccessToken == "" {
		return nil, ErrMissingToken
	}

	// ProviderResolved → IdentityVerified
	identity, err := adapter.Verify(ctx, req.AccessToken)
	if err != nil {
		return nil, classifyVerifyError(err)
	}
	if identity == nil || identity.Email == "" {
		return nil, fmt.Errorf("%w: provider returned no email", ErrInvalidToken)
	}
	state = StateIdentityVerified
	log = log.With(logger.MaskedEmail(identity.Email))

	// IdentityVerified → AccountResolved → TokenIssued, en una sola tx.
	txCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.storeTimeout)
	defer cancel()

	var (
		acc     *store.UserAccount
		created bool
		token   *AccessToken
	)
	err = s.store.WithTx(txCtx, func(tx store.Tx) error {
		var err error
		acc, created, err = s.reconciler.Resolve(txCtx, tx, identity)
		if err != nil {
			return err
		}
		state = StateAccountResolved

		token, err = s.tokens.Issue(txCtx, tx, acc, adapter.ID(), req.AccessToken)
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrStoreFailure) {
			err = fmt.Errorf("%w: %w", ErrStoreFailure, err)
		}
		return nil, err
	}
	state = StateTokenIssued

	log.Info("social login succeeded",
		logger.UserID(acc.ID),
		logger.Bool("created", created),
		logger.String("state", state.String()),
	)
	return &LoginResult{Provider: adapter.ID(), Account: acc, Created: created, Token: token}, nil
}

func (s *loginService) logRejection(log *zap.Logger, state State, outcome string, err error) {
	fields := []zap.Field{
		logger.Outcome(outcome),
		logger.String("state", state.String()),
		logger.Err(err),
	}
	switch outcome {
	case OutcomeStoreFailure:
		log.Error("social login rejected", fields...)
	case OutcomeProviderUnavailable:
		log.Warn("social login rejected", fields...)
	default:
		log.Info("social login rejected", fields...)
	}
}

// observedProvider evita cardinalidad arbitraria en métricas: nombres
// desconocidos se agrupan.
func observedProvider(name string) string {
	if id, ok := providers.ParseID(name); ok {
		return id.String()
	}
	return "unknown"
}
