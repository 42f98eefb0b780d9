package social

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/socialjohn/internal/http/v2/providers"
	"github.com/dropDatabas3/socialjohn/internal/observability/logger"
	store "github.com/dropDatabas3/socialjohn/internal/store/v2"
)

// TokenFormat formato del access token emitido.
type TokenFormat string

const (
	// FormatOpaque: 32 bytes aleatorios en base64url.
	FormatOpaque TokenFormat = "opaque"
	// FormatJWT: JWT HS256 con jti aleatorio.
	FormatJWT TokenFormat = "jwt"
)

// ParseTokenFormat acepta "opaque" y "jwt". Vacío es opaque.
func ParseTokenFormat(s string) (TokenFormat, error) {
	switch TokenFormat(s) {
	case "", FormatOpaque:
		return FormatOpaque, nil
	case FormatJWT:
		return FormatJWT, nil
	}
	return "", fmt.Errorf("unknown token format %q", s)
}

const (
	opaqueTokenBytes = 32
	jtiBytes         = 16
	maxMintAttempts  = 3
)

// ErrTokenCollision: no se pudo generar un valor distinto del token presentado
// ni de los ya emitidos.
var ErrTokenCollision = errors.New("social: could not mint a distinct token")

// AccessToken es el token local emitido. Value se entrega una sola vez; el store
// solo guarda su hash.
type AccessToken struct {
	Value     string
	UserID    string
	IssuedAt  time.Time
	ExpiresAt *time.Time
}

// TokenIssuer emite y persiste access tokens.
type TokenIssuer interface {
	Issue(ctx context.Context, tx store.Tx, acc *store.UserAccount, provider providers.ID, presented string) (*AccessToken, error)
}

// TokenDeps dependencias del TokenIssuer.
type TokenDeps struct {
	Format     TokenFormat
	SigningKey []byte        // requerido para FormatJWT
	Issuer     string        // claim iss (jwt)
	TTL        time.Duration // 0 = sin expiración
	Rand       io.Reader     // default crypto/rand
	Now        func() time.Time
}

type tokenIssuer struct {
	format TokenFormat
	key    []byte
	iss    string
	ttl    time.Duration
	rand   io.Reader
	now    func() time.Time
}

// NewTokenIssuer valida la configuración.
func NewTokenIssuer(d TokenDeps) (TokenIssuer, error) {
	format, err := ParseTokenFormat(string(d.Format))
	if err != nil {
		return nil, err
	}
	if format == FormatJWT && len(d.SigningKey) < 32 {
		return nil, errors.New("social: jwt signing key must be at least 32 bytes")
	}
	t := &tokenIssuer{
		format: format,
		key:    d.SigningKey,
		iss:    d.Issuer,
		ttl:    d.TTL,
		rand:   d.Rand,
		now:    d.Now,
	}
	if t.rand == nil {
		t.rand = rand.Reader
	}
	if t.now == nil {
		t.now = time.Now
	}
	return t, nil
}

// Issue genera un valor nuevo, verifica que no sea el token presentado y guarda
// su hash asociado a la cuenta.
func (t *tokenIssuer) Issue(ctx context.Context, tx store.Tx, acc *store.UserAccount, provider providers.ID, presented string) (*AccessToken, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("social.token"))

	now := t.now().UTC().Truncate(time.Second)
	var exp *time.Time
	if t.ttl > 0 {
		e := now.Add(t.ttl)
		exp = &e
	}

	for attempt := 1; attempt <= maxMintAttempts; attempt++ {
		value, err := t.mint(acc, provider, now, exp)
		if err != nil {
			return nil, fmt.Errorf("%w: mint: %w", ErrStoreFailure, err)
		}
		if value == presented {
			log.Warn("minted token equals presented token, re-minting", logger.Int("attempt", attempt))
			continue
		}

		err = tx.InsertToken(ctx, store.TokenRecord{
			Hash:      store.HashToken(value),
			UserID:    acc.ID,
			Provider:  provider.String(),
			IssuedAt:  now,
			ExpiresAt: exp,
		})
		if errors.Is(err, store.ErrConflict) {
			log.Warn("token hash collision, re-minting", logger.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: insert token: %w", ErrStoreFailure, err)
		}

		return &AccessToken{Value: value, UserID: acc.ID, IssuedAt: now, ExpiresAt: exp}, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrStoreFailure, ErrTokenCollision)
}

func (t *tokenIssuer) mint(acc *store.UserAccount, provider providers.ID, now time.Time, exp *time.Time) (string, error) {
	if t.format == FormatJWT {
		return t.mintJWT(acc, provider, now, exp)
	}
	b := make([]byte, opaqueTokenBytes)
	if _, err := io.ReadFull(t.rand, b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Claims del access token JWT.
type Claims struct {
	Email    string `json:"email"`
	Provider string `json:"provider"`
	jwt.RegisteredClaims
}

func (t *tokenIssuer) mintJWT(acc *store.UserAccount, provider providers.ID, now time.Time, exp *time.Time) (string, error) {
	jti := make([]byte, jtiBytes)
	if _, err := io.ReadFull(t.rand, jti); err != nil {
		return "", err
	}
	claims := Claims{
		Email:    acc.Email,
		Provider: provider.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       hex.EncodeToString(jti),
			Subject:  acc.ID,
			Issuer:   t.iss,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if exp != nil {
		claims.ExpiresAt = jwt.NewNumericDate(*exp)
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
}

// ParseJWT valida un token emitido con FormatJWT. Lo usan los consumidores del
// token y los tests.
func ParseJWT(value string, key []byte) (*Claims, error) {
	var c Claims
	_, err := jwt.ParseWithClaims(value, &c, func(*jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	return &c, nil
}
