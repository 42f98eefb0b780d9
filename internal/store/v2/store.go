// Package store es la capa de persistencia del login social.
//
// Los drivers se registran en init() (ver adapters/all) y se abren con Open.
// Toda escritura ocurre dentro de WithTx: si fn devuelve error no queda nada
// escrito.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("store: not found")
	ErrConflict = errors.New("store: conflict")
	ErrInvalid  = errors.New("store: invalid")
)

// UserAccount es la cuenta local. Email es único y Username == Email.
type UserAccount struct {
	ID          string
	Username    string
	Email       string
	DisplayName string
	FirstName   string
	LastName    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SocialLink asocia (Provider, ExternalID) con una cuenta.
type SocialLink struct {
	Provider   string
	ExternalID string
	UserID     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TokenRecord es lo que se persiste de un access token: solo el hash.
type TokenRecord struct {
	Hash      string
	UserID    string
	Provider  string
	IssuedAt  time.Time
	ExpiresAt *time.Time
}

// UpsertUserInput datos de perfil para crear o refrescar una cuenta.
type UpsertUserInput struct {
	Email       string // ya normalizado
	DisplayName string
	FirstName   string
	LastName    string
}

// Tx operaciones de escritura. Solo válido dentro de WithTx.
type Tx interface {
	// UpsertUserByEmail crea la cuenta o actualiza los campos de nombre de la
	// existente. created indica si la fila es nueva.
	UpsertUserByEmail(ctx context.Context, in UpsertUserInput) (acc *UserAccount, created bool, err error)

	// LinkIdentity crea o re-apunta el link (provider, external_id).
	LinkIdentity(ctx context.Context, link SocialLink) error

	// InsertToken falla con ErrConflict si el hash ya existe.
	InsertToken(ctx context.Context, rec TokenRecord) error
}

// Store es una conexión abierta.
type Store interface {
	Driver() string

	WithTx(ctx context.Context, fn func(tx Tx) error) error

	GetUserByEmail(ctx context.Context, email string) (*UserAccount, error)
	GetUserByID(ctx context.Context, id string) (*UserAccount, error)
	ListUsers(ctx context.Context) ([]UserAccount, error)
	ListLinks(ctx context.Context, userID string) ([]SocialLink, error)

	// LookupToken busca por hash (ver HashToken).
	LookupToken(ctx context.Context, hash string) (*TokenRecord, error)

	Ping(ctx context.Context) error
	Close() error
}

// HashToken es la clave con la que se guarda un token opaco.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
