// Package providers defines the social login providers a deployment can enable.
//
// The set of identifiers is closed and known at compile time. Each identifier is
// served by one Adapter that verifies a bearer token against the provider's
// user-info endpoint and normalizes the answer into an ExternalIdentity.
//
// Architecture:
//   - ID: enumerated provider identifiers (facebook, google-oauth2)
//   - Adapter: one implementation per provider, in its own sub-package
//   - Registry: read-only after startup, holds the enabled adapters
//   - UserInfoClient: the single outbound GET shared by all adapters
//
// Email-based account linking is only safe for providers that verify email
// ownership themselves. That is a registration-time property of the adapter
// (VerifiesEmail), enforced by NewRegistry.
package providers

import (
	"context"
	"errors"
	"strings"
)

// ID identifies a provider. Values outside the enumerated constants are invalid.
type ID string

const (
	Facebook     ID = "facebook"
	GoogleOAuth2 ID = "google-oauth2"
)

// Known returns every identifier this build can serve, in a stable order.
func Known() []ID {
	return []ID{Facebook, GoogleOAuth2}
}

// ParseID matches s exactly (case-sensitive) against the known identifiers.
func ParseID(s string) (ID, bool) {
	for _, id := range Known() {
		if string(id) == s {
			return id, true
		}
	}
	return "", false
}

func (id ID) String() string { return string(id) }

var (
	// ErrNotRegistered: the name is not an enabled provider.
	ErrNotRegistered = errors.New("providers: provider not registered")

	// ErrTokenInvalid: the provider rejected the token, or accepted it without
	// returning a usable verified email.
	ErrTokenInvalid = errors.New("providers: token rejected")

	// ErrUnavailable: transport failure, timeout, 5xx/429 or a malformed answer.
	ErrUnavailable = errors.New("providers: provider unavailable")

	// ErrEmailNotVerifiable is returned by NewRegistry for adapters that cannot
	// guarantee the emails they return were verified by the provider.
	ErrEmailNotVerifiable = errors.New("providers: provider does not guarantee verified emails")
)

// Adapter verifies provider tokens.
type Adapter interface {
	ID() ID

	// VerifiesEmail reports whether the provider only returns emails whose
	// ownership it has verified.
	VerifiesEmail() bool

	// Verify performs exactly one call to the provider. Errors wrap
	// ErrTokenInvalid or ErrUnavailable.
	Verify(ctx context.Context, accessToken string) (*ExternalIdentity, error)
}

// ExternalIdentity is the normalized result of one successful verification.
// It is never persisted as such.
type ExternalIdentity struct {
	Provider    ID
	ExternalID  string
	Email       string // lower-cased, non-empty
	DisplayName string
	FirstName   string
	LastName    string
}

// NormalizeEmail trims and lower-cases an email so it can serve as the
// reconciliation key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SplitName splits a full name at the first space.
func SplitName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", ""
	}
	first, last, _ = strings.Cut(full, " ")
	return first, strings.TrimSpace(last)
}

// NewIdentity applies the normalization shared by every adapter. Missing email
// invalidates the token; a missing identifier means the answer was malformed.
func NewIdentity(provider ID, externalID, email, name, first, last string) (*ExternalIdentity, error) {
	email = NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, wrap(ErrTokenInvalid, provider, "user info has no email")
	}
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, wrap(ErrUnavailable, provider, "user info has no identifier")
	}

	name = strings.TrimSpace(name)
	if first == "" && last == "" {
		first, last = SplitName(name)
	}
	if name == "" {
		name = strings.TrimSpace(first + " " + last)
	}

	return &ExternalIdentity{
		Provider:    provider,
		ExternalID:  externalID,
		Email:       email,
		DisplayName: name,
		FirstName:   strings.TrimSpace(first),
		LastName:    strings.TrimSpace(last),
	}, nil
}
