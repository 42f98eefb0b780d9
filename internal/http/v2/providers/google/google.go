// Package google implements the Google OAuth2 user-info adapter.
package google

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/dropDatabas3/socialjohn/internal/http/v2/providers"
)

// DefaultUserInfoURL is the OpenID Connect userinfo endpoint.
const DefaultUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// Config for the Google adapter.
type Config struct {
	UserInfoURL string
}

// Provider implements providers.Adapter.
type Provider struct {
	endpoint string
	client   *providers.UserInfoClient
}

// New builds the adapter.
func New(cfg Config, client *providers.UserInfoClient) *Provider {
	p := &Provider{endpoint: strings.TrimSpace(cfg.UserInfoURL), client: client}
	if p.endpoint == "" {
		p.endpoint = DefaultUserInfoURL
	}
	if p.client == nil {
		p.client = providers.NewUserInfoClient(providers.ClientConfig{})
	}
	return p
}

func (p *Provider) ID() providers.ID { return providers.GoogleOAuth2 }

// VerifiesEmail: Google accounts carry verified emails, and the answer states it
// explicitly through email_verified (OIDC) or verified_email (legacy), which
// Verify checks.
func (p *Provider) VerifiesEmail() bool { return true }

// Endpoint returns the configured user-info URL.
func (p *Provider) Endpoint() string { return p.endpoint }

// userInfo covers both the OIDC shape (sub, given_name) and the legacy people
// shape (id, name).
type userInfo struct {
	Sub           string               `json:"sub"`
	ID            providers.FlexString `json:"id"`
	Email         string               `json:"email"`
	EmailVerified providers.FlexBool   `json:"email_verified"`
	VerifiedEmail providers.FlexBool   `json:"verified_email"`
	Name          string               `json:"name"`
	GivenName     string               `json:"given_name"`
	FamilyName    string               `json:"family_name"`
}

// Verify calls GET userinfo?access_token=....
func (p *Provider) Verify(ctx context.Context, accessToken string) (*providers.ExternalIdentity, error) {
	q := url.Values{}
	q.Set("access_token", accessToken)

	var info userInfo
	if err := p.client.Fetch(ctx, providers.GoogleOAuth2, p.endpoint, q, &info); err != nil {
		return nil, err
	}
	if info.EmailVerified.Set && !info.EmailVerified.Value {
		return nil, fmt.Errorf("%w: %s: email_verified=false", providers.ErrTokenInvalid, providers.GoogleOAuth2)
	}
	if info.VerifiedEmail.Set && !info.VerifiedEmail.Value {
		return nil, fmt.Errorf("%w: %s: verified_email=false", providers.ErrTokenInvalid, providers.GoogleOAuth2)
	}

	subject := info.Sub
	if subject == "" {
		subject = string(info.ID)
	}
	return providers.NewIdentity(providers.GoogleOAuth2, subject, info.Email, info.Name, info.GivenName, info.FamilyName)
}
