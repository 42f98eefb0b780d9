// Package facebook implements the Facebook Graph API adapter.
package facebook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"

	"github.com/dropDatabas3/socialjohn/internal/http/v2/providers"
)

// DefaultUserInfoURL is the Graph API "me" endpoint.
const DefaultUserInfoURL = "https://graph.facebook.com/v19.0/me"

var defaultFields = []string{"id", "name", "email", "first_name", "last_name"}

// Config for the Facebook adapter. Zero values select the defaults.
type Config struct {
	UserInfoURL string
	// AppSecret enables appsecret_proof on every call when set.
	AppSecret string
	Fields    []string
}

// Provider implements providers.Adapter.
type Provider struct {
	endpoint  string
	appSecret string
	fields    string
	client    *providers.UserInfoClient
}

// New builds the adapter. client is shared between adapters.
func New(cfg Config, client *providers.UserInfoClient) *Provider {
	p := &Provider{
		endpoint:  strings.TrimSpace(cfg.UserInfoURL),
		appSecret: cfg.AppSecret,
		client:    client,
	}
	if p.endpoint == "" {
		p.endpoint = DefaultUserInfoURL
	}
	fields := cfg.Fields
	if len(fields) == 0 {
		fields = defaultFields
	}
	p.fields = strings.Join(fields, ",")
	if p.client == nil {
		p.client = providers.NewUserInfoClient(providers.ClientConfig{})
	}
	return p
}

func (p *Provider) ID() providers.ID { return providers.Facebook }

// VerifiesEmail: Graph API only exposes confirmed emails.
func (p *Provider) VerifiesEmail() bool { return true }

// Endpoint returns the configured user-info URL.
func (p *Provider) Endpoint() string { return p.endpoint }

type userInfo struct {
	ID        providers.FlexString `json:"id"`
	Name      string               `json:"name"`
	Email     string               `json:"email"`
	FirstName string               `json:"first_name"`
	LastName  string               `json:"last_name"`
}

// Verify calls GET /me?fields=...&access_token=...[&appsecret_proof=...].
func (p *Provider) Verify(ctx context.Context, accessToken string) (*providers.ExternalIdentity, error) {
	q := url.Values{}
	q.Set("fields", p.fields)
	q.Set("access_token", accessToken)
	if p.appSecret != "" {
		q.Set("appsecret_proof", AppSecretProof(p.appSecret, accessToken))
	}

	var info userInfo
	if err := p.client.Fetch(ctx, providers.Facebook, p.endpoint, q, &info); err != nil {
		return nil, err
	}
	return providers.NewIdentity(providers.Facebook, string(info.ID), info.Email, info.Name, info.FirstName, info.LastName)
}

// AppSecretProof is hex(HMAC-SHA256(key=appSecret, msg=accessToken)).
func AppSecretProof(appSecret, accessToken string) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write([]byte(accessToken))
	return hex.EncodeToString(mac.Sum(nil))
}
