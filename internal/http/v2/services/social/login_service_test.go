package social_test

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/socialjohn/internal/http/v2/providers"
	"github.com/dropDatabas3/socialjohn/internal/http/v2/providers/facebook"
	"github.com/dropDatabas3/socialjohn/internal/http/v2/providers/google"
	"github.com/dropDatabas3/socialjohn/internal/http/v2/providers/providertest"
	"github.com/dropDatabas3/socialjohn/internal/http/v2/services/social"
	store "github.com/dropDatabas3/socialjohn/internal/store/v2"
	"github.com/dropDatabas3/socialjohn/internal/store/v2/adapters/memory"
)

type fixture struct {
	harness  *providertest.Harness
	store    *memory.Store
	registry *providers.Registry
	svc      social.LoginService

	mu       sync.Mutex
	outcomes []string
}

type option func(*social.TokenDeps, *social.LoginDeps)

func withTokens(td social.TokenDeps) option {
	return func(d *social.TokenDeps, _ *social.LoginDeps) { *d = td }
}

func withIssuer(t social.TokenIssuer) option {
	return func(_ *social.TokenDeps, ld *social.LoginDeps) { ld.Tokens = t }
}

func newFixture(t *testing.T, opts ...option) *fixture {
	t.Helper()
	f := &fixture{harness: providertest.New(), store: memory.New()}
	f.harness.MockUserInfo(facebook.DefaultUserInfoURL, providertest.Users)
	f.harness.MockUserInfo(google.DefaultUserInfoURL, providertest.Users)

	client := providers.NewUserInfoClient(providers.ClientConfig{
		HTTPClient: f.harness.Client(),
		Timeout:    time.Second,
	})
	reg, err := providers.NewRegistry(
		facebook.New(facebook.Config{}, client),
		google.New(google.Config{}, client),
	)
	require.NoError(t, err)
	f.registry = reg

	td := social.TokenDeps{Format: social.FormatOpaque}
	ld := social.LoginDeps{
		Registry: reg,
		Store:    f.store,
		Observer: func(provider, outcome string) {
			f.mu.Lock()
			f.outcomes = append(f.outcomes, provider+":"+outcome)
			f.mu.Unlock()
		},
	}
	for _, o := range opts {
		o(&td, &ld)
	}
	if ld.Tokens == nil {
		issuer, err := social.NewTokenIssuer(td)
		require.NoError(t, err)
		ld.Tokens = issuer
	}
	f.svc = social.NewLoginService(ld)
	return f
}

func (f *fixture) login(provider, token string) (*social.LoginResult, error) {
	return f.svc.Login(context.Background(), social.LoginRequest{Provider: provider, AccessToken: token})
}

func (f *fixture) assertEmpty(t *testing.T) {
	t.Helper()
	users, err := f.store.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.Zero(t, f.store.TokenCount())
}

func TestLogin_FacebookCreatesAccount(t *testing.T) {
	f := newFixture(t)

	res, err := f.login("facebook", "00001")
	require.NoError(t, err)
	assert.Equal(t, providers.Facebook, res.Provider)
	assert.True(t, res.Created)
	assert.Equal(t, "foo@bar.com", res.Account.Email)
	assert.Equal(t, "foo@bar.com", res.Account.Username)
	assert.Equal(t, "Foo", res.Account.FirstName)
	assert.Equal(t, "Bar", res.Account.LastName)

	require.NotNil(t, res.Token)
	assert.NotEmpty(t, res.Token.Value)
	assert.NotEqual(t, "00001", res.Token.Value)
	assert.Equal(t, res.Account.ID, res.Token.UserID)

	rec, err := f.store.LookupToken(context.Background(), store.HashToken(res.Token.Value))
	require.NoError(t, err)
	assert.Equal(t, res.Account.ID, rec.UserID)
	assert.Equal(t, "facebook", rec.Provider)

	_, err = f.store.LookupToken(context.Background(), store.HashToken("00001"))
	assert.ErrorIs(t, err, store.ErrNotFound, "provider token must never be stored as a local token")

	links, err := f.store.ListLinks(context.Background(), res.Account.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "00001", links[0].ExternalID)

	assert.Equal(t, 1, f.harness.CallCount())
	assert.Equal(t, []string{"facebook:success"}, f.outcomes)
}

func TestLogin_SameEmailAcrossProvidersIsOneAccount(t *testing.T) {
	f := newFixture(t)

	first, err := f.login("facebook", "00002")
	require.NoError(t, err)
	second, err := f.login("google-oauth2", "00002")
	require.NoError(t, err)

	assert.False(t, second.Created)
	assert.Equal(t, first.Account.ID, second.Account.ID)
	assert.NotEqual(t, first.Token.Value, second.Token.Value)

	users, err := f.store.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 1)

	links, err := f.store.ListLinks(context.Background(), first.Account.ID)
	require.NoError(t, err)
	assert.Len(t, links, 2)
	assert.Equal(t, 2, f.store.TokenCount())
}

func TestLogin_EmailMatchIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	f.harness.MockUserInfo(google.DefaultUserInfoURL, map[string]map[string]any{
		"g-upper": {"sub": "g-1", "email": "FOO@Bar.com", "email_verified": true, "name": "Foo Bar"},
	})

	a, err := f.login("facebook", "00001")
	require.NoError(t, err)
	b, err := f.login("google-oauth2", "g-upper")
	require.NoError(t, err)
	assert.Equal(t, a.Account.ID, b.Account.ID)
}

func TestLogin_RepeatLoginIssuesFreshTokens(t *testing.T) {
	f := newFixture(t)

	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		res, err := f.login("facebook", "00001")
		require.NoError(t, err)
		assert.False(t, seen[res.Token.Value])
		seen[res.Token.Value] = true
	}
	users, _ := f.store.ListUsers(context.Background())
	assert.Len(t, users, 1)
}

func TestLogin_InvalidToken(t *testing.T) {
	f := newFixture(t)

	res, err := f.login("facebook", "invalid_token")
	require.ErrorIs(t, err, social.ErrInvalidToken)
	assert.Nil(t, res)
	assert.Equal(t, 1, f.harness.CallCount())
	f.assertEmpty(t)
	assert.Equal(t, []string{"facebook:invalid_token"}, f.outcomes)
}

func TestLogin_UnknownProviderMakesNoCalls(t *testing.T) {
	f := newFixture(t)

	for _, name := range []string{"yahoo", "Facebook", "", "facebook/../google-oauth2"} {
		_, err := f.login(name, "00001")
		require.ErrorIs(t, err, social.ErrUnknownProvider, name)
	}
	assert.Zero(t, f.harness.CallCount())
	f.assertEmpty(t)
	assert.Equal(t, "unknown:unknown_provider", f.outcomes[0])
}

func TestLogin_DisabledProviderIsUnknown(t *testing.T) {
	h := providertest.New()
	client := providers.NewUserInfoClient(providers.ClientConfig{HTTPClient: h.Client()})
	reg, err := providers.NewRegistry(facebook.New(facebook.Config{}, client))
	require.NoError(t, err)
	issuer, err := social.NewTokenIssuer(social.TokenDeps{})
	require.NoError(t, err)
	svc := social.NewLoginService(social.LoginDeps{Registry: reg, Store: memory.New(), Tokens: issuer})

	_, err = svc.Login(context.Background(), social.LoginRequest{Provider: "google-oauth2", AccessToken: "00001"})
	assert.ErrorIs(t, err, social.ErrUnknownProvider)
	assert.Zero(t, h.CallCount())
}

func TestLogin_MissingToken(t *testing.T) {
	f := newFixture(t)

	_, err := f.login("facebook", "")
	require.ErrorIs(t, err, social.ErrMissingToken)
	assert.Zero(t, f.harness.CallCount())
}

func TestLogin_ProviderUnavailable(t *testing.T) {
	cases := map[string]providertest.Responder{
		"5xx":       providertest.Status(http.StatusInternalServerError, nil),
		"429":       providertest.Status(http.StatusTooManyRequests, nil),
		"transport": providertest.Fail(errors.New("connection reset")),
		"malformed": providertest.Raw(http.StatusOK, "not json"),
	}
	for name, respond := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			f.harness.Handle(providertest.EndpointPattern(facebook.DefaultUserInfoURL), respond)

			_, err := f.login("facebook", "00001")
			require.ErrorIs(t, err, social.ErrProviderUnavailable)
			assert.NotErrorIs(t, err, social.ErrInvalidToken)
			assert.Equal(t, 1, f.harness.CallCount(), "no retries")
			f.assertEmpty(t)
		})
	}
}

func TestLogin_ProviderTimeout(t *testing.T) {
	h := providertest.New()
	h.Handle(providertest.EndpointPattern(facebook.DefaultUserInfoURL), providertest.Hang())
	client := providers.NewUserInfoClient(providers.ClientConfig{HTTPClient: h.Client(), Timeout: 50 * time.Millisecond})
	reg, err := providers.NewRegistry(facebook.New(facebook.Config{}, client))
	require.NoError(t, err)
	issuer, err := social.NewTokenIssuer(social.TokenDeps{})
	require.NoError(t, err)
	st := memory.New()
	svc := social.NewLoginService(social.LoginDeps{Registry: reg, Store: st, Tokens: issuer})

	start := time.Now()
	_, err = svc.Login(context.Background(), social.LoginRequest{Provider: "facebook", AccessToken: "00001"})
	require.ErrorIs(t, err, social.ErrProviderUnavailable)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestLogin_MissingEmailIsInvalid(t *testing.T) {
	f := newFixture(t)
	f.harness.MockUserInfo(facebook.DefaultUserInfoURL, map[string]map[string]any{
		"nomail": {"id": "77", "name": "No Mail"},
	})

	_, err := f.login("facebook", "nomail")
	require.ErrorIs(t, err, social.ErrInvalidToken)
	f.assertEmpty(t)
}

func TestLogin_StoreFailure(t *testing.T) {
	f := newFixture(t)
	f.store.FailWith(errors.New("connection refused"))

	_, err := f.login("facebook", "00001")
	require.ErrorIs(t, err, social.ErrStoreFailure)
	assert.Equal(t, 1, f.harness.CallCount())
	assert.Equal(t, []string{"facebook:store_failure"}, f.outcomes)

	f.store.FailWith(nil)
	f.assertEmpty(t)
}

type failingIssuer struct{ err error }

func (i failingIssuer) Issue(context.Context, store.Tx, *store.UserAccount, providers.ID, string) (*social.AccessToken, error) {
	return nil, i.err
}

func TestLogin_IssueFailureRollsBackAccount(t *testing.T) {
	f := newFixture(t, withIssuer(failingIssuer{err: errors.New("entropy exhausted")}))

	_, err := f.login("facebook", "00001")
	require.ErrorIs(t, err, social.ErrStoreFailure)
	f.assertEmpty(t)
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

func TestLogin_NeverEchoesPresentedToken(t *testing.T) {
	// With a constant entropy source every mint yields the same value; present
	// exactly that value as the provider token.
	echo := base64.RawURLEncoding.EncodeToString(make([]byte, 32))
	f := newFixture(t, withTokens(social.TokenDeps{Format: social.FormatOpaque, Rand: zeroReader{}}))
	f.harness.MockUserInfo(facebook.DefaultUserInfoURL, map[string]map[string]any{
		echo: {"id": "9", "name": "Echo Echo", "email": "echo@x.io"},
	})

	_, err := f.login("facebook", echo)
	require.ErrorIs(t, err, social.ErrStoreFailure)
	assert.ErrorIs(t, err, social.ErrTokenCollision)
	f.assertEmpty(t)
}

func TestLogin_JWTFormat(t *testing.T) {
	key := []byte(strings.Repeat("k", 32))
	f := newFixture(t, withTokens(social.TokenDeps{Format: social.FormatJWT, SigningKey: key, Issuer: "socialjohn", TTL: time.Hour}))

	a, err := f.login("facebook", "00001")
	require.NoError(t, err)
	b, err := f.login("facebook", "00001")
	require.NoError(t, err)
	assert.NotEqual(t, a.Token.Value, b.Token.Value)
	require.NotNil(t, a.Token.ExpiresAt)

	claims, err := social.ParseJWT(a.Token.Value, key)
	require.NoError(t, err)
	assert.Equal(t, a.Account.ID, claims.Subject)
	assert.Equal(t, "foo@bar.com", claims.Email)
	assert.Equal(t, "facebook", claims.Provider)
	assert.NotEmpty(t, claims.ID)

	_, err = social.ParseJWT(a.Token.Value, []byte(strings.Repeat("x", 32)))
	assert.Error(t, err)
}

func TestLogin_ConcurrentSameEmailYieldsOneAccount(t *testing.T) {
	f := newFixture(t)

	const n = 20
	ids := make([]string, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			provider := "facebook"
			if i%2 == 1 {
				provider = "google-oauth2"
			}
			res, err := f.login(provider, "00002")
			if err != nil {
				return fmt.Errorf("login %d: %w", i, err)
			}
			ids[i] = res.Account.ID
			return nil
		})
	}
	require.NoError(t, g.Wait())

	users, err := f.store.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	for _, id := range ids {
		assert.Equal(t, users[0].ID, id)
	}
	assert.Equal(t, n, f.store.TokenCount())
}

func TestLogin_CancelledRequestAfterVerifyStillCommitsAtomically(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	// Cancel as soon as the provider has answered.
	f.harness.Handle(providertest.EndpointPattern(facebook.DefaultUserInfoURL), func(req *http.Request) (*http.Response, error) {
		resp, err := providertest.UserInfoResponder(providertest.Users)(req)
		cancel()
		return resp, err
	})

	res, err := f.svc.Login(ctx, social.LoginRequest{Provider: "facebook", AccessToken: "00001"})
	if err != nil {
		// The cancellation raced the response body read: nothing may be written.
		require.ErrorIs(t, err, social.ErrProviderUnavailable)
		f.assertEmpty(t)
		return
	}
	users, _ := f.store.ListUsers(context.Background())
	assert.Len(t, users, 1)
	assert.Equal(t, 1, f.store.TokenCount())
	assert.NotEmpty(t, res.Token.Value)
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, social.OutcomeSuccess, social.OutcomeOf(nil))
	assert.Equal(t, social.OutcomeInvalidToken, social.OutcomeOf(fmt.Errorf("x: %w", social.ErrInvalidToken)))
	assert.Equal(t, social.OutcomeStoreFailure, social.OutcomeOf(errors.New("other")))
	assert.Equal(t, "token_issued", social.StateTokenIssued.String())
}
