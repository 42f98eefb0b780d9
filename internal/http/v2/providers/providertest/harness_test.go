package providertest_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/socialjohn/internal/http/v2/providers/providertest"
)

const endpoint = "https://graph.facebook.com/v19.0/me"

func get(t *testing.T, h *providertest.Harness, rawURL string) (*http.Response, error) {
	t.Helper()
	resp, err := h.Client().Get(rawURL)
	if err == nil {
		t.Cleanup(func() { _ = resp.Body.Close() })
	}
	return resp, err
}

func TestUserInfo_UnknownTokensAnswer401(t *testing.T) {
	h := providertest.New()
	h.MockUserInfo(endpoint, providertest.Users)

	for _, token := range []string{"invalid_token", "bad~token", "bad token", "a/b+c=d", "ñandú", "x#y", ""} {
		t.Run(token, func(t *testing.T) {
			q := url.Values{"access_token": {token}, "fields": {"id,name,email"}}
			resp, err := get(t, h, endpoint+"?"+q.Encode())
			require.NoError(t, err)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

			var body map[string]any
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, "Invalid Token", body["errors"])
		})
	}

	for _, c := range h.Calls() {
		assert.True(t, c.Matched, c.URL)
	}
}

func TestUserInfo_KnownTokenAnyQueryOrder(t *testing.T) {
	h := providertest.New()
	h.MockUserInfo(endpoint, providertest.Users)

	resp, err := get(t, h, endpoint+"?fields=id%2Cemail&appsecret_proof=abc&access_token=00001")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	calls := h.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "00001", calls[0].Token)
}

func TestRoundTrip_OtherPathsAreNotRouted(t *testing.T) {
	h := providertest.New()
	h.MockUserInfo(endpoint, providertest.Users)

	_, err := get(t, h, "https://graph.facebook.com/v19.0/me/friends?access_token=00001")
	require.Error(t, err)
	assert.True(t, errors.Is(err, providertest.ErrNoRoute))

	_, err = get(t, h, "https://evil.example/v19.0/me?access_token=00001")
	assert.ErrorIs(t, err, providertest.ErrNoRoute)

	require.Len(t, h.Calls(), 2)
	assert.False(t, h.Calls()[0].Matched)
}
