package social_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/socialjohn/internal/http/v2/providers"
	"github.com/dropDatabas3/socialjohn/internal/http/v2/services/social"
	store "github.com/dropDatabas3/socialjohn/internal/store/v2"
	"github.com/dropDatabas3/socialjohn/internal/store/v2/adapters/memory"
)

func TestParseTokenFormat(t *testing.T) {
	f, err := social.ParseTokenFormat("")
	require.NoError(t, err)
	assert.Equal(t, social.FormatOpaque, f)

	f, err = social.ParseTokenFormat("jwt")
	require.NoError(t, err)
	assert.Equal(t, social.FormatJWT, f)

	_, err = social.ParseTokenFormat("paseto")
	assert.Error(t, err)
}

func TestNewTokenIssuer_JWTNeedsKey(t *testing.T) {
	_, err := social.NewTokenIssuer(social.TokenDeps{Format: social.FormatJWT, SigningKey: []byte("short")})
	assert.Error(t, err)
}

func TestIssue_OpaqueWithTTL(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	issuer, err := social.NewTokenIssuer(social.TokenDeps{TTL: time.Hour, Now: func() time.Time { return now }})
	require.NoError(t, err)

	st := memory.New()
	ctx := context.Background()
	var tok *social.AccessToken
	err = st.WithTx(ctx, func(tx store.Tx) error {
		acc, _, err := tx.UpsertUserByEmail(ctx, store.UpsertUserInput{Email: "a@b.io"})
		if err != nil {
			return err
		}
		tok, err = issuer.Issue(ctx, tx, acc, providers.Facebook, "presented")
		return err
	})
	require.NoError(t, err)

	assert.Len(t, tok.Value, 43)
	assert.False(t, strings.ContainsAny(tok.Value, "+/="))
	assert.Equal(t, now, tok.IssuedAt)
	require.NotNil(t, tok.ExpiresAt)
	assert.Equal(t, now.Add(time.Hour), *tok.ExpiresAt)
}

// conflictTx simula un hash ya existente en los primeros inserts.
type conflictTx struct {
	store.Tx
	conflicts int
	inserted  []store.TokenRecord
}

func (c *conflictTx) InsertToken(_ context.Context, rec store.TokenRecord) error {
	if c.conflicts > 0 {
		c.conflicts--
		return store.ErrConflict
	}
	c.inserted = append(c.inserted, rec)
	return nil
}

func TestIssue_RetriesAfterHashConflict(t *testing.T) {
	issuer, err := social.NewTokenIssuer(social.TokenDeps{})
	require.NoError(t, err)

	tx := &conflictTx{conflicts: 2}
	acc := &store.UserAccount{ID: "u1", Email: "a@b.io"}
	tok, err := issuer.Issue(context.Background(), tx, acc, providers.Facebook, "presented")
	require.NoError(t, err)
	require.Len(t, tx.inserted, 1)
	assert.Equal(t, store.HashToken(tok.Value), tx.inserted[0].Hash)
}

func TestIssue_GivesUpAfterRepeatedConflicts(t *testing.T) {
	issuer, err := social.NewTokenIssuer(social.TokenDeps{})
	require.NoError(t, err)

	tx := &conflictTx{conflicts: 10}
	_, err = issuer.Issue(context.Background(), tx, &store.UserAccount{ID: "u1"}, providers.Facebook, "presented")
	assert.True(t, errors.Is(err, social.ErrStoreFailure))
	assert.ErrorIs(t, err, social.ErrTokenCollision)
	assert.Empty(t, tx.inserted)
}
