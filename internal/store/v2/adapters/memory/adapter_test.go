package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	store "github.com/dropDatabas3/socialjohn/internal/store/v2"
	"github.com/dropDatabas3/socialjohn/internal/store/v2/adapters/memory"
)

func upsert(t *testing.T, s *memory.Store, in store.UpsertUserInput) (*store.UserAccount, bool) {
	t.Helper()
	var acc *store.UserAccount
	var created bool
	err := s.WithTx(context.Background(), func(tx store.Tx) error {
		var err error
		acc, created, err = tx.UpsertUserByEmail(context.Background(), in)
		return err
	})
	require.NoError(t, err)
	return acc, created
}

func TestUpsertUserByEmail_CreateThenUpdate(t *testing.T) {
	s := memory.New()

	acc, created := upsert(t, s, store.UpsertUserInput{Email: "foo@bar.com", DisplayName: "Foo Bar", FirstName: "Foo", LastName: "Bar"})
	assert.True(t, created)
	assert.NotEmpty(t, acc.ID)
	assert.Equal(t, "foo@bar.com", acc.Username)

	again, created := upsert(t, s, store.UpsertUserInput{Email: "foo@bar.com", DisplayName: "Foo B.", FirstName: "Foo"})
	assert.False(t, created)
	assert.Equal(t, acc.ID, again.ID)
	assert.Equal(t, "Foo B.", again.DisplayName)
	assert.Equal(t, "Bar", again.LastName, "empty values do not overwrite")

	users, err := s.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestWithTx_RollbackOnError(t *testing.T) {
	s := memory.New()
	boom := errors.New("boom")

	err := s.WithTx(context.Background(), func(tx store.Tx) error {
		acc, _, err := tx.UpsertUserByEmail(context.Background(), store.UpsertUserInput{Email: "x@y.z"})
		require.NoError(t, err)
		require.NoError(t, tx.LinkIdentity(context.Background(), store.SocialLink{Provider: "facebook", ExternalID: "1", UserID: acc.ID}))
		require.NoError(t, tx.InsertToken(context.Background(), store.TokenRecord{Hash: "h", UserID: acc.ID}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.GetUserByEmail(context.Background(), "x@y.z")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.LookupToken(context.Background(), "h")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Zero(t, s.TokenCount())
}

func TestLinkIdentity_Repoints(t *testing.T) {
	s := memory.New()
	a, _ := upsert(t, s, store.UpsertUserInput{Email: "a@x.io"})
	b, _ := upsert(t, s, store.UpsertUserInput{Email: "b@x.io"})
	ctx := context.Background()

	link := func(userID string) {
		require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
			return tx.LinkIdentity(ctx, store.SocialLink{Provider: "facebook", ExternalID: "42", UserID: userID})
		}))
	}
	link(a.ID)
	link(b.ID)

	la, err := s.ListLinks(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, la)
	lb, err := s.ListLinks(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, lb, 1)
	assert.Equal(t, "42", lb[0].ExternalID)
}

func TestLinkIdentity_UnknownUser(t *testing.T) {
	s := memory.New()
	err := s.WithTx(context.Background(), func(tx store.Tx) error {
		return tx.LinkIdentity(context.Background(), store.SocialLink{Provider: "facebook", ExternalID: "1", UserID: "nope"})
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestInsertToken_ConflictAndExpiry(t *testing.T) {
	s := memory.New()
	acc, _ := upsert(t, s, store.UpsertUserInput{Email: "t@x.io"})
	ctx := context.Background()

	insert := func(rec store.TokenRecord) error {
		return s.WithTx(ctx, func(tx store.Tx) error { return tx.InsertToken(ctx, rec) })
	}
	require.NoError(t, insert(store.TokenRecord{Hash: "h1", UserID: acc.ID, Provider: "facebook", IssuedAt: time.Now()}))
	assert.ErrorIs(t, insert(store.TokenRecord{Hash: "h1", UserID: acc.ID}), store.ErrConflict)

	rec, err := s.LookupToken(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, rec.UserID)

	past := time.Now().Add(-time.Minute)
	require.NoError(t, insert(store.TokenRecord{Hash: "h2", UserID: acc.ID, ExpiresAt: &past}))
	_, err = s.LookupToken(ctx, "h2")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestWithTx_ConcurrentSameEmail(t *testing.T) {
	s := memory.New()
	const n = 32
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.WithTx(context.Background(), func(tx store.Tx) error {
				acc, _, err := tx.UpsertUserByEmail(context.Background(), store.UpsertUserInput{Email: "same@x.io"})
				if err == nil {
					ids[i] = acc.ID
				}
				return err
			})
		}(i)
	}
	wg.Wait()

	users, err := s.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	for _, id := range ids {
		assert.Equal(t, users[0].ID, id)
	}
}

func TestFailWith(t *testing.T) {
	s := memory.New()
	down := errors.New("db down")
	s.FailWith(down)

	assert.ErrorIs(t, s.Ping(context.Background()), down)
	err := s.WithTx(context.Background(), func(store.Tx) error { return nil })
	assert.ErrorIs(t, err, down)

	s.FailWith(nil)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestOpenByDriverName(t *testing.T) {
	st, err := store.Open(context.Background(), store.Config{Driver: "memory"})
	require.NoError(t, err)
	assert.Equal(t, "memory", st.Driver())
	require.NoError(t, st.Close())
	assert.Error(t, st.Ping(context.Background()))

	_, err = store.Open(context.Background(), store.Config{Driver: "oracle"})
	assert.Error(t, err)
}
