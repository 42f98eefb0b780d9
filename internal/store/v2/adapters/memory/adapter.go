// Package memory implementa store.Store en memoria. Pensado para tests y
// desarrollo local: los datos se pierden al reiniciar.
//
// Las transacciones se serializan con un lock global; los cambios se acumulan en
// la tx y se aplican solo si fn termina sin error.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	store "github.com/dropDatabas3/socialjohn/internal/store/v2"
)

func init() {
	store.RegisterAdapter(adapter{})
}

type adapter struct{}

func (adapter) Name() string { return "memory" }

func (adapter) Connect(_ context.Context, _ store.Config) (store.Store, error) {
	return New(), nil
}

type linkKey struct{ provider, externalID string }

// Store en memoria. Los tokens viven en go-cache y expiran solos si tienen
// ExpiresAt.
type Store struct {
	txMu sync.Mutex // serializa WithTx

	mu      sync.RWMutex
	users   map[string]*store.UserAccount // por email
	byID    map[string]string             // id -> email
	links   map[linkKey]*store.SocialLink
	tokens  *gocache.Cache
	closed  bool
	now     func() time.Time
	failing error
}

// New crea un store vacío.
func New() *Store {
	return &Store{
		users:  make(map[string]*store.UserAccount),
		byID:   make(map[string]string),
		links:  make(map[linkKey]*store.SocialLink),
		tokens: gocache.New(gocache.NoExpiration, 10*time.Minute),
		now:    time.Now,
	}
}

// FailWith hace que toda operación posterior devuelva err (nil lo desactiva).
// Se usa en tests para simular una caída del store.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	s.failing = err
	s.mu.Unlock()
}

func (s *Store) check() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.New("memory store closed")
	}
	return s.failing
}

func (s *Store) Driver() string { return "memory" }

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := s.check(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{
		s:     s,
		users: make(map[string]*store.UserAccount),
		links: make(map[linkKey]*store.SocialLink),
	}
	if err := fn(tx); err != nil {
		return err
	}
	// El fallo simulado puede activarse en medio de la tx.
	if err := s.check(); err != nil {
		return err
	}
	s.commit(tx)
	return nil
}

func (s *Store) commit(tx *memTx) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for email, u := range tx.users {
		s.users[email] = u
		s.byID[u.ID] = email
	}
	for k, l := range tx.links {
		s.links[k] = l
	}
	for _, rec := range tx.tokens {
		ttl := gocache.NoExpiration
		if rec.ExpiresAt != nil {
			ttl = rec.ExpiresAt.Sub(s.now())
			if ttl <= 0 {
				continue
			}
		}
		s.tokens.Set(rec.Hash, rec, ttl)
	}
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*store.UserAccount, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*store.UserAccount, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	email, ok := s.byID[id]
	s.mu.RUnlock()
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.GetUserByEmail(ctx, email)
}

func (s *Store) ListUsers(_ context.Context) ([]store.UserAccount, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]store.UserAccount, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (s *Store) ListLinks(_ context.Context, userID string) ([]store.SocialLink, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	var out []store.SocialLink
	for _, l := range s.links {
		if l.UserID == userID {
			out = append(out, *l)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].ExternalID < out[j].ExternalID
	})
	return out, nil
}

func (s *Store) LookupToken(_ context.Context, hash string) (*store.TokenRecord, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	v, ok := s.tokens.Get(hash)
	if !ok {
		return nil, store.ErrNotFound
	}
	rec := v.(store.TokenRecord)
	return &rec, nil
}

// TokenCount cantidad de tokens vigentes.
func (s *Store) TokenCount() int { return s.tokens.ItemCount() }

func (s *Store) Ping(context.Context) error { return s.check() }

func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// memTx acumula escrituras; las lecturas ven primero lo pendiente.
type memTx struct {
	s      *Store
	users  map[string]*store.UserAccount
	links  map[linkKey]*store.SocialLink
	tokens []store.TokenRecord
}

func (t *memTx) UpsertUserByEmail(ctx context.Context, in store.UpsertUserInput) (*store.UserAccount, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if in.Email == "" {
		return nil, false, store.ErrInvalid
	}
	now := t.s.now().UTC()

	u, pending := t.users[in.Email]
	if !pending {
		t.s.mu.RLock()
		if cur, ok := t.s.users[in.Email]; ok {
			cp := *cur
			u = &cp
		}
		t.s.mu.RUnlock()
	}

	created := false
	if u == nil {
		created = true
		u = &store.UserAccount{
			ID:        uuid.NewString(),
			Username:  in.Email,
			Email:     in.Email,
			CreatedAt: now,
		}
	}
	applyProfile(u, in)
	u.UpdatedAt = now
	t.users[in.Email] = u

	cp := *u
	return &cp, created, nil
}

// applyProfile no pisa valores con vacíos.
func applyProfile(u *store.UserAccount, in store.UpsertUserInput) {
	if in.DisplayName != "" {
		u.DisplayName = in.DisplayName
	}
	if in.FirstName != "" {
		u.FirstName = in.FirstName
	}
	if in.LastName != "" {
		u.LastName = in.LastName
	}
}

func (t *memTx) userExists(id string) bool {
	for _, u := range t.users {
		if u.ID == id {
			return true
		}
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	_, ok := t.s.byID[id]
	return ok
}

func (t *memTx) LinkIdentity(ctx context.Context, link store.SocialLink) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if link.Provider == "" || link.ExternalID == "" || link.UserID == "" {
		return store.ErrInvalid
	}
	if !t.userExists(link.UserID) {
		return store.ErrNotFound
	}
	now := t.s.now().UTC()
	k := linkKey{link.Provider, link.ExternalID}

	l, pending := t.links[k]
	if !pending {
		t.s.mu.RLock()
		if cur, ok := t.s.links[k]; ok {
			cp := *cur
			l = &cp
		}
		t.s.mu.RUnlock()
	}
	if l == nil {
		l = &store.SocialLink{Provider: link.Provider, ExternalID: link.ExternalID, CreatedAt: now}
	}
	l.UserID = link.UserID
	l.UpdatedAt = now
	t.links[k] = l
	return nil
}

func (t *memTx) InsertToken(ctx context.Context, rec store.TokenRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.Hash == "" || rec.UserID == "" {
		return store.ErrInvalid
	}
	if _, ok := t.s.tokens.Get(rec.Hash); ok {
		return store.ErrConflict
	}
	for _, p := range t.tokens {
		if p.Hash == rec.Hash {
			return store.ErrConflict
		}
	}
	t.tokens = append(t.tokens, rec)
	return nil
}
