// Package pg implementa store.Store sobre PostgreSQL con pgxpool.
//
// La unicidad por email la garantiza el índice user_account_email_key: dos
// logins concurrentes con el mismo email terminan en la misma fila vía
// INSERT ... ON CONFLICT (email) DO UPDATE.
package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	store "github.com/dropDatabas3/socialjohn/internal/store/v2"
)

func init() {
	store.RegisterAdapter(postgresAdapter{})
}

type postgresAdapter struct{}

func (postgresAdapter) Name() string { return "postgres" }

func (postgresAdapter) Connect(ctx context.Context, cfg store.Config) (store.Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("pg: %w: empty DSN", store.ErrInvalid)
	}
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pg: parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = cfg.MinConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("pg: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping: %w", err)
	}
	return New(pool), nil
}

// Store sobre un pool existente.
type Store struct {
	pool *pgxpool.Pool
}

// New envuelve pool. Close lo cierra.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool para migraciones.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

func (s *Store) Driver() string { return "postgres" }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("pg: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("pg: commit: %w", err)
	}
	return nil
}

const userColumns = `id, username, email, display_name, first_name, last_name, created_at, updated_at`

func scanUser(row pgx.Row, extra ...any) (*store.UserAccount, error) {
	var u store.UserAccount
	var id uuid.UUID
	dest := append([]any{&id, &u.Username, &u.Email, &u.DisplayName, &u.FirstName, &u.LastName, &u.CreatedAt, &u.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	u.ID = id.String()
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*store.UserAccount, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM user_account WHERE email = $1`, email))
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*store.UserAccount, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, store.ErrNotFound
	}
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM user_account WHERE id = $1`, uid))
}

func (s *Store) ListUsers(ctx context.Context) ([]store.UserAccount, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM user_account ORDER BY email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.UserAccount
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (s *Store) ListLinks(ctx context.Context, userID string) ([]store.SocialLink, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT provider, external_id, user_id, created_at, updated_at
		FROM social_link WHERE user_id = $1
		ORDER BY provider, external_id`, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.SocialLink
	for rows.Next() {
		var l store.SocialLink
		var id uuid.UUID
		if err := rows.Scan(&l.Provider, &l.ExternalID, &id, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		l.UserID = id.String()
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) LookupToken(ctx context.Context, hash string) (*store.TokenRecord, error) {
	var rec store.TokenRecord
	var uid uuid.UUID
	err := s.pool.QueryRow(ctx, `
		SELECT token_hash, user_id, provider, issued_at, expires_at
		FROM access_token
		WHERE token_hash = $1 AND (expires_at IS NULL OR expires_at > now())`, hash,
	).Scan(&rec.Hash, &uid, &rec.Provider, &rec.IssuedAt, &rec.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.UserID = uid.String()
	return &rec, nil
}

type pgTx struct {
	tx pgx.Tx
}

// UpsertUserByEmail: (xmax = 0) es true solo para filas recién insertadas.
func (t *pgTx) UpsertUserByEmail(ctx context.Context, in store.UpsertUserInput) (*store.UserAccount, bool, error) {
	if in.Email == "" {
		return nil, false, store.ErrInvalid
	}
	const q = `
		INSERT INTO user_account (id, username, email, display_name, first_name, last_name, created_at, updated_at)
		VALUES ($1, $2, $2, $3, $4, $5, now(), now())
		ON CONFLICT (email) DO UPDATE SET
			display_name = COALESCE(NULLIF(EXCLUDED.display_name, ''), user_account.display_name),
			first_name   = COALESCE(NULLIF(EXCLUDED.first_name, ''), user_account.first_name),
			last_name    = COALESCE(NULLIF(EXCLUDED.last_name, ''), user_account.last_name),
			updated_at   = now()
		RETURNING ` + userColumns + `, (xmax = 0)`

	var created bool
	u, err := scanUser(t.tx.QueryRow(ctx, q, uuid.New(), in.Email, in.DisplayName, in.FirstName, in.LastName), &created)
	if err != nil {
		return nil, false, translate(err)
	}
	return u, created, nil
}

func (t *pgTx) LinkIdentity(ctx context.Context, link store.SocialLink) error {
	uid, err := uuid.Parse(link.UserID)
	if err != nil || link.Provider == "" || link.ExternalID == "" {
		return store.ErrInvalid
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO social_link (provider, external_id, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (provider, external_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			updated_at = now()`,
		link.Provider, link.ExternalID, uid)
	return translate(err)
}

func (t *pgTx) InsertToken(ctx context.Context, rec store.TokenRecord) error {
	uid, err := uuid.Parse(rec.UserID)
	if err != nil || rec.Hash == "" {
		return store.ErrInvalid
	}
	issued := rec.IssuedAt
	if issued.IsZero() {
		issued = time.Now()
	}
	// ON CONFLICT DO NOTHING: un INSERT fallido abortaría la tx y el issuer no
	// podría reintentar con otro valor.
	tag, err := t.tx.Exec(ctx, `
		INSERT INTO access_token (token_hash, user_id, provider, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (token_hash) DO NOTHING`,
		rec.Hash, uid, rec.Provider, issued, rec.ExpiresAt)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrConflict
	}
	return nil
}

// translate mapea códigos de Postgres a errores del store.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: %s", store.ErrConflict, pgErr.ConstraintName)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%w: %s", store.ErrNotFound, pgErr.ConstraintName)
		case "23514", "22P02": // check_violation, invalid_text_representation
			return fmt.Errorf("%w: %s", store.ErrInvalid, pgErr.Message)
		}
	}
	return err
}
