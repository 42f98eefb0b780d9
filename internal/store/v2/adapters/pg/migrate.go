package pg

import (
	"context"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/dropDatabas3/socialjohn/internal/observability/logger"
)

// migrationFilePattern: {version}_{nombre}_{up|down}.sql
var migrationFilePattern = regexp.MustCompile(`^(\d+)_(.+)_(up|down)\.sql$`)

// Migration una versión con sus dos direcciones.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// ParseMigrations lee las migraciones de fsys (raíz) ordenadas por versión.
func ParseMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	byVersion := map[int]*Migration{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := migrationFilePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		version, _ := strconv.Atoi(m[1])
		body, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		mig, ok := byVersion[version]
		if !ok {
			mig = &Migration{Version: version, Name: m[2]}
			byVersion[version] = mig
		}
		if m[3] == "up" {
			mig.Up = string(body)
		} else {
			mig.Down = string(body)
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

const migrationsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INT PRIMARY KEY,
		name       TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

func appliedVersions(ctx context.Context, pool *pgxpool.Pool) (map[int]bool, error) {
	if _, err := pool.Exec(ctx, migrationsTable); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}
	rows, err := pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	applied := map[int]bool{}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// MigrateUp aplica las migraciones pendientes en orden ascendente. steps <= 0
// aplica todas. Devuelve las versiones aplicadas.
func MigrateUp(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS, steps int) ([]int, error) {
	migs, err := ParseMigrations(fsys)
	if err != nil {
		return nil, err
	}
	applied, err := appliedVersions(ctx, pool)
	if err != nil {
		return nil, err
	}

	var done []int
	for _, m := range migs {
		if applied[m.Version] || m.Up == "" {
			continue
		}
		if steps > 0 && len(done) >= steps {
			break
		}
		if err := runMigration(ctx, pool, m, m.Up, true); err != nil {
			return done, err
		}
		done = append(done, m.Version)
	}
	return done, nil
}

// MigrateDown revierte las últimas steps migraciones aplicadas (todas si
// steps <= 0), de la más nueva a la más vieja.
func MigrateDown(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS, steps int) ([]int, error) {
	migs, err := ParseMigrations(fsys)
	if err != nil {
		return nil, err
	}
	applied, err := appliedVersions(ctx, pool)
	if err != nil {
		return nil, err
	}

	var done []int
	for i := len(migs) - 1; i >= 0; i-- {
		m := migs[i]
		if !applied[m.Version] {
			continue
		}
		if steps > 0 && len(done) >= steps {
			break
		}
		if m.Down == "" {
			return done, fmt.Errorf("migration %04d_%s has no down script", m.Version, m.Name)
		}
		if err := runMigration(ctx, pool, m, m.Down, false); err != nil {
			return done, err
		}
		done = append(done, m.Version)
	}
	return done, nil
}

func runMigration(ctx context.Context, pool *pgxpool.Pool, m Migration, sql string, up bool) error {
	start := time.Now()
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, sql); err != nil {
		return fmt.Errorf("migration %04d_%s: %w", m.Version, m.Name, err)
	}
	if up {
		_, err = tx.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name)
	} else {
		_, err = tx.Exec(ctx, `DELETE FROM schema_migrations WHERE version = $1`, m.Version)
	}
	if err != nil {
		return fmt.Errorf("record migration %04d: %w", m.Version, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	logger.L().Info("migration applied",
		logger.Component("store.pg"),
		zap.Int("version", m.Version),
		zap.String("name", m.Name),
		zap.Bool("up", up),
		logger.DurationMs(time.Since(start)),
	)
	return nil
}
