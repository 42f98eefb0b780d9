// Package server arma el handler HTTP con todas sus dependencias.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	rdb "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/socialjohn/internal/config"
	healthctrl "github.com/dropDatabas3/socialjohn/internal/http/v2/controllers/health"
	socialctrl "github.com/dropDatabas3/socialjohn/internal/http/v2/controllers/social"
	"github.com/dropDatabas3/socialjohn/internal/http/v2/providers"
	"github.com/dropDatabas3/socialjohn/internal/http/v2/providers/facebook"
	"github.com/dropDatabas3/socialjohn/internal/http/v2/providers/google"
	"github.com/dropDatabas3/socialjohn/internal/http/v2/router"
	healthsvc "github.com/dropDatabas3/socialjohn/internal/http/v2/services/health"
	socialsvc "github.com/dropDatabas3/socialjohn/internal/http/v2/services/social"
	"github.com/dropDatabas3/socialjohn/internal/metrics"
	"github.com/dropDatabas3/socialjohn/internal/observability/logger"
	"github.com/dropDatabas3/socialjohn/internal/rate"
	store "github.com/dropDatabas3/socialjohn/internal/store/v2"
)

// Options permite reemplazar dependencias externas (tests).
type Options struct {
	// HTTPClient para las llamadas user-info; nil usa uno propio.
	HTTPClient *http.Client
	// Store ya abierto; nil abre uno con store.Open según la config.
	Store store.Store
}

// App es el resultado del wiring.
type App struct {
	Handler http.Handler
	Store   store.Store
	Metrics *metrics.Metrics

	closers []func() error
}

// Close libera recursos en orden inverso de creación.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Build instancia store, providers, limiter, métricas y router a partir de cfg.
// Los adapters de store deben estar registrados (import de adapters/all).
func Build(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	log := logger.L().With(logger.Layer("server"), logger.Op("Build"))
	app := &App{}

	// 1. Store
	st := opts.Store
	if st == nil {
		var err error
		st, err = store.Open(ctx, store.Config{
			Driver:   cfg.Storage.Driver,
			DSN:      cfg.Storage.DSN,
			MaxConns: int32(cfg.Storage.Postgres.MaxConns),
			MinConns: int32(cfg.Storage.Postgres.MinConns),
		})
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		app.closers = append(app.closers, st.Close)
	}
	app.Store = st

	// 2. Métricas (con gauges del pool si el store es Postgres)
	mcfg := metrics.Config{}
	if p, ok := st.(interface{ Pool() *pgxpool.Pool }); ok {
		mcfg.PgPool = p.Pool
	}
	m, err := metrics.New(mcfg)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("metrics: %w", err)
	}
	app.Metrics = m

	// 3. Providers
	registry, err := buildRegistry(cfg, opts.HTTPClient, m)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	// 4. Token issuer
	format, err := socialsvc.ParseTokenFormat(cfg.Tokens.Format)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	tokens, err := socialsvc.NewTokenIssuer(socialsvc.TokenDeps{
		Format:     format,
		SigningKey: []byte(cfg.Tokens.SigningKey),
		Issuer:     cfg.Tokens.Issuer,
		TTL:        config.Duration(cfg.Tokens.TTL),
	})
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	// 5. Redis (opcional): rate limiting compartido + readiness
	var redisCheck func(context.Context) error
	var limiter rate.Limiter
	window := config.Duration(cfg.Rate.Login.Window)
	if addr := strings.TrimSpace(cfg.Redis.Addr); addr != "" {
		client := rdb.NewClient(&rdb.Options{
			Addr:     addr,
			DB:       cfg.Redis.DB,
			Password: cfg.Redis.Password,
		})
		app.closers = append(app.closers, client.Close)
		redisCheck = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		if cfg.Rate.Enabled {
			limiter = rate.NewRedisLimiter(client, cfg.Redis.Prefix, cfg.Rate.Login.Limit, window)
		}
	} else if cfg.Rate.Enabled {
		log.Warn("redis not configured, using in-process rate limiter")
		limiter = rate.NewMemoryLimiter(cfg.Rate.Login.Limit, window)
	}

	// 6. Services + controllers
	services := socialsvc.NewServices(socialsvc.Deps{
		Registry:     registry,
		Store:        st,
		Tokens:       tokens,
		Observer:     m.ObserveLogin,
		StoreTimeout: config.Duration(cfg.Storage.Timeout),
	})
	health := healthsvc.NewHealthService(healthsvc.Deps{
		StoreCheck: st.Ping,
		RedisCheck: redisCheck,
		Version:    cfg.App.Version,
	})

	app.Handler = router.New(router.Deps{
		Social:      socialctrl.NewControllers(services),
		Health:      healthctrl.NewHealthController(health),
		Metrics:     m,
		RateLimiter: limiter,
		TrustProxy:  cfg.Server.TrustProxy,
	})

	log.Info("handler ready",
		logger.String("storage", st.Driver()),
		logger.Any("providers", services.Providers.Enabled()),
		logger.String("token_format", string(format)),
		logger.Bool("rate_limit", limiter != nil),
	)
	return app, nil
}

func buildRegistry(cfg *config.Config, httpClient *http.Client, m *metrics.Metrics) (*providers.Registry, error) {
	client := providers.NewUserInfoClient(providers.ClientConfig{
		HTTPClient: httpClient,
		Timeout:    config.Duration(cfg.Providers.Timeout),
		Observer: func(p providers.ID, outcome string, elapsed time.Duration) {
			m.ObserveProvider(p.String(), outcome, elapsed)
		},
	})

	adapters := make([]providers.Adapter, 0, len(cfg.Providers.Enabled))
	for _, name := range cfg.Providers.Enabled {
		id, ok := providers.ParseID(name)
		if !ok {
			return nil, fmt.Errorf("unknown provider %q", name)
		}
		switch id {
		case providers.Facebook:
			adapters = append(adapters, facebook.New(facebook.Config{
				UserInfoURL: cfg.Providers.Facebook.UserInfoURL,
				AppSecret:   cfg.Providers.Facebook.AppSecret,
				Fields:      cfg.Providers.Facebook.Fields,
			}, client))
		case providers.GoogleOAuth2:
			adapters = append(adapters, google.New(google.Config{
				UserInfoURL: cfg.Providers.Google.UserInfoURL,
			}, client))
		}
	}
	return providers.NewRegistry(adapters...)
}
