package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/socialjohn/internal/http/v2/providers"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env      string `yaml:"app_env"`
		LogLevel string `yaml:"log_level"`
		Version  string `yaml:"version"`
	} `yaml:"app"`

	Server struct {
		Addr            string `yaml:"addr"`
		ReadTimeout     string `yaml:"read_timeout"`
		WriteTimeout    string `yaml:"write_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
		// TrustProxy habilita X-Forwarded-For para la IP del rate limiter.
		TrustProxy bool `yaml:"trust_proxy"`
	} `yaml:"server"`

	Storage struct {
		Driver string `yaml:"driver"` // memory | postgres
		DSN    string `yaml:"dsn"`
		// Timeout de la transacción de reconciliación + emisión.
		Timeout  string `yaml:"timeout"`
		Postgres struct {
			MaxConns int `yaml:"max_conns"`
			MinConns int `yaml:"min_conns"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Redis struct {
		Addr     string `yaml:"addr"`
		DB       int    `yaml:"db"`
		Password string `yaml:"password"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`

	Rate struct {
		Enabled bool `yaml:"enabled"`
		Login   struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"login"`
	} `yaml:"rate"`

	Providers struct {
		Enabled  []string `yaml:"enabled"`
		Timeout  string   `yaml:"timeout"`
		Facebook struct {
			UserInfoURL string   `yaml:"userinfo_url"`
			AppSecret   string   `yaml:"app_secret"`
			Fields      []string `yaml:"fields"`
		} `yaml:"facebook"`
		Google struct {
			UserInfoURL string `yaml:"userinfo_url"`
		} `yaml:"google"`
	} `yaml:"providers"`

	Tokens struct {
		Format     string `yaml:"format"` // opaque | jwt
		SigningKey string `yaml:"signing_key"`
		Issuer     string `yaml:"issuer"`
		TTL        string `yaml:"ttl"` // vacío = sin expiración
	} `yaml:"tokens"`
}

// Load lee el YAML en path (si existe), aplica defaults y overrides de entorno
// y valida. Sin archivo quedan defaults + env.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &c); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}

	c.applyEnvOverrides()
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "15s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "30s"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Storage.Timeout == "" {
		c.Storage.Timeout = "5s"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "rl:social:"
	}
	if c.Rate.Login.Limit == 0 {
		c.Rate.Login.Limit = 10
	}
	if c.Rate.Login.Window == "" {
		c.Rate.Login.Window = "1m"
	}
	if len(c.Providers.Enabled) == 0 {
		for _, id := range providers.Known() {
			c.Providers.Enabled = append(c.Providers.Enabled, id.String())
		}
	}
	if c.Providers.Timeout == "" {
		c.Providers.Timeout = "10s"
	}
	if c.Tokens.Format == "" {
		c.Tokens.Format = "opaque"
	}
}

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.App.LogLevel = strings.ToLower(v)
	}
	if v, ok := getEnvStr("APP_VERSION"); ok {
		c.App.Version = v
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("SERVER_SHUTDOWN_TIMEOUT"); ok {
		c.Server.ShutdownTimeout = v
	}
	if v, ok := getEnvBool("SERVER_TRUST_PROXY"); ok {
		c.Server.TrustProxy = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = strings.ToLower(v)
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvStr("STORAGE_TIMEOUT"); ok {
		c.Storage.Timeout = v
	}
	if v, ok := getEnvInt("STORAGE_MAX_CONNS"); ok {
		c.Storage.Postgres.MaxConns = v
	}

	// REDIS
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Redis.Password = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Redis.Prefix = v
	}

	// RATE
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvInt("RATE_LOGIN_LIMIT"); ok {
		c.Rate.Login.Limit = v
	}
	if v, ok := getEnvStr("RATE_LOGIN_WINDOW"); ok {
		c.Rate.Login.Window = v
	}

	// PROVIDERS
	if v, ok := getEnvCSV("PROVIDERS_ENABLED"); ok {
		c.Providers.Enabled = v
	}
	if v, ok := getEnvStr("PROVIDERS_TIMEOUT"); ok {
		c.Providers.Timeout = v
	}
	if v, ok := getEnvStr("FACEBOOK_USERINFO_URL"); ok {
		c.Providers.Facebook.UserInfoURL = v
	}
	if v, ok := getEnvStr("FACEBOOK_APP_SECRET"); ok {
		c.Providers.Facebook.AppSecret = v
	}
	if v, ok := getEnvCSV("FACEBOOK_FIELDS"); ok {
		c.Providers.Facebook.Fields = v
	}
	if v, ok := getEnvStr("GOOGLE_USERINFO_URL"); ok {
		c.Providers.Google.UserInfoURL = v
	}

	// TOKENS
	if v, ok := getEnvStr("TOKENS_FORMAT"); ok {
		c.Tokens.Format = strings.ToLower(v)
	}
	if v, ok := getEnvStr("TOKENS_SIGNING_KEY"); ok {
		c.Tokens.SigningKey = v
	}
	if v, ok := getEnvStr("TOKENS_ISSUER"); ok {
		c.Tokens.Issuer = v
	}
	if v, ok := getEnvStr("TOKENS_TTL"); ok {
		c.Tokens.TTL = v
	}
}

// Validate revisa combinaciones inválidas. Los errores nunca incluyen secretos.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return errors.New("config: storage.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}

	if len(c.Providers.Enabled) == 0 {
		return errors.New("config: at least one provider must be enabled")
	}
	for _, p := range c.Providers.Enabled {
		if _, ok := providers.ParseID(p); !ok {
			return fmt.Errorf("config: unknown provider %q", p)
		}
	}

	switch c.Tokens.Format {
	case "opaque":
	case "jwt":
		if len(c.Tokens.SigningKey) < 32 {
			return errors.New("config: tokens.signing_key must be at least 32 bytes for jwt")
		}
	default:
		return fmt.Errorf("config: unknown token format %q", c.Tokens.Format)
	}

	if c.Rate.Enabled && c.Rate.Login.Limit <= 0 {
		return errors.New("config: rate.login.limit must be positive")
	}

	for name, v := range map[string]string{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"storage.timeout":         c.Storage.Timeout,
		"rate.login.window":       c.Rate.Login.Window,
		"providers.timeout":       c.Providers.Timeout,
		"tokens.ttl":              c.Tokens.TTL,
	} {
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err != nil || d < 0 {
			return fmt.Errorf("config: invalid duration %s=%q", name, v)
		}
	}
	return nil
}

// Duration parsea un campo ya validado; vacío o inválido devuelve 0.
func Duration(v string) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0
	}
	return d
}
