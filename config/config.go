// Package config loads the service configuration from defaults, an optional file and WEBNOTE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/layer-3/webnote/internal/pathmatch"
	"github.com/spf13/viper"
)

const EnvPrefix = "WEBNOTE"

const (
	CacheMemory = "memory"
	CacheRedis  = "redis"

	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	Cache  CacheConfig  `mapstructure:"cache"`
	Store  StoreConfig  `mapstructure:"store"`
	Auth   AuthConfig   `mapstructure:"auth"`
	Events EventsConfig `mapstructure:"events"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type CacheConfig struct {
	Provider string            `mapstructure:"provider"`
	Memory   MemoryCacheConfig `mapstructure:"memory"`
	Redis    RedisCacheConfig  `mapstructure:"redis"`
}

type MemoryCacheConfig struct {
	MaxCapacity    int           `mapstructure:"max-capacity"`
	TTL            time.Duration `mapstructure:"ttl"`
	EvictionPolicy string        `mapstructure:"eviction-policy"`
}

type RedisCacheConfig struct {
	Nodes            []string      `mapstructure:"nodes"`
	Username         string        `mapstructure:"username"`
	Password         string        `mapstructure:"password"`
	Cluster          bool          `mapstructure:"cluster"`
	ConnTimeout      time.Duration `mapstructure:"connection-timeout"`
	ResponseTimeout  time.Duration `mapstructure:"response-timeout"`
	Retries          int           `mapstructure:"retries"`
	ReadFromReplicas bool          `mapstructure:"read-from-replicas"`
	KeyPrefix        string        `mapstructure:"key-prefix"`
}

type StoreConfig struct {
	Provider string       `mapstructure:"provider"`
	SQLite   SQLiteConfig `mapstructure:"sqlite"`
}

type SQLiteConfig struct {
	DSN string `mapstructure:"dsn"`
}

type AuthConfig struct {
	JWTSecret         string        `mapstructure:"jwt-secret"`
	AccessCookieName  string        `mapstructure:"jwt-ak-name"`
	RefreshCookieName string        `mapstructure:"jwt-rk-name"`
	AccessValidity    time.Duration `mapstructure:"jwt-validity-ak"`
	RefreshValidity   time.Duration `mapstructure:"jwt-validity-rk"`

	// AnonymousPaths replaces the default anonymous globs when non-nil
	AnonymousPaths []string `mapstructure:"-"`

	ChallengeTTL      time.Duration `mapstructure:"challenge-ttl"`
	NonceTTL          time.Duration `mapstructure:"nonce-ttl"`
	StateTTL          time.Duration `mapstructure:"state-ttl"`
	NonceFailOpen     bool          `mapstructure:"nonce-fail-open"`
	KeygenConcurrency int           `mapstructure:"keygen-concurrency"`
	SuccessURL        string        `mapstructure:"success-url"`
	LoginURL          string        `mapstructure:"login-url"`
	HTTPTimeout       time.Duration `mapstructure:"http-timeout"`

	OIDC   OIDCConfig   `mapstructure:"oidc"`
	Github GithubConfig `mapstructure:"github"`
}

type OIDCConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ClientID     string `mapstructure:"client-id"`
	ClientSecret string `mapstructure:"client-secret"`
	IssuerURL    string `mapstructure:"issuer-url"`
	RedirectURL  string `mapstructure:"redirect-url"`
	Scope        string `mapstructure:"scope"`
}

type GithubConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ClientID     string `mapstructure:"client-id"`
	ClientSecret string `mapstructure:"client-secret"`
	AuthURL      string `mapstructure:"auth-url"`
	TokenURL     string `mapstructure:"token-url"`
	RedirectURL  string `mapstructure:"redirect-url"`
	Scope        string `mapstructure:"scope"`
	UserInfoURL  string `mapstructure:"user-info-url"`
}

type EventsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Topic   string `mapstructure:"topic"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown-timeout", "10s")

	v.SetDefault("log.level", "info")

	v.SetDefault("cache.provider", CacheMemory)
	v.SetDefault("cache.memory.max-capacity", 65535)
	v.SetDefault("cache.memory.ttl", "1h")
	v.SetDefault("cache.memory.eviction-policy", "lru")
	v.SetDefault("cache.redis.nodes", []string{"127.0.0.1:6379"})
	v.SetDefault("cache.redis.username", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.cluster", false)
	v.SetDefault("cache.redis.connection-timeout", "3s")
	v.SetDefault("cache.redis.response-timeout", "6s")
	v.SetDefault("cache.redis.retries", 1)
	v.SetDefault("cache.redis.read-from-replicas", false)
	v.SetDefault("cache.redis.key-prefix", "webnote:")

	v.SetDefault("store.provider", StoreMemory)
	v.SetDefault("store.sqlite.dsn", "file:webnote.db?cache=shared")

	v.SetDefault("auth.jwt-secret", "changeit")
	v.SetDefault("auth.jwt-ak-name", "_ak")
	v.SetDefault("auth.jwt-rk-name", "_rk")
	v.SetDefault("auth.jwt-validity-ak", "1h")
	v.SetDefault("auth.jwt-validity-rk", "24h")
	v.SetDefault("auth.challenge-ttl", "30s")
	v.SetDefault("auth.nonce-ttl", "10s")
	v.SetDefault("auth.state-ttl", "10m")
	v.SetDefault("auth.nonce-fail-open", false)
	v.SetDefault("auth.keygen-concurrency", 0)
	v.SetDefault("auth.success-url", "/static/index.html")
	v.SetDefault("auth.login-url", "/static/login.html")
	v.SetDefault("auth.http-timeout", "10s")

	v.SetDefault("auth.oidc.enabled", false)
	v.SetDefault("auth.oidc.client-id", "")
	v.SetDefault("auth.oidc.client-secret", "")
	v.SetDefault("auth.oidc.issuer-url", "")
	v.SetDefault("auth.oidc.redirect-url", "")
	v.SetDefault("auth.oidc.scope", "openid profile email")

	v.SetDefault("auth.github.enabled", false)
	v.SetDefault("auth.github.client-id", "")
	v.SetDefault("auth.github.client-secret", "")
	v.SetDefault("auth.github.auth-url", "https://github.com/login/oauth/authorize")
	v.SetDefault("auth.github.token-url", "https://github.com/login/oauth/access_token")
	v.SetDefault("auth.github.redirect-url", "")
	v.SetDefault("auth.github.scope", "read:user user:email")
	v.SetDefault("auth.github.user-info-url", "https://api.github.com/user")

	v.SetDefault("events.enabled", true)
	v.SetDefault("events.topic", "webnote.logout")
}

// Load reads the configuration. path may be empty, in which case only defaults and environment apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if v.IsSet("auth.anonymous-paths") {
		cfg.Auth.AnonymousPaths = stringList(v.Get("auth.anonymous-paths"))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// stringList accepts both a list and a comma separated string, the latter being how environment variables arrive
func stringList(raw any) []string {
	out := []string{}
	switch val := raw.(type) {
	case string:
		for _, p := range strings.Split(val, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	case []string:
		out = append(out, val...)
	case []any:
		for _, p := range val {
			out = append(out, fmt.Sprint(p))
		}
	}
	return out
}

// Validate checks the configuration for values the service cannot start with
func (c *Config) Validate() error {
	var errs []error

	switch c.Cache.Provider {
	case CacheMemory, CacheRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown cache provider %q", c.Cache.Provider))
	}
	if c.Cache.Provider == CacheRedis && len(c.Cache.Redis.Nodes) == 0 {
		errs = append(errs, errors.New("cache.redis.nodes is required for the redis cache"))
	}

	switch c.Store.Provider {
	case StoreMemory:
	case StoreSQLite:
		if c.Store.SQLite.DSN == "" {
			errs = append(errs, errors.New("store.sqlite.dsn is required for the sqlite store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store provider %q", c.Store.Provider))
	}

	a := c.Auth
	if a.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt-secret must not be empty"))
	}
	if a.AccessValidity <= 0 || a.RefreshValidity <= 0 {
		errs = append(errs, errors.New("token validity windows must be positive"))
	}
	if a.ChallengeTTL <= 0 || a.NonceTTL <= 0 || a.StateTTL <= 0 {
		errs = append(errs, errors.New("challenge, nonce and state ttl must be positive"))
	}
	if a.AccessCookieName == "" || a.RefreshCookieName == "" {
		errs = append(errs, errors.New("cookie names must not be empty"))
	}
	if err := pathmatch.Validate(a.AnonymousPaths); err != nil {
		errs = append(errs, err)
	}
	if a.OIDC.Enabled && (a.OIDC.ClientID == "" || a.OIDC.ClientSecret == "" || a.OIDC.IssuerURL == "" || a.OIDC.RedirectURL == "") {
		errs = append(errs, errors.New("auth.oidc requires client-id, client-secret, issuer-url and redirect-url"))
	}
	if a.Github.Enabled && (a.Github.ClientID == "" || a.Github.ClientSecret == "" || a.Github.RedirectURL == "") {
		errs = append(errs, errors.New("auth.github requires client-id, client-secret and redirect-url"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
