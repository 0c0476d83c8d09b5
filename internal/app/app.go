// Package app builds the service from its configuration and owns every long lived resource.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/webnote/adapters/cache"
	"github.com/layer-3/webnote/adapters/events"
	"github.com/layer-3/webnote/adapters/identity"
	"github.com/layer-3/webnote/adapters/tokenizer"
	"github.com/layer-3/webnote/adapters/users"
	"github.com/layer-3/webnote/config"
	"github.com/layer-3/webnote/internal/log"
	"github.com/layer-3/webnote/ports"
	"github.com/layer-3/webnote/service"
	transport "github.com/layer-3/webnote/transport/http"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const defaultPingTimeout = 5 * time.Second

// App is the explicitly constructed application context
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Cache  ports.Cache
	Auth   *service.AuthService
	Router *gin.Engine

	closers []func() error
}

// New wires every component described by cfg. On failure the resources opened so far are released.
func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	a := &App{
		Config: cfg,
		Logger: log.New("webnote", cfg.Log.Level),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	redisClient, err := a.setupCache(ctx)
	if err != nil {
		return nil, err
	}

	store, err := a.setupUserStore(ctx)
	if err != nil {
		return nil, err
	}

	tok, err := tokenizer.NewJWTTokenizer([]byte(cfg.Auth.JWTSecret), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer: %w", err)
	}

	publisher, err := a.setupEvents(redisClient)
	if err != nil {
		return nil, err
	}

	opts, err := a.identityOptions(ctx)
	if err != nil {
		return nil, err
	}
	opts = append(opts, service.WithLogger(log.New("auth", cfg.Log.Level)))

	a.Auth, err = service.NewAuthService(a.Cache, store, tok, publisher, service.Config{
		AccessValidity:    cfg.Auth.AccessValidity,
		RefreshValidity:   cfg.Auth.RefreshValidity,
		ChallengeTTL:      cfg.Auth.ChallengeTTL,
		NonceTTL:          cfg.Auth.NonceTTL,
		StateTTL:          cfg.Auth.StateTTL,
		NonceFailOpen:     cfg.Auth.NonceFailOpen,
		KeygenConcurrency: cfg.Auth.KeygenConcurrency,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth service: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	a.Router, err = transport.SetupRouter(a.Auth, transport.Config{
		AccessCookieName:  cfg.Auth.AccessCookieName,
		RefreshCookieName: cfg.Auth.RefreshCookieName,
		SuccessURL:        cfg.Auth.SuccessURL,
		LoginURL:          cfg.Auth.LoginURL,
		AnonymousPaths:    cfg.Auth.AnonymousPaths,
	}, log.New("http", cfg.Log.Level))
	if err != nil {
		return nil, err
	}

	return a, nil
}

// setupCache returns the redis client when the distributed backend is selected
func (a *App) setupCache(ctx context.Context) (redis.UniversalClient, error) {
	cfg := a.Config
	switch cfg.Cache.Provider {
	case config.CacheRedis:
		client, err := cache.NewRedisClient(cache.RedisConfig{
			Nodes:            cfg.Cache.Redis.Nodes,
			Username:         cfg.Cache.Redis.Username,
			Password:         cfg.Cache.Redis.Password,
			Cluster:          cfg.Cache.Redis.Cluster,
			ConnTimeout:      cfg.Cache.Redis.ConnTimeout,
			ResponseTimeout:  cfg.Cache.Redis.ResponseTimeout,
			Retries:          cfg.Cache.Redis.Retries,
			ReadFromReplicas: cfg.Cache.Redis.ReadFromReplicas,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis client: %w", err)
		}
		rc := cache.NewRedisCache(client, cfg.Cache.Redis.KeyPrefix)
		a.closers = append(a.closers, rc.Close)

		timeout := cfg.Cache.Redis.ConnTimeout + cfg.Cache.Redis.ResponseTimeout
		if timeout <= 0 {
			timeout = defaultPingTimeout
		}
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := rc.Ping(pingCtx); err != nil {
			a.Logger.Warn().Err(err).Strs("nodes", cfg.Cache.Redis.Nodes).Msg("redis not reachable at startup")
		}

		a.Cache = rc
		return client, nil

	default:
		mc, err := cache.NewMemoryCache(cache.MemoryConfig{
			MaxCapacity:    cfg.Cache.Memory.MaxCapacity,
			TTL:            memoryCacheTTL(cfg),
			EvictionPolicy: cfg.Cache.Memory.EvictionPolicy,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create memory cache: %w", err)
		}
		a.Cache = mc
		return nil, nil
	}
}

// memoryCacheTTL keeps the cache-wide bound from cutting revocation entries short
func memoryCacheTTL(cfg *config.Config) time.Duration {
	ttl := cfg.Cache.Memory.TTL
	for _, d := range []time.Duration{cfg.Auth.AccessValidity, cfg.Auth.RefreshValidity, cfg.Auth.ChallengeTTL, cfg.Auth.StateTTL} {
		if ttl > 0 && d > ttl {
			ttl = d
		}
	}
	return ttl
}

func (a *App) setupUserStore(ctx context.Context) (ports.UserStore, error) {
	if a.Config.Store.Provider != config.StoreSQLite {
		return users.NewMemoryStore(), nil
	}

	db, err := users.OpenSQLite(a.Config.Store.SQLite.DSN)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)

	store, err := users.NewBunStore(ctx, db)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func (a *App) setupEvents(redisClient redis.UniversalClient) (ports.EventPublisher, error) {
	cfg := a.Config.Events
	if !cfg.Enabled {
		return events.NopPublisher{}, nil
	}

	wmLogger := events.NewZerologAdapter(log.New("events", a.Config.Log.Level))

	var publisher message.Publisher
	if redisClient != nil {
		p, err := redisstream.NewPublisher(redisstream.PublisherConfig{Client: redisClient}, wmLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis stream publisher: %w", err)
		}
		publisher = p
	} else {
		publisher = gochannel.NewGoChannel(gochannel.Config{}, wmLogger)
	}

	wp := events.NewWatermillPublisher(publisher, cfg.Topic)
	a.closers = append(a.closers, wp.Close)
	return wp, nil
}

func (a *App) identityOptions(ctx context.Context) ([]service.Option, error) {
	cfg := a.Config.Auth
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	opts := []service.Option{service.WithWallet(identity.NewWalletVerifier())}

	if cfg.OIDC.Enabled {
		client, err := identity.NewOIDCClient(ctx, identity.OIDCConfig{
			IssuerURL:    cfg.OIDC.IssuerURL,
			ClientID:     cfg.OIDC.ClientID,
			ClientSecret: cfg.OIDC.ClientSecret,
			RedirectURL:  cfg.OIDC.RedirectURL,
			Scopes:       strings.Fields(cfg.OIDC.Scope),
		}, httpClient)
		if err != nil {
			return nil, err
		}
		opts = append(opts, service.WithOIDC(client))
	}

	if cfg.Github.Enabled {
		opts = append(opts, service.WithGithub(identity.NewGithubClient(identity.GithubConfig{
			ClientID:     cfg.Github.ClientID,
			ClientSecret: cfg.Github.ClientSecret,
			AuthURL:      cfg.Github.AuthURL,
			TokenURL:     cfg.Github.TokenURL,
			RedirectURL:  cfg.Github.RedirectURL,
			UserInfoURL:  cfg.Github.UserInfoURL,
			Scopes:       strings.Fields(cfg.Github.Scope),
		}, httpClient)))
	}

	return opts, nil
}

// Close releases resources in reverse order of acquisition
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		// the redis stream publisher closes the shared client before the cache does
		if err := a.closers[i](); err != nil && !errors.Is(err, redis.ErrClosed) {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
