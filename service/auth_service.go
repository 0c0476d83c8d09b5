package service

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"runtime"
	"time"

	"github.com/layer-3/webnote/internal/cipher"
	"github.com/layer-3/webnote/ports"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// Cache key namespaces
const (
	challengeKeyPrefix  = "login:privatekey:"
	nonceKeyPrefix      = "auth:nonce:"
	revocationKeyPrefix = "logout:blacklist:"
	walletNoncePrefix   = "wallet:"
)

// DefaultStateTTL bounds the GitHub consent round trip
const DefaultStateTTL = 10 * time.Minute

// Config holds the session and handshake settings of the auth service
type Config struct {
	AccessValidity  time.Duration
	RefreshValidity time.Duration
	ChallengeTTL    time.Duration
	NonceTTL        time.Duration

	// StateTTL is how long a GitHub login may stay at the provider, DefaultStateTTL when zero
	StateTTL time.Duration

	// NonceFailOpen lets federated callbacks proceed when the nonce store is unreachable.
	// Challenges and revocation checks always fail closed.
	NonceFailOpen bool

	// KeygenConcurrency bounds concurrent RSA key generations, GOMAXPROCS when zero
	KeygenConcurrency int
}

// DefaultConfig returns the default validity windows and TTLs
func DefaultConfig() Config {
	return Config{
		AccessValidity:  time.Hour,
		RefreshValidity: 24 * time.Hour,
		ChallengeTTL:    30 * time.Second,
		NonceTTL:        10 * time.Second,
		StateTTL:        DefaultStateTTL,
	}
}

// AuthService handles authentication business logic
type AuthService struct {
	cache     ports.Cache
	users     ports.UserStore
	tokenizer ports.Tokenizer
	eventPub  ports.EventPublisher

	oidc   ports.OIDCClient
	github ports.OAuth2Client
	wallet ports.WalletVerifier

	cfg        Config
	keygen     *semaphore.Weighted
	newKeyPair func() (*cipher.KeyPair, error)
	now        func() time.Time
	logger     zerolog.Logger
}

// Option configures optional collaborators of the AuthService
type Option func(*AuthService)

// WithOIDC enables the OpenID Connect login flow
func WithOIDC(client ports.OIDCClient) Option {
	return func(s *AuthService) { s.oidc = client }
}

// WithGithub enables the GitHub OAuth2 login flow
func WithGithub(client ports.OAuth2Client) Option {
	return func(s *AuthService) { s.github = client }
}

// WithWallet enables wallet signature login
func WithWallet(verifier ports.WalletVerifier) Option {
	return func(s *AuthService) { s.wallet = verifier }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *AuthService) { s.now = now }
}

// WithLogger sets the service logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *AuthService) { s.logger = logger }
}

// NewAuthService creates a new authentication service
func NewAuthService(
	cache ports.Cache,
	users ports.UserStore,
	tokenizer ports.Tokenizer,
	eventPub ports.EventPublisher,
	cfg Config,
	opts ...Option,
) (*AuthService, error) {
	if cache == nil || users == nil || tokenizer == nil || eventPub == nil {
		return nil, errors.New("cache, user store, tokenizer and event publisher are required")
	}
	if cfg.AccessValidity <= 0 || cfg.RefreshValidity <= 0 {
		return nil, errors.New("token validity windows must be positive")
	}
	if cfg.ChallengeTTL <= 0 || cfg.NonceTTL <= 0 {
		return nil, errors.New("challenge and nonce ttl must be positive")
	}

	if cfg.StateTTL <= 0 {
		cfg.StateTTL = DefaultStateTTL
	}

	workers := cfg.KeygenConcurrency
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	s := &AuthService{
		cache:      cache,
		users:      users,
		tokenizer:  tokenizer,
		eventPub:   eventPub,
		cfg:        cfg,
		keygen:     semaphore.NewWeighted(int64(workers)),
		newKeyPair: cipher.GenerateKeyPair,
		now:        time.Now,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// StateTTL is how long a federated login handshake stays valid
func (s *AuthService) StateTTL() time.Duration { return s.cfg.StateTTL }

// AccessValidity is the lifetime of issued access tokens
func (s *AuthService) AccessValidity() time.Duration { return s.cfg.AccessValidity }

// RefreshValidity is the lifetime of issued refresh tokens
func (s *AuthService) RefreshValidity() time.Duration { return s.cfg.RefreshValidity }

// fingerprint identifies a secret in logs without revealing it
func fingerprint(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:4])
}
