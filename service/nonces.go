package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/layer-3/webnote/core"
)

func nonceKey(sid string) string {
	return nonceKeyPrefix + sid
}

// CreateNonce stores nonce for the session sid, replacing any previous one
func (s *AuthService) CreateNonce(ctx context.Context, sid, nonce string) error {
	return s.storeNonce(ctx, sid, nonce, s.cfg.NonceTTL)
}

func (s *AuthService) storeNonce(ctx context.Context, sid, nonce string, ttl time.Duration) error {
	if err := s.cache.Set(ctx, nonceKey(sid), nonce, ttl); err != nil {
		return fmt.Errorf("failed to store nonce: %w", err)
	}
	return nil
}

// GetNonce returns the nonce stored for sid
func (s *AuthService) GetNonce(ctx context.Context, sid string) (string, bool, error) {
	nonce, found, err := s.cache.Get(ctx, nonceKey(sid))
	if err != nil {
		return "", false, fmt.Errorf("failed to load nonce: %w", err)
	}
	return nonce, found, nil
}

// consumeNonce checks got against the nonce stored for sid and removes it.
// Cache failures are tolerated when the service is configured fail-open.
func (s *AuthService) consumeNonce(ctx context.Context, sid, got string) error {
	want, found, err := s.GetNonce(ctx, sid)
	if err != nil {
		if s.cfg.NonceFailOpen {
			s.logger.Warn().Err(err).Msg("nonce store unavailable, skipping nonce check")
			return nil
		}
		return err
	}
	if !found || got == "" || subtle.ConstantTimeCompare([]byte(want), []byte(got)) != 1 {
		return core.ErrNonceMismatch
	}

	consumed, err := s.cache.Delete(ctx, nonceKey(sid))
	if err != nil {
		if s.cfg.NonceFailOpen {
			s.logger.Warn().Err(err).Msg("failed to consume nonce")
			return nil
		}
		return fmt.Errorf("failed to consume nonce: %w", err)
	}
	if !consumed {
		return core.ErrNonceMismatch
	}
	return nil
}

// randomToken returns n random bytes, URL-safe encoded
func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
