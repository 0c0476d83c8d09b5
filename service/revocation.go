package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

func revocationKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return revocationKeyPrefix + hex.EncodeToString(sum[:])
}

// Revoke blacklists an access token for the longest lifetime it could have left.
// Revoking a token twice is a no-op.
func (s *AuthService) Revoke(ctx context.Context, token string) error {
	_, err := s.revoke(ctx, token, s.cfg.AccessValidity)
	return err
}

// revoke blacklists token and reports whether this call was the one that did
func (s *AuthService) revoke(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	revokedAt := strconv.FormatInt(s.now().Unix(), 10)
	won, err := s.cache.SetNX(ctx, revocationKey(token), revokedAt, ttl)
	if err != nil {
		return false, fmt.Errorf("failed to revoke token: %w", err)
	}

	if won {
		s.logger.Debug().Str("token", fingerprint(token)).Msg("token revoked")
	}
	return won, nil
}

// isRevoked reports whether token is blacklisted. Cache failures are returned, never treated as absent.
func (s *AuthService) isRevoked(ctx context.Context, token string) (bool, error) {
	_, found, err := s.cache.Get(ctx, revocationKey(token))
	if err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}
	return found, nil
}
