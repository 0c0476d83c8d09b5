package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/layer-3/webnote/core"
)

func walletSession(address string) string {
	return walletNoncePrefix + strings.ToLower(strings.TrimSpace(address))
}

// WalletChallenge returns the message the wallet at address has to sign to log in
func (s *AuthService) WalletChallenge(ctx context.Context, address string) (string, error) {
	if s.wallet == nil {
		return "", core.ErrProviderDisabled
	}
	if strings.TrimSpace(address) == "" {
		return "", fmt.Errorf("address is required: %w", ErrInvalidInput)
	}

	nonce, err := randomToken(16)
	if err != nil {
		return "", err
	}
	message := fmt.Sprintf("Sign in to webnote\nAddress: %s\nNonce: %s", strings.TrimSpace(address), nonce)

	// Signing happens in a wallet UI, so the message lives as long as a password challenge
	if err := s.cache.Set(ctx, nonceKey(walletSession(address)), message, s.cfg.ChallengeTTL); err != nil {
		return "", fmt.Errorf("failed to store wallet challenge: %w", err)
	}

	return message, nil
}

// VerifyWallet checks the signature over the pending challenge of address and resolves the wallet user.
// The challenge is consumed by the first attempt.
func (s *AuthService) VerifyWallet(ctx context.Context, address, signature string) (*core.User, error) {
	if s.wallet == nil {
		return nil, core.ErrProviderDisabled
	}

	key := nonceKey(walletSession(address))
	message, found, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet challenge: %w", err)
	}
	if !found {
		return nil, core.ErrChallengeExpiredOrMissing
	}
	consumed, err := s.cache.Delete(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to consume wallet challenge: %w", err)
	}
	if !consumed {
		return nil, core.ErrChallengeExpiredOrMissing
	}

	if err := s.wallet.Verify(strings.TrimSpace(address), message, signature); err != nil {
		return nil, err
	}

	return s.upsertExternal(ctx, core.ExternalIdentity{
		Provider: core.PrincipalEthers,
		Subject:  strings.ToLower(strings.TrimSpace(address)),
	})
}
