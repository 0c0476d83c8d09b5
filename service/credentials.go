package service

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/layer-3/webnote/core"
	"github.com/layer-3/webnote/internal/cipher"
)

// MaxFingerprintLength bounds the client supplied challenge fingerprint
const MaxFingerprintLength = 128

var absentUserCredential = core.HashCredential("")

func challengeKey(fp string) string {
	return challengeKeyPrefix + fp
}

// RequestChallenge generates a one-time keypair for fp, keeps the private half in the cache
// for the challenge TTL and returns the encoded public key
func (s *AuthService) RequestChallenge(ctx context.Context, fp string) (string, error) {
	if fp == "" || len(fp) > MaxFingerprintLength {
		return "", fmt.Errorf("fingerprint must be 1 to %d bytes: %w", MaxFingerprintLength, ErrInvalidInput)
	}

	kp, err := s.generateKeyPair(ctx)
	if err != nil {
		return "", err
	}

	if err := s.cache.Set(ctx, challengeKey(fp), kp.PrivateKey, s.cfg.ChallengeTTL); err != nil {
		return "", fmt.Errorf("failed to store challenge: %w", err)
	}

	s.logger.Debug().Str("fp", fingerprint(fp)).Msg("login challenge issued")
	return kp.PublicKey, nil
}

// generateKeyPair runs key generation with bounded parallelism so bursts of challenges
// cannot occupy every processor
func (s *AuthService) generateKeyPair(ctx context.Context) (*cipher.KeyPair, error) {
	if err := s.keygen.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("failed to acquire keygen slot: %w", err)
	}
	defer s.keygen.Release(1)

	kp, err := s.newKeyPair()
	if err != nil {
		return nil, fmt.Errorf("failed to generate challenge key: %w", err)
	}
	return kp, nil
}

// VerifyPassword decrypts the credential hash sent for the challenge of fp and compares it
// with the stored hash of username. The challenge is consumed by the first attempt.
func (s *AuthService) VerifyPassword(ctx context.Context, fp, username, ciphertext string) (*core.User, error) {
	key := challengeKey(fp)

	privateKey, found, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load challenge: %w", err)
	}
	if !found {
		return nil, core.ErrChallengeExpiredOrMissing
	}
	consumed, err := s.cache.Delete(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to consume challenge: %w", err)
	}
	if !consumed {
		return nil, core.ErrChallengeExpiredOrMissing
	}

	plain, err := cipher.Decrypt(privateKey, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrDecryptionFailed, err)
	}

	user, err := s.users.GetByName(ctx, username)
	if err != nil {
		// unknown users pay for the same comparison as known ones
		subtle.ConstantTimeCompare(plain, []byte(absentUserCredential))
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if user.Password == "" || subtle.ConstantTimeCompare(plain, []byte(user.Password)) != 1 {
		s.logger.Info().Str("fp", fingerprint(fp)).Str("user_id", user.ID).Msg("password mismatch")
		return nil, core.ErrInvalidCredentials
	}

	return user, nil
}
