package core

import "errors"

var (
	ErrChallengeExpiredOrMissing      = errors.New("login challenge expired or missing")
	ErrDecryptionFailed               = errors.New("credential decryption failed")
	ErrUserNotFound                   = errors.New("user not found")
	ErrInvalidCredentials             = errors.New("invalid credentials")
	ErrTokenInvalidOrExpired          = errors.New("token is invalid or expired")
	ErrTokenRevoked                   = errors.New("token has been revoked")
	ErrNonceMismatch                  = errors.New("nonce mismatch")
	ErrExternalIdentityExchangeFailed = errors.New("external identity exchange failed")
	ErrCacheUnavailable               = errors.New("cache unavailable")

	ErrInvalidSignature = errors.New("invalid signature")
	ErrStateMismatch    = errors.New("oauth state mismatch")
	ErrProviderDisabled = errors.New("identity provider disabled")
)

