package ports

import (
	"context"
	"time"
)

// Cache is the ephemeral key/value store holding login challenges, nonces and revocation entries.
// Implementations are safe for concurrent use.
type Cache interface {
	// Get returns the value stored under key. found is false when the key is absent or expired.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set upserts key with the given time to live.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX stores key only when it is absent and reports whether it did.
	// Of several concurrent callers on one key at most one gets true.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Delete removes key and reports whether it was present.
	// Of several concurrent callers on one key at most one gets true.
	Delete(ctx context.Context, key string) (bool, error)
}
