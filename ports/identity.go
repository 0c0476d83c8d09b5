package ports

import (
	"context"

	"github.com/layer-3/webnote/core"
)

// OIDCClient drives the OpenID Connect authorization code flow
type OIDCClient interface {
	// AuthCodeURL builds the provider redirect carrying state and nonce
	AuthCodeURL(state, nonce string) string

	// Exchange redeems the code, verifies the ID token signature and fetches user info.
	// The returned identity carries the ID token nonce claim unchecked.
	Exchange(ctx context.Context, code string) (*core.ExternalIdentity, error)
}

// OAuth2Client drives a GitHub-style OAuth2 flow
type OAuth2Client interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*core.ExternalIdentity, error)
}

// WalletVerifier recovers the signer of a personal-sign message
type WalletVerifier interface {
	Verify(address, message, signature string) error
}
