package ports

import "github.com/layer-3/webnote/core"

// Tokenizer converts between session claims and signed tokens
type Tokenizer interface {
	// Encode signs the claims
	Encode(claims *core.AccessClaims) (string, error)

	// Decode verifies the signature, expiry and kind of a token and returns its claims
	Decode(token string, kind core.TokenKind) (*core.AccessClaims, error)
}
