package tokenizer

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/webnote/core"
	"github.com/layer-3/webnote/ports"
)

// JWTTokenizer implements the Tokenizer interface using HS256-signed JWTs
type JWTTokenizer struct {
	secret []byte
	now    func() time.Time
}

// NewJWTTokenizer creates a new JWT tokenizer. now may be nil, in which case time.Now is used.
func NewJWTTokenizer(secret []byte, now func() time.Time) (*JWTTokenizer, error) {
	if len(secret) == 0 {
		return nil, errors.New("signing secret is required")
	}
	if now == nil {
		now = time.Now
	}

	return &JWTTokenizer{secret: secret, now: now}, nil
}

var _ ports.Tokenizer = (*JWTTokenizer)(nil)

// Encode signs the claims
func (j *JWTTokenizer) Encode(claims *core.AccessClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, toSessionClaims(claims))

	signedToken, err := token.SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signedToken, nil
}

// Decode parses a token of the given kind and returns its claims
func (j *JWTTokenizer) Decode(tokenStr string, kind core.TokenKind) (*core.AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		return j.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(string(kind)),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w: %w", core.ErrTokenInvalidOrExpired, err)
	}

	// Validate token
	if !token.Valid {
		return nil, core.ErrTokenInvalidOrExpired
	}

	// Extract claims
	claims, ok := token.Claims.(*SessionClaims)
	if !ok {
		return nil, fmt.Errorf("invalid claims type: %w", core.ErrTokenInvalidOrExpired)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("missing subject: %w", core.ErrTokenInvalidOrExpired)
	}

	return claims.toAccessClaims(kind), nil
}
