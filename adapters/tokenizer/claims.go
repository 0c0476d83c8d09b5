package tokenizer

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/webnote/core"
)

// SessionClaims is the JWT representation of core.AccessClaims
type SessionClaims struct {
	jwt.RegisteredClaims
	PrincipalType core.PrincipalType `json:"ptype"`
	Name          string             `json:"uname,omitempty"`
	Email         string             `json:"email,omitempty"`
	Extra         map[string]string  `json:"ext,omitempty"`
}

func toSessionClaims(c *core.AccessClaims) *SessionClaims {
	return &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.Subject,
			ID:        c.ID,
			ExpiresAt: jwt.NewNumericDate(c.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(c.IssuedAt),
			Audience:  jwt.ClaimStrings{string(c.Kind)},
		},
		PrincipalType: c.PrincipalType,
		Name:          c.Name,
		Email:         c.Email,
		Extra:         c.Extra,
	}
}

func (s *SessionClaims) toAccessClaims(kind core.TokenKind) *core.AccessClaims {
	claims := &core.AccessClaims{
		ID:            s.ID,
		Subject:       s.Subject,
		Kind:          kind,
		PrincipalType: s.PrincipalType,
		Name:          s.Name,
		Email:         s.Email,
		Extra:         s.Extra,
	}
	if s.IssuedAt != nil {
		claims.IssuedAt = s.IssuedAt.Time
	}
	if s.ExpiresAt != nil {
		claims.ExpiresAt = s.ExpiresAt.Time
	}
	// Access tokens always carry an ext map, possibly empty
	if kind == core.TokenAccess && claims.Extra == nil {
		claims.Extra = map[string]string{}
	}

	return claims
}
