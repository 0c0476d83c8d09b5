package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/webnote/core"
)

// TokenPair is the result of a successful login or refresh
type TokenPair struct {
	AccessToken     string
	AccessValidity  time.Duration
	RefreshToken    string
	RefreshValidity time.Duration
}

// Issue mints a signed session token. Refresh tokens never carry extra claims;
// access tokens always carry an extra claims map, possibly empty.
func (s *AuthService) Issue(ptype core.PrincipalType, uid, uname, email string, extra map[string]string, isRefresh bool) (string, error) {
	now := s.now().Truncate(time.Second)

	claims := &core.AccessClaims{
		ID:            uuid.NewString(),
		Subject:       uid,
		Kind:          core.TokenAccess,
		PrincipalType: ptype,
		Name:          uname,
		Email:         email,
		IssuedAt:      now,
		ExpiresAt:     now.Add(s.cfg.AccessValidity),
		Extra:         extra,
	}
	if isRefresh {
		claims.Kind = core.TokenRefresh
		claims.ExpiresAt = now.Add(s.cfg.RefreshValidity)
		claims.Extra = nil
	} else if claims.Extra == nil {
		claims.Extra = map[string]string{}
	}

	token, err := s.tokenizer.Encode(claims)
	if err != nil {
		return "", fmt.Errorf("failed to issue token: %w", err)
	}
	return token, nil
}

// IssuePair mints an access and a refresh token for user
func (s *AuthService) IssuePair(user *core.User, ptype core.PrincipalType) (*TokenPair, error) {
	access, err := s.Issue(ptype, user.ID, user.Name, user.Email, nil, false)
	if err != nil {
		return nil, err
	}
	refresh, err := s.Issue(ptype, user.ID, user.Name, user.Email, nil, true)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:     access,
		AccessValidity:  s.cfg.AccessValidity,
		RefreshToken:    refresh,
		RefreshValidity: s.cfg.RefreshValidity,
	}, nil
}

// ToCookie renders token as a session cookie living for validity
func ToCookie(name, token string, validity time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(validity / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

// ClearCookie renders a cookie that removes name from the browser
func ClearCookie(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

// Validate verifies an access token and rejects revoked ones
func (s *AuthService) Validate(ctx context.Context, token string) (*core.AccessClaims, error) {
	return s.validate(ctx, token, core.TokenAccess)
}

func (s *AuthService) validate(ctx context.Context, token string, kind core.TokenKind) (*core.AccessClaims, error) {
	claims, err := s.tokenizer.Decode(token, kind)
	if err != nil {
		return nil, err
	}

	revoked, err := s.isRevoked(ctx, token)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, core.ErrTokenRevoked
	}

	return claims, nil
}

// Refresh exchanges a refresh token for a new token pair. The presented refresh token is revoked.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, string, error) {
	pair, err := s.RefreshPair(ctx, refreshToken)
	if err != nil {
		return "", "", err
	}
	return pair.AccessToken, pair.RefreshToken, nil
}

// RefreshPair is Refresh returning the validity windows as well
func (s *AuthService) RefreshPair(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.validate(ctx, refreshToken, core.TokenRefresh)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}

	won, err := s.revoke(ctx, refreshToken, s.cfg.RefreshValidity)
	if err != nil {
		return nil, fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	if !won {
		return nil, fmt.Errorf("refresh token already used: %w", core.ErrTokenRevoked)
	}

	user := &core.User{ID: claims.Subject, Name: claims.Name, Email: claims.Email}
	if current, err := s.users.GetByID(ctx, claims.Subject); err == nil {
		user = current
	} else if errors.Is(err, core.ErrUserNotFound) {
		return nil, fmt.Errorf("refresh token subject: %w", core.ErrTokenInvalidOrExpired)
	} else {
		s.logger.Warn().Err(err).Str("user_id", claims.Subject).Msg("user lookup failed, reusing token claims")
	}

	return s.IssuePair(user, claims.PrincipalType)
}

// Logout revokes the given tokens and announces the logout. Tokens that no longer
// validate are skipped since they are rejected anyway.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if accessToken != "" {
		if claims, err := s.tokenizer.Decode(accessToken, core.TokenAccess); err == nil {
			if err := s.Revoke(ctx, accessToken); err != nil {
				return err
			}
			if err := s.eventPub.PublishLogout(ctx, claims.Subject, claims.ID); err != nil {
				s.logger.Warn().Err(err).Str("user_id", claims.Subject).Msg("failed to publish logout event")
			}
		}
	}

	if refreshToken != "" {
		if _, err := s.tokenizer.Decode(refreshToken, core.TokenRefresh); err == nil {
			if _, err := s.revoke(ctx, refreshToken, s.cfg.RefreshValidity); err != nil {
				return err
			}
		}
	}

	return nil
}

// User returns the user a session belongs to
func (s *AuthService) User(ctx context.Context, claims *core.AccessClaims) (*core.User, error) {
	return s.users.GetByID(ctx, claims.Subject)
}
