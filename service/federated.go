package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/layer-3/webnote/core"
)

// Handshake is the start of a federated login. SessionID must be echoed back on the callback,
// it is also the OAuth2 state.
type Handshake struct {
	SessionID   string
	RedirectURL string
}

// BeginOIDC creates a session nonce and returns the provider redirect
func (s *AuthService) BeginOIDC(ctx context.Context) (*Handshake, error) {
	if s.oidc == nil {
		return nil, core.ErrProviderDisabled
	}

	sid := uuid.NewString()
	nonce, err := randomToken(32)
	if err != nil {
		return nil, err
	}
	if err := s.CreateNonce(ctx, sid, nonce); err != nil {
		return nil, err
	}

	return &Handshake{SessionID: sid, RedirectURL: s.oidc.AuthCodeURL(sid, nonce)}, nil
}

// CompleteOIDC finishes the OIDC handshake for session sid and resolves the local user
func (s *AuthService) CompleteOIDC(ctx context.Context, sid, state, code string) (*core.User, error) {
	if s.oidc == nil {
		return nil, core.ErrProviderDisabled
	}
	if err := checkState(sid, state); err != nil {
		return nil, err
	}

	id, err := s.oidc.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.consumeNonce(ctx, sid, id.Nonce); err != nil {
		return nil, err
	}

	return s.upsertExternal(ctx, *id)
}

// BeginGitHub registers the session state and returns the provider redirect
func (s *AuthService) BeginGitHub(ctx context.Context) (*Handshake, error) {
	if s.github == nil {
		return nil, core.ErrProviderDisabled
	}

	sid := uuid.NewString()
	if err := s.storeNonce(ctx, sid, sid, s.cfg.StateTTL); err != nil {
		return nil, err
	}

	return &Handshake{SessionID: sid, RedirectURL: s.github.AuthCodeURL(sid)}, nil
}

// CompleteGitHub finishes the GitHub handshake for session sid and resolves the local user
func (s *AuthService) CompleteGitHub(ctx context.Context, sid, state, code string) (*core.User, error) {
	if s.github == nil {
		return nil, core.ErrProviderDisabled
	}
	if err := checkState(sid, state); err != nil {
		return nil, err
	}
	if err := s.consumeNonce(ctx, sid, state); err != nil {
		return nil, err
	}

	id, err := s.github.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	return s.upsertExternal(ctx, *id)
}

func checkState(sid, state string) error {
	if sid == "" || subtle.ConstantTimeCompare([]byte(sid), []byte(state)) != 1 {
		return core.ErrStateMismatch
	}
	return nil
}

// upsertExternal links id to the user already holding its subject, or creates one
func (s *AuthService) upsertExternal(ctx context.Context, id core.ExternalIdentity) (*core.User, error) {
	if id.Subject == "" {
		return nil, fmt.Errorf("empty %s subject: %w", id.Provider, core.ErrExternalIdentityExchangeFailed)
	}

	user, err := s.users.GetByExternalSubject(ctx, id.Provider, id.Subject)
	switch {
	case err == nil:
	case errors.Is(err, core.ErrUserNotFound):
		user = &core.User{Email: id.Email}
	default:
		return nil, fmt.Errorf("failed to look up %s user: %w", id.Provider, err)
	}

	created := user.ID == ""
	user.Link(id)
	if user.Name == "" {
		user.Name = id.Subject
	}

	if _, err := s.users.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to save %s user: %w", id.Provider, err)
	}

	s.logger.Info().
		Str("provider", string(id.Provider)).
		Str("user_id", user.ID).
		Bool("created", created).
		Msg("external identity linked")

	return user, nil
}
