package identity

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/layer-3/webnote/core"
	"github.com/layer-3/webnote/ports"
	"golang.org/x/oauth2"
)

// OIDCConfig configures an OpenID Connect relying party
type OIDCConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// OIDCClient implements ports.OIDCClient on top of provider discovery
type OIDCClient struct {
	provider     *oidc.Provider
	verifier     *oidc.IDTokenVerifier
	oauth2Config *oauth2.Config
	httpClient   *http.Client
}

// NewOIDCClient discovers the provider and prepares the ID token verifier.
// httpClient carries the identity-provider timeout and is used for every provider call.
func NewOIDCClient(ctx context.Context, cfg OIDCConfig, httpClient *http.Client) (*OIDCClient, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	ctx = oidc.ClientContext(ctx, httpClient)

	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	return &OIDCClient{
		provider: provider,
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
		},
		httpClient: httpClient,
	}, nil
}

var _ ports.OIDCClient = (*OIDCClient)(nil)

// AuthCodeURL builds the authorization redirect
func (c *OIDCClient) AuthCodeURL(state, nonce string) string {
	return c.oauth2Config.AuthCodeURL(state, oidc.Nonce(nonce))
}

// Exchange redeems the code, verifies the ID token and reads the user info claims
func (c *OIDCClient) Exchange(ctx context.Context, code string) (*core.ExternalIdentity, error) {
	ctx = oidc.ClientContext(ctx, c.httpClient)

	token, err := c.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, exchangeFailed("failed to exchange code", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, exchangeFailed("missing id_token in token response", nil)
	}

	idToken, err := c.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, exchangeFailed("failed to verify id token", err)
	}

	info, err := c.provider.UserInfo(ctx, oauth2.StaticTokenSource(token))
	if err != nil {
		return nil, exchangeFailed("failed to fetch user info", err)
	}
	if info.Subject != idToken.Subject {
		return nil, exchangeFailed("user info subject does not match id token", nil)
	}

	var claims struct {
		PreferredUsername string `json:"preferred_username"`
		Name              string `json:"name"`
	}
	if err := info.Claims(&claims); err != nil {
		return nil, exchangeFailed("failed to parse user info", err)
	}

	name := firstNonEmpty(claims.PreferredUsername, claims.Name, info.Email)

	return &core.ExternalIdentity{
		Provider: core.PrincipalOIDC,
		Subject:  idToken.Subject,
		Name:     name,
		Email:    info.Email,
		Nonce:    idToken.Nonce,
	}, nil
}

func exchangeFailed(msg string, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", msg, core.ErrExternalIdentityExchangeFailed)
	}
	return fmt.Errorf("%s: %w: %w", msg, core.ErrExternalIdentityExchangeFailed, err)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
