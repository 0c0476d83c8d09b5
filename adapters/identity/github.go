package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/layer-3/webnote/core"
	"github.com/layer-3/webnote/ports"
	"golang.org/x/oauth2"
)

// UserAgent is sent on every call to the profile endpoint, which rejects requests without one
const UserAgent = "webnote"

// GithubConfig configures a GitHub-style OAuth2 application
type GithubConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	RedirectURL  string
	UserInfoURL  string
	Scopes       []string
}

// GithubClient implements ports.OAuth2Client for GitHub-style providers
type GithubClient struct {
	oauth2Config *oauth2.Config
	userInfoURL  string
	httpClient   *http.Client
}

// NewGithubClient creates a new GitHub OAuth2 client
func NewGithubClient(cfg GithubConfig, httpClient *http.Client) *GithubClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &GithubClient{
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
			RedirectURL: cfg.RedirectURL,
			Scopes:      cfg.Scopes,
		},
		userInfoURL: cfg.UserInfoURL,
		httpClient:  httpClient,
	}
}

var _ ports.OAuth2Client = (*GithubClient)(nil)

func (c *GithubClient) AuthCodeURL(state string) string {
	return c.oauth2Config.AuthCodeURL(state)
}

type githubProfile struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

var errEmptySubject = errors.New("provider returned an empty subject")

// Exchange redeems the code and reads the user profile
func (c *GithubClient) Exchange(ctx context.Context, code string) (*core.ExternalIdentity, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	token, err := c.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, exchangeFailed("failed to exchange code", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfoURL, nil)
	if err != nil {
		return nil, exchangeFailed("failed to build profile request", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.oauth2Config.Client(ctx, token).Do(req)
	if err != nil {
		return nil, exchangeFailed("failed to fetch profile", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, exchangeFailed("failed to fetch profile",
			fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}

	var profile githubProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, exchangeFailed("failed to decode profile", err)
	}
	if profile.ID == 0 {
		return nil, exchangeFailed("invalid profile", errEmptySubject)
	}

	return &core.ExternalIdentity{
		Provider: core.PrincipalGithub,
		Subject:  strconv.FormatInt(profile.ID, 10),
		Name:     firstNonEmpty(profile.Login, profile.Name),
		Email:    profile.Email,
	}, nil
}
