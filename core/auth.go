package core

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// PrincipalType identifies how a session principal authenticated
type PrincipalType string

const (
	PrincipalPassword PrincipalType = "password"
	PrincipalOIDC     PrincipalType = "oidc"
	PrincipalGithub   PrincipalType = "github"
	PrincipalEthers   PrincipalType = "ethers"
)

// TokenKind distinguishes access tokens from refresh tokens
type TokenKind string

const (
	TokenAccess  TokenKind = "session:access"
	TokenRefresh TokenKind = "session:refresh"
)

// AccessClaims is the decoded content of a session token
type AccessClaims struct {
	ID            string            // Unique token identifier (jti)
	Subject       string            // Local user id
	Kind          TokenKind         // Access or refresh
	PrincipalType PrincipalType     // How the user logged in
	Name          string            // Display name at mint time
	Email         string            // Email at mint time
	IssuedAt      time.Time         // Mint time, second precision
	ExpiresAt     time.Time         // Mint time + validity window, second precision
	Extra         map[string]string // Open extra claims, always nil on refresh tokens
}

// ExternalIdentity is the set of claims an identity provider asserted about a user
type ExternalIdentity struct {
	Provider PrincipalType
	Subject  string // Provider-scoped subject id
	Name     string // Preferred name or login
	Email    string
	Nonce    string // ID-token nonce claim, OIDC only
}

// User is a local identity record with optional per-provider links
type User struct {
	ID       string
	Name     string
	Email    string
	Password string // Credential hash, empty for federated-only users

	OIDCSubject string
	OIDCName    string
	OIDCEmail   string

	GithubSubject string
	GithubName    string
	GithubEmail   string

	EthersAddress string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ExternalSubject returns the subject the user is linked with for the given provider
func (u *User) ExternalSubject(provider PrincipalType) string {
	switch provider {
	case PrincipalOIDC:
		return u.OIDCSubject
	case PrincipalGithub:
		return u.GithubSubject
	case PrincipalEthers:
		return u.EthersAddress
	default:
		return ""
	}
}

// Link copies the provider claims into the provider-specific fields and refreshes the display name.
// Fields belonging to other providers are left untouched.
func (u *User) Link(id ExternalIdentity) {
	switch id.Provider {
	case PrincipalOIDC:
		u.OIDCSubject = id.Subject
		u.OIDCName = id.Name
		u.OIDCEmail = id.Email
	case PrincipalGithub:
		u.GithubSubject = id.Subject
		u.GithubName = id.Name
		u.GithubEmail = id.Email
	case PrincipalEthers:
		u.EthersAddress = id.Subject
	}
	if id.Name != "" {
		u.Name = id.Name
	}
}

// HashCredential derives the credential hash clients encrypt during password login
// and the value stored in User.Password.
func HashCredential(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
