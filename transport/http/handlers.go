package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/webnote/core"
	"github.com/layer-3/webnote/service"
	"github.com/rs/zerolog"
)

// SessionCookieName holds the federated login session id between connect and callback
const SessionCookieName = "_sid"

// Config holds the HTTP-facing auth settings
type Config struct {
	AccessCookieName  string
	RefreshCookieName string
	SuccessURL        string
	LoginURL          string

	// AnonymousPaths replaces the default anonymous globs when non-nil
	AnonymousPaths []string
}

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
	cfg         Config
	logger      zerolog.Logger
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService, cfg Config, logger zerolog.Logger) *AuthHandlers {
	if cfg.AccessCookieName == "" {
		cfg.AccessCookieName = "_ak"
	}
	if cfg.RefreshCookieName == "" {
		cfg.RefreshCookieName = "_rk"
	}

	return &AuthHandlers{
		authService: authService,
		cfg:         cfg,
		logger:      logger,
	}
}

// PublicKey issues a login challenge for the client fingerprint
func (h *AuthHandlers) PublicKey(c *gin.Context) {
	var req struct {
		FpToken string `json:"fpToken" binding:"required,max=128"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, h.logger, service.ErrInvalidInput)
		return
	}

	pubkey, err := h.authService.RequestChallenge(c.Request.Context(), req.FpToken)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"pubkey": pubkey})
}

// VerifyPassword handles the password login
func (h *AuthHandlers) VerifyPassword(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
		FpToken  string `json:"fpToken" binding:"required,max=128"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, h.logger, service.ErrInvalidInput)
		return
	}

	user, err := h.authService.VerifyPassword(c.Request.Context(), req.FpToken, req.Username, req.Password)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	h.login(c, user, core.PrincipalPassword)
}

// ConnectOIDC redirects to the OpenID Connect provider
func (h *AuthHandlers) ConnectOIDC(c *gin.Context) {
	hs, err := h.authService.BeginOIDC(c.Request.Context())
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	h.redirectToProvider(c, hs)
}

// CallbackOIDC completes the OpenID Connect login
func (h *AuthHandlers) CallbackOIDC(c *gin.Context) {
	sid, _ := c.Cookie(SessionCookieName)
	http.SetCookie(c.Writer, service.ClearCookie(SessionCookieName))

	user, err := h.authService.CompleteOIDC(c.Request.Context(), sid, c.Query("state"), c.Query("code"))
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	h.login(c, user, core.PrincipalOIDC)
}

// ConnectGithub redirects to GitHub
func (h *AuthHandlers) ConnectGithub(c *gin.Context) {
	hs, err := h.authService.BeginGitHub(c.Request.Context())
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	h.redirectToProvider(c, hs)
}

// CallbackGithub completes the GitHub login
func (h *AuthHandlers) CallbackGithub(c *gin.Context) {
	sid, _ := c.Cookie(SessionCookieName)
	http.SetCookie(c.Writer, service.ClearCookie(SessionCookieName))

	user, err := h.authService.CompleteGitHub(c.Request.Context(), sid, c.Query("state"), c.Query("code"))
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	h.login(c, user, core.PrincipalGithub)
}

// WalletChallenge returns the message a wallet has to sign
func (h *AuthHandlers) WalletChallenge(c *gin.Context) {
	var req struct {
		Address string `json:"address" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, h.logger, service.ErrInvalidInput)
		return
	}

	message, err := h.authService.WalletChallenge(c.Request.Context(), req.Address)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": message})
}

// WalletVerify handles the wallet signature login
func (h *AuthHandlers) WalletVerify(c *gin.Context) {
	var req struct {
		Address   string `json:"address" binding:"required"`
		Signature string `json:"signature" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, h.logger, service.ErrInvalidInput)
		return
	}

	user, err := h.authService.VerifyWallet(c.Request.Context(), req.Address, req.Signature)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	h.login(c, user, core.PrincipalEthers)
}

// Refresh handles token refresh. The refresh token comes from the refresh cookie or the body.
func (h *AuthHandlers) Refresh(c *gin.Context) {
	refreshToken, _ := c.Cookie(h.cfg.RefreshCookieName)
	if refreshToken == "" {
		var req struct {
			RefreshToken string `json:"refreshToken" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, h.logger, core.ErrTokenInvalidOrExpired)
			return
		}
		refreshToken = req.RefreshToken
	}

	pair, err := h.authService.RefreshPair(c.Request.Context(), refreshToken)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	h.respondLogged(c, pair)
}

// Logout revokes the current session and clears its cookies
func (h *AuthHandlers) Logout(c *gin.Context) {
	accessToken := bearerToken(c)
	if accessToken == "" {
		accessToken, _ = c.Cookie(h.cfg.AccessCookieName)
	}
	refreshToken, _ := c.Cookie(h.cfg.RefreshCookieName)

	if err := h.authService.Logout(c.Request.Context(), accessToken, refreshToken); err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	http.SetCookie(c.Writer, service.ClearCookie(h.cfg.AccessCookieName))
	http.SetCookie(c.Writer, service.ClearCookie(h.cfg.RefreshCookieName))

	if isBrowser(c) && h.cfg.LoginURL != "" {
		c.Redirect(http.StatusFound, h.cfg.LoginURL)
		return
	}
	c.JSON(http.StatusOK, gin.H{"errcode": 0, "errmsg": "ok"})
}

// Me returns the authenticated principal
func (h *AuthHandlers) Me(c *gin.Context) {
	claims, ok := ClaimsFromContext(c)
	if !ok {
		abortWithError(c, h.logger, core.ErrTokenInvalidOrExpired)
		return
	}

	resp := gin.H{
		"id":        claims.Subject,
		"name":      claims.Name,
		"email":     claims.Email,
		"ptype":     claims.PrincipalType,
		"expiresAt": claims.ExpiresAt.Unix(),
	}

	// Prefer the current profile over the claims minted at login
	if user, err := h.authService.User(c.Request.Context(), claims); err == nil {
		resp["name"] = user.Name
		resp["email"] = user.Email
	}

	c.JSON(http.StatusOK, resp)
}

// Healthz reports liveness
func Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *AuthHandlers) login(c *gin.Context, user *core.User, ptype core.PrincipalType) {
	pair, err := h.authService.IssuePair(user, ptype)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	h.logger.Info().Str("user_id", user.ID).Str("ptype", string(ptype)).Msg("login succeeded")
	h.respondLogged(c, pair)
}

func (h *AuthHandlers) redirectToProvider(c *gin.Context, hs *service.Handshake) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     SessionCookieName,
		Value:    hs.SessionID,
		Path:     "/",
		MaxAge:   int(h.authService.StateTTL() / time.Second),
		HttpOnly: true,
		// Lax so the cookie survives the top-level redirect back from the provider
		SameSite: http.SameSiteLaxMode,
	})
	c.Redirect(http.StatusFound, hs.RedirectURL)
}

func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}
