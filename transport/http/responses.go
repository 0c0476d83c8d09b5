package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/webnote/service"
)

// TokenValue is a token and its lifetime in seconds
type TokenValue struct {
	Value     string `json:"value"`
	ExpiresIn int64  `json:"expiresIn"`
}

// LoggedResponse is returned to non-browser clients after a successful login or refresh
type LoggedResponse struct {
	ErrCode      int        `json:"errcode"`
	ErrMsg       string     `json:"errmsg"`
	RedirectURL  string     `json:"redirectUrl,omitempty"`
	AccessToken  TokenValue `json:"accessToken"`
	RefreshToken TokenValue `json:"refreshToken"`
}

// isBrowser reports whether the client is a browser that should follow redirects
func isBrowser(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("User-Agent"), "Mozilla")
}

// respondLogged sets the session cookies and either redirects browsers to the success page
// or returns the tokens as JSON
func (h *AuthHandlers) respondLogged(c *gin.Context, pair *service.TokenPair) {
	http.SetCookie(c.Writer, service.ToCookie(h.cfg.AccessCookieName, pair.AccessToken, pair.AccessValidity))
	http.SetCookie(c.Writer, service.ToCookie(h.cfg.RefreshCookieName, pair.RefreshToken, pair.RefreshValidity))

	if isBrowser(c) && h.cfg.SuccessURL != "" {
		c.Redirect(http.StatusFound, h.cfg.SuccessURL)
		return
	}

	c.JSON(http.StatusOK, LoggedResponse{
		ErrCode:     0,
		ErrMsg:      "ok",
		RedirectURL: h.cfg.SuccessURL,
		AccessToken: TokenValue{
			Value:     pair.AccessToken,
			ExpiresIn: int64(pair.AccessValidity / time.Second),
		},
		RefreshToken: TokenValue{
			Value:     pair.RefreshToken,
			ExpiresIn: int64(pair.RefreshValidity / time.Second),
		},
	})
}
