package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/webnote/core"
	"github.com/layer-3/webnote/internal/pathmatch"
	"github.com/rs/zerolog"
)

const claimsContextKey = "webnote.claims"

// HandshakePaths are always reachable without a session
var HandshakePaths = []string{
	"/auth/connect/oidc",
	"/auth/connect/github",
	"/auth/callback/oidc",
	"/auth/callback/github",
	"/auth/logout",
	"/auth/refresh",
	"/auth/password/pubkey",
	"/auth/password/verify",
	"/auth/wallet/challenge",
	"/auth/wallet/verify",
}

// TokenValidator validates bearer access tokens
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*core.AccessClaims, error)
}

// AuthGate lets anonymous paths through and requires a valid bearer token everywhere else.
// Rejections are opaque 401s.
func AuthGate(validator TokenValidator, anonymous *pathmatch.Matcher, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if anonymous.Match(c.Request.URL.Path) {
			c.Next()
			return
		}

		token := bearerToken(c)
		if token == "" {
			abortUnauthorized(c, logger, core.ErrTokenInvalidOrExpired)
			return
		}

		claims, err := validator.Validate(c.Request.Context(), token)
		if err != nil {
			abortUnauthorized(c, logger, err)
			return
		}

		c.Set(claimsContextKey, claims)
		c.Next()
	}
}

// abortUnauthorized rejects with 401 whatever the cause, infrastructure failures included
func abortUnauthorized(c *gin.Context, logger zerolog.Logger, err error) {
	logger.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("request rejected")
	c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{ErrCode: http.StatusUnauthorized, ErrMsg: "unauthorized"})
}

// ClaimsFromContext returns the claims AuthGate stored for the request
func ClaimsFromContext(c *gin.Context) (*core.AccessClaims, bool) {
	v, ok := c.Get(claimsContextKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*core.AccessClaims)
	return claims, ok
}

// RequestLogger writes one log line per request
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := logger.Info()
		if status >= http.StatusInternalServerError {
			event = logger.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("ip", c.ClientIP()).
			Msg("request")
	}
}
