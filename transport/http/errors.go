package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/webnote/core"
	"github.com/layer-3/webnote/service"
	"github.com/rs/zerolog"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// statusFor maps an error to its status code and the message shown to clients.
// Messages never say which check failed.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, core.ErrUserNotFound),
		errors.Is(err, core.ErrInvalidCredentials),
		errors.Is(err, core.ErrDecryptionFailed),
		errors.Is(err, core.ErrChallengeExpiredOrMissing):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, core.ErrTokenInvalidOrExpired),
		errors.Is(err, core.ErrTokenRevoked):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, core.ErrNonceMismatch),
		errors.Is(err, core.ErrStateMismatch),
		errors.Is(err, core.ErrInvalidSignature):
		return http.StatusUnauthorized, "authentication failed"
	case errors.Is(err, core.ErrProviderDisabled):
		return http.StatusNotFound, "not found"
	case errors.Is(err, core.ErrExternalIdentityExchangeFailed):
		return http.StatusInternalServerError, "authentication failed"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func abortWithError(c *gin.Context, logger zerolog.Logger, err error) {
	status, msg := statusFor(err)

	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(err).
		Str("path", c.Request.URL.Path).
		Int("status", status).
		Msg("request failed")

	c.AbortWithStatusJSON(status, ErrorResponse{ErrCode: status, ErrMsg: msg})
}
