package http

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/webnote/internal/pathmatch"
	"github.com/layer-3/webnote/service"
	"github.com/rs/zerolog"
)

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, cfg Config, logger zerolog.Logger) (*gin.Engine, error) {
	anonymous, err := pathmatch.New(cfg.AnonymousPaths, HandshakePaths...)
	if err != nil {
		return nil, fmt.Errorf("failed to compile anonymous paths: %w", err)
	}
	logger.Info().Strs("anonymous_paths", anonymous.Patterns()).Msg("auth gate configured")

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger))
	router.Use(AuthGate(authService, anonymous, logger))

	// Create handlers
	handlers := NewAuthHandlers(authService, cfg, logger)

	router.GET("/healthz", Healthz)

	// Auth routes
	auth := router.Group("/auth")
	{
		auth.GET("/connect/oidc", handlers.ConnectOIDC)
		auth.GET("/connect/github", handlers.ConnectGithub)
		auth.GET("/callback/oidc", handlers.CallbackOIDC)
		auth.GET("/callback/github", handlers.CallbackGithub)
		auth.POST("/logout", handlers.Logout)
		auth.POST("/refresh", handlers.Refresh)
		auth.POST("/password/pubkey", handlers.PublicKey)
		auth.POST("/password/verify", handlers.VerifyPassword)
		auth.POST("/wallet/challenge", handlers.WalletChallenge)
		auth.POST("/wallet/verify", handlers.WalletVerify)
	}

	// Protected API routes
	api := router.Group("/api/v1")
	{
		api.GET("/users/me", handlers.Me)
	}

	return router, nil
}
