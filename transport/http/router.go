package http

import (
	"time"

	"github.com/gin-gonic/gin"
)

// RouterConfig holds transport-level tunables.
type RouterConfig struct {
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// DefaultRouterConfig returns the production defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		RateLimitRequests: 30,
		RateLimitWindow:   time.Minute,
	}
}

// SetupRouter sets up the Gin router.
func SetupRouter(h *Handlers, cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.GET("/health", h.Health)

	// Challenge creation and trust scoring are the cheap-to-abuse
	// endpoints; verification is naturally bounded by session issuance.
	limited := RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow)

	api := router.Group("/api")
	{
		api.POST("/captcha/create", limited, h.CreateCaptcha)
		api.POST("/captcha/verify", h.VerifyCaptcha)
		api.POST("/trust/score", limited, h.TrustScore)
		api.POST("/signup", h.Signup)
	}

	return router
}
