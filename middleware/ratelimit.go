package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/skillsenselab/reskit/errors"
	"github.com/skillsenselab/reskit/resilience"
)

// RateLimitConfig configures the rate limiting middleware.
type RateLimitConfig struct {
	// Name identifies the protected resource in error responses.
	Name string
	// Limiter is the admission algorithm. Required.
	Limiter resilience.Limiter
	// Cost is the number of units one request consumes. Defaults to 1.
	Cost int
}

// RateLimit returns a Gin middleware that denies requests the limiter does
// not admit. Denied requests receive a structured 429 response and do not
// reach the handler.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Name == "" {
		cfg.Name = "http"
	}
	if cfg.Cost <= 0 {
		cfg.Cost = 1
	}

	return func(c *gin.Context) {
		if cfg.Limiter == nil || cfg.Limiter.AllowN(cfg.Cost) {
			c.Next()
			return
		}
		status, body := errors.ToResponse(errors.RateLimited(cfg.Name))
		c.AbortWithStatusJSON(status, body)
	}
}
