package middleware

import (
	goerrors "errors"

	"github.com/gin-gonic/gin"

	"github.com/skillsenselab/reskit/errors"
	"github.com/skillsenselab/reskit/resilience"
)

// BulkheadConfig configures the concurrency admission middleware.
type BulkheadConfig struct {
	// Name identifies the protected resource in error responses.
	Name string
	// Bulkhead caps concurrent in-flight requests. Required.
	Bulkhead *resilience.Bulkhead
	// Priority classifies admitted requests. Extract it from the request
	// when callers carry different urgency. Defaults to normal priority.
	Priority func(*gin.Context) resilience.Priority
}

// Bulkhead returns a Gin middleware that runs each request inside the
// bulkhead. A request rejected at capacity receives a structured 503, one
// that times out in the queue a structured 504; neither reaches the handler.
func Bulkhead(cfg BulkheadConfig) gin.HandlerFunc {
	if cfg.Name == "" {
		cfg.Name = "http"
	}

	return func(c *gin.Context) {
		if cfg.Bulkhead == nil {
			c.Next()
			return
		}

		priority := resilience.PriorityNormal
		if cfg.Priority != nil {
			priority = cfg.Priority(c)
		}

		err := cfg.Bulkhead.ExecutePriority(c.Request.Context(), priority, func() error {
			c.Next()
			return nil
		})

		switch {
		case err == nil:
		case goerrors.Is(err, resilience.ErrBulkheadTimeout):
			status, body := errors.ToResponse(errors.BulkheadTimeout(cfg.Name, cfg.Bulkhead.MaxWait()).WithCause(err))
			c.AbortWithStatusJSON(status, body)
		case goerrors.Is(err, resilience.ErrBulkheadFull):
			status, body := errors.ToResponse(errors.BulkheadFull(cfg.Name).WithCause(err))
			c.AbortWithStatusJSON(status, body)
		default:
			// Context cancellation while queued: the client is gone, so no
			// bulkhead code applies. Surface the error without a body.
			_ = c.Error(err)
			c.Abort()
		}
	}
}
