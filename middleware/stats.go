package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/skillsenselab/reskit/resilience"
)

// Stats returns a handler serving a point-in-time snapshot of every policy
// in the registry: breaker states, retry rates, bulkhead occupancy, current
// adaptive timeouts, and limiter levels.
func Stats(reg *resilience.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		if reg == nil {
			c.JSON(http.StatusOK, gin.H{})
			return
		}
		c.JSON(http.StatusOK, reg.Stats())
	}
}
