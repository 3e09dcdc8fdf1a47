package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/skillsenselab/reskit/health"
)

// Liveness returns a handler reporting whether the process itself is
// functional. With no liveness probes registered it always reports healthy.
func Liveness(serviceName string, checker *health.Checker) gin.HandlerFunc {
	return probeHandler(serviceName, checker, health.KindLiveness, false)
}

// Readiness returns a handler reporting whether the service can take
// traffic. Probes are re-run on each request so load balancers see current
// state rather than the last background sample.
func Readiness(serviceName string, checker *health.Checker) gin.HandlerFunc {
	return probeHandler(serviceName, checker, health.KindReadiness, true)
}

// Deep returns a handler that exercises every deep probe end to end. It is
// expensive and meant for diagnostics, not load balancer polling.
func Deep(serviceName string, checker *health.Checker) gin.HandlerFunc {
	return probeHandler(serviceName, checker, health.KindDeep, true)
}

func probeHandler(serviceName string, checker *health.Checker, kind health.CheckKind, refresh bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var results []health.Result
		if checker != nil {
			if refresh {
				checker.CheckAll(c.Request.Context(), kind)
			}
			results = checker.Results(kind)
		}

		status := overallStatus(results)
		httpStatus := http.StatusOK
		if status == health.StatusUnhealthy {
			httpStatus = http.StatusServiceUnavailable
		}

		c.JSON(httpStatus, gin.H{
			"status":    status,
			"service":   serviceName,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"checks":    results,
		})
	}
}

// overallStatus folds probe results into one status. Degraded probes are
// still passing (inside their grace period), so they degrade the report
// without failing it.
func overallStatus(results []health.Result) health.Status {
	status := health.StatusHealthy
	for _, r := range results {
		if r.Status == health.StatusUnhealthy {
			return health.StatusUnhealthy
		}
		if r.Status == health.StatusDegraded {
			status = health.StatusDegraded
		}
	}
	return status
}
