package endpoint

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/relay/component"
)

// Readiness answers 503 with the unhealthy component names while any
// component is unhealthy, 200 otherwise. Degraded components keep the
// service ready.
func Readiness(serviceName string, checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var waiting []string
		if checker != nil {
			for _, h := range checker(c.Request.Context()) {
				if h.Status == component.StatusUnhealthy {
					waiting = append(waiting, h.Name)
				}
			}
		}

		if len(waiting) > 0 {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":     "not_ready",
				"service":    serviceName,
				"waiting_on": waiting,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "service": serviceName})
	}
}
