package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/turngame/internal/monitor"
)

// Metrics counts responses per route template. Unmatched routes are reported as "unmatched".
func Metrics(metrics *monitor.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveRequest(route, c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}
