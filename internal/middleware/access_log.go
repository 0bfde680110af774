package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/turngame/internal/logger"
	"go.uber.org/zap"
)

// AccessLog writes one line per request. Routes in skipRoutes (matched on the
// route template) are only logged when they answer 5xx.
func AccessLog(log *zap.Logger, skipRoutes ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipRoutes))
	for _, r := range skipRoutes {
		skip[r] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		if _, ok := skip[c.FullPath()]; ok && status < http.StatusInternalServerError {
			return
		}

		l := GetLogger(c, log)
		if status >= http.StatusInternalServerError {
			l.Error("request failed",
				zap.String("method", c.Request.Method),
				zap.String("path", path),
				zap.Int("status", status),
				zap.Duration("latency", time.Since(start)),
				zap.Strings("errors", c.Errors.Errors()),
			)
			return
		}
		logger.LogRequest(l, c.Request.Method, path, status, time.Since(start), c.ClientIP(), GetRequestID(c))
	}
}
