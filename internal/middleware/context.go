package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/wfunc/turngame/internal/models"
	"go.uber.org/zap"
)

// Context keys set by the middleware in this package.
const (
	ContextKeyRequestID = "requestID"
	ContextKeyLogger    = "logger"
	ContextKeyUser      = "user"
	ContextKeyToken     = "token"
)

// GetRequestID returns the request id set by RequestID.
func GetRequestID(c *gin.Context) string {
	return c.GetString(ContextKeyRequestID)
}

// GetLogger returns the per-request logger, or fallback when RequestID did not run.
func GetLogger(c *gin.Context, fallback *zap.Logger) *zap.Logger {
	if v, ok := c.Get(ContextKeyLogger); ok {
		if l, ok := v.(*zap.Logger); ok {
			return l
		}
	}
	return fallback
}

// GetUser returns the identity resolved by RequireAuth.
func GetUser(c *gin.Context) (*models.User, bool) {
	if v, ok := c.Get(ContextKeyUser); ok {
		if u, ok := v.(*models.User); ok {
			return u, true
		}
	}
	return nil, false
}
