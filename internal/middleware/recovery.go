package middleware

import (
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/turngame/internal/errors"
	"github.com/wfunc/turngame/internal/logger"
)

// Recovery turns a handler panic into a 500 ErrorResponse.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.LogPanic(r, debug.Stack())
				RespondError(c, errors.New(errors.ErrUnknown, "internal error"))
			}
		}()
		c.Next()
	}
}
