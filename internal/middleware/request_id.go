package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HeaderRequestID carries the request id in both directions.
const HeaderRequestID = "x-request-id"

// RequestID reuses the caller's x-request-id or generates one, echoes it on the
// response and stores a child logger tagged with it.
func RequestID(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ContextKeyRequestID, id)
		c.Set(ContextKeyLogger, log.With(zap.String("req_id", id)))
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}
