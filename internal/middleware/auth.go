package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/wfunc/turngame/internal/service"
	"go.uber.org/zap"
)

// ParamAuthToken is the path parameter holding the requester's token.
const ParamAuthToken = "authToken"

// AuthMiddleware resolves the auth token of the route to a user.
type AuthMiddleware struct {
	authService service.AuthService
	log         *zap.Logger
}

// NewAuthMiddleware creates the auth middleware.
func NewAuthMiddleware(authService service.AuthService, log *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		log:         log,
	}
}

// RequireAuth rejects the request unless the token resolves.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Param(ParamAuthToken)

		user, err := m.authService.Authenticate(c.Request.Context(), token)
		if err != nil {
			GetLogger(c, m.log).Debug("authentication failed", zap.Error(err))
			RespondError(c, err)
			return
		}

		c.Set(ContextKeyUser, user)
		c.Set(ContextKeyToken, token)
		c.Next()
	}
}
