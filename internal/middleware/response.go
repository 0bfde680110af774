package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/wfunc/turngame/internal/errors"
)

// RespondError renders err and aborts the chain. A rule rejection is answered with
// the status, body and content type of the rules peer, unchanged.
func RespondError(c *gin.Context, err error) {
	_ = c.Error(err)

	appErr, ok := errors.As(err)
	if !ok {
		appErr = errors.Wrap(err, errors.ErrUnknown)
	}

	if appErr.Code == errors.ErrRuleRejection && len(appErr.Body) > 0 {
		contentType := appErr.ContentType
		if contentType == "" {
			contentType = "application/json; charset=utf-8"
		}
		c.Data(appErr.HTTPStatus(), contentType, appErr.Body)
		c.Abort()
		return
	}

	resp := errors.NewErrorResponse(appErr, GetRequestID(c))
	c.AbortWithStatusJSON(appErr.HTTPStatus(), resp)
}
