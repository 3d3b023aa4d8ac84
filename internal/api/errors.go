package api

import (
	"net/http"

	"settlement-service/internal/apperr"
	"settlement-service/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError maps a typed error to its HTTP response. Internal detail is
// logged, never returned: responses carry the user-facing message, code, and
// suggested action only.
func (h *Handler) respondError(c *gin.Context, err error) {
	appErr := apperr.Wrap(err)

	if appErr.HTTPStatus() >= http.StatusInternalServerError {
		util.GetLogger().Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("code", appErr.Code),
			zap.Error(err))
	}

	body := gin.H{
		"error":  appErr.Message,
		"code":   appErr.Code,
		"action": appErr.Action,
	}
	if appErr.Field != "" {
		body["field"] = appErr.Field
	}
	if appErr.RetryAfter > 0 {
		c.Header("Retry-After", appErr.RetryAfter.String())
	}
	if h.devMode && appErr.Err != nil {
		body["detail"] = appErr.Err.Error()
	}

	c.JSON(appErr.HTTPStatus(), body)
}
