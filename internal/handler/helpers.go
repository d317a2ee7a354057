package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mtodo/internal/middleware"
	appErr "github.com/xxxsen/mtodo/internal/pkg/errors"
	"github.com/xxxsen/mtodo/internal/pkg/errcode"
	"github.com/xxxsen/mtodo/internal/pkg/response"
)

func getUserID(c *gin.Context) string {
	return c.GetString(middleware.ContextUserIDKey)
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid request body", errcode.Validation)
		return false
	}
	return true
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	status, code, message := classifyError(err)
	logger := logutil.GetLogger(c.Request.Context()).With(
		zap.String("request_id", c.GetString(middleware.ContextRequestIDKey)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("user_id", getUserID(c)),
		zap.Int("status", status),
	)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
	} else {
		logger.Info("request rejected", zap.Error(err))
	}
	response.Error(c, status, message, code)
}

func classifyError(err error) (int, string, string) {
	var (
		status  int
		code    string
		message string
	)
	switch {
	case errors.Is(err, appErr.ErrInvalid):
		status, code, message = http.StatusBadRequest, errcode.Validation, "Invalid request"
	case errors.Is(err, appErr.ErrConflict):
		status, code, message = http.StatusBadRequest, errcode.Conflict, "Conflict"
	case errors.Is(err, appErr.ErrNotFound):
		status, code, message = http.StatusNotFound, errcode.NotFound, "Not found"
	case errors.Is(err, appErr.ErrUnauthorized):
		status, code, message = http.StatusUnauthorized, errcode.Unauthorized, "Unauthorized"
	case errors.Is(err, appErr.ErrForbidden):
		status, code, message = http.StatusForbidden, errcode.Forbidden, "Forbidden"
	case errors.Is(err, appErr.ErrTooMany):
		status, code, message = http.StatusTooManyRequests, errcode.TooMany, "Too many requests"
	default:
		return http.StatusInternalServerError, errcode.Internal, "Internal server error"
	}
	if msg, ok := appErr.Message(err); ok {
		message = msg
	}
	return status, code, message
}
