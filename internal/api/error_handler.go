package api

import (
	"errors"
	"net/http"

	"github.com/clmops/approval-engine/internal/engine"
	"github.com/gin-gonic/gin"
)

// APIError API 错误
type APIError struct {
	Code    int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	return e.Message
}

// ErrorHandlerMiddleware 错误处理中间件
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last()

			var apiErr *APIError
			if errors.As(err, &apiErr) {
				Error(c, apiErr.Code, apiErr.Message, apiErr.Detail)
			} else {
				Error(c, http.StatusInternalServerError, "internal server error", err.Error())
			}
		}
	}
}

// WrapError 包装错误
func WrapError(err error, code int, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Detail:  err.Error(),
	}
}

// HandleEngineError 将引擎错误映射为 HTTP 错误响应
// 返回 true 表示已写出响应
func HandleEngineError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}

	var invalidRule *engine.InvalidRuleError
	var notFound *engine.NotFoundError
	var invalidState *engine.InvalidStateError

	switch {
	case errors.As(err, &invalidRule):
		Error(c, http.StatusBadRequest, "invalid rule", invalidRule.Error())
	case errors.As(err, &notFound):
		Error(c, http.StatusNotFound, notFound.Resource+" not found", notFound.Error())
	case errors.As(err, &invalidState):
		Error(c, http.StatusConflict, "invalid state", invalidState.Error())
	default:
		Error(c, http.StatusInternalServerError, "internal server error", err.Error())
	}
	return true
}
