package api

import (
	"github.com/clmops/approval-engine/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDMiddleware 请求 ID 中间件
// 为每个请求生成唯一 ID 并随 context 传递,服务层审计日志依赖这些键
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		// 注入 request context,供服务层读取
		ctx := service.WithRequestMeta(c.Request.Context(), requestID, c.ClientIP(), c.Request.UserAgent())
		if userID := c.GetHeader("X-User-ID"); userID != "" {
			ctx = service.WithUserID(ctx, userID)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
