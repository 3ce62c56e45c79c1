package api

import (
	"errors"
	"net/http"

	"github.com/clmops/approval-engine/internal/engine"
	"github.com/gin-gonic/gin"
)

// NotificationController 站内通知控制器
type NotificationController struct {
	store engine.NotificationStore
}

// NewNotificationController 创建通知控制器
func NewNotificationController(store engine.NotificationStore) *NotificationController {
	return &NotificationController{
		store: store,
	}
}

// List 获取用户的通知列表
func (c *NotificationController) List(ctx *gin.Context) {
	userID := ctx.Query("user_id")
	if userID == "" {
		Error(ctx, http.StatusBadRequest, "missing user_id", "user_id query parameter is required")
		return
	}

	notifications, err := c.store.GetUserNotifications(ctx.Request.Context(), userID)
	if err != nil {
		Error(ctx, http.StatusInternalServerError, "failed to get notifications", err.Error())
		return
	}

	Success(ctx, notifications)
}

// MarkAsRead 标记通知已读
func (c *NotificationController) MarkAsRead(ctx *gin.Context) {
	id := ctx.Param("id")

	if err := c.store.MarkAsRead(ctx.Request.Context(), id); err != nil {
		var notFound *engine.NotFoundError
		if errors.As(err, &notFound) {
			Error(ctx, http.StatusNotFound, "notification not found", err.Error())
			return
		}
		Error(ctx, http.StatusInternalServerError, "failed to mark notification as read", err.Error())
		return
	}

	Success(ctx, nil)
}

// Statistics 获取用户的通知统计
func (c *NotificationController) Statistics(ctx *gin.Context) {
	userID := ctx.Query("user_id")
	if userID == "" {
		Error(ctx, http.StatusBadRequest, "missing user_id", "user_id query parameter is required")
		return
	}

	stats, err := c.store.GetStatistics(ctx.Request.Context(), userID)
	if err != nil {
		Error(ctx, http.StatusInternalServerError, "failed to get notification statistics", err.Error())
		return
	}

	Success(ctx, stats)
}
