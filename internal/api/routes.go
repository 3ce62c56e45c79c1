package api

import (
	"github.com/clmops/approval-engine/internal/config"
	"github.com/clmops/approval-engine/internal/container"
	"github.com/clmops/approval-engine/internal/websocket"
	"github.com/gin-gonic/gin"
)

// SetupRoutes 配置路由
func SetupRoutes(c *container.Container, cfg *config.Config) *gin.Engine {
	if config.IsProduction(cfg) {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	// 中间件
	router.Use(RequestIDMiddleware())
	router.Use(SecurityHeadersMiddleware())
	router.Use(RequestLogMiddleware())
	router.Use(CORSMiddleware(cfg.CORS.AllowedOrigins))
	router.Use(RateLimitMiddleware(100, 200))
	router.Use(ErrorHandlerMiddleware())

	// 健康检查
	healthController := NewHealthController(c.DB())
	router.GET("/healthz", healthController.Check)
	router.GET("/readyz", healthController.Ready)

	// Prometheus 指标端点
	router.GET("/metrics", MetricsHandler)

	// WebSocket 路由,实时接收本人的审批事件
	router.GET("/ws", websocket.WebSocketHandler(c.Hub()))

	// 控制器
	ruleController := NewRuleController(c.WorkflowService())
	requestController := NewRequestController(c.WorkflowService(), c.QueryService(), c.AuditLogService())
	notificationController := NewNotificationController(c.NotificationStore())
	statisticsController := NewStatisticsController(c.StatisticsService())

	// API v1 路由组
	v1 := router.Group("/api/v1")
	{
		// 审批规则路由
		rules := v1.Group("/rules")
		{
			rules.POST("", ruleController.Create)
			rules.GET("", ruleController.List)
			rules.DELETE("/:id", ruleController.Deactivate)
		}

		// 审批请求路由
		requests := v1.Group("/requests")
		{
			requests.POST("", requestController.Create)
			requests.GET("", requestController.List)
			requests.GET("/pending", requestController.ListPending)
			requests.GET("/:id", requestController.Get)
			requests.POST("/:id/approve", requestController.Approve)
			requests.POST("/:id/reject", requestController.Reject)
			requests.GET("/:id/history", requestController.GetHistory)
			requests.GET("/:id/audit", requestController.GetAuditTrail)
		}

		// 站内通知路由
		notifications := v1.Group("/notifications")
		{
			notifications.GET("", notificationController.List)
			notifications.POST("/:id/read", notificationController.MarkAsRead)
			notifications.GET("/statistics", notificationController.Statistics)
		}

		// 统计路由
		statistics := v1.Group("/statistics")
		{
			statistics.GET("", statisticsController.Get)
			statistics.GET("/daily", statisticsController.Daily)
			statistics.GET("/rules", statisticsController.ByRule)
			statistics.GET("/states", statisticsController.ByState)
		}

		// 超时升级扫描(定时任务之外的手动触发入口)
		v1.POST("/escalations/sweep", requestController.SweepEscalations)
	}

	return router
}
