package api

import (
	"net/http"

	"github.com/clmops/approval-engine/internal/service"
	"github.com/gin-gonic/gin"
)

// StatisticsController 统计控制器
type StatisticsController struct {
	statisticsService service.StatisticsService
}

// NewStatisticsController 创建统计控制器
func NewStatisticsController(statisticsService service.StatisticsService) *StatisticsController {
	return &StatisticsController{
		statisticsService: statisticsService,
	}
}

// Get 获取审批流程汇总统计
func (c *StatisticsController) Get(ctx *gin.Context) {
	stats, err := c.statisticsService.GetWorkflowStatistics()
	if err != nil {
		Error(ctx, http.StatusInternalServerError, "failed to get statistics", err.Error())
		return
	}

	Success(ctx, stats)
}

// Daily 按天统计请求量
func (c *StatisticsController) Daily(ctx *gin.Context) {
	stats, err := c.statisticsService.GetDailyStatistics()
	if err != nil {
		Error(ctx, http.StatusInternalServerError, "failed to get daily statistics", err.Error())
		return
	}

	Success(ctx, stats)
}

// ByRule 按规则统计请求量
func (c *StatisticsController) ByRule(ctx *gin.Context) {
	stats, err := c.statisticsService.GetRuleStatistics()
	if err != nil {
		Error(ctx, http.StatusInternalServerError, "failed to get rule statistics", err.Error())
		return
	}

	Success(ctx, stats)
}

// ByState 按状态统计请求
func (c *StatisticsController) ByState(ctx *gin.Context) {
	stats, err := c.statisticsService.GetStatisticsByState()
	if err != nil {
		Error(ctx, http.StatusInternalServerError, "failed to get state statistics", err.Error())
		return
	}

	Success(ctx, stats)
}
