package service

import (
	"fmt"

	"github.com/clmops/approval-engine/internal/engine"
	"github.com/clmops/approval-engine/internal/model"
	"gorm.io/gorm"
)

// StatisticsService 统计服务接口
type StatisticsService interface {
	GetWorkflowStatistics() (*engine.Statistics, error)
	GetDailyStatistics() ([]engine.DailyStatistics, error)
	GetRuleStatistics() ([]engine.RuleStatistics, error)
	GetStatisticsByState() ([]*RequestStatisticsByState, error)
}

// RequestStatisticsByState 按状态统计
type RequestStatisticsByState struct {
	State string `json:"state"`
	Count int64  `json:"count"`
}

// statisticsService 统计服务实现
type statisticsService struct {
	engine *engine.Engine
	db     *gorm.DB
}

// NewStatisticsService 创建统计服务
func NewStatisticsService(eng *engine.Engine, db *gorm.DB) StatisticsService {
	return &statisticsService{engine: eng, db: db}
}

// GetWorkflowStatistics 获取审批流程汇总统计
func (s *statisticsService) GetWorkflowStatistics() (*engine.Statistics, error) {
	return s.engine.GetStatistics()
}

// GetDailyStatistics 按天统计请求量
func (s *statisticsService) GetDailyStatistics() ([]engine.DailyStatistics, error) {
	return s.engine.GetDailyStatistics()
}

// GetRuleStatistics 按规则统计请求量
func (s *statisticsService) GetRuleStatistics() ([]engine.RuleStatistics, error) {
	return s.engine.GetRuleStatistics()
}

// GetStatisticsByState 按状态统计请求
func (s *statisticsService) GetStatisticsByState() ([]*RequestStatisticsByState, error) {
	var results []struct {
		State string
		Count int64
	}

	err := s.db.Model(&model.RequestModel{}).
		Select("state, COUNT(*) as count").
		Group("state").
		Scan(&results).Error

	if err != nil {
		return nil, fmt.Errorf("failed to get request statistics by state: %w", err)
	}

	stats := make([]*RequestStatisticsByState, 0, len(results))
	for _, r := range results {
		stats = append(stats, &RequestStatisticsByState{
			State: r.State,
			Count: r.Count,
		})
	}

	return stats, nil
}
