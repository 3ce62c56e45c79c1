package repository

import (
	"time"

	"github.com/clmops/approval-engine/internal/model"
	"gorm.io/gorm"
)

// RequestRepository 审批请求仓储接口
type RequestRepository interface {
	Save(req *model.RequestModel) error
	FindByID(id string) (*model.RequestModel, error)
	FindPending() ([]*model.RequestModel, error)
	FindOverdue(now time.Time) ([]*model.RequestModel, error)
	CountByState(state string) (int64, error)
	CountByRule() (map[string]int64, error)
	CountByDay() ([]DailyCount, error)
	TerminalDurations() ([]TerminalDuration, error)
}

// DailyCount 按天统计结果
type DailyCount struct {
	Date  string
	Count int64
}

// TerminalDuration 终态请求的耗时统计行
type TerminalDuration struct {
	CreatedAt time.Time
	DecidedAt time.Time
}

// requestRepository 审批请求仓储实现
type requestRepository struct {
	db *gorm.DB
}

// NewRequestRepository 创建请求仓储
func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

// Save 保存请求
func (r *requestRepository) Save(req *model.RequestModel) error {
	return r.db.Save(req).Error
}

// FindByID 根据 ID 查找请求
func (r *requestRepository) FindByID(id string) (*model.RequestModel, error) {
	var req model.RequestModel
	if err := r.db.Where("id = ?", id).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// FindPending 查找所有待审批请求,按超时期限升序(最紧急的在前)
func (r *requestRepository) FindPending() ([]*model.RequestModel, error) {
	var reqs []*model.RequestModel
	err := r.db.Where("state = ?", "pending").
		Order("expiry_date ASC").
		Find(&reqs).Error
	return reqs, err
}

// FindOverdue 查找已超期且当前阶段尚未升级的待审批请求
func (r *requestRepository) FindOverdue(now time.Time) ([]*model.RequestModel, error) {
	var reqs []*model.RequestModel
	err := r.db.Where("state = ? AND escalated = ? AND expiry_date < ?", "pending", false, now).
		Order("expiry_date ASC").
		Find(&reqs).Error
	return reqs, err
}

// CountByState 按状态统计请求数量
func (r *requestRepository) CountByState(state string) (int64, error) {
	var count int64
	err := r.db.Model(&model.RequestModel{}).Where("state = ?", state).Count(&count).Error
	return count, err
}

// CountByRule 按规则统计请求数量
func (r *requestRepository) CountByRule() (map[string]int64, error) {
	var results []struct {
		RuleID string
		Count  int64
	}
	err := r.db.Model(&model.RequestModel{}).
		Select("rule_id, COUNT(*) as count").
		Group("rule_id").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(results))
	for _, res := range results {
		counts[res.RuleID] = res.Count
	}
	return counts, nil
}

// CountByDay 按创建日期统计请求数量
func (r *requestRepository) CountByDay() ([]DailyCount, error) {
	var results []struct {
		Date  string
		Count int64
	}
	err := r.db.Model(&model.RequestModel{}).
		Select("DATE(created_at) as date, COUNT(*) as count").
		Group("DATE(created_at)").
		Order("date DESC").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	counts := make([]DailyCount, 0, len(results))
	for _, res := range results {
		counts = append(counts, DailyCount{Date: res.Date, Count: res.Count})
	}
	return counts, nil
}

// TerminalDurations 查找所有终态请求的创建与决定时间,用于平均审批时长计算
func (r *requestRepository) TerminalDurations() ([]TerminalDuration, error) {
	var rows []TerminalDuration
	err := r.db.Model(&model.RequestModel{}).
		Select("created_at, decided_at").
		Where("state IN ? AND decided_at IS NOT NULL", []string{"approved", "rejected"}).
		Scan(&rows).Error
	return rows, err
}
