package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/clmops/approval-engine/internal/model"
	"github.com/clmops/approval-engine/internal/repository"
	"github.com/clmops/approval-engine/internal/utils"
	"gorm.io/gorm"
)

// QueryService 查询服务接口
type QueryService interface {
	ListRequests(filter *ListRequestsFilter) ([]*RequestSummary, int64, error)
	GetHistory(requestID string) ([]*StateHistory, error)
}

// ListRequestsFilter 请求列表查询过滤器
type ListRequestsFilter struct {
	State      *string
	EntityType *string
	Approver   *string
	Requester  *string
	StartTime  *time.Time
	EndTime    *time.Time
	Page       int
	PageSize   int
	SortBy     string
	Order      string
}

// RequestSummary 审批请求列表项
type RequestSummary struct {
	ID            string `json:"id"`
	RuleID        string `json:"rule_id,omitempty"`
	EntityID      string `json:"entity_id"`
	EntityType    string `json:"entity_type"`
	RequesterID   string `json:"requester_id"`
	ApproverID    string `json:"approver_id"`
	DocumentTitle string `json:"document_title"`
	Priority      string `json:"priority"`
	State         string `json:"state"`
	Escalated     bool   `json:"escalated"`
	CurrentLevel  int    `json:"current_level"`
	TotalLevels   int    `json:"total_levels"`
	CreatedAt     string `json:"created_at"`
	ExpiryDate    string `json:"expiry_date"`
}

// StateHistory 状态历史视图
type StateHistory struct {
	ID        string `json:"id"`
	RequestID string `json:"request_id"`
	FromState string `json:"from_state"`
	ToState   string `json:"to_state"`
	Reason    string `json:"reason"`
	Operator  string `json:"operator"`
	CreatedAt string `json:"created_at"`
}

// queryService 查询服务实现
type queryService struct {
	db          *gorm.DB
	historyRepo repository.StateHistoryRepository
}

// NewQueryService 创建查询服务
func NewQueryService(db *gorm.DB) QueryService {
	return &queryService{
		db:          db,
		historyRepo: repository.NewStateHistoryRepository(db),
	}
}

// ListRequests 列出审批请求
func (s *queryService) ListRequests(filter *ListRequestsFilter) ([]*RequestSummary, int64, error) {
	// 构建查询
	query := s.db.Model(&model.RequestModel{})

	// 应用过滤条件
	if filter.State != nil {
		query = query.Where("state = ?", *filter.State)
	}
	if filter.EntityType != nil {
		query = query.Where("entity_type = ?", *filter.EntityType)
	}
	if filter.Approver != nil {
		query = query.Where("approver_id = ?", *filter.Approver)
	}
	if filter.Requester != nil {
		query = query.Where("requester_id = ?", *filter.Requester)
	}
	if filter.StartTime != nil {
		query = query.Where("created_at >= ?", *filter.StartTime)
	}
	if filter.EndTime != nil {
		query = query.Where("created_at <= ?", *filter.EndTime)
	}

	// 获取总数
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count requests: %w", err)
	}

	// 应用排序（验证并清理排序字段，防止 SQL 注入）
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	if err := utils.ValidateSortField(sortBy); err != nil {
		return nil, 0, fmt.Errorf("invalid sort field: %w", err)
	}

	order := filter.Order
	if order == "" {
		order = "desc"
	}
	if err := utils.ValidateSortOrder(order); err != nil {
		return nil, 0, fmt.Errorf("invalid sort order: %w", err)
	}
	query = query.Order(fmt.Sprintf("%s %s", sortBy, strings.ToUpper(order)))

	// 应用分页
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	query = query.Offset((page - 1) * pageSize).Limit(pageSize)

	// 执行查询
	var models []model.RequestModel
	if err := query.Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to query requests: %w", err)
	}

	summaries := make([]*RequestSummary, 0, len(models))
	for _, m := range models {
		summaries = append(summaries, &RequestSummary{
			ID:            m.ID,
			RuleID:        m.RuleID,
			EntityID:      m.EntityID,
			EntityType:    m.EntityType,
			RequesterID:   m.RequesterID,
			ApproverID:    m.ApproverID,
			DocumentTitle: m.DocumentTitle,
			Priority:      m.Priority,
			State:         m.State,
			Escalated:     m.Escalated,
			CurrentLevel:  m.CurrentLevel,
			TotalLevels:   m.TotalLevels,
			CreatedAt:     m.CreatedAt.Format(time.RFC3339),
			ExpiryDate:    m.ExpiryDate.Format(time.RFC3339),
		})
	}

	return summaries, total, nil
}

// GetHistory 获取请求的状态历史
func (s *queryService) GetHistory(requestID string) ([]*StateHistory, error) {
	models, err := s.historyRepo.FindByRequest(requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}

	histories := make([]*StateHistory, 0, len(models))
	for _, m := range models {
		histories = append(histories, &StateHistory{
			ID:        m.ID,
			RequestID: m.RequestID,
			FromState: m.FromState,
			ToState:   m.ToState,
			Reason:    m.Reason,
			Operator:  m.Operator,
			CreatedAt: m.CreatedAt.Format(time.RFC3339),
		})
	}

	return histories, nil
}
