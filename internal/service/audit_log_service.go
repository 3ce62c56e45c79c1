package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/clmops/approval-engine/internal/model"
	"github.com/clmops/approval-engine/internal/repository"
	"github.com/google/uuid"
)

// AuditLogService 审计日志服务
type AuditLogService interface {
	RecordAction(ctx context.Context, userID string, action string, resourceType string, resourceID string, details interface{}) error
	GetTrail(resourceType, resourceID string) ([]*AuditEntry, error)
}

// AuditEntry 审计日志视图
type AuditEntry struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	Action       string          `json:"action"`
	ResourceType string          `json:"resource_type"`
	ResourceID   string          `json:"resource_id"`
	Details      json.RawMessage `json:"details,omitempty"`
	CreatedAt    string          `json:"created_at"`
}

// auditLogService 审计日志服务实现
type auditLogService struct {
	auditRepo repository.AuditLogRepository
}

// NewAuditLogService 创建审计日志服务
func NewAuditLogService(auditRepo repository.AuditLogRepository) AuditLogService {
	return &auditLogService{
		auditRepo: auditRepo,
	}
}

// RecordAction 记录操作审计日志
func (s *auditLogService) RecordAction(
	ctx context.Context,
	userID string,
	action string,
	resourceType string,
	resourceID string,
	details interface{},
) error {
	// 序列化详情
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return err
	}

	// 创建审计日志,请求元信息由中间件注入 context
	auditLog := &model.AuditLogModel{
		ID:           uuid.New().String(),
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		RequestID:    GetRequestID(ctx),
		IP:           GetClientIP(ctx),
		UserAgent:    GetUserAgent(ctx),
		Details:      detailsJSON,
		CreatedAt:    time.Now(),
	}

	return s.auditRepo.Save(auditLog)
}

// GetTrail 获取资源的审计轨迹
func (s *auditLogService) GetTrail(resourceType, resourceID string) ([]*AuditEntry, error) {
	models, err := s.auditRepo.FindByResource(resourceType, resourceID)
	if err != nil {
		return nil, err
	}

	entries := make([]*AuditEntry, 0, len(models))
	for _, m := range models {
		entries = append(entries, &AuditEntry{
			ID:           m.ID,
			UserID:       m.UserID,
			Action:       m.Action,
			ResourceType: m.ResourceType,
			ResourceID:   m.ResourceID,
			Details:      json.RawMessage(m.Details),
			CreatedAt:    m.CreatedAt.Format(time.RFC3339),
		})
	}

	return entries, nil
}
