package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/clmops/approval-engine/internal/engine"
	"github.com/clmops/approval-engine/internal/utils"
	"github.com/sirupsen/logrus"
)

// WorkflowService 审批流程服务接口
// 包装引擎的核心操作,补充输入校验与规则维护的审计记录
type WorkflowService interface {
	CreateRule(ctx context.Context, req *CreateRuleRequest) (*engine.ApprovalRule, error)
	ListRules() ([]*engine.ApprovalRule, error)
	DeactivateRule(ctx context.Context, id string) error
	CreateRequest(ctx context.Context, req *CreateApprovalRequestRequest) (*engine.ApprovalRequest, bool, error)
	GetRequest(id string) (*engine.ApprovalRequest, error)
	Approve(ctx context.Context, id string, req *DecisionRequest) (bool, string, error)
	Reject(ctx context.Context, id string, req *DecisionRequest) (bool, string, error)
	ListPending() ([]*engine.ApprovalRequest, error)
	SweepEscalations(ctx context.Context) (int, error)
}

// CreateRuleRequest 创建审批规则请求
type CreateRuleRequest struct {
	Name                string                      `json:"name" binding:"required"`         // 规则名称
	EntityType          string                      `json:"entity_type" binding:"required"`  // 业务实体类型
	Conditions          map[string]engine.Condition `json:"conditions" binding:"required"`   // 匹配条件
	Approvers           []engine.Approver           `json:"approvers" binding:"required"`    // 审批人链
	ApprovalLevels      int                         `json:"approval_levels"`                 // 审批级数,默认 1
	TimeoutDays         int                         `json:"timeout_days"`                    // 审批时限(天)
	Priority            int                         `json:"priority"`                        // 规则优先级,数值大者先匹配
	EscalationEnabled   bool                        `json:"escalation_enabled"`              // 是否启用超时升级
	NotificationEnabled *bool                       `json:"notification_enabled,omitempty"`  // 是否发送通知,默认 true
	EscalationApprover  *engine.Approver            `json:"escalation_approver,omitempty"`   // 升级目标审批人
}

// CreateApprovalRequestRequest 创建审批请求的请求
type CreateApprovalRequestRequest struct {
	EntityID       string                 `json:"entity_id" binding:"required"`       // 业务实体 ID
	EntityType     string                 `json:"entity_type" binding:"required"`     // 业务实体类型
	Entity         map[string]interface{} `json:"entity" binding:"required"`          // 实体属性快照
	RequesterID    string                 `json:"requester_id" binding:"required"`    // 申请人 ID
	RequesterEmail string                 `json:"requester_email" binding:"required"` // 申请人邮箱
	RequesterName  string                 `json:"requester_name"`                     // 申请人姓名
	ApproverID     string                 `json:"approver_id" binding:"required"`     // 首选审批人 ID
	ApproverEmail  string                 `json:"approver_email" binding:"required"`  // 首选审批人邮箱
	ApproverName   string                 `json:"approver_name"`                      // 首选审批人姓名
	DocumentTitle  string                 `json:"document_title" binding:"required"`  // 文档标题
	Priority       string                 `json:"priority"`                           // 优先级: low/normal/high/urgent
}

// DecisionRequest 审批决定请求
type DecisionRequest struct {
	Comment string `json:"comment"` // 审批意见或拒绝原因
}

// workflowService 审批流程服务实现
type workflowService struct {
	engine      *engine.Engine
	auditLogSvc AuditLogService
	logger      *logrus.Logger
}

// NewWorkflowService 创建审批流程服务
func NewWorkflowService(eng *engine.Engine, auditLogSvc AuditLogService, logger *logrus.Logger) WorkflowService {
	if logger == nil {
		logger = logrus.New()
	}
	return &workflowService{
		engine:      eng,
		auditLogSvc: auditLogSvc,
		logger:      logger,
	}
}

// CreateRule 创建审批规则
func (s *workflowService) CreateRule(ctx context.Context, req *CreateRuleRequest) (*engine.ApprovalRule, error) {
	if err := utils.ValidateRuleName(req.Name); err != nil {
		return nil, &engine.InvalidRuleError{Reason: err.Error()}
	}

	levels := req.ApprovalLevels
	if levels == 0 {
		levels = 1
	}
	notify := true
	if req.NotificationEnabled != nil {
		notify = *req.NotificationEnabled
	}

	rule, err := s.engine.CreateRule(&engine.CreateRuleInput{
		Name:                strings.TrimSpace(req.Name),
		EntityType:          req.EntityType,
		Conditions:          req.Conditions,
		Approvers:           req.Approvers,
		ApprovalLevels:      levels,
		TimeoutDays:         req.TimeoutDays,
		Priority:            req.Priority,
		EscalationEnabled:   req.EscalationEnabled,
		NotificationEnabled: notify,
		EscalationApprover:  req.EscalationApprover,
	})
	if err != nil {
		return nil, err
	}

	// 规则维护操作由服务层记录审计,审计失败不阻塞主流程
	userID := GetUserID(ctx)
	if err := s.auditLogSvc.RecordAction(ctx, userID, "create_rule", "rule", rule.ID, map[string]interface{}{
		"name":        rule.Name,
		"entity_type": rule.EntityType,
		"levels":      rule.ApprovalLevels,
	}); err != nil {
		s.logger.WithError(err).WithField("rule_id", rule.ID).Warn("Failed to record audit log")
	}

	return rule, nil
}

// ListRules 列出全部规则
func (s *workflowService) ListRules() ([]*engine.ApprovalRule, error) {
	return s.engine.ListRules()
}

// DeactivateRule 停用规则
func (s *workflowService) DeactivateRule(ctx context.Context, id string) error {
	if err := utils.ValidateResourceID(id); err != nil {
		return &engine.NotFoundError{Resource: "rule", ID: id}
	}

	if err := s.engine.DeactivateRule(id); err != nil {
		return err
	}

	userID := GetUserID(ctx)
	if err := s.auditLogSvc.RecordAction(ctx, userID, "deactivate_rule", "rule", id, nil); err != nil {
		s.logger.WithError(err).WithField("rule_id", id).Warn("Failed to record audit log")
	}
	return nil
}

// CreateRequest 创建审批请求
func (s *workflowService) CreateRequest(ctx context.Context, req *CreateApprovalRequestRequest) (*engine.ApprovalRequest, bool, error) {
	priority := engine.Priority(req.Priority)
	if req.Priority != "" && !priority.Valid() {
		return nil, false, fmt.Errorf("invalid priority: %s", req.Priority)
	}

	return s.engine.CreateApprovalRequest(ctx, &engine.CreateRequestInput{
		EntityID:       req.EntityID,
		EntityType:     req.EntityType,
		Entity:         req.Entity,
		RequesterID:    req.RequesterID,
		RequesterEmail: req.RequesterEmail,
		RequesterName:  req.RequesterName,
		ApproverID:     req.ApproverID,
		ApproverEmail:  req.ApproverEmail,
		ApproverName:   req.ApproverName,
		DocumentTitle:  req.DocumentTitle,
		Priority:       priority,
	})
}

// GetRequest 获取审批请求详情
func (s *workflowService) GetRequest(id string) (*engine.ApprovalRequest, error) {
	if err := utils.ValidateResourceID(id); err != nil {
		return nil, &engine.NotFoundError{Resource: "request", ID: id}
	}
	return s.engine.GetRequest(id)
}

// Approve 审批通过当前阶段
func (s *workflowService) Approve(ctx context.Context, id string, req *DecisionRequest) (bool, string, error) {
	if err := utils.ValidateResourceID(id); err != nil {
		return false, "", &engine.NotFoundError{Resource: "request", ID: id}
	}
	comment := ""
	if req != nil {
		comment = req.Comment
	}
	return s.engine.ApproveRequest(ctx, id, comment)
}

// Reject 拒绝审批请求
func (s *workflowService) Reject(ctx context.Context, id string, req *DecisionRequest) (bool, string, error) {
	if err := utils.ValidateResourceID(id); err != nil {
		return false, "", &engine.NotFoundError{Resource: "request", ID: id}
	}
	reason := ""
	if req != nil {
		reason = req.Comment
	}
	return s.engine.RejectRequest(ctx, id, reason)
}

// ListPending 列出待审批请求
func (s *workflowService) ListPending() ([]*engine.ApprovalRequest, error) {
	return s.engine.ListPendingRequests()
}

// SweepEscalations 扫描超期请求并执行升级
func (s *workflowService) SweepEscalations(ctx context.Context) (int, error) {
	return s.engine.Sweep(ctx)
}
