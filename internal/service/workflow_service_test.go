package service_test

import (
	"context"
	"testing"

	"github.com/clmops/approval-engine/internal/engine"
	"github.com/clmops/approval-engine/internal/model"
	"github.com/clmops/approval-engine/internal/repository"
	"github.com/clmops/approval-engine/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// newWorkflowService 构造用于测试的流程服务
func newWorkflowService(t *testing.T) (*gorm.DB, service.WorkflowService) {
	db, eng := setupServiceTest(t)
	auditSvc := service.NewAuditLogService(repository.NewAuditLogRepository(db))
	return db, service.NewWorkflowService(eng, auditSvc, nil)
}

// sampleCreateRuleRequest 构造一条合法的规则创建请求
func sampleCreateRuleRequest() *service.CreateRuleRequest {
	min := 10000.0
	return &service.CreateRuleRequest{
		Name:       "高额合同审批",
		EntityType: "contract",
		Conditions: map[string]engine.Condition{
			"amount": {Min: &min},
		},
		Approvers: []engine.Approver{
			{ID: "mgr-01", Email: "mgr01@example.com", Name: "审批人"},
		},
	}
}

// TestWorkflowService_CreateRule_Defaults 测试规则创建的缺省值
func TestWorkflowService_CreateRule_Defaults(t *testing.T) {
	db, svc := newWorkflowService(t)

	rule, err := svc.CreateRule(context.Background(), sampleCreateRuleRequest())
	require.NoError(t, err)
	// 级数默认 1,通知默认开启
	assert.Equal(t, 1, rule.ApprovalLevels)
	assert.True(t, rule.NotificationEnabled)
	assert.True(t, rule.IsActive)

	// 规则创建由服务层记录审计
	var count int64
	db.Model(&model.AuditLogModel{}).
		Where("resource_id = ? AND action = ?", rule.ID, "create_rule").
		Count(&count)
	assert.Equal(t, int64(1), count)
}

// TestWorkflowService_CreateRule_NotificationOptOut 测试显式关闭通知
func TestWorkflowService_CreateRule_NotificationOptOut(t *testing.T) {
	_, svc := newWorkflowService(t)

	req := sampleCreateRuleRequest()
	off := false
	req.NotificationEnabled = &off
	rule, err := svc.CreateRule(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, rule.NotificationEnabled)
}

// TestWorkflowService_CreateRule_NameValidation 测试危险名称被拒绝
func TestWorkflowService_CreateRule_NameValidation(t *testing.T) {
	_, svc := newWorkflowService(t)

	req := sampleCreateRuleRequest()
	req.Name = "<script>alert(1)</script>"
	_, err := svc.CreateRule(context.Background(), req)
	require.Error(t, err)
	var ruleErr *engine.InvalidRuleError
	assert.ErrorAs(t, err, &ruleErr)
}

// TestWorkflowService_DeactivateRule 测试规则停用与 ID 校验
func TestWorkflowService_DeactivateRule(t *testing.T) {
	db, svc := newWorkflowService(t)

	rule, err := svc.CreateRule(context.Background(), sampleCreateRuleRequest())
	require.NoError(t, err)

	require.NoError(t, svc.DeactivateRule(context.Background(), rule.ID))

	rules, err := svc.ListRules()
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.False(t, rules[0].IsActive)

	var count int64
	db.Model(&model.AuditLogModel{}).
		Where("resource_id = ? AND action = ?", rule.ID, "deactivate_rule").
		Count(&count)
	assert.Equal(t, int64(1), count)

	// 非法 ID 直接按不存在处理
	err = svc.DeactivateRule(context.Background(), "bad id; drop")
	var notFound *engine.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

// TestWorkflowService_RequestLifecycle 测试服务层的请求生命周期
func TestWorkflowService_RequestLifecycle(t *testing.T) {
	_, svc := newWorkflowService(t)

	req, sent, err := svc.CreateRequest(context.Background(), &service.CreateApprovalRequestRequest{
		EntityID:       "entity-001",
		EntityType:     "invoice",
		Entity:         map[string]interface{}{"amount": 100.0},
		RequesterID:    "user-001",
		RequesterEmail: "user001@example.com",
		ApproverID:     "mgr-01",
		ApproverEmail:  "mgr01@example.com",
		DocumentTitle:  "报销单",
		Priority:       "high",
	})
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Equal(t, engine.PriorityHigh, req.Priority)

	pending, err := svc.ListPending()
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	ok, msg, err := svc.Approve(context.Background(), req.RequestID, &service.DecisionRequest{Comment: "同意"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "approval request approved", msg)

	got, err := svc.GetRequest(req.RequestID)
	require.NoError(t, err)
	assert.Equal(t, engine.StateApproved, got.State)
}

// TestWorkflowService_Reject 测试服务层拒绝
func TestWorkflowService_Reject(t *testing.T) {
	_, svc := newWorkflowService(t)

	req, _, err := svc.CreateRequest(context.Background(), &service.CreateApprovalRequestRequest{
		EntityID:       "entity-001",
		EntityType:     "invoice",
		Entity:         map[string]interface{}{"amount": 100.0},
		RequesterID:    "user-001",
		RequesterEmail: "user001@example.com",
		ApproverID:     "mgr-01",
		ApproverEmail:  "mgr01@example.com",
		DocumentTitle:  "报销单",
	})
	require.NoError(t, err)

	ok, msg, err := svc.Reject(context.Background(), req.RequestID, &service.DecisionRequest{Comment: "证据不足"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "approval request rejected", msg)

	got, err := svc.GetRequest(req.RequestID)
	require.NoError(t, err)
	assert.Equal(t, engine.StateRejected, got.State)
	assert.Equal(t, "证据不足", got.Comment)
}
