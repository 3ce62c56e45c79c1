package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/clmops/approval-engine/internal/database"
	"github.com/clmops/approval-engine/internal/engine"
	"github.com/clmops/approval-engine/internal/model"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// setupEscalationTest 创建可配置升级策略的引擎测试环境
func setupEscalationTest(t *testing.T, cfg engine.Config) (*gorm.DB, *engine.Engine) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return db, engine.NewEngine(db, nil, cfg, logger)
}

// forceOverdue 把请求的超时期限改到过去
func forceOverdue(t *testing.T, db *gorm.DB, requestID string) {
	err := db.Model(&model.RequestModel{}).Where("id = ?", requestID).
		Update("expiry_date", time.Now().Add(-time.Hour)).Error
	require.NoError(t, err)
}

// TestSweep_EscalatesOverdueRequest 测试超期请求升级到升级目标
func TestSweep_EscalatesOverdueRequest(t *testing.T) {
	db, eng := setupEscalationTest(t, engine.Config{})

	input := sampleRuleInput()
	input.EscalationApprover = &engine.Approver{
		ID: "vp-01", Email: "vp01@example.com", Name: "升级审批人",
	}
	_, err := eng.CreateRule(input)
	require.NoError(t, err)

	req, _, err := eng.CreateApprovalRequest(context.Background(),
		sampleRequestInput("contract", map[string]interface{}{"amount": 50000.0}))
	require.NoError(t, err)
	forceOverdue(t, db, req.RequestID)

	count, err := eng.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := eng.GetRequest(req.RequestID)
	require.NoError(t, err)
	// 升级后请求仍是 pending,审批人换成显式配置的升级目标
	assert.Equal(t, engine.StatePending, got.State)
	assert.True(t, got.Escalated)
	assert.Equal(t, "vp-01", got.ApproverID)
	// 默认策略: 不重置超时期限
	assert.True(t, got.ExpiryDate.Before(time.Now()))

	// 升级留痕: 状态历史 + 审计日志
	var historyCount int64
	db.Model(&model.StateHistoryModel{}).Where("request_id = ? AND operator = ?", req.RequestID, "system").Count(&historyCount)
	assert.Equal(t, int64(1), historyCount)
	var auditCount int64
	db.Model(&model.AuditLogModel{}).Where("resource_id = ? AND action = ?", req.RequestID, "escalate").Count(&auditCount)
	assert.Equal(t, int64(1), auditCount)
}

// TestSweep_DefaultTargetIsLastApprover 测试未配置升级目标时升级给链尾审批人
func TestSweep_DefaultTargetIsLastApprover(t *testing.T) {
	db, eng := setupEscalationTest(t, engine.Config{})

	_, err := eng.CreateRule(sampleRuleInput())
	require.NoError(t, err)

	req, _, err := eng.CreateApprovalRequest(context.Background(),
		sampleRequestInput("contract", map[string]interface{}{"amount": 50000.0}))
	require.NoError(t, err)
	forceOverdue(t, db, req.RequestID)

	count, err := eng.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := eng.GetRequest(req.RequestID)
	require.NoError(t, err)
	assert.Equal(t, "dir-01", got.ApproverID)
}

// TestSweep_Idempotent 测试重复扫描每阶段最多升级一次
func TestSweep_Idempotent(t *testing.T) {
	db, eng := setupEscalationTest(t, engine.Config{})

	_, err := eng.CreateRule(sampleRuleInput())
	require.NoError(t, err)

	req, _, err := eng.CreateApprovalRequest(context.Background(),
		sampleRequestInput("contract", map[string]interface{}{"amount": 50000.0}))
	require.NoError(t, err)
	forceOverdue(t, db, req.RequestID)

	count, err := eng.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// 第二次扫描是无害的空操作
	count, err = eng.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

// TestSweep_ResetDeadline 测试重置期限策略给新审批人完整 SLA 窗口
func TestSweep_ResetDeadline(t *testing.T) {
	db, eng := setupEscalationTest(t, engine.Config{ResetDeadlineOnEscalation: true})

	_, err := eng.CreateRule(sampleRuleInput())
	require.NoError(t, err)

	req, _, err := eng.CreateApprovalRequest(context.Background(),
		sampleRequestInput("contract", map[string]interface{}{"amount": 50000.0}))
	require.NoError(t, err)
	forceOverdue(t, db, req.RequestID)

	count, err := eng.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := eng.GetRequest(req.RequestID)
	require.NoError(t, err)
	// 期限按规则的超时天数重新起算
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 3), got.ExpiryDate, time.Minute)
}

// TestSweep_SkipsFailOpenRequests 测试无规则的兜底请求不参与升级
func TestSweep_SkipsFailOpenRequests(t *testing.T) {
	db, eng := setupEscalationTest(t, engine.Config{})

	req, _, err := eng.CreateApprovalRequest(context.Background(),
		sampleRequestInput("invoice", map[string]interface{}{"amount": 100.0}))
	require.NoError(t, err)
	forceOverdue(t, db, req.RequestID)

	count, err := eng.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	got, err := eng.GetRequest(req.RequestID)
	require.NoError(t, err)
	assert.False(t, got.Escalated)
	assert.Equal(t, "fallback-01", got.ApproverID)
}

// TestSweep_SkipsEscalationDisabled 测试规则关闭升级时跳过
func TestSweep_SkipsEscalationDisabled(t *testing.T) {
	db, eng := setupEscalationTest(t, engine.Config{})

	input := sampleRuleInput()
	input.EscalationEnabled = false
	_, err := eng.CreateRule(input)
	require.NoError(t, err)

	req, _, err := eng.CreateApprovalRequest(context.Background(),
		sampleRequestInput("contract", map[string]interface{}{"amount": 50000.0}))
	require.NoError(t, err)
	forceOverdue(t, db, req.RequestID)

	count, err := eng.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

// TestSweep_SkipsTerminalRequests 测试终态请求不会被升级
func TestSweep_SkipsTerminalRequests(t *testing.T) {
	db, eng := setupEscalationTest(t, engine.Config{})

	_, err := eng.CreateRule(sampleRuleInput())
	require.NoError(t, err)

	req, _, err := eng.CreateApprovalRequest(context.Background(),
		sampleRequestInput("contract", map[string]interface{}{"amount": 50000.0}))
	require.NoError(t, err)

	_, _, err = eng.RejectRequest(context.Background(), req.RequestID, "作废")
	require.NoError(t, err)
	forceOverdue(t, db, req.RequestID)

	count, err := eng.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

// TestApproveAfterEscalation_ClearsFlag 测试升级后推进阶段会重置升级标记
func TestApproveAfterEscalation_ClearsFlag(t *testing.T) {
	db, eng := setupEscalationTest(t, engine.Config{})

	_, err := eng.CreateRule(sampleRuleInput())
	require.NoError(t, err)

	req, _, err := eng.CreateApprovalRequest(context.Background(),
		sampleRequestInput("contract", map[string]interface{}{"amount": 50000.0}))
	require.NoError(t, err)
	forceOverdue(t, db, req.RequestID)

	_, err = eng.Sweep(context.Background())
	require.NoError(t, err)

	// 升级后的审批人同意: 推进到第二级,新阶段重新可升级
	_, _, err = eng.ApproveRequest(context.Background(), req.RequestID, "补审通过")
	require.NoError(t, err)

	got, err := eng.GetRequest(req.RequestID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentLevel)
	assert.False(t, got.Escalated)

	// 新阶段再次超期仍可升级
	forceOverdue(t, db, req.RequestID)
	count, err := eng.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
