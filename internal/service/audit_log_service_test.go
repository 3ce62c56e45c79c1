package service_test

import (
	"context"
	"testing"

	"github.com/clmops/approval-engine/internal/model"
	"github.com/clmops/approval-engine/internal/repository"
	"github.com/clmops/approval-engine/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAuditLogService_RecordAction 测试审计记录携带请求上下文
func TestAuditLogService_RecordAction(t *testing.T) {
	db, _ := setupServiceTest(t)
	svc := service.NewAuditLogService(repository.NewAuditLogRepository(db))

	ctx := service.WithRequestMeta(context.Background(), "trace-001", "10.0.0.1", "curl/8.0")

	err := svc.RecordAction(ctx, "user-001", "approve", "request", "req-001",
		map[string]interface{}{"level": 1})
	require.NoError(t, err)

	var saved model.AuditLogModel
	require.NoError(t, db.Where("resource_id = ?", "req-001").First(&saved).Error)
	assert.Equal(t, "user-001", saved.UserID)
	assert.Equal(t, "approve", saved.Action)
	assert.Equal(t, "trace-001", saved.RequestID)
	assert.Equal(t, "10.0.0.1", saved.IP)
	assert.Equal(t, "curl/8.0", saved.UserAgent)
	assert.JSONEq(t, `{"level":1}`, string(saved.Details))
}

// TestAuditLogService_GetTrail 测试资源审计轨迹
func TestAuditLogService_GetTrail(t *testing.T) {
	db, _ := setupServiceTest(t)
	svc := service.NewAuditLogService(repository.NewAuditLogRepository(db))

	ctx := context.Background()
	require.NoError(t, svc.RecordAction(ctx, "user-001", "create_request", "request", "req-001", nil))
	require.NoError(t, svc.RecordAction(ctx, "mgr-01", "approve", "request", "req-001", nil))
	// 其他资源的记录不混入
	require.NoError(t, svc.RecordAction(ctx, "user-001", "create_rule", "rule", "rule-001", nil))

	trail, err := svc.GetTrail("request", "req-001")
	require.NoError(t, err)
	require.Len(t, trail, 2)
	for _, entry := range trail {
		assert.Equal(t, "request", entry.ResourceType)
		assert.Equal(t, "req-001", entry.ResourceID)
		assert.NotEmpty(t, entry.CreatedAt)
	}

	empty, err := svc.GetTrail("request", "missing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
