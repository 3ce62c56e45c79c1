package container_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/clmops/approval-engine/internal/config"
	"github.com/clmops/approval-engine/internal/container"
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

// setupContainerTest 创建基于内存数据库的容器
func setupContainerTest(t *testing.T) (*gorm.DB, *container.Container) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	ctr, err := container.NewContainerWithDB(config.Default(), db, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Close() })
	return db, ctr
}

// TestContainer_Wiring 测试容器装配出完整依赖
func TestContainer_Wiring(t *testing.T) {
	_, ctr := setupContainerTest(t)

	assert.NotNil(t, ctr.DB())
	assert.NotNil(t, ctr.Logger())
	assert.NotNil(t, ctr.Hub())
	assert.NotNil(t, ctr.Engine())
	assert.NotNil(t, ctr.Dispatcher())
	assert.NotNil(t, ctr.NotificationStore())
	assert.NotNil(t, ctr.WorkflowService())
	assert.NotNil(t, ctr.QueryService())
	assert.NotNil(t, ctr.StatisticsService())
	assert.NotNil(t, ctr.AuditLogService())
}

// TestContainer_RecoverPendingEvents 测试重启后补投发件箱中的待投递事件
func TestContainer_RecoverPendingEvents(t *testing.T) {
	db, ctr := setupContainerTest(t)

	// 模拟上个进程落库但未投递的事件
	evt := &engine.Event{
		ID:   "evt-001",
		Type: engine.EventApprovalRequest,
		Request: &engine.ApprovalRequest{
			RequestID:     "req-001",
			ApproverID:    "mgr-01",
			ApproverEmail: "mgr01@example.com",
			ApproverName:  "审批人",
			DocumentTitle: "采购合同",
			Priority:      engine.PriorityNormal,
			State:         engine.StatePending,
		},
	}
	data, err := json.Marshal(evt)
	require.NoError(t, err)
	now := time.Now()
	require.NoError(t, db.Create(&model.EventModel{
		ID:        "evt-001",
		RequestID: "req-001",
		Type:      engine.EventApprovalRequest,
		Data:      data,
		Status:    "pending",
		CreatedAt: now,
		UpdatedAt: now,
	}).Error)

	count := ctr.RecoverPendingEvents(100)
	assert.Equal(t, 1, count)

	// 异步投递完成后: 审批人收到站内通知,事件标记成功
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		view, err := ctr.NotificationStore().GetUserNotifications(context.Background(), "mgr-01")
		require.NoError(t, err)
		if view.Total == 1 {
			var em model.EventModel
			require.NoError(t, db.Where("id = ?", "evt-001").First(&em).Error)
			assert.Equal(t, "success", em.Status)
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("recovered event was not delivered")
}

// TestContainer_RecoverSkipsCorruptEvents 测试损坏的事件行被跳过
func TestContainer_RecoverSkipsCorruptEvents(t *testing.T) {
	db, ctr := setupContainerTest(t)

	now := time.Now()
	require.NoError(t, db.Create(&model.EventModel{
		ID:        "evt-bad",
		RequestID: "req-001",
		Type:      engine.EventApprovalRequest,
		Data:      []byte("not json"),
		Status:    "pending",
		CreatedAt: now,
		UpdatedAt: now,
	}).Error)

	count := ctr.RecoverPendingEvents(100)
	assert.Equal(t, 0, count)
}
