package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/clmops/approval-engine/internal/database"
	"github.com/clmops/approval-engine/internal/engine"
	"github.com/clmops/approval-engine/internal/service"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// setupServiceTest 创建服务层测试环境
func setupServiceTest(t *testing.T) (*gorm.DB, *engine.Engine) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return db, engine.NewEngine(db, nil, engine.Config{}, logger)
}

// seedRequests 造三条不同状态的请求
func seedRequests(t *testing.T, eng *engine.Engine) (approved, rejected, pending *engine.ApprovalRequest) {
	mk := func(entityType, approver string) *engine.ApprovalRequest {
		req, _, err := eng.CreateApprovalRequest(context.Background(), &engine.CreateRequestInput{
			EntityID:       "entity-001",
			EntityType:     entityType,
			Entity:         map[string]interface{}{"amount": 100.0},
			RequesterID:    "user-001",
			RequesterEmail: "user001@example.com",
			ApproverID:     approver,
			ApproverEmail:  approver + "@example.com",
			DocumentTitle:  "测试文档",
			Priority:       engine.PriorityNormal,
		})
		require.NoError(t, err)
		return req
	}

	approved = mk("contract", "mgr-01")
	rejected = mk("contract", "mgr-01")
	pending = mk("invoice", "mgr-02")

	_, _, err := eng.ApproveRequest(context.Background(), approved.RequestID, "")
	require.NoError(t, err)
	_, _, err = eng.RejectRequest(context.Background(), rejected.RequestID, "不批")
	require.NoError(t, err)
	return approved, rejected, pending
}

func strPtr(s string) *string { return &s }

// TestListRequests_StateFilter 测试按状态过滤
func TestListRequests_StateFilter(t *testing.T) {
	db, eng := setupServiceTest(t)
	approved, _, _ := seedRequests(t, eng)
	svc := service.NewQueryService(db)

	summaries, total, err := svc.ListRequests(&service.ListRequestsFilter{
		State: strPtr("approved"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, summaries, 1)
	assert.Equal(t, approved.RequestID, summaries[0].ID)
	assert.Equal(t, "approved", summaries[0].State)
}

// TestListRequests_CombinedFilters 测试组合过滤条件
func TestListRequests_CombinedFilters(t *testing.T) {
	db, eng := setupServiceTest(t)
	seedRequests(t, eng)
	svc := service.NewQueryService(db)

	// 实体类型 + 审批人
	_, total, err := svc.ListRequests(&service.ListRequestsFilter{
		EntityType: strPtr("contract"),
		Approver:   strPtr("mgr-01"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	// 时间窗口: 全部落在窗口内
	start := time.Now().Add(-time.Hour)
	end := time.Now().Add(time.Hour)
	_, total, err = svc.ListRequests(&service.ListRequestsFilter{
		StartTime: &start,
		EndTime:   &end,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	// 窗口外无结果
	past := time.Now().Add(-2 * time.Hour)
	_, total, err = svc.ListRequests(&service.ListRequestsFilter{
		EndTime: &past,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

// TestListRequests_Pagination 测试分页与总数
func TestListRequests_Pagination(t *testing.T) {
	db, eng := setupServiceTest(t)
	seedRequests(t, eng)
	svc := service.NewQueryService(db)

	page1, total, err := svc.ListRequests(&service.ListRequestsFilter{
		Page: 1, PageSize: 2, SortBy: "id", Order: "asc",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page1, 2)

	page2, total, err := svc.ListRequests(&service.ListRequestsFilter{
		Page: 2, PageSize: 2, SortBy: "id", Order: "asc",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page2, 1)
	// 两页无重叠
	assert.NotEqual(t, page1[0].ID, page2[0].ID)
	assert.NotEqual(t, page1[1].ID, page2[0].ID)
}

// TestListRequests_RejectsUnsafeSort 测试恶意排序参数被拒绝
func TestListRequests_RejectsUnsafeSort(t *testing.T) {
	db, eng := setupServiceTest(t)
	seedRequests(t, eng)
	svc := service.NewQueryService(db)

	_, _, err := svc.ListRequests(&service.ListRequestsFilter{
		SortBy: "created_at; DROP TABLE approval_requests",
	})
	assert.Error(t, err)

	_, _, err = svc.ListRequests(&service.ListRequestsFilter{
		SortBy: "created_at",
		Order:  "asc; DELETE FROM approval_requests",
	})
	assert.Error(t, err)

	// 表未被破坏
	_, total, err := svc.ListRequests(&service.ListRequestsFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

// TestGetHistory 测试状态历史视图按时间排列
func TestGetHistory(t *testing.T) {
	db, eng := setupServiceTest(t)
	approved, _, _ := seedRequests(t, eng)
	svc := service.NewQueryService(db)

	history, err := svc.GetHistory(approved.RequestID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	// 创建 → pending,然后 pending → approved
	assert.Equal(t, "", history[0].FromState)
	assert.Equal(t, "pending", history[0].ToState)
	assert.Equal(t, "pending", history[1].FromState)
	assert.Equal(t, "approved", history[1].ToState)

	// 不存在的请求返回空历史
	empty, err := svc.GetHistory("missing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
