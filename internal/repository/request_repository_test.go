package repository_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/clmops/approval-engine/internal/database"
	"github.com/clmops/approval-engine/internal/model"
	"github.com/clmops/approval-engine/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDBForRequest 创建审批请求测试数据库
func setupTestDBForRequest(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

// sampleRequestModel 构造一条请求数据行
func sampleRequestModel(id, state string, expiry time.Time) *model.RequestModel {
	entity, _ := json.Marshal(map[string]interface{}{"amount": 100})
	now := time.Now()
	return &model.RequestModel{
		ID:             id,
		EntityID:       "entity-001",
		EntityType:     "contract",
		Entity:         entity,
		RequesterID:    "user-001",
		RequesterEmail: "user001@example.com",
		ApproverID:     "mgr-01",
		ApproverEmail:  "mgr01@example.com",
		DocumentTitle:  "采购合同",
		Priority:       "normal",
		State:          state,
		CurrentLevel:   1,
		TotalLevels:    1,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiryDate:     expiry,
	}
}

// TestRequestRepository_SaveAndFind 测试保存与查找请求
func TestRequestRepository_SaveAndFind(t *testing.T) {
	db := setupTestDBForRequest(t)
	repo := repository.NewRequestRepository(db)

	req := sampleRequestModel("req-001", "pending", time.Now().AddDate(0, 0, 7))
	require.NoError(t, repo.Save(req))

	found, err := repo.FindByID("req-001")
	require.NoError(t, err)
	assert.Equal(t, "contract", found.EntityType)
	assert.Equal(t, "pending", found.State)

	_, err = repo.FindByID("missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

// TestRequestRepository_FindPending 测试待审批列表按超时期限升序
func TestRequestRepository_FindPending(t *testing.T) {
	db := setupTestDBForRequest(t)
	repo := repository.NewRequestRepository(db)

	now := time.Now()
	require.NoError(t, repo.Save(sampleRequestModel("req-late", "pending", now.AddDate(0, 0, 10))))
	require.NoError(t, repo.Save(sampleRequestModel("req-soon", "pending", now.AddDate(0, 0, 1))))
	require.NoError(t, repo.Save(sampleRequestModel("req-done", "approved", now.AddDate(0, 0, 1))))

	pending, err := repo.FindPending()
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "req-soon", pending[0].ID)
	assert.Equal(t, "req-late", pending[1].ID)
}

// TestRequestRepository_FindOverdue 测试超期扫描的筛选条件
func TestRequestRepository_FindOverdue(t *testing.T) {
	db := setupTestDBForRequest(t)
	repo := repository.NewRequestRepository(db)

	now := time.Now()
	// 超期的 pending 请求命中
	require.NoError(t, repo.Save(sampleRequestModel("req-overdue", "pending", now.Add(-time.Hour))))
	// 未超期的不命中
	require.NoError(t, repo.Save(sampleRequestModel("req-ontime", "pending", now.Add(time.Hour))))
	// 终态的不命中
	require.NoError(t, repo.Save(sampleRequestModel("req-done", "approved", now.Add(-time.Hour))))
	// 已升级的不再命中
	escalated := sampleRequestModel("req-escalated", "pending", now.Add(-time.Hour))
	escalated.Escalated = true
	require.NoError(t, repo.Save(escalated))

	overdue, err := repo.FindOverdue(now)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, "req-overdue", overdue[0].ID)
}

// TestRequestRepository_CountByState 测试按状态统计
func TestRequestRepository_CountByState(t *testing.T) {
	db := setupTestDBForRequest(t)
	repo := repository.NewRequestRepository(db)

	now := time.Now()
	require.NoError(t, repo.Save(sampleRequestModel("req-1", "pending", now)))
	require.NoError(t, repo.Save(sampleRequestModel("req-2", "pending", now)))
	require.NoError(t, repo.Save(sampleRequestModel("req-3", "approved", now)))

	count, err := repo.CountByState("pending")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = repo.CountByState("rejected")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

// TestRequestRepository_CountByRule 测试按规则统计
func TestRequestRepository_CountByRule(t *testing.T) {
	db := setupTestDBForRequest(t)
	repo := repository.NewRequestRepository(db)

	now := time.Now()
	matched := sampleRequestModel("req-1", "pending", now)
	matched.RuleID = "rule-001"
	require.NoError(t, repo.Save(matched))
	require.NoError(t, repo.Save(sampleRequestModel("req-2", "pending", now)))

	counts, err := repo.CountByRule()
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["rule-001"])
	assert.Equal(t, int64(1), counts[""])
}

// TestRequestRepository_TerminalDurations 测试终态耗时统计行
func TestRequestRepository_TerminalDurations(t *testing.T) {
	db := setupTestDBForRequest(t)
	repo := repository.NewRequestRepository(db)

	now := time.Now()
	done := sampleRequestModel("req-done", "approved", now)
	decided := now.Add(2 * time.Hour)
	done.DecidedAt = &decided
	require.NoError(t, repo.Save(done))
	// pending 请求不进耗时统计
	require.NoError(t, repo.Save(sampleRequestModel("req-open", "pending", now)))

	rows, err := repo.TerminalDurations()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.InDelta(t, 2.0, rows[0].DecidedAt.Sub(rows[0].CreatedAt).Hours(), 0.1)
}
