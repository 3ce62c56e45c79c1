package service_test

import (
	"testing"

	"github.com/clmops/approval-engine/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStatisticsService_ByState 测试按状态分组统计
func TestStatisticsService_ByState(t *testing.T) {
	db, eng := setupServiceTest(t)
	seedRequests(t, eng)
	svc := service.NewStatisticsService(eng, db)

	stats, err := svc.GetStatisticsByState()
	require.NoError(t, err)

	byState := make(map[string]int64)
	for _, s := range stats {
		byState[s.State] = s.Count
	}
	assert.Equal(t, int64(1), byState["approved"])
	assert.Equal(t, int64(1), byState["rejected"])
	assert.Equal(t, int64(1), byState["pending"])
}

// TestStatisticsService_Workflow 测试汇总统计透传
func TestStatisticsService_Workflow(t *testing.T) {
	db, eng := setupServiceTest(t)
	seedRequests(t, eng)
	svc := service.NewStatisticsService(eng, db)

	stats, err := svc.GetWorkflowStatistics()
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalRequests)
	assert.Equal(t, 50.0, stats.ApprovalRate)

	daily, err := svc.GetDailyStatistics()
	require.NoError(t, err)
	require.Len(t, daily, 1)
	assert.Equal(t, int64(3), daily[0].Count)

	byRule, err := svc.GetRuleStatistics()
	require.NoError(t, err)
	require.Len(t, byRule, 1)
	assert.Equal(t, "unmatched", byRule[0].RuleName)
}

// TestStatisticsService_Empty 测试空库统计
func TestStatisticsService_Empty(t *testing.T) {
	db, eng := setupServiceTest(t)
	svc := service.NewStatisticsService(eng, db)

	stats, err := svc.GetStatisticsByState()
	require.NoError(t, err)
	assert.Empty(t, stats)
}
