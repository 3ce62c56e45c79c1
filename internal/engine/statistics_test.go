package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGetStatistics_Empty 测试空数据集返回全零
func TestGetStatistics_Empty(t *testing.T) {
	_, eng := setupEngineTest(t)

	stats, err := eng.GetStatistics()
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalRequests)
	assert.Equal(t, 0.0, stats.ApprovalRate)
	assert.Equal(t, 0.0, stats.RejectionRate)
	assert.Equal(t, 0.0, stats.AvgApprovalTimeHours)
	assert.Equal(t, int64(0), stats.TotalRules)
}

// TestGetStatistics_RatesOverTerminal 测试比率只在终态请求上计算
func TestGetStatistics_RatesOverTerminal(t *testing.T) {
	_, eng := setupEngineTest(t)

	_, err := eng.CreateRule(sampleRuleInput())
	require.NoError(t, err)

	// 三条请求: 一条同意、一条拒绝、一条保持 pending
	approved, _, err := eng.CreateApprovalRequest(context.Background(),
		sampleRequestInput("invoice", map[string]interface{}{"amount": 1.0}))
	require.NoError(t, err)
	rejected, _, err := eng.CreateApprovalRequest(context.Background(),
		sampleRequestInput("invoice", map[string]interface{}{"amount": 2.0}))
	require.NoError(t, err)
	_, _, err = eng.CreateApprovalRequest(context.Background(),
		sampleRequestInput("invoice", map[string]interface{}{"amount": 3.0}))
	require.NoError(t, err)

	_, _, err = eng.ApproveRequest(context.Background(), approved.RequestID, "")
	require.NoError(t, err)
	_, _, err = eng.RejectRequest(context.Background(), rejected.RequestID, "不批")
	require.NoError(t, err)

	stats, err := eng.GetStatistics()
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalRequests)
	assert.Equal(t, int64(1), stats.Approved)
	assert.Equal(t, int64(1), stats.Rejected)
	assert.Equal(t, int64(1), stats.Pending)
	// pending 不进分母: 1/2 = 50%
	assert.Equal(t, 50.0, stats.ApprovalRate)
	assert.Equal(t, 50.0, stats.RejectionRate)
	assert.Equal(t, int64(1), stats.TotalRules)
}

// TestGetDailyStatistics 测试按天统计
func TestGetDailyStatistics(t *testing.T) {
	_, eng := setupEngineTest(t)

	for i := 0; i < 3; i++ {
		_, _, err := eng.CreateApprovalRequest(context.Background(),
			sampleRequestInput("invoice", map[string]interface{}{"amount": float64(i)}))
		require.NoError(t, err)
	}

	daily, err := eng.GetDailyStatistics()
	require.NoError(t, err)
	require.Len(t, daily, 1)
	assert.Equal(t, int64(3), daily[0].Count)
	assert.NotEmpty(t, daily[0].Date)
}

// TestGetRuleStatistics 测试按规则统计,无规则请求归入 unmatched
func TestGetRuleStatistics(t *testing.T) {
	_, eng := setupEngineTest(t)

	rule, err := eng.CreateRule(sampleRuleInput())
	require.NoError(t, err)

	// 两条命中规则,一条 fail-open
	for i := 0; i < 2; i++ {
		_, _, err := eng.CreateApprovalRequest(context.Background(),
			sampleRequestInput("contract", map[string]interface{}{"amount": 50000.0}))
		require.NoError(t, err)
	}
	_, _, err = eng.CreateApprovalRequest(context.Background(),
		sampleRequestInput("invoice", map[string]interface{}{"amount": 1.0}))
	require.NoError(t, err)

	stats, err := eng.GetRuleStatistics()
	require.NoError(t, err)
	require.Len(t, stats, 2)

	byID := make(map[string]int64)
	names := make(map[string]string)
	for _, s := range stats {
		byID[s.RuleID] = s.Count
		names[s.RuleID] = s.RuleName
	}
	assert.Equal(t, int64(2), byID[rule.ID])
	assert.Equal(t, rule.Name, names[rule.ID])
	assert.Equal(t, int64(1), byID[""])
	assert.Equal(t, "unmatched", names[""])
}
