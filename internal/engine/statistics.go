package engine

import (
	"fmt"
)

// Statistics 工作流统计
// 比率只在终态请求(approved+rejected)上计算;分母为零时一律返回 0
type Statistics struct {
	TotalRequests        int64   `json:"total_requests"`
	Approved             int64   `json:"approved"`
	Rejected             int64   `json:"rejected"`
	Pending              int64   `json:"pending"`
	ApprovalRate         float64 `json:"approval_rate"`
	RejectionRate        float64 `json:"rejection_rate"`
	AvgApprovalTimeHours float64 `json:"avg_approval_time_hours"`
	TotalRules           int64   `json:"total_rules"`
}

// GetStatistics 计算审批统计
// 纯读侧计算,不做任何修改;空数据集返回全零而不是错误
func (e *Engine) GetStatistics() (*Statistics, error) {
	approved, err := e.requests.CountByState(string(StateApproved))
	if err != nil {
		return nil, fmt.Errorf("failed to count approved requests: %w", err)
	}
	rejected, err := e.requests.CountByState(string(StateRejected))
	if err != nil {
		return nil, fmt.Errorf("failed to count rejected requests: %w", err)
	}
	pending, err := e.requests.CountByState(string(StatePending))
	if err != nil {
		return nil, fmt.Errorf("failed to count pending requests: %w", err)
	}
	totalRules, err := e.rules.Count()
	if err != nil {
		return nil, fmt.Errorf("failed to count rules: %w", err)
	}

	stats := &Statistics{
		TotalRequests: approved + rejected + pending,
		Approved:      approved,
		Rejected:      rejected,
		Pending:       pending,
		TotalRules:    totalRules,
	}

	terminal := approved + rejected
	if terminal > 0 {
		stats.ApprovalRate = float64(approved) / float64(terminal) * 100
		stats.RejectionRate = float64(rejected) / float64(terminal) * 100
	}

	durations, err := e.requests.TerminalDurations()
	if err != nil {
		return nil, fmt.Errorf("failed to load terminal durations: %w", err)
	}
	if len(durations) > 0 {
		var totalHours float64
		for _, d := range durations {
			totalHours += d.DecidedAt.Sub(d.CreatedAt).Hours()
		}
		stats.AvgApprovalTimeHours = totalHours / float64(len(durations))
	}

	return stats, nil
}

// DailyStatistics 按天统计请求创建量
type DailyStatistics struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// GetDailyStatistics 按创建日期统计请求量,最近的在前
func (e *Engine) GetDailyStatistics() ([]DailyStatistics, error) {
	counts, err := e.requests.CountByDay()
	if err != nil {
		return nil, fmt.Errorf("failed to count requests by day: %w", err)
	}
	stats := make([]DailyStatistics, 0, len(counts))
	for _, c := range counts {
		stats = append(stats, DailyStatistics{Date: c.Date, Count: c.Count})
	}
	return stats, nil
}

// RuleStatistics 按规则统计请求量
type RuleStatistics struct {
	RuleID   string `json:"rule_id"`
	RuleName string `json:"rule_name"`
	Count    int64  `json:"count"`
}

// GetRuleStatistics 按规则统计请求量
// fail-open 创建的请求(无规则)归入空 rule_id 一档
func (e *Engine) GetRuleStatistics() ([]RuleStatistics, error) {
	counts, err := e.requests.CountByRule()
	if err != nil {
		return nil, fmt.Errorf("failed to count requests by rule: %w", err)
	}

	stats := make([]RuleStatistics, 0, len(counts))
	for ruleID, count := range counts {
		name := "unmatched"
		if ruleID != "" {
			if rule := e.loadRule(ruleID); rule != nil {
				name = rule.Name
			}
		}
		stats = append(stats, RuleStatistics{RuleID: ruleID, RuleName: name, Count: count})
	}
	return stats, nil
}
