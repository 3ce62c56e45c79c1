package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/clmops/approval-engine/internal/metrics"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Sweep 升级扫描
// 由外部触发(定时任务或 sweep 子命令),不在引擎内部自调度。
// 对每个超期且规则启用升级的待审批请求: 标记 escalated 并把审批人
// 换成规则的升级目标;请求在功能上仍是 pending,不自动同意或拒绝。
// 每个阶段最多升级一次,重复扫描是无害的空操作。
// 返回本次实际升级的请求数
func (e *Engine) Sweep(ctx context.Context) (int, error) {
	overdue, err := e.requests.FindOverdue(time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to scan overdue requests: %w", err)
	}

	escalated := 0
	for _, rm := range overdue {
		select {
		case <-ctx.Done():
			return escalated, ctx.Err()
		default:
		}

		if e.escalateOne(rm.ID) {
			escalated++
		}
	}

	if escalated > 0 {
		e.logger.WithField("count", escalated).Info("escalation sweep completed")
	}
	return escalated, nil
}

// escalateOne 升级单个请求
// 持请求锁重读状态,和并发的 approve/reject 竞争时只有一方生效
func (e *Engine) escalateOne(id string) bool {
	e.locks.Lock(id)
	defer e.locks.Unlock(id)

	req, err := e.GetRequest(id)
	if err != nil {
		e.logger.WithField("request", id).Warnf("failed to reload request during sweep: %v", err)
		return false
	}

	// 锁内复核: 已终态或已升级的请求跳过
	if req.State.IsTerminal() || req.Escalated {
		return false
	}
	if time.Now().Before(req.ExpiryDate) {
		return false
	}

	rule := e.loadRule(req.RuleID)
	if rule == nil || !rule.EscalationEnabled {
		// fail-open 请求没有规则,不参与升级
		return false
	}

	now := time.Now()
	target := rule.EscalationTarget()
	previous := req.ApproverID
	req.Escalated = true
	req.ApproverID = target.ID
	req.ApproverEmail = target.Email
	req.ApproverName = target.Name
	req.UpdatedAt = now
	if e.cfg.ResetDeadlineOnEscalation {
		// 可配置策略: 升级后给新审批人一个完整的 SLA 窗口
		req.ExpiryDate = now.AddDate(0, 0, rule.TimeoutDays)
	}

	var evt *Event
	err = e.db.Transaction(func(tx *gorm.DB) error {
		if err := e.saveRequest(tx, req); err != nil {
			return err
		}
		reason := fmt.Sprintf("deadline exceeded, reassigned from %s to %s", previous, target.ID)
		if err := e.recordHistory(tx, id, StatePending, StatePending, reason, "system"); err != nil {
			return err
		}
		if err := e.recordAudit(tx, "system", "escalate", "request", id, map[string]interface{}{
			"from_approver": previous,
			"to_approver":   target.ID,
			"level":         req.CurrentLevel,
		}); err != nil {
			return err
		}
		if rule.NotificationEnabled {
			var err error
			evt, err = e.recordOutboxEvent(tx, EventApprovalEscalated, req)
			return err
		}
		return nil
	})
	if err != nil {
		e.logger.WithField("request", id).Errorf("failed to escalate request: %v", err)
		return false
	}

	metrics.RecordDecision("escalate")
	e.logger.WithFields(logrus.Fields{
		"request":  id,
		"approver": target.ID,
	}).Info("request escalated")

	e.dispatchAsync(evt)
	return true
}
