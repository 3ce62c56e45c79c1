package engine

import (
	"encoding/json"
	"fmt"

	"github.com/clmops/approval-engine/internal/model"
	"github.com/clmops/approval-engine/internal/repository"
)

// RuleSelector 在多条命中规则中选择实际生效的一条
// 默认 FirstMatch(每个实体只保留一条请求流),调用方可替换
type RuleSelector func(rules []*ApprovalRule) *ApprovalRule

// FirstMatch 首条命中规则生效
func FirstMatch(rules []*ApprovalRule) *ApprovalRule {
	if len(rules) == 0 {
		return nil
	}
	return rules[0]
}

// Matcher 规则匹配器
// 按优先级降序、创建时间升序评估启用规则,返回全部命中项
type Matcher struct {
	rules repository.RuleRepository
}

// NewMatcher 创建规则匹配器
func NewMatcher(rules repository.RuleRepository) *Matcher {
	return &Matcher{rules: rules}
}

// Match 返回实体命中的全部启用规则,顺序确定且稳定
// 条件全部满足才算命中;实体缺失条件涉及的属性时视为不命中
func (m *Matcher) Match(entityType string, attrs map[string]interface{}) ([]*ApprovalRule, error) {
	models, err := m.rules.FindActiveByEntityType(entityType)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules for entity type %q: %w", entityType, err)
	}

	var matched []*ApprovalRule
	for _, rm := range models {
		rule, err := modelToRule(rm)
		if err != nil {
			// 坏规则跳过,不让单条脏数据中断整个匹配
			continue
		}
		if ruleMatches(rule, attrs) {
			matched = append(matched, rule)
		}
	}
	return matched, nil
}

// ruleMatches 判断实体属性是否满足规则的全部条件
func ruleMatches(rule *ApprovalRule, attrs map[string]interface{}) bool {
	for key, cond := range rule.Conditions {
		value, exists := attrs[key]
		if !exists {
			return false
		}
		if !cond.Matches(value) {
			return false
		}
	}
	return true
}

// modelToRule 数据模型转领域对象
func modelToRule(rm *model.RuleModel) (*ApprovalRule, error) {
	var conditions map[string]Condition
	if err := json.Unmarshal(rm.Conditions, &conditions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rule conditions: %w", err)
	}

	var approvers []Approver
	if err := json.Unmarshal(rm.Approvers, &approvers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rule approvers: %w", err)
	}

	var escalation *Approver
	if len(rm.EscalationApprover) > 0 {
		escalation = &Approver{}
		if err := json.Unmarshal(rm.EscalationApprover, escalation); err != nil {
			return nil, fmt.Errorf("failed to unmarshal escalation approver: %w", err)
		}
	}

	return &ApprovalRule{
		ID:                  rm.ID,
		Name:                rm.Name,
		EntityType:          rm.EntityType,
		Conditions:          conditions,
		Approvers:           approvers,
		ApprovalLevels:      rm.ApprovalLevels,
		TimeoutDays:         rm.TimeoutDays,
		Priority:            rm.Priority,
		EscalationEnabled:   rm.EscalationEnabled,
		NotificationEnabled: rm.NotificationEnabled,
		EscalationApprover:  escalation,
		IsActive:            rm.IsActive,
		CreatedAt:           rm.CreatedAt,
		UpdatedAt:           rm.UpdatedAt,
	}, nil
}

// ruleToModel 领域对象转数据模型
func ruleToModel(rule *ApprovalRule) (*model.RuleModel, error) {
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rule conditions: %w", err)
	}

	approvers, err := json.Marshal(rule.Approvers)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rule approvers: %w", err)
	}

	var escalation []byte
	if rule.EscalationApprover != nil {
		escalation, err = json.Marshal(rule.EscalationApprover)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal escalation approver: %w", err)
		}
	}

	return &model.RuleModel{
		ID:                  rule.ID,
		Name:                rule.Name,
		EntityType:          rule.EntityType,
		Conditions:          conditions,
		Approvers:           approvers,
		ApprovalLevels:      rule.ApprovalLevels,
		TimeoutDays:         rule.TimeoutDays,
		Priority:            rule.Priority,
		EscalationEnabled:   rule.EscalationEnabled,
		NotificationEnabled: rule.NotificationEnabled,
		EscalationApprover:  escalation,
		IsActive:            rule.IsActive,
		CreatedAt:           rule.CreatedAt,
		UpdatedAt:           rule.UpdatedAt,
	}, nil
}
