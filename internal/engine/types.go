package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// State 审批请求状态
type State string

const (
	StatePending  State = "pending"
	StateApproved State = "approved"
	StateRejected State = "rejected"
)

// IsTerminal 判断是否为终态(终态不可再转换)
func (s State) IsTerminal() bool {
	return s == StateApproved || s == StateRejected
}

// Priority 审批请求优先级
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid 判断优先级是否合法
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// 通知事件类型
const (
	EventApprovalRequest   = "approval_request"
	EventApprovalApproved  = "approval_approved"
	EventApprovalRejected  = "approval_rejected"
	EventApprovalEscalated = "approval_escalated"
)

// Approver 审批人身份
type Approver struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Condition 规则匹配条件,三种谓词之一:
//   - AnyOf: 实体属性值属于给定集合
//   - Min/Max: 实体属性值落在数值区间内(任一端可省略)
//   - Equals: 实体属性值等于给定布尔值
//
// JSON 表示兼容调用方的简写: 数组表示集合匹配,裸布尔表示布尔匹配,
// {"min":..,"max":..} 表示区间匹配
type Condition struct {
	AnyOf  []string `json:"any_of,omitempty"`
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
	Equals *bool    `json:"equals,omitempty"`
}

// UnmarshalJSON 解析条件的三种 JSON 形态
func (c *Condition) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty condition")
	}

	switch data[0] {
	case '[':
		var values []string
		if err := json.Unmarshal(data, &values); err != nil {
			return fmt.Errorf("invalid membership condition: %w", err)
		}
		*c = Condition{AnyOf: values}
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return fmt.Errorf("invalid boolean condition: %w", err)
		}
		*c = Condition{Equals: &b}
		return nil
	case '{':
		type alias Condition
		var a alias
		if err := json.Unmarshal(data, &a); err != nil {
			return fmt.Errorf("invalid condition object: %w", err)
		}
		*c = Condition(a)
		return nil
	}
	return fmt.Errorf("unsupported condition form: %s", string(data))
}

// MarshalJSON 按简写形态输出条件
func (c Condition) MarshalJSON() ([]byte, error) {
	if c.AnyOf != nil {
		return json.Marshal(c.AnyOf)
	}
	if c.Equals != nil && c.Min == nil && c.Max == nil {
		return json.Marshal(*c.Equals)
	}
	type alias Condition
	return json.Marshal(alias(c))
}

// Empty 判断条件是否为空(空条件不允许出现在规则中)
func (c Condition) Empty() bool {
	return len(c.AnyOf) == 0 && c.Min == nil && c.Max == nil && c.Equals == nil
}

// Matches 判断实体属性值是否满足条件
// 属性缺失或类型不符一律视为不匹配
func (c Condition) Matches(value interface{}) bool {
	if value == nil {
		return false
	}

	if len(c.AnyOf) > 0 {
		text := stringify(value)
		for _, accepted := range c.AnyOf {
			if text == accepted {
				return true
			}
		}
		return false
	}

	if c.Min != nil || c.Max != nil {
		num, ok := numeric(value)
		if !ok {
			return false
		}
		if c.Min != nil && num < *c.Min {
			return false
		}
		if c.Max != nil && num > *c.Max {
			return false
		}
		return true
	}

	if c.Equals != nil {
		b, ok := value.(bool)
		return ok && b == *c.Equals
	}

	return false
}

// stringify 归一化属性值用于集合匹配
func stringify(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// numeric 尝试把属性值转换为数值
func numeric(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

// ApprovalRule 审批规则
// 创建后除 IsActive 开关外不可变,已被请求引用的规则只做软停用
type ApprovalRule struct {
	ID                  string               `json:"id"`
	Name                string               `json:"name"`
	EntityType          string               `json:"entity_type"`
	Conditions          map[string]Condition `json:"conditions"`
	Approvers           []Approver           `json:"approvers"`
	ApprovalLevels      int                  `json:"approval_levels"`
	TimeoutDays         int                  `json:"timeout_days"`
	Priority            int                  `json:"priority"`
	EscalationEnabled   bool                 `json:"escalation_enabled"`
	NotificationEnabled bool                 `json:"notification_enabled"`
	EscalationApprover  *Approver            `json:"escalation_approver,omitempty"`
	IsActive            bool                 `json:"is_active"`
	CreatedAt           time.Time            `json:"created_at"`
	UpdatedAt           time.Time            `json:"updated_at"`
}

// EscalationTarget 返回升级后的审批人
// 未显式配置时使用审批链的最后一人(链中最高级别的审批人)
func (r *ApprovalRule) EscalationTarget() Approver {
	if r.EscalationApprover != nil {
		return *r.EscalationApprover
	}
	return r.Approvers[len(r.Approvers)-1]
}

// ApproverAtLevel 返回第 level 级(从 1 开始)的审批人
// 审批链短于级数时复用链中最后一人
func (r *ApprovalRule) ApproverAtLevel(level int) Approver {
	if level < 1 {
		level = 1
	}
	if level > len(r.Approvers) {
		return r.Approvers[len(r.Approvers)-1]
	}
	return r.Approvers[level-1]
}

// ApprovalRequest 审批请求
// Entity 为创建时刻的实体快照,不会再次读取业务数据
type ApprovalRequest struct {
	RequestID      string                 `json:"request_id"`
	RuleID         string                 `json:"rule_id,omitempty"`
	EntityID       string                 `json:"entity_id"`
	EntityType     string                 `json:"entity_type"`
	Entity         map[string]interface{} `json:"entity"`
	RequesterID    string                 `json:"requester_id"`
	RequesterEmail string                 `json:"requester_email"`
	RequesterName  string                 `json:"requester_name"`
	ApproverID     string                 `json:"approver_id"`
	ApproverEmail  string                 `json:"approver_email"`
	ApproverName   string                 `json:"approver_name"`
	DocumentTitle  string                 `json:"document_title"`
	Priority       Priority               `json:"priority"`
	State          State                  `json:"state"`
	Escalated      bool                   `json:"escalated"`
	CurrentLevel   int                    `json:"current_level"`
	TotalLevels    int                    `json:"total_levels"`
	Comment        string                 `json:"comment,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
	ExpiryDate     time.Time              `json:"expiry_date"`
	DecidedAt      *time.Time             `json:"decided_at,omitempty"`
}
