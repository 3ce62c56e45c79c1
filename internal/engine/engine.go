package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/clmops/approval-engine/internal/metrics"
	"github.com/clmops/approval-engine/internal/model"
	"github.com/clmops/approval-engine/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Config 引擎配置
type Config struct {
	ResetDeadlineOnEscalation bool // 升级后是否重置超时期限(默认保持原期限)
	DefaultTimeoutDays        int  // 无规则命中时的默认超时天数
}

// Engine 审批工作流引擎
// 独占持有审批请求的生命周期,规则匹配、多级审批推进、
// 升级与统计都经由它完成;通知分发为尽力而为,状态转换才是权威
type Engine struct {
	db         *gorm.DB
	rules      repository.RuleRepository
	requests   repository.RequestRepository
	history    repository.StateHistoryRepository
	events     repository.EventRepository
	matcher    *Matcher
	selector   RuleSelector
	dispatcher *Dispatcher
	locks      *keyedMutex
	cfg        Config
	logger     *logrus.Logger
}

// NewEngine 创建审批工作流引擎
// dispatcher 可为 nil,此时跳过全部通知分发
func NewEngine(db *gorm.DB, dispatcher *Dispatcher, cfg Config, logger *logrus.Logger) *Engine {
	if cfg.DefaultTimeoutDays <= 0 {
		cfg.DefaultTimeoutDays = 7
	}
	if logger == nil {
		logger = logrus.New()
	}
	rules := repository.NewRuleRepository(db)
	return &Engine{
		db:         db,
		rules:      rules,
		requests:   repository.NewRequestRepository(db),
		history:    repository.NewStateHistoryRepository(db),
		events:     repository.NewEventRepository(db),
		matcher:    NewMatcher(rules),
		selector:   FirstMatch,
		dispatcher: dispatcher,
		locks:      newKeyedMutex(),
		cfg:        cfg,
		logger:     logger,
	}
}

// SetRuleSelector 替换多规则命中时的选择策略
func (e *Engine) SetRuleSelector(selector RuleSelector) {
	if selector != nil {
		e.selector = selector
	}
}

// Matcher 返回引擎使用的规则匹配器
func (e *Engine) Matcher() *Matcher {
	return e.matcher
}

// CreateRuleInput 创建规则的输入
type CreateRuleInput struct {
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
}

// CreateRule 创建审批规则
func (e *Engine) CreateRule(input *CreateRuleInput) (*ApprovalRule, error) {
	if input.Name == "" {
		return nil, &InvalidRuleError{Reason: "name is required"}
	}
	if input.EntityType == "" {
		return nil, &InvalidRuleError{Reason: "entity type is required"}
	}
	if input.ApprovalLevels < 1 {
		return nil, &InvalidRuleError{Reason: "approval levels must be at least 1"}
	}
	if len(input.Approvers) == 0 {
		return nil, &InvalidRuleError{Reason: "at least one approver is required"}
	}
	if len(input.Conditions) == 0 {
		return nil, &InvalidRuleError{Reason: "at least one condition is required"}
	}
	for key, cond := range input.Conditions {
		if cond.Empty() {
			return nil, &InvalidRuleError{Reason: fmt.Sprintf("condition %q is empty", key)}
		}
	}

	timeoutDays := input.TimeoutDays
	if timeoutDays <= 0 {
		timeoutDays = e.cfg.DefaultTimeoutDays
	}

	now := time.Now()
	rule := &ApprovalRule{
		ID:                  uuid.New().String(),
		Name:                input.Name,
		EntityType:          input.EntityType,
		Conditions:          input.Conditions,
		Approvers:           input.Approvers,
		ApprovalLevels:      input.ApprovalLevels,
		TimeoutDays:         timeoutDays,
		Priority:            input.Priority,
		EscalationEnabled:   input.EscalationEnabled,
		NotificationEnabled: input.NotificationEnabled,
		EscalationApprover:  input.EscalationApprover,
		IsActive:            true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	rm, err := ruleToModel(rule)
	if err != nil {
		return nil, err
	}
	if err := e.rules.Save(rm); err != nil {
		return nil, fmt.Errorf("failed to save rule: %w", err)
	}

	e.logger.WithFields(logrus.Fields{
		"rule":        rule.ID,
		"entity_type": rule.EntityType,
		"levels":      rule.ApprovalLevels,
	}).Info("approval rule created")

	return rule, nil
}

// ListRules 列出全部规则
func (e *Engine) ListRules() ([]*ApprovalRule, error) {
	models, err := e.rules.FindAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	rules := make([]*ApprovalRule, 0, len(models))
	for _, rm := range models {
		rule, err := modelToRule(rm)
		if err != nil {
			continue
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// DeactivateRule 停用规则(软删除)
// 被引用的规则永远不做物理删除,历史请求仍可回溯其配置
func (e *Engine) DeactivateRule(id string) error {
	if _, err := e.rules.FindByID(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &NotFoundError{Resource: "rule", ID: id}
		}
		return fmt.Errorf("failed to get rule: %w", err)
	}
	return e.rules.Deactivate(id)
}

// CreateRequestInput 创建审批请求的输入
type CreateRequestInput struct {
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
}

// CreateApprovalRequest 创建审批请求
// 规则匹配失败时仍然创建请求(fail-open,使用显式传入的审批人与默认超时),
// 保证每次提交都有可审计的请求产生。第二个返回值表示下游通知通道是否接受,
// 投递失败只记日志,绝不让创建操作报错
func (e *Engine) CreateApprovalRequest(ctx context.Context, input *CreateRequestInput) (*ApprovalRequest, bool, error) {
	priority := input.Priority
	if priority == "" {
		priority = PriorityNormal
	}
	if !priority.Valid() {
		return nil, false, fmt.Errorf("invalid priority %q", priority)
	}

	matched, err := e.matcher.Match(input.EntityType, input.Entity)
	if err != nil {
		return nil, false, err
	}
	rule := e.selector(matched)

	timeoutDays := e.cfg.DefaultTimeoutDays
	totalLevels := 1
	ruleID := ""
	notify := true
	if rule != nil {
		timeoutDays = rule.TimeoutDays
		totalLevels = rule.ApprovalLevels
		ruleID = rule.ID
		notify = rule.NotificationEnabled
	}

	now := time.Now()
	req := &ApprovalRequest{
		RequestID:      uuid.New().String(),
		RuleID:         ruleID,
		EntityID:       input.EntityID,
		EntityType:     input.EntityType,
		Entity:         input.Entity,
		RequesterID:    input.RequesterID,
		RequesterEmail: input.RequesterEmail,
		RequesterName:  input.RequesterName,
		ApproverID:     input.ApproverID,
		ApproverEmail:  input.ApproverEmail,
		ApproverName:   input.ApproverName,
		DocumentTitle:  input.DocumentTitle,
		Priority:       priority,
		State:          StatePending,
		CurrentLevel:   1,
		TotalLevels:    totalLevels,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiryDate:     now.AddDate(0, 0, timeoutDays),
	}

	var evt *Event
	err = e.db.Transaction(func(tx *gorm.DB) error {
		rm, err := requestToModel(req)
		if err != nil {
			return err
		}
		if err := tx.Create(rm).Error; err != nil {
			return fmt.Errorf("failed to save request: %w", err)
		}
		if err := e.recordHistory(tx, req.RequestID, "", StatePending, "approval request created", req.RequesterID); err != nil {
			return err
		}
		if err := e.recordAudit(tx, req.RequesterID, "create_request", "request", req.RequestID, map[string]interface{}{
			"entity_id":   req.EntityID,
			"entity_type": req.EntityType,
			"rule_id":     req.RuleID,
		}); err != nil {
			return err
		}
		if notify {
			evt, err = e.recordOutboxEvent(tx, EventApprovalRequest, req)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	metrics.RecordRequestCreated()

	if rule == nil {
		e.logger.WithFields(logrus.Fields{
			"request":     req.RequestID,
			"entity_type": req.EntityType,
		}).Info("no rule matched, request created fail-open with explicit approver")
	}

	// 状态已落库,此后的投递失败不再影响请求本身
	sent := false
	if evt != nil && e.dispatcher != nil {
		sent = e.dispatcher.Dispatch(evt)
	}

	return req, sent, nil
}

// GetRequest 获取审批请求
func (e *Engine) GetRequest(id string) (*ApprovalRequest, error) {
	rm, err := e.requests.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "request", ID: id}
		}
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return modelToRequest(rm)
}

// ApproveRequest 审批同意
// 多级规则在最后一级之前只推进阶段: 请求保持 pending,审批人换为下一级,
// 超时计时按阶段重新起算;只有最后一级的同意才落终态
func (e *Engine) ApproveRequest(ctx context.Context, id string, comment string) (bool, string, error) {
	e.locks.Lock(id)
	defer e.locks.Unlock(id)

	req, err := e.GetRequest(id)
	if err != nil {
		return false, "approval request not found", err
	}
	if req.State.IsTerminal() {
		return false, fmt.Sprintf("request already %s", req.State),
			&InvalidStateError{RequestID: id, State: req.State, Operation: "approve"}
	}

	now := time.Now()

	if req.CurrentLevel < req.TotalLevels {
		// 非最后一级: 推进到下一阶段
		next := req.CurrentLevel + 1
		fromLevel := req.CurrentLevel
		req.CurrentLevel = next
		req.Escalated = false
		req.UpdatedAt = now

		timeoutDays := e.cfg.DefaultTimeoutDays
		if rule := e.loadRule(req.RuleID); rule != nil {
			approver := rule.ApproverAtLevel(next)
			req.ApproverID = approver.ID
			req.ApproverEmail = approver.Email
			req.ApproverName = approver.Name
			timeoutDays = rule.TimeoutDays
		}
		req.ExpiryDate = now.AddDate(0, 0, timeoutDays)

		var evt *Event
		err = e.db.Transaction(func(tx *gorm.DB) error {
			if err := e.saveRequest(tx, req); err != nil {
				return err
			}
			reason := fmt.Sprintf("level %d approved, advanced to level %d", fromLevel, next)
			if err := e.recordHistory(tx, id, StatePending, StatePending, reason, req.ApproverID); err != nil {
				return err
			}
			if err := e.recordAudit(tx, req.ApproverID, "approve", "request", id, map[string]interface{}{
				"level":   fromLevel,
				"comment": comment,
			}); err != nil {
				return err
			}
			evt, err = e.recordOutboxEvent(tx, EventApprovalRequest, req)
			return err
		})
		if err != nil {
			return false, "failed to advance approval", err
		}

		metrics.RecordDecision("advance")
		e.dispatchAsync(evt)
		return true, fmt.Sprintf("approved at level %d, advanced to level %d of %d", fromLevel, next, req.TotalLevels), nil
	}

	// 最后一级: 落终态
	req.State = StateApproved
	req.Comment = comment
	req.DecidedAt = &now
	req.UpdatedAt = now

	var evt *Event
	err = e.db.Transaction(func(tx *gorm.DB) error {
		if err := e.saveRequest(tx, req); err != nil {
			return err
		}
		if err := e.recordHistory(tx, id, StatePending, StateApproved, comment, req.ApproverID); err != nil {
			return err
		}
		if err := e.recordAudit(tx, req.ApproverID, "approve", "request", id, map[string]interface{}{
			"level":   req.CurrentLevel,
			"comment": comment,
		}); err != nil {
			return err
		}
		evt, err = e.recordOutboxEvent(tx, EventApprovalApproved, req)
		return err
	})
	if err != nil {
		return false, "failed to approve request", err
	}

	metrics.RecordDecision("approve")
	e.dispatchAsync(evt)
	return true, "approval request approved", nil
}

// RejectRequest 审批拒绝
// 任一阶段的拒绝立即落终态,多级链条被短路
func (e *Engine) RejectRequest(ctx context.Context, id string, reason string) (bool, string, error) {
	e.locks.Lock(id)
	defer e.locks.Unlock(id)

	req, err := e.GetRequest(id)
	if err != nil {
		return false, "approval request not found", err
	}
	if req.State.IsTerminal() {
		return false, fmt.Sprintf("request already %s", req.State),
			&InvalidStateError{RequestID: id, State: req.State, Operation: "reject"}
	}

	now := time.Now()
	req.State = StateRejected
	req.Comment = reason
	req.DecidedAt = &now
	req.UpdatedAt = now

	var evt *Event
	err = e.db.Transaction(func(tx *gorm.DB) error {
		if err := e.saveRequest(tx, req); err != nil {
			return err
		}
		if err := e.recordHistory(tx, id, StatePending, StateRejected, reason, req.ApproverID); err != nil {
			return err
		}
		if err := e.recordAudit(tx, req.ApproverID, "reject", "request", id, map[string]interface{}{
			"level":  req.CurrentLevel,
			"reason": reason,
		}); err != nil {
			return err
		}
		evt, err = e.recordOutboxEvent(tx, EventApprovalRejected, req)
		return err
	})
	if err != nil {
		return false, "failed to reject request", err
	}

	metrics.RecordDecision("reject")
	e.dispatchAsync(evt)
	return true, "approval request rejected", nil
}

// ListPendingRequests 列出全部待审批请求,超时期限最近的在前
func (e *Engine) ListPendingRequests() ([]*ApprovalRequest, error) {
	models, err := e.requests.FindPending()
	if err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}
	reqs := make([]*ApprovalRequest, 0, len(models))
	for _, rm := range models {
		req, err := modelToRequest(rm)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// loadRule 加载规则,失败时返回 nil(规则被物理清理的历史数据也能继续流转)
func (e *Engine) loadRule(id string) *ApprovalRule {
	if id == "" {
		return nil
	}
	rm, err := e.rules.FindByID(id)
	if err != nil {
		e.logger.WithField("rule", id).Warnf("failed to load rule: %v", err)
		return nil
	}
	rule, err := modelToRule(rm)
	if err != nil {
		e.logger.WithField("rule", id).Warnf("failed to decode rule: %v", err)
		return nil
	}
	return rule
}

// saveRequest 在事务内保存请求
func (e *Engine) saveRequest(tx *gorm.DB, req *ApprovalRequest) error {
	rm, err := requestToModel(req)
	if err != nil {
		return err
	}
	return tx.Save(rm).Error
}

// recordHistory 在事务内记录状态历史
func (e *Engine) recordHistory(tx *gorm.DB, requestID string, from, to State, reason, operator string) error {
	if operator == "" {
		operator = "system"
	}
	history := &model.StateHistoryModel{
		ID:        uuid.New().String(),
		RequestID: requestID,
		FromState: string(from),
		ToState:   string(to),
		Reason:    reason,
		Operator:  operator,
		CreatedAt: time.Now(),
	}
	if err := tx.Create(history).Error; err != nil {
		return fmt.Errorf("failed to save state history: %w", err)
	}
	return nil
}

// recordAudit 在事务内记录审计日志
func (e *Engine) recordAudit(tx *gorm.DB, userID, action, resourceType, resourceID string, details map[string]interface{}) error {
	if userID == "" {
		userID = "system"
	}
	data, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to marshal audit details: %w", err)
	}
	log := &model.AuditLogModel{
		ID:           uuid.New().String(),
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      data,
		CreatedAt:    time.Now(),
	}
	if err := tx.Create(log).Error; err != nil {
		return fmt.Errorf("failed to save audit log: %w", err)
	}
	return nil
}

// recordOutboxEvent 在事务内落发件箱事件
// 事件与状态转换同事务提交,投递在提交之后才开始
func (e *Engine) recordOutboxEvent(tx *gorm.DB, eventType string, req *ApprovalRequest) (*Event, error) {
	evt := &Event{
		ID:      uuid.New().String(),
		Type:    eventType,
		Request: req,
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	em := &model.EventModel{
		ID:        evt.ID,
		RequestID: req.RequestID,
		Type:      eventType,
		Data:      data,
		Status:    "pending",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := tx.Create(em).Error; err != nil {
		return nil, fmt.Errorf("failed to save outbox event: %w", err)
	}
	return evt, nil
}

// dispatchAsync 异步投递事件
func (e *Engine) dispatchAsync(evt *Event) {
	if evt == nil || e.dispatcher == nil {
		return
	}
	e.dispatcher.Enqueue(evt)
}

// requestToModel 领域对象转数据模型
func requestToModel(req *ApprovalRequest) (*model.RequestModel, error) {
	entity, err := json.Marshal(req.Entity)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entity snapshot: %w", err)
	}
	return &model.RequestModel{
		ID:             req.RequestID,
		RuleID:         req.RuleID,
		EntityID:       req.EntityID,
		EntityType:     req.EntityType,
		Entity:         entity,
		RequesterID:    req.RequesterID,
		RequesterEmail: req.RequesterEmail,
		RequesterName:  req.RequesterName,
		ApproverID:     req.ApproverID,
		ApproverEmail:  req.ApproverEmail,
		ApproverName:   req.ApproverName,
		DocumentTitle:  req.DocumentTitle,
		Priority:       string(req.Priority),
		State:          string(req.State),
		Escalated:      req.Escalated,
		CurrentLevel:   req.CurrentLevel,
		TotalLevels:    req.TotalLevels,
		Comment:        req.Comment,
		CreatedAt:      req.CreatedAt,
		UpdatedAt:      req.UpdatedAt,
		ExpiryDate:     req.ExpiryDate,
		DecidedAt:      req.DecidedAt,
	}, nil
}

// modelToRequest 数据模型转领域对象
func modelToRequest(rm *model.RequestModel) (*ApprovalRequest, error) {
	var entity map[string]interface{}
	if len(rm.Entity) > 0 {
		if err := json.Unmarshal(rm.Entity, &entity); err != nil {
			return nil, fmt.Errorf("failed to unmarshal entity snapshot: %w", err)
		}
	}
	return &ApprovalRequest{
		RequestID:      rm.ID,
		RuleID:         rm.RuleID,
		EntityID:       rm.EntityID,
		EntityType:     rm.EntityType,
		Entity:         entity,
		RequesterID:    rm.RequesterID,
		RequesterEmail: rm.RequesterEmail,
		RequesterName:  rm.RequesterName,
		ApproverID:     rm.ApproverID,
		ApproverEmail:  rm.ApproverEmail,
		ApproverName:   rm.ApproverName,
		DocumentTitle:  rm.DocumentTitle,
		Priority:       Priority(rm.Priority),
		State:          State(rm.State),
		Escalated:      rm.Escalated,
		CurrentLevel:   rm.CurrentLevel,
		TotalLevels:    rm.TotalLevels,
		Comment:        rm.Comment,
		CreatedAt:      rm.CreatedAt,
		UpdatedAt:      rm.UpdatedAt,
		ExpiryDate:     rm.ExpiryDate,
		DecidedAt:      rm.DecidedAt,
	}, nil
}
