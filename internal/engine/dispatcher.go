package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/clmops/approval-engine/internal/metrics"
	"github.com/clmops/approval-engine/internal/model"
	"github.com/clmops/approval-engine/internal/repository"
	"github.com/sirupsen/logrus"
)

// Event 生命周期通知事件
// 携带请求的只读快照,投递方不回写请求状态
type Event struct {
	ID      string           `json:"id"`
	Type    string           `json:"type"`
	Request *ApprovalRequest `json:"request"`
}

// EventFromModel 从 outbox 行还原事件,进程重启后补投用
func EventFromModel(em *model.EventModel) (*Event, error) {
	var evt Event
	if err := json.Unmarshal(em.Data, &evt); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event %s: %w", em.ID, err)
	}
	if evt.Request == nil {
		return nil, fmt.Errorf("event %s has no request snapshot", em.ID)
	}
	return &evt, nil
}

// DispatcherConfig 通知分发配置
type DispatcherConfig struct {
	AppURL    string        // 前端地址,用于拼接可点击的审批链接
	Timeout   time.Duration // 单次投递的超时上限
	QueueSize int           // 异步队列容量
	Workers   int           // 异步投递 worker 数量
}

// Dispatcher 通知分发器
// 把生命周期事件翻译成针对收件人的邮件与站内通知,双通道独立投递:
// 任一通道失败不影响另一通道,也永远不会回滚已提交的状态转换
type Dispatcher struct {
	email  EmailSender
	store  NotificationStore
	hub    Broadcaster
	events repository.EventRepository
	cfg    DispatcherConfig
	logger *logrus.Logger

	queue chan *Event
	stop  chan struct{}
	wg    sync.WaitGroup
}

// NewDispatcher 创建通知分发器并启动 worker
// email/store/hub 均可为 nil,缺席的协作方直接跳过投递
func NewDispatcher(email EmailSender, store NotificationStore, hub Broadcaster, events repository.EventRepository, cfg DispatcherConfig, logger *logrus.Logger) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	if logger == nil {
		logger = logrus.New()
	}

	d := &Dispatcher{
		email:  email,
		store:  store,
		hub:    hub,
		events: events,
		cfg:    cfg,
		logger: logger,
		queue:  make(chan *Event, cfg.QueueSize),
		stop:   make(chan struct{}),
	}

	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}

	return d
}

// worker 异步投递 worker
func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case evt := <-d.queue:
			d.Dispatch(evt)
		case <-d.stop:
			return
		}
	}
}

// Enqueue 异步投递事件
// 队列满时丢弃并记日志,绝不阻塞生命周期操作
func (d *Dispatcher) Enqueue(evt *Event) {
	select {
	case d.queue <- evt:
	default:
		d.logger.WithFields(logrus.Fields{
			"event":   evt.Type,
			"request": evt.Request.RequestID,
		}).Warn("notification queue full, dropping event")
		metrics.RecordDispatchFailure("queue")
	}
}

// Dispatch 同步投递事件,返回下游是否接受
// 投递受 cfg.Timeout 约束,慢后端不会拖住工作流转换
func (d *Dispatcher) Dispatch(evt *Event) bool {
	req := evt.Request
	recipient, subject := d.describe(evt)
	actionURL := fmt.Sprintf("%s/approvals/%s", d.cfg.AppURL, req.RequestID)

	emailOK := d.dispatchEmail(evt)
	storeOK := d.dispatchStore(evt, recipient, subject, actionURL)

	if d.hub != nil {
		d.hub.Push(recipient.ID, map[string]interface{}{
			"type":       evt.Type,
			"subject":    subject,
			"request_id": req.RequestID,
			"action_url": actionURL,
		})
	}

	accepted := emailOK
	if d.email == nil {
		accepted = storeOK
	}
	d.finalizeEvent(evt, accepted || storeOK)
	return accepted
}

// describe 根据事件类型确定收件人与主题
// 请求/升级事件发给当前审批人,终态事件发给申请人
func (d *Dispatcher) describe(evt *Event) (Approver, string) {
	req := evt.Request
	switch evt.Type {
	case EventApprovalApproved:
		return Approver{ID: req.RequesterID, Email: req.RequesterEmail, Name: req.RequesterName},
			fmt.Sprintf("Approval Approved: %s", req.DocumentTitle)
	case EventApprovalRejected:
		return Approver{ID: req.RequesterID, Email: req.RequesterEmail, Name: req.RequesterName},
			fmt.Sprintf("Approval Rejected: %s", req.DocumentTitle)
	case EventApprovalEscalated:
		return Approver{ID: req.ApproverID, Email: req.ApproverEmail, Name: req.ApproverName},
			fmt.Sprintf("Approval Escalated: %s", req.DocumentTitle)
	default:
		return Approver{ID: req.ApproverID, Email: req.ApproverEmail, Name: req.ApproverName},
			fmt.Sprintf("Approval Request: %s", req.DocumentTitle)
	}
}

// dispatchEmail 投递邮件通道,带超时保护
func (d *Dispatcher) dispatchEmail(evt *Event) bool {
	if d.email == nil {
		d.logger.WithField("event", evt.Type).Debug("email sender absent, skipping email dispatch")
		return false
	}

	req := evt.Request
	done := make(chan bool, 1)
	go func() {
		switch evt.Type {
		case EventApprovalApproved:
			done <- d.email.SendApprovalApprovedEmail(req.RequesterEmail, req.RequesterName, req.DocumentTitle, req.ApproverName, req.Comment)
		case EventApprovalRejected:
			done <- d.email.SendApprovalRejectedEmail(req.RequesterEmail, req.RequesterName, req.DocumentTitle, req.ApproverName, req.Comment)
		default:
			// approval_request 与 approval_escalated 都是请新审批人处理
			done <- d.email.SendApprovalRequestEmail(req.ApproverEmail, req.ApproverName, req.ApproverName, req.DocumentTitle, req.EntityType, req.RequestID, req.RequesterName, req.Priority)
		}
	}()

	select {
	case ok := <-done:
		if !ok {
			derr := &DispatchError{Channel: "email", Event: evt.Type, Err: fmt.Errorf("sender rejected message")}
			d.logger.WithField("request", req.RequestID).Warn(derr.Error())
			metrics.RecordDispatchFailure("email")
		}
		return ok
	case <-time.After(d.cfg.Timeout):
		derr := &DispatchError{Channel: "email", Event: evt.Type, Err: context.DeadlineExceeded}
		d.logger.WithField("request", req.RequestID).Warn(derr.Error())
		metrics.RecordDispatchFailure("email")
		return false
	}
}

// dispatchStore 投递站内通知通道
func (d *Dispatcher) dispatchStore(evt *Event, recipient Approver, subject, actionURL string) bool {
	if d.store == nil {
		d.logger.WithField("event", evt.Type).Debug("notification store absent, skipping in-app dispatch")
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
	defer cancel()

	if _, err := d.store.CreateNotification(ctx, recipient.ID, subject, evt.Type, actionURL); err != nil {
		derr := &DispatchError{Channel: "store", Event: evt.Type, Err: err}
		d.logger.WithField("request", evt.Request.RequestID).Warn(derr.Error())
		metrics.RecordDispatchFailure("store")
		return false
	}
	return true
}

// finalizeEvent 更新发件箱事件状态
func (d *Dispatcher) finalizeEvent(evt *Event, delivered bool) {
	if d.events == nil || evt.ID == "" {
		return
	}

	em, err := d.events.FindByID(evt.ID)
	if err != nil {
		d.logger.WithField("event", evt.ID).Warnf("failed to load outbox event: %v", err)
		return
	}

	if delivered {
		em.Status = "success"
	} else {
		em.Status = "failed"
		em.RetryCount++
	}
	em.UpdatedAt = time.Now()
	if err := d.events.Save(em); err != nil {
		d.logger.WithField("event", evt.ID).Warnf("failed to update outbox event: %v", err)
	}
}

// Close 关闭分发器,等待 worker 退出
// 进程停机时队列中未投递的事件被丢弃,请求状态已先行落库,不会损坏
func (d *Dispatcher) Close() {
	close(d.stop)
	d.wg.Wait()
}
