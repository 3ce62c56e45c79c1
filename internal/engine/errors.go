package engine

import "fmt"

// InvalidRuleError 规则配置不合法
type InvalidRuleError struct {
	Reason string
}

func (e *InvalidRuleError) Error() string {
	return fmt.Sprintf("invalid approval rule: %s", e.Reason)
}

// NotFoundError 请求或规则不存在
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// InvalidStateError 在终态或不兼容状态上尝试转换
type InvalidStateError struct {
	RequestID string
	State     State
	Operation string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s request %q in state %q", e.Operation, e.RequestID, e.State)
}

// DispatchError 通知投递失败
// 投递失败只记录日志,永远不会传播给生命周期操作的调用方
type DispatchError struct {
	Channel string
	Event   string
	Err     error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s via %s failed: %v", e.Event, e.Channel, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}
