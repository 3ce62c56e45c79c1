package notify_test

import (
	"testing"

	"github.com/clmops/approval-engine/internal/engine"
	"github.com/clmops/approval-engine/internal/notify"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

// TestSMTPSender_DisabledWithoutHost 测试未配置 host 时邮件通道禁用
func TestSMTPSender_DisabledWithoutHost(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	sender := notify.NewSMTPSender(notify.SMTPConfig{}, logger)
	assert.False(t, sender.Enabled())

	// 禁用模式下所有投递都返回未接受,不 panic 也不阻塞
	ok := sender.SendApprovalRequestEmail(
		"mgr01@example.com", "审批人", "审批人", "采购合同", "contract", "req-001", "申请人", engine.PriorityHigh)
	assert.False(t, ok)

	ok = sender.SendApprovalApprovedEmail("user001@example.com", "申请人", "采购合同", "审批人", "同意")
	assert.False(t, ok)

	ok = sender.SendApprovalRejectedEmail("user001@example.com", "申请人", "采购合同", "审批人", "不批")
	assert.False(t, ok)
}

// TestSMTPSender_EnabledWithHost 测试配置 host 后通道启用
func TestSMTPSender_EnabledWithHost(t *testing.T) {
	sender := notify.NewSMTPSender(notify.SMTPConfig{
		Host: "smtp.example.com",
		Port: 587,
		From: "noreply@example.com",
	}, nil)
	assert.True(t, sender.Enabled())
}
