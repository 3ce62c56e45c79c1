package notify

import (
	"fmt"
	"html"
	"time"

	"github.com/clmops/approval-engine/internal/engine"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// SMTPConfig SMTP 投递配置
// Host 为空时发送器进入禁用模式,所有发送调用只记录日志
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	AppURL   string
}

// SMTPSender 基于 SMTP 的邮件发送器
// 实现引擎的 EmailSender 契约,返回值表示"已接受投递"
type SMTPSender struct {
	cfg    SMTPConfig
	dialer *gomail.Dialer
	logger *logrus.Logger
}

// NewSMTPSender 创建 SMTP 邮件发送器
func NewSMTPSender(cfg SMTPConfig, logger *logrus.Logger) *SMTPSender {
	if logger == nil {
		logger = logrus.New()
	}
	s := &SMTPSender{cfg: cfg, logger: logger}
	if cfg.Host != "" {
		s.dialer = gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	}
	return s
}

// Enabled 发送器是否配置了 SMTP 主机
func (s *SMTPSender) Enabled() bool {
	return s.dialer != nil
}

// SendApprovalRequestEmail 发送审批请求通知邮件
func (s *SMTPSender) SendApprovalRequestEmail(recipientEmail, recipientName, approverName, documentTitle, documentType, approvalID, requesterName string, priority engine.Priority) bool {
	subject := fmt.Sprintf("🔔 Approval Request: %s", documentTitle)
	body := s.requestBody(recipientName, documentTitle, documentType, approvalID, requesterName, priority)
	return s.send(recipientEmail, subject, body, "approval_request")
}

// SendApprovalApprovedEmail 发送审批通过通知邮件
func (s *SMTPSender) SendApprovalApprovedEmail(recipientEmail, recipientName, documentTitle, approverName, approvalComment string) bool {
	subject := fmt.Sprintf("✅ Approval Approved: %s", documentTitle)
	body := s.decisionBody(decisionParams{
		recipientName: recipientName,
		documentTitle: documentTitle,
		approverName:  approverName,
		comment:       approvalComment,
		heading:       "✅ Approved",
		headingColor:  "#28a745",
		lead:          "Good news! Your document has been <strong>approved</strong>.",
		commentLabel:  "Comment",
		closing:       "Your document has successfully passed the approval stage and is now ready for the next steps.",
	})
	return s.send(recipientEmail, subject, body, "approval_approved")
}

// SendApprovalRejectedEmail 发送审批拒绝通知邮件
func (s *SMTPSender) SendApprovalRejectedEmail(recipientEmail, recipientName, documentTitle, approverName, rejectionReason string) bool {
	subject := fmt.Sprintf("❌ Approval Rejected: %s", documentTitle)
	body := s.decisionBody(decisionParams{
		recipientName: recipientName,
		documentTitle: documentTitle,
		approverName:  approverName,
		comment:       rejectionReason,
		heading:       "❌ Rejected",
		headingColor:  "#dc3545",
		lead:          "Unfortunately, your document has been <strong>rejected</strong>.",
		commentLabel:  "Reason",
		closing:       "Please review the feedback above, make the necessary changes and resubmit the document for approval.",
	})
	return s.send(recipientEmail, subject, body, "approval_rejected")
}

// send 投递单封邮件,失败只记录日志不向上传播
func (s *SMTPSender) send(recipientEmail, subject, htmlBody, notificationType string) bool {
	if recipientEmail == "" {
		return false
	}
	if s.dialer == nil {
		s.logger.WithFields(logrus.Fields{
			"recipient": recipientEmail,
			"subject":   subject,
			"type":      notificationType,
		}).Debug("SMTP disabled, skipping email delivery")
		return false
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", s.cfg.From)
	msg.SetHeader("To", recipientEmail)
	msg.SetHeader("Subject", subject)
	msg.SetHeader("X-Notification-Type", notificationType)
	msg.SetBody("text/plain", "This email requires an HTML-capable client.")
	msg.AddAlternative("text/html", htmlBody)

	if err := s.dialer.DialAndSend(msg); err != nil {
		s.logger.WithFields(logrus.Fields{
			"recipient": recipientEmail,
			"type":      notificationType,
			"error":     err.Error(),
		}).Error("Failed to send email")
		return false
	}

	s.logger.WithFields(logrus.Fields{
		"recipient": recipientEmail,
		"type":      notificationType,
	}).Info("Email sent successfully")
	return true
}

func priorityColor(p engine.Priority) string {
	switch p {
	case engine.PriorityUrgent:
		return "#dc3545"
	case engine.PriorityHigh:
		return "#fd7e14"
	default:
		return "#0056b3"
	}
}

// requestBody 审批请求邮件正文,包含可点击的快捷审批链接
func (s *SMTPSender) requestBody(recipientName, documentTitle, documentType, approvalID, requesterName string, priority engine.Priority) string {
	approveURL := fmt.Sprintf("%s/approvals/%s/approve", s.cfg.AppURL, approvalID)
	rejectURL := fmt.Sprintf("%s/approvals/%s/reject", s.cfg.AppURL, approvalID)
	viewURL := fmt.Sprintf("%s/approvals/%s", s.cfg.AppURL, approvalID)

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; line-height: 1.6; color: #333;">
  <div style="max-width: 600px; margin: 0 auto; background-color: #f5f5f5; padding: 20px; border-radius: 8px;">
    <div style="background: linear-gradient(135deg, #667eea 0%%, #764ba2 100%%); color: white; padding: 20px; border-radius: 8px 8px 0 0; text-align: center;">
      <h1 style="margin: 0;">📋 Approval Request</h1>
    </div>
    <div style="background-color: white; padding: 20px;">
      <p>Hi <strong>%s</strong>,</p>
      <p>You have received a new approval request from <strong>%s</strong>.</p>
      <div style="display: inline-block; padding: 4px 12px; border-radius: 4px; color: white; background-color: %s;">Priority: %s</div>
      <div style="background-color: #f8f9fa; border-left: 4px solid #667eea; padding: 12px; margin: 16px 0;">
        <strong>Document Details:</strong>
        <table style="width: 100%%; margin-top: 8px;">
          <tr><td style="font-weight: bold; color: #667eea; width: 30%%;">Document Type:</td><td>%s</td></tr>
          <tr><td style="font-weight: bold; color: #667eea;">Document Title:</td><td><strong>%s</strong></td></tr>
          <tr><td style="font-weight: bold; color: #667eea;">Requested By:</td><td>%s</td></tr>
          <tr><td style="font-weight: bold; color: #667eea;">Request Date:</td><td>%s</td></tr>
        </table>
      </div>
      <p>Please review the document and take action:</p>
      <div style="text-align: center; margin: 24px 0;">
        <a href="%s" style="display: inline-block; padding: 10px 24px; margin: 4px; border-radius: 4px; text-decoration: none; color: white; background-color: #28a745;">✓ APPROVE</a>
        <a href="%s" style="display: inline-block; padding: 10px 24px; margin: 4px; border-radius: 4px; text-decoration: none; color: white; background-color: #dc3545;">✗ REJECT</a>
        <a href="%s" style="display: inline-block; padding: 10px 24px; margin: 4px; border-radius: 4px; text-decoration: none; color: white; background-color: #0056b3;">📄 VIEW DETAILS</a>
      </div>
    </div>
    <div style="text-align: center; color: #999; font-size: 12px; padding: 12px;">
      <p>This is an automated notification. Please do not reply to this email.</p>
      <p>Request ID: %s</p>
    </div>
  </div>
</body>
</html>`,
		html.EscapeString(recipientName),
		html.EscapeString(requesterName),
		priorityColor(priority),
		html.EscapeString(string(priority)),
		html.EscapeString(documentType),
		html.EscapeString(documentTitle),
		html.EscapeString(requesterName),
		time.Now().Format("January 2, 2006 at 3:04 PM"),
		approveURL, rejectURL, viewURL,
		html.EscapeString(approvalID))
}

type decisionParams struct {
	recipientName string
	documentTitle string
	approverName  string
	comment       string
	heading       string
	headingColor  string
	lead          string
	commentLabel  string
	closing       string
}

// decisionBody 审批结果邮件正文,通过/拒绝共用一套排版
func (s *SMTPSender) decisionBody(p decisionParams) string {
	commentBlock := ""
	if p.comment != "" {
		commentBlock = fmt.Sprintf(`<p><strong>%s:</strong> %s</p>`,
			p.commentLabel, html.EscapeString(p.comment))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; line-height: 1.6; color: #333;">
  <div style="max-width: 600px; margin: 0 auto; background-color: #f5f5f5; padding: 20px; border-radius: 8px;">
    <div style="background-color: %s; color: white; padding: 20px; border-radius: 8px 8px 0 0; text-align: center;">
      <h1 style="margin: 0;">%s</h1>
    </div>
    <div style="background-color: white; padding: 20px;">
      <p>Hi <strong>%s</strong>,</p>
      <p>%s</p>
      <div style="background-color: #f8f9fa; border-left: 4px solid %s; padding: 12px; margin: 16px 0;">
        <p><strong>Document:</strong> %s</p>
        <p><strong>Reviewed by:</strong> %s</p>
        %s
      </div>
      <p>%s</p>
    </div>
    <div style="text-align: center; color: #999; font-size: 12px; padding: 12px;">
      <p>This is an automated notification. Please do not reply to this email.</p>
    </div>
  </div>
</body>
</html>`,
		p.headingColor,
		p.heading,
		html.EscapeString(p.recipientName),
		p.lead,
		p.headingColor,
		html.EscapeString(p.documentTitle),
		html.EscapeString(p.approverName),
		commentBlock,
		p.closing)
}
