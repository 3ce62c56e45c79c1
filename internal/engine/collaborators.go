package engine

import (
	"context"
	"time"
)

// EmailSender 邮件协作方契约
// 返回值表示"已接受投递",不保证最终送达
type EmailSender interface {
	SendApprovalRequestEmail(recipientEmail, recipientName, approverName, documentTitle, documentType, approvalID, requesterName string, priority Priority) bool
	SendApprovalApprovedEmail(recipientEmail, recipientName, documentTitle, approverName, approvalComment string) bool
	SendApprovalRejectedEmail(recipientEmail, recipientName, documentTitle, approverName, rejectionReason string) bool
}

// Notification 站内通知快照
type Notification struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Subject   string     `json:"subject"`
	Type      string     `json:"type"`
	ActionURL string     `json:"action_url"`
	Read      bool       `json:"read"`
	CreatedAt time.Time  `json:"created_at"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
}

// UserNotifications 用户通知中心视图
type UserNotifications struct {
	Total         int             `json:"total"`
	UnreadCount   int             `json:"unread_count"`
	Notifications []*Notification `json:"notifications"`
}

// NotificationStatistics 用户通知统计
type NotificationStatistics struct {
	TotalNotifications int              `json:"total_notifications"`
	UnreadCount        int              `json:"unread_count"`
	ByType             map[string]int64 `json:"by_type"`
}

// NotificationStore 站内通知协作方契约
type NotificationStore interface {
	CreateNotification(ctx context.Context, userID, subject, notificationType, actionURL string) (string, error)
	GetUserNotifications(ctx context.Context, userID string) (*UserNotifications, error)
	MarkAsRead(ctx context.Context, id string) error
	GetStatistics(ctx context.Context, userID string) (*NotificationStatistics, error)
}

// Broadcaster 实时推送协作方契约(WebSocket hub 实现)
type Broadcaster interface {
	Push(userID string, payload interface{})
}
