package model

import (
	"errors"
	"time"
)

// NotificationModel 站内通知数据模型
type NotificationModel struct {
	ID        string     `gorm:"primaryKey;type:varchar(64)"`
	UserID    string     `gorm:"type:varchar(64);not null;index"`
	Subject   string     `gorm:"type:varchar(256);not null"`
	Type      string     `gorm:"type:varchar(32);not null;index"` // approval_request/approval_approved/approval_rejected/approval_escalated
	ActionURL string     `gorm:"type:varchar(512)"`
	Read      bool       `gorm:"not null;default:false;index"`
	ReadAt    *time.Time `gorm:""`
	CreatedAt time.Time  `gorm:"not null;index"`
}

// TableName 指定表名
func (NotificationModel) TableName() string {
	return "notifications"
}

// Validate 验证通知模型
func (nm *NotificationModel) Validate() error {
	if nm.ID == "" {
		return errors.New("notification ID is required")
	}
	if nm.UserID == "" {
		return errors.New("user ID is required")
	}
	if nm.Subject == "" {
		return errors.New("notification subject is required")
	}
	if nm.Type == "" {
		return errors.New("notification type is required")
	}
	return nil
}
