package model

import (
	"errors"
	"time"
)

// RuleModel 审批规则数据模型
type RuleModel struct {
	ID                  string    `gorm:"primaryKey;type:varchar(64)"`
	Name                string    `gorm:"type:varchar(128);not null"`
	EntityType          string    `gorm:"type:varchar(64);not null;index"` // 业务实体类型,如 contract
	Conditions          []byte    `gorm:"type:jsonb;not null"`             // 序列化后的匹配条件
	Approvers           []byte    `gorm:"type:jsonb;not null"`             // 序列化后的审批人链
	ApprovalLevels      int       `gorm:"type:int;not null"`
	TimeoutDays         int       `gorm:"type:int;not null"`
	Priority            int       `gorm:"type:int;not null;default:0;index"`
	EscalationEnabled   bool      `gorm:"not null;default:false"`
	NotificationEnabled bool      `gorm:"not null;default:true"`
	EscalationApprover  []byte    `gorm:"type:jsonb"` // 升级目标审批人(可选)
	IsActive            bool      `gorm:"not null;default:true;index"`
	CreatedAt           time.Time `gorm:"not null;index"`
	UpdatedAt           time.Time `gorm:"not null"`
}

// TableName 指定表名
func (RuleModel) TableName() string {
	return "approval_rules"
}

// Validate 验证规则模型
func (rm *RuleModel) Validate() error {
	if rm.ID == "" {
		return errors.New("rule ID is required")
	}
	if rm.Name == "" {
		return errors.New("rule name is required")
	}
	if rm.EntityType == "" {
		return errors.New("entity type is required")
	}
	if rm.ApprovalLevels < 1 {
		return errors.New("approval levels must be at least 1")
	}
	if len(rm.Conditions) == 0 {
		return errors.New("rule conditions are required")
	}
	if len(rm.Approvers) == 0 {
		return errors.New("rule approvers are required")
	}
	return nil
}
