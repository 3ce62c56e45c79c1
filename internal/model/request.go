package model

import (
	"errors"
	"time"
)

// RequestModel 审批请求数据模型
// Entity 字段保存创建时刻的实体快照,之后不再随业务数据变化
type RequestModel struct {
	ID             string     `gorm:"primaryKey;type:varchar(64)"`
	RuleID         string     `gorm:"type:varchar(64);index"` // 匹配到的规则 ID,fail-open 时为空
	EntityID       string     `gorm:"type:varchar(64);not null;index"`
	EntityType     string     `gorm:"type:varchar(64);not null;index"`
	Entity         []byte     `gorm:"type:jsonb;not null"` // 实体快照
	RequesterID    string     `gorm:"type:varchar(64);not null;index"`
	RequesterEmail string     `gorm:"type:varchar(128);not null"`
	RequesterName  string     `gorm:"type:varchar(128)"`
	ApproverID     string     `gorm:"type:varchar(64);not null;index"` // 当前阶段审批人
	ApproverEmail  string     `gorm:"type:varchar(128);not null"`
	ApproverName   string     `gorm:"type:varchar(128)"`
	DocumentTitle  string     `gorm:"type:varchar(256);not null"`
	Priority       string     `gorm:"type:varchar(16);not null;default:'normal'"`
	State          string     `gorm:"type:varchar(32);not null;index"` // pending/approved/rejected
	Escalated      bool       `gorm:"not null;default:false;index"`    // 当前阶段是否已升级
	CurrentLevel   int        `gorm:"type:int;not null;default:1"`     // 多级审批的当前阶段(从 1 开始)
	TotalLevels    int        `gorm:"type:int;not null;default:1"`     // 规则要求的审批级数
	Comment        string     `gorm:"type:text"`                       // 终态时的审批意见或拒绝原因
	CreatedAt      time.Time  `gorm:"not null;index"`
	UpdatedAt      time.Time  `gorm:"not null"`
	ExpiryDate     time.Time  `gorm:"not null;index"` // 当前阶段的超时期限
	DecidedAt      *time.Time `gorm:"index"`          // 终态时间
}

// TableName 指定表名
func (RequestModel) TableName() string {
	return "approval_requests"
}

// Validate 验证请求模型
func (rm *RequestModel) Validate() error {
	if rm.ID == "" {
		return errors.New("request ID is required")
	}
	if rm.EntityID == "" {
		return errors.New("entity ID is required")
	}
	if rm.EntityType == "" {
		return errors.New("entity type is required")
	}
	if rm.State == "" {
		return errors.New("request state is required")
	}
	if rm.RequesterID == "" {
		return errors.New("requester ID is required")
	}
	if rm.ApproverID == "" {
		return errors.New("approver ID is required")
	}
	return nil
}
