package repository

import (
	"github.com/clmops/approval-engine/internal/model"
	"gorm.io/gorm"
)

// RuleRepository 审批规则仓储接口
type RuleRepository interface {
	Save(rule *model.RuleModel) error
	FindByID(id string) (*model.RuleModel, error)
	FindActiveByEntityType(entityType string) ([]*model.RuleModel, error)
	FindAll() ([]*model.RuleModel, error)
	Count() (int64, error)
	Deactivate(id string) error
}

// ruleRepository 审批规则仓储实现
type ruleRepository struct {
	db *gorm.DB
}

// NewRuleRepository 创建规则仓储
func NewRuleRepository(db *gorm.DB) RuleRepository {
	return &ruleRepository{db: db}
}

// Save 保存规则
func (r *ruleRepository) Save(rule *model.RuleModel) error {
	return r.db.Save(rule).Error
}

// FindByID 根据 ID 查找规则
func (r *ruleRepository) FindByID(id string) (*model.RuleModel, error) {
	var rule model.RuleModel
	if err := r.db.Where("id = ?", id).First(&rule).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

// FindActiveByEntityType 查找指定实体类型的所有启用规则
// 排序: 优先级降序,再按创建时间升序,保证匹配顺序确定
func (r *ruleRepository) FindActiveByEntityType(entityType string) ([]*model.RuleModel, error) {
	var rules []*model.RuleModel
	err := r.db.Where("entity_type = ? AND is_active = ?", entityType, true).
		Order("priority DESC").
		Order("created_at ASC").
		Find(&rules).Error
	return rules, err
}

// FindAll 查找所有规则
func (r *ruleRepository) FindAll() ([]*model.RuleModel, error) {
	var rules []*model.RuleModel
	err := r.db.Order("created_at ASC").Find(&rules).Error
	return rules, err
}

// Count 统计规则数量
func (r *ruleRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&model.RuleModel{}).Count(&count).Error
	return count, err
}

// Deactivate 停用规则(软删除,已被请求引用的规则不做物理删除)
func (r *ruleRepository) Deactivate(id string) error {
	return r.db.Model(&model.RuleModel{}).Where("id = ?", id).
		Update("is_active", false).Error
}
