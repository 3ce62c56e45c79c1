package repository

import (
	"github.com/clmops/approval-engine/internal/model"
	"gorm.io/gorm"
)

// StateHistoryRepository 状态历史仓储接口
type StateHistoryRepository interface {
	Save(history *model.StateHistoryModel) error
	FindByRequest(requestID string) ([]*model.StateHistoryModel, error)
}

// stateHistoryRepository 状态历史仓储实现
type stateHistoryRepository struct {
	db *gorm.DB
}

// NewStateHistoryRepository 创建状态历史仓储
func NewStateHistoryRepository(db *gorm.DB) StateHistoryRepository {
	return &stateHistoryRepository{db: db}
}

// Save 保存状态历史
func (r *stateHistoryRepository) Save(history *model.StateHistoryModel) error {
	return r.db.Save(history).Error
}

// FindByRequest 查找请求的状态变更历史,按时间升序
func (r *stateHistoryRepository) FindByRequest(requestID string) ([]*model.StateHistoryModel, error) {
	var histories []*model.StateHistoryModel
	err := r.db.Where("request_id = ?", requestID).
		Order("created_at ASC").
		Find(&histories).Error
	return histories, err
}
