package repository

import (
	"github.com/clmops/approval-engine/internal/model"
	"gorm.io/gorm"
)

// EventRepository 通知事件仓储接口
type EventRepository interface {
	Save(event *model.EventModel) error
	FindByID(id string) (*model.EventModel, error)
	FindByRequest(requestID string) ([]*model.EventModel, error)
	FindPending(limit int) ([]*model.EventModel, error)
}

// eventRepository 通知事件仓储实现
type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository 创建事件仓储
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

// Save 保存事件
func (r *eventRepository) Save(event *model.EventModel) error {
	return r.db.Save(event).Error
}

// FindByID 根据 ID 查找事件
func (r *eventRepository) FindByID(id string) (*model.EventModel, error) {
	var event model.EventModel
	if err := r.db.Where("id = ?", id).First(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

// FindByRequest 查找请求的所有事件
func (r *eventRepository) FindByRequest(requestID string) ([]*model.EventModel, error) {
	var events []*model.EventModel
	err := r.db.Where("request_id = ?", requestID).
		Order("created_at ASC").
		Find(&events).Error
	return events, err
}

// FindPending 查找待投递事件(进程重启后补投用)
func (r *eventRepository) FindPending(limit int) ([]*model.EventModel, error) {
	var events []*model.EventModel
	query := r.db.Where("status = ?", "pending").Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&events).Error
	return events, err
}
