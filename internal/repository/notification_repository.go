package repository

import (
	"time"

	"github.com/clmops/approval-engine/internal/model"
	"gorm.io/gorm"
)

// NotificationRepository 站内通知仓储接口
type NotificationRepository interface {
	Save(n *model.NotificationModel) error
	FindByID(id string) (*model.NotificationModel, error)
	FindByUser(userID string) ([]*model.NotificationModel, error)
	CountUnread(userID string) (int64, error)
	CountByType(userID string) (map[string]int64, error)
	MarkAsRead(id string, at time.Time) error
	DeleteOlderThan(cutoff time.Time) (int64, error)
}

// notificationRepository 站内通知仓储实现
type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository 创建通知仓储
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// Save 保存通知
func (r *notificationRepository) Save(n *model.NotificationModel) error {
	return r.db.Save(n).Error
}

// FindByID 根据 ID 查找通知
func (r *notificationRepository) FindByID(id string) (*model.NotificationModel, error) {
	var n model.NotificationModel
	if err := r.db.Where("id = ?", id).First(&n).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

// FindByUser 查找用户的所有通知,最新的在前
func (r *notificationRepository) FindByUser(userID string) ([]*model.NotificationModel, error) {
	var notifications []*model.NotificationModel
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&notifications).Error
	return notifications, err
}

// CountUnread 统计用户未读通知数量
func (r *notificationRepository) CountUnread(userID string) (int64, error) {
	var count int64
	err := r.db.Model(&model.NotificationModel{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// CountByType 按类型统计用户通知数量
func (r *notificationRepository) CountByType(userID string) (map[string]int64, error) {
	var results []struct {
		Type  string
		Count int64
	}
	err := r.db.Model(&model.NotificationModel{}).
		Select("type, COUNT(*) as count").
		Where("user_id = ?", userID).
		Group("type").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(results))
	for _, res := range results {
		counts[res.Type] = res.Count
	}
	return counts, nil
}

// MarkAsRead 标记通知为已读
func (r *notificationRepository) MarkAsRead(id string, at time.Time) error {
	return r.db.Model(&model.NotificationModel{}).Where("id = ?", id).
		Updates(map[string]interface{}{"read": true, "read_at": at}).Error
}

// DeleteOlderThan 删除过期通知,返回删除数量
func (r *notificationRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res := r.db.Where("created_at < ?", cutoff).Delete(&model.NotificationModel{})
	return res.RowsAffected, res.Error
}
