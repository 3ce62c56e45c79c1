package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clmops/approval-engine/internal/engine"
	"github.com/clmops/approval-engine/internal/model"
	"github.com/clmops/approval-engine/internal/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store 站内通知中心
// 实现引擎的 NotificationStore 契约,支持已读/未读跟踪与按类型统计
type Store struct {
	repo      repository.NotificationRepository
	retention time.Duration // 通知保留时长,CleanupExpired 之后被清理
}

// NewStore 创建通知中心
func NewStore(db *gorm.DB) *Store {
	return &Store{
		repo:      repository.NewNotificationRepository(db),
		retention: 30 * 24 * time.Hour,
	}
}

// CreateNotification 创建站内通知,返回通知 ID
func (s *Store) CreateNotification(ctx context.Context, userID, subject, notificationType, actionURL string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user ID is required")
	}
	if subject == "" {
		return "", fmt.Errorf("notification subject is required")
	}

	n := &model.NotificationModel{
		ID:        uuid.New().String(),
		UserID:    userID,
		Subject:   subject,
		Type:      notificationType,
		ActionURL: actionURL,
		Read:      false,
		CreatedAt: time.Now(),
	}
	if err := s.repo.Save(n); err != nil {
		return "", fmt.Errorf("failed to save notification: %w", err)
	}
	return n.ID, nil
}

// GetUserNotifications 获取用户通知中心视图,最新的在前
func (s *Store) GetUserNotifications(ctx context.Context, userID string) (*engine.UserNotifications, error) {
	models, err := s.repo.FindByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load notifications: %w", err)
	}

	notifications := make([]*engine.Notification, 0, len(models))
	unread := 0
	for _, nm := range models {
		if !nm.Read {
			unread++
		}
		notifications = append(notifications, toNotification(nm))
	}

	return &engine.UserNotifications{
		Total:         len(notifications),
		UnreadCount:   unread,
		Notifications: notifications,
	}, nil
}

// MarkAsRead 标记通知为已读
func (s *Store) MarkAsRead(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &engine.NotFoundError{Resource: "notification", ID: id}
		}
		return fmt.Errorf("failed to get notification: %w", err)
	}
	return s.repo.MarkAsRead(id, time.Now())
}

// GetStatistics 获取用户通知统计
func (s *Store) GetStatistics(ctx context.Context, userID string) (*engine.NotificationStatistics, error) {
	byType, err := s.repo.CountByType(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count notifications by type: %w", err)
	}

	var total int64
	for _, count := range byType {
		total += count
	}

	unread, err := s.repo.CountUnread(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count unread notifications: %w", err)
	}

	return &engine.NotificationStatistics{
		TotalNotifications: int(total),
		UnreadCount:        int(unread),
		ByType:             byType,
	}, nil
}

// CleanupExpired 清理超过保留期的通知,返回清理数量
func (s *Store) CleanupExpired() (int64, error) {
	return s.repo.DeleteOlderThan(time.Now().Add(-s.retention))
}

// toNotification 数据模型转契约快照
func toNotification(nm *model.NotificationModel) *engine.Notification {
	return &engine.Notification{
		ID:        nm.ID,
		UserID:    nm.UserID,
		Subject:   nm.Subject,
		Type:      nm.Type,
		ActionURL: nm.ActionURL,
		Read:      nm.Read,
		CreatedAt: nm.CreatedAt,
		ReadAt:    nm.ReadAt,
	}
}
