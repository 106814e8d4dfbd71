package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/justsurfingit/jobtrackr/internal/apperrors"
	"github.com/justsurfingit/jobtrackr/internal/logger"
	"github.com/justsurfingit/jobtrackr/internal/models"
	"github.com/justsurfingit/jobtrackr/internal/realtime"
)

const notificationsTable = "notifications"

type NotificationService struct {
	DB     *gorm.DB
	Broker realtime.Broker
	Logger logger.Interface
}

func NewNotificationService(db *gorm.DB, broker realtime.Broker, log logger.Interface) *NotificationService {
	return &NotificationService{DB: db, Broker: broker, Logger: log}
}

func (s *NotificationService) Create(ctx context.Context, userID, typ, title, message, link string) (*models.Notification, error) {
	if typ == "" {
		typ = models.NotificationInfo
	}
	n := &models.Notification{UserID: userID, Type: typ, Title: title, Message: message, Link: link}
	if err := s.DB.WithContext(ctx).Create(n).Error; err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	s.publish(ctx, realtime.EventInsert, userID, n)
	return n, nil
}

// publish is best effort; the row is already committed.
func (s *NotificationService) publish(ctx context.Context, typ, userID string, payload any) {
	if s.Broker == nil {
		return
	}
	ev, err := realtime.NewEvent(notificationsTable, typ, userID, payload)
	if err == nil {
		err = s.Broker.Publish(ctx, ev)
	}
	if err != nil {
		s.Logger.Warnw("failed to publish notification event", "user_id", userID, "type", typ, "error", err)
	}
}

func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := s.DB.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("read = ?", false)
	}
	var out []models.Notification
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return out, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ? AND read = ?", userID, false).Count(&n).Error
	return n, err
}

func (s *NotificationService) find(ctx context.Context, userID string, id uint) (*models.Notification, error) {
	var n models.Notification
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&n, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("notification not found")
		}
		return nil, err
	}
	return &n, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID string, id uint) (*models.Notification, error) {
	n, err := s.find(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if n.Read {
		return n, nil
	}
	now := time.Now().UTC()
	if err := s.DB.WithContext(ctx).Model(n).Updates(map[string]any{"read": true, "read_at": now}).Error; err != nil {
		return nil, fmt.Errorf("failed to mark notification read: %w", err)
	}
	n.Read = true
	n.ReadAt = &now
	s.publish(ctx, realtime.EventUpdate, userID, n)
	return n, nil
}

// MarkAllRead returns the number of notifications changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Updates(map[string]any{"read": true, "read_at": time.Now().UTC()})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		s.publish(ctx, realtime.EventUpdate, userID, map[string]any{"all_read": true})
	}
	return res.RowsAffected, nil
}

func (s *NotificationService) Delete(ctx context.Context, userID string, id uint) error {
	n, err := s.find(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.DB.WithContext(ctx).Delete(n).Error; err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	s.publish(ctx, realtime.EventDelete, userID, map[string]uint{"id": id})
	return nil
}

// Subscribe opens the user's realtime stream.
func (s *NotificationService) Subscribe(userID string) (<-chan realtime.Event, func()) {
	return s.Broker.Subscribe(userID)
}
