package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// NotificationFilter narrows List. Limit defaults to 20.
type NotificationFilter struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}

// NotificationService stores user notifications and pushes the unread count
// to user/{id}/notifications after every change.
type NotificationService struct {
	db        *Database
	publisher Publisher
	log       zerolog.Logger
}

func NewNotificationService(db *Database, publisher Publisher, log zerolog.Logger) *NotificationService {
	return &NotificationService{
		db:        db,
		publisher: publisher,
		log:       log.With().Str("component", "notifications").Logger(),
	}
}

var validNotificationTypes = map[string]bool{
	NotificationTypePriceAlert:  true,
	NotificationTypeSystem:      true,
	NotificationTypeNews:        true,
	NotificationTypeTransaction: true,
}

func (s *NotificationService) Create(ctx context.Context, n *Notification) error {
	v := &ValidationError{}
	if n.UserID == 0 {
		v.add("userId", "is required")
	}
	if !validNotificationTypes[n.Type] {
		v.add("type", fmt.Sprintf("must be one of price_alert, system, news, transaction; got %q", n.Type))
	}
	if n.Title == "" {
		v.add("title", "is required")
	}
	if err := v.orNil(); err != nil {
		return err
	}

	n.IsRead = false
	n.ReadAt = nil
	if err := s.db.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	s.publishUnreadCount(ctx, n.UserID)
	return nil
}

func (s *NotificationService) Get(ctx context.Context, userID, id uint) (*Notification, error) {
	var n Notification
	err := s.db.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("notification", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load notification %d: %w", id, err)
	}
	return &n, nil
}

// List returns the newest notifications first.
func (s *NotificationService) List(ctx context.Context, userID uint, filter NotificationFilter) ([]Notification, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	query := s.db.db.WithContext(ctx).Where("user_id = ?", userID)
	if filter.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var notifications []Notification
	result := query.Order("created_at DESC").Order("id DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&notifications)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", result.Error)
	}
	return notifications, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := s.db.db.WithContext(ctx).Model(&Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// MarkAsRead sets IsRead and ReadAt in one statement. Marking an already read
// notification keeps its original ReadAt.
func (s *NotificationService) MarkAsRead(ctx context.Context, userID, id uint) (*Notification, error) {
	n, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if n.IsRead {
		return n, nil
	}

	now := time.Now().UTC()
	err = s.db.db.WithContext(ctx).Model(n).Updates(map[string]interface{}{
		"is_read": true,
		"read_at": now,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to mark notification %d as read: %w", id, err)
	}
	n.IsRead = true
	n.ReadAt = &now

	s.publishUnreadCount(ctx, userID)
	return n, nil
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uint) (int64, error) {
	result := s.db.db.WithContext(ctx).Model(&Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark notifications as read: %w", result.Error)
	}

	s.publishUnreadCount(ctx, userID)
	return result.RowsAffected, nil
}

func (s *NotificationService) Delete(ctx context.Context, userID, id uint) error {
	result := s.db.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&Notification{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete notification %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return notFound("notification", id)
	}

	s.publishUnreadCount(ctx, userID)
	return nil
}

// DeleteAll removes every notification of the user, or only the read ones.
func (s *NotificationService) DeleteAll(ctx context.Context, userID uint, readOnly bool) (int64, error) {
	query := s.db.db.WithContext(ctx).Where("user_id = ?", userID)
	if readOnly {
		query = query.Where("is_read = ?", true)
	}
	result := query.Delete(&Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete notifications: %w", result.Error)
	}

	s.publishUnreadCount(ctx, userID)
	return result.RowsAffected, nil
}

func (s *NotificationService) publishUnreadCount(ctx context.Context, userID uint) {
	count, err := s.UnreadCount(ctx, userID)
	if err != nil {
		s.log.Warn().Err(err).Uint("user_id", userID).Msg("unread count unavailable, skipping publish")
		return
	}
	payload, err := json.Marshal(map[string]int64{"unread_count": count})
	if err != nil {
		s.log.Warn().Err(err).Uint("user_id", userID).Msg("failed to encode unread count")
		return
	}
	if err := s.publisher.Publish(ctx, UserNotificationsTopic(userID), string(payload)); err != nil {
		s.log.Warn().Err(err).Uint("user_id", userID).Msg("failed to publish unread count")
	}
}
