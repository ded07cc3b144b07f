package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/usra-dev/usra-api/internal/models"
	appErrors "github.com/usra-dev/usra-api/pkg/errors"
)

type notificationStore interface {
	Create(ctx context.Context, notification *models.Notification) error
	GetByID(ctx context.Context, id string) (*models.Notification, error)
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, userID string) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context, userID string) error
}

type notificationCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// NotificationService mediates per-user notification reads and the read/unread
// lifecycle. The unread count sits behind Redis since clients poll it; any
// write for a user invalidates that user's cached count.
type NotificationService struct {
	repo     notificationStore
	cache    notificationCache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewNotificationService constructs the service. A nil cache disables caching.
func NewNotificationService(repo notificationStore, cache notificationCache, cacheTTL time.Duration, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &NotificationService{repo: repo, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

func unreadCountKey(userID string) string {
	return fmt.Sprintf("notifications:unread:%s", userID)
}

// Notify stores a one-off notification outside the workflow transactions.
func (s *NotificationService) Notify(ctx context.Context, notification *models.Notification) error {
	if notification.UserID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "user_id is required")
	}
	if !models.ValidNotificationType(notification.Type) {
		notification.Type = models.NotificationInfo
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create notification")
	}
	s.invalidateUnread(ctx, notification.UserID)
	return nil
}

// List returns the caller's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	if filter.UserID == "" {
		return nil, 0, appErrors.ErrUnauthorized
	}
	notifications, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return notifications, total, nil
}

// UnreadCount returns the caller's unread total, served from cache when warm.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	if s.cache != nil {
		var cached int
		if err := s.cache.Get(ctx, unreadCountKey(userID), &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("unread count cache read failed", zap.Error(err))
		}
	}

	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count unread notifications")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, unreadCountKey(userID), count, s.cacheTTL); err != nil {
			s.logger.Warn("unread count cache write failed", zap.Error(err))
		}
	}
	return count, nil
}

// MarkRead flags one of the caller's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	notification, err := s.loadOwned(ctx, id, userID)
	if err != nil {
		return err
	}
	if notification.IsRead {
		return nil
	}
	if err := s.repo.MarkRead(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	s.invalidateUnread(ctx, userID)
	return nil
}

// MarkAllRead flags every unread notification of the caller as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	if err := s.repo.MarkAllRead(ctx, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}
	s.invalidateUnread(ctx, userID)
	return nil
}

// Delete removes one of the caller's notifications.
func (s *NotificationService) Delete(ctx context.Context, id, userID string) error {
	if _, err := s.loadOwned(ctx, id, userID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete notification")
	}
	s.invalidateUnread(ctx, userID)
	return nil
}

// DeleteAll clears the caller's notification feed.
func (s *NotificationService) DeleteAll(ctx context.Context, userID string) error {
	if err := s.repo.DeleteAll(ctx, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete notifications")
	}
	s.invalidateUnread(ctx, userID)
	return nil
}

func (s *NotificationService) loadOwned(ctx context.Context, id, userID string) (*models.Notification, error) {
	notification, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notification")
	}
	if notification.UserID != userID {
		return nil, appErrors.ErrForbidden
	}
	return notification, nil
}

func (s *NotificationService) invalidateUnread(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, unreadCountKey(userID)); err != nil {
		s.logger.Warn("unread count cache invalidation failed", zap.Error(err))
	}
}
