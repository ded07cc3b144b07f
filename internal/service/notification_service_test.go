package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usra-dev/usra-api/internal/models"
	appErrors "github.com/usra-dev/usra-api/pkg/errors"
)

type notificationStoreStub struct {
	notifications map[string]*models.Notification
	seq           int
	countCalls    int
}

func newNotificationStoreStub() *notificationStoreStub {
	return &notificationStoreStub{notifications: make(map[string]*models.Notification)}
}

func (s *notificationStoreStub) Create(ctx context.Context, notification *models.Notification) error {
	s.seq++
	notification.ID = fmt.Sprintf("notif-%d", s.seq)
	copy := *notification
	s.notifications[notification.ID] = &copy
	return nil
}

func (s *notificationStoreStub) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	if n, ok := s.notifications[id]; ok {
		copy := *n
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *notificationStoreStub) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	result := make([]models.Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		if n.UserID != filter.UserID {
			continue
		}
		if filter.IsRead != nil && n.IsRead != *filter.IsRead {
			continue
		}
		result = append(result, *n)
	}
	return result, len(result), nil
}

func (s *notificationStoreStub) CountUnread(ctx context.Context, userID string) (int, error) {
	s.countCalls++
	count := 0
	for _, n := range s.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (s *notificationStoreStub) MarkRead(ctx context.Context, id string) error {
	if n, ok := s.notifications[id]; ok {
		n.IsRead = true
		return nil
	}
	return sql.ErrNoRows
}

func (s *notificationStoreStub) MarkAllRead(ctx context.Context, userID string) error {
	for _, n := range s.notifications {
		if n.UserID == userID {
			n.IsRead = true
		}
	}
	return nil
}

func (s *notificationStoreStub) Delete(ctx context.Context, id string) error {
	if _, ok := s.notifications[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.notifications, id)
	return nil
}

func (s *notificationStoreStub) DeleteAll(ctx context.Context, userID string) error {
	for id, n := range s.notifications {
		if n.UserID == userID {
			delete(s.notifications, id)
		}
	}
	return nil
}

type cacheStub struct {
	values  map[string]int
	deletes []string
}

func newCacheStub() *cacheStub {
	return &cacheStub{values: make(map[string]int)}
}

func (c *cacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	value, ok := c.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	if p, ok := dest.(*int); ok {
		*p = value
	}
	return nil
}

func (c *cacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if v, ok := value.(int); ok {
		c.values[key] = v
	}
	return nil
}

func (c *cacheStub) Delete(ctx context.Context, key string) error {
	c.deletes = append(c.deletes, key)
	delete(c.values, key)
	return nil
}

func TestNotificationServiceUnreadCountCaching(t *testing.T) {
	store := newNotificationStoreStub()
	cache := newCacheStub()
	svc := NewNotificationService(store, cache, time.Minute, nil)
	ctx := context.Background()

	require.NoError(t, svc.Notify(ctx, &models.Notification{UserID: "u1", Title: "hi", Message: "there", Type: models.NotificationInfo}))
	require.NoError(t, svc.Notify(ctx, &models.Notification{UserID: "u1", Title: "hi again", Message: "there", Type: models.NotificationInfo}))

	count, err := svc.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 1, store.countCalls)

	// Second read is served from the cache.
	count, err = svc.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 1, store.countCalls)
}

func TestNotificationServiceWriteInvalidatesCache(t *testing.T) {
	store := newNotificationStoreStub()
	cache := newCacheStub()
	svc := NewNotificationService(store, cache, time.Minute, nil)
	ctx := context.Background()

	n := &models.Notification{UserID: "u1", Title: "hi", Message: "there", Type: models.NotificationInfo}
	require.NoError(t, svc.Notify(ctx, n))

	count, err := svc.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, svc.MarkRead(ctx, n.ID, "u1"))

	count, err = svc.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.NotEmpty(t, cache.deletes)
}

func TestNotificationServiceOwnershipGuards(t *testing.T) {
	store := newNotificationStoreStub()
	svc := NewNotificationService(store, nil, time.Minute, nil)
	ctx := context.Background()

	n := &models.Notification{UserID: "u1", Title: "hi", Message: "there", Type: models.NotificationInfo}
	require.NoError(t, svc.Notify(ctx, n))

	err := svc.MarkRead(ctx, n.ID, "u2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	err = svc.Delete(ctx, n.ID, "u2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Delete(ctx, n.ID, "u1"))
	err = svc.Delete(ctx, n.ID, "u1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestNotificationServiceMarkAllAndDeleteAll(t *testing.T) {
	store := newNotificationStoreStub()
	svc := NewNotificationService(store, nil, time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Notify(ctx, &models.Notification{UserID: "u1", Title: "t", Message: "m", Type: models.NotificationInfo}))
	}
	require.NoError(t, svc.Notify(ctx, &models.Notification{UserID: "u2", Title: "t", Message: "m", Type: models.NotificationInfo}))

	require.NoError(t, svc.MarkAllRead(ctx, "u1"))
	count, err := svc.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	require.NoError(t, svc.DeleteAll(ctx, "u1"))
	list, total, err := svc.List(ctx, models.NotificationFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, list)

	// The other user's feed is untouched.
	_, total, err = svc.List(ctx, models.NotificationFilter{UserID: "u2"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestNotificationServiceListRequiresUser(t *testing.T) {
	svc := NewNotificationService(newNotificationStoreStub(), nil, time.Minute, nil)

	_, _, err := svc.List(context.Background(), models.NotificationFilter{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
