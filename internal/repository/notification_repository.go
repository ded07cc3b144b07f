package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/usra-dev/usra-api/internal/models"
)

const notificationColumns = `id, user_id, title, message, type, is_read, created_at, updated_at`

// NotificationRepository persists the per-user notification sink.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a single notification row.
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	prepareNotification(notification)
	const query = `INSERT INTO notifications (id, user_id, title, message, type, is_read, created_at, updated_at)
	VALUES (:id, :user_id, :title, :message, :type, :is_read, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, notification); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// GetByID fetches a notification by identifier.
func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`
	var notification models.Notification
	if err := r.db.GetContext(ctx, &notification, query, id); err != nil {
		return nil, err
	}
	return &notification, nil
}

// List returns a user's notifications newest first with the total count.
func (r *NotificationRepository) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	conditions := []string{"user_id = $1"}
	args := []interface{}{filter.UserID}

	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.IsRead != nil {
		args = append(args, *filter.IsRead)
		conditions = append(conditions, fmt.Sprintf("is_read = $%d", len(args)))
	}

	where := " WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(1) FROM notifications"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	query := `SELECT ` + notificationColumns + ` FROM notifications` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize)

	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, total, nil
}

// CountUnread returns the number of unread notifications for a user.
func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(1) FROM notifications WHERE user_id = $1 AND is_read = FALSE`, userID); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead flips the read flag on one notification.
func (r *NotificationRepository) MarkRead(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE, updated_at = $1 WHERE id = $2`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return requireRows(res)
}

// MarkAllRead flips the read flag on every notification of a user.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE, updated_at = $1 WHERE user_id = $2 AND is_read = FALSE`,
		time.Now().UTC(), userID); err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}

// Delete removes one notification.
func (r *NotificationRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	return requireRows(res)
}

// DeleteAll removes every notification of a user.
func (r *NotificationRepository) DeleteAll(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete all notifications: %w", err)
	}
	return nil
}

// insertNotificationsTx writes notification rows inside an open workflow
// transaction so the fan-out commits or rolls back with the enrollment
// mutation it accompanies.
func insertNotificationsTx(ctx context.Context, tx *sqlx.Tx, notifications []models.Notification) error {
	const query = `INSERT INTO notifications (id, user_id, title, message, type, is_read, created_at, updated_at)
	VALUES (:id, :user_id, :title, :message, :type, :is_read, :created_at, :updated_at)`
	for i := range notifications {
		prepareNotification(&notifications[i])
		if _, err := tx.NamedExecContext(ctx, query, notifications[i]); err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}
	}
	return nil
}

func requireRows(res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check affected rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func prepareNotification(n *models.Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = now
}
