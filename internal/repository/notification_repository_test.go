package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/usra-dev/usra-api/internal/models"
)

func newNotificationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestNotificationRepositoryCreateAssignsIdentity(t *testing.T) {
	db, mock, cleanup := newNotificationRepoMock(t)
	defer cleanup()

	repo := NewNotificationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notifications")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	notification := &models.Notification{
		UserID:  "user-1",
		Title:   "Request approved",
		Message: "Your group change was approved.",
		Type:    models.NotificationSuccess,
	}
	require.NoError(t, repo.Create(context.Background(), notification))
	require.NotEmpty(t, notification.ID)
	require.False(t, notification.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryListFiltersUnread(t *testing.T) {
	db, mock, cleanup := newNotificationRepoMock(t)
	defer cleanup()

	repo := NewNotificationRepository(db)
	unread := false
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(1) FROM notifications WHERE user_id = $1 AND is_read = $2")).
		WithArgs("user-1", false).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	rows := sqlmock.NewRows([]string{"id", "user_id", "title", "message", "type", "is_read", "created_at", "updated_at"}).
		AddRow("ntf-1", "user-1", "Swap accepted", "msg", "info", false, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM notifications WHERE user_id = $1 AND is_read = $2")).
		WithArgs("user-1", false).
		WillReturnRows(rows)

	notifications, total, err := repo.List(context.Background(), models.NotificationFilter{
		UserID: "user-1",
		IsRead: &unread,
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, notifications, 1)
	require.Equal(t, "ntf-1", notifications[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryCountUnread(t *testing.T) {
	db, mock, cleanup := newNotificationRepoMock(t)
	defer cleanup()

	repo := NewNotificationRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(1) FROM notifications WHERE user_id = $1 AND is_read = FALSE")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.CountUnread(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, 4, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryMarkReadMissing(t *testing.T) {
	db, mock, cleanup := newNotificationRepoMock(t)
	defer cleanup()

	repo := NewNotificationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET is_read = TRUE")).
		WithArgs(sqlmock.AnyArg(), "ntf-missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkRead(context.Background(), "ntf-missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newNotificationRepoMock(t)
	defer cleanup()

	repo := NewNotificationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM notifications WHERE id = $1")).
		WithArgs("ntf-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), "ntf-1"))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM notifications WHERE user_id = $1")).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	require.NoError(t, repo.DeleteAll(context.Background(), "user-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
