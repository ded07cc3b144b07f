package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/usra-dev/usra-api/internal/models"
)

// StaffRepository persists administrative staff records.
type StaffRepository struct {
	db *sqlx.DB
}

// NewStaffRepository constructs the repository.
func NewStaffRepository(db *sqlx.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

// CreateWithUser inserts the backing user account and the staff row in one
// transaction.
func (r *StaffRepository) CreateWithUser(ctx context.Context, user *models.User, staff *models.Staff) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create staff: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := insertUserTx(ctx, tx, user); err != nil {
		return err
	}

	if staff.ID == "" {
		staff.ID = uuid.NewString()
	}
	staff.UserID = user.ID
	now := time.Now().UTC()
	staff.CreatedAt = now
	staff.UpdatedAt = now

	const query = `INSERT INTO staff (id, user_id, first_name, last_name, grade, created_at, updated_at)
	VALUES (:id, :user_id, :first_name, :last_name, :grade, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, staff); err != nil {
		return fmt.Errorf("create staff: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create staff: %w", err)
	}
	return nil
}

// GetByID fetches a staff member by identifier.
func (r *StaffRepository) GetByID(ctx context.Context, id string) (*models.Staff, error) {
	const query = `SELECT id, user_id, first_name, last_name, grade, created_at, updated_at
	FROM staff WHERE id = $1`
	var staff models.Staff
	if err := r.db.GetContext(ctx, &staff, query, id); err != nil {
		return nil, err
	}
	return &staff, nil
}

// List returns staff members with an optional name search.
func (r *StaffRepository) List(ctx context.Context, search string, page, pageSize int) ([]models.Staff, int, error) {
	where := ""
	args := []interface{}{}
	if search != "" {
		args = append(args, "%"+strings.TrimSpace(search)+"%")
		where = " WHERE first_name ILIKE $1 OR last_name ILIKE $1"
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(1) FROM staff"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count staff: %w", err)
	}

	page, pageSize = normalizePage(page, pageSize)
	query := `SELECT id, user_id, first_name, last_name, grade, created_at, updated_at
	FROM staff` + where + fmt.Sprintf(" ORDER BY last_name, first_name LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize)

	var members []models.Staff
	if err := r.db.SelectContext(ctx, &members, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list staff: %w", err)
	}
	return members, total, nil
}

// Update persists a staff member's personal fields.
func (r *StaffRepository) Update(ctx context.Context, staff *models.Staff) error {
	staff.UpdatedAt = time.Now().UTC()
	const query = `UPDATE staff SET first_name = :first_name, last_name = :last_name, grade = :grade,
	 updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, staff)
	if err != nil {
		return fmt.Errorf("update staff: %w", err)
	}
	return requireRows(res)
}

// Delete removes the staff member and the backing user account.
func (r *StaffRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete staff: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var userID string
	if err := tx.GetContext(ctx, &userID, `SELECT user_id FROM staff WHERE id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM staff WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete staff: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID); err != nil {
		return fmt.Errorf("delete staff user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete staff: %w", err)
	}
	return nil
}

// ListUserIDs returns every staff user account. Used to notify staff when a
// student appeals a rejected request.
func (r *StaffRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT user_id FROM staff`); err != nil {
		return nil, fmt.Errorf("list staff users: %w", err)
	}
	return ids, nil
}
