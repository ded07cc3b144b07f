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

// TeacherRepository persists teacher records and their section/group assignments.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs the repository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// CreateWithUser inserts the backing user account and the teacher row in one
// transaction.
func (r *TeacherRepository) CreateWithUser(ctx context.Context, user *models.User, teacher *models.Teacher) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create teacher: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := insertUserTx(ctx, tx, user); err != nil {
		return err
	}

	if teacher.ID == "" {
		teacher.ID = uuid.NewString()
	}
	teacher.UserID = user.ID
	now := time.Now().UTC()
	teacher.CreatedAt = now
	teacher.UpdatedAt = now

	const query = `INSERT INTO teachers (id, user_id, first_name, last_name, grade, created_at, updated_at)
	VALUES (:id, :user_id, :first_name, :last_name, :grade, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, teacher); err != nil {
		return fmt.Errorf("create teacher: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create teacher: %w", err)
	}
	return nil
}

// GetByID fetches a teacher by identifier.
func (r *TeacherRepository) GetByID(ctx context.Context, id string) (*models.Teacher, error) {
	const query = `SELECT id, user_id, first_name, last_name, grade, created_at, updated_at
	FROM teachers WHERE id = $1`
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// List returns teachers with an optional name search.
func (r *TeacherRepository) List(ctx context.Context, search string, page, pageSize int) ([]models.Teacher, int, error) {
	where := ""
	args := []interface{}{}
	if search != "" {
		args = append(args, "%"+strings.TrimSpace(search)+"%")
		where = " WHERE first_name ILIKE $1 OR last_name ILIKE $1"
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(1) FROM teachers"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count teachers: %w", err)
	}

	page, pageSize = normalizePage(page, pageSize)
	query := `SELECT id, user_id, first_name, last_name, grade, created_at, updated_at
	FROM teachers` + where + fmt.Sprintf(" ORDER BY last_name, first_name LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize)

	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list teachers: %w", err)
	}
	return teachers, total, nil
}

// Update persists a teacher's personal fields.
func (r *TeacherRepository) Update(ctx context.Context, teacher *models.Teacher) error {
	teacher.UpdatedAt = time.Now().UTC()
	const query = `UPDATE teachers SET first_name = :first_name, last_name = :last_name, grade = :grade,
	 updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, teacher)
	if err != nil {
		return fmt.Errorf("update teacher: %w", err)
	}
	return requireRows(res)
}

// Delete removes the teacher, its assignments and the backing user account.
func (r *TeacherRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete teacher: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var userID string
	if err := tx.GetContext(ctx, &userID, `SELECT user_id FROM teachers WHERE id = $1`, id); err != nil {
		return err
	}
	for _, q := range []string{
		`DELETE FROM teacher_groups WHERE teacher_id = $1`,
		`DELETE FROM teacher_sections WHERE teacher_id = $1`,
		`DELETE FROM teachers WHERE id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("delete teacher: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID); err != nil {
		return fmt.Errorf("delete teacher user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete teacher: %w", err)
	}
	return nil
}

// AssignSection links a teacher to a section. Duplicate links are ignored.
func (r *TeacherRepository) AssignSection(ctx context.Context, teacherID, sectionID string) error {
	const query = `INSERT INTO teacher_sections (teacher_id, section_id) VALUES ($1, $2)
	ON CONFLICT (teacher_id, section_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, teacherID, sectionID); err != nil {
		return fmt.Errorf("assign teacher section: %w", err)
	}
	return nil
}

// AssignGroup links a teacher to a group. Duplicate links are ignored.
func (r *TeacherRepository) AssignGroup(ctx context.Context, teacherID, groupID string) error {
	const query = `INSERT INTO teacher_groups (teacher_id, group_id) VALUES ($1, $2)
	ON CONFLICT (teacher_id, group_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, teacherID, groupID); err != nil {
		return fmt.Errorf("assign teacher group: %w", err)
	}
	return nil
}

// UnassignSection removes a teacher/section link.
func (r *TeacherRepository) UnassignSection(ctx context.Context, teacherID, sectionID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM teacher_sections WHERE teacher_id = $1 AND section_id = $2`, teacherID, sectionID)
	if err != nil {
		return fmt.Errorf("unassign teacher section: %w", err)
	}
	return requireRows(res)
}

// UnassignGroup removes a teacher/group link.
func (r *TeacherRepository) UnassignGroup(ctx context.Context, teacherID, groupID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM teacher_groups WHERE teacher_id = $1 AND group_id = $2`, teacherID, groupID)
	if err != nil {
		return fmt.Errorf("unassign teacher group: %w", err)
	}
	return requireRows(res)
}

// ListUserIDsByGroup returns the user accounts of every teacher assigned to a
// group. Used to notify teaching staff after a group move.
func (r *TeacherRepository) ListUserIDsByGroup(ctx context.Context, groupID string) ([]string, error) {
	const query = `SELECT t.user_id FROM teachers t
	JOIN teacher_groups tg ON tg.teacher_id = t.id
	WHERE tg.group_id = $1`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, groupID); err != nil {
		return nil, fmt.Errorf("list teacher users by group: %w", err)
	}
	return ids, nil
}

// ListUserIDsBySection returns the user accounts of every teacher assigned to
// a section.
func (r *TeacherRepository) ListUserIDsBySection(ctx context.Context, sectionID string) ([]string, error) {
	const query = `SELECT t.user_id FROM teachers t
	JOIN teacher_sections ts ON ts.teacher_id = t.id
	WHERE ts.section_id = $1`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, sectionID); err != nil {
		return nil, fmt.Errorf("list teacher users by section: %w", err)
	}
	return ids, nil
}
