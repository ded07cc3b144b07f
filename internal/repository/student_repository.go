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

const studentColumns = `id, user_id, matricule, first_name, last_name, birth_date, nationality, gender,
       disability, phone_number, observation, speciality_id, section_id, tutorial_group_id, lab_group_id,
       created_at, updated_at`

// StudentRepository persists student records and their enrollment anchors.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// CreateWithUser inserts the backing user account and the student row in one
// transaction. The caller supplies the ready bcrypt hash and role id.
func (r *StudentRepository) CreateWithUser(ctx context.Context, user *models.User, student *models.Student) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create student: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := insertUserTx(ctx, tx, user); err != nil {
		return err
	}

	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	student.UserID = user.ID
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now

	const query = `INSERT INTO students
	(id, user_id, matricule, first_name, last_name, birth_date, nationality, gender, disability,
	 phone_number, observation, speciality_id, section_id, tutorial_group_id, lab_group_id, created_at, updated_at)
	VALUES (:id, :user_id, :matricule, :first_name, :last_name, :birth_date, :nationality, :gender, :disability,
	 :phone_number, :observation, :speciality_id, :section_id, :tutorial_group_id, :lab_group_id, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create student: %w", err)
	}
	return nil
}

// GetByID fetches a student by identifier.
func (r *StudentRepository) GetByID(ctx context.Context, id string) (*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// GetByUserID fetches the student profile owned by a user account.
func (r *StudentRepository) GetByUserID(ctx context.Context, userID string) (*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE user_id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, userID); err != nil {
		return nil, err
	}
	return &student, nil
}

// List returns students matching the filter with the total count.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	conditions := make([]string, 0, 5)
	args := make([]interface{}, 0, 5)

	if filter.Search != "" {
		args = append(args, "%"+strings.TrimSpace(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(first_name ILIKE $%d OR last_name ILIKE $%d OR matricule ILIKE $%d)",
			len(args), len(args), len(args)))
	}
	if filter.SpecialityID != "" {
		args = append(args, filter.SpecialityID)
		conditions = append(conditions, fmt.Sprintf("speciality_id = $%d", len(args)))
	}
	if filter.SectionID != "" {
		args = append(args, filter.SectionID)
		conditions = append(conditions, fmt.Sprintf("section_id = $%d", len(args)))
	}
	if filter.TutorialGroupID != "" {
		args = append(args, filter.TutorialGroupID)
		conditions = append(conditions, fmt.Sprintf("tutorial_group_id = $%d", len(args)))
	}
	if filter.LabGroupID != "" {
		args = append(args, filter.LabGroupID)
		conditions = append(conditions, fmt.Sprintf("lab_group_id = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(1) FROM students"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	query := `SELECT ` + studentColumns + ` FROM students` + where +
		fmt.Sprintf(" ORDER BY last_name, first_name LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize)

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}
	return students, total, nil
}

// Update persists a student's personal fields.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET first_name = :first_name, last_name = :last_name, birth_date = :birth_date,
	 nationality = :nationality, gender = :gender, disability = :disability, phone_number = :phone_number,
	 observation = :observation, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, student)
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return requireRows(res)
}

// Delete removes the student and the backing user account in one transaction.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete student: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var userID string
	if err := tx.GetContext(ctx, &userID, `SELECT user_id FROM students WHERE id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID); err != nil {
		return fmt.Errorf("delete student user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete student: %w", err)
	}
	return nil
}
