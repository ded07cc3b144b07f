package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/usra-dev/usra-api/internal/models"
)

// AcademicRepository persists the speciality / section / group hierarchy.
type AcademicRepository struct {
	db *sqlx.DB
}

// NewAcademicRepository constructs the repository.
func NewAcademicRepository(db *sqlx.DB) *AcademicRepository {
	return &AcademicRepository{db: db}
}

// --- specialities ---

func (r *AcademicRepository) CreateSpeciality(ctx context.Context, sp *models.Speciality) error {
	if sp.ID == "" {
		sp.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	sp.CreatedAt = now
	sp.UpdatedAt = now

	const query = `INSERT INTO specialities (id, name, education_level, created_at, updated_at)
	VALUES (:id, :name, :education_level, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, sp); err != nil {
		return fmt.Errorf("create speciality: %w", err)
	}
	return nil
}

func (r *AcademicRepository) GetSpeciality(ctx context.Context, id string) (*models.Speciality, error) {
	var sp models.Speciality
	if err := r.db.GetContext(ctx, &sp,
		`SELECT id, name, education_level, created_at, updated_at FROM specialities WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &sp, nil
}

func (r *AcademicRepository) ListSpecialities(ctx context.Context) ([]models.Speciality, error) {
	var sps []models.Speciality
	if err := r.db.SelectContext(ctx, &sps,
		`SELECT id, name, education_level, created_at, updated_at FROM specialities ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list specialities: %w", err)
	}
	return sps, nil
}

func (r *AcademicRepository) UpdateSpeciality(ctx context.Context, sp *models.Speciality) error {
	sp.UpdatedAt = time.Now().UTC()
	res, err := r.db.NamedExecContext(ctx,
		`UPDATE specialities SET name = :name, education_level = :education_level, updated_at = :updated_at WHERE id = :id`, sp)
	if err != nil {
		return fmt.Errorf("update speciality: %w", err)
	}
	return requireRows(res)
}

// CountSpecialityStudents returns how many students are enrolled under a
// speciality. A non-empty speciality must not be deleted.
func (r *AcademicRepository) CountSpecialityStudents(ctx context.Context, id string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(1) FROM students WHERE speciality_id = $1`, id); err != nil {
		return 0, fmt.Errorf("count speciality students: %w", err)
	}
	return count, nil
}

// DeleteSpeciality removes a speciality and its sections and groups.
func (r *AcademicRepository) DeleteSpeciality(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete speciality: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM groups WHERE section_id IN (SELECT id FROM sections WHERE speciality_id = $1)`, id); err != nil {
		return fmt.Errorf("delete speciality groups: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sections WHERE speciality_id = $1`, id); err != nil {
		return fmt.Errorf("delete speciality sections: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM specialities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete speciality: %w", err)
	}
	if err := requireRows(res); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete speciality: %w", err)
	}
	return nil
}

// --- sections ---

func (r *AcademicRepository) CreateSection(ctx context.Context, sec *models.Section) error {
	if sec.ID == "" {
		sec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	sec.CreatedAt = now
	sec.UpdatedAt = now

	const query = `INSERT INTO sections (id, speciality_id, name, max_capacity, created_at, updated_at)
	VALUES (:id, :speciality_id, :name, :max_capacity, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, sec); err != nil {
		return fmt.Errorf("create section: %w", err)
	}
	return nil
}

func (r *AcademicRepository) GetSection(ctx context.Context, id string) (*models.Section, error) {
	var sec models.Section
	if err := r.db.GetContext(ctx, &sec,
		`SELECT id, speciality_id, name, max_capacity, created_at, updated_at FROM sections WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &sec, nil
}

// ListSections returns sections, optionally scoped to a speciality.
func (r *AcademicRepository) ListSections(ctx context.Context, specialityID string) ([]models.Section, error) {
	query := `SELECT id, speciality_id, name, max_capacity, created_at, updated_at FROM sections`
	args := []interface{}{}
	if specialityID != "" {
		query += ` WHERE speciality_id = $1`
		args = append(args, specialityID)
	}
	query += ` ORDER BY name`

	var secs []models.Section
	if err := r.db.SelectContext(ctx, &secs, query, args...); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	return secs, nil
}

func (r *AcademicRepository) UpdateSection(ctx context.Context, sec *models.Section) error {
	sec.UpdatedAt = time.Now().UTC()
	res, err := r.db.NamedExecContext(ctx,
		`UPDATE sections SET name = :name, max_capacity = :max_capacity, updated_at = :updated_at WHERE id = :id`, sec)
	if err != nil {
		return fmt.Errorf("update section: %w", err)
	}
	return requireRows(res)
}

func (r *AcademicRepository) CountSectionStudents(ctx context.Context, id string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(1) FROM students WHERE section_id = $1`, id); err != nil {
		return 0, fmt.Errorf("count section students: %w", err)
	}
	return count, nil
}

// DeleteSection removes a section and its groups.
func (r *AcademicRepository) DeleteSection(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete section: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM groups WHERE section_id = $1`, id); err != nil {
		return fmt.Errorf("delete section groups: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete section: %w", err)
	}
	if err := requireRows(res); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete section: %w", err)
	}
	return nil
}

// --- groups ---

func (r *AcademicRepository) CreateGroup(ctx context.Context, g *models.Group) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now

	const query = `INSERT INTO groups (id, section_id, name, type, max_capacity, created_at, updated_at)
	VALUES (:id, :section_id, :name, :type, :max_capacity, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, g); err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

func (r *AcademicRepository) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	var g models.Group
	if err := r.db.GetContext(ctx, &g,
		`SELECT id, section_id, name, type, max_capacity, created_at, updated_at FROM groups WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &g, nil
}

// ListGroups returns groups, optionally scoped to a section and type.
func (r *AcademicRepository) ListGroups(ctx context.Context, sectionID string, groupType models.GroupType) ([]models.Group, error) {
	query := `SELECT id, section_id, name, type, max_capacity, created_at, updated_at FROM groups`
	conditions := []string{}
	args := []interface{}{}
	if sectionID != "" {
		args = append(args, sectionID)
		conditions = append(conditions, fmt.Sprintf("section_id = $%d", len(args)))
	}
	if groupType != "" {
		args = append(args, groupType)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	for i, cond := range conditions {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += ` ORDER BY name`

	var groups []models.Group
	if err := r.db.SelectContext(ctx, &groups, query, args...); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

func (r *AcademicRepository) UpdateGroup(ctx context.Context, g *models.Group) error {
	g.UpdatedAt = time.Now().UTC()
	res, err := r.db.NamedExecContext(ctx,
		`UPDATE groups SET name = :name, max_capacity = :max_capacity, updated_at = :updated_at WHERE id = :id`, g)
	if err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	return requireRows(res)
}

// CountGroupStudents returns how many students sit in a group through either
// enrollment slot.
func (r *AcademicRepository) CountGroupStudents(ctx context.Context, id string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(1) FROM students WHERE tutorial_group_id = $1 OR lab_group_id = $1`, id); err != nil {
		return 0, fmt.Errorf("count group students: %w", err)
	}
	return count, nil
}

func (r *AcademicRepository) DeleteGroup(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return requireRows(res)
}
