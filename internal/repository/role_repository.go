package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/usra-dev/usra-api/internal/models"
)

// RoleRepository persists the role catalogue.
type RoleRepository struct {
	db *sqlx.DB
}

// NewRoleRepository constructs the repository.
func NewRoleRepository(db *sqlx.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// GetByID fetches a role by identifier.
func (r *RoleRepository) GetByID(ctx context.Context, id string) (*models.Role, error) {
	var role models.Role
	if err := r.db.GetContext(ctx, &role,
		`SELECT id, name, permission_level, protected, created_at, updated_at FROM roles WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &role, nil
}

// GetByName fetches a role by its unique name.
func (r *RoleRepository) GetByName(ctx context.Context, name models.RoleName) (*models.Role, error) {
	var role models.Role
	if err := r.db.GetContext(ctx, &role,
		`SELECT id, name, permission_level, protected, created_at, updated_at FROM roles WHERE name = $1`, name); err != nil {
		return nil, err
	}
	return &role, nil
}

// List returns every role ordered by permission level.
func (r *RoleRepository) List(ctx context.Context) ([]models.Role, error) {
	var roles []models.Role
	if err := r.db.SelectContext(ctx, &roles,
		`SELECT id, name, permission_level, protected, created_at, updated_at FROM roles ORDER BY permission_level`); err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}

// Create inserts a custom (unprotected) role.
func (r *RoleRepository) Create(ctx context.Context, role *models.Role) error {
	if role.ID == "" {
		role.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	role.CreatedAt = now
	role.UpdatedAt = now

	const query = `INSERT INTO roles (id, name, permission_level, protected, created_at, updated_at)
	VALUES (:id, :name, :permission_level, :protected, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, role); err != nil {
		return fmt.Errorf("create role: %w", err)
	}
	return nil
}

// Update changes a role's name and permission level. Protected seed roles are
// excluded by the WHERE guard; zero rows means not found or protected.
func (r *RoleRepository) Update(ctx context.Context, role *models.Role) error {
	role.UpdatedAt = time.Now().UTC()
	const query = `UPDATE roles SET name = :name, permission_level = :permission_level, updated_at = :updated_at
	WHERE id = :id AND protected = FALSE`
	res, err := r.db.NamedExecContext(ctx, query, role)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	return requireRows(res)
}

// CountUsers returns how many accounts reference a role.
func (r *RoleRepository) CountUsers(ctx context.Context, roleID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(1) FROM users WHERE role_id = $1`, roleID); err != nil {
		return 0, fmt.Errorf("count role users: %w", err)
	}
	return count, nil
}

// Delete removes an unprotected role. Zero rows means not found or protected.
func (r *RoleRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM roles WHERE id = $1 AND protected = FALSE`, id)
	if err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	return requireRows(res)
}
