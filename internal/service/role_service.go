package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/usra-dev/usra-api/internal/dto"
	"github.com/usra-dev/usra-api/internal/models"
	appErrors "github.com/usra-dev/usra-api/pkg/errors"
)

type roleStore interface {
	GetByID(ctx context.Context, id string) (*models.Role, error)
	GetByName(ctx context.Context, name models.RoleName) (*models.Role, error)
	List(ctx context.Context) ([]models.Role, error)
	Create(ctx context.Context, role *models.Role) error
	Update(ctx context.Context, role *models.Role) error
	CountUsers(ctx context.Context, roleID string) (int, error)
	Delete(ctx context.Context, id string) error
}

// RoleService manages the role catalogue. The four seed roles are protected
// and refuse mutation and deletion; custom roles additionally refuse deletion
// while accounts still reference them.
type RoleService struct {
	repo      roleStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRoleService constructs the service.
func NewRoleService(repo roleStore, validate *validator.Validate, logger *zap.Logger) *RoleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &RoleService{repo: repo, validator: validate, logger: logger}
}

// List returns every role.
func (s *RoleService) List(ctx context.Context) ([]models.Role, error) {
	roles, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list roles")
	}
	return roles, nil
}

// Get returns a role by ID.
func (s *RoleService) Get(ctx context.Context, id string) (*models.Role, error) {
	role, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "role not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load role")
	}
	return role, nil
}

// Create adds a custom role. Seed role names are reserved.
func (s *RoleService) Create(ctx context.Context, req dto.CreateRoleRequest) (*models.Role, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid role payload")
	}
	name := models.RoleName(strings.ToUpper(strings.TrimSpace(string(req.Name))))
	if models.ValidRoleName(name) {
		return nil, appErrors.Clone(appErrors.ErrProtectedRole, "seed role names are reserved")
	}
	if _, err := s.repo.GetByName(ctx, name); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "role already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check role name")
	}

	role := &models.Role{
		Name:            name,
		PermissionLevel: req.PermissionLevel,
		Protected:       false,
	}
	if err := s.repo.Create(ctx, role); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create role")
	}
	s.logger.Info("role created", zap.String("role", string(role.Name)), zap.Int("permission_level", role.PermissionLevel))
	return role, nil
}

// Update changes a custom role's permission level.
func (s *RoleService) Update(ctx context.Context, id string, req dto.UpdateRoleRequest) (*models.Role, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid role payload")
	}
	role, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if role.Protected {
		return nil, appErrors.Clone(appErrors.ErrProtectedRole, "seed roles cannot be modified")
	}
	role.PermissionLevel = req.PermissionLevel

	if err := s.repo.Update(ctx, role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrProtectedRole, "seed roles cannot be modified")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update role")
	}
	return role, nil
}

// Delete removes a custom role with no remaining members.
func (s *RoleService) Delete(ctx context.Context, id string) error {
	role, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if role.Protected {
		return appErrors.Clone(appErrors.ErrProtectedRole, "seed roles cannot be deleted")
	}

	members, err := s.repo.CountUsers(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count role members")
	}
	if members > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "role still has members")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrProtectedRole, "seed roles cannot be deleted")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete role")
	}
	s.logger.Info("role deleted", zap.String("role", string(role.Name)))
	return nil
}
