package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/usra-dev/usra-api/internal/dto"
	"github.com/usra-dev/usra-api/internal/models"
	appErrors "github.com/usra-dev/usra-api/pkg/errors"
)

type staffStore interface {
	CreateWithUser(ctx context.Context, user *models.User, staff *models.Staff) error
	GetByID(ctx context.Context, id string) (*models.Staff, error)
	List(ctx context.Context, search string, page, pageSize int) ([]models.Staff, int, error)
	Update(ctx context.Context, staff *models.Staff) error
	Delete(ctx context.Context, id string) error
}

// StaffService manages administrative staff records.
type StaffService struct {
	repo      staffStore
	roles     roleResolver
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStaffService constructs the service.
func NewStaffService(repo staffStore, roles roleResolver, validate *validator.Validate, logger *zap.Logger) *StaffService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &StaffService{repo: repo, roles: roles, validator: validate, logger: logger}
}

// Create registers a staff member and their user account in one transaction.
func (s *StaffService) Create(ctx context.Context, req dto.CreateStaffRequest) (*models.Staff, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid staff payload")
	}

	role, err := s.roles.GetByName(ctx, models.RoleStaff)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve staff role")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hash),
		RoleID:       role.ID,
		Active:       true,
	}
	staff := &models.Staff{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Grade:     req.Grade,
	}
	if err := s.repo.CreateWithUser(ctx, user, staff); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create staff member")
	}
	s.logger.Info("staff member created", zap.String("staff_id", staff.ID))
	return staff, nil
}

// Get returns a staff member by ID.
func (s *StaffService) Get(ctx context.Context, id string) (*models.Staff, error) {
	staff, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "staff member not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff member")
	}
	return staff, nil
}

// List returns staff members with an optional name search.
func (s *StaffService) List(ctx context.Context, search string, page, pageSize int) ([]models.Staff, int, error) {
	members, total, err := s.repo.List(ctx, search, page, pageSize)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list staff")
	}
	return members, total, nil
}

// Update modifies a staff member's fields.
func (s *StaffService) Update(ctx context.Context, id string, req dto.UpdateStaffRequest) (*models.Staff, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid staff payload")
	}
	staff, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	staff.FirstName = strings.TrimSpace(req.FirstName)
	staff.LastName = strings.TrimSpace(req.LastName)
	staff.Grade = req.Grade

	if err := s.repo.Update(ctx, staff); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "staff member not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update staff member")
	}
	return staff, nil
}

// Delete removes a staff member and their account.
func (s *StaffService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "staff member not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete staff member")
	}
	s.logger.Info("staff member deleted", zap.String("staff_id", id))
	return nil
}
