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

type academicStore interface {
	CreateSpeciality(ctx context.Context, sp *models.Speciality) error
	GetSpeciality(ctx context.Context, id string) (*models.Speciality, error)
	ListSpecialities(ctx context.Context) ([]models.Speciality, error)
	UpdateSpeciality(ctx context.Context, sp *models.Speciality) error
	CountSpecialityStudents(ctx context.Context, id string) (int, error)
	DeleteSpeciality(ctx context.Context, id string) error

	CreateSection(ctx context.Context, sec *models.Section) error
	GetSection(ctx context.Context, id string) (*models.Section, error)
	ListSections(ctx context.Context, specialityID string) ([]models.Section, error)
	UpdateSection(ctx context.Context, sec *models.Section) error
	CountSectionStudents(ctx context.Context, id string) (int, error)
	DeleteSection(ctx context.Context, id string) error

	CreateGroup(ctx context.Context, g *models.Group) error
	GetGroup(ctx context.Context, id string) (*models.Group, error)
	ListGroups(ctx context.Context, sectionID string, groupType models.GroupType) ([]models.Group, error)
	UpdateGroup(ctx context.Context, g *models.Group) error
	CountGroupStudents(ctx context.Context, id string) (int, error)
	DeleteGroup(ctx context.Context, id string) error
}

// AcademicService manages the speciality / section / group hierarchy. Nodes
// with enrolled students refuse deletion so the workflow never points at a
// dangling target.
type AcademicService struct {
	repo      academicStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAcademicService constructs the service.
func NewAcademicService(repo academicStore, validate *validator.Validate, logger *zap.Logger) *AcademicService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AcademicService{repo: repo, validator: validate, logger: logger}
}

// CreateSpeciality adds a speciality.
func (s *AcademicService) CreateSpeciality(ctx context.Context, req dto.CreateSpecialityRequest) (*models.Speciality, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid speciality payload")
	}
	sp := &models.Speciality{
		Name:           strings.TrimSpace(req.Name),
		EducationLevel: req.EducationLevel,
	}
	if err := s.repo.CreateSpeciality(ctx, sp); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create speciality")
	}
	return sp, nil
}

// GetSpeciality returns a speciality by ID.
func (s *AcademicService) GetSpeciality(ctx context.Context, id string) (*models.Speciality, error) {
	sp, err := s.repo.GetSpeciality(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "speciality not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load speciality")
	}
	return sp, nil
}

// ListSpecialities returns every speciality.
func (s *AcademicService) ListSpecialities(ctx context.Context) ([]models.Speciality, error) {
	sps, err := s.repo.ListSpecialities(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list specialities")
	}
	return sps, nil
}

// UpdateSpeciality modifies a speciality.
func (s *AcademicService) UpdateSpeciality(ctx context.Context, id string, req dto.CreateSpecialityRequest) (*models.Speciality, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid speciality payload")
	}
	sp, err := s.GetSpeciality(ctx, id)
	if err != nil {
		return nil, err
	}
	sp.Name = strings.TrimSpace(req.Name)
	sp.EducationLevel = req.EducationLevel
	if err := s.repo.UpdateSpeciality(ctx, sp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "speciality not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update speciality")
	}
	return sp, nil
}

// DeleteSpeciality removes an empty speciality and its sections and groups.
func (s *AcademicService) DeleteSpeciality(ctx context.Context, id string) error {
	count, err := s.repo.CountSpecialityStudents(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrolled students")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "speciality still has enrolled students")
	}
	if err := s.repo.DeleteSpeciality(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "speciality not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete speciality")
	}
	return nil
}

// CreateSection adds a section under an existing speciality.
func (s *AcademicService) CreateSection(ctx context.Context, req dto.CreateSectionRequest) (*models.Section, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid section payload")
	}
	if _, err := s.GetSpeciality(ctx, req.SpecialityID); err != nil {
		return nil, err
	}
	sec := &models.Section{
		SpecialityID: req.SpecialityID,
		Name:         strings.TrimSpace(req.Name),
		MaxCapacity:  req.MaxCapacity,
	}
	if err := s.repo.CreateSection(ctx, sec); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create section")
	}
	return sec, nil
}

// GetSection returns a section by ID.
func (s *AcademicService) GetSection(ctx context.Context, id string) (*models.Section, error) {
	sec, err := s.repo.GetSection(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	return sec, nil
}

// ListSections returns sections, optionally scoped to a speciality.
func (s *AcademicService) ListSections(ctx context.Context, specialityID string) ([]models.Section, error) {
	secs, err := s.repo.ListSections(ctx, specialityID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sections")
	}
	return secs, nil
}

// UpdateSection modifies a section's name and capacity.
func (s *AcademicService) UpdateSection(ctx context.Context, id string, req dto.CreateSectionRequest) (*models.Section, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid section payload")
	}
	sec, err := s.GetSection(ctx, id)
	if err != nil {
		return nil, err
	}
	sec.Name = strings.TrimSpace(req.Name)
	sec.MaxCapacity = req.MaxCapacity
	if err := s.repo.UpdateSection(ctx, sec); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update section")
	}
	return sec, nil
}

// DeleteSection removes an empty section and its groups.
func (s *AcademicService) DeleteSection(ctx context.Context, id string) error {
	count, err := s.repo.CountSectionStudents(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrolled students")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "section still has enrolled students")
	}
	if err := s.repo.DeleteSection(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete section")
	}
	return nil
}

// CreateGroup adds a typed group under an existing section.
func (s *AcademicService) CreateGroup(ctx context.Context, req dto.CreateGroupRequest) (*models.Group, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid group payload")
	}
	if _, err := s.GetSection(ctx, req.SectionID); err != nil {
		return nil, err
	}
	g := &models.Group{
		SectionID:   req.SectionID,
		Type:        req.Type,
		Name:        strings.TrimSpace(req.Name),
		MaxCapacity: req.MaxCapacity,
	}
	if err := s.repo.CreateGroup(ctx, g); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create group")
	}
	return g, nil
}

// GetGroup returns a group by ID.
func (s *AcademicService) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	g, err := s.repo.GetGroup(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	return g, nil
}

// ListGroups returns groups, optionally scoped to a section and type.
func (s *AcademicService) ListGroups(ctx context.Context, sectionID string, groupType models.GroupType) ([]models.Group, error) {
	if groupType != "" && !models.ValidGroupType(groupType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "type must be tutorial or lab")
	}
	groups, err := s.repo.ListGroups(ctx, sectionID, groupType)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list groups")
	}
	return groups, nil
}

// UpdateGroup modifies a group's name and capacity. The type is immutable:
// enrollment slots are keyed by it.
func (s *AcademicService) UpdateGroup(ctx context.Context, id string, req dto.CreateGroupRequest) (*models.Group, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid group payload")
	}
	g, err := s.GetGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Type != g.Type {
		return nil, appErrors.Clone(appErrors.ErrValidation, "group type cannot change")
	}
	g.Name = strings.TrimSpace(req.Name)
	g.MaxCapacity = req.MaxCapacity
	if err := s.repo.UpdateGroup(ctx, g); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update group")
	}
	return g, nil
}

// DeleteGroup removes an empty group.
func (s *AcademicService) DeleteGroup(ctx context.Context, id string) error {
	count, err := s.repo.CountGroupStudents(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count group students")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "group still has enrolled students")
	}
	if err := s.repo.DeleteGroup(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete group")
	}
	return nil
}
