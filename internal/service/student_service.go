package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/usra-dev/usra-api/internal/dto"
	"github.com/usra-dev/usra-api/internal/models"
	appErrors "github.com/usra-dev/usra-api/pkg/errors"
)

// birthDateLayout is the wire format for student birth dates.
const birthDateLayout = "02/01/2006"

type studentStore interface {
	CreateWithUser(ctx context.Context, user *models.User, student *models.Student) error
	GetByID(ctx context.Context, id string) (*models.Student, error)
	GetByUserID(ctx context.Context, userID string) (*models.Student, error)
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id string) error
}

type roleResolver interface {
	GetByName(ctx context.Context, name models.RoleName) (*models.Role, error)
}

// StudentService manages student records and their backing accounts.
type StudentService struct {
	repo      studentStore
	roles     roleResolver
	academic  academicDirectory
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the service.
func NewStudentService(repo studentStore, roles roleResolver, academic academicDirectory, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &StudentService{repo: repo, roles: roles, academic: academic, validator: validate, logger: logger}
}

// Create registers a student and their user account in one transaction. The
// enrollment anchors must form a consistent chain: the section under the
// speciality, both groups under the section, one per track.
func (s *StudentService) Create(ctx context.Context, req dto.CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	birthDate, err := time.Parse(birthDateLayout, req.BirthDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "birth_date must be formatted dd/mm/yyyy")
	}
	if err := s.checkEnrollment(ctx, req.SpecialityID, req.SectionID, req.TutorialGroupID, req.LabGroupID); err != nil {
		return nil, err
	}

	role, err := s.roles.GetByName(ctx, models.RoleStudent)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student role")
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
	student := &models.Student{
		Matricule:       strings.TrimSpace(req.Matricule),
		FirstName:       strings.TrimSpace(req.FirstName),
		LastName:        strings.TrimSpace(req.LastName),
		BirthDate:       birthDate,
		Nationality:     req.Nationality,
		Gender:          req.Gender,
		Disability:      req.Disability,
		PhoneNumber:     req.PhoneNumber,
		Observation:     req.Observation,
		SpecialityID:    req.SpecialityID,
		SectionID:       req.SectionID,
		TutorialGroupID: req.TutorialGroupID,
		LabGroupID:      req.LabGroupID,
	}
	if err := s.repo.CreateWithUser(ctx, user, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	s.logger.Info("student created", zap.String("student_id", student.ID), zap.String("matricule", student.Matricule))
	return student, nil
}

// Get returns a student by ID.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// List returns students matching the filter.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, total, nil
}

// Update modifies a student's personal fields. Enrollment anchors are frozen
// here: they only move through approved requests.
func (s *StudentService) Update(ctx context.Context, id string, req dto.UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	birthDate, err := time.Parse(birthDateLayout, req.BirthDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "birth_date must be formatted dd/mm/yyyy")
	}

	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	student.FirstName = strings.TrimSpace(req.FirstName)
	student.LastName = strings.TrimSpace(req.LastName)
	student.BirthDate = birthDate
	student.Nationality = req.Nationality
	student.Gender = req.Gender
	student.Disability = req.Disability
	student.PhoneNumber = req.PhoneNumber
	student.Observation = req.Observation

	if err := s.repo.Update(ctx, student); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

// Delete removes a student and their account.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	s.logger.Info("student deleted", zap.String("student_id", id))
	return nil
}

func (s *StudentService) checkEnrollment(ctx context.Context, specialityID, sectionID, tutorialGroupID, labGroupID string) error {
	section, err := s.academic.GetSection(ctx, sectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "section not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	if section.SpecialityID != specialityID {
		return appErrors.Clone(appErrors.ErrValidation, "section does not belong to the speciality")
	}

	for _, check := range []struct {
		groupID  string
		wantType models.GroupType
	}{
		{tutorialGroupID, models.GroupTypeTutorial},
		{labGroupID, models.GroupTypeLab},
	} {
		group, err := s.academic.GetGroup(ctx, check.groupID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrValidation, "group not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
		}
		if group.SectionID != sectionID {
			return appErrors.Clone(appErrors.ErrValidation, "group does not belong to the section")
		}
		if group.Type != check.wantType {
			return appErrors.Clone(appErrors.ErrValidation, "group type does not match its enrollment slot")
		}
	}
	return nil
}
