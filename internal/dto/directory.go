package dto

import "github.com/usra-dev/usra-api/internal/models"

// CreateStudentRequest registers a student together with their user account.
type CreateStudentRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8,max=32"`
	Matricule       string `json:"matricule" validate:"required"`
	FirstName       string `json:"first_name" validate:"required"`
	LastName        string `json:"last_name" validate:"required"`
	BirthDate       string `json:"birth_date" validate:"required,datetime=02/01/2006"`
	Nationality     string `json:"nationality" validate:"required"`
	Gender          string `json:"gender" validate:"required"`
	Disability      bool   `json:"disability"`
	PhoneNumber     string `json:"phone_number" validate:"required"`
	Observation     string `json:"observation"`
	SpecialityID    string `json:"speciality_id" validate:"required,uuid4"`
	SectionID       string `json:"section_id" validate:"required,uuid4"`
	TutorialGroupID string `json:"tutorial_group_id" validate:"required,uuid4"`
	LabGroupID      string `json:"lab_group_id" validate:"required,uuid4"`
}

// UpdateStudentRequest modifies a student's personal fields. Enrollment moves
// only through the request workflow.
type UpdateStudentRequest struct {
	FirstName   string `json:"first_name" validate:"required"`
	LastName    string `json:"last_name" validate:"required"`
	BirthDate   string `json:"birth_date" validate:"required,datetime=02/01/2006"`
	Nationality string `json:"nationality" validate:"required"`
	Gender      string `json:"gender" validate:"required"`
	Disability  bool   `json:"disability"`
	PhoneNumber string `json:"phone_number" validate:"required"`
	Observation string `json:"observation"`
}

// CreateTeacherRequest registers a teacher together with their user account.
type CreateTeacherRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,max=32"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Grade     string `json:"grade" validate:"required"`
}

// UpdateTeacherRequest modifies a teacher's fields.
type UpdateTeacherRequest struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Grade     string `json:"grade" validate:"required"`
}

// AssignTeacherRequest links a teacher to a section or group.
type AssignTeacherRequest struct {
	SectionID *string `json:"section_id,omitempty" validate:"omitempty,uuid4"`
	GroupID   *string `json:"group_id,omitempty" validate:"omitempty,uuid4"`
}

// CreateStaffRequest registers a staff member together with their user account.
type CreateStaffRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,max=32"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Grade     string `json:"grade" validate:"required"`
}

// UpdateStaffRequest modifies a staff member's fields.
type UpdateStaffRequest struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Grade     string `json:"grade" validate:"required"`
}

// CreateRoleRequest adds a non-seed role.
type CreateRoleRequest struct {
	Name            models.RoleName `json:"name" validate:"required"`
	PermissionLevel int             `json:"permission_level" validate:"required,min=1"`
}

// UpdateRoleRequest changes a role's permission level.
type UpdateRoleRequest struct {
	PermissionLevel int `json:"permission_level" validate:"required,min=1"`
}

// CreateSpecialityRequest adds a speciality.
type CreateSpecialityRequest struct {
	Name           string `json:"name" validate:"required"`
	EducationLevel int    `json:"education_level" validate:"required,min=1"`
}

// CreateSectionRequest adds a section under a speciality.
type CreateSectionRequest struct {
	SpecialityID string `json:"speciality_id" validate:"required,uuid4"`
	Name         string `json:"name" validate:"required"`
	MaxCapacity  int    `json:"max_capacity" validate:"required,min=1"`
}

// CreateGroupRequest adds a typed group under a section.
type CreateGroupRequest struct {
	SectionID   string           `json:"section_id" validate:"required,uuid4"`
	Type        models.GroupType `json:"type" validate:"required,oneof=tutorial lab"`
	Name        string           `json:"name" validate:"required"`
	MaxCapacity int              `json:"max_capacity" validate:"required,min=1"`
}
