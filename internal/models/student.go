package models

import "time"

// Student represents a learner registered in the institution, anchored to a
// speciality, a section and one group per track (tutorial and lab).
type Student struct {
	ID              string    `db:"id" json:"id"`
	UserID          string    `db:"user_id" json:"user_id"`
	Matricule       string    `db:"matricule" json:"matricule"`
	FirstName       string    `db:"first_name" json:"first_name"`
	LastName        string    `db:"last_name" json:"last_name"`
	BirthDate       time.Time `db:"birth_date" json:"birth_date"`
	Nationality     string    `db:"nationality" json:"nationality"`
	Gender          string    `db:"gender" json:"gender"`
	Disability      bool      `db:"disability" json:"disability"`
	PhoneNumber     string    `db:"phone_number" json:"phone_number"`
	Observation     string    `db:"observation" json:"observation"`
	SpecialityID    string    `db:"speciality_id" json:"speciality_id"`
	SectionID       string    `db:"section_id" json:"section_id"`
	TutorialGroupID string    `db:"tutorial_group_id" json:"tutorial_group_id"`
	LabGroupID      string    `db:"lab_group_id" json:"lab_group_id"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search          string
	SpecialityID    string
	SectionID       string
	TutorialGroupID string
	LabGroupID      string
	Page            int
	PageSize        int
}

// Enrollment is the snapshot of a student's placement embedded in request
// detail responses.
type Enrollment struct {
	SpecialityID    string `db:"speciality_id" json:"speciality_id"`
	SectionID       string `db:"section_id" json:"section_id"`
	TutorialGroupID string `db:"tutorial_group_id" json:"tutorial_group_id"`
	LabGroupID      string `db:"lab_group_id" json:"lab_group_id"`
}
