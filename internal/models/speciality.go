package models

import "time"

// Speciality is the top of the enrollment hierarchy.
type Speciality struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	EducationLevel int       `db:"education_level" json:"education_level"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Section belongs to exactly one speciality.
type Section struct {
	ID           string    `db:"id" json:"id"`
	SpecialityID string    `db:"speciality_id" json:"speciality_id"`
	Name         string    `db:"name" json:"name"`
	MaxCapacity  int       `db:"max_capacity" json:"max_capacity"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// GroupType distinguishes the two parallel group tracks within a section.
type GroupType string

const (
	GroupTypeTutorial GroupType = "tutorial"
	GroupTypeLab      GroupType = "lab"
)

// ValidGroupType reports whether t is a known group type.
func ValidGroupType(t GroupType) bool {
	return t == GroupTypeTutorial || t == GroupTypeLab
}

// Group belongs to exactly one section and is typed tutorial or lab.
type Group struct {
	ID          string    `db:"id" json:"id"`
	SectionID   string    `db:"section_id" json:"section_id"`
	Type        GroupType `db:"type" json:"type"`
	Name        string    `db:"name" json:"name"`
	MaxCapacity int       `db:"max_capacity" json:"max_capacity"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
