package models

import "time"

// RoleName is the closed set of roles known to the system.
type RoleName string

const (
	RoleStudent RoleName = "STUDENT"
	RoleTeacher RoleName = "TEACHER"
	RoleStaff   RoleName = "STAFF"
	RoleAdmin   RoleName = "ADMIN"
)

// Permission levels attached to the seed roles. Higher means more access.
const (
	PermissionStudent = 10
	PermissionTeacher = 20
	PermissionStaff   = 30
	PermissionAdmin   = 40
)

// Role represents an authorization role with an integer permission level.
// Protected roles are seeded at install time and refuse mutation.
type Role struct {
	ID              string    `db:"id" json:"id"`
	Name            RoleName  `db:"name" json:"name"`
	PermissionLevel int       `db:"permission_level" json:"permission_level"`
	Protected       bool      `db:"protected" json:"protected"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// ValidRoleName reports whether the name belongs to the closed enum.
func ValidRoleName(name RoleName) bool {
	switch name {
	case RoleStudent, RoleTeacher, RoleStaff, RoleAdmin:
		return true
	default:
		return false
	}
}
