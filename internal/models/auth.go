package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=32"`
}

// ChangePasswordRequest rotates the caller's own password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required,min=8,max=32"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=32"`
}

// LoginResponse returns the issued token and user info.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	User        UserInfo  `json:"user"`
	IssuedAt    time.Time `json:"issued_at"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID              string   `json:"id"`
	Email           string   `json:"email"`
	Role            RoleName `json:"role"`
	PermissionLevel int      `json:"permission_level"`
}

// JWTClaims represents the JWT payload for access tokens. The role and its
// permission level are resolved once at login so authorization never queries
// roles by name per request.
type JWTClaims struct {
	UserID          string   `json:"user_id"`
	Role            RoleName `json:"role"`
	PermissionLevel int      `json:"permission_level"`
	Email           string   `json:"email"`
	jwt.RegisteredClaims
}
