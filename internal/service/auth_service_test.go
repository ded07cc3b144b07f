package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/usra-dev/usra-api/internal/models"
	appErrors "github.com/usra-dev/usra-api/pkg/errors"
)

type mockAuthRepo struct {
	user           *models.User
	findByEmailErr error
	findByIDErr    error
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	return m.user, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.findByIDErr != nil {
		return nil, m.findByIDErr
	}
	return m.user, nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	if m.user != nil && m.user.ID == id {
		m.user.PasswordHash = hash
	}
	return nil
}

func activeUser(t *testing.T, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)
	return &models.User{
		ID:              "u1",
		Email:           "student@univ.example",
		PasswordHash:    string(hash),
		Active:          true,
		RoleName:        models.RoleStudent,
		PermissionLevel: models.PermissionStudent,
	}
}

func testAuthConfig() AuthConfig {
	return AuthConfig{TokenSecret: "secret", TokenExpiry: time.Hour, Issuer: "usra-api"}
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	repo := &mockAuthRepo{user: activeUser(t, "password1")}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "student@univ.example", Password: "password1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, models.RoleStudent, res.User.Role)
	assert.Equal(t, models.PermissionStudent, res.User.PermissionLevel)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
	assert.Equal(t, models.PermissionStudent, claims.PermissionLevel)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	repo := &mockAuthRepo{user: activeUser(t, "password1")}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "student@univ.example", Password: "password2"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginUnknownEmail(t *testing.T) {
	repo := &mockAuthRepo{findByEmailErr: sql.ErrNoRows}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ghost@univ.example", Password: "password1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginInactive(t *testing.T) {
	user := activeUser(t, "password1")
	user.Active = false
	svc := NewAuthService(&mockAuthRepo{user: user}, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "student@univ.example", Password: "password1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceValidateTokenRejectsTampered(t *testing.T) {
	repo := &mockAuthRepo{user: activeUser(t, "password1")}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "student@univ.example", Password: "password1"})
	require.NoError(t, err)

	other := NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{TokenSecret: "other", TokenExpiry: time.Hour})
	_, err = other.ValidateToken(res.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceChangePassword(t *testing.T) {
	repo := &mockAuthRepo{user: activeUser(t, "password1")}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())
	ctx := context.Background()

	err := svc.ChangePassword(ctx, "u1", models.ChangePasswordRequest{OldPassword: "wrongpass", NewPassword: "password2"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.ChangePassword(ctx, "u1", models.ChangePasswordRequest{OldPassword: "password1", NewPassword: "password2"}))

	_, err = svc.Login(ctx, models.LoginRequest{Email: "student@univ.example", Password: "password2"})
	require.NoError(t, err)
}
