package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usra-dev/usra-api/internal/dto"
	"github.com/usra-dev/usra-api/internal/models"
	appErrors "github.com/usra-dev/usra-api/pkg/errors"
)

type roleStoreStub struct {
	roles   map[string]*models.Role
	members map[string]int
	nextID  int
}

func newRoleStoreStub() *roleStoreStub {
	stub := &roleStoreStub{roles: map[string]*models.Role{}, members: map[string]int{}}
	seed := []struct {
		id    string
		name  models.RoleName
		level int
	}{
		{"role-student", models.RoleStudent, models.PermissionStudent},
		{"role-teacher", models.RoleTeacher, models.PermissionTeacher},
		{"role-staff", models.RoleStaff, models.PermissionStaff},
		{"role-admin", models.RoleAdmin, models.PermissionAdmin},
	}
	for _, r := range seed {
		stub.roles[r.id] = &models.Role{ID: r.id, Name: r.name, PermissionLevel: r.level, Protected: true}
	}
	return stub
}

func (s *roleStoreStub) GetByID(ctx context.Context, id string) (*models.Role, error) {
	role, ok := s.roles[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *role
	return &copied, nil
}

func (s *roleStoreStub) GetByName(ctx context.Context, name models.RoleName) (*models.Role, error) {
	for _, role := range s.roles {
		if role.Name == name {
			copied := *role
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *roleStoreStub) List(ctx context.Context) ([]models.Role, error) {
	out := make([]models.Role, 0, len(s.roles))
	for _, role := range s.roles {
		out = append(out, *role)
	}
	return out, nil
}

func (s *roleStoreStub) Create(ctx context.Context, role *models.Role) error {
	s.nextID++
	role.ID = "role-custom"
	s.roles[role.ID] = role
	return nil
}

func (s *roleStoreStub) Update(ctx context.Context, role *models.Role) error {
	if _, ok := s.roles[role.ID]; !ok {
		return sql.ErrNoRows
	}
	s.roles[role.ID] = role
	return nil
}

func (s *roleStoreStub) CountUsers(ctx context.Context, roleID string) (int, error) {
	return s.members[roleID], nil
}

func (s *roleStoreStub) Delete(ctx context.Context, id string) error {
	if _, ok := s.roles[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.roles, id)
	return nil
}

func TestRoleServiceProtectedRolesRefuseMutation(t *testing.T) {
	store := newRoleStoreStub()
	svc := NewRoleService(store, nil, nil)

	_, err := svc.Update(context.Background(), "role-admin", dto.UpdateRoleRequest{PermissionLevel: 99})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrProtectedRole.Code, appErrors.FromError(err).Code)

	err = svc.Delete(context.Background(), "role-student")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrProtectedRole.Code, appErrors.FromError(err).Code)
}

func TestRoleServiceSeedNamesReserved(t *testing.T) {
	svc := NewRoleService(newRoleStoreStub(), nil, nil)

	_, err := svc.Create(context.Background(), dto.CreateRoleRequest{Name: "admin", PermissionLevel: 50})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrProtectedRole.Code, appErrors.FromError(err).Code)
}

func TestRoleServiceCustomRoleLifecycle(t *testing.T) {
	store := newRoleStoreStub()
	svc := NewRoleService(store, nil, nil)

	role, err := svc.Create(context.Background(), dto.CreateRoleRequest{Name: "auditor", PermissionLevel: 25})
	require.NoError(t, err)
	assert.Equal(t, models.RoleName("AUDITOR"), role.Name)
	assert.False(t, role.Protected)

	updated, err := svc.Update(context.Background(), role.ID, dto.UpdateRoleRequest{PermissionLevel: 35})
	require.NoError(t, err)
	assert.Equal(t, 35, updated.PermissionLevel)

	_, err = svc.Create(context.Background(), dto.CreateRoleRequest{Name: "auditor", PermissionLevel: 25})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Delete(context.Background(), role.ID))
}

func TestRoleServiceDeleteRefusesNonEmptyRole(t *testing.T) {
	store := newRoleStoreStub()
	svc := NewRoleService(store, nil, nil)

	role, err := svc.Create(context.Background(), dto.CreateRoleRequest{Name: "auditor", PermissionLevel: 25})
	require.NoError(t, err)
	store.members[role.ID] = 2

	err = svc.Delete(context.Background(), role.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}
