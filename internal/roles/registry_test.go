package roles

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/scrum/internal/guard"
	"github.com/joescharf/scrum/internal/ledger"
	"github.com/joescharf/scrum/internal/models"
	"github.com/joescharf/scrum/internal/store"
)

type fixture struct {
	store    *store.SQLiteStore
	registry *Registry
	ledger   *ledger.Ledger
	project  *models.Project
}

func newFixture(t *testing.T, users ...string) *fixture {
	t.Helper()
	ctx := context.Background()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() { s.Close() })

	for _, id := range users {
		require.NoError(t, s.CreateUser(ctx, &models.User{ID: id, Name: id, Email: id + "@example.com", Active: true}))
	}
	p := &models.Project{Name: "alpha"}
	require.NoError(t, s.CreateProject(ctx, p))

	reg := New(s)
	_, err = reg.CreateDefaultRoles(ctx, p.ID)
	require.NoError(t, err)
	return &fixture{store: s, registry: reg, ledger: ledger.New(s), project: p}
}

func (f *fixture) perms(t *testing.T, userID string) []models.Permission {
	t.Helper()
	perms, err := f.ledger.Permissions(context.Background(), userID, f.project.ID)
	require.NoError(t, err)
	return perms
}

func TestCreateDefaultRoles(t *testing.T) {
	f := newFixture(t)
	roles, err := f.store.ListRoles(context.Background(), f.project.ID)
	require.NoError(t, err)
	require.Len(t, roles, 4)

	byName := map[string][]models.Permission{}
	for _, r := range roles {
		byName[r.Name] = r.Permissions
	}
	assert.Equal(t, []models.Permission{models.PermDevelop, models.PermManageProject, models.PermManageTeam}, byName[models.RoleScrumMaster])
	assert.Equal(t, []models.Permission{models.PermManageBacklog}, byName[models.RoleProductOwner])
	assert.Equal(t, []models.Permission{models.PermDevelop}, byName[models.RoleDeveloper])
	assert.Empty(t, byName[models.RoleStakeholder])
}

func TestAssignRole_ReassignmentIsExact(t *testing.T) {
	f := newFixture(t, "sm", "u1")
	ctx := context.Background()

	require.NoError(t, f.registry.AssignRole(ctx, "sm", "u1", f.project.ID, models.RoleScrumMaster))
	assert.Equal(t, []models.Permission{models.PermDevelop, models.PermManageProject, models.PermManageTeam, models.PermView}, f.perms(t, "u1"))

	require.NoError(t, f.registry.AssignRole(ctx, "sm", "u1", f.project.ID, models.RoleProductOwner))
	assert.Equal(t, []models.Permission{models.PermManageBacklog, models.PermView}, f.perms(t, "u1"))

	require.NoError(t, f.registry.AssignRole(ctx, "sm", "u1", f.project.ID, models.RoleStakeholder))
	assert.Equal(t, []models.Permission{models.PermView}, f.perms(t, "u1"), "view survives role changes")

	members, err := f.store.ListMemberships(ctx, store.MembershipFilter{ProjectID: f.project.ID})
	require.NoError(t, err)
	assert.Len(t, members, 1, "one membership per user and project")
}

func TestAssignRole_UnknownRole(t *testing.T) {
	f := newFixture(t, "u1")
	err := f.registry.AssignRole(context.Background(), "u1", "u1", f.project.ID, "Architect")
	assert.True(t, errors.Is(err, guard.ErrInconsistent))
	assert.Empty(t, f.perms(t, "u1"))
}

func TestAssignRole_SelfDemotionRejected(t *testing.T) {
	f := newFixture(t, "sm")
	ctx := context.Background()
	require.NoError(t, f.registry.AssignRole(ctx, "sm", "sm", f.project.ID, models.RoleScrumMaster))

	err := f.registry.AssignRole(ctx, "sm", "sm", f.project.ID, models.RoleDeveloper)
	assert.True(t, errors.Is(err, guard.ErrForbidden))
	assert.Contains(t, f.perms(t, "sm"), models.PermManageTeam)
}

func TestRemoveRole_RevokesViewToo(t *testing.T) {
	f := newFixture(t, "sm", "u1")
	ctx := context.Background()
	require.NoError(t, f.registry.AssignRole(ctx, "sm", "u1", f.project.ID, models.RoleDeveloper))

	require.NoError(t, f.registry.RemoveRole(ctx, "sm", "u1", f.project.ID))
	assert.Empty(t, f.perms(t, "u1"))

	_, err := f.store.GetMembership(ctx, f.project.ID, "u1")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestRolePermissionPropagation(t *testing.T) {
	f := newFixture(t, "sm", "d1", "d2")
	ctx := context.Background()
	require.NoError(t, f.registry.AssignRole(ctx, "sm", "sm", f.project.ID, models.RoleScrumMaster))
	require.NoError(t, f.registry.AssignRole(ctx, "sm", "d1", f.project.ID, models.RoleDeveloper))
	require.NoError(t, f.registry.AssignRole(ctx, "sm", "d2", f.project.ID, models.RoleDeveloper))

	dev, err := f.store.GetRoleByName(ctx, f.project.ID, models.RoleDeveloper)
	require.NoError(t, err)

	require.NoError(t, f.registry.AssignPermission(ctx, dev.ID, models.PermManageBacklog))
	for _, u := range []string{"d1", "d2"} {
		assert.Contains(t, f.perms(t, u), models.PermManageBacklog)
	}

	require.NoError(t, f.registry.RevokePermission(ctx, "sm", dev.ID, models.PermDevelop))
	for _, u := range []string{"d1", "d2"} {
		assert.Equal(t, []models.Permission{models.PermManageBacklog, models.PermView}, f.perms(t, u))
	}

	assert.Error(t, f.registry.AssignPermission(ctx, dev.ID, models.PermView))
	assert.Error(t, f.registry.AssignPermission(ctx, dev.ID, models.PermAudit))
}

func TestRevokePermission_OwnManageTeamRejected(t *testing.T) {
	f := newFixture(t, "sm")
	ctx := context.Background()
	require.NoError(t, f.registry.AssignRole(ctx, "sm", "sm", f.project.ID, models.RoleScrumMaster))
	sm, err := f.store.GetRoleByName(ctx, f.project.ID, models.RoleScrumMaster)
	require.NoError(t, err)

	err = f.registry.RevokePermission(ctx, "sm", sm.ID, models.PermManageTeam)
	assert.True(t, errors.Is(err, guard.ErrForbidden))

	// other permissions of the same role can go
	require.NoError(t, f.registry.RevokePermission(ctx, "sm", sm.ID, models.PermDevelop))
	assert.NotContains(t, f.perms(t, "sm"), models.PermDevelop)
}

func TestDeleteRole(t *testing.T) {
	f := newFixture(t, "sm")
	ctx := context.Background()
	require.NoError(t, f.registry.AssignRole(ctx, "sm", "sm", f.project.ID, models.RoleScrumMaster))

	sm, err := f.store.GetRoleByName(ctx, f.project.ID, models.RoleScrumMaster)
	require.NoError(t, err)
	err = f.registry.DeleteRole(ctx, sm.ID)
	assert.True(t, errors.Is(err, guard.ErrInconsistent))

	st, err := f.store.GetRoleByName(ctx, f.project.ID, models.RoleStakeholder)
	require.NoError(t, err)
	require.NoError(t, f.registry.DeleteRole(ctx, st.ID))
}

func TestCreateAndRenameRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.registry.CreateRole(ctx, f.project.ID, models.RoleDeveloper, nil)
	assert.True(t, errors.Is(err, guard.ErrInconsistent), "names are unique")

	qa, err := f.registry.CreateRole(ctx, f.project.ID, "QA", []models.Permission{models.PermDevelop})
	require.NoError(t, err)

	_, err = f.registry.RenameRole(ctx, qa.ID, models.RoleStakeholder)
	assert.Error(t, err)

	renamed, err := f.registry.RenameRole(ctx, qa.ID, "Tester")
	require.NoError(t, err)
	assert.Equal(t, "Tester", renamed.Name)
}

func TestTeam(t *testing.T) {
	f := newFixture(t, "sm", "d1")
	ctx := context.Background()
	require.NoError(t, f.registry.AssignRole(ctx, "sm", "sm", f.project.ID, models.RoleScrumMaster))
	require.NoError(t, f.registry.AssignRole(ctx, "sm", "d1", f.project.ID, models.RoleDeveloper))

	team, err := f.registry.Team(ctx, f.project.ID)
	require.NoError(t, err)
	require.Len(t, team, 2)
	names := map[string]string{}
	for _, m := range team {
		names[m.User.ID] = m.Role.Name
	}
	assert.Equal(t, models.RoleDeveloper, names["d1"])

	role, err := f.registry.RoleOf(ctx, "sm", f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleScrumMaster, role.Name)
}
