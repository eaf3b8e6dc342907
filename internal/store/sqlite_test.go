package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/scrum/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	err = s.Migrate(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })
	return s
}

func seedUser(t *testing.T, s Store, id, name string) *models.User {
	t.Helper()
	u := &models.User{ID: id, Name: name, Email: id + "@example.com", Active: true}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func seedProject(t *testing.T, s Store, name string) *models.Project {
	t.Helper()
	days := 7
	p := &models.Project{Name: name, DefaultSprintDays: &days}
	require.NoError(t, s.CreateProject(context.Background(), p))
	return p
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "subdir", "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, "subdir"))
	assert.NoError(t, err, "should create parent directory")
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Migrate(context.Background()))
}

// --- Users and grants ---

func TestUserCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s, "u-ana", "Ana")
	assert.False(t, u.RegisteredAt.IsZero())

	got, err := s.GetUserByEmail(ctx, "u-ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.Name)
	assert.True(t, got.Active)

	got.Active = false
	require.NoError(t, s.UpdateUser(ctx, got))
	got, err = s.GetUser(ctx, "u-ana")
	require.NoError(t, err)
	assert.False(t, got.Active)

	_, err = s.GetUser(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.EqualError(t, err, "user not found: missing")

	err = s.UpdateUser(ctx, &models.User{ID: "missing", Email: "x@example.com"})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestGrants_IdempotentAndScoped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1", "One")

	require.NoError(t, s.GrantPermission(ctx, "u1", "p1", models.PermDevelop))
	require.NoError(t, s.GrantPermission(ctx, "u1", "p1", models.PermDevelop))
	require.NoError(t, s.GrantPermission(ctx, "u1", "global", models.PermAudit))

	ok, err := s.HasPermission(ctx, "u1", "p1", models.PermDevelop)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.HasPermission(ctx, "u1", "p2", models.PermDevelop)
	require.NoError(t, err)
	assert.False(t, ok)

	holders, err := s.ListPermissionHolders(ctx, "p1", models.PermDevelop)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, holders)

	require.NoError(t, s.RevokePermission(ctx, "u1", "p1", models.PermDevelop))
	ok, err = s.HasPermission(ctx, "u1", "p1", models.PermDevelop)
	require.NoError(t, err)
	assert.False(t, ok, "one revoke undoes any number of grants")

	// revoking an absent grant is not an error
	require.NoError(t, s.RevokePermission(ctx, "u1", "p1", models.PermDevelop))

	perms, err := s.ListUserPermissions(ctx, "u1", "global")
	require.NoError(t, err)
	assert.Equal(t, []models.Permission{models.PermAudit}, perms)
}

// --- Roles and memberships ---

func TestRoleCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, s, "alpha")

	r := &models.Role{ProjectID: p.ID, Name: "Developer",
		Permissions: []models.Permission{models.PermDevelop, models.PermDevelop}}
	require.NoError(t, s.CreateRole(ctx, r))
	assert.NotEmpty(t, r.ID)

	got, err := s.GetRoleByName(ctx, p.ID, "Developer")
	require.NoError(t, err)
	assert.Equal(t, []models.Permission{models.PermDevelop}, got.Permissions)

	got.Name = "Dev"
	got.Permissions = []models.Permission{models.PermManageBacklog, models.PermDevelop}
	require.NoError(t, s.UpdateRole(ctx, got))

	roles, err := s.ListRoles(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, "Dev", roles[0].Name)
	assert.Equal(t, []models.Permission{models.PermDevelop, models.PermManageBacklog}, roles[0].Permissions)

	dup := &models.Role{ProjectID: p.ID, Name: "Dev"}
	assert.Error(t, s.CreateRole(ctx, dup), "role names are unique per project")

	require.NoError(t, s.DeleteRole(ctx, got.ID))
	_, err = s.GetRole(ctx, got.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMembership_PutMovesRoleKeepsJoinTime(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, s, "alpha")
	seedUser(t, s, "u1", "One")

	dev := &models.Role{ProjectID: p.ID, Name: "Developer"}
	po := &models.Role{ProjectID: p.ID, Name: "Product Owner"}
	require.NoError(t, s.CreateRole(ctx, dev))
	require.NoError(t, s.CreateRole(ctx, po))

	joined := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.PutMembership(ctx, &models.Membership{ProjectID: p.ID, UserID: "u1", RoleID: dev.ID, JoinedAt: joined}))
	require.NoError(t, s.PutMembership(ctx, &models.Membership{ProjectID: p.ID, UserID: "u1", RoleID: po.ID}))

	m, err := s.GetMembership(ctx, p.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, po.ID, m.RoleID)
	assert.True(t, joined.Equal(m.JoinedAt))

	members, err := s.ListMemberships(ctx, MembershipFilter{RoleID: dev.ID})
	require.NoError(t, err)
	assert.Empty(t, members)

	assert.Error(t, s.DeleteRole(ctx, po.ID), "a role with members cannot be deleted")

	projects, err := s.ListProjects(ctx, ProjectFilter{MemberID: "u1"})
	require.NoError(t, err)
	require.Len(t, projects, 1)

	require.NoError(t, s.DeleteMembership(ctx, p.ID, "u1"))
	_, err = s.GetMembership(ctx, p.ID, "u1")
	assert.True(t, errors.Is(err, ErrNotFound))
}

// --- Projects ---

func TestProjectDatesRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	end := models.AddDays(start, 21)
	p := &models.Project{Name: "beta", StartDate: &start, EndDate: &end}
	require.NoError(t, s.CreateProject(ctx, p))
	assert.Equal(t, models.ProjectPending, p.State)

	got, err := s.GetProjectByName(ctx, "beta")
	require.NoError(t, err)
	require.NotNil(t, got.StartDate)
	assert.True(t, start.Equal(*got.StartDate))
	assert.True(t, end.Equal(*got.EndDate))
	assert.Nil(t, got.ActualStart)
	assert.Nil(t, got.DefaultSprintDays)

	got.State = models.ProjectActive
	got.ActualStart = models.DatePtr(start)
	require.NoError(t, s.UpdateProject(ctx, got))

	active, err := s.ListProjects(ctx, ProjectFilter{States: []models.ProjectState{models.ProjectActive}})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "2026-03-02", models.FormatDate(active[0].ActualStart))
}

func TestNextItemNumber(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, s, "alpha")

	for want := 1; want <= 3; want++ {
		n, err := s.NextItemNumber(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	_, err := s.NextItemNumber(ctx, "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

// --- Sprints, members, items, increments ---

func TestSprintLifecycleRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, s, "alpha")
	seedUser(t, s, "u1", "One")

	start := time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC)
	sp := &models.Sprint{ProjectID: p.ID, Name: "Sprint 1", StartDate: start, EndDate: models.AddDays(start, 7)}
	require.NoError(t, s.CreateSprint(ctx, sp))

	item := &models.WorkItem{ProjectID: p.ID, Number: 1, Title: "Login"}
	require.NoError(t, s.CreateItem(ctx, item))
	assert.Equal(t, models.PriorityDefault, item.Priority)

	m := &models.SprintMember{SprintID: sp.ID, UserID: "u1", DailyHours: 6}
	require.NoError(t, s.CreateSprintMember(ctx, m))

	item.SprintID = &sp.ID
	require.NoError(t, s.UpdateItem(ctx, item))
	require.NoError(t, s.AssignItem(ctx, sp.ID, m.ID, item.ID))

	got, err := s.GetSprintMemberByUser(ctx, sp.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{item.ID}, got.ItemIDs)

	assignee, err := s.GetItemAssignee(ctx, sp.ID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, assignee.ID)

	backlog, err := s.ListItems(ctx, ItemFilter{ProjectID: p.ID, Backlog: true})
	require.NoError(t, err)
	assert.Empty(t, backlog)

	sp.State = models.SprintActive
	cost := 40
	sp.BaselineCost = &cost
	sp.ActualStart = models.DatePtr(start)
	require.NoError(t, s.UpdateSprint(ctx, sp))

	other := &models.Sprint{ProjectID: p.ID, Name: "Sprint 2", State: models.SprintActive,
		StartDate: start, EndDate: models.AddDays(start, 7)}
	assert.Error(t, s.CreateSprint(ctx, other), "only one active sprint per project")

	loaded, err := s.GetSprint(ctx, sp.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.BaselineCost)
	assert.Equal(t, 40, *loaded.BaselineCost)
	assert.Equal(t, 7, loaded.Days())

	inProgress := models.ItemInProgress
	require.NoError(t, s.CreateIncrement(ctx, &models.Increment{ItemID: item.ID, SprintID: sp.ID,
		SprintMemberID: &m.ID, UserID: "u1", Date: models.AddDays(start, 1), Hours: 5}))
	require.NoError(t, s.CreateIncrement(ctx, &models.Increment{ItemID: item.ID, SprintID: sp.ID,
		SprintMemberID: &m.ID, UserID: "u1", Date: start, State: &inProgress}))

	incs, err := s.ListIncrements(ctx, IncrementFilter{SprintID: sp.ID})
	require.NoError(t, err)
	require.Len(t, incs, 2)
	assert.True(t, incs[0].IsTransition(), "ordered by date")
	assert.Equal(t, 5, incs[1].Hours)

	day := models.AddDays(start, 1)
	incs, err = s.ListIncrements(ctx, IncrementFilter{SprintID: sp.ID, Date: &day})
	require.NoError(t, err)
	require.Len(t, incs, 1)

	require.NoError(t, s.AddIncrementHours(ctx, incs[0].ID, 3))
	incs, err = s.ListIncrements(ctx, IncrementFilter{SprintID: sp.ID, Date: &day})
	require.NoError(t, err)
	assert.Equal(t, 8, incs[0].Hours)

	transitions, err := s.ListIncrements(ctx, IncrementFilter{SprintID: sp.ID, Date: &start})
	require.NoError(t, err)
	require.Len(t, transitions, 1)
	assert.True(t, errors.Is(s.AddIncrementHours(ctx, transitions[0].ID, 1), ErrNotFound),
		"transition rows are immutable")

	// removing the member keeps the ledger rows but clears the member link
	require.NoError(t, s.DeleteSprintMember(ctx, m.ID))
	incs, err = s.ListIncrements(ctx, IncrementFilter{ItemID: item.ID})
	require.NoError(t, err)
	require.Len(t, incs, 2)
	assert.Nil(t, incs[0].SprintMemberID)

	_, err = s.GetItemAssignee(ctx, sp.ID, item.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestComments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, s, "alpha")
	u := seedUser(t, s, "u1", "One")

	item := &models.WorkItem{ProjectID: p.ID, Number: 1, Title: "Search"}
	require.NoError(t, s.CreateItem(ctx, item))
	require.NoError(t, s.CreateComment(ctx, &models.Comment{ItemID: item.ID, AuthorID: &u.ID, Text: "needs design"}))

	comments, err := s.ListComments(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "needs design", comments[0].Text)
	assert.Equal(t, "u1", *comments[0].AuthorID)
}

// --- Transactions ---

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx Store) error {
		seedUser(t, tx, "u1", "One")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetUser(ctx, "u1")
	assert.True(t, errors.Is(err, ErrNotFound))

	err = s.WithTx(ctx, func(tx Store) error {
		seedUser(t, tx, "u2", "Two")
		// nested calls join the outer transaction
		return tx.WithTx(ctx, func(inner Store) error {
			return inner.GrantPermission(ctx, "u2", "global", models.PermAudit)
		})
	})
	require.NoError(t, err)

	ok, err := s.HasPermission(ctx, "u2", "global", models.PermAudit)
	require.NoError(t, err)
	assert.True(t, ok)
}
