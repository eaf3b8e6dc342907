package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/scrum/internal/guard"
	"github.com/joescharf/scrum/internal/ledger"
	"github.com/joescharf/scrum/internal/models"
	"github.com/joescharf/scrum/internal/notify"
	"github.com/joescharf/scrum/internal/roles"
	"github.com/joescharf/scrum/internal/store"
)

var today = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func day(n int) *time.Time {
	d := models.AddDays(today, n)
	return &d
}

func intPtr(n int) *int { return &n }

type fixture struct {
	engine  *Engine
	store   *store.SQLiteStore
	notes   *notify.Recorder
	project *models.Project
	ctx     context.Context
}

// newFixture registers sm (the administrator), po, dev, dev2 and guest, and
// creates project Apollo with sm as Scrum Master, po as Product Owner and dev
// and dev2 as Developers.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() { s.Close() })

	notes := &notify.Recorder{}
	e := New(s, notes, slog.New(slog.NewTextHandler(io.Discard, nil)))

	for _, id := range []string{"sm", "po", "dev", "dev2", "guest"} {
		require.NoError(t, e.RegisterUser(ctx, &models.User{ID: id, Name: id, Email: id + "@example.com"}))
	}

	p, err := e.CreateProject(ctx, "sm", NewProject{
		Name:              "Apollo",
		StartDate:         day(0),
		EndDate:           day(21),
		DefaultSprintDays: intPtr(7),
	}, today)
	require.NoError(t, err)

	require.NoError(t, e.AssignRole(ctx, "sm", "po", p.ID, models.RoleProductOwner))
	require.NoError(t, e.AssignRole(ctx, "sm", "dev", p.ID, models.RoleDeveloper))
	require.NoError(t, e.AssignRole(ctx, "sm", "dev2", p.ID, models.RoleDeveloper))

	return &fixture{engine: e, store: s, notes: notes, project: p, ctx: ctx}
}

func (f *fixture) can(t *testing.T, user string, perm models.Permission) bool {
	t.Helper()
	ok, err := f.engine.CheckPermission(f.ctx, user, f.project.ID, perm)
	require.NoError(t, err)
	return ok
}

// activeSprint starts the project and a 7-day sprint with dev on item #1
// (estimate 14) and dev2 on item #2 (estimate 7).
func (f *fixture) activeSprint(t *testing.T) (*models.Sprint, *models.WorkItem, *models.WorkItem) {
	t.Helper()
	e, ctx := f.engine, f.ctx

	_, err := e.StartProject(ctx, "sm", "Apollo", today)
	require.NoError(t, err)

	one, err := e.CreateItem(ctx, "po", "Apollo", NewItem{Title: "Login", Priority: 1, EstimatedHours: intPtr(14)})
	require.NoError(t, err)
	two, err := e.CreateItem(ctx, "po", "Apollo", NewItem{Title: "Logout", EstimatedHours: intPtr(7)})
	require.NoError(t, err)

	sp, warnings, err := e.CreateSprint(ctx, "sm", "Apollo", NewSprint{Name: "Sprint 1", StartDate: today}, today)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	_, err = e.AddSprintMember(ctx, "sm", sp.ID, "dev", 2)
	require.NoError(t, err)
	_, err = e.AddSprintMember(ctx, "sm", sp.ID, "dev2", 1)
	require.NoError(t, err)
	require.NoError(t, e.PlanItem(ctx, "sm", sp.ID, one.ID, "dev"))
	require.NoError(t, e.PlanItem(ctx, "sm", sp.ID, two.ID, "dev2"))

	warnings, err = e.StartSprint(ctx, "sm", sp.ID, today)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	sp, err = e.Sprint(ctx, "sm", sp.ID)
	require.NoError(t, err)
	return sp, one, two
}

func TestRegisterUser_FirstUserAdministers(t *testing.T) {
	f := newFixture(t)

	perms, err := f.engine.Permissions(f.ctx, "sm", ledger.Global)
	require.NoError(t, err)
	assert.ElementsMatch(t, models.GlobalPermissions(), perms)

	perms, err = f.engine.Permissions(f.ctx, "po", ledger.Global)
	require.NoError(t, err)
	assert.Empty(t, perms)

	err = f.engine.RegisterUser(f.ctx, &models.User{ID: "x", Email: ""})
	assert.ErrorIs(t, err, guard.ErrInconsistent)
}

func TestCreateProject_DefaultsAndCreatorRole(t *testing.T) {
	f := newFixture(t)

	team, err := f.engine.Team(f.ctx, "guest", "Apollo")
	assert.ErrorIs(t, err, guard.ErrForbidden, "non-members cannot see the project")
	assert.Nil(t, team)

	team, err = f.engine.Team(f.ctx, "sm", "Apollo")
	require.NoError(t, err)
	require.Len(t, team, 4)

	rs, err := f.engine.Roles(f.ctx, "sm", "Apollo")
	require.NoError(t, err)
	assert.Len(t, rs, 4)

	assert.True(t, f.can(t, "sm", models.PermManageTeam))
	assert.True(t, f.can(t, "sm", models.PermView))

	_, err = f.engine.CreateProject(f.ctx, "po", NewProject{Name: "Gemini"}, today)
	assert.ErrorIs(t, err, guard.ErrForbidden)

	_, err = f.engine.CreateProject(f.ctx, "sm", NewProject{Name: "Apollo"}, today)
	assert.ErrorIs(t, err, guard.ErrInconsistent)

	_, err = f.engine.CreateProject(f.ctx, "sm", NewProject{Name: "Late", StartDate: day(-1)}, today)
	assert.ErrorIs(t, err, guard.ErrBlocked)
}

func TestStartProject(t *testing.T) {
	f := newFixture(t)

	warnings, err := f.engine.StartProject(f.ctx, "sm", "Apollo", today)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	p, err := f.engine.Project(f.ctx, "sm", f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectActive, p.State)
	assert.Contains(t, f.notes.Events(), notify.Event{Activity: "Apollo", Kind: notify.KindProject, Event: "started"})

	_, err = f.engine.StartProject(f.ctx, "sm", "Apollo", today)
	assert.ErrorIs(t, err, guard.ErrIllegalTransition)
}

func TestStartProject_BlockedWithoutBacklogOwner(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.RemoveRole(f.ctx, "sm", "po", "Apollo"))

	_, err := f.engine.StartProject(f.ctx, "sm", "Apollo", today)
	var blocked *guard.BlockedError
	require.True(t, errors.As(err, &blocked))
	assert.Equal(t, []string{"no team member holds the manage_backlog permission"}, blocked.Result.Errors)

	p, err := f.engine.Project(f.ctx, "sm", "Apollo")
	require.NoError(t, err)
	assert.Equal(t, models.ProjectPending, p.State)
}

func TestStartProject_RequiresManageProject(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.StartProject(f.ctx, "po", "Apollo", today)
	assert.ErrorIs(t, err, guard.ErrForbidden)
}

func TestNotificationFailureKeepsTransition(t *testing.T) {
	f := newFixture(t)
	f.notes.Err = errors.New("mail server down")

	_, err := f.engine.StartProject(f.ctx, "sm", "Apollo", today)
	require.NoError(t, err)

	p, err := f.engine.Project(f.ctx, "sm", "Apollo")
	require.NoError(t, err)
	assert.Equal(t, models.ProjectActive, p.State)
}

func TestAssignRole_ReplacesPermissions(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.can(t, "dev", models.PermDevelop))

	require.NoError(t, f.engine.AssignRole(f.ctx, "sm", "dev", "Apollo", models.RoleProductOwner))
	assert.False(t, f.can(t, "dev", models.PermDevelop))
	assert.True(t, f.can(t, "dev", models.PermManageBacklog))
	assert.True(t, f.can(t, "dev", models.PermView), "view survives reassignment")

	require.NoError(t, f.engine.RemoveRole(f.ctx, "sm", "dev", "Apollo"))
	assert.False(t, f.can(t, "dev", models.PermManageBacklog))
	assert.False(t, f.can(t, "dev", models.PermView))
}

func TestAssignRole_Guards(t *testing.T) {
	f := newFixture(t)

	err := f.engine.AssignRole(f.ctx, "po", "guest", "Apollo", models.RoleDeveloper)
	assert.ErrorIs(t, err, guard.ErrForbidden)
	assert.False(t, f.can(t, "guest", models.PermView), "nothing granted on refusal")

	err = f.engine.AssignRole(f.ctx, "sm", "guest", "Apollo", "Astronaut")
	assert.ErrorIs(t, err, guard.ErrInconsistent)

	err = f.engine.AssignRole(f.ctx, "sm", "sm", "Apollo", models.RoleDeveloper)
	assert.ErrorIs(t, err, guard.ErrForbidden, "self-demotion from manage_team")
	assert.True(t, f.can(t, "sm", models.PermManageTeam))
}

func TestAssignRole_ConcurrentCallsLeaveOneRole(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 10; i++ {
		var wg sync.WaitGroup
		errs := make([]error, 2)
		for j, role := range []string{models.RoleProductOwner, models.RoleDeveloper} {
			wg.Add(1)
			go func(j int, role string) {
				defer wg.Done()
				errs[j] = f.engine.AssignRole(f.ctx, "sm", "guest", "Apollo", role)
			}(j, role)
		}
		wg.Wait()
		require.NoError(t, errs[0])
		require.NoError(t, errs[1])

		dev := f.can(t, "guest", models.PermDevelop)
		backlog := f.can(t, "guest", models.PermManageBacklog)
		assert.True(t, dev != backlog, "exactly one role's permissions are granted")

		role, err := roles.New(f.store).RoleOf(f.ctx, "guest", f.project.ID)
		require.NoError(t, err)
		assert.Equal(t, dev, role.Name == models.RoleDeveloper)
	}
}

func TestRoleAdministration(t *testing.T) {
	f := newFixture(t)
	e, ctx := f.engine, f.ctx

	_, err := e.CreateRole(ctx, "sm", "Apollo", "QA", []models.Permission{models.PermDevelop})
	require.NoError(t, err)
	require.NoError(t, e.AssignRole(ctx, "sm", "guest", "Apollo", "QA"))
	assert.True(t, f.can(t, "guest", models.PermDevelop))

	require.NoError(t, e.GrantRolePermission(ctx, "sm", "Apollo", "QA", models.PermManageBacklog))
	assert.True(t, f.can(t, "guest", models.PermManageBacklog))

	require.NoError(t, e.RevokeRolePermission(ctx, "sm", "Apollo", "QA", models.PermDevelop))
	assert.False(t, f.can(t, "guest", models.PermDevelop))
	assert.True(t, f.can(t, "guest", models.PermView))

	err = e.RevokeRolePermission(ctx, "sm", "Apollo", models.RoleScrumMaster, models.PermManageTeam)
	assert.ErrorIs(t, err, guard.ErrForbidden)

	err = e.DeleteRole(ctx, "sm", "Apollo", "QA")
	assert.ErrorIs(t, err, guard.ErrInconsistent, "role still has members")
	err = e.DeleteRole(ctx, "sm", "Apollo", models.RoleScrumMaster)
	assert.ErrorIs(t, err, guard.ErrForbidden, "own role")

	_, err = e.RenameRole(ctx, "sm", "Apollo", models.RoleStakeholder, "Observer")
	require.NoError(t, err)
	require.NoError(t, e.DeleteRole(ctx, "sm", "Apollo", "Observer"))

	rs, err := e.Roles(ctx, "sm", "Apollo")
	require.NoError(t, err)
	assert.Len(t, rs, 4)
}

func TestRoleTransfer_RoundTrip(t *testing.T) {
	f := newFixture(t)
	e, ctx := f.engine, f.ctx

	_, err := e.CreateRole(ctx, "sm", "Apollo", "QA", []models.Permission{models.PermManageBacklog, models.PermDevelop})
	require.NoError(t, err)
	exported, err := e.ExportRoles(ctx, "sm", "Apollo")
	require.NoError(t, err)

	data, err := roles.EncodeRoles(exported, roles.FormatJSON)
	require.NoError(t, err)
	decoded, err := roles.DecodeRoles(data, roles.FormatJSON)
	require.NoError(t, err)

	_, err = e.CreateProject(ctx, "sm", NewProject{Name: "Gemini"}, today)
	require.NoError(t, err)
	result, err := e.ImportRoles(ctx, "sm", "Gemini", decoded)
	require.NoError(t, err)
	require.Len(t, result.Created, 1)
	assert.Len(t, result.Skipped, 4)

	again, err := e.ExportRoles(ctx, "sm", "Gemini")
	require.NoError(t, err)
	assert.Equal(t, exported, again)
}

func TestStartSprint_NoDevelopers(t *testing.T) {
	f := newFixture(t)
	e, ctx := f.engine, f.ctx

	_, err := e.StartProject(ctx, "sm", "Apollo", today)
	require.NoError(t, err)
	sp, _, err := e.CreateSprint(ctx, "sm", "Apollo", NewSprint{Name: "Empty", StartDate: today}, today)
	require.NoError(t, err)

	_, err = e.StartSprint(ctx, "sm", sp.ID, today)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one developer")

	got, err := e.Sprint(ctx, "sm", sp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SprintPending, got.State)
}

func TestWorkItemFlow(t *testing.T) {
	f := newFixture(t)
	e, ctx := f.engine, f.ctx
	sp, one, _ := f.activeSprint(t)

	effect, err := e.ApplyWorkItemAction(ctx, "dev", one.ID, models.ActionLog, 5, today)
	require.NoError(t, err)
	assert.Equal(t, models.ItemInProgress, effect.To)

	item, err := e.Item(ctx, "dev", one.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, item.WorkedHours)

	_, err = e.ApplyWorkItemAction(ctx, "dev", one.ID, models.ActionReview, 0, today)
	require.NoError(t, err)
	_, err = e.ApplyWorkItemAction(ctx, "sm", one.ID, models.ActionReject, 0, today)
	require.NoError(t, err)
	item, err = e.Item(ctx, "dev", one.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ItemInProgress, item.State, "worked hours send a rejection back to in progress")

	_, err = e.ApplyWorkItemAction(ctx, "dev", one.ID, models.ActionReview, 0, today)
	require.NoError(t, err)
	_, err = e.ApplyWorkItemAction(ctx, "sm", one.ID, models.ActionApprove, 0, today)
	require.NoError(t, err)

	series, err := e.ComputeBurndown(ctx, "po", sp.ID, today)
	require.NoError(t, err)
	assert.Equal(t, 21, series.Cost)
	assert.Equal(t, []int{16}, series.Actual)
	assert.InDelta(t, 21.0, series.Ideal[0], 1e-9)
	assert.InDelta(t, 0.0, series.Ideal[7], 1e-9)

	activity, err := e.Activity(ctx, "po", "Apollo")
	require.NoError(t, err)
	assert.Len(t, activity, 6, "one hours row and five transition rows")

	report, err := e.Audit(ctx, "sm", "Apollo")
	require.NoError(t, err)
	assert.True(t, report.Clean())
	assert.Equal(t, 5, report.Hours)
}

func TestApplyWorkItemAction_Refusals(t *testing.T) {
	f := newFixture(t)
	e, ctx := f.engine, f.ctx
	_, one, two := f.activeSprint(t)

	_, err := e.ApplyWorkItemAction(ctx, "dev2", one.ID, models.ActionLog, 3, today)
	assert.ErrorIs(t, err, guard.ErrForbidden, "not assigned to the item")

	_, err = e.ApplyWorkItemAction(ctx, "po", two.ID, models.ActionStart, 0, today)
	assert.ErrorIs(t, err, guard.ErrForbidden, "no develop permission")

	_, err = e.ApplyWorkItemAction(ctx, "dev", one.ID, models.ActionLog, 0, today)
	assert.ErrorIs(t, err, guard.ErrInconsistent)

	_, err = e.ApplyWorkItemAction(ctx, "sm", one.ID, models.ActionApprove, 0, today)
	assert.ErrorIs(t, err, guard.ErrIllegalTransition)

	_, err = e.ApplyWorkItemAction(ctx, "dev", one.ID, "fly", 0, today)
	assert.ErrorIs(t, err, guard.ErrInconsistent)

	outside, err := e.CreateItem(ctx, "po", "Apollo", NewItem{Title: "Later"})
	require.NoError(t, err)
	_, err = e.ApplyWorkItemAction(ctx, "sm", outside.ID, models.ActionStart, 0, today)
	assert.ErrorIs(t, err, guard.ErrInconsistent, "not in the active sprint")

	incs, err := f.store.ListIncrements(ctx, store.IncrementFilter{ItemID: one.ID})
	require.NoError(t, err)
	assert.Empty(t, incs, "refused actions leave no ledger rows")

	_, err = e.ApplyWorkItemAction(ctx, "po", outside.ID, models.ActionCancel, 0, today)
	require.NoError(t, err, "cancel works outside a sprint")
	_, err = e.ApplyWorkItemAction(ctx, "po", outside.ID, models.ActionRestore, 0, today)
	require.NoError(t, err)
}

func TestFinishSprint_RollsOverAndKeepsBurndown(t *testing.T) {
	f := newFixture(t)
	e, ctx := f.engine, f.ctx
	sp, one, two := f.activeSprint(t)

	_, err := e.ApplyWorkItemAction(ctx, "dev", one.ID, models.ActionLog, 14, today)
	require.NoError(t, err)
	_, err = e.ApplyWorkItemAction(ctx, "dev", one.ID, models.ActionReview, 0, today)
	require.NoError(t, err)
	_, err = e.ApplyWorkItemAction(ctx, "sm", one.ID, models.ActionApprove, 0, today)
	require.NoError(t, err)
	_, err = e.ApplyWorkItemAction(ctx, "dev2", two.ID, models.ActionLog, 2, today)
	require.NoError(t, err)

	later := models.AddDays(today, 7)
	before, err := e.ComputeBurndown(ctx, "sm", sp.ID, later)
	require.NoError(t, err)

	warnings, rolled, err := e.FinishSprint(ctx, "sm", sp.ID, later)
	require.NoError(t, err)
	require.Len(t, rolled, 1)
	assert.Equal(t, two.ID, rolled[0].ID)
	assert.Contains(t, warnings, `work item #2 "Logout" is in_progress`)

	backlog, err := e.Backlog(ctx, "po", "Apollo")
	require.NoError(t, err)
	require.Len(t, backlog, 1)
	assert.Equal(t, models.ItemInProgress, backlog[0].State, "rolled-over items keep their state")

	after, err := e.ComputeBurndown(ctx, "sm", sp.ID, later)
	require.NoError(t, err)
	assert.Equal(t, before.Actual, after.Actual)
	assert.Equal(t, []int{5, 5, 5, 5, 5, 5, 5, 5}, after.Actual)
}

func TestRestore_ItemOfClosedSprintReturnsToBacklog(t *testing.T) {
	f := newFixture(t)
	e, ctx := f.engine, f.ctx
	sp, _, two := f.activeSprint(t)

	_, err := e.ApplyWorkItemAction(ctx, "po", two.ID, models.ActionCancel, 0, today)
	require.NoError(t, err)

	later := models.AddDays(today, 7)
	_, rolled, err := e.FinishSprint(ctx, "sm", sp.ID, later)
	require.NoError(t, err)
	for _, w := range rolled {
		assert.NotEqual(t, two.ID, w.ID, "cancelled items stay with the closed sprint")
	}

	effect, err := e.ApplyWorkItemAction(ctx, "po", two.ID, models.ActionRestore, 0, later)
	require.NoError(t, err)
	assert.Equal(t, models.ItemPending, effect.To)

	backlog, err := e.Backlog(ctx, "po", "Apollo")
	require.NoError(t, err)
	var restored *models.WorkItem
	for _, w := range backlog {
		if w.ID == two.ID {
			restored = w
		}
	}
	require.NotNil(t, restored, "restored item is back on the product backlog")
	assert.Nil(t, restored.SprintID)

	closed, err := e.SprintBacklog(ctx, "sm", sp.ID)
	require.NoError(t, err)
	for _, w := range closed {
		assert.NotEqual(t, two.ID, w.ID)
	}

	next, _, err := e.CreateSprint(ctx, "sm", "Apollo", NewSprint{Name: "Sprint 2", StartDate: later}, later)
	require.NoError(t, err)
	_, err = e.AddSprintMember(ctx, "sm", next.ID, "dev2", 1)
	require.NoError(t, err)
	require.NoError(t, e.PlanItem(ctx, "sm", next.ID, two.ID, "dev2"))

	got, err := e.Item(ctx, "po", two.ID)
	require.NoError(t, err)
	require.NotNil(t, got.SprintID)
	assert.Equal(t, next.ID, *got.SprintID)
}

func TestCancelProject_FreezesSprintsAndItems(t *testing.T) {
	f := newFixture(t)
	e, ctx := f.engine, f.ctx
	sp, one, two := f.activeSprint(t)

	require.NoError(t, e.CancelProject(ctx, "sm", "Apollo", today))

	active, err := e.ActiveSprint(ctx, "sm", "Apollo")
	require.NoError(t, err)
	assert.Nil(t, active, "cancelling the project closes its sprint")

	_, err = e.ApplyWorkItemAction(ctx, "dev", one.ID, models.ActionLog, 2, today)
	assert.ErrorIs(t, err, guard.ErrIllegalTransition)
	_, err = e.ApplyWorkItemAction(ctx, "po", two.ID, models.ActionCancel, 0, today)
	assert.ErrorIs(t, err, guard.ErrIllegalTransition)

	_, err = e.ExtendSprint(ctx, "sm", sp.ID, *day(10))
	assert.ErrorIs(t, err, guard.ErrIllegalTransition)
	_, err = e.AddSprintMember(ctx, "sm", sp.ID, "po", 1)
	assert.ErrorIs(t, err, guard.ErrIllegalTransition)
	err = e.UnplanItem(ctx, "sm", sp.ID, one.ID)
	assert.ErrorIs(t, err, guard.ErrIllegalTransition)

	incs, err := f.store.ListIncrements(ctx, store.IncrementFilter{ItemID: one.ID})
	require.NoError(t, err)
	assert.Empty(t, incs, "no hours land on a cancelled project")
}

func TestBacklogVisibility(t *testing.T) {
	f := newFixture(t)
	e, ctx := f.engine, f.ctx

	w, err := e.CreateItem(ctx, "po", "Apollo", NewItem{Title: "Dropped"})
	require.NoError(t, err)
	_, err = e.CreateItem(ctx, "po", "Apollo", NewItem{Title: "Kept"})
	require.NoError(t, err)
	_, err = e.ApplyWorkItemAction(ctx, "po", w.ID, models.ActionCancel, 0, today)
	require.NoError(t, err)

	mine, err := e.Backlog(ctx, "dev", "Apollo")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	all, err := e.Backlog(ctx, "po", "Apollo")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = e.CreateItem(ctx, "dev", "Apollo", NewItem{Title: "Sneaky"})
	assert.ErrorIs(t, err, guard.ErrForbidden)
	_, err = e.CreateItem(ctx, "po", "Apollo", NewItem{Title: "Urgent", Priority: 9})
	assert.ErrorIs(t, err, guard.ErrInconsistent)
}

func TestBoardVisibility(t *testing.T) {
	f := newFixture(t)
	f.activeSprint(t)

	b, err := f.engine.Board(f.ctx, "sm", "Apollo")
	require.NoError(t, err)
	assert.Equal(t, 2, b.Count(models.ItemPending))

	b, err = f.engine.Board(f.ctx, "dev", "Apollo")
	require.NoError(t, err)
	assert.Equal(t, 1, b.Count(models.ItemPending))
	assert.Equal(t, "dev", b.Columns[0].Cards[0].Assignee)
}

func TestHoursToday(t *testing.T) {
	f := newFixture(t)
	_, one, _ := f.activeSprint(t)

	_, err := f.engine.ApplyWorkItemAction(f.ctx, "dev", one.ID, models.ActionLog, 1, today)
	require.NoError(t, err)

	d, err := f.engine.HoursToday(f.ctx, "dev", "Apollo", today)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Logged)
	assert.Equal(t, 2, d.Available)
	assert.Equal(t, 1, d.Remaining())

	_, err = f.engine.HoursToday(f.ctx, "po", "Apollo", today)
	assert.ErrorIs(t, err, guard.ErrInconsistent)
}

func TestSendReminders(t *testing.T) {
	f := newFixture(t)

	sent, err := f.engine.SendReminders(f.ctx, today)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, "Apollo", sent[0].Name)

	events := f.notes.Events()
	last := events[len(events)-1]
	assert.Equal(t, notify.KindReminder, last.Kind)
	assert.Equal(t, `the start of project "Apollo" is scheduled for today`, last.Event)

	sent, err = f.engine.SendReminders(f.ctx, models.AddDays(today, 1))
	require.NoError(t, err)
	assert.Empty(t, sent)
}

func TestSetGlobalPermissions(t *testing.T) {
	f := newFixture(t)
	e, ctx := f.engine, f.ctx

	require.NoError(t, e.SetGlobalPermissions(ctx, "sm", "po", []models.Permission{models.PermCreateProject}))
	ok, err := e.CheckPermission(ctx, "po", ledger.Global, models.PermCreateProject)
	require.NoError(t, err)
	assert.True(t, ok)

	err = e.SetGlobalPermissions(ctx, "po", "po", []models.Permission{models.PermAdminister})
	assert.ErrorIs(t, err, guard.ErrForbidden)

	err = e.SetGlobalPermissions(ctx, "sm", "sm", nil)
	assert.ErrorIs(t, err, guard.ErrForbidden, "administrators keep their own administer")

	err = e.SetGlobalPermissions(ctx, "sm", "po", []models.Permission{models.PermDevelop})
	assert.ErrorIs(t, err, guard.ErrInconsistent)

	require.NoError(t, e.SetUserActive(ctx, "sm", "po", false))
	_, err = e.Project(ctx, "po", "Apollo")
	assert.ErrorIs(t, err, guard.ErrForbidden, "inactive users are refused")
}
