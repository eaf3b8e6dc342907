package sprint

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/scrum/internal/guard"
	"github.com/joescharf/scrum/internal/models"
	"github.com/joescharf/scrum/internal/roles"
	"github.com/joescharf/scrum/internal/store"
)

type fixture struct {
	store   *store.SQLiteStore
	machine *Machine
	project *models.Project
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() { s.Close() })

	for _, id := range []string{"sm", "dev", "po"} {
		require.NoError(t, s.CreateUser(ctx, &models.User{ID: id, Name: id, Email: id + "@example.com", Active: true}))
	}
	p := &models.Project{Name: "alpha", State: models.ProjectActive, DefaultSprintDays: intPtr(7)}
	require.NoError(t, s.CreateProject(ctx, p))

	reg := roles.New(s)
	_, err = reg.CreateDefaultRoles(ctx, p.ID)
	require.NoError(t, err)
	require.NoError(t, reg.AssignRole(ctx, "sm", "sm", p.ID, models.RoleScrumMaster))
	require.NoError(t, reg.AssignRole(ctx, "sm", "dev", p.ID, models.RoleDeveloper))
	require.NoError(t, reg.AssignRole(ctx, "sm", "po", p.ID, models.RoleProductOwner))

	return &fixture{store: s, machine: New(s), project: p}
}

func (f *fixture) item(t *testing.T, number int, estimate *int) *models.WorkItem {
	t.Helper()
	w := &models.WorkItem{ProjectID: f.project.ID, Number: number, Title: "item", EstimatedHours: estimate}
	require.NoError(t, f.store.CreateItem(context.Background(), w))
	return w
}

func (f *fixture) sprint(t *testing.T, name string) *models.Sprint {
	t.Helper()
	sp, r, err := f.machine.Create(context.Background(), f.project, name, "", today, 0, today)
	require.NoError(t, err)
	assert.Empty(t, r.Errors)
	assert.Equal(t, 7, sp.Days(), "defaults to the project sprint length")
	return sp
}

func TestStart_NoDevelopers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sp := f.sprint(t, "S1")

	r, err := f.machine.Start(ctx, sp, today)
	require.Error(t, err)
	assert.True(t, errors.Is(err, guard.ErrBlocked))
	assert.True(t, containsSubstring(r.Errors, "at least one developer"))

	got, err := f.store.GetSprint(ctx, sp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SprintPending, got.State)
}

func TestStart_SnapshotsPlan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sp := f.sprint(t, "S1")

	_, err := f.machine.AddMember(ctx, sp, "dev", 10)
	require.NoError(t, err)
	w1 := f.item(t, 1, intPtr(30))
	w2 := f.item(t, 2, intPtr(40))
	require.NoError(t, f.machine.AddItem(ctx, sp, w1, "dev"))
	require.NoError(t, f.machine.AddItem(ctx, sp, w2, "dev"))

	r, err := f.machine.Start(ctx, sp, today)
	require.NoError(t, err)
	assert.Empty(t, r.Warnings)

	got, err := f.store.GetSprint(ctx, sp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SprintActive, got.State)
	require.NotNil(t, got.BaselineCost)
	assert.Equal(t, 70, *got.BaselineCost)
	assert.Equal(t, "2026-06-08", models.FormatDate(got.OriginalEndDate))

	active, err := f.machine.Active(ctx, f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, sp.ID, active.ID)

	// a second sprint cannot start while this one runs
	s2 := f.sprint(t, "S2")
	_, err = f.machine.AddMember(ctx, s2, "dev", 4)
	require.NoError(t, err)
	require.NoError(t, f.machine.AddItem(ctx, s2, f.item(t, 3, intPtr(4)), "dev"))
	r, err = f.machine.Start(ctx, s2, today)
	require.Error(t, err)
	assert.Contains(t, r.Errors, `sprint "S1" is already active`)
	assert.Contains(t, r.Warnings[0], "before sprint \"S1\" ends")

	// extension keeps the planned end
	require.NoError(t, f.machine.Extend(ctx, got, models.AddDays(today, 10)))
	got, err = f.store.GetSprint(ctx, sp.ID)
	require.NoError(t, err)
	assert.Equal(t, "2026-06-11", got.EndDate.Format(models.DateLayout))
	assert.Equal(t, "2026-06-08", models.FormatDate(got.OriginalEndDate))
	assert.Error(t, f.machine.Extend(ctx, got, today))

	err = f.machine.Edit(ctx, got, Changes{Days: intPtr(3)})
	assert.True(t, errors.Is(err, guard.ErrInconsistent))
}

func TestFinish_RollsOpenItemsOver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sp := f.sprint(t, "S1")

	_, err := f.machine.AddMember(ctx, sp, "dev", 8)
	require.NoError(t, err)
	done := f.item(t, 1, intPtr(5))
	open := f.item(t, 2, intPtr(5))
	require.NoError(t, f.machine.AddItem(ctx, sp, done, "dev"))
	require.NoError(t, f.machine.AddItem(ctx, sp, open, "dev"))
	_, err = f.machine.Start(ctx, sp, today)
	require.NoError(t, err)

	done.State = models.ItemDone
	require.NoError(t, f.store.UpdateItem(ctx, done))
	open.State = models.ItemInProgress
	require.NoError(t, f.store.UpdateItem(ctx, open))

	r, rolled, err := f.machine.Finish(ctx, sp, models.AddDays(today, 7))
	require.NoError(t, err)
	assert.Equal(t, []string{`work item #2 "item" is in_progress`}, r.Warnings)
	require.Len(t, rolled, 1)
	assert.Equal(t, open.ID, rolled[0].ID)

	got, err := f.store.GetItem(ctx, open.ID)
	require.NoError(t, err)
	assert.Nil(t, got.SprintID, "open items return to the product backlog")
	assert.Equal(t, models.ItemInProgress, got.State, "not force-completed")

	got, err = f.store.GetItem(ctx, done.ID)
	require.NoError(t, err)
	assert.True(t, got.InSprint(sp.ID))

	closed, err := f.store.GetSprint(ctx, sp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SprintClosed, closed.State)
	assert.Equal(t, "2026-06-08", models.FormatDate(closed.ActualEnd))

	require.NoError(t, f.machine.SetReview(ctx, closed, "  went well  "))
	assert.Equal(t, "went well", closed.Review)

	_, _, err = f.machine.Finish(ctx, closed, today)
	assert.True(t, errors.Is(err, guard.ErrIllegalTransition))
}

func TestTeamAndBacklogRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sp := f.sprint(t, "S1")

	_, err := f.machine.AddMember(ctx, sp, "po", 4)
	assert.True(t, errors.Is(err, guard.ErrInconsistent), "product owner lacks develop")

	_, err = f.machine.AddMember(ctx, sp, "dev", 25)
	assert.Error(t, err)

	_, err = f.machine.AddMember(ctx, sp, "dev", 6)
	require.NoError(t, err)
	_, err = f.machine.AddMember(ctx, sp, "dev", 6)
	assert.Error(t, err, "already in the sprint")

	m, err := f.machine.SetHours(ctx, sp, "dev", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, m.DailyHours)

	w := f.item(t, 1, intPtr(5))
	assert.Error(t, f.machine.AddItem(ctx, sp, w, "sm"), "sm is not in the sprint")
	require.NoError(t, f.machine.AddItem(ctx, sp, w, "dev"))

	other := f.sprint(t, "S2")
	_, err = f.machine.AddMember(ctx, other, "dev", 6)
	require.NoError(t, err)
	assert.True(t, errors.Is(f.machine.AddItem(ctx, other, w, "dev"), guard.ErrInconsistent))

	c, err := f.machine.Capacity(ctx, sp)
	require.NoError(t, err)
	assert.Equal(t, 21, c.TotalCapacity)
	assert.Equal(t, 5, c.BacklogCost)

	require.NoError(t, f.machine.RemoveItem(ctx, sp, w))
	assert.Nil(t, w.SprintID)
	assert.Error(t, f.machine.RemoveItem(ctx, sp, w))

	require.NoError(t, f.machine.RemoveMember(ctx, sp, "dev"))
	assert.True(t, errors.Is(f.machine.RemoveMember(ctx, sp, "dev"), guard.ErrInconsistent))
}
