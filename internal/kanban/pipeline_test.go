package kanban

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/scrum/internal/guard"
	"github.com/joescharf/scrum/internal/models"
	"github.com/joescharf/scrum/internal/store"
)

var today = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	store    *store.SQLiteStore
	pipeline *Pipeline
	sprint   *models.Sprint
	member   *models.SprintMember
	item     *models.WorkItem
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "dev", Email: "dev@example.com", Active: true}))
	p := &models.Project{Name: "alpha", State: models.ProjectActive}
	require.NoError(t, s.CreateProject(ctx, p))
	sp := &models.Sprint{ProjectID: p.ID, Name: "S1", State: models.SprintActive,
		StartDate: today, EndDate: models.AddDays(today, 7)}
	require.NoError(t, s.CreateSprint(ctx, sp))
	m := &models.SprintMember{SprintID: sp.ID, UserID: "dev", DailyHours: 8}
	require.NoError(t, s.CreateSprintMember(ctx, m))
	est := 20
	w := &models.WorkItem{ProjectID: p.ID, SprintID: &sp.ID, Number: 1, Title: "login", EstimatedHours: &est}
	require.NoError(t, s.CreateItem(ctx, w))

	return &fixture{store: s, pipeline: New(s), sprint: sp, member: m, item: w}
}

func (f *fixture) apply(t *testing.T, action models.WorkItemAction, hours int, day time.Time) error {
	t.Helper()
	_, err := f.pipeline.Apply(context.Background(), Request{
		Item: f.item, Action: action, Hours: hours, ActorID: "dev", Member: f.member, Today: day,
	})
	return err
}

func TestApply_LogFromPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.apply(t, models.ActionLog, 5, today))

	got, err := f.store.GetItem(ctx, f.item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ItemInProgress, got.State)
	assert.Equal(t, 5, got.WorkedHours)

	incs, err := f.store.ListIncrements(ctx, store.IncrementFilter{ItemID: f.item.ID})
	require.NoError(t, err)
	require.Len(t, incs, 2, "an hours row and a transition row")
	hours, transitions := 0, 0
	for _, inc := range incs {
		if inc.IsTransition() {
			transitions++
			assert.Equal(t, models.ItemInProgress, *inc.State)
			assert.Zero(t, inc.Hours)
		} else {
			hours += inc.Hours
		}
	}
	assert.Equal(t, 5, hours)
	assert.Equal(t, 1, transitions)
}

func TestApply_SameDayHoursAccumulate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.apply(t, models.ActionLog, 3, today))
	require.NoError(t, f.apply(t, models.ActionLog, 2, today))
	require.NoError(t, f.apply(t, models.ActionLog, 4, models.AddDays(today, 1)))

	incs, err := f.store.ListIncrements(ctx, store.IncrementFilter{ItemID: f.item.ID})
	require.NoError(t, err)
	var hourRows []int
	for _, inc := range incs {
		if !inc.IsTransition() {
			hourRows = append(hourRows, inc.Hours)
		}
	}
	assert.Equal(t, []int{5, 4}, hourRows)
	assert.Equal(t, 9, f.item.WorkedHours)
}

func TestApply_RejectDependsOnWorkedHours(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.apply(t, models.ActionLog, 5, today))
	require.NoError(t, f.apply(t, models.ActionReview, 0, today))
	require.NoError(t, f.apply(t, models.ActionReject, 0, today))
	assert.Equal(t, models.ItemInProgress, f.item.State)

	g := newFixture(t)
	require.NoError(t, g.apply(t, models.ActionStart, 0, today))
	require.NoError(t, g.apply(t, models.ActionReview, 0, today))
	require.NoError(t, g.apply(t, models.ActionReject, 0, today))
	assert.Equal(t, models.ItemPending, g.item.State)
}

func TestApply_IllegalLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.apply(t, models.ActionApprove, 0, today)
	assert.True(t, errors.Is(err, guard.ErrIllegalTransition))

	incs, err := f.store.ListIncrements(ctx, store.IncrementFilter{ItemID: f.item.ID})
	require.NoError(t, err)
	assert.Empty(t, incs)

	got, err := f.store.GetItem(ctx, f.item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ItemPending, got.State)
}

func TestApply_CancelOutsideSprintWritesNoRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.item.SprintID = nil
	require.NoError(t, f.store.UpdateItem(ctx, f.item))

	_, err := f.pipeline.Apply(ctx, Request{Item: f.item, Action: models.ActionCancel, ActorID: "dev", Today: today})
	require.NoError(t, err)
	assert.Equal(t, models.ItemCancelled, f.item.State)

	incs, err := f.store.ListIncrements(ctx, store.IncrementFilter{ItemID: f.item.ID})
	require.NoError(t, err)
	assert.Empty(t, incs)
}
