package kanban

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/scrum/internal/guard"
	"github.com/joescharf/scrum/internal/models"
)

func TestNext(t *testing.T) {
	const (
		pending    = models.ItemPending
		inProgress = models.ItemInProgress
		inReview   = models.ItemInReview
		done       = models.ItemDone
		cancelled  = models.ItemCancelled
	)
	tests := []struct {
		from   models.WorkItemState
		action models.WorkItemAction
		worked int
		want   models.WorkItemState // empty means illegal
	}{
		{pending, models.ActionLog, 0, inProgress},
		{inProgress, models.ActionLog, 3, inProgress},
		{inReview, models.ActionLog, 3, ""},
		{done, models.ActionLog, 3, ""},
		{pending, models.ActionStart, 0, inProgress},
		{inProgress, models.ActionStart, 2, inProgress},
		{inReview, models.ActionStart, 2, ""},
		{inProgress, models.ActionReview, 2, inReview},
		{pending, models.ActionReview, 0, ""},
		{inReview, models.ActionApprove, 2, done},
		{inProgress, models.ActionApprove, 2, ""},
		{inReview, models.ActionReject, 5, inProgress},
		{inReview, models.ActionReject, 0, pending},
		{done, models.ActionReject, 5, ""},
		{pending, models.ActionCancel, 0, cancelled},
		{inReview, models.ActionCancel, 1, cancelled},
		{cancelled, models.ActionCancel, 1, cancelled},
		{done, models.ActionCancel, 1, ""},
		{cancelled, models.ActionRestore, 4, inProgress},
		{cancelled, models.ActionRestore, 0, pending},
		{pending, models.ActionRestore, 0, ""},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.action), func(t *testing.T) {
			got, err := Next(tt.from, tt.action, tt.worked)
			if tt.want == "" {
				require.Error(t, err)
				assert.True(t, errors.Is(err, guard.ErrIllegalTransition))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestActions(t *testing.T) {
	assert.Equal(t, []models.WorkItemAction{models.ActionApprove, models.ActionReject, models.ActionCancel},
		Actions(models.ItemInReview))
	assert.Empty(t, Actions(models.ItemDone))
	assert.Equal(t, []models.WorkItemAction{models.ActionCancel, models.ActionRestore},
		Actions(models.ItemCancelled))
}

func TestPlan(t *testing.T) {
	item := &models.WorkItem{State: models.ItemPending}

	e, err := Plan(item, models.ActionLog, 5)
	require.NoError(t, err)
	assert.Equal(t, Effect{From: models.ItemPending, To: models.ItemInProgress, Hours: 5, Transition: true}, e)

	item.State = models.ItemInProgress
	e, err = Plan(item, models.ActionLog, 2)
	require.NoError(t, err)
	assert.False(t, e.Transition, "logging onto in-progress work is not a transition")

	_, err = Plan(item, models.ActionLog, 0)
	assert.True(t, errors.Is(err, guard.ErrInconsistent))
	_, err = Plan(item, models.ActionLog, -3)
	assert.True(t, errors.Is(err, guard.ErrInconsistent))
	_, err = Plan(item, models.ActionReview, 2)
	assert.True(t, errors.Is(err, guard.ErrInconsistent))

	e, err = Plan(item, models.ActionStart, 0)
	require.NoError(t, err)
	assert.True(t, e.Transition)

	assert.False(t, NeedsActiveSprint(models.ActionCancel))
	assert.True(t, NeedsActiveSprint(models.ActionApprove))
}
