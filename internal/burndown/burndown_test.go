package burndown

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/scrum/internal/models"
)

var start = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func activeSprint(days int) *models.Sprint {
	end := models.AddDays(start, days)
	return &models.Sprint{ID: "s1", Name: "S1", State: models.SprintActive,
		StartDate: start, EndDate: end, OriginalEndDate: &end, ActualStart: models.DatePtr(start)}
}

func hours(day, h int) *models.Increment {
	return &models.Increment{SprintID: "s1", Date: models.AddDays(start, day), Hours: h}
}

func TestIdealLine(t *testing.T) {
	s, err := Compute(activeSprint(7), 70, nil, start)
	require.NoError(t, err)

	require.Len(t, s.Ideal, 8)
	assert.InDelta(t, 70, s.Ideal[0], 1e-9)
	assert.InDelta(t, 40, s.Ideal[3], 1e-9)
	assert.InDelta(t, 0, s.Ideal[7], 1e-9)
	assert.Len(t, s.Dates, 8)
	assert.Equal(t, 7, s.PlannedDays)
}

func TestActualReachesZeroOnLastDay(t *testing.T) {
	var incs []*models.Increment
	for d := 1; d <= 7; d++ {
		incs = append(incs, hours(d, 10))
	}
	s, err := Compute(activeSprint(7), 70, incs, models.AddDays(start, 7))
	require.NoError(t, err)
	assert.Equal(t, []int{70, 60, 50, 40, 30, 20, 10, 0}, s.Actual)
}

func TestActualStopsAtToday(t *testing.T) {
	incs := []*models.Increment{hours(0, 5), hours(1, 5), hours(2, 5), hours(5, 5)}
	s, err := Compute(activeSprint(7), 40, incs, models.AddDays(start, 2))
	require.NoError(t, err)
	assert.Equal(t, []int{35, 30, 25}, s.Actual)
	assert.Len(t, s.Dates, 8, "axis still covers the planned days")
}

func TestActualClampsAtZeroAndStops(t *testing.T) {
	incs := []*models.Increment{hours(0, 30), hours(1, 30), hours(2, 30)}
	s, err := Compute(activeSprint(7), 50, incs, models.AddDays(start, 6))
	require.NoError(t, err)
	assert.Equal(t, []int{20, 0}, s.Actual)
}

func TestOverrunExtendsAxis(t *testing.T) {
	sp := activeSprint(3)
	sp.EndDate = models.AddDays(start, 6) // extended, original end kept
	incs := []*models.Increment{hours(0, 1)}

	s, err := Compute(sp, 10, incs, models.AddDays(start, 5))
	require.NoError(t, err)
	assert.Len(t, s.Ideal, 4, "ideal uses the original plan")
	assert.Len(t, s.Actual, 6)
	assert.Len(t, s.Dates, 6)

	points := s.Points()
	assert.Nil(t, points[5].Ideal)
	require.NotNil(t, points[5].Remaining)
	assert.Equal(t, 9, *points[5].Remaining)
}

func TestClosedSprintStopsAtActualEnd(t *testing.T) {
	sp := activeSprint(7)
	sp.State = models.SprintClosed
	sp.ActualEnd = models.DatePtr(models.AddDays(start, 3))
	incs := []*models.Increment{hours(0, 1), hours(4, 1)}

	s, err := Compute(sp, 10, incs, models.AddDays(start, 30))
	require.NoError(t, err)
	assert.Equal(t, []int{9, 9, 9, 9}, s.Actual)
}

func TestIgnoresTransitionsAndOtherSprints(t *testing.T) {
	state := models.ItemInProgress
	incs := []*models.Increment{
		hours(0, 2),
		{SprintID: "s1", Date: start, State: &state},
		{SprintID: "other", Date: start, Hours: 5},
	}
	s, err := Compute(activeSprint(7), 10, incs, start)
	require.NoError(t, err)
	assert.Equal(t, []int{8}, s.Actual)
}

func TestPendingSprintHasNoActualLine(t *testing.T) {
	sp := activeSprint(7)
	sp.State = models.SprintPending
	sp.ActualStart = nil
	s, err := Compute(sp, 10, []*models.Increment{hours(0, 1)}, start)
	require.NoError(t, err)
	assert.Empty(t, s.Actual)
}

func TestZeroDurationRejected(t *testing.T) {
	sp := &models.Sprint{Name: "S0", State: models.SprintActive, StartDate: start, EndDate: start}
	_, err := Compute(sp, 10, nil, start)
	assert.Error(t, err)
}

func TestDeterministic(t *testing.T) {
	incs := []*models.Increment{hours(2, 3), hours(0, 1), hours(1, 2)}
	a, err := Compute(activeSprint(7), 20, incs, models.AddDays(start, 4))
	require.NoError(t, err)
	b, err := Compute(activeSprint(7), 20, []*models.Increment{incs[1], incs[2], incs[0]}, models.AddDays(start, 4))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
