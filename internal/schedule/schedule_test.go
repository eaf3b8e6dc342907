package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/scrum/internal/models"
)

var today = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func day(n int) *time.Time {
	d := models.AddDays(today, n)
	return &d
}

func TestCalendar_OrderAndDoneFlags(t *testing.T) {
	p := &models.Project{ID: "p1", Name: "Apollo", State: models.ProjectActive, StartDate: day(-7), EndDate: day(21)}
	sprints := []*models.Sprint{
		{ID: "s2", Name: "Sprint 2", State: models.SprintPending, StartDate: *day(7), EndDate: *day(14)},
		{ID: "s1", Name: "Sprint 1", State: models.SprintActive, StartDate: *day(0), EndDate: *day(7)},
	}

	events := Calendar(p, sprints)
	require.Len(t, events, 6)

	var got []string
	for _, e := range events {
		got = append(got, e.Name+" "+string(e.Moment))
	}
	assert.Equal(t, []string{
		"Apollo start", "Sprint 1 start", "Sprint 1 end", "Sprint 2 start", "Sprint 2 end", "Apollo end",
	}, got)

	assert.True(t, events[0].Done, "project already started")
	assert.True(t, events[1].Done, "sprint 1 already started")
	assert.False(t, events[2].Done)
	assert.False(t, events[5].Done)
}

func TestCalendar_SkipsUnplannedProjectDates(t *testing.T) {
	p := &models.Project{Name: "Loose", State: models.ProjectPending}
	assert.Empty(t, Calendar(p, nil))
}

func TestDue(t *testing.T) {
	p := &models.Project{Name: "Apollo", State: models.ProjectPending, StartDate: day(0), EndDate: day(14)}
	sprints := []*models.Sprint{
		{Name: "Sprint 1", State: models.SprintPending, StartDate: *day(0), EndDate: *day(7)},
		{Name: "Old", State: models.SprintActive, StartDate: *day(-7), EndDate: *day(0)},
	}

	due := Due(p, sprints, today.Add(15*time.Hour))
	require.Len(t, due, 3)
	assert.Equal(t, SubjectProject, due[0].Subject)
	assert.Equal(t, `the start of project "Apollo" is scheduled for today`, due[0].Message())

	p.State = models.ProjectCancelled
	assert.Empty(t, Due(p, sprints, today))
}

func TestDue_SkipsDoneEvents(t *testing.T) {
	p := &models.Project{Name: "Apollo", State: models.ProjectActive, StartDate: day(0)}
	sprints := []*models.Sprint{{Name: "Sprint 1", State: models.SprintActive, StartDate: *day(0), EndDate: *day(7)}}
	assert.Empty(t, Due(p, sprints, today))
}
