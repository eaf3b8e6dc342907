// Package schedule builds the planning calendar of a project and picks the
// events that are due on a given day.
package schedule

import (
	"fmt"
	"sort"
	"time"

	"github.com/joescharf/scrum/internal/models"
)

// Subject kinds.
const (
	SubjectProject = "project"
	SubjectSprint  = "sprint"
)

// Moment is the edge of the time box an event marks.
type Moment string

const (
	MomentStart Moment = "start"
	MomentEnd   Moment = "end"
)

// Event is a planned start or end of a project or sprint.
type Event struct {
	Date    time.Time
	Subject string // project or sprint
	Name    string
	ID      string
	Moment  Moment
	Done    bool
}

// Message is the reminder text for the event.
func (e Event) Message() string {
	return fmt.Sprintf("the %s of %s %q is scheduled for today", e.Moment, e.Subject, e.Name)
}

// Calendar lists the planned events of p and its sprints ordered by date.
// Project events come before sprint events on the same day.
func Calendar(p *models.Project, sprints []*models.Sprint) []Event {
	var events []Event
	if p.StartDate != nil {
		events = append(events, Event{
			Date: *p.StartDate, Subject: SubjectProject, Name: p.Name, ID: p.ID,
			Moment: MomentStart, Done: p.State != models.ProjectPending,
		})
	}
	if p.EndDate != nil {
		events = append(events, Event{
			Date: *p.EndDate, Subject: SubjectProject, Name: p.Name, ID: p.ID,
			Moment: MomentEnd, Done: p.State == models.ProjectClosed || p.State == models.ProjectCancelled,
		})
	}
	for _, sp := range sprints {
		events = append(events,
			Event{
				Date: sp.StartDate, Subject: SubjectSprint, Name: sp.Name, ID: sp.ID,
				Moment: MomentStart, Done: sp.State != models.SprintPending,
			},
			Event{
				Date: sp.EndDate, Subject: SubjectSprint, Name: sp.Name, ID: sp.ID,
				Moment: MomentEnd, Done: sp.State == models.SprintClosed,
			},
		)
	}

	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Date.Equal(events[j].Date) {
			return events[i].Date.Before(events[j].Date)
		}
		return events[i].Subject == SubjectProject && events[j].Subject != SubjectProject
	})
	return events
}

// Due returns the events planned for today that have not happened yet.
// Cancelled and closed projects have nothing due.
func Due(p *models.Project, sprints []*models.Sprint, today time.Time) []Event {
	if !p.Editable() {
		return nil
	}
	today = models.Day(today)
	var due []Event
	for _, e := range Calendar(p, sprints) {
		if !e.Done && models.Day(e.Date).Equal(today) {
			due = append(due, e)
		}
	}
	return due
}
