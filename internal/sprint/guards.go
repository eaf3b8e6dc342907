package sprint

import (
	"strings"
	"time"

	"github.com/joescharf/scrum/internal/guard"
	"github.com/joescharf/scrum/internal/models"
)

// ValidateNew checks a sprint about to be created in p.
func ValidateNew(p *models.Project, name string, start time.Time, days int, today time.Time) guard.Result {
	var r guard.Result
	if strings.TrimSpace(name) == "" {
		r.Errorf("a sprint name is required")
	}
	if days < 1 {
		r.Errorf("a sprint must last at least one day")
	}
	if models.Day(start).Before(models.Day(today)) {
		r.Errorf("the start date %s is in the past", start.Format(models.DateLayout))
	}
	if days >= 1 {
		scheduleWarnings(&r, p, start, models.AddDays(start, days))
	}
	return r
}

// StartInput is everything the start guard looks at.
type StartInput struct {
	Project   *models.Project
	Sprint    *models.Sprint
	Active    *models.Sprint // the project's currently active sprint, if any
	Members   []*models.SprintMember
	Items     []*models.WorkItem // the sprint backlog
	Assignees map[string]string  // item id to sprint member id
}

// ValidateStart is the Pending to Active guard.
func ValidateStart(in StartInput, today time.Time) guard.Result {
	var r guard.Result
	sp := in.Sprint
	today = models.Day(today)

	if in.Project.State != models.ProjectActive {
		r.Errorf("project %q is not active", in.Project.Name)
	}
	if in.Active != nil && in.Active.ID != sp.ID {
		r.Errorf("sprint %q is already active", in.Active.Name)
	}
	if len(in.Members) == 0 {
		r.Errorf("the sprint needs at least one developer")
	}
	if len(in.Items) == 0 {
		r.Errorf("the sprint backlog is empty")
	}
	for _, w := range in.Items {
		if in.Assignees[w.ID] == "" {
			r.Errorf("work item #%d %q has no developer assigned", w.Number, w.Title)
		}
		if w.EstimatedHours == nil {
			r.Errorf("work item #%d %q has no hour estimate", w.Number, w.Title)
		}
	}
	if !sp.EndDate.After(today) {
		r.Errorf("the sprint end date %s is not after today", sp.EndDate.Format(models.DateLayout))
	}

	if in.Active != nil && in.Active.ID != sp.ID && sp.StartDate.Before(in.Active.EndDate) {
		r.Warnf("the sprint starts on %s, before sprint %q ends on %s",
			sp.StartDate.Format(models.DateLayout), in.Active.Name, in.Active.EndDate.Format(models.DateLayout))
	}
	scheduleWarnings(&r, in.Project, sp.StartDate, sp.EndDate)

	c := ComputeCapacity(sp, in.Members, in.Items)
	if !c.Fits() {
		r.Warnf("the backlog needs %d hour(s) but the team can deliver %d in %d day(s)",
			c.BacklogCost, c.TotalCapacity, c.Days)
	}
	return r
}

// ValidateFinish is the Active to Closed guard. It only warns.
func ValidateFinish(sp *models.Sprint, items []*models.WorkItem, today time.Time) guard.Result {
	var r guard.Result
	if diff := models.DaysBetween(today, sp.EndDate); diff > 0 {
		r.Warnf("finishing %d day(s) before the end date %s", diff, sp.EndDate.Format(models.DateLayout))
	}
	for _, w := range items {
		if w.State != models.ItemDone {
			r.Warnf("work item #%d %q is %s", w.Number, w.Title, w.State)
		}
	}
	return r
}

func scheduleWarnings(r *guard.Result, p *models.Project, start, end time.Time) {
	projectStart := p.StartDate
	if p.ActualStart != nil {
		projectStart = p.ActualStart
	}
	if projectStart != nil && start.Before(*projectStart) {
		r.Warnf("the sprint starts before the project start date %s", models.FormatDate(projectStart))
	}
	if p.EndDate != nil && end.After(*p.EndDate) {
		r.Warnf("the sprint ends after the project end date %s", models.FormatDate(p.EndDate))
	}
}
