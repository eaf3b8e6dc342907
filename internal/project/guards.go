// Package project implements the project lifecycle: Pending, Active, Closed,
// and the terminal Cancelled state.
package project

import (
	"strings"
	"time"

	"github.com/joescharf/scrum/internal/guard"
	"github.com/joescharf/scrum/internal/models"
)

// ValidateNew checks the fields of a project about to be created.
func ValidateNew(name string, start, end *time.Time, sprintDays *int, today time.Time) guard.Result {
	var r guard.Result
	today = models.Day(today)

	if strings.TrimSpace(name) == "" {
		r.Errorf("a project name is required")
	}
	if sprintDays != nil && *sprintDays < 1 {
		r.Errorf("the default sprint length must be at least one day")
	}
	if start != nil && start.Before(today) {
		r.Errorf("the start date %s is in the past", models.FormatDate(start))
	}
	if end != nil && end.Before(today) {
		r.Errorf("the end date %s is in the past", models.FormatDate(end))
	}
	if start != nil && end != nil {
		span := models.DaysBetween(*start, *end)
		length := 1
		if sprintDays != nil && *sprintDays > 0 {
			length = *sprintDays
		}
		switch {
		case span <= 0:
			r.Errorf("the end date must be after the start date")
		case span < length:
			r.Errorf("the project span of %d day(s) cannot fit one %d-day sprint", span, length)
		}
	}
	return r
}

// ValidateStart is the Pending to Active guard. covered reports, per
// project permission, whether some current team member holds it.
func ValidateStart(p *models.Project, covered map[models.Permission]bool, today time.Time) guard.Result {
	var r guard.Result
	today = models.Day(today)

	if p.EndDate == nil {
		r.Warnf("the project has no planned end date, date checks were skipped")
	} else {
		remaining := models.DaysBetween(today, *p.EndDate)
		switch {
		case remaining < 0:
			r.Errorf("the end date %s has already passed", models.FormatDate(p.EndDate))
		case remaining < p.SprintLength():
			r.Errorf("only %d day(s) remain before the end date %s, less than one %d-day sprint",
				remaining, models.FormatDate(p.EndDate), p.SprintLength())
		}
	}

	for _, perm := range models.ProjectCatalog() {
		if !covered[perm] {
			r.Errorf("no team member holds the %s permission", perm)
		}
	}

	if p.StartDate != nil {
		diff := models.DaysBetween(*p.StartDate, today)
		switch {
		case diff < 0:
			r.Warnf("starting %d day(s) before the planned start date %s", -diff, models.FormatDate(p.StartDate))
		case diff > 0:
			r.Warnf("starting %d day(s) after the planned start date %s", diff, models.FormatDate(p.StartDate))
		}
	}
	return r
}

// ValidateFinish is the Active to Closed guard.
func ValidateFinish(p *models.Project, sprints []*models.Sprint, items []*models.WorkItem, today time.Time) guard.Result {
	var r guard.Result
	today = models.Day(today)

	for _, sp := range sprints {
		switch sp.State {
		case models.SprintActive:
			r.Errorf("sprint %q is still active", sp.Name)
		case models.SprintPending:
			r.Errorf("sprint %q is still pending", sp.Name)
		}
	}
	for _, w := range items {
		if w.State == models.ItemPending {
			r.Errorf("work item #%d %q is still pending", w.Number, w.Title)
		}
	}

	if p.EndDate != nil {
		diff := models.DaysBetween(*p.EndDate, today)
		switch {
		case diff < 0:
			r.Warnf("finishing %d day(s) before the planned end date %s", -diff, models.FormatDate(p.EndDate))
		case diff > 0:
			r.Warnf("finishing %d day(s) after the planned end date %s", diff, models.FormatDate(p.EndDate))
		}
	}
	return r
}
