// Package burndown derives the ideal and actual remaining-work lines of a
// sprint from its cost snapshot and the increment ledger. It holds no state.
package burndown

import (
	"fmt"
	"time"

	"github.com/joescharf/scrum/internal/models"
)

// Series is a burndown chart. Ideal has PlannedDays+1 entries, Actual has
// one entry per elapsed day and may be shorter or longer than Ideal. Dates
// covers whichever is longer.
type Series struct {
	SprintID    string
	Cost        int
	PlannedDays int
	Dates       []time.Time
	Ideal       []float64
	Actual      []int
}

// Point is one day of a Series.
type Point struct {
	Day       int
	Date      time.Time
	Ideal     *float64
	Remaining *int
}

// Points zips the series into per-day rows.
func (s Series) Points() []Point {
	points := make([]Point, len(s.Dates))
	for i, d := range s.Dates {
		points[i] = Point{Day: i, Date: d}
		if i < len(s.Ideal) {
			v := s.Ideal[i]
			points[i].Ideal = &v
		}
		if i < len(s.Actual) {
			v := s.Actual[i]
			points[i].Remaining = &v
		}
	}
	return points
}

// Compute builds the burndown of sp.
//
// The ideal line runs linearly from cost to 0 over the originally planned
// duration. The actual line starts from cost and subtracts each day's logged
// hours, one entry per day from the sprint start, stopping once the remaining
// work reaches 0 or the day passes today (Active) or the actual end (Closed).
// A Pending sprint has no actual line.
func Compute(sp *models.Sprint, cost int, increments []*models.Increment, today time.Time) (Series, error) {
	start := sp.EffectiveStart()
	planned := models.DaysBetween(start, sp.PlannedEnd())
	if planned < 1 {
		return Series{}, fmt.Errorf("sprint %s has a planned duration of %d day(s), need at least 1", sp.Name, planned)
	}

	s := Series{SprintID: sp.ID, Cost: cost, PlannedDays: planned}
	s.Ideal = make([]float64, planned+1)
	for d := 0; d <= planned; d++ {
		s.Ideal[d] = float64(cost) * (1 - float64(d)/float64(planned))
	}

	if stop, ok := stopDate(sp, today); ok {
		s.Actual = actualLine(sp.ID, start, stop, cost, increments)
	}

	n := len(s.Ideal)
	if len(s.Actual) > n {
		n = len(s.Actual)
	}
	s.Dates = make([]time.Time, n)
	for d := range s.Dates {
		s.Dates[d] = models.AddDays(start, d)
	}
	return s, nil
}

func stopDate(sp *models.Sprint, today time.Time) (time.Time, bool) {
	switch sp.State {
	case models.SprintActive:
		return models.Day(today), true
	case models.SprintClosed:
		if sp.ActualEnd != nil {
			return *sp.ActualEnd, true
		}
		return sp.EndDate, true
	}
	return time.Time{}, false
}

func actualLine(sprintID string, start, stop time.Time, cost int, increments []*models.Increment) []int {
	byDay := make(map[string]int)
	for _, inc := range increments {
		if inc.SprintID != sprintID || inc.IsTransition() {
			continue
		}
		byDay[inc.Date.Format(models.DateLayout)] += inc.Hours
	}

	var line []int
	remaining := cost
	for d := 0; ; d++ {
		date := models.AddDays(start, d)
		if date.After(stop) {
			break
		}
		remaining -= byDay[date.Format(models.DateLayout)]
		if remaining <= 0 {
			line = append(line, 0)
			break
		}
		line = append(line, remaining)
	}
	return line
}
