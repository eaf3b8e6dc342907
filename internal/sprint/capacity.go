// Package sprint implements the sprint lifecycle (Pending, Active, Closed),
// sprint team and backlog planning, and the capacity figures its guards use.
package sprint

import "github.com/joescharf/scrum/internal/models"

// Capacity summarizes what a sprint team can deliver against its backlog.
type Capacity struct {
	DailyCapacity int // sum of member daily hours
	Days          int
	TotalCapacity int // DailyCapacity * Days
	BacklogCost   int // sum of estimated hours, unestimated items count 0
	Unestimated   int
}

// Fits reports whether the backlog cost is within the team capacity.
func (c Capacity) Fits() bool {
	return c.BacklogCost <= c.TotalCapacity
}

// ComputeCapacity derives the capacity figures of sp.
func ComputeCapacity(sp *models.Sprint, members []*models.SprintMember, items []*models.WorkItem) Capacity {
	c := Capacity{Days: sp.Days()}
	for _, m := range members {
		c.DailyCapacity += m.DailyHours
	}
	c.TotalCapacity = c.DailyCapacity * c.Days
	for _, w := range items {
		if w.EstimatedHours == nil {
			c.Unestimated++
			continue
		}
		c.BacklogCost += *w.EstimatedHours
	}
	return c
}
