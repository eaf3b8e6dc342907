package health

import (
	"time"

	"github.com/joescharf/scrum/internal/burndown"
	"github.com/joescharf/scrum/internal/models"
	"github.com/joescharf/scrum/internal/sprint"
)

// SprintMetrics holds the derived figures used for health scoring.
type SprintMetrics struct {
	Capacity     sprint.Capacity
	Burndown     burndown.Series
	LastActivity time.Time // date of the latest hours row, zero when nothing was logged
	Today        time.Time
}

// HealthScore represents the computed health of a sprint.
type HealthScore struct {
	Total            int
	CapacityFit      int // 0-25
	EstimateCoverage int // 0-20
	Progress         int // 0-35
	ActivityRecency  int // 0-20
}

// Scorer computes health scores for sprints.
type Scorer struct{}

// NewScorer returns a new health Scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score computes a health score (0-100) for a sprint.
func (s *Scorer) Score(sp *models.Sprint, meta *SprintMetrics, items []*models.WorkItem) *HealthScore {
	h := &HealthScore{}

	// Capacity fit (25 pts) - the team can deliver the backlog
	h.CapacityFit = scoreCapacity(meta.Capacity, 25)

	// Estimate coverage (20 pts) - share of items with an estimate
	h.EstimateCoverage = scoreEstimates(items, 20)

	// Progress (35 pts) - remaining work compared with the ideal line
	h.Progress = scoreProgress(meta.Burndown, 35)

	// Activity recency (20 pts) - only meaningful once the sprint runs
	if sp.State == models.SprintPending {
		h.ActivityRecency = 20
	} else {
		h.ActivityRecency = scoreRecency(meta.LastActivity, meta.Today, 20)
	}

	h.Total = h.CapacityFit + h.EstimateCoverage + h.Progress + h.ActivityRecency
	return h
}

// scoreCapacity grades backlog cost against team capacity.
func scoreCapacity(c sprint.Capacity, maxPoints int) int {
	if c.BacklogCost == 0 || c.Fits() {
		return maxPoints
	}
	if c.TotalCapacity == 0 {
		return 0
	}
	ratio := float64(c.BacklogCost) / float64(c.TotalCapacity)
	switch {
	case ratio <= 1.1:
		return int(float64(maxPoints) * 0.8)
	case ratio <= 1.25:
		return int(float64(maxPoints) * 0.6)
	case ratio <= 1.5:
		return int(float64(maxPoints) * 0.4)
	default:
		return int(float64(maxPoints) * 0.2)
	}
}

// scoreEstimates rewards estimated backlogs.
func scoreEstimates(items []*models.WorkItem, maxPoints int) int {
	open := 0
	estimated := 0
	for _, w := range items {
		if w.State == models.ItemCancelled {
			continue
		}
		open++
		if w.EstimatedHours != nil {
			estimated++
		}
	}
	if open == 0 {
		return maxPoints
	}
	return maxPoints * estimated / open
}

// scoreProgress compares the latest remaining work with the ideal line on
// the same day.
func scoreProgress(s burndown.Series, maxPoints int) int {
	if len(s.Actual) == 0 || s.Cost == 0 {
		return maxPoints
	}
	day := len(s.Actual) - 1
	ideal := 0.0
	if day < len(s.Ideal) {
		ideal = s.Ideal[day]
	}
	behind := float64(s.Actual[day]) - ideal
	if behind <= 0 {
		return maxPoints
	}

	ratio := behind / float64(s.Cost)
	switch {
	case ratio <= 0.1:
		return int(float64(maxPoints) * 0.8)
	case ratio <= 0.25:
		return int(float64(maxPoints) * 0.6)
	case ratio <= 0.5:
		return int(float64(maxPoints) * 0.3)
	default:
		return int(float64(maxPoints) * 0.1)
	}
}

// scoreRecency converts days since the last logged hours to points.
func scoreRecency(last, today time.Time, maxPoints int) int {
	if last.IsZero() {
		return 0
	}
	days := models.DaysBetween(last, today)
	switch {
	case days <= 1:
		return maxPoints
	case days <= 2:
		return int(float64(maxPoints) * 0.75)
	case days <= 4:
		return int(float64(maxPoints) * 0.5)
	case days <= 7:
		return int(float64(maxPoints) * 0.25)
	default:
		return int(float64(maxPoints) * 0.1)
	}
}
