package models

import (
	"fmt"
	"time"
)

// SprintState is the lifecycle state of a sprint.
type SprintState string

const (
	SprintPending SprintState = "pending"
	SprintActive  SprintState = "active"
	SprintClosed  SprintState = "closed"
)

// ParseSprintState rejects anything outside the fixed set of states.
func ParseSprintState(s string) (SprintState, error) {
	switch st := SprintState(s); st {
	case SprintPending, SprintActive, SprintClosed:
		return st, nil
	}
	return "", fmt.Errorf("unknown sprint state: %q", s)
}

// Sprint is a time box inside a project.
type Sprint struct {
	ID              string
	ProjectID       string
	Name            string
	Description     string
	State           SprintState
	StartDate       time.Time
	EndDate         time.Time
	OriginalEndDate *time.Time // captured at activation, never moved by extensions
	ActualStart     *time.Time
	ActualEnd       *time.Time
	BaselineCost    *int // backlog cost at activation
	Review          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Days returns the current planned length of the sprint in days.
func (s *Sprint) Days() int {
	return DaysBetween(s.StartDate, s.EndDate)
}

// PlannedEnd returns the end date the sprint was activated with, falling back
// to the current end date for sprints that were never started.
func (s *Sprint) PlannedEnd() time.Time {
	if s.OriginalEndDate != nil {
		return *s.OriginalEndDate
	}
	return s.EndDate
}

// EffectiveStart returns the actual start when recorded, else the planned start.
func (s *Sprint) EffectiveStart() time.Time {
	if s.ActualStart != nil {
		return *s.ActualStart
	}
	return s.StartDate
}

// SprintMember is a user taking part in a sprint with a daily hour budget.
type SprintMember struct {
	ID         string
	SprintID   string
	UserID     string
	DailyHours int
	ItemIDs    []string // work items assigned to this member in the sprint
}

// Assigned reports whether the member works on itemID in this sprint.
func (m *SprintMember) Assigned(itemID string) bool {
	for _, id := range m.ItemIDs {
		if id == itemID {
			return true
		}
	}
	return false
}
