package models

import (
	"fmt"
	"time"
)

// ProjectState is the lifecycle state of a project.
type ProjectState string

const (
	ProjectPending   ProjectState = "pending"
	ProjectActive    ProjectState = "active"
	ProjectClosed    ProjectState = "closed"
	ProjectCancelled ProjectState = "cancelled"
)

// ParseProjectState rejects anything outside the fixed set of states.
func ParseProjectState(s string) (ProjectState, error) {
	switch st := ProjectState(s); st {
	case ProjectPending, ProjectActive, ProjectClosed, ProjectCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown project state: %q", s)
}

// Project is a Scrum project. StartDate and EndDate hold the planned dates;
// ActualStart and ActualEnd are recorded by the lifecycle transitions.
type Project struct {
	ID                string
	Name              string
	Description       string
	CreatorID         *string
	DefaultSprintDays *int
	State             ProjectState
	StartDate         *time.Time
	EndDate           *time.Time
	ActualStart       *time.Time
	ActualEnd         *time.Time
	NextItemNumber    int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Editable reports whether the project still accepts edits.
func (p *Project) Editable() bool {
	return p.State == ProjectPending || p.State == ProjectActive
}

// SprintLength returns the default sprint length in days, 1 when unset.
func (p *Project) SprintLength() int {
	if p.DefaultSprintDays == nil || *p.DefaultSprintDays < 1 {
		return 1
	}
	return *p.DefaultSprintDays
}
