package models

import (
	"fmt"
	"time"
)

// WorkItemState is a column of the kanban pipeline.
type WorkItemState string

const (
	ItemPending    WorkItemState = "pending"
	ItemInProgress WorkItemState = "in_progress"
	ItemInReview   WorkItemState = "in_review"
	ItemDone       WorkItemState = "done"
	ItemCancelled  WorkItemState = "cancelled"
)

// WorkItemStates lists the pipeline columns in board order.
func WorkItemStates() []WorkItemState {
	return []WorkItemState{ItemPending, ItemInProgress, ItemInReview, ItemDone, ItemCancelled}
}

// ParseWorkItemState rejects anything outside the five pipeline states.
func ParseWorkItemState(s string) (WorkItemState, error) {
	switch st := WorkItemState(s); st {
	case ItemPending, ItemInProgress, ItemInReview, ItemDone, ItemCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown work item state: %q", s)
}

// Open reports whether the item can still receive work.
func (s WorkItemState) Open() bool {
	return s != ItemDone && s != ItemCancelled
}

// Priority bounds. 1 is the highest priority.
const (
	PriorityHighest = 1
	PriorityLowest  = 5
	PriorityDefault = 3
)

// WorkItem is a user story in the product backlog, optionally planned into a sprint.
type WorkItem struct {
	ID             string
	ProjectID      string
	SprintID       *string
	Number         int
	Title          string
	Description    string
	Priority       int
	EstimatedHours *int
	WorkedHours    int
	State          WorkItemState
	CreatorID      *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Estimate returns the estimated hours, 0 when not yet estimated.
func (w *WorkItem) Estimate() int {
	if w.EstimatedHours == nil {
		return 0
	}
	return *w.EstimatedHours
}

// InSprint reports whether the item is planned into sprintID.
func (w *WorkItem) InSprint(sprintID string) bool {
	return w.SprintID != nil && *w.SprintID == sprintID
}

// Comment is a free-text note on a work item.
type Comment struct {
	ID        string
	ItemID    string
	AuthorID  *string
	Text      string
	CreatedAt time.Time
}
