package models

import "time"

// Increment is an append-only ledger row for a work item. Rows with a State
// record a pipeline transition and carry zero hours; rows without one
// accumulate the hours a user worked on the item that day.
type Increment struct {
	ID             string
	ItemID         string
	SprintID       string
	SprintMemberID *string
	UserID         string
	Date           time.Time
	Hours          int
	State          *WorkItemState
	CreatedAt      time.Time
}

// IsTransition reports whether the row records a state change.
func (i *Increment) IsTransition() bool {
	return i.State != nil
}
