package models

import "fmt"

// WorkItemAction is an action on the kanban board.
type WorkItemAction string

const (
	ActionLog     WorkItemAction = "log"
	ActionStart   WorkItemAction = "start"
	ActionReview  WorkItemAction = "review"
	ActionApprove WorkItemAction = "approve"
	ActionReject  WorkItemAction = "reject"
	ActionCancel  WorkItemAction = "cancel"
	ActionRestore WorkItemAction = "restore"
)

// ParseWorkItemAction validates an action name.
func ParseWorkItemAction(s string) (WorkItemAction, error) {
	switch a := WorkItemAction(s); a {
	case ActionLog, ActionStart, ActionReview, ActionApprove, ActionReject, ActionCancel, ActionRestore:
		return a, nil
	}
	return "", fmt.Errorf("unknown work item action: %q", s)
}
