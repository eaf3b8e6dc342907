// Package kanban is the five-state work item pipeline: the transition table
// and the increment ledger writes each transition produces.
package kanban

import (
	"github.com/joescharf/scrum/internal/guard"
	"github.com/joescharf/scrum/internal/models"
)

// Next returns the state action leads to from the given state. worked is the
// item's accumulated hours, used by reject and restore.
func Next(from models.WorkItemState, action models.WorkItemAction, worked int) (models.WorkItemState, error) {
	switch action {
	case models.ActionLog, models.ActionStart:
		if from == models.ItemPending || from == models.ItemInProgress {
			return models.ItemInProgress, nil
		}
	case models.ActionReview:
		if from == models.ItemInProgress {
			return models.ItemInReview, nil
		}
	case models.ActionApprove:
		if from == models.ItemInReview {
			return models.ItemDone, nil
		}
	case models.ActionReject:
		if from == models.ItemInReview {
			return resumeState(worked), nil
		}
	case models.ActionCancel:
		if from != models.ItemDone {
			return models.ItemCancelled, nil
		}
	case models.ActionRestore:
		if from == models.ItemCancelled {
			return resumeState(worked), nil
		}
	}
	return "", guard.Illegal("work item", string(from), string(action))
}

func resumeState(worked int) models.WorkItemState {
	if worked > 0 {
		return models.ItemInProgress
	}
	return models.ItemPending
}

// Actions lists the actions legal from a state, in pipeline order.
func Actions(from models.WorkItemState) []models.WorkItemAction {
	all := []models.WorkItemAction{
		models.ActionLog, models.ActionStart, models.ActionReview, models.ActionApprove,
		models.ActionReject, models.ActionCancel, models.ActionRestore,
	}
	var legal []models.WorkItemAction
	for _, a := range all {
		if _, err := Next(from, a, 0); err == nil {
			legal = append(legal, a)
		}
	}
	return legal
}

// NeedsActiveSprint reports whether the action only applies to items of the
// project's active sprint.
func NeedsActiveSprint(action models.WorkItemAction) bool {
	switch action {
	case models.ActionCancel, models.ActionRestore:
		return false
	}
	return true
}

// Effect is what applying an action does to an item and its ledger.
type Effect struct {
	From       models.WorkItemState
	To         models.WorkItemState
	Hours      int  // hours accumulated into the day's hours row
	Transition bool // a zero-hour row stamped with To is appended
}

// Plan validates an action against an item and computes its effect.
func Plan(item *models.WorkItem, action models.WorkItemAction, hours int) (Effect, error) {
	if action == models.ActionLog {
		if hours <= 0 {
			return Effect{}, guard.Inconsistent("logged hours must be positive, got %d", hours)
		}
	} else if hours != 0 {
		return Effect{}, guard.Inconsistent("hours can only be given when logging work")
	}

	to, err := Next(item.State, action, item.WorkedHours)
	if err != nil {
		return Effect{}, err
	}

	e := Effect{From: item.State, To: to, Hours: hours, Transition: true}
	if action == models.ActionLog {
		e.Transition = item.State != to
	}
	return e, nil
}
