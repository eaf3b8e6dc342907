package sprint

import (
	"context"

	"github.com/joescharf/scrum/internal/guard"
	"github.com/joescharf/scrum/internal/models"
)

// AddItem plans a product backlog item into the sprint and assigns it to the
// sprint member working userID.
func (m *Machine) AddItem(ctx context.Context, sp *models.Sprint, item *models.WorkItem, userID string) error {
	if sp.State == models.SprintClosed {
		return guard.Illegal("sprint", string(sp.State), "plan items into")
	}
	if item.ProjectID != sp.ProjectID {
		return guard.Inconsistent("work item #%d belongs to another project", item.Number)
	}
	if !item.State.Open() {
		return guard.Inconsistent("work item #%d is %s", item.Number, item.State)
	}
	if item.SprintID != nil && *item.SprintID != sp.ID {
		return guard.Inconsistent("work item #%d is already planned into another sprint", item.Number)
	}

	member, err := m.store.GetSprintMemberByUser(ctx, sp.ID, userID)
	if err != nil {
		return notFoundAs(err, "user %s is not in the sprint", userID)
	}

	if item.SprintID == nil {
		id := sp.ID
		item.SprintID = &id
		if err := m.store.UpdateItem(ctx, item); err != nil {
			return err
		}
	}
	return m.store.AssignItem(ctx, sp.ID, member.ID, item.ID)
}

// RemoveItem takes an item out of the sprint back to the product backlog.
func (m *Machine) RemoveItem(ctx context.Context, sp *models.Sprint, item *models.WorkItem) error {
	if sp.State == models.SprintClosed {
		return guard.Illegal("sprint", string(sp.State), "remove items from")
	}
	if !item.InSprint(sp.ID) {
		return guard.Inconsistent("work item #%d is not in sprint %q", item.Number, sp.Name)
	}
	if err := m.store.UnassignItem(ctx, sp.ID, item.ID); err != nil {
		return err
	}
	item.SprintID = nil
	return m.store.UpdateItem(ctx, item)
}
