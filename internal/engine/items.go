package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/joescharf/scrum/internal/guard"
	"github.com/joescharf/scrum/internal/kanban"
	"github.com/joescharf/scrum/internal/models"
	"github.com/joescharf/scrum/internal/sprint"
	"github.com/joescharf/scrum/internal/store"
)

// NewItem holds the fields of a work item to create. A zero priority uses
// the default.
type NewItem struct {
	Title          string
	Description    string
	Priority       int
	EstimatedHours *int
}

// ItemChanges holds the editable work item fields. Nil fields are left alone.
type ItemChanges struct {
	Title          *string
	Description    *string
	Priority       *int
	EstimatedHours *int
}

func checkPriority(p int) error {
	if p < models.PriorityHighest || p > models.PriorityLowest {
		return guard.Inconsistent("priority must be between %d and %d, got %d", models.PriorityHighest, models.PriorityLowest, p)
	}
	return nil
}

func checkEstimate(h *int) error {
	if h != nil && *h < 1 {
		return guard.Inconsistent("an estimate must be at least one hour, got %d", *h)
	}
	return nil
}

// CreateItem adds a user story to the product backlog with the project's
// next sequence number. Requires manage_backlog.
func (e *Engine) CreateItem(ctx context.Context, actorID, projectRef string, in NewItem) (*models.WorkItem, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, guard.Inconsistent("a work item title is required")
	}
	if in.Priority == 0 {
		in.Priority = models.PriorityDefault
	}
	if err := checkPriority(in.Priority); err != nil {
		return nil, err
	}
	if err := checkEstimate(in.EstimatedHours); err != nil {
		return nil, err
	}

	var item *models.WorkItem
	p, err := e.inProject(ctx, projectRef, func(tx store.Store, p *models.Project) error {
		if err := authorize(ctx, tx, actorID, p.ID, models.PermManageBacklog); err != nil {
			return err
		}
		if !p.Editable() {
			return guard.Illegal("project", string(p.State), "add work items to")
		}
		number, err := tx.NextItemNumber(ctx, p.ID)
		if err != nil {
			return err
		}
		creator := actorID
		item = &models.WorkItem{
			ProjectID:      p.ID,
			Number:         number,
			Title:          title,
			Description:    in.Description,
			Priority:       in.Priority,
			EstimatedHours: in.EstimatedHours,
			State:          models.ItemPending,
			CreatorID:      &creator,
		}
		return tx.CreateItem(ctx, item)
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("work item created", "project", p.ID, "item", item.ID, "number", item.Number, "actor", actorID)
	return item, nil
}

// EditItem changes an open work item. Requires manage_backlog.
func (e *Engine) EditItem(ctx context.Context, actorID, itemID string, c ItemChanges) (*models.WorkItem, error) {
	return e.inItem(ctx, itemID, func(tx store.Store, p *models.Project, item *models.WorkItem) error {
		if err := authorize(ctx, tx, actorID, p.ID, models.PermManageBacklog); err != nil {
			return err
		}
		if !item.State.Open() {
			return guard.Illegal("work item", string(item.State), "edit")
		}
		if c.Title != nil {
			title := strings.TrimSpace(*c.Title)
			if title == "" {
				return guard.Inconsistent("a work item title is required")
			}
			item.Title = title
		}
		if c.Description != nil {
			item.Description = *c.Description
		}
		if c.Priority != nil {
			if err := checkPriority(*c.Priority); err != nil {
				return err
			}
			item.Priority = *c.Priority
		}
		if c.EstimatedHours != nil {
			if err := checkEstimate(c.EstimatedHours); err != nil {
				return err
			}
			h := *c.EstimatedHours
			item.EstimatedHours = &h
		}
		return tx.UpdateItem(ctx, item)
	})
}

// Item returns a work item by id.
func (e *Engine) Item(ctx context.Context, actorID, itemID string) (*models.WorkItem, error) {
	item, err := e.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if err := authorizeView(ctx, e.store, actorID, item.ProjectID); err != nil {
		return nil, err
	}
	return item, nil
}

// FindItem returns a work item by its project sequence number.
func (e *Engine) FindItem(ctx context.Context, actorID, projectRef string, number int) (*models.WorkItem, error) {
	p, err := e.Project(ctx, actorID, projectRef)
	if err != nil {
		return nil, err
	}
	return e.store.GetItemByNumber(ctx, p.ID, number)
}

// Backlog lists the product backlog: items of the project not planned into
// any sprint. Cancelled items are only shown to backlog and project managers.
func (e *Engine) Backlog(ctx context.Context, actorID, projectRef string) ([]*models.WorkItem, error) {
	return e.listItems(ctx, actorID, projectRef, store.ItemFilter{Backlog: true})
}

// Items lists every work item of the project, with the same visibility rule
// as Backlog.
func (e *Engine) Items(ctx context.Context, actorID, projectRef string) ([]*models.WorkItem, error) {
	return e.listItems(ctx, actorID, projectRef, store.ItemFilter{})
}

func (e *Engine) listItems(ctx context.Context, actorID, projectRef string, filter store.ItemFilter) ([]*models.WorkItem, error) {
	p, err := e.Project(ctx, actorID, projectRef)
	if err != nil {
		return nil, err
	}
	manager, err := isManager(ctx, e.store, actorID, p.ID)
	if err != nil {
		return nil, err
	}
	filter.ProjectID = p.ID
	if !manager {
		for _, st := range models.WorkItemStates() {
			if st != models.ItemCancelled {
				filter.States = append(filter.States, st)
			}
		}
	}
	return e.store.ListItems(ctx, filter)
}

// AddComment attaches a note to a work item. Any team member may comment.
func (e *Engine) AddComment(ctx context.Context, actorID, itemID, text string) (*models.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, guard.Inconsistent("a comment cannot be empty")
	}
	var c *models.Comment
	_, err := e.inItem(ctx, itemID, func(tx store.Store, p *models.Project, item *models.WorkItem) error {
		if err := authorize(ctx, tx, actorID, p.ID, models.PermView); err != nil {
			return err
		}
		author := actorID
		c = &models.Comment{ItemID: item.ID, AuthorID: &author, Text: text}
		return tx.CreateComment(ctx, c)
	})
	return c, err
}

// Comments lists the notes on a work item, oldest first.
func (e *Engine) Comments(ctx context.Context, actorID, itemID string) ([]*models.Comment, error) {
	item, err := e.Item(ctx, actorID, itemID)
	if err != nil {
		return nil, err
	}
	return e.store.ListComments(ctx, item.ID)
}

// actionPermissions lists the permissions that allow an action, any one of
// them being enough.
func actionPermissions(action models.WorkItemAction) []models.Permission {
	switch action {
	case models.ActionApprove, models.ActionReject:
		return []models.Permission{models.PermManageProject}
	case models.ActionCancel, models.ActionRestore:
		return []models.Permission{models.PermManageProject, models.PermManageBacklog}
	default:
		return []models.Permission{models.PermDevelop}
	}
}

// developerAction reports whether the action is reserved to the developer
// assigned to the item.
func developerAction(action models.WorkItemAction) bool {
	switch action {
	case models.ActionLog, models.ActionStart, models.ActionReview:
		return true
	}
	return false
}

// leaveClosedSprint returns an item of a Closed sprint to the product backlog.
func leaveClosedSprint(ctx context.Context, tx store.Store, item *models.WorkItem) error {
	sp, err := tx.GetSprint(ctx, *item.SprintID)
	if err != nil {
		return err
	}
	if sp.State != models.SprintClosed {
		return nil
	}
	if err := tx.UnassignItem(ctx, sp.ID, item.ID); err != nil {
		return err
	}
	item.SprintID = nil
	return tx.UpdateItem(ctx, item)
}

// ApplyWorkItemAction moves a work item through the kanban pipeline and
// appends its increments. hours is only given for log. Logging, starting and
// sending to review need develop and an assignment to the item; approving and
// rejecting need manage_project; cancelling and restoring need manage_project
// or manage_backlog. Restoring an item of a Closed sprint puts it back on the
// product backlog.
func (e *Engine) ApplyWorkItemAction(ctx context.Context, actorID, itemID string, action models.WorkItemAction, hours int, today time.Time) (kanban.Effect, error) {
	if _, err := models.ParseWorkItemAction(string(action)); err != nil {
		return kanban.Effect{}, guard.Inconsistent("%s", err)
	}

	var effect kanban.Effect
	item, err := e.inItem(ctx, itemID, func(tx store.Store, p *models.Project, item *models.WorkItem) error {
		if err := authorize(ctx, tx, actorID, p.ID, actionPermissions(action)...); err != nil {
			return err
		}
		if err := openProject(p, "change work items of"); err != nil {
			return err
		}

		if action == models.ActionRestore && item.SprintID != nil {
			if err := leaveClosedSprint(ctx, tx, item); err != nil {
				return err
			}
		}

		if kanban.NeedsActiveSprint(action) {
			active, err := sprint.New(tx).Active(ctx, p.ID)
			if err != nil {
				return err
			}
			if active == nil || !item.InSprint(active.ID) {
				return guard.Inconsistent("work item #%d is not in an active sprint", item.Number)
			}
		}

		var member *models.SprintMember
		if item.SprintID != nil {
			m, err := tx.GetSprintMemberByUser(ctx, *item.SprintID, actorID)
			switch {
			case err == nil:
				member = m
			case !errors.Is(err, store.ErrNotFound):
				return err
			}
		}
		if developerAction(action) && (member == nil || !member.Assigned(item.ID)) {
			return guard.Forbidden(actorID, "an assignment to work item", item.ID)
		}

		var err error
		effect, err = kanban.New(tx).Apply(ctx, kanban.Request{
			Item:    item,
			Action:  action,
			Hours:   hours,
			ActorID: actorID,
			Member:  member,
			Today:   today,
		})
		return err
	})
	if err != nil {
		return effect, err
	}
	e.logger.Info("work item action", "project", item.ProjectID, "item", item.ID, "actor", actorID,
		"action", string(action), "from", string(effect.From), "to", string(effect.To), "hours", effect.Hours)
	return effect, nil
}
