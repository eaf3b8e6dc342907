package engine

import (
	"context"
	"time"

	"github.com/joescharf/scrum/internal/guard"
	"github.com/joescharf/scrum/internal/models"
	"github.com/joescharf/scrum/internal/notify"
	"github.com/joescharf/scrum/internal/sprint"
	"github.com/joescharf/scrum/internal/store"
)

// NewSprint holds the fields of a sprint to plan. Days of 0 uses the
// project's default sprint length.
type NewSprint struct {
	Name        string
	Description string
	StartDate   time.Time
	Days        int
}

// CreateSprint plans a Pending sprint. Requires manage_project.
func (e *Engine) CreateSprint(ctx context.Context, actorID, projectRef string, in NewSprint, today time.Time) (*models.Sprint, []string, error) {
	var sp *models.Sprint
	var r guard.Result
	p, err := e.inProject(ctx, projectRef, func(tx store.Store, p *models.Project) error {
		if err := authorize(ctx, tx, actorID, p.ID, models.PermManageProject); err != nil {
			return err
		}
		var err error
		sp, r, err = sprint.New(tx).Create(ctx, p, in.Name, in.Description, in.StartDate, in.Days, today)
		return err
	})
	if err != nil {
		return nil, r.Warnings, err
	}
	e.logger.Info("sprint created", "project", p.ID, "sprint", sp.ID, "actor", actorID)
	return sp, r.Warnings, nil
}

// Sprint returns a sprint by id.
func (e *Engine) Sprint(ctx context.Context, actorID, sprintID string) (*models.Sprint, error) {
	sp, err := e.store.GetSprint(ctx, sprintID)
	if err != nil {
		return nil, err
	}
	if err := authorizeView(ctx, e.store, actorID, sp.ProjectID); err != nil {
		return nil, err
	}
	return sp, nil
}

// Sprints lists the sprints of a project by start date.
func (e *Engine) Sprints(ctx context.Context, actorID, projectRef string) ([]*models.Sprint, error) {
	p, err := e.Project(ctx, actorID, projectRef)
	if err != nil {
		return nil, err
	}
	return e.store.ListSprints(ctx, store.SprintFilter{ProjectID: p.ID})
}

// FindSprint looks a sprint of the project up by id or name. An empty ref
// selects the active sprint.
func (e *Engine) FindSprint(ctx context.Context, actorID, projectRef, ref string) (*models.Sprint, error) {
	p, err := e.Project(ctx, actorID, projectRef)
	if err != nil {
		return nil, err
	}
	if ref == "" {
		active, err := sprint.New(e.store).Active(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if active == nil {
			return nil, guard.Inconsistent("project %q has no active sprint", p.Name)
		}
		return active, nil
	}

	sprints, err := e.store.ListSprints(ctx, store.SprintFilter{ProjectID: p.ID})
	if err != nil {
		return nil, err
	}
	for _, sp := range sprints {
		if sp.ID == ref || sp.Name == ref {
			return sp, nil
		}
	}
	return nil, guard.Inconsistent("project %q has no sprint %q", p.Name, ref)
}

// ActiveSprint returns the project's active sprint, or nil.
func (e *Engine) ActiveSprint(ctx context.Context, actorID, projectRef string) (*models.Sprint, error) {
	p, err := e.Project(ctx, actorID, projectRef)
	if err != nil {
		return nil, err
	}
	return sprint.New(e.store).Active(ctx, p.ID)
}

// EditSprint changes a sprint that has not closed. Requires manage_project.
func (e *Engine) EditSprint(ctx context.Context, actorID, sprintID string, c sprint.Changes) (*models.Sprint, error) {
	return e.inSprint(ctx, sprintID, func(tx store.Store, p *models.Project, sp *models.Sprint) error {
		if err := authorize(ctx, tx, actorID, p.ID, models.PermManageProject); err != nil {
			return err
		}
		if err := openProject(p, "edit sprints of"); err != nil {
			return err
		}
		return sprint.New(tx).Edit(ctx, sp, c)
	})
}

// ExtendSprint moves the end of an Active sprint. Requires manage_project.
func (e *Engine) ExtendSprint(ctx context.Context, actorID, sprintID string, end time.Time) (*models.Sprint, error) {
	return e.inSprint(ctx, sprintID, func(tx store.Store, p *models.Project, sp *models.Sprint) error {
		if err := authorize(ctx, tx, actorID, p.ID, models.PermManageProject); err != nil {
			return err
		}
		if err := openProject(p, "extend sprints of"); err != nil {
			return err
		}
		return sprint.New(tx).Extend(ctx, sp, end)
	})
}

// CheckStartSprint evaluates the start guard without changing anything.
func (e *Engine) CheckStartSprint(ctx context.Context, actorID, sprintID string, today time.Time) (guard.Result, error) {
	sp, err := e.Sprint(ctx, actorID, sprintID)
	if err != nil {
		return guard.Result{}, err
	}
	return sprint.New(e.store).CheckStart(ctx, sp, today)
}

// StartSprint activates a Pending sprint. When the guard blocks, the returned
// error is a *guard.BlockedError carrying the full result. Requires
// manage_project.
func (e *Engine) StartSprint(ctx context.Context, actorID, sprintID string, today time.Time) ([]string, error) {
	var r guard.Result
	var projectName string
	sp, err := e.inSprint(ctx, sprintID, func(tx store.Store, p *models.Project, sp *models.Sprint) error {
		if err := authorize(ctx, tx, actorID, p.ID, models.PermManageProject); err != nil {
			return err
		}
		if err := openProject(p, "start sprints of"); err != nil {
			return err
		}
		projectName = p.Name
		var err error
		r, err = sprint.New(tx).Start(ctx, sp, today)
		return err
	})
	if err != nil {
		return r.Warnings, err
	}
	e.logger.Info("sprint started", "project", sp.ProjectID, "sprint", sp.ID, "actor", actorID, "warnings", len(r.Warnings))
	e.notify(projectName+" / "+sp.Name, notify.KindSprint, "started")
	return r.Warnings, nil
}

// CheckFinishSprint evaluates the finish guard without changing anything.
func (e *Engine) CheckFinishSprint(ctx context.Context, actorID, sprintID string, today time.Time) (guard.Result, error) {
	sp, err := e.Sprint(ctx, actorID, sprintID)
	if err != nil {
		return guard.Result{}, err
	}
	return sprint.New(e.store).CheckFinish(ctx, sp, today)
}

// FinishSprint closes an Active sprint and returns its warnings together with
// the open items that rolled back to the product backlog. Requires
// manage_project.
func (e *Engine) FinishSprint(ctx context.Context, actorID, sprintID string, today time.Time) ([]string, []*models.WorkItem, error) {
	var r guard.Result
	var rolled []*models.WorkItem
	var projectName string
	sp, err := e.inSprint(ctx, sprintID, func(tx store.Store, p *models.Project, sp *models.Sprint) error {
		if err := authorize(ctx, tx, actorID, p.ID, models.PermManageProject); err != nil {
			return err
		}
		if err := openProject(p, "finish sprints of"); err != nil {
			return err
		}
		projectName = p.Name
		var err error
		r, rolled, err = sprint.New(tx).Finish(ctx, sp, today)
		return err
	})
	if err != nil {
		return r.Warnings, nil, err
	}
	e.logger.Info("sprint finished", "project", sp.ProjectID, "sprint", sp.ID, "actor", actorID, "rolled_over", len(rolled))
	e.notify(projectName+" / "+sp.Name, notify.KindSprint, "finished")
	return r.Warnings, rolled, nil
}

// SetSprintReview records the review of a Closed sprint. Requires
// manage_project.
func (e *Engine) SetSprintReview(ctx context.Context, actorID, sprintID, review string) error {
	_, err := e.inSprint(ctx, sprintID, func(tx store.Store, p *models.Project, sp *models.Sprint) error {
		if err := authorize(ctx, tx, actorID, p.ID, models.PermManageProject); err != nil {
			return err
		}
		return sprint.New(tx).SetReview(ctx, sp, review)
	})
	return err
}

// SprintCapacity computes the current capacity figures of a sprint.
func (e *Engine) SprintCapacity(ctx context.Context, actorID, sprintID string) (sprint.Capacity, error) {
	sp, err := e.Sprint(ctx, actorID, sprintID)
	if err != nil {
		return sprint.Capacity{}, err
	}
	return sprint.New(e.store).Capacity(ctx, sp)
}

// SprintMembers lists the sprint team.
func (e *Engine) SprintMembers(ctx context.Context, actorID, sprintID string) ([]*models.SprintMember, error) {
	sp, err := e.Sprint(ctx, actorID, sprintID)
	if err != nil {
		return nil, err
	}
	return e.store.ListSprintMembers(ctx, sp.ID)
}

// SprintBacklog lists the items planned into a sprint.
func (e *Engine) SprintBacklog(ctx context.Context, actorID, sprintID string) ([]*models.WorkItem, error) {
	sp, err := e.Sprint(ctx, actorID, sprintID)
	if err != nil {
		return nil, err
	}
	return sprint.New(e.store).Backlog(ctx, sp.ID)
}

// AddSprintMember adds a developer to the sprint team. Requires
// manage_project.
func (e *Engine) AddSprintMember(ctx context.Context, actorID, sprintID, userID string, dailyHours int) (*models.SprintMember, error) {
	var member *models.SprintMember
	_, err := e.inSprint(ctx, sprintID, func(tx store.Store, p *models.Project, sp *models.Sprint) error {
		if err := authorize(ctx, tx, actorID, p.ID, models.PermManageProject); err != nil {
			return err
		}
		if err := openProject(p, "staff sprints of"); err != nil {
			return err
		}
		var err error
		member, err = sprint.New(tx).AddMember(ctx, sp, userID, dailyHours)
		return err
	})
	return member, err
}

// SetSprintMemberHours changes a member's daily availability. Requires
// manage_project.
func (e *Engine) SetSprintMemberHours(ctx context.Context, actorID, sprintID, userID string, dailyHours int) (*models.SprintMember, error) {
	var member *models.SprintMember
	_, err := e.inSprint(ctx, sprintID, func(tx store.Store, p *models.Project, sp *models.Sprint) error {
		if err := authorize(ctx, tx, actorID, p.ID, models.PermManageProject); err != nil {
			return err
		}
		if err := openProject(p, "staff sprints of"); err != nil {
			return err
		}
		var err error
		member, err = sprint.New(tx).SetHours(ctx, sp, userID, dailyHours)
		return err
	})
	return member, err
}

// RemoveSprintMember takes a user out of the sprint team. Requires
// manage_project.
func (e *Engine) RemoveSprintMember(ctx context.Context, actorID, sprintID, userID string) error {
	_, err := e.inSprint(ctx, sprintID, func(tx store.Store, p *models.Project, sp *models.Sprint) error {
		if err := authorize(ctx, tx, actorID, p.ID, models.PermManageProject); err != nil {
			return err
		}
		if err := openProject(p, "staff sprints of"); err != nil {
			return err
		}
		return sprint.New(tx).RemoveMember(ctx, sp, userID)
	})
	return err
}

// PlanItem puts a work item into the sprint backlog assigned to userID, or
// reassigns it when it is already there. Requires manage_project.
func (e *Engine) PlanItem(ctx context.Context, actorID, sprintID, itemID, userID string) error {
	_, err := e.inSprint(ctx, sprintID, func(tx store.Store, p *models.Project, sp *models.Sprint) error {
		if err := authorize(ctx, tx, actorID, p.ID, models.PermManageProject); err != nil {
			return err
		}
		if err := openProject(p, "plan sprints of"); err != nil {
			return err
		}
		item, err := tx.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		return sprint.New(tx).AddItem(ctx, sp, item, userID)
	})
	return err
}

// UnplanItem returns a work item from the sprint to the product backlog.
// Requires manage_project.
func (e *Engine) UnplanItem(ctx context.Context, actorID, sprintID, itemID string) error {
	_, err := e.inSprint(ctx, sprintID, func(tx store.Store, p *models.Project, sp *models.Sprint) error {
		if err := authorize(ctx, tx, actorID, p.ID, models.PermManageProject); err != nil {
			return err
		}
		if err := openProject(p, "plan sprints of"); err != nil {
			return err
		}
		item, err := tx.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		return sprint.New(tx).RemoveItem(ctx, sp, item)
	})
	return err
}

// openProject refuses sprint and item changes once p is Closed or Cancelled.
func openProject(p *models.Project, verb string) error {
	if !p.Editable() {
		return guard.Illegal("project", string(p.State), verb)
	}
	return nil
}
