package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/joescharf/scrum/internal/guard"
	"github.com/joescharf/scrum/internal/ledger"
	"github.com/joescharf/scrum/internal/models"
	"github.com/joescharf/scrum/internal/notify"
	"github.com/joescharf/scrum/internal/project"
	"github.com/joescharf/scrum/internal/roles"
	"github.com/joescharf/scrum/internal/store"
)

// NewProject holds the fields of a project to create.
type NewProject struct {
	Name              string
	Description       string
	StartDate         *time.Time
	EndDate           *time.Time
	DefaultSprintDays *int
}

// CreateProject creates a Pending project with the default roles and makes
// the creator its Scrum Master. Requires the global create_project.
func (e *Engine) CreateProject(ctx context.Context, actorID string, in NewProject, today time.Time) (*models.Project, error) {
	r := project.ValidateNew(in.Name, in.StartDate, in.EndDate, in.DefaultSprintDays, today)
	if err := r.Err(); err != nil {
		return nil, err
	}

	creator := actorID
	p := &models.Project{
		Name:              strings.TrimSpace(in.Name),
		Description:       in.Description,
		CreatorID:         &creator,
		DefaultSprintDays: in.DefaultSprintDays,
		State:             models.ProjectPending,
	}
	if in.StartDate != nil {
		p.StartDate = models.DatePtr(*in.StartDate)
	}
	if in.EndDate != nil {
		p.EndDate = models.DatePtr(*in.EndDate)
	}

	err := e.update(ctx, ledger.Global, func(tx store.Store) error {
		if err := authorize(ctx, tx, actorID, ledger.Global, models.PermCreateProject); err != nil {
			return err
		}
		if _, err := tx.GetProjectByName(ctx, p.Name); err == nil {
			return guard.Inconsistent("a project named %q already exists", p.Name)
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err := tx.CreateProject(ctx, p); err != nil {
			return err
		}

		reg := roles.New(tx)
		if _, err := reg.CreateDefaultRoles(ctx, p.ID); err != nil {
			return err
		}
		return reg.AssignRole(ctx, actorID, actorID, p.ID, models.RoleScrumMaster)
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("project created", "project", p.ID, "actor", actorID)
	e.notify(p.Name, notify.KindProject, "created")
	return p, nil
}

// Project returns a project by id or name.
func (e *Engine) Project(ctx context.Context, actorID, ref string) (*models.Project, error) {
	p, err := resolveProject(ctx, e.store, ref)
	if err != nil {
		return nil, err
	}
	if err := authorizeView(ctx, e.store, actorID, p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

// Projects lists the projects the actor is a member of. Auditors and
// administrators see every project.
func (e *Engine) Projects(ctx context.Context, actorID string, states ...models.ProjectState) ([]*models.Project, error) {
	if err := checkActor(ctx, e.store, actorID); err != nil {
		return nil, err
	}
	all, err := holds(ctx, e.store, actorID, ledger.Global, models.PermAudit, models.PermAdminister)
	if err != nil {
		return nil, err
	}
	filter := store.ProjectFilter{States: states}
	if !all {
		filter.MemberID = actorID
	}
	return e.store.ListProjects(ctx, filter)
}

// EditProject changes the editable fields of a project. Requires manage_project.
func (e *Engine) EditProject(ctx context.Context, actorID, ref string, c project.Changes) (*models.Project, error) {
	return e.inProject(ctx, ref, func(tx store.Store, p *models.Project) error {
		if err := authorize(ctx, tx, actorID, p.ID, models.PermManageProject); err != nil {
			return err
		}
		return project.New(tx).Edit(ctx, p, c)
	})
}

// CheckStartProject evaluates the start guard without changing anything.
func (e *Engine) CheckStartProject(ctx context.Context, actorID, ref string, today time.Time) (guard.Result, error) {
	p, err := e.Project(ctx, actorID, ref)
	if err != nil {
		return guard.Result{}, err
	}
	return project.New(e.store).CheckStart(ctx, p, today)
}

// StartProject moves a Pending project to Active. When the guard blocks, the
// returned error is a *guard.BlockedError carrying the full result. Requires
// manage_project.
func (e *Engine) StartProject(ctx context.Context, actorID, ref string, today time.Time) ([]string, error) {
	var r guard.Result
	p, err := e.inProject(ctx, ref, func(tx store.Store, p *models.Project) error {
		if err := authorize(ctx, tx, actorID, p.ID, models.PermManageProject); err != nil {
			return err
		}
		var err error
		r, err = project.New(tx).Start(ctx, p, today)
		return err
	})
	if err != nil {
		return r.Warnings, err
	}
	e.logger.Info("project started", "project", p.ID, "actor", actorID, "warnings", len(r.Warnings))
	e.notify(p.Name, notify.KindProject, "started")
	return r.Warnings, nil
}

// CheckFinishProject evaluates the finish guard without changing anything.
func (e *Engine) CheckFinishProject(ctx context.Context, actorID, ref string, today time.Time) (guard.Result, error) {
	p, err := e.Project(ctx, actorID, ref)
	if err != nil {
		return guard.Result{}, err
	}
	return project.New(e.store).CheckFinish(ctx, p, today)
}

// FinishProject moves an Active project to Closed. Requires manage_project.
func (e *Engine) FinishProject(ctx context.Context, actorID, ref string, today time.Time) ([]string, error) {
	var r guard.Result
	p, err := e.inProject(ctx, ref, func(tx store.Store, p *models.Project) error {
		if err := authorize(ctx, tx, actorID, p.ID, models.PermManageProject); err != nil {
			return err
		}
		var err error
		r, err = project.New(tx).Finish(ctx, p, today)
		return err
	})
	if err != nil {
		return r.Warnings, err
	}
	e.logger.Info("project finished", "project", p.ID, "actor", actorID, "warnings", len(r.Warnings))
	e.notify(p.Name, notify.KindProject, "finished")
	return r.Warnings, nil
}

// CancelProject ends a Pending or Active project for good. Requires
// manage_project.
func (e *Engine) CancelProject(ctx context.Context, actorID, ref string, today time.Time) error {
	p, err := e.inProject(ctx, ref, func(tx store.Store, p *models.Project) error {
		if err := authorize(ctx, tx, actorID, p.ID, models.PermManageProject); err != nil {
			return err
		}
		return project.New(tx).Cancel(ctx, p, today)
	})
	if err != nil {
		return err
	}
	e.logger.Info("project cancelled", "project", p.ID, "actor", actorID)
	e.notify(p.Name, notify.KindProject, "cancelled")
	return nil
}
