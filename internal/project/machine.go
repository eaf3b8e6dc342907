package project

import (
	"context"
	"strings"
	"time"

	"github.com/joescharf/scrum/internal/guard"
	"github.com/joescharf/scrum/internal/ledger"
	"github.com/joescharf/scrum/internal/models"
	"github.com/joescharf/scrum/internal/store"
)

// Machine applies lifecycle transitions to stored projects.
type Machine struct {
	store  store.Store
	ledger *ledger.Ledger
}

// New returns a Machine over s. Inside a transaction pass the tx-bound store.
func New(s store.Store) *Machine {
	return &Machine{store: s, ledger: ledger.New(s)}
}

// Coverage reports which project permissions are held by a current member.
func (m *Machine) Coverage(ctx context.Context, projectID string) (map[models.Permission]bool, error) {
	members, err := m.store.ListMemberships(ctx, store.MembershipFilter{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	isMember := make(map[string]bool, len(members))
	for _, mb := range members {
		isMember[mb.UserID] = true
	}

	covered := make(map[models.Permission]bool)
	for _, perm := range models.ProjectCatalog() {
		holders, err := m.ledger.Holders(ctx, projectID, perm)
		if err != nil {
			return nil, err
		}
		for _, id := range holders {
			if isMember[id] {
				covered[perm] = true
				break
			}
		}
	}
	return covered, nil
}

// CheckStart evaluates the start guard without changing anything.
func (m *Machine) CheckStart(ctx context.Context, p *models.Project, today time.Time) (guard.Result, error) {
	if p.State != models.ProjectPending {
		return guard.Result{}, guard.Illegal("project", string(p.State), "start")
	}
	covered, err := m.Coverage(ctx, p.ID)
	if err != nil {
		return guard.Result{}, err
	}
	return ValidateStart(p, covered, today), nil
}

// Start moves a Pending project to Active when the guard passes.
func (m *Machine) Start(ctx context.Context, p *models.Project, today time.Time) (guard.Result, error) {
	r, err := m.CheckStart(ctx, p, today)
	if err != nil {
		return r, err
	}
	if err := r.Err(); err != nil {
		return r, err
	}

	p.State = models.ProjectActive
	p.ActualStart = models.DatePtr(today)
	if err := m.store.UpdateProject(ctx, p); err != nil {
		return r, err
	}
	return r, nil
}

// CheckFinish evaluates the finish guard without changing anything.
func (m *Machine) CheckFinish(ctx context.Context, p *models.Project, today time.Time) (guard.Result, error) {
	if p.State != models.ProjectActive {
		return guard.Result{}, guard.Illegal("project", string(p.State), "finish")
	}
	sprints, err := m.store.ListSprints(ctx, store.SprintFilter{ProjectID: p.ID})
	if err != nil {
		return guard.Result{}, err
	}
	items, err := m.store.ListItems(ctx, store.ItemFilter{ProjectID: p.ID, States: []models.WorkItemState{models.ItemPending}})
	if err != nil {
		return guard.Result{}, err
	}
	return ValidateFinish(p, sprints, items, today), nil
}

// Finish moves an Active project to Closed when the guard passes.
func (m *Machine) Finish(ctx context.Context, p *models.Project, today time.Time) (guard.Result, error) {
	r, err := m.CheckFinish(ctx, p, today)
	if err != nil {
		return r, err
	}
	if err := r.Err(); err != nil {
		return r, err
	}

	p.State = models.ProjectClosed
	p.ActualEnd = models.DatePtr(today)
	if err := m.store.UpdateProject(ctx, p); err != nil {
		return r, err
	}
	return r, nil
}

// Cancel ends a Pending or Active project for good. A running sprint closes
// with it; its items stay where they are.
func (m *Machine) Cancel(ctx context.Context, p *models.Project, today time.Time) error {
	if !p.Editable() {
		return guard.Illegal("project", string(p.State), "cancel")
	}
	active, err := m.store.ListSprints(ctx, store.SprintFilter{ProjectID: p.ID, States: []models.SprintState{models.SprintActive}})
	if err != nil {
		return err
	}
	for _, sp := range active {
		sp.State = models.SprintClosed
		sp.ActualEnd = models.DatePtr(today)
		if err := m.store.UpdateSprint(ctx, sp); err != nil {
			return err
		}
	}

	p.State = models.ProjectCancelled
	p.ActualEnd = models.DatePtr(today)
	return m.store.UpdateProject(ctx, p)
}

// Changes holds the editable project fields. Nil fields are left alone.
type Changes struct {
	Name              *string
	Description       *string
	StartDate         *time.Time
	EndDate           *time.Time
	DefaultSprintDays *int
}

// Edit applies changes to a Pending or Active project. The start date is
// fixed once the project is Active.
func (m *Machine) Edit(ctx context.Context, p *models.Project, c Changes) error {
	if !p.Editable() {
		return guard.Illegal("project", string(p.State), "edit")
	}
	if c.StartDate != nil && p.State == models.ProjectActive {
		return guard.Inconsistent("the start date cannot change once the project is active")
	}

	if c.Name != nil {
		name := strings.TrimSpace(*c.Name)
		if name == "" {
			return guard.Inconsistent("a project name is required")
		}
		p.Name = name
	}
	if c.Description != nil {
		p.Description = *c.Description
	}
	if c.StartDate != nil {
		p.StartDate = models.DatePtr(*c.StartDate)
	}
	if c.EndDate != nil {
		p.EndDate = models.DatePtr(*c.EndDate)
	}
	if c.DefaultSprintDays != nil {
		if *c.DefaultSprintDays < 1 {
			return guard.Inconsistent("the default sprint length must be at least one day")
		}
		days := *c.DefaultSprintDays
		p.DefaultSprintDays = &days
	}

	start := p.StartDate
	if p.ActualStart != nil {
		start = p.ActualStart
	}
	if start != nil && p.EndDate != nil && !p.EndDate.After(*start) {
		return guard.Inconsistent("the end date must be after the start date")
	}
	return m.store.UpdateProject(ctx, p)
}
