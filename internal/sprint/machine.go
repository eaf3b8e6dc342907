package sprint

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/joescharf/scrum/internal/guard"
	"github.com/joescharf/scrum/internal/ledger"
	"github.com/joescharf/scrum/internal/models"
	"github.com/joescharf/scrum/internal/store"
)

// Machine applies sprint transitions and planning changes to stored sprints.
type Machine struct {
	store  store.Store
	ledger *ledger.Ledger
}

// New returns a Machine over s. Inside a transaction pass the tx-bound store.
func New(s store.Store) *Machine {
	return &Machine{store: s, ledger: ledger.New(s)}
}

// Active returns the project's active sprint, or nil.
func (m *Machine) Active(ctx context.Context, projectID string) (*models.Sprint, error) {
	sprints, err := m.store.ListSprints(ctx, store.SprintFilter{
		ProjectID: projectID,
		States:    []models.SprintState{models.SprintActive},
	})
	if err != nil {
		return nil, err
	}
	if len(sprints) == 0 {
		return nil, nil
	}
	return sprints[0], nil
}

// Create adds a Pending sprint to p. days of 0 uses the project's default
// sprint length.
func (m *Machine) Create(ctx context.Context, p *models.Project, name, description string, start time.Time, days int, today time.Time) (*models.Sprint, guard.Result, error) {
	if !p.Editable() {
		return nil, guard.Result{}, guard.Illegal("project", string(p.State), "plan a sprint in")
	}
	if days == 0 && p.DefaultSprintDays != nil {
		days = *p.DefaultSprintDays
	}

	r := ValidateNew(p, name, start, days, today)
	if err := r.Err(); err != nil {
		return nil, r, err
	}

	sp := &models.Sprint{
		ProjectID:   p.ID,
		Name:        strings.TrimSpace(name),
		Description: description,
		State:       models.SprintPending,
		StartDate:   models.Day(start),
		EndDate:     models.AddDays(start, days),
	}
	if err := m.store.CreateSprint(ctx, sp); err != nil {
		return nil, r, err
	}
	return sp, r, nil
}

// Changes holds the editable sprint fields. Nil fields are left alone.
type Changes struct {
	Name        *string
	Description *string
	StartDate   *time.Time
	Days        *int
}

// Edit changes a sprint. Dates can only change while it is Pending.
func (m *Machine) Edit(ctx context.Context, sp *models.Sprint, c Changes) error {
	if sp.State == models.SprintClosed {
		return guard.Illegal("sprint", string(sp.State), "edit")
	}
	if sp.State != models.SprintPending && (c.StartDate != nil || c.Days != nil) {
		return guard.Inconsistent("sprint dates can only change before the sprint starts, extend it instead")
	}

	if c.Name != nil {
		name := strings.TrimSpace(*c.Name)
		if name == "" {
			return guard.Inconsistent("a sprint name is required")
		}
		sp.Name = name
	}
	if c.Description != nil {
		sp.Description = *c.Description
	}
	days := sp.Days()
	if c.Days != nil {
		days = *c.Days
	}
	if days < 1 {
		return guard.Inconsistent("a sprint must last at least one day")
	}
	if c.StartDate != nil {
		sp.StartDate = models.Day(*c.StartDate)
	}
	sp.EndDate = models.AddDays(sp.StartDate, days)
	return m.store.UpdateSprint(ctx, sp)
}

// Extend moves the end date of an Active sprint later. The originally
// planned end date stays as captured at activation.
func (m *Machine) Extend(ctx context.Context, sp *models.Sprint, end time.Time) error {
	if sp.State != models.SprintActive {
		return guard.Illegal("sprint", string(sp.State), "extend")
	}
	end = models.Day(end)
	if !end.After(sp.EndDate) {
		return guard.Inconsistent("the new end date %s must be after %s",
			end.Format(models.DateLayout), sp.EndDate.Format(models.DateLayout))
	}
	if sp.OriginalEndDate == nil {
		sp.OriginalEndDate = models.DatePtr(sp.EndDate)
	}
	sp.EndDate = end
	return m.store.UpdateSprint(ctx, sp)
}

// Backlog returns the sprint's work items.
func (m *Machine) Backlog(ctx context.Context, sprintID string) ([]*models.WorkItem, error) {
	return m.store.ListItems(ctx, store.ItemFilter{SprintID: sprintID})
}

// Capacity computes the current capacity figures of sp.
func (m *Machine) Capacity(ctx context.Context, sp *models.Sprint) (Capacity, error) {
	members, err := m.store.ListSprintMembers(ctx, sp.ID)
	if err != nil {
		return Capacity{}, err
	}
	items, err := m.Backlog(ctx, sp.ID)
	if err != nil {
		return Capacity{}, err
	}
	return ComputeCapacity(sp, members, items), nil
}

func (m *Machine) startInput(ctx context.Context, sp *models.Sprint) (StartInput, error) {
	p, err := m.store.GetProject(ctx, sp.ProjectID)
	if err != nil {
		return StartInput{}, err
	}
	active, err := m.Active(ctx, sp.ProjectID)
	if err != nil {
		return StartInput{}, err
	}
	members, err := m.store.ListSprintMembers(ctx, sp.ID)
	if err != nil {
		return StartInput{}, err
	}
	items, err := m.Backlog(ctx, sp.ID)
	if err != nil {
		return StartInput{}, err
	}

	assignees := make(map[string]string)
	for _, mb := range members {
		for _, id := range mb.ItemIDs {
			assignees[id] = mb.ID
		}
	}
	return StartInput{Project: p, Sprint: sp, Active: active, Members: members, Items: items, Assignees: assignees}, nil
}

// CheckStart evaluates the start guard without changing anything.
func (m *Machine) CheckStart(ctx context.Context, sp *models.Sprint, today time.Time) (guard.Result, error) {
	if sp.State != models.SprintPending {
		return guard.Result{}, guard.Illegal("sprint", string(sp.State), "start")
	}
	in, err := m.startInput(ctx, sp)
	if err != nil {
		return guard.Result{}, err
	}
	return ValidateStart(in, today), nil
}

// Start activates a Pending sprint, snapshotting its planned end date and
// backlog cost.
func (m *Machine) Start(ctx context.Context, sp *models.Sprint, today time.Time) (guard.Result, error) {
	if sp.State != models.SprintPending {
		return guard.Result{}, guard.Illegal("sprint", string(sp.State), "start")
	}
	in, err := m.startInput(ctx, sp)
	if err != nil {
		return guard.Result{}, err
	}
	r := ValidateStart(in, today)
	if err := r.Err(); err != nil {
		return r, err
	}

	cost := ComputeCapacity(sp, in.Members, in.Items).BacklogCost
	sp.State = models.SprintActive
	sp.ActualStart = models.DatePtr(today)
	sp.OriginalEndDate = models.DatePtr(sp.EndDate)
	sp.BaselineCost = &cost
	if err := m.store.UpdateSprint(ctx, sp); err != nil {
		return r, err
	}
	return r, nil
}

// CheckFinish evaluates the finish guard without changing anything.
func (m *Machine) CheckFinish(ctx context.Context, sp *models.Sprint, today time.Time) (guard.Result, error) {
	if sp.State != models.SprintActive {
		return guard.Result{}, guard.Illegal("sprint", string(sp.State), "finish")
	}
	items, err := m.Backlog(ctx, sp.ID)
	if err != nil {
		return guard.Result{}, err
	}
	return ValidateFinish(sp, items, today), nil
}

// Finish closes an Active sprint. Open items roll back to the product
// backlog and lose their sprint assignment. Done and Cancelled items stay.
func (m *Machine) Finish(ctx context.Context, sp *models.Sprint, today time.Time) (guard.Result, []*models.WorkItem, error) {
	r, err := m.CheckFinish(ctx, sp, today)
	if err != nil {
		return r, nil, err
	}
	items, err := m.Backlog(ctx, sp.ID)
	if err != nil {
		return r, nil, err
	}

	var rolled []*models.WorkItem
	for _, w := range items {
		if !w.State.Open() {
			continue
		}
		if err := m.store.UnassignItem(ctx, sp.ID, w.ID); err != nil {
			return r, nil, err
		}
		w.SprintID = nil
		if err := m.store.UpdateItem(ctx, w); err != nil {
			return r, nil, err
		}
		rolled = append(rolled, w)
	}

	sp.State = models.SprintClosed
	sp.ActualEnd = models.DatePtr(today)
	if err := m.store.UpdateSprint(ctx, sp); err != nil {
		return r, nil, err
	}
	return r, rolled, nil
}

// SetReview records the sprint review of a Closed sprint.
func (m *Machine) SetReview(ctx context.Context, sp *models.Sprint, review string) error {
	if sp.State != models.SprintClosed {
		return guard.Illegal("sprint", string(sp.State), "review")
	}
	sp.Review = strings.TrimSpace(review)
	return m.store.UpdateSprint(ctx, sp)
}

// notFoundAs maps a store not-found into a consistency error.
func notFoundAs(err error, format string, a ...any) error {
	if errors.Is(err, store.ErrNotFound) {
		return guard.Inconsistent(format, a...)
	}
	return err
}
