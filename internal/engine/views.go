package engine

import (
	"context"
	"errors"
	"time"

	"github.com/joescharf/scrum/internal/audit"
	"github.com/joescharf/scrum/internal/board"
	"github.com/joescharf/scrum/internal/burndown"
	"github.com/joescharf/scrum/internal/guard"
	"github.com/joescharf/scrum/internal/health"
	"github.com/joescharf/scrum/internal/ledger"
	"github.com/joescharf/scrum/internal/models"
	"github.com/joescharf/scrum/internal/notify"
	"github.com/joescharf/scrum/internal/schedule"
	"github.com/joescharf/scrum/internal/sprint"
	"github.com/joescharf/scrum/internal/store"
)

// sprintCost is the backlog cost the burndown starts from: the snapshot
// taken at activation, or the current cost of a sprint never started.
func sprintCost(ctx context.Context, s store.Store, sp *models.Sprint) (int, error) {
	if sp.BaselineCost != nil {
		return *sp.BaselineCost, nil
	}
	c, err := sprint.New(s).Capacity(ctx, sp)
	if err != nil {
		return 0, err
	}
	return c.BacklogCost, nil
}

// ComputeBurndown derives the burndown of a sprint as of today.
func (e *Engine) ComputeBurndown(ctx context.Context, actorID, sprintID string, today time.Time) (burndown.Series, error) {
	sp, err := e.Sprint(ctx, actorID, sprintID)
	if err != nil {
		return burndown.Series{}, err
	}
	cost, err := sprintCost(ctx, e.store, sp)
	if err != nil {
		return burndown.Series{}, err
	}
	incs, err := e.store.ListIncrements(ctx, store.IncrementFilter{SprintID: sp.ID})
	if err != nil {
		return burndown.Series{}, err
	}
	return burndown.Compute(sp, cost, incs, today)
}

// activeSprint returns the active sprint of p or a consistency error.
func activeSprint(ctx context.Context, s store.Store, p *models.Project) (*models.Sprint, error) {
	sp, err := sprint.New(s).Active(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if sp == nil {
		return nil, guard.Inconsistent("project %q has no active sprint", p.Name)
	}
	return sp, nil
}

// Board groups the active sprint backlog by pipeline state. Managers see
// every item; developers see the items assigned to them.
func (e *Engine) Board(ctx context.Context, actorID, projectRef string) (*board.Board, error) {
	p, err := e.Project(ctx, actorID, projectRef)
	if err != nil {
		return nil, err
	}
	sp, err := activeSprint(ctx, e.store, p)
	if err != nil {
		return nil, err
	}
	items, err := sprint.New(e.store).Backlog(ctx, sp.ID)
	if err != nil {
		return nil, err
	}
	members, err := e.store.ListSprintMembers(ctx, sp.ID)
	if err != nil {
		return nil, err
	}
	manager, err := isManager(ctx, e.store, actorID, p.ID)
	if err != nil {
		return nil, err
	}

	assignees := make(map[string]string)
	mine := make(map[string]bool)
	for _, m := range members {
		u, err := e.store.GetUser(ctx, m.UserID)
		if err != nil {
			return nil, err
		}
		name := u.Name
		if name == "" {
			name = u.ID
		}
		for _, id := range m.ItemIDs {
			assignees[id] = name
			if m.UserID == actorID {
				mine[id] = true
			}
		}
	}

	if !manager {
		visible := items[:0]
		for _, w := range items {
			if mine[w.ID] {
				visible = append(visible, w)
			}
		}
		items = visible
	}
	return board.Build(sp, items, assignees), nil
}

// Activity lists the increments of the project's active sprint by date.
func (e *Engine) Activity(ctx context.Context, actorID, projectRef string) ([]*models.Increment, error) {
	p, err := e.Project(ctx, actorID, projectRef)
	if err != nil {
		return nil, err
	}
	sp, err := activeSprint(ctx, e.store, p)
	if err != nil {
		return nil, err
	}
	return e.store.ListIncrements(ctx, store.IncrementFilter{SprintID: sp.ID})
}

// Calendar lists the planned start and end events of a project and its sprints.
func (e *Engine) Calendar(ctx context.Context, actorID, projectRef string) ([]schedule.Event, error) {
	p, err := e.Project(ctx, actorID, projectRef)
	if err != nil {
		return nil, err
	}
	sprints, err := e.store.ListSprints(ctx, store.SprintFilter{ProjectID: p.ID})
	if err != nil {
		return nil, err
	}
	return schedule.Calendar(p, sprints), nil
}

// SendReminders notifies the events of Pending and Active projects that are
// due today and returns them.
func (e *Engine) SendReminders(ctx context.Context, today time.Time) ([]schedule.Event, error) {
	projects, err := e.store.ListProjects(ctx, store.ProjectFilter{
		States: []models.ProjectState{models.ProjectPending, models.ProjectActive},
	})
	if err != nil {
		return nil, err
	}

	var sent []schedule.Event
	for _, p := range projects {
		sprints, err := e.store.ListSprints(ctx, store.SprintFilter{ProjectID: p.ID})
		if err != nil {
			return sent, err
		}
		for _, ev := range schedule.Due(p, sprints, today) {
			e.notify(ev.Name, notify.KindReminder, ev.Message())
			sent = append(sent, ev)
		}
	}
	e.logger.Info("reminders sent", "count", len(sent), "date", today.Format(models.DateLayout))
	return sent, nil
}

// DailyHours is what a developer logged on one day of the active sprint.
type DailyHours struct {
	SprintID  string
	Date      time.Time
	Logged    int
	Available int
}

// Remaining returns the hours still available that day, never negative.
func (d DailyHours) Remaining() int {
	if d.Logged >= d.Available {
		return 0
	}
	return d.Available - d.Logged
}

// HoursToday reports the actor's logged hours today against their daily
// availability in the active sprint.
func (e *Engine) HoursToday(ctx context.Context, actorID, projectRef string, today time.Time) (DailyHours, error) {
	p, err := e.Project(ctx, actorID, projectRef)
	if err != nil {
		return DailyHours{}, err
	}
	sp, err := activeSprint(ctx, e.store, p)
	if err != nil {
		return DailyHours{}, err
	}
	member, err := e.store.GetSprintMemberByUser(ctx, sp.ID, actorID)
	if errors.Is(err, store.ErrNotFound) {
		return DailyHours{}, guard.Inconsistent("user %s is not in sprint %q", actorID, sp.Name)
	}
	if err != nil {
		return DailyHours{}, err
	}

	day := models.Day(today)
	incs, err := e.store.ListIncrements(ctx, store.IncrementFilter{SprintID: sp.ID, UserID: actorID, Date: &day})
	if err != nil {
		return DailyHours{}, err
	}
	d := DailyHours{SprintID: sp.ID, Date: day, Available: member.DailyHours}
	for _, inc := range incs {
		if !inc.IsTransition() {
			d.Logged += inc.Hours
		}
	}
	return d, nil
}

// SprintHealth scores a sprint from its capacity, estimates, burndown and
// recent activity.
func (e *Engine) SprintHealth(ctx context.Context, actorID, sprintID string, today time.Time) (*health.HealthScore, error) {
	sp, err := e.Sprint(ctx, actorID, sprintID)
	if err != nil {
		return nil, err
	}
	m := sprint.New(e.store)
	capacity, err := m.Capacity(ctx, sp)
	if err != nil {
		return nil, err
	}
	items, err := m.Backlog(ctx, sp.ID)
	if err != nil {
		return nil, err
	}
	series, err := e.ComputeBurndown(ctx, actorID, sp.ID, today)
	if err != nil {
		return nil, err
	}
	incs, err := e.store.ListIncrements(ctx, store.IncrementFilter{SprintID: sp.ID})
	if err != nil {
		return nil, err
	}

	meta := &health.SprintMetrics{Capacity: capacity, Burndown: series, Today: today}
	for _, inc := range incs {
		if !inc.IsTransition() && inc.Hours > 0 && inc.Date.After(meta.LastActivity) {
			meta.LastActivity = inc.Date
		}
	}
	return health.NewScorer().Score(sp, meta, items), nil
}

// Audit fingerprints the increment ledger of a project and reports work
// items whose worked hours drifted from it. Requires the global audit.
func (e *Engine) Audit(ctx context.Context, actorID, projectRef string) (*audit.Report, error) {
	if err := authorize(ctx, e.store, actorID, ledger.Global, models.PermAudit); err != nil {
		return nil, err
	}
	p, err := resolveProject(ctx, e.store, projectRef)
	if err != nil {
		return nil, err
	}
	items, err := e.store.ListItems(ctx, store.ItemFilter{ProjectID: p.ID})
	if err != nil {
		return nil, err
	}
	sprints, err := e.store.ListSprints(ctx, store.SprintFilter{ProjectID: p.ID})
	if err != nil {
		return nil, err
	}
	var incs []*models.Increment
	for _, sp := range sprints {
		rows, err := e.store.ListIncrements(ctx, store.IncrementFilter{SprintID: sp.ID})
		if err != nil {
			return nil, err
		}
		incs = append(incs, rows...)
	}
	return audit.Build(p.ID, items, incs)
}
