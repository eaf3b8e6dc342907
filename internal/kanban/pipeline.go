package kanban

import (
	"context"
	"time"

	"github.com/joescharf/scrum/internal/models"
	"github.com/joescharf/scrum/internal/store"
)

// Pipeline applies actions to stored work items.
type Pipeline struct {
	store store.Store
}

// New returns a Pipeline over s. Inside a transaction pass the tx-bound store.
func New(s store.Store) *Pipeline {
	return &Pipeline{store: s}
}

// Request is one action on one item.
type Request struct {
	Item    *models.WorkItem
	Action  models.WorkItemAction
	Hours   int
	ActorID string
	Member  *models.SprintMember // the actor's sprint membership, if any
	Today   time.Time
}

// Apply updates the item and appends its increments. Same-day hours of one
// user on one item accumulate into a single row. Items outside any sprint
// change state without a ledger row.
func (p *Pipeline) Apply(ctx context.Context, req Request) (Effect, error) {
	e, err := Plan(req.Item, req.Action, req.Hours)
	if err != nil {
		return e, err
	}

	item := req.Item
	item.State = e.To
	item.WorkedHours += e.Hours
	if err := p.store.UpdateItem(ctx, item); err != nil {
		return e, err
	}

	if item.SprintID == nil {
		return e, nil
	}
	today := models.Day(req.Today)
	var memberID *string
	if req.Member != nil {
		id := req.Member.ID
		memberID = &id
	}

	if e.Hours > 0 {
		if err := p.addHours(ctx, item, req.ActorID, memberID, today, e.Hours); err != nil {
			return e, err
		}
	}
	if e.Transition {
		state := e.To
		inc := &models.Increment{
			ItemID:         item.ID,
			SprintID:       *item.SprintID,
			SprintMemberID: memberID,
			UserID:         req.ActorID,
			Date:           today,
			State:          &state,
		}
		if err := p.store.CreateIncrement(ctx, inc); err != nil {
			return e, err
		}
	}
	return e, nil
}

func (p *Pipeline) addHours(ctx context.Context, item *models.WorkItem, userID string, memberID *string, day time.Time, hours int) error {
	rows, err := p.store.ListIncrements(ctx, store.IncrementFilter{ItemID: item.ID, UserID: userID, Date: &day})
	if err != nil {
		return err
	}
	for _, inc := range rows {
		if !inc.IsTransition() && inc.SprintID == *item.SprintID {
			return p.store.AddIncrementHours(ctx, inc.ID, hours)
		}
	}
	return p.store.CreateIncrement(ctx, &models.Increment{
		ItemID:         item.ID,
		SprintID:       *item.SprintID,
		SprintMemberID: memberID,
		UserID:         userID,
		Date:           day,
		Hours:          hours,
	})
}
