package sprint

import (
	"context"
	"errors"

	"github.com/joescharf/scrum/internal/guard"
	"github.com/joescharf/scrum/internal/models"
	"github.com/joescharf/scrum/internal/store"
)

// AddMember adds a developer of the project to the sprint team.
func (m *Machine) AddMember(ctx context.Context, sp *models.Sprint, userID string, dailyHours int) (*models.SprintMember, error) {
	if sp.State == models.SprintClosed {
		return nil, guard.Illegal("sprint", string(sp.State), "add a member to")
	}
	if dailyHours < 0 || dailyHours > 24 {
		return nil, guard.Inconsistent("daily hours must be between 0 and 24, got %d", dailyHours)
	}
	dev, err := m.ledger.Check(ctx, userID, sp.ProjectID, models.PermDevelop)
	if err != nil {
		return nil, err
	}
	if !dev {
		return nil, guard.Inconsistent("user %s does not hold develop on the project", userID)
	}
	if _, err := m.store.GetSprintMemberByUser(ctx, sp.ID, userID); err == nil {
		return nil, guard.Inconsistent("user %s is already in the sprint", userID)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	member := &models.SprintMember{SprintID: sp.ID, UserID: userID, DailyHours: dailyHours}
	if err := m.store.CreateSprintMember(ctx, member); err != nil {
		return nil, err
	}
	return member, nil
}

// SetHours changes a member's daily availability.
func (m *Machine) SetHours(ctx context.Context, sp *models.Sprint, userID string, dailyHours int) (*models.SprintMember, error) {
	if sp.State == models.SprintClosed {
		return nil, guard.Illegal("sprint", string(sp.State), "change hours in")
	}
	if dailyHours < 0 || dailyHours > 24 {
		return nil, guard.Inconsistent("daily hours must be between 0 and 24, got %d", dailyHours)
	}
	member, err := m.store.GetSprintMemberByUser(ctx, sp.ID, userID)
	if err != nil {
		return nil, notFoundAs(err, "user %s is not in the sprint", userID)
	}
	member.DailyHours = dailyHours
	if err := m.store.UpdateSprintMember(ctx, member); err != nil {
		return nil, err
	}
	return member, nil
}

// RemoveMember takes a user out of the sprint team. Their assignments go
// with them; logged increments keep their hours.
func (m *Machine) RemoveMember(ctx context.Context, sp *models.Sprint, userID string) error {
	if sp.State == models.SprintClosed {
		return guard.Illegal("sprint", string(sp.State), "remove a member from")
	}
	member, err := m.store.GetSprintMemberByUser(ctx, sp.ID, userID)
	if err != nil {
		return notFoundAs(err, "user %s is not in the sprint", userID)
	}
	return m.store.DeleteSprintMember(ctx, member.ID)
}
