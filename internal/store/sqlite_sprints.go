package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joescharf/scrum/internal/models"
)

// --- Sprints ---

const sprintColumns = `id, project_id, name, description, state, start_date, end_date,
	original_end_date, actual_start, actual_end, baseline_cost, review, created_at, updated_at`

func scanSprint(row rowScanner) (*models.Sprint, error) {
	sp := &models.Sprint{}
	var state, startDate, endDate string
	var originalEnd, actualStart, actualEnd sql.NullString
	var baseline sql.NullInt64

	if err := row.Scan(&sp.ID, &sp.ProjectID, &sp.Name, &sp.Description, &state, &startDate, &endDate,
		&originalEnd, &actualStart, &actualEnd, &baseline, &sp.Review, &sp.CreatedAt, &sp.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if sp.State, err = models.ParseSprintState(state); err != nil {
		return nil, err
	}
	if sp.StartDate, err = parseDate(startDate); err != nil {
		return nil, err
	}
	if sp.EndDate, err = parseDate(endDate); err != nil {
		return nil, err
	}
	if sp.OriginalEndDate, err = parseNullDate(originalEnd); err != nil {
		return nil, err
	}
	if sp.ActualStart, err = parseNullDate(actualStart); err != nil {
		return nil, err
	}
	if sp.ActualEnd, err = parseNullDate(actualEnd); err != nil {
		return nil, err
	}
	sp.BaselineCost = nullInt(baseline)
	return sp, nil
}

func (s *SQLiteStore) CreateSprint(ctx context.Context, sp *models.Sprint) error {
	if sp.ID == "" {
		sp.ID = newULID()
	}
	if sp.State == "" {
		sp.State = models.SprintPending
	}
	now := time.Now().UTC()
	sp.CreatedAt = now
	sp.UpdatedAt = now

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO sprints (`+sprintColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sp.ID, sp.ProjectID, sp.Name, sp.Description, string(sp.State),
		sp.StartDate.Format(models.DateLayout), sp.EndDate.Format(models.DateLayout),
		dateArg(sp.OriginalEndDate), dateArg(sp.ActualStart), dateArg(sp.ActualEnd),
		intArg(sp.BaselineCost), sp.Review, sp.CreatedAt, sp.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create sprint: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetSprint(ctx context.Context, id string) (*models.Sprint, error) {
	sp, err := scanSprint(s.q.QueryRowContext(ctx, `SELECT `+sprintColumns+` FROM sprints WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("sprint", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get sprint: %w", err)
	}
	return sp, nil
}

func (s *SQLiteStore) ListSprints(ctx context.Context, filter SprintFilter) ([]*models.Sprint, error) {
	query := `SELECT ` + sprintColumns + ` FROM sprints`
	var conditions []string
	var args []any

	if filter.ProjectID != "" {
		conditions = append(conditions, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if len(filter.States) > 0 {
		clause, stateArgs := inClause("state", filter.States)
		conditions = append(conditions, clause)
		args = append(args, stateArgs...)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY start_date, created_at"

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sprints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sprints []*models.Sprint
	for rows.Next() {
		sp, err := scanSprint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sprint: %w", err)
		}
		sprints = append(sprints, sp)
	}
	return sprints, rows.Err()
}

func (s *SQLiteStore) UpdateSprint(ctx context.Context, sp *models.Sprint) error {
	sp.UpdatedAt = time.Now().UTC()
	result, err := s.q.ExecContext(ctx,
		`UPDATE sprints SET name=?, description=?, state=?, start_date=?, end_date=?,
		original_end_date=?, actual_start=?, actual_end=?, baseline_cost=?, review=?, updated_at=?
		WHERE id=?`,
		sp.Name, sp.Description, string(sp.State),
		sp.StartDate.Format(models.DateLayout), sp.EndDate.Format(models.DateLayout),
		dateArg(sp.OriginalEndDate), dateArg(sp.ActualStart), dateArg(sp.ActualEnd),
		intArg(sp.BaselineCost), sp.Review, sp.UpdatedAt,
		sp.ID,
	)
	if err != nil {
		return fmt.Errorf("update sprint: %w", err)
	}
	return checkAffected(result, "sprint", sp.ID)
}

// --- Sprint members ---

func (s *SQLiteStore) CreateSprintMember(ctx context.Context, m *models.SprintMember) error {
	if m.ID == "" {
		m.ID = newULID()
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO sprint_members (id, sprint_id, user_id, daily_hours) VALUES (?, ?, ?, ?)`,
		m.ID, m.SprintID, m.UserID, m.DailyHours,
	)
	if err != nil {
		return fmt.Errorf("create sprint member: %w", err)
	}
	return nil
}

func (s *SQLiteStore) getSprintMemberWhere(ctx context.Context, key, where string, args ...any) (*models.SprintMember, error) {
	m := &models.SprintMember{}
	err := s.q.QueryRowContext(ctx,
		`SELECT id, sprint_id, user_id, daily_hours FROM sprint_members WHERE `+where, args...,
	).Scan(&m.ID, &m.SprintID, &m.UserID, &m.DailyHours)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("sprint member", key)
	}
	if err != nil {
		return nil, fmt.Errorf("get sprint member: %w", err)
	}
	if err := s.loadAssignments(ctx, []*models.SprintMember{m}); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *SQLiteStore) GetSprintMember(ctx context.Context, id string) (*models.SprintMember, error) {
	return s.getSprintMemberWhere(ctx, id, "id = ?", id)
}

func (s *SQLiteStore) GetSprintMemberByUser(ctx context.Context, sprintID, userID string) (*models.SprintMember, error) {
	return s.getSprintMemberWhere(ctx, userID, "sprint_id = ? AND user_id = ?", sprintID, userID)
}

func (s *SQLiteStore) ListSprintMembers(ctx context.Context, sprintID string) ([]*models.SprintMember, error) {
	members, err := s.querySprintMembers(ctx, sprintID)
	if err != nil {
		return nil, err
	}
	if err := s.loadAssignments(ctx, members); err != nil {
		return nil, err
	}
	return members, nil
}

func (s *SQLiteStore) querySprintMembers(ctx context.Context, sprintID string) ([]*models.SprintMember, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT m.id, m.sprint_id, m.user_id, m.daily_hours
		FROM sprint_members m JOIN users u ON u.id = m.user_id
		WHERE m.sprint_id = ? ORDER BY u.name, m.user_id`, sprintID)
	if err != nil {
		return nil, fmt.Errorf("list sprint members: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var members []*models.SprintMember
	for rows.Next() {
		m := &models.SprintMember{}
		if err := rows.Scan(&m.ID, &m.SprintID, &m.UserID, &m.DailyHours); err != nil {
			return nil, fmt.Errorf("scan sprint member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *SQLiteStore) loadAssignments(ctx context.Context, members []*models.SprintMember) error {
	if len(members) == 0 {
		return nil
	}
	byID := make(map[string]*models.SprintMember, len(members))
	ids := make([]string, 0, len(members))
	for _, m := range members {
		byID[m.ID] = m
		m.ItemIDs = nil
		ids = append(ids, m.ID)
	}

	clause, args := inClause("a.sprint_member_id", ids)
	rows, err := s.q.QueryContext(ctx,
		`SELECT a.sprint_member_id, a.item_id FROM sprint_assignments a
		JOIN work_items w ON w.id = a.item_id
		WHERE `+clause+` ORDER BY w.priority, w.number`, args...)
	if err != nil {
		return fmt.Errorf("load assignments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var memberID, itemID string
		if err := rows.Scan(&memberID, &itemID); err != nil {
			return fmt.Errorf("scan assignment: %w", err)
		}
		if m := byID[memberID]; m != nil {
			m.ItemIDs = append(m.ItemIDs, itemID)
		}
	}
	return rows.Err()
}

func (s *SQLiteStore) UpdateSprintMember(ctx context.Context, m *models.SprintMember) error {
	result, err := s.q.ExecContext(ctx,
		`UPDATE sprint_members SET daily_hours=? WHERE id=?`, m.DailyHours, m.ID)
	if err != nil {
		return fmt.Errorf("update sprint member: %w", err)
	}
	return checkAffected(result, "sprint member", m.ID)
}

func (s *SQLiteStore) DeleteSprintMember(ctx context.Context, id string) error {
	result, err := s.q.ExecContext(ctx, "DELETE FROM sprint_members WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete sprint member: %w", err)
	}
	return checkAffected(result, "sprint member", id)
}

// AssignItem makes memberID responsible for itemID within the sprint,
// replacing any previous assignee.
func (s *SQLiteStore) AssignItem(ctx context.Context, sprintID, memberID, itemID string) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO sprint_assignments (sprint_id, item_id, sprint_member_id) VALUES (?, ?, ?)
		ON CONFLICT (sprint_id, item_id) DO UPDATE SET sprint_member_id = excluded.sprint_member_id`,
		sprintID, itemID, memberID,
	)
	if err != nil {
		return fmt.Errorf("assign item: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UnassignItem(ctx context.Context, sprintID, itemID string) error {
	_, err := s.q.ExecContext(ctx,
		`DELETE FROM sprint_assignments WHERE sprint_id = ? AND item_id = ?`, sprintID, itemID)
	if err != nil {
		return fmt.Errorf("unassign item: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetItemAssignee(ctx context.Context, sprintID, itemID string) (*models.SprintMember, error) {
	var memberID string
	err := s.q.QueryRowContext(ctx,
		`SELECT sprint_member_id FROM sprint_assignments WHERE sprint_id = ? AND item_id = ?`,
		sprintID, itemID,
	).Scan(&memberID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("assignee of item", itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("get item assignee: %w", err)
	}
	return s.GetSprintMember(ctx, memberID)
}
