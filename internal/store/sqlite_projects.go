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

// --- Projects ---

const projectColumns = `id, name, description, creator_id, default_sprint_days, state,
	start_date, end_date, actual_start, actual_end, next_item_number, created_at, updated_at`

func scanProject(row rowScanner) (*models.Project, error) {
	p := &models.Project{}
	var creator, startDate, endDate, actualStart, actualEnd sql.NullString
	var sprintDays sql.NullInt64
	var state string

	if err := row.Scan(&p.ID, &p.Name, &p.Description, &creator, &sprintDays, &state,
		&startDate, &endDate, &actualStart, &actualEnd, &p.NextItemNumber, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if p.State, err = models.ParseProjectState(state); err != nil {
		return nil, err
	}
	p.CreatorID = nullString(creator)
	p.DefaultSprintDays = nullInt(sprintDays)
	if p.StartDate, err = parseNullDate(startDate); err != nil {
		return nil, err
	}
	if p.EndDate, err = parseNullDate(endDate); err != nil {
		return nil, err
	}
	if p.ActualStart, err = parseNullDate(actualStart); err != nil {
		return nil, err
	}
	if p.ActualEnd, err = parseNullDate(actualEnd); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *SQLiteStore) CreateProject(ctx context.Context, p *models.Project) error {
	if p.ID == "" {
		p.ID = newULID()
	}
	if p.State == "" {
		p.State = models.ProjectPending
	}
	if p.NextItemNumber < 1 {
		p.NextItemNumber = 1
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, stringArg(p.CreatorID), intArg(p.DefaultSprintDays), string(p.State),
		dateArg(p.StartDate), dateArg(p.EndDate), dateArg(p.ActualStart), dateArg(p.ActualEnd),
		p.NextItemNumber, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	p, err := scanProject(s.q.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("project", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) GetProjectByName(ctx context.Context, name string) (*models.Project, error) {
	p, err := scanProject(s.q.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("project", name)
	}
	if err != nil {
		return nil, fmt.Errorf("get project by name: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) ListProjects(ctx context.Context, filter ProjectFilter) ([]*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects`
	var conditions []string
	var args []any

	if len(filter.States) > 0 {
		clause, stateArgs := inClause("state", filter.States)
		conditions = append(conditions, clause)
		args = append(args, stateArgs...)
	}
	if filter.MemberID != "" {
		conditions = append(conditions, "id IN (SELECT project_id FROM memberships WHERE user_id = ?)")
		args = append(args, filter.MemberID)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY name"

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projects []*models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *SQLiteStore) UpdateProject(ctx context.Context, p *models.Project) error {
	p.UpdatedAt = time.Now().UTC()
	result, err := s.q.ExecContext(ctx,
		`UPDATE projects SET name=?, description=?, default_sprint_days=?, state=?,
		start_date=?, end_date=?, actual_start=?, actual_end=?, updated_at=?
		WHERE id=?`,
		p.Name, p.Description, intArg(p.DefaultSprintDays), string(p.State),
		dateArg(p.StartDate), dateArg(p.EndDate), dateArg(p.ActualStart), dateArg(p.ActualEnd), p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return checkAffected(result, "project", p.ID)
}

// NextItemNumber reserves and returns the next work item sequence number.
func (s *SQLiteStore) NextItemNumber(ctx context.Context, projectID string) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		`UPDATE projects SET next_item_number = next_item_number + 1 WHERE id = ? RETURNING next_item_number - 1`,
		projectID,
	).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, notFound("project", projectID)
	}
	if err != nil {
		return 0, fmt.Errorf("next item number: %w", err)
	}
	return n, nil
}
