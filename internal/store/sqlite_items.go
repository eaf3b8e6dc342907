package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joescharf/scrum/internal/models"
)

// --- Work items ---

const itemColumns = `id, project_id, sprint_id, number, title, description, priority,
	estimated_hours, worked_hours, state, creator_id, created_at, updated_at`

func scanItem(row rowScanner) (*models.WorkItem, error) {
	w := &models.WorkItem{}
	var sprintID, creator sql.NullString
	var estimate sql.NullInt64
	var state string

	if err := row.Scan(&w.ID, &w.ProjectID, &sprintID, &w.Number, &w.Title, &w.Description, &w.Priority,
		&estimate, &w.WorkedHours, &state, &creator, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if w.State, err = models.ParseWorkItemState(state); err != nil {
		return nil, err
	}
	w.SprintID = nullString(sprintID)
	w.CreatorID = nullString(creator)
	w.EstimatedHours = nullInt(estimate)
	return w, nil
}

func (s *SQLiteStore) CreateItem(ctx context.Context, w *models.WorkItem) error {
	if w.ID == "" {
		w.ID = newULID()
	}
	if w.State == "" {
		w.State = models.ItemPending
	}
	if w.Priority == 0 {
		w.Priority = models.PriorityDefault
	}
	now := time.Now().UTC()
	w.CreatedAt = now
	w.UpdatedAt = now

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO work_items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.ProjectID, stringArg(w.SprintID), w.Number, w.Title, w.Description, w.Priority,
		intArg(w.EstimatedHours), w.WorkedHours, string(w.State), stringArg(w.CreatorID), w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create work item: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetItem(ctx context.Context, id string) (*models.WorkItem, error) {
	w, err := scanItem(s.q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM work_items WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("work item", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get work item: %w", err)
	}
	return w, nil
}

func (s *SQLiteStore) GetItemByNumber(ctx context.Context, projectID string, number int) (*models.WorkItem, error) {
	w, err := scanItem(s.q.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM work_items WHERE project_id = ? AND number = ?`, projectID, number))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("work item", "#"+strconv.Itoa(number))
	}
	if err != nil {
		return nil, fmt.Errorf("get work item by number: %w", err)
	}
	return w, nil
}

func (s *SQLiteStore) ListItems(ctx context.Context, filter ItemFilter) ([]*models.WorkItem, error) {
	query := `SELECT ` + itemColumns + ` FROM work_items`
	var conditions []string
	var args []any

	if filter.ProjectID != "" {
		conditions = append(conditions, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.SprintID != "" {
		conditions = append(conditions, "sprint_id = ?")
		args = append(args, filter.SprintID)
	}
	if filter.Backlog {
		conditions = append(conditions, "sprint_id IS NULL")
	}
	if len(filter.States) > 0 {
		clause, stateArgs := inClause("state", filter.States)
		conditions = append(conditions, clause)
		args = append(args, stateArgs...)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY priority, number"

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list work items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []*models.WorkItem
	for rows.Next() {
		w, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan work item: %w", err)
		}
		items = append(items, w)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) UpdateItem(ctx context.Context, w *models.WorkItem) error {
	w.UpdatedAt = time.Now().UTC()
	result, err := s.q.ExecContext(ctx,
		`UPDATE work_items SET sprint_id=?, title=?, description=?, priority=?, estimated_hours=?,
		worked_hours=?, state=?, updated_at=?
		WHERE id=?`,
		stringArg(w.SprintID), w.Title, w.Description, w.Priority, intArg(w.EstimatedHours),
		w.WorkedHours, string(w.State), w.UpdatedAt,
		w.ID,
	)
	if err != nil {
		return fmt.Errorf("update work item: %w", err)
	}
	return checkAffected(result, "work item", w.ID)
}

// --- Comments ---

func (s *SQLiteStore) CreateComment(ctx context.Context, c *models.Comment) error {
	if c.ID == "" {
		c.ID = newULID()
	}
	c.CreatedAt = time.Now().UTC()

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO comments (id, item_id, author_id, text, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.ItemID, stringArg(c.AuthorID), c.Text, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListComments(ctx context.Context, itemID string) ([]*models.Comment, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, item_id, author_id, text, created_at FROM comments WHERE item_id = ? ORDER BY created_at, id`,
		itemID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var comments []*models.Comment
	for rows.Next() {
		c := &models.Comment{}
		var author sql.NullString
		if err := rows.Scan(&c.ID, &c.ItemID, &author, &c.Text, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		c.AuthorID = nullString(author)
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// --- Increments ---

func (s *SQLiteStore) CreateIncrement(ctx context.Context, inc *models.Increment) error {
	if inc.ID == "" {
		inc.ID = newULID()
	}
	inc.CreatedAt = time.Now().UTC()

	var state any
	if inc.State != nil {
		state = string(*inc.State)
	}

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO increments (id, item_id, sprint_id, sprint_member_id, user_id, date, hours, state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inc.ID, inc.ItemID, inc.SprintID, stringArg(inc.SprintMemberID), inc.UserID,
		inc.Date.Format(models.DateLayout), inc.Hours, state, inc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create increment: %w", err)
	}
	return nil
}

// AddIncrementHours accumulates more same-day hours onto an hours row.
// Transition rows are never modified.
func (s *SQLiteStore) AddIncrementHours(ctx context.Context, id string, hours int) error {
	result, err := s.q.ExecContext(ctx,
		`UPDATE increments SET hours = hours + ? WHERE id = ? AND state IS NULL`, hours, id)
	if err != nil {
		return fmt.Errorf("add increment hours: %w", err)
	}
	return checkAffected(result, "increment", id)
}

func (s *SQLiteStore) ListIncrements(ctx context.Context, filter IncrementFilter) ([]*models.Increment, error) {
	query := `SELECT id, item_id, sprint_id, sprint_member_id, user_id, date, hours, state, created_at FROM increments`
	var conditions []string
	var args []any

	if filter.SprintID != "" {
		conditions = append(conditions, "sprint_id = ?")
		args = append(args, filter.SprintID)
	}
	if filter.ItemID != "" {
		conditions = append(conditions, "item_id = ?")
		args = append(args, filter.ItemID)
	}
	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Date != nil {
		conditions = append(conditions, "date = ?")
		args = append(args, filter.Date.Format(models.DateLayout))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY date, created_at, id"

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list increments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var incs []*models.Increment
	for rows.Next() {
		inc := &models.Increment{}
		var memberID, state sql.NullString
		var date string
		if err := rows.Scan(&inc.ID, &inc.ItemID, &inc.SprintID, &memberID, &inc.UserID,
			&date, &inc.Hours, &state, &inc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan increment: %w", err)
		}
		inc.SprintMemberID = nullString(memberID)
		if inc.Date, err = parseDate(date); err != nil {
			return nil, fmt.Errorf("scan increment: %w", err)
		}
		if state.Valid {
			st, err := models.ParseWorkItemState(state.String)
			if err != nil {
				return nil, fmt.Errorf("scan increment: %w", err)
			}
			inc.State = &st
		}
		incs = append(incs, inc)
	}
	return incs, rows.Err()
}
