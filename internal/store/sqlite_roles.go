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

// --- Roles ---

func (s *SQLiteStore) CreateRole(ctx context.Context, r *models.Role) error {
	if r.ID == "" {
		r.ID = newULID()
	}
	r.CreatedAt = time.Now().UTC()
	r.Permissions = models.SortPermissions(r.Permissions)

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO roles (id, project_id, name, created_at) VALUES (?, ?, ?, ?)`,
		r.ID, r.ProjectID, r.Name, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create role: %w", err)
	}
	return s.writeRolePermissions(ctx, r)
}

func (s *SQLiteStore) writeRolePermissions(ctx context.Context, r *models.Role) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM role_permissions WHERE role_id = ?`, r.ID); err != nil {
		return fmt.Errorf("clear role permissions: %w", err)
	}
	for _, p := range r.Permissions {
		if _, err := s.q.ExecContext(ctx,
			`INSERT INTO role_permissions (role_id, permission) VALUES (?, ?)`, r.ID, string(p)); err != nil {
			return fmt.Errorf("add role permission %s: %w", p, err)
		}
	}
	return nil
}

// loadRolePermissions fills Permissions for each role with one query.
func (s *SQLiteStore) loadRolePermissions(ctx context.Context, roles []*models.Role) error {
	if len(roles) == 0 {
		return nil
	}
	byID := make(map[string]*models.Role, len(roles))
	ids := make([]string, 0, len(roles))
	for _, r := range roles {
		byID[r.ID] = r
		r.Permissions = nil
		ids = append(ids, r.ID)
	}

	clause, args := inClause("role_id", ids)
	rows, err := s.q.QueryContext(ctx,
		`SELECT role_id, permission FROM role_permissions WHERE `+clause+` ORDER BY permission`, args...)
	if err != nil {
		return fmt.Errorf("load role permissions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var roleID, perm string
		if err := rows.Scan(&roleID, &perm); err != nil {
			return fmt.Errorf("scan role permission: %w", err)
		}
		if r := byID[roleID]; r != nil {
			r.Permissions = append(r.Permissions, models.Permission(perm))
		}
	}
	return rows.Err()
}

func (s *SQLiteStore) getRoleWhere(ctx context.Context, key, where string, args ...any) (*models.Role, error) {
	r := &models.Role{}
	err := s.q.QueryRowContext(ctx,
		`SELECT id, project_id, name, created_at FROM roles WHERE `+where, args...,
	).Scan(&r.ID, &r.ProjectID, &r.Name, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("role", key)
	}
	if err != nil {
		return nil, fmt.Errorf("get role: %w", err)
	}
	if err := s.loadRolePermissions(ctx, []*models.Role{r}); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *SQLiteStore) GetRole(ctx context.Context, id string) (*models.Role, error) {
	return s.getRoleWhere(ctx, id, "id = ?", id)
}

func (s *SQLiteStore) GetRoleByName(ctx context.Context, projectID, name string) (*models.Role, error) {
	return s.getRoleWhere(ctx, name, "project_id = ? AND name = ?", projectID, name)
}

func (s *SQLiteStore) ListRoles(ctx context.Context, projectID string) ([]*models.Role, error) {
	roles, err := s.queryRoles(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.loadRolePermissions(ctx, roles); err != nil {
		return nil, err
	}
	return roles, nil
}

func (s *SQLiteStore) queryRoles(ctx context.Context, projectID string) ([]*models.Role, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, project_id, name, created_at FROM roles WHERE project_id = ? ORDER BY name`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var roles []*models.Role
	for rows.Next() {
		r := &models.Role{}
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.Name, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

// UpdateRole renames the role and replaces its permission set.
func (s *SQLiteStore) UpdateRole(ctx context.Context, r *models.Role) error {
	r.Permissions = models.SortPermissions(r.Permissions)
	result, err := s.q.ExecContext(ctx, `UPDATE roles SET name=? WHERE id=?`, r.Name, r.ID)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	if err := checkAffected(result, "role", r.ID); err != nil {
		return err
	}
	return s.writeRolePermissions(ctx, r)
}

func (s *SQLiteStore) DeleteRole(ctx context.Context, id string) error {
	result, err := s.q.ExecContext(ctx, "DELETE FROM roles WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	return checkAffected(result, "role", id)
}

// --- Memberships ---

func (s *SQLiteStore) GetMembership(ctx context.Context, projectID, userID string) (*models.Membership, error) {
	m := &models.Membership{}
	err := s.q.QueryRowContext(ctx,
		`SELECT user_id, project_id, role_id, joined_at FROM memberships WHERE project_id = ? AND user_id = ?`,
		projectID, userID,
	).Scan(&m.UserID, &m.ProjectID, &m.RoleID, &m.JoinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("membership", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("get membership: %w", err)
	}
	return m, nil
}

// PutMembership inserts the membership or moves an existing one to a new role,
// keeping the original join time.
func (s *SQLiteStore) PutMembership(ctx context.Context, m *models.Membership) error {
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO memberships (project_id, user_id, role_id, joined_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (project_id, user_id) DO UPDATE SET role_id = excluded.role_id`,
		m.ProjectID, m.UserID, m.RoleID, m.JoinedAt,
	)
	if err != nil {
		return fmt.Errorf("put membership: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteMembership(ctx context.Context, projectID, userID string) error {
	result, err := s.q.ExecContext(ctx,
		`DELETE FROM memberships WHERE project_id = ? AND user_id = ?`, projectID, userID)
	if err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	return checkAffected(result, "membership", userID)
}

func (s *SQLiteStore) ListMemberships(ctx context.Context, filter MembershipFilter) ([]*models.Membership, error) {
	query := `SELECT user_id, project_id, role_id, joined_at FROM memberships`
	var conditions []string
	var args []any

	if filter.ProjectID != "" {
		conditions = append(conditions, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.RoleID != "" {
		conditions = append(conditions, "role_id = ?")
		args = append(args, filter.RoleID)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY joined_at, user_id"

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var members []*models.Membership
	for rows.Next() {
		m := &models.Membership{}
		if err := rows.Scan(&m.UserID, &m.ProjectID, &m.RoleID, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
