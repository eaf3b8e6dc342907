package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/joescharf/scrum/internal/models"
)

// --- Users ---

const userColumns = `id, name, email, active, registered_at`

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Active, &u.RegisteredAt); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *SQLiteStore) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = newULID()
	}
	if u.RegisteredAt.IsZero() {
		u.RegisteredAt = time.Now().UTC()
	}

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, boolToInt(u.Active), u.RegisteredAt,
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	u, err := scanUser(s.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("user", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(s.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("user", email)
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY name, email`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *SQLiteStore) UpdateUser(ctx context.Context, u *models.User) error {
	result, err := s.q.ExecContext(ctx,
		`UPDATE users SET name=?, email=?, active=? WHERE id=?`,
		u.Name, u.Email, boolToInt(u.Active), u.ID,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return checkAffected(result, "user", u.ID)
}

// --- Permission grants ---

func (s *SQLiteStore) GrantPermission(ctx context.Context, userID, object string, perm models.Permission) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT OR IGNORE INTO permission_grants (user_id, object, permission, granted_at) VALUES (?, ?, ?, ?)`,
		userID, object, string(perm), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("grant %s: %w", perm, err)
	}
	return nil
}

func (s *SQLiteStore) RevokePermission(ctx context.Context, userID, object string, perm models.Permission) error {
	_, err := s.q.ExecContext(ctx,
		`DELETE FROM permission_grants WHERE user_id = ? AND object = ? AND permission = ?`,
		userID, object, string(perm),
	)
	if err != nil {
		return fmt.Errorf("revoke %s: %w", perm, err)
	}
	return nil
}

func (s *SQLiteStore) HasPermission(ctx context.Context, userID, object string, perm models.Permission) (bool, error) {
	var count int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM permission_grants WHERE user_id = ? AND object = ? AND permission = ?`,
		userID, object, string(perm),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", perm, err)
	}
	return count > 0, nil
}

func (s *SQLiteStore) ListUserPermissions(ctx context.Context, userID, object string) ([]models.Permission, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT permission FROM permission_grants WHERE user_id = ? AND object = ? ORDER BY permission`,
		userID, object,
	)
	if err != nil {
		return nil, fmt.Errorf("list user permissions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var perms []models.Permission
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		perms = append(perms, models.Permission(p))
	}
	return perms, rows.Err()
}

func (s *SQLiteStore) ListPermissionHolders(ctx context.Context, object string, perm models.Permission) ([]string, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT user_id FROM permission_grants WHERE object = ? AND permission = ? ORDER BY user_id`,
		object, string(perm),
	)
	if err != nil {
		return nil, fmt.Errorf("list holders of %s: %w", perm, err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan holder: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
