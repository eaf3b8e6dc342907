package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/joescharf/scrum/internal/guard"
	"github.com/joescharf/scrum/internal/ledger"
	"github.com/joescharf/scrum/internal/models"
	"github.com/joescharf/scrum/internal/store"
)

// CheckPermission answers whether userID holds perm on object, a project id
// or ledger.Global. A missing grant is not an error.
func (e *Engine) CheckPermission(ctx context.Context, userID, object string, perm models.Permission) (bool, error) {
	return ledger.New(e.store).Check(ctx, userID, object, perm)
}

// Permissions lists what userID holds on object.
func (e *Engine) Permissions(ctx context.Context, userID, object string) ([]models.Permission, error) {
	return ledger.New(e.store).Permissions(ctx, userID, object)
}

// RegisterUser records a user handed over by the identity resolver. The
// first user ever registered receives every global permission.
func (e *Engine) RegisterUser(ctx context.Context, u *models.User) error {
	u.ID = strings.TrimSpace(u.ID)
	u.Email = strings.TrimSpace(u.Email)
	u.Name = strings.TrimSpace(u.Name)
	if u.ID == "" {
		return guard.Inconsistent("a user id is required")
	}
	if u.Email == "" {
		return guard.Inconsistent("an email address is required")
	}
	u.Active = true

	first := false
	err := e.update(ctx, ledger.Global, func(tx store.Store) error {
		users, err := tx.ListUsers(ctx)
		if err != nil {
			return err
		}
		first = len(users) == 0
		if err := tx.CreateUser(ctx, u); err != nil {
			return fmt.Errorf("register user: %w", err)
		}
		if !first {
			return nil
		}
		l := ledger.New(tx)
		for _, perm := range models.GlobalPermissions() {
			if err := l.Grant(ctx, u.ID, ledger.Global, perm); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.logger.Info("user registered", "user", u.ID, "administrator", first)
	return nil
}

// User returns a user by id.
func (e *Engine) User(ctx context.Context, id string) (*models.User, error) {
	return e.store.GetUser(ctx, id)
}

// Users lists every known user.
func (e *Engine) Users(ctx context.Context) ([]*models.User, error) {
	return e.store.ListUsers(ctx)
}

// SetUserActive enables or disables an account. Requires administer.
func (e *Engine) SetUserActive(ctx context.Context, actorID, userID string, active bool) error {
	return e.update(ctx, ledger.Global, func(tx store.Store) error {
		if err := authorize(ctx, tx, actorID, ledger.Global, models.PermAdminister); err != nil {
			return err
		}
		if actorID == userID && !active {
			return guard.Forbidden(actorID, "self-deactivation", ledger.Global)
		}
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		u.Active = active
		return tx.UpdateUser(ctx, u)
	})
}

// SetGlobalPermissions replaces the global permissions of userID with perms.
// Requires administer; administrators cannot drop their own administer.
func (e *Engine) SetGlobalPermissions(ctx context.Context, actorID, userID string, perms []models.Permission) error {
	want := make(map[models.Permission]bool, len(perms))
	for _, p := range perms {
		if p.Scope() != models.ScopeGlobal {
			return guard.Inconsistent("%q is not a global permission", p)
		}
		want[p] = true
	}

	err := e.update(ctx, ledger.Global, func(tx store.Store) error {
		if err := authorize(ctx, tx, actorID, ledger.Global, models.PermAdminister); err != nil {
			return err
		}
		if actorID == userID && !want[models.PermAdminister] {
			return guard.Forbidden(actorID, "self-demotion from administer", ledger.Global)
		}
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}

		l := ledger.New(tx)
		for _, perm := range models.GlobalPermissions() {
			var err error
			if want[perm] {
				err = l.Grant(ctx, userID, ledger.Global, perm)
			} else {
				err = l.Revoke(ctx, userID, ledger.Global, perm)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.logger.Info("global permissions set", "actor", actorID, "user", userID, "permissions", models.SortPermissions(perms))
	return nil
}
