// Package ledger is the single source of truth for who holds which permission
// on which object. An object is either a project id or Global.
package ledger

import (
	"context"
	"fmt"

	"github.com/joescharf/scrum/internal/models"
	"github.com/joescharf/scrum/internal/store"
)

// Global is the object for system-wide permissions.
const Global = "global"

// Ledger records (user, object, permission) grants.
type Ledger struct {
	store store.Store
}

// New returns a Ledger over s. Inside a transaction pass the tx-bound store.
func New(s store.Store) *Ledger {
	return &Ledger{store: s}
}

// Grant is idempotent.
func (l *Ledger) Grant(ctx context.Context, userID, object string, perm models.Permission) error {
	if err := checkScope(object, perm); err != nil {
		return err
	}
	return l.store.GrantPermission(ctx, userID, object, perm)
}

// Revoke removes the grant however many times it was granted. Revoking an
// absent grant is a no-op.
func (l *Ledger) Revoke(ctx context.Context, userID, object string, perm models.Permission) error {
	if err := checkScope(object, perm); err != nil {
		return err
	}
	return l.store.RevokePermission(ctx, userID, object, perm)
}

// Check reports whether userID holds perm on object.
func (l *Ledger) Check(ctx context.Context, userID, object string, perm models.Permission) (bool, error) {
	if !perm.Valid() {
		return false, fmt.Errorf("unknown permission: %q", perm)
	}
	return l.store.HasPermission(ctx, userID, object, perm)
}

// Holders returns the ids of every user holding perm on object.
func (l *Ledger) Holders(ctx context.Context, object string, perm models.Permission) ([]string, error) {
	return l.store.ListPermissionHolders(ctx, object, perm)
}

// Permissions lists what userID holds on object.
func (l *Ledger) Permissions(ctx context.Context, userID, object string) ([]models.Permission, error) {
	return l.store.ListUserPermissions(ctx, userID, object)
}

// checkScope rejects global permissions on projects and project permissions
// on the global object.
func checkScope(object string, perm models.Permission) error {
	switch perm.Scope() {
	case models.ScopeGlobal:
		if object != Global {
			return fmt.Errorf("permission %s is global, not per project", perm)
		}
	case models.ScopeProject:
		if object == Global || object == "" {
			return fmt.Errorf("permission %s needs a project", perm)
		}
	default:
		return fmt.Errorf("unknown permission: %q", perm)
	}
	return nil
}
