// Package engine is what request layers call on behalf of a user. Each
// mutating operation re-checks the actor's permissions, runs as one
// transaction while holding its project's lock, and notifies only after the
// transaction commits.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joescharf/scrum/internal/guard"
	"github.com/joescharf/scrum/internal/ledger"
	"github.com/joescharf/scrum/internal/locks"
	"github.com/joescharf/scrum/internal/models"
	"github.com/joescharf/scrum/internal/notify"
	"github.com/joescharf/scrum/internal/store"
)

// Engine coordinates the ledger, the role registry and the state machines.
type Engine struct {
	store    store.Store
	notifier notify.Notifier
	logger   *slog.Logger
	locks    locks.Keyed
}

// New creates an Engine. A nil notifier drops events and a nil logger uses
// slog.Default.
func New(s store.Store, n notify.Notifier, logger *slog.Logger) *Engine {
	if n == nil {
		n = notify.Discard{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: s, notifier: n, logger: logger}
}

// update runs fn as one transaction while holding the lock of key.
func (e *Engine) update(ctx context.Context, key string, fn func(tx store.Store) error) error {
	unlock := e.locks.Lock(key)
	defer unlock()
	return e.store.WithTx(ctx, fn)
}

// notify delivers an event. Failures are logged and otherwise ignored.
func (e *Engine) notify(activity, kind, event string) {
	if err := e.notifier.Notify(activity, kind, event); err != nil {
		e.logger.Warn("notification failed", "activity", activity, "kind", kind, "event", event, "error", err)
	}
}

// inProject resolves ref and runs fn with the project reloaded inside the
// transaction.
func (e *Engine) inProject(ctx context.Context, ref string, fn func(tx store.Store, p *models.Project) error) (*models.Project, error) {
	p, err := resolveProject(ctx, e.store, ref)
	if err != nil {
		return nil, err
	}
	err = e.update(ctx, p.ID, func(tx store.Store) error {
		p, err = tx.GetProject(ctx, p.ID)
		if err != nil {
			return err
		}
		return fn(tx, p)
	})
	return p, err
}

// inSprint runs fn with the sprint and its project reloaded inside the
// transaction.
func (e *Engine) inSprint(ctx context.Context, sprintID string, fn func(tx store.Store, p *models.Project, sp *models.Sprint) error) (*models.Sprint, error) {
	sp, err := e.store.GetSprint(ctx, sprintID)
	if err != nil {
		return nil, err
	}
	err = e.update(ctx, sp.ProjectID, func(tx store.Store) error {
		if sp, err = tx.GetSprint(ctx, sprintID); err != nil {
			return err
		}
		p, err := tx.GetProject(ctx, sp.ProjectID)
		if err != nil {
			return err
		}
		return fn(tx, p, sp)
	})
	return sp, err
}

// inItem runs fn with the work item and its project reloaded inside the
// transaction.
func (e *Engine) inItem(ctx context.Context, itemID string, fn func(tx store.Store, p *models.Project, item *models.WorkItem) error) (*models.WorkItem, error) {
	item, err := e.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	err = e.update(ctx, item.ProjectID, func(tx store.Store) error {
		if item, err = tx.GetItem(ctx, itemID); err != nil {
			return err
		}
		p, err := tx.GetProject(ctx, item.ProjectID)
		if err != nil {
			return err
		}
		return fn(tx, p, item)
	})
	return item, err
}

// resolveProject finds a project by id, then by name.
func resolveProject(ctx context.Context, s store.Store, ref string) (*models.Project, error) {
	p, err := s.GetProject(ctx, ref)
	if errors.Is(err, store.ErrNotFound) {
		return s.GetProjectByName(ctx, ref)
	}
	return p, err
}

// checkActor fails unless actorID is a known, active user.
func checkActor(ctx context.Context, s store.Store, actorID string) error {
	u, err := s.GetUser(ctx, actorID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: unknown user %s", guard.ErrForbidden, actorID)
	}
	if err != nil {
		return err
	}
	if !u.Active {
		return fmt.Errorf("%w: user %s is inactive", guard.ErrForbidden, actorID)
	}
	return nil
}

// holds reports whether actorID holds any of perms on object.
func holds(ctx context.Context, s store.Store, actorID, object string, perms ...models.Permission) (bool, error) {
	l := ledger.New(s)
	for _, perm := range perms {
		ok, err := l.Check(ctx, actorID, object, perm)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// authorize fails with guard.ErrForbidden unless actorID is active and holds
// one of perms on object.
func authorize(ctx context.Context, s store.Store, actorID, object string, perms ...models.Permission) error {
	if err := checkActor(ctx, s, actorID); err != nil {
		return err
	}
	ok, err := holds(ctx, s, actorID, object, perms...)
	if err != nil {
		return err
	}
	if !ok {
		names := make([]string, len(perms))
		for i, p := range perms {
			names[i] = string(p)
		}
		return guard.Forbidden(actorID, strings.Join(names, " or "), object)
	}
	return nil
}

// authorizeView lets team members and global auditors read a project.
func authorizeView(ctx context.Context, s store.Store, actorID, projectID string) error {
	if err := checkActor(ctx, s, actorID); err != nil {
		return err
	}
	member, err := holds(ctx, s, actorID, projectID, models.PermView)
	if err != nil || member {
		return err
	}
	auditor, err := holds(ctx, s, actorID, ledger.Global, models.PermAudit, models.PermAdminister)
	if err != nil || auditor {
		return err
	}
	return guard.Forbidden(actorID, string(models.PermView), projectID)
}

// isManager reports whether the actor may see and steer every item of the
// project.
func isManager(ctx context.Context, s store.Store, actorID, projectID string) (bool, error) {
	return holds(ctx, s, actorID, projectID, models.PermManageProject, models.PermManageBacklog)
}
