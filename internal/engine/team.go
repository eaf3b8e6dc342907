package engine

import (
	"context"
	"errors"

	"github.com/joescharf/scrum/internal/guard"
	"github.com/joescharf/scrum/internal/models"
	"github.com/joescharf/scrum/internal/notify"
	"github.com/joescharf/scrum/internal/roles"
	"github.com/joescharf/scrum/internal/store"
)

// roleByName finds a role of p, reporting a foreign name as inconsistent.
func roleByName(ctx context.Context, s store.Store, p *models.Project, name string) (*models.Role, error) {
	role, err := s.GetRoleByName(ctx, p.ID, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, guard.Inconsistent("role %q does not belong to project %q", name, p.Name)
	}
	return role, err
}

// teamChange authorizes a change to the team or roles of p.
func teamChange(ctx context.Context, s store.Store, actorID string, p *models.Project, action string) error {
	if err := authorize(ctx, s, actorID, p.ID, models.PermManageTeam); err != nil {
		return err
	}
	if !p.Editable() {
		return guard.Illegal("project", string(p.State), action)
	}
	return nil
}

// AssignRole makes roleName the user's only role in the project, revoking
// the permissions of the previous role in the same transaction. Requires
// manage_team.
func (e *Engine) AssignRole(ctx context.Context, actorID, userID, projectRef, roleName string) error {
	p, err := e.inProject(ctx, projectRef, func(tx store.Store, p *models.Project) error {
		if err := teamChange(ctx, tx, actorID, p, "change the team of"); err != nil {
			return err
		}
		return roles.New(tx).AssignRole(ctx, actorID, userID, p.ID, roleName)
	})
	if err != nil {
		return err
	}
	e.logger.Info("role assigned", "project", p.ID, "actor", actorID, "user", userID, "role", roleName)
	e.notify(p.Name, notify.KindTeam, userID+" is now "+roleName)
	return nil
}

// RemoveRole takes the user out of the project team. Requires manage_team.
func (e *Engine) RemoveRole(ctx context.Context, actorID, userID, projectRef string) error {
	p, err := e.inProject(ctx, projectRef, func(tx store.Store, p *models.Project) error {
		if err := teamChange(ctx, tx, actorID, p, "change the team of"); err != nil {
			return err
		}
		return roles.New(tx).RemoveRole(ctx, actorID, userID, p.ID)
	})
	if err != nil {
		return err
	}
	e.logger.Info("member removed", "project", p.ID, "actor", actorID, "user", userID)
	e.notify(p.Name, notify.KindTeam, userID+" left the team")
	return nil
}

// Team lists the members of a project with their roles.
func (e *Engine) Team(ctx context.Context, actorID, projectRef string) ([]*models.TeamMember, error) {
	p, err := e.Project(ctx, actorID, projectRef)
	if err != nil {
		return nil, err
	}
	return roles.New(e.store).Team(ctx, p.ID)
}

// Roles lists the roles of a project.
func (e *Engine) Roles(ctx context.Context, actorID, projectRef string) ([]*models.Role, error) {
	p, err := e.Project(ctx, actorID, projectRef)
	if err != nil {
		return nil, err
	}
	return e.store.ListRoles(ctx, p.ID)
}

// CreateRole adds a role to a project. Requires manage_team.
func (e *Engine) CreateRole(ctx context.Context, actorID, projectRef, name string, perms []models.Permission) (*models.Role, error) {
	var role *models.Role
	_, err := e.inProject(ctx, projectRef, func(tx store.Store, p *models.Project) error {
		if err := teamChange(ctx, tx, actorID, p, "add roles to"); err != nil {
			return err
		}
		var err error
		role, err = roles.New(tx).CreateRole(ctx, p.ID, name, models.SortPermissions(perms))
		return err
	})
	return role, err
}

// RenameRole renames a role. Requires manage_team.
func (e *Engine) RenameRole(ctx context.Context, actorID, projectRef, name, newName string) (*models.Role, error) {
	var role *models.Role
	_, err := e.inProject(ctx, projectRef, func(tx store.Store, p *models.Project) error {
		if err := teamChange(ctx, tx, actorID, p, "rename roles of"); err != nil {
			return err
		}
		current, err := roleByName(ctx, tx, p, name)
		if err != nil {
			return err
		}
		role, err = roles.New(tx).RenameRole(ctx, current.ID, newName)
		return err
	})
	return role, err
}

// DeleteRole deletes a role nobody holds. The actor's own role is never
// deletable. Requires manage_team.
func (e *Engine) DeleteRole(ctx context.Context, actorID, projectRef, name string) error {
	_, err := e.inProject(ctx, projectRef, func(tx store.Store, p *models.Project) error {
		if err := teamChange(ctx, tx, actorID, p, "delete roles of"); err != nil {
			return err
		}
		role, err := roleByName(ctx, tx, p, name)
		if err != nil {
			return err
		}
		own, err := tx.GetMembership(ctx, p.ID, actorID)
		if err == nil && own.RoleID == role.ID {
			return guard.Forbidden(actorID, "deletion of own role "+role.Name, p.ID)
		}
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		return roles.New(tx).DeleteRole(ctx, role.ID)
	})
	return err
}

// GrantRolePermission adds perm to a role and to all of its members.
// Requires manage_team.
func (e *Engine) GrantRolePermission(ctx context.Context, actorID, projectRef, roleName string, perm models.Permission) error {
	_, err := e.inProject(ctx, projectRef, func(tx store.Store, p *models.Project) error {
		if err := teamChange(ctx, tx, actorID, p, "change roles of"); err != nil {
			return err
		}
		role, err := roleByName(ctx, tx, p, roleName)
		if err != nil {
			return err
		}
		return roles.New(tx).AssignPermission(ctx, role.ID, perm)
	})
	return err
}

// RevokeRolePermission removes perm from a role and from all of its members.
// Requires manage_team.
func (e *Engine) RevokeRolePermission(ctx context.Context, actorID, projectRef, roleName string, perm models.Permission) error {
	_, err := e.inProject(ctx, projectRef, func(tx store.Store, p *models.Project) error {
		if err := teamChange(ctx, tx, actorID, p, "change roles of"); err != nil {
			return err
		}
		role, err := roleByName(ctx, tx, p, roleName)
		if err != nil {
			return err
		}
		return roles.New(tx).RevokePermission(ctx, actorID, role.ID, perm)
	})
	return err
}

// ExportRoles returns the role list of a project.
func (e *Engine) ExportRoles(ctx context.Context, actorID, projectRef string) ([]roles.RoleSpec, error) {
	p, err := e.Project(ctx, actorID, projectRef)
	if err != nil {
		return nil, err
	}
	return roles.New(e.store).Export(ctx, p.ID)
}

// ImportRoles creates the roles of specs that the project does not have yet.
// Requires manage_team.
func (e *Engine) ImportRoles(ctx context.Context, actorID, projectRef string, specs []roles.RoleSpec) (*roles.ImportResult, error) {
	var result *roles.ImportResult
	_, err := e.inProject(ctx, projectRef, func(tx store.Store, p *models.Project) error {
		if err := teamChange(ctx, tx, actorID, p, "import roles into"); err != nil {
			return err
		}
		var err error
		result, err = roles.New(tx).Import(ctx, p.ID, specs)
		return err
	})
	return result, err
}
