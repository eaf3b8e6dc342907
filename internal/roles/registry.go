// Package roles manages per-project roles and team membership. Every change
// to a role's permission set or to a user's role is propagated to the
// permission ledger in the same call.
package roles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/joescharf/scrum/internal/guard"
	"github.com/joescharf/scrum/internal/ledger"
	"github.com/joescharf/scrum/internal/models"
	"github.com/joescharf/scrum/internal/store"
)

// Default is one of the roles every project starts with.
type Default struct {
	Name        string
	Permissions []models.Permission
}

// Defaults lists the roles created with every project, in creation order.
func Defaults() []Default {
	return []Default{
		{Name: models.RoleScrumMaster, Permissions: []models.Permission{models.PermManageTeam, models.PermManageProject, models.PermDevelop}},
		{Name: models.RoleProductOwner, Permissions: []models.Permission{models.PermManageBacklog}},
		{Name: models.RoleDeveloper, Permissions: []models.Permission{models.PermDevelop}},
		{Name: models.RoleStakeholder, Permissions: nil},
	}
}

// Registry manages roles and memberships on top of the ledger.
type Registry struct {
	store  store.Store
	ledger *ledger.Ledger
}

// New returns a Registry over s. Inside a transaction pass the tx-bound store.
func New(s store.Store) *Registry {
	return &Registry{store: s, ledger: ledger.New(s)}
}

// CreateDefaultRoles creates the four default roles for a project.
func (r *Registry) CreateDefaultRoles(ctx context.Context, projectID string) ([]*models.Role, error) {
	var created []*models.Role
	for _, d := range Defaults() {
		role, err := r.CreateRole(ctx, projectID, d.Name, d.Permissions)
		if err != nil {
			return nil, fmt.Errorf("create default roles: %w", err)
		}
		created = append(created, role)
	}
	return created, nil
}

// CreateRole creates a role with the given project-scope permissions.
func (r *Registry) CreateRole(ctx context.Context, projectID, name string, perms []models.Permission) (*models.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, guard.Inconsistent("role name is required")
	}
	if err := validateRolePermissions(perms); err != nil {
		return nil, err
	}
	if _, err := r.store.GetRoleByName(ctx, projectID, name); err == nil {
		return nil, guard.Inconsistent("role %q already exists", name)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	role := &models.Role{ProjectID: projectID, Name: name, Permissions: perms}
	if err := r.store.CreateRole(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// RenameRole changes the role's name, keeping it unique in the project.
func (r *Registry) RenameRole(ctx context.Context, roleID, name string) (*models.Role, error) {
	role, err := r.store.GetRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, guard.Inconsistent("role name is required")
	}
	if other, err := r.store.GetRoleByName(ctx, role.ProjectID, name); err == nil && other.ID != role.ID {
		return nil, guard.Inconsistent("role %q already exists", name)
	}
	role.Name = name
	if err := r.store.UpdateRole(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// AssignPermission adds perm to the role and grants it to every member.
func (r *Registry) AssignPermission(ctx context.Context, roleID string, perm models.Permission) error {
	if err := validateRolePermissions([]models.Permission{perm}); err != nil {
		return err
	}
	role, err := r.store.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if role.Grants(perm) {
		return nil
	}

	role.Permissions = append(role.Permissions, perm)
	if err := r.store.UpdateRole(ctx, role); err != nil {
		return err
	}

	members, err := r.store.ListMemberships(ctx, store.MembershipFilter{RoleID: role.ID})
	if err != nil {
		return err
	}
	for _, m := range members {
		if err := r.ledger.Grant(ctx, m.UserID, role.ProjectID, perm); err != nil {
			return err
		}
	}
	return nil
}

// RevokePermission removes perm from the role and revokes it from every
// member. The acting user may not strip manage_team from their own role.
func (r *Registry) RevokePermission(ctx context.Context, actorID, roleID string, perm models.Permission) error {
	if err := validateRolePermissions([]models.Permission{perm}); err != nil {
		return err
	}
	role, err := r.store.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if !role.Grants(perm) {
		return nil
	}

	if perm == models.PermManageTeam {
		own, err := r.store.GetMembership(ctx, role.ProjectID, actorID)
		if err == nil && own.RoleID == role.ID {
			return guard.Forbidden(actorID, "removal of manage_team from own role", role.Name)
		}
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
	}

	kept := role.Permissions[:0]
	for _, p := range role.Permissions {
		if p != perm {
			kept = append(kept, p)
		}
	}
	role.Permissions = kept
	if err := r.store.UpdateRole(ctx, role); err != nil {
		return err
	}

	members, err := r.store.ListMemberships(ctx, store.MembershipFilter{RoleID: role.ID})
	if err != nil {
		return err
	}
	for _, m := range members {
		if err := r.ledger.Revoke(ctx, m.UserID, role.ProjectID, perm); err != nil {
			return err
		}
	}
	return nil
}

// AssignRole makes roleName the user's only role in the project. An existing
// role's permissions are revoked first; view is granted on first join and
// survives reassignment. Callers run this inside one transaction.
func (r *Registry) AssignRole(ctx context.Context, actorID, userID, projectID, roleName string) error {
	role, err := r.store.GetRoleByName(ctx, projectID, roleName)
	if errors.Is(err, store.ErrNotFound) {
		return guard.Inconsistent("role %q does not belong to project %s", roleName, projectID)
	}
	if err != nil {
		return err
	}
	if _, err := r.store.GetUser(ctx, userID); err != nil {
		return err
	}

	current, err := r.store.GetMembership(ctx, projectID, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		current = nil
	case err != nil:
		return err
	}

	if current != nil {
		if current.RoleID == role.ID {
			return nil
		}
		old, err := r.store.GetRole(ctx, current.RoleID)
		if err != nil {
			return err
		}
		if actorID == userID && old.Grants(models.PermManageTeam) && !role.Grants(models.PermManageTeam) {
			return guard.Forbidden(actorID, "self-demotion from "+old.Name, projectID)
		}
		for _, p := range old.Permissions {
			if err := r.ledger.Revoke(ctx, userID, projectID, p); err != nil {
				return err
			}
		}
	} else {
		if err := r.ledger.Grant(ctx, userID, projectID, models.PermView); err != nil {
			return err
		}
	}

	m := &models.Membership{UserID: userID, ProjectID: projectID, RoleID: role.ID}
	if current != nil {
		m.JoinedAt = current.JoinedAt
	}
	if err := r.store.PutMembership(ctx, m); err != nil {
		return err
	}
	for _, p := range role.Permissions {
		if err := r.ledger.Grant(ctx, userID, projectID, p); err != nil {
			return err
		}
	}
	return nil
}

// RemoveRole takes the user out of the project entirely, view included.
func (r *Registry) RemoveRole(ctx context.Context, actorID, userID, projectID string) error {
	current, err := r.store.GetMembership(ctx, projectID, userID)
	if err != nil {
		return err
	}
	role, err := r.store.GetRole(ctx, current.RoleID)
	if err != nil {
		return err
	}
	if actorID == userID && role.Grants(models.PermManageTeam) {
		return guard.Forbidden(actorID, "self-removal from "+role.Name, projectID)
	}

	for _, p := range role.Permissions {
		if err := r.ledger.Revoke(ctx, userID, projectID, p); err != nil {
			return err
		}
	}
	if err := r.ledger.Revoke(ctx, userID, projectID, models.PermView); err != nil {
		return err
	}
	return r.store.DeleteMembership(ctx, projectID, userID)
}

// DeleteRole deletes a role nobody holds.
func (r *Registry) DeleteRole(ctx context.Context, roleID string) error {
	role, err := r.store.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	members, err := r.store.ListMemberships(ctx, store.MembershipFilter{RoleID: role.ID})
	if err != nil {
		return err
	}
	if len(members) > 0 {
		return guard.Inconsistent("role %q still has %d member(s)", role.Name, len(members))
	}
	return r.store.DeleteRole(ctx, role.ID)
}

// Team returns the project's members with their users and roles.
func (r *Registry) Team(ctx context.Context, projectID string) ([]*models.TeamMember, error) {
	members, err := r.store.ListMemberships(ctx, store.MembershipFilter{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	roles, err := r.store.ListRoles(ctx, projectID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.Role, len(roles))
	for _, role := range roles {
		byID[role.ID] = role
	}

	team := make([]*models.TeamMember, 0, len(members))
	for _, m := range members {
		u, err := r.store.GetUser(ctx, m.UserID)
		if err != nil {
			return nil, err
		}
		team = append(team, &models.TeamMember{User: u, Role: byID[m.RoleID]})
	}
	return team, nil
}

// RoleOf returns the user's role in the project.
func (r *Registry) RoleOf(ctx context.Context, userID, projectID string) (*models.Role, error) {
	m, err := r.store.GetMembership(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	return r.store.GetRole(ctx, m.RoleID)
}

func validateRolePermissions(perms []models.Permission) error {
	for _, p := range perms {
		if p.Scope() != models.ScopeProject {
			return guard.Inconsistent("%q is not a project permission", p)
		}
		if p == models.PermView {
			return guard.Inconsistent("view is granted on joining a project and cannot belong to a role")
		}
	}
	return nil
}
