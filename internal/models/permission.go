package models

import (
	"fmt"
	"sort"
)

// Permission is a fixed permission kind from the catalog.
type Permission string

// Global permissions apply system-wide.
const (
	PermCreateProject Permission = "create_project"
	PermAdminister    Permission = "administer"
	PermAudit         Permission = "audit"
)

// Project permissions apply to a single project.
const (
	PermManageTeam    Permission = "manage_team"
	PermManageProject Permission = "manage_project"
	PermManageBacklog Permission = "manage_backlog"
	PermDevelop       Permission = "develop"
	PermView          Permission = "view"
)

// PermissionScope says what kind of object a permission is checked against.
type PermissionScope string

const (
	ScopeGlobal  PermissionScope = "global"
	ScopeProject PermissionScope = "project"
)

var permissionScopes = map[Permission]PermissionScope{
	PermCreateProject: ScopeGlobal,
	PermAdminister:    ScopeGlobal,
	PermAudit:         ScopeGlobal,
	PermManageTeam:    ScopeProject,
	PermManageProject: ScopeProject,
	PermManageBacklog: ScopeProject,
	PermDevelop:       ScopeProject,
	PermView:          ScopeProject,
}

// Scope returns the scope of the permission. Unknown permissions have no scope.
func (p Permission) Scope() PermissionScope {
	return permissionScopes[p]
}

// Valid reports whether p is in the catalog.
func (p Permission) Valid() bool {
	_, ok := permissionScopes[p]
	return ok
}

// ParsePermission validates a permission kind string.
func ParsePermission(s string) (Permission, error) {
	p := Permission(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown permission: %q", s)
	}
	return p, nil
}

// GlobalPermissions lists the global catalog.
func GlobalPermissions() []Permission {
	return []Permission{PermCreateProject, PermAdminister, PermAudit}
}

// ProjectCatalog lists the project permissions a functioning project needs at
// least one holder of. View is implicit for every member and is not listed.
func ProjectCatalog() []Permission {
	return []Permission{PermManageTeam, PermManageProject, PermManageBacklog, PermDevelop}
}

// SortPermissions returns a sorted copy of perms without duplicates.
func SortPermissions(perms []Permission) []Permission {
	seen := make(map[Permission]bool, len(perms))
	out := make([]Permission, 0, len(perms))
	for _, p := range perms {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
