package models

import "time"

// Default role names created for every project.
const (
	RoleScrumMaster  = "Scrum Master"
	RoleProductOwner = "Product Owner"
	RoleDeveloper    = "Developer"
	RoleStakeholder  = "Stakeholder"
)

// Role is a named bundle of project permissions.
type Role struct {
	ID          string
	ProjectID   string
	Name        string
	Permissions []Permission
	CreatedAt   time.Time
}

// Grants reports whether the role includes perm.
func (r *Role) Grants(perm Permission) bool {
	for _, p := range r.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// Membership links a user to exactly one role in a project.
type Membership struct {
	UserID    string
	ProjectID string
	RoleID    string
	JoinedAt  time.Time
}

// TeamMember is a membership joined with its user and role for display.
type TeamMember struct {
	User *User
	Role *Role
}
