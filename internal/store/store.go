package store

import (
	"context"
	"errors"
	"time"

	"github.com/joescharf/scrum/internal/models"
)

// ErrNotFound is wrapped by every lookup that matches no row.
var ErrNotFound = errors.New("not found")

// MembershipFilter selects project memberships. Empty fields match anything.
type MembershipFilter struct {
	ProjectID string
	UserID    string
	RoleID    string
}

// ProjectFilter selects projects.
type ProjectFilter struct {
	States   []models.ProjectState
	MemberID string // only projects the user is a team member of
}

// SprintFilter selects sprints of a project.
type SprintFilter struct {
	ProjectID string
	States    []models.SprintState
}

// ItemFilter selects work items.
type ItemFilter struct {
	ProjectID string
	SprintID  string
	Backlog   bool // only items not planned into any sprint
	States    []models.WorkItemState
}

// IncrementFilter selects increment ledger rows.
type IncrementFilter struct {
	SprintID string
	ItemID   string
	UserID   string
	Date     *time.Time
}

// Store defines the persistence interface for scrum.
type Store interface {
	// Users
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error

	// Permission ledger rows. object is a project id or the global sentinel.
	GrantPermission(ctx context.Context, userID, object string, perm models.Permission) error
	RevokePermission(ctx context.Context, userID, object string, perm models.Permission) error
	HasPermission(ctx context.Context, userID, object string, perm models.Permission) (bool, error)
	ListUserPermissions(ctx context.Context, userID, object string) ([]models.Permission, error)
	ListPermissionHolders(ctx context.Context, object string, perm models.Permission) ([]string, error)

	// Roles
	CreateRole(ctx context.Context, r *models.Role) error
	GetRole(ctx context.Context, id string) (*models.Role, error)
	GetRoleByName(ctx context.Context, projectID, name string) (*models.Role, error)
	ListRoles(ctx context.Context, projectID string) ([]*models.Role, error)
	UpdateRole(ctx context.Context, r *models.Role) error
	DeleteRole(ctx context.Context, id string) error

	// Memberships
	GetMembership(ctx context.Context, projectID, userID string) (*models.Membership, error)
	PutMembership(ctx context.Context, m *models.Membership) error
	DeleteMembership(ctx context.Context, projectID, userID string) error
	ListMemberships(ctx context.Context, filter MembershipFilter) ([]*models.Membership, error)

	// Projects
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	GetProjectByName(ctx context.Context, name string) (*models.Project, error)
	ListProjects(ctx context.Context, filter ProjectFilter) ([]*models.Project, error)
	UpdateProject(ctx context.Context, p *models.Project) error
	NextItemNumber(ctx context.Context, projectID string) (int, error)

	// Sprints
	CreateSprint(ctx context.Context, sp *models.Sprint) error
	GetSprint(ctx context.Context, id string) (*models.Sprint, error)
	ListSprints(ctx context.Context, filter SprintFilter) ([]*models.Sprint, error)
	UpdateSprint(ctx context.Context, sp *models.Sprint) error

	// Sprint members and item assignments
	CreateSprintMember(ctx context.Context, m *models.SprintMember) error
	GetSprintMember(ctx context.Context, id string) (*models.SprintMember, error)
	GetSprintMemberByUser(ctx context.Context, sprintID, userID string) (*models.SprintMember, error)
	ListSprintMembers(ctx context.Context, sprintID string) ([]*models.SprintMember, error)
	UpdateSprintMember(ctx context.Context, m *models.SprintMember) error
	DeleteSprintMember(ctx context.Context, id string) error
	AssignItem(ctx context.Context, sprintID, memberID, itemID string) error
	UnassignItem(ctx context.Context, sprintID, itemID string) error
	GetItemAssignee(ctx context.Context, sprintID, itemID string) (*models.SprintMember, error)

	// Work items
	CreateItem(ctx context.Context, item *models.WorkItem) error
	GetItem(ctx context.Context, id string) (*models.WorkItem, error)
	GetItemByNumber(ctx context.Context, projectID string, number int) (*models.WorkItem, error)
	ListItems(ctx context.Context, filter ItemFilter) ([]*models.WorkItem, error)
	UpdateItem(ctx context.Context, item *models.WorkItem) error

	// Comments
	CreateComment(ctx context.Context, c *models.Comment) error
	ListComments(ctx context.Context, itemID string) ([]*models.Comment, error)

	// Increment ledger (append-only)
	CreateIncrement(ctx context.Context, inc *models.Increment) error
	AddIncrementHours(ctx context.Context, id string, hours int) error
	ListIncrements(ctx context.Context, filter IncrementFilter) ([]*models.Increment, error)

	// WithTx runs fn against a transaction-bound Store. fn must only use the
	// Store it is handed. Any error rolls the whole transaction back.
	WithTx(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
