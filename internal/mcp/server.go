package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/scrum/internal/engine"
	"github.com/joescharf/scrum/internal/ledger"
	"github.com/joescharf/scrum/internal/models"
)

// boardColumnWidth is the card width used when rendering the board as text.
const boardColumnWidth = 24

// Server exposes the scrum engine as MCP tools. Every call acts as user.
type Server struct {
	engine *engine.Engine
	user   string
	now    func() time.Time
}

// NewServer creates the MCP server wrapper acting as the given user.
func NewServer(e *engine.Engine, user string) *Server {
	return &Server{
		engine: e,
		user:   user,
		now:    time.Now,
	}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("scrum", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.listProjectsTool())
	srv.AddTool(s.projectStatusTool())
	srv.AddTool(s.checkPermissionTool())
	srv.AddTool(s.itemActionTool())
	srv.AddTool(s.burndownTool())
	srv.AddTool(s.boardTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

func (s *Server) today() time.Time {
	return models.Day(s.now())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// scrum_list_projects
func (s *Server) listProjectsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("scrum_list_projects",
		mcp.WithDescription("List the projects visible to the acting user. Returns a JSON array with id, name, state, and planned dates."),
		mcp.WithString("state", mcp.Description("Filter by state: pending, active, closed, cancelled")),
	)
	return tool, s.handleListProjects
}

func (s *Server) handleListProjects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var states []models.ProjectState
	if v := request.GetString("state", ""); v != "" {
		st, err := models.ParseProjectState(v)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		states = append(states, st)
	}
	projects, err := s.engine.Projects(ctx, s.user, states...)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list projects: %v", err)), nil
	}

	type projectOut struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		State     string `json:"state"`
		StartDate string `json:"start_date,omitempty"`
		EndDate   string `json:"end_date,omitempty"`
	}

	out := make([]projectOut, len(projects))
	for i, p := range projects {
		out[i] = projectOut{
			ID:        p.ID,
			Name:      p.Name,
			State:     string(p.State),
			StartDate: models.FormatDate(p.StartDate),
			EndDate:   models.FormatDate(p.EndDate),
		}
	}
	return jsonResult(out)
}

// scrum_project_status
func (s *Server) projectStatusTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("scrum_project_status",
		mcp.WithDescription("Get a project's state, team size, backlog counts, and its active sprint with capacity and health. Resolves project by name or id."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name or id")),
	)
	return tool, s.handleProjectStatus
}

func (s *Server) handleProjectStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectRef, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}

	p, err := s.engine.Project(ctx, s.user, projectRef)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	team, err := s.engine.Team(ctx, s.user, p.ID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	items, err := s.engine.Items(ctx, s.user, p.ID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	counts := make(map[string]int)
	for _, w := range items {
		counts[string(w.State)]++
	}

	type sprintOut struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		StartDate     string `json:"start_date"`
		EndDate       string `json:"end_date"`
		TotalCapacity int    `json:"total_capacity"`
		BacklogCost   int    `json:"backlog_cost"`
		Health        int    `json:"health"`
	}
	type statusOut struct {
		ID          string         `json:"id"`
		Name        string         `json:"name"`
		State       string         `json:"state"`
		StartDate   string         `json:"start_date,omitempty"`
		EndDate     string         `json:"end_date,omitempty"`
		ActualStart string         `json:"actual_start,omitempty"`
		TeamSize    int            `json:"team_size"`
		Items       map[string]int `json:"items"`
		Sprint      *sprintOut     `json:"active_sprint,omitempty"`
	}

	out := statusOut{
		ID:          p.ID,
		Name:        p.Name,
		State:       string(p.State),
		StartDate:   models.FormatDate(p.StartDate),
		EndDate:     models.FormatDate(p.EndDate),
		ActualStart: models.FormatDate(p.ActualStart),
		TeamSize:    len(team),
		Items:       counts,
	}

	sp, err := s.engine.ActiveSprint(ctx, s.user, p.ID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if sp != nil {
		c, err := s.engine.SprintCapacity(ctx, s.user, sp.ID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		score, err := s.engine.SprintHealth(ctx, s.user, sp.ID, s.today())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		out.Sprint = &sprintOut{
			ID:            sp.ID,
			Name:          sp.Name,
			StartDate:     sp.StartDate.Format(models.DateLayout),
			EndDate:       sp.EndDate.Format(models.DateLayout),
			TotalCapacity: c.TotalCapacity,
			BacklogCost:   c.BacklogCost,
			Health:        score.Total,
		}
	}
	return jsonResult(out)
}

// scrum_check_permission
func (s *Server) checkPermissionTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("scrum_check_permission",
		mcp.WithDescription("Check whether a user holds a permission on a project, or on \"global\" for system-wide permissions."),
		mcp.WithString("user", mcp.Required(), mcp.Description("User id")),
		mcp.WithString("object", mcp.Required(), mcp.Description("Project name or id, or \"global\"")),
		mcp.WithString("permission", mcp.Required(), mcp.Description("create_project, administer, audit, manage_team, manage_project, manage_backlog, develop, view")),
	)
	return tool, s.handleCheckPermission
}

func (s *Server) handleCheckPermission(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user, err := request.RequireString("user")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: user"), nil
	}
	object, err := request.RequireString("object")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: object"), nil
	}
	permStr, err := request.RequireString("permission")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: permission"), nil
	}
	perm, err := models.ParsePermission(permStr)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if object != ledger.Global {
		p, err := s.engine.Project(ctx, s.user, object)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		object = p.ID
	}
	ok, err := s.engine.CheckPermission(ctx, user, object, perm)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"user": user, "object": object, "permission": perm, "allowed": ok})
}

// scrum_item_action
func (s *Server) itemActionTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("scrum_item_action",
		mcp.WithDescription("Apply a kanban action to a work item identified by project and number. Actions: log (needs hours), start, review, approve, reject, cancel, restore."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name or id")),
		mcp.WithNumber("number", mcp.Required(), mcp.Description("Work item number within the project")),
		mcp.WithString("action", mcp.Required(), mcp.Description("log, start, review, approve, reject, cancel, restore")),
		mcp.WithNumber("hours", mcp.Description("Hours worked, only for log")),
	)
	return tool, s.handleItemAction
}

func (s *Server) handleItemAction(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectRef, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}
	number, err := request.RequireInt("number")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: number"), nil
	}
	action, err := request.RequireString("action")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: action"), nil
	}
	hours := request.GetInt("hours", 0)

	item, err := s.engine.FindItem(ctx, s.user, projectRef, number)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	effect, err := s.engine.ApplyWorkItemAction(ctx, s.user, item.ID, models.WorkItemAction(action), hours, s.today())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"number": item.Number,
		"title":  item.Title,
		"from":   effect.From,
		"to":     effect.To,
		"hours":  effect.Hours,
	})
}

// scrum_burndown
func (s *Server) burndownTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("scrum_burndown",
		mcp.WithDescription("Get the burndown of a sprint: per day, the ideal and actual remaining hours. Defaults to the active sprint."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name or id")),
		mcp.WithString("sprint", mcp.Description("Sprint name or id (default: active sprint)")),
	)
	return tool, s.handleBurndown
}

func (s *Server) handleBurndown(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectRef, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}
	sp, err := s.engine.FindSprint(ctx, s.user, projectRef, request.GetString("sprint", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	series, err := s.engine.ComputeBurndown(ctx, s.user, sp.ID, s.today())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	type pointOut struct {
		Day       int      `json:"day"`
		Date      string   `json:"date"`
		Ideal     *float64 `json:"ideal,omitempty"`
		Remaining *int     `json:"remaining,omitempty"`
	}
	points := series.Points()
	out := make([]pointOut, len(points))
	for i, pt := range points {
		out[i] = pointOut{Day: pt.Day, Date: pt.Date.Format(models.DateLayout), Ideal: pt.Ideal, Remaining: pt.Remaining}
	}
	return jsonResult(map[string]any{"sprint": sp.Name, "cost": series.Cost, "points": out})
}

// scrum_board
func (s *Server) boardTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("scrum_board",
		mcp.WithDescription("Render the kanban board of the project's active sprint as text. Developers only see the items assigned to them."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name or id")),
	)
	return tool, s.handleBoard
}

func (s *Server) handleBoard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectRef, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}
	b, err := s.engine.Board(ctx, s.user, projectRef)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(b.Render(boardColumnWidth)), nil
}
