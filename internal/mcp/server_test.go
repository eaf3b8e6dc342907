package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/scrum/internal/engine"
	"github.com/joescharf/scrum/internal/models"
	"github.com/joescharf/scrum/internal/notify"
	"github.com/joescharf/scrum/internal/store"
)

var today = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func intPtr(n int) *int { return &n }

// newTestServer returns an MCP server acting as the Scrum Master "sm" of an
// empty store where sm, po and dev are registered.
func newTestServer(t *testing.T) (*Server, *engine.Engine) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	e := engine.New(s, notify.Discard{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	for _, id := range []string{"sm", "po", "dev"} {
		require.NoError(t, e.RegisterUser(context.Background(), &models.User{ID: id, Name: id, Email: id + "@example.com"}))
	}

	srv := NewServer(e, "sm")
	srv.now = func() time.Time { return today }
	return srv, e
}

// seedActiveSprint creates project Apollo with item #1 "Login" (10h)
// assigned to dev in an active 7-day sprint.
func seedActiveSprint(t *testing.T, e *engine.Engine) {
	t.Helper()
	ctx := context.Background()

	end := today.AddDate(0, 0, 21)
	_, err := e.CreateProject(ctx, "sm", engine.NewProject{Name: "Apollo", StartDate: &today, EndDate: &end, DefaultSprintDays: intPtr(7)}, today)
	require.NoError(t, err)
	require.NoError(t, e.AssignRole(ctx, "sm", "po", "Apollo", models.RoleProductOwner))
	require.NoError(t, e.AssignRole(ctx, "sm", "dev", "Apollo", models.RoleDeveloper))
	_, err = e.StartProject(ctx, "sm", "Apollo", today)
	require.NoError(t, err)

	item, err := e.CreateItem(ctx, "po", "Apollo", engine.NewItem{Title: "Login", EstimatedHours: intPtr(10)})
	require.NoError(t, err)
	sp, _, err := e.CreateSprint(ctx, "sm", "Apollo", engine.NewSprint{Name: "Sprint 1", StartDate: today}, today)
	require.NoError(t, err)
	_, err = e.AddSprintMember(ctx, "sm", sp.ID, "dev", 2)
	require.NoError(t, err)
	require.NoError(t, e.PlanItem(ctx, "sm", sp.ID, item.ID, "dev"))
	_, err = e.StartSprint(ctx, "sm", sp.ID, today)
	require.NoError(t, err)
}

// callToolReq builds a mcpgo.CallToolRequest with the given name and arguments.
func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		tc, ok := c.(mcpgo.TextContent)
		if ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// resultJSON parses the text result as JSON into the provided target.
func resultJSON(t *testing.T, result *mcpgo.CallToolResult, target any) {
	t.Helper()
	text := resultText(t, result)
	err := json.Unmarshal([]byte(text), target)
	require.NoError(t, err, "failed to parse result JSON: %s", text)
}

func TestMCPServer(t *testing.T) {
	srv, _ := newTestServer(t)
	require.NotNil(t, srv.MCPServer(), "MCPServer() should return non-nil")
}

func TestHandleListProjects(t *testing.T) {
	srv, e := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleListProjects(ctx, callToolReq("scrum_list_projects", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "[]", resultText(t, result))

	seedActiveSprint(t, e)
	result, err = srv.handleListProjects(ctx, callToolReq("scrum_list_projects", map[string]any{"state": "active"}))
	require.NoError(t, err)
	var projects []struct {
		Name  string `json:"name"`
		State string `json:"state"`
	}
	resultJSON(t, result, &projects)
	require.Len(t, projects, 1)
	assert.Equal(t, "Apollo", projects[0].Name)
	assert.Equal(t, "active", projects[0].State)

	result, err = srv.handleListProjects(ctx, callToolReq("scrum_list_projects", map[string]any{"state": "paused"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleProjectStatus(t *testing.T) {
	srv, e := newTestServer(t)
	seedActiveSprint(t, e)

	result, err := srv.handleProjectStatus(context.Background(), callToolReq("scrum_project_status", map[string]any{"project": "Apollo"}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var status struct {
		State    string         `json:"state"`
		TeamSize int            `json:"team_size"`
		Items    map[string]int `json:"items"`
		Sprint   *struct {
			Name          string `json:"name"`
			TotalCapacity int    `json:"total_capacity"`
			BacklogCost   int    `json:"backlog_cost"`
		} `json:"active_sprint"`
	}
	resultJSON(t, result, &status)
	assert.Equal(t, "active", status.State)
	assert.Equal(t, 3, status.TeamSize)
	assert.Equal(t, 1, status.Items["pending"])
	require.NotNil(t, status.Sprint)
	assert.Equal(t, "Sprint 1", status.Sprint.Name)
	assert.Equal(t, 14, status.Sprint.TotalCapacity)
	assert.Equal(t, 10, status.Sprint.BacklogCost)
}

func TestHandleProjectStatus_MissingProject(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleProjectStatus(ctx, callToolReq("scrum_project_status", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = srv.handleProjectStatus(ctx, callToolReq("scrum_project_status", map[string]any{"project": "Nope"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "not found")
}

func TestHandleCheckPermission(t *testing.T) {
	srv, e := newTestServer(t)
	seedActiveSprint(t, e)
	ctx := context.Background()

	check := func(user, object, perm string) bool {
		t.Helper()
		result, err := srv.handleCheckPermission(ctx, callToolReq("scrum_check_permission", map[string]any{
			"user": user, "object": object, "permission": perm,
		}))
		require.NoError(t, err)
		require.False(t, result.IsError, resultText(t, result))
		var out struct {
			Allowed bool `json:"allowed"`
		}
		resultJSON(t, result, &out)
		return out.Allowed
	}

	assert.True(t, check("po", "Apollo", "manage_backlog"))
	assert.False(t, check("dev", "Apollo", "manage_backlog"))
	assert.True(t, check("sm", "global", "administer"))
	assert.False(t, check("dev", "global", "create_project"))

	result, err := srv.handleCheckPermission(ctx, callToolReq("scrum_check_permission", map[string]any{
		"user": "dev", "object": "Apollo", "permission": "fly",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleItemAction(t *testing.T) {
	srv, e := newTestServer(t)
	seedActiveSprint(t, e)
	ctx := context.Background()

	dev := NewServer(e, "dev")
	dev.now = srv.now
	result, err := dev.handleItemAction(ctx, callToolReq("scrum_item_action", map[string]any{
		"project": "Apollo", "number": float64(1), "action": "log", "hours": float64(3),
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	var out struct {
		From  string `json:"from"`
		To    string `json:"to"`
		Hours int    `json:"hours"`
	}
	resultJSON(t, result, &out)
	assert.Equal(t, "pending", out.From)
	assert.Equal(t, "in_progress", out.To)
	assert.Equal(t, 3, out.Hours)

	// sm is not assigned to the item
	result, err = srv.handleItemAction(ctx, callToolReq("scrum_item_action", map[string]any{
		"project": "Apollo", "number": float64(1), "action": "review",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "forbidden")

	result, err = srv.handleItemAction(ctx, callToolReq("scrum_item_action", map[string]any{
		"project": "Apollo", "action": "start",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleBurndown(t *testing.T) {
	srv, e := newTestServer(t)
	seedActiveSprint(t, e)
	ctx := context.Background()

	item, err := e.FindItem(ctx, "dev", "Apollo", 1)
	require.NoError(t, err)
	_, err = e.ApplyWorkItemAction(ctx, "dev", item.ID, models.ActionLog, 4, today)
	require.NoError(t, err)

	result, err := srv.handleBurndown(ctx, callToolReq("scrum_burndown", map[string]any{"project": "Apollo"}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var out struct {
		Sprint string `json:"sprint"`
		Cost   int    `json:"cost"`
		Points []struct {
			Date      string   `json:"date"`
			Ideal     *float64 `json:"ideal"`
			Remaining *int     `json:"remaining"`
		} `json:"points"`
	}
	resultJSON(t, result, &out)
	assert.Equal(t, "Sprint 1", out.Sprint)
	assert.Equal(t, 10, out.Cost)
	require.Len(t, out.Points, 8)
	assert.Equal(t, "2026-06-01", out.Points[0].Date)
	require.NotNil(t, out.Points[0].Remaining)
	assert.Equal(t, 6, *out.Points[0].Remaining)
	assert.Nil(t, out.Points[1].Remaining)

	result, err = srv.handleBurndown(ctx, callToolReq("scrum_burndown", map[string]any{"project": "Apollo", "sprint": "Sprint 9"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleBoard(t *testing.T) {
	srv, e := newTestServer(t)
	seedActiveSprint(t, e)

	result, err := srv.handleBoard(context.Background(), callToolReq("scrum_board", map[string]any{"project": "Apollo"}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	text := resultText(t, result)
	assert.Contains(t, text, "Login")
	assert.Contains(t, text, "pending (1)")
}
