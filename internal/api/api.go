package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/joescharf/scrum/internal/engine"
	"github.com/joescharf/scrum/internal/guard"
	"github.com/joescharf/scrum/internal/llm"
	"github.com/joescharf/scrum/internal/models"
	"github.com/joescharf/scrum/internal/project"
	"github.com/joescharf/scrum/internal/sprint"
	"github.com/joescharf/scrum/internal/store"
)

// UserHeader carries the id of the acting user. Identity is resolved by
// whatever sits in front of the server.
const UserHeader = "X-Scrum-User"

// Server provides the REST API handlers.
type Server struct {
	engine *engine.Engine
	llm    *llm.Client
	logger *slog.Logger
	now    func() time.Time
}

// NewServer creates a new API server.
// The llmClient may be nil if no API key is configured.
func NewServer(e *engine.Engine, llmClient *llm.Client, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine: e,
		llm:    llmClient,
		logger: logger,
		now:    time.Now,
	}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/permissions", s.checkPermission)

	mux.HandleFunc("GET /api/v1/projects", s.listProjects)
	mux.HandleFunc("POST /api/v1/projects", s.createProject)
	mux.HandleFunc("GET /api/v1/projects/{project}", s.getProject)
	mux.HandleFunc("PUT /api/v1/projects/{project}", s.updateProject)
	mux.HandleFunc("GET /api/v1/projects/{project}/check/{transition}", s.checkProject)
	mux.HandleFunc("POST /api/v1/projects/{project}/start", s.startProject)
	mux.HandleFunc("POST /api/v1/projects/{project}/finish", s.finishProject)
	mux.HandleFunc("POST /api/v1/projects/{project}/cancel", s.cancelProject)

	mux.HandleFunc("GET /api/v1/projects/{project}/roles", s.listRoles)
	mux.HandleFunc("POST /api/v1/projects/{project}/roles", s.createRole)
	mux.HandleFunc("DELETE /api/v1/projects/{project}/roles/{role}", s.deleteRole)
	mux.HandleFunc("GET /api/v1/projects/{project}/team", s.listTeam)
	mux.HandleFunc("PUT /api/v1/projects/{project}/team/{user}", s.assignRole)
	mux.HandleFunc("DELETE /api/v1/projects/{project}/team/{user}", s.removeRole)

	mux.HandleFunc("GET /api/v1/projects/{project}/sprints", s.listSprints)
	mux.HandleFunc("POST /api/v1/projects/{project}/sprints", s.createSprint)
	mux.HandleFunc("GET /api/v1/projects/{project}/items", s.listItems)
	mux.HandleFunc("POST /api/v1/projects/{project}/items", s.createItem)
	mux.HandleFunc("GET /api/v1/projects/{project}/board", s.board)
	mux.HandleFunc("GET /api/v1/projects/{project}/calendar", s.calendar)

	mux.HandleFunc("GET /api/v1/sprints/{id}", s.getSprint)
	mux.HandleFunc("PUT /api/v1/sprints/{id}", s.updateSprint)
	mux.HandleFunc("GET /api/v1/sprints/{id}/check/{transition}", s.checkSprint)
	mux.HandleFunc("POST /api/v1/sprints/{id}/start", s.startSprint)
	mux.HandleFunc("POST /api/v1/sprints/{id}/finish", s.finishSprint)
	mux.HandleFunc("GET /api/v1/sprints/{id}/backlog", s.sprintBacklog)
	mux.HandleFunc("POST /api/v1/sprints/{id}/backlog", s.planItem)
	mux.HandleFunc("DELETE /api/v1/sprints/{id}/backlog/{item}", s.unplanItem)
	mux.HandleFunc("GET /api/v1/sprints/{id}/members", s.listSprintMembers)
	mux.HandleFunc("POST /api/v1/sprints/{id}/members", s.addSprintMember)
	mux.HandleFunc("DELETE /api/v1/sprints/{id}/members/{user}", s.removeSprintMember)
	mux.HandleFunc("GET /api/v1/sprints/{id}/capacity", s.sprintCapacity)
	mux.HandleFunc("GET /api/v1/sprints/{id}/burndown", s.sprintBurndown)
	mux.HandleFunc("GET /api/v1/sprints/{id}/health", s.sprintHealth)
	mux.HandleFunc("POST /api/v1/sprints/{id}/review/draft", s.draftReview)

	mux.HandleFunc("GET /api/v1/items/{id}", s.getItem)
	mux.HandleFunc("PUT /api/v1/items/{id}", s.updateItem)
	mux.HandleFunc("POST /api/v1/items/{id}/actions", s.applyAction)
	mux.HandleFunc("GET /api/v1/items/{id}/comments", s.listComments)
	mux.HandleFunc("POST /api/v1/items/{id}/comments", s.addComment)

	return corsMiddleware(s.logRequests(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+UserHeader)
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request", "method", r.Method, "path", r.URL.Path,
			"status", rec.status, "actor", r.Header.Get(UserHeader), "duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineError maps the engine's error taxonomy to HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	var blocked *guard.BlockedError
	switch {
	case errors.As(err, &blocked):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":    err.Error(),
			"errors":   blocked.Result.Errors,
			"warnings": blocked.Result.Warnings,
		})
	case errors.Is(err, guard.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, guard.ErrIllegalTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, guard.ErrInconsistent):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// actor returns the acting user, writing a 401 when the header is missing.
func actor(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.Header.Get(UserHeader))
	if id == "" {
		writeError(w, http.StatusUnauthorized, "missing "+UserHeader+" header")
		return "", false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

// parseDate turns an optional YYYY-MM-DD string into a date.
func parseDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	d, err := models.ParseDate(*s)
	if err != nil {
		return nil, guard.Inconsistent("%s", err)
	}
	return &d, nil
}

func (s *Server) today() time.Time {
	return models.Day(s.now())
}

type warningsResponse struct {
	Warnings []string `json:"warnings"`
}

// --- Permissions ---

func (s *Server) checkPermission(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	user, object := q.Get("user"), q.Get("object")
	perm, err := models.ParsePermission(q.Get("permission"))
	if err != nil || user == "" || object == "" {
		writeError(w, http.StatusBadRequest, "user, object and a valid permission are required")
		return
	}
	ok, err := s.engine.CheckPermission(r.Context(), user, object, perm)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"allowed": ok})
}

// --- Projects ---

type projectRequest struct {
	Name              *string `json:"name"`
	Description       *string `json:"description"`
	StartDate         *string `json:"start_date"`
	EndDate           *string `json:"end_date"`
	DefaultSprintDays *int    `json:"default_sprint_days"`
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	var states []models.ProjectState
	if v := r.URL.Query().Get("state"); v != "" {
		st, err := models.ParseProjectState(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		states = append(states, st)
	}
	projects, err := s.engine.Projects(r.Context(), id, states...)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	var req projectRequest
	if !decode(w, r, &req) {
		return
	}
	in := engine.NewProject{DefaultSprintDays: req.DefaultSprintDays}
	if req.Name != nil {
		in.Name = *req.Name
	}
	if req.Description != nil {
		in.Description = *req.Description
	}
	var err error
	if in.StartDate, err = parseDate(req.StartDate); err != nil {
		writeEngineError(w, err)
		return
	}
	if in.EndDate, err = parseDate(req.EndDate); err != nil {
		writeEngineError(w, err)
		return
	}
	p, err := s.engine.CreateProject(r.Context(), id, in, s.today())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	p, err := s.engine.Project(r.Context(), id, r.PathValue("project"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	var req projectRequest
	if !decode(w, r, &req) {
		return
	}
	c := project.Changes{Name: req.Name, Description: req.Description, DefaultSprintDays: req.DefaultSprintDays}
	var err error
	if c.StartDate, err = parseDate(req.StartDate); err != nil {
		writeEngineError(w, err)
		return
	}
	if c.EndDate, err = parseDate(req.EndDate); err != nil {
		writeEngineError(w, err)
		return
	}
	p, err := s.engine.EditProject(r.Context(), id, r.PathValue("project"), c)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) checkProject(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	var (
		result guard.Result
		err    error
	)
	switch r.PathValue("transition") {
	case "start":
		result, err = s.engine.CheckStartProject(r.Context(), id, r.PathValue("project"), s.today())
	case "finish":
		result, err = s.engine.CheckFinishProject(r.Context(), id, r.PathValue("project"), s.today())
	default:
		writeError(w, http.StatusBadRequest, "transition must be start or finish")
		return
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) startProject(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	warnings, err := s.engine.StartProject(r.Context(), id, r.PathValue("project"), s.today())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, warningsResponse{Warnings: warnings})
}

func (s *Server) finishProject(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	warnings, err := s.engine.FinishProject(r.Context(), id, r.PathValue("project"), s.today())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, warningsResponse{Warnings: warnings})
}

func (s *Server) cancelProject(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	if err := s.engine.CancelProject(r.Context(), id, r.PathValue("project"), s.today()); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Roles and team ---

type roleRequest struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

func (s *Server) listRoles(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	roles, err := s.engine.Roles(r.Context(), id, r.PathValue("project"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roles)
}

func (s *Server) createRole(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	var req roleRequest
	if !decode(w, r, &req) {
		return
	}
	perms := make([]models.Permission, 0, len(req.Permissions))
	for _, p := range req.Permissions {
		perm, err := models.ParsePermission(p)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		perms = append(perms, perm)
	}
	role, err := s.engine.CreateRole(r.Context(), id, r.PathValue("project"), req.Name, perms)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, role)
}

func (s *Server) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	if err := s.engine.DeleteRole(r.Context(), id, r.PathValue("project"), r.PathValue("role")); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listTeam(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	team, err := s.engine.Team(r.Context(), id, r.PathValue("project"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

func (s *Server) assignRole(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	var req struct {
		Role string `json:"role"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := s.engine.AssignRole(r.Context(), id, r.PathValue("user"), r.PathValue("project"), req.Role); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) removeRole(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	if err := s.engine.RemoveRole(r.Context(), id, r.PathValue("user"), r.PathValue("project")); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Sprints ---

type sprintRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	StartDate   *string `json:"start_date"`
	Days        *int    `json:"days"`
}

func (s *Server) listSprints(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	sprints, err := s.engine.Sprints(r.Context(), id, r.PathValue("project"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sprints)
}

func (s *Server) createSprint(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	var req sprintRequest
	if !decode(w, r, &req) {
		return
	}
	in := engine.NewSprint{StartDate: s.today()}
	if req.Days != nil {
		in.Days = *req.Days
	}
	if req.Name != nil {
		in.Name = *req.Name
	}
	if req.Description != nil {
		in.Description = *req.Description
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if start != nil {
		in.StartDate = *start
	}
	sp, warnings, err := s.engine.CreateSprint(r.Context(), id, r.PathValue("project"), in, s.today())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"sprint": sp, "warnings": warnings})
}

func (s *Server) getSprint(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	sp, err := s.engine.Sprint(r.Context(), id, r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

func (s *Server) updateSprint(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	var req sprintRequest
	if !decode(w, r, &req) {
		return
	}
	c := sprint.Changes{Name: req.Name, Description: req.Description, Days: req.Days}
	var err error
	if c.StartDate, err = parseDate(req.StartDate); err != nil {
		writeEngineError(w, err)
		return
	}
	sp, err := s.engine.EditSprint(r.Context(), id, r.PathValue("id"), c)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

func (s *Server) checkSprint(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	var (
		result guard.Result
		err    error
	)
	switch r.PathValue("transition") {
	case "start":
		result, err = s.engine.CheckStartSprint(r.Context(), id, r.PathValue("id"), s.today())
	case "finish":
		result, err = s.engine.CheckFinishSprint(r.Context(), id, r.PathValue("id"), s.today())
	default:
		writeError(w, http.StatusBadRequest, "transition must be start or finish")
		return
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) startSprint(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	warnings, err := s.engine.StartSprint(r.Context(), id, r.PathValue("id"), s.today())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, warningsResponse{Warnings: warnings})
}

func (s *Server) finishSprint(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	warnings, rolled, err := s.engine.FinishSprint(r.Context(), id, r.PathValue("id"), s.today())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"warnings": warnings, "rolled_over": rolled})
}

func (s *Server) sprintBacklog(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	items, err := s.engine.SprintBacklog(r.Context(), id, r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) planItem(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	var req struct {
		Item string `json:"item"`
		User string `json:"user"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := s.engine.PlanItem(r.Context(), id, r.PathValue("id"), req.Item, req.User); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) unplanItem(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	if err := s.engine.UnplanItem(r.Context(), id, r.PathValue("id"), r.PathValue("item")); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listSprintMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	members, err := s.engine.SprintMembers(r.Context(), id, r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (s *Server) addSprintMember(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	var req struct {
		User       string `json:"user"`
		DailyHours int    `json:"daily_hours"`
	}
	if !decode(w, r, &req) {
		return
	}
	m, err := s.engine.AddSprintMember(r.Context(), id, r.PathValue("id"), req.User, req.DailyHours)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) removeSprintMember(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	if err := s.engine.RemoveSprintMember(r.Context(), id, r.PathValue("id"), r.PathValue("user")); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) sprintCapacity(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	c, err := s.engine.SprintCapacity(r.Context(), id, r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"capacity": c, "fits": c.Fits()})
}

func (s *Server) sprintBurndown(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	series, err := s.engine.ComputeBurndown(r.Context(), id, r.PathValue("id"), s.today())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, series.Points())
}

func (s *Server) sprintHealth(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	score, err := s.engine.SprintHealth(r.Context(), id, r.PathValue("id"), s.today())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

func (s *Server) draftReview(w http.ResponseWriter, r *http.Request) {
	if s.llm == nil {
		writeError(w, http.StatusServiceUnavailable, "LLM not configured: set anthropic.api_key in config")
		return
	}
	id, ok := actor(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	sp, err := s.engine.Sprint(ctx, id, r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	p, err := s.engine.Project(ctx, id, sp.ProjectID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	items, err := s.engine.SprintBacklog(ctx, id, sp.ID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	series, err := s.engine.ComputeBurndown(ctx, id, sp.ID, s.today())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	draft, err := s.llm.DraftReview(ctx, llm.NewReviewInput(p.Name, sp, items, series))
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"draft": draft, "text": draft.Text()})
}

// --- Work items ---

type itemRequest struct {
	Title          *string `json:"title"`
	Description    *string `json:"description"`
	Priority       *int    `json:"priority"`
	EstimatedHours *int    `json:"estimated_hours"`
}

func (s *Server) listItems(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	list := s.engine.Items
	if backlog, _ := strconv.ParseBool(r.URL.Query().Get("backlog")); backlog {
		list = s.engine.Backlog
	}
	items, err := list(r.Context(), id, r.PathValue("project"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) createItem(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	var req itemRequest
	if !decode(w, r, &req) {
		return
	}
	in := engine.NewItem{EstimatedHours: req.EstimatedHours}
	if req.Title != nil {
		in.Title = *req.Title
	}
	if req.Description != nil {
		in.Description = *req.Description
	}
	if req.Priority != nil {
		in.Priority = *req.Priority
	}
	item, err := s.engine.CreateItem(r.Context(), id, r.PathValue("project"), in)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) getItem(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	item, err := s.engine.Item(r.Context(), id, r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) updateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	var req itemRequest
	if !decode(w, r, &req) {
		return
	}
	item, err := s.engine.EditItem(r.Context(), id, r.PathValue("id"), engine.ItemChanges{
		Title:          req.Title,
		Description:    req.Description,
		Priority:       req.Priority,
		EstimatedHours: req.EstimatedHours,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) applyAction(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	var req struct {
		Action string `json:"action"`
		Hours  int    `json:"hours"`
	}
	if !decode(w, r, &req) {
		return
	}
	effect, err := s.engine.ApplyWorkItemAction(r.Context(), id, r.PathValue("id"),
		models.WorkItemAction(req.Action), req.Hours, s.today())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, effect)
}

func (s *Server) listComments(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	comments, err := s.engine.Comments(r.Context(), id, r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

func (s *Server) addComment(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if !decode(w, r, &req) {
		return
	}
	c, err := s.engine.AddComment(r.Context(), id, r.PathValue("id"), req.Text)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// --- Views ---

func (s *Server) board(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	b, err := s.engine.Board(r.Context(), id, r.PathValue("project"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) calendar(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	events, err := s.engine.Calendar(r.Context(), id, r.PathValue("project"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
