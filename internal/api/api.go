package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joescharf/zira/internal/identity"
	"github.com/joescharf/zira/internal/llm"
	"github.com/joescharf/zira/internal/models"
	"github.com/joescharf/zira/internal/tracker"
)

// Server provides the REST API handlers.
type Server struct {
	svc *tracker.Service
	dir identity.Directory
	llm *llm.Client
}

// NewServer creates a new API server.
// The llmClient may be nil if no API key is configured.
func NewServer(svc *tracker.Service, dir identity.Directory, llmClient *llm.Client) *Server {
	return &Server{
		svc: svc,
		dir: dir,
		llm: llmClient,
	}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/projects", s.listProjects)
	mux.HandleFunc("POST /api/v1/projects", s.createProject)
	mux.HandleFunc("GET /api/v1/projects/{id}", s.getProject)
	mux.HandleFunc("DELETE /api/v1/projects/{id}", s.deleteProject)

	mux.HandleFunc("GET /api/v1/projects/{id}/sprints", s.listSprints)
	mux.HandleFunc("POST /api/v1/projects/{id}/sprints", s.createSprint)
	mux.HandleFunc("GET /api/v1/projects/{id}/board", s.getBoard)
	mux.HandleFunc("POST /api/v1/projects/{id}/issues", s.createIssue)

	mux.HandleFunc("GET /api/v1/sprints/{id}", s.getSprint)
	mux.HandleFunc("GET /api/v1/sprints/{id}/issues", s.listSprintIssues)
	mux.HandleFunc("POST /api/v1/sprints/{id}/status", s.transitionSprint)

	mux.HandleFunc("GET /api/v1/issues", s.listIssues)
	mux.HandleFunc("POST /api/v1/issues/reorder", s.reorderIssues)
	mux.HandleFunc("GET /api/v1/issues/{id}", s.getIssue)
	mux.HandleFunc("PUT /api/v1/issues/{id}", s.updateIssue)
	mux.HandleFunc("DELETE /api/v1/issues/{id}", s.deleteIssue)
	mux.HandleFunc("POST /api/v1/issues/{id}/enrich", s.enrichIssue)

	mux.HandleFunc("GET /api/v1/members", s.listMembers)

	return corsMiddleware(s.authMiddleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type ctxKey int

const callerKey ctxKey = 0

// authMiddleware resolves the bearer token into a caller identity and
// stashes it on the request context. Requests without a resolvable
// token are rejected before they reach a handler.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" || token == r.Header.Get("Authorization") {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		caller, err := s.dir.ResolveCaller(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		ctx := context.WithValue(r.Context(), callerKey, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func callerFrom(r *http.Request) identity.Caller {
	caller, _ := r.Context().Value(callerKey).(identity.Caller)
	return caller
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps service errors onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	var transition *tracker.InvalidTransitionError
	switch {
	case errors.Is(err, tracker.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, tracker.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, tracker.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &transition):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		slog.Warn("unexpected service error", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// --- Projects ---

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.svc.ListProjects(r.Context(), callerFrom(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.svc.GetProject(r.Context(), callerFrom(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var in tracker.CreateProjectInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	project, err := s.svc.CreateProject(r.Context(), callerFrom(r), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteProject(r.Context(), callerFrom(r), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Sprints ---

type createSprintRequest struct {
	Description string
	StartDate   time.Time
	EndDate     time.Time
}

func (s *Server) createSprint(w http.ResponseWriter, r *http.Request) {
	var req createSprintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	sprint, err := s.svc.CreateSprint(r.Context(), callerFrom(r), r.PathValue("id"), tracker.CreateSprintInput{
		Description: req.Description,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sprint)
}

func (s *Server) listSprints(w http.ResponseWriter, r *http.Request) {
	sprints, err := s.svc.ListSprints(r.Context(), callerFrom(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sprints)
}

func (s *Server) getSprint(w http.ResponseWriter, r *http.Request) {
	sprint, err := s.svc.GetSprint(r.Context(), callerFrom(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sprint)
}

type transitionSprintRequest struct {
	Status string
}

func (s *Server) transitionSprint(w http.ResponseWriter, r *http.Request) {
	var req transitionSprintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	target, err := models.ParseSprintStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sprint, err := s.svc.TransitionSprint(r.Context(), callerFrom(r), r.PathValue("id"), target)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sprint)
}

func (s *Server) listSprintIssues(w http.ResponseWriter, r *http.Request) {
	issues, err := s.svc.SprintIssues(r.Context(), callerFrom(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issues)
}

// --- Issues ---

type createIssueRequest struct {
	SprintID    string
	Title       string
	Description string
	Status      string
	Priority    string
	AssigneeID  string
}

func (s *Server) createIssue(w http.ResponseWriter, r *http.Request) {
	var req createIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	in := tracker.CreateIssueInput{
		SprintID:    req.SprintID,
		Title:       req.Title,
		Description: req.Description,
		AssigneeID:  req.AssigneeID,
	}
	if req.Status != "" {
		status, err := models.ParseIssueStatus(req.Status)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		in.Status = status
	}
	if req.Priority != "" {
		priority, err := models.ParseIssuePriority(req.Priority)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		in.Priority = priority
	}

	issue, err := s.svc.CreateIssue(r.Context(), callerFrom(r), r.PathValue("id"), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, issue)
}

func (s *Server) getIssue(w http.ResponseWriter, r *http.Request) {
	issue, err := s.svc.GetIssue(r.Context(), callerFrom(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) listIssues(w http.ResponseWriter, r *http.Request) {
	filter := tracker.UserIssueFilter{
		AssigneeID: r.URL.Query().Get("assignee"),
		ReporterID: r.URL.Query().Get("reporter"),
	}
	issues, err := s.svc.IssuesByUser(r.Context(), callerFrom(r), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issues)
}

type updateIssueRequest struct {
	Title       string
	Description string
	Status      string
	Priority    string
	AssigneeID  *string
}

func (s *Server) updateIssue(w http.ResponseWriter, r *http.Request) {
	var req updateIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	in := tracker.UpdateIssueInput{
		Title:       req.Title,
		Description: req.Description,
		AssigneeID:  req.AssigneeID,
	}
	if req.Status != "" {
		status, err := models.ParseIssueStatus(req.Status)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		in.Status = status
	}
	if req.Priority != "" {
		priority, err := models.ParseIssuePriority(req.Priority)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		in.Priority = priority
	}

	issue, err := s.svc.UpdateIssue(r.Context(), callerFrom(r), r.PathValue("id"), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) deleteIssue(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteIssue(r.Context(), callerFrom(r), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reorderRequest struct {
	Moves []reorderMove
}

type reorderMove struct {
	ID     string
	Status string
	Order  int
}

func (s *Server) reorderIssues(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	moves := make([]tracker.IssueMove, 0, len(req.Moves))
	for _, m := range req.Moves {
		status, err := models.ParseIssueStatus(m.Status)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		moves = append(moves, tracker.IssueMove{ID: m.ID, Status: status, Order: m.Order})
	}

	if err := s.svc.Reorder(r.Context(), callerFrom(r), moves); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) enrichIssue(w http.ResponseWriter, r *http.Request) {
	if s.llm == nil {
		writeError(w, http.StatusServiceUnavailable, "LLM not configured (set ZIRA_ANTHROPIC_API_KEY)")
		return
	}

	caller := callerFrom(r)
	issue, err := s.svc.GetIssue(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	description, err := s.llm.EnrichIssue(r.Context(), issue.Title, issue.Description)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	updated, err := s.svc.UpdateIssue(r.Context(), caller, issue.ID, tracker.UpdateIssueInput{
		Description: description,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// --- Board ---

func (s *Server) getBoard(w http.ResponseWriter, r *http.Request) {
	board, err := s.svc.AssembleBoard(r.Context(), callerFrom(r), r.PathValue("id"), r.URL.Query().Get("sprint"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// --- Members ---

func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.svc.ListOrgMembers(r.Context(), callerFrom(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}
