package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/zira/internal/identity"
	"github.com/joescharf/zira/internal/models"
	"github.com/joescharf/zira/internal/tracker"
)

// Server wraps the tracker service and exposes it as MCP tools. All tool
// calls run as the single caller identity the server was started with.
type Server struct {
	svc    *tracker.Service
	caller identity.Caller
}

// NewServer creates the MCP server wrapper.
func NewServer(svc *tracker.Service, caller identity.Caller) *Server {
	return &Server{
		svc:    svc,
		caller: caller,
	}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("zira", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.listProjectsTool())
	srv.AddTool(s.listSprintsTool())
	srv.AddTool(s.boardTool())
	srv.AddTool(s.createIssueTool())
	srv.AddTool(s.updateIssueTool())
	srv.AddTool(s.moveIssueTool())
	srv.AddTool(s.sprintStatusTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// zira_list_projects
func (s *Server) listProjectsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("zira_list_projects",
		mcp.WithDescription("List the projects in the active organization. Returns a JSON array of projects with id, key, name, and description."),
	)
	return tool, s.handleListProjects
}

func (s *Server) handleListProjects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := s.svc.ListProjects(ctx, s.caller)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list projects: %v", err)), nil
	}

	type projectOut struct {
		ID          string `json:"id"`
		Key         string `json:"key"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}

	out := make([]projectOut, len(projects))
	for i, p := range projects {
		out[i] = projectOut{
			ID:          p.ID,
			Key:         p.Key,
			Name:        p.Name,
			Description: p.Description,
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal projects: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// zira_list_sprints
func (s *Server) listSprintsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("zira_list_sprints",
		mcp.WithDescription("List a project's sprints. Returns a JSON array with id, name, status (PLANNED/ACTIVE/COMPLETED), and the sprint window."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project key (e.g. ZIRA) or ID")),
	)
	return tool, s.handleListSprints
}

func (s *Server) handleListSprints(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectRef, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}

	p, err := s.resolveProject(ctx, projectRef)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("project not found: %s", projectRef)), nil
	}

	sprints, err := s.svc.ListSprints(ctx, s.caller, p.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list sprints: %v", err)), nil
	}

	type sprintOut struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		Status    string `json:"status"`
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}

	out := make([]sprintOut, len(sprints))
	for i, sp := range sprints {
		out[i] = sprintOut{
			ID:        sp.ID,
			Name:      sp.Name,
			Status:    string(sp.Status),
			StartDate: sp.StartDate.Format(time.RFC3339),
			EndDate:   sp.EndDate.Format(time.RFC3339),
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal sprints: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// zira_board
func (s *Server) boardTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("zira_board",
		mcp.WithDescription("Get a project's kanban board: the selected sprint plus its issues grouped by column (TODO, IN_PROGRESS, IN_REVIEW, DONE) in board order."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project key (e.g. ZIRA) or ID")),
		mcp.WithString("sprint", mcp.Description("Sprint ID; defaults to the active sprint")),
	)
	return tool, s.handleBoard
}

func (s *Server) handleBoard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectRef, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}

	p, err := s.resolveProject(ctx, projectRef)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("project not found: %s", projectRef)), nil
	}

	board, err := s.svc.AssembleBoard(ctx, s.caller, p.ID, request.GetString("sprint", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to assemble board: %v", err)), nil
	}

	type issueOut struct {
		ID       string `json:"id"`
		Title    string `json:"title"`
		Priority string `json:"priority"`
		Order    int    `json:"order"`
	}

	columns := make(map[string][]issueOut)
	for _, status := range models.IssueStatuses {
		col := make([]issueOut, len(board.Columns[status]))
		for i, issue := range board.Columns[status] {
			col[i] = issueOut{
				ID:       issue.ID,
				Title:    issue.Title,
				Priority: string(issue.Priority),
				Order:    issue.Order,
			}
		}
		columns[string(status)] = col
	}

	result := map[string]any{
		"project": map[string]any{
			"id":   p.ID,
			"key":  p.Key,
			"name": p.Name,
		},
		"columns": columns,
	}
	if board.Sprint != nil {
		result["sprint"] = map[string]any{
			"id":     board.Sprint.ID,
			"name":   board.Sprint.Name,
			"status": string(board.Sprint.Status),
		}
	}

	data, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal board: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// zira_create_issue
func (s *Server) createIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("zira_create_issue",
		mcp.WithDescription("Create an issue in a project's sprint. The issue lands at the bottom of its board column. Returns the created issue as JSON."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project key (e.g. ZIRA) or ID")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Issue title")),
		mcp.WithString("sprint", mcp.Description("Sprint ID; defaults to the active sprint")),
		mcp.WithString("description", mcp.Description("Issue description")),
		mcp.WithString("status", mcp.Description("Board column: TODO, IN_PROGRESS, IN_REVIEW, DONE (default: TODO)")),
		mcp.WithString("priority", mcp.Description("Priority: LOW, MEDIUM, HIGH, URGENT (default: MEDIUM)")),
	)
	return tool, s.handleCreateIssue
}

func (s *Server) handleCreateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectRef, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}
	title, err := request.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: title"), nil
	}

	p, err := s.resolveProject(ctx, projectRef)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("project not found: %s", projectRef)), nil
	}

	sprintID := request.GetString("sprint", "")
	if sprintID == "" {
		sprintID, err = s.activeSprintID(ctx, p.ID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	in := tracker.CreateIssueInput{
		SprintID:    sprintID,
		Title:       title,
		Description: request.GetString("description", ""),
	}
	if status := request.GetString("status", ""); status != "" {
		parsed, err := models.ParseIssueStatus(strings.ToUpper(status))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		in.Status = parsed
	}
	if priority := request.GetString("priority", ""); priority != "" {
		parsed, err := models.ParseIssuePriority(strings.ToUpper(priority))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		in.Priority = parsed
	}

	issue, err := s.svc.CreateIssue(ctx, s.caller, p.ID, in)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create issue: %v", err)), nil
	}

	data, _ := json.Marshal(issueResult(issue))
	return mcp.NewToolResultText(string(data)), nil
}

// zira_update_issue
func (s *Server) updateIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("zira_update_issue",
		mcp.WithDescription("Update an existing issue. Provide the issue ID and at least one field to update. Returns the updated issue as JSON."),
		mcp.WithString("issue_id", mcp.Required(), mcp.Description("Issue ID")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("description", mcp.Description("New description")),
		mcp.WithString("status", mcp.Description("New board column: TODO, IN_PROGRESS, IN_REVIEW, DONE")),
		mcp.WithString("priority", mcp.Description("New priority: LOW, MEDIUM, HIGH, URGENT")),
	)
	return tool, s.handleUpdateIssue
}

func (s *Server) handleUpdateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueID, err := request.RequireString("issue_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_id"), nil
	}

	in := tracker.UpdateIssueInput{
		Title:       request.GetString("title", ""),
		Description: request.GetString("description", ""),
	}
	updated := in.Title != "" || in.Description != ""

	if status := request.GetString("status", ""); status != "" {
		parsed, err := models.ParseIssueStatus(strings.ToUpper(status))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		in.Status = parsed
		updated = true
	}
	if priority := request.GetString("priority", ""); priority != "" {
		parsed, err := models.ParseIssuePriority(strings.ToUpper(priority))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		in.Priority = parsed
		updated = true
	}
	if !updated {
		return mcp.NewToolResultError("no fields provided to update; specify at least one of: title, description, status, priority"), nil
	}

	issue, err := s.svc.UpdateIssue(ctx, s.caller, issueID, in)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to update issue: %v", err)), nil
	}

	data, _ := json.Marshal(issueResult(issue))
	return mcp.NewToolResultText(string(data)), nil
}

// zira_move_issue
func (s *Server) moveIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("zira_move_issue",
		mcp.WithDescription("Move an issue to a board column and position. Issues below the target position keep their relative order; the submitted position is applied as-is."),
		mcp.WithString("issue_id", mcp.Required(), mcp.Description("Issue ID")),
		mcp.WithString("status", mcp.Required(), mcp.Description("Target board column: TODO, IN_PROGRESS, IN_REVIEW, DONE")),
		mcp.WithNumber("order", mcp.Description("Target position within the column, 0-based (default: 0)")),
	)
	return tool, s.handleMoveIssue
}

func (s *Server) handleMoveIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueID, err := request.RequireString("issue_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_id"), nil
	}
	status, err := request.RequireString("status")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: status"), nil
	}
	parsed, err := models.ParseIssueStatus(strings.ToUpper(status))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	order := request.GetInt("order", 0)

	moves := []tracker.IssueMove{{ID: issueID, Status: parsed, Order: order}}
	if err := s.svc.Reorder(ctx, s.caller, moves); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to move issue: %v", err)), nil
	}

	issue, err := s.svc.GetIssue(ctx, s.caller, issueID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to fetch issue: %v", err)), nil
	}

	data, _ := json.Marshal(issueResult(issue))
	return mcp.NewToolResultText(string(data)), nil
}

// zira_sprint_status
func (s *Server) sprintStatusTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("zira_sprint_status",
		mcp.WithDescription("Transition a sprint to a new status. PLANNED sprints become ACTIVE once their window has opened; ACTIVE sprints become COMPLETED once their window has closed."),
		mcp.WithString("sprint_id", mcp.Required(), mcp.Description("Sprint ID")),
		mcp.WithString("status", mcp.Required(), mcp.Description("Target status: ACTIVE or COMPLETED")),
	)
	return tool, s.handleSprintStatus
}

func (s *Server) handleSprintStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sprintID, err := request.RequireString("sprint_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: sprint_id"), nil
	}
	status, err := request.RequireString("status")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: status"), nil
	}
	target, err := models.ParseSprintStatus(strings.ToUpper(status))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	sprint, err := s.svc.TransitionSprint(ctx, s.caller, sprintID, target)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to transition sprint: %v", err)), nil
	}

	result := map[string]any{
		"id":         sprint.ID,
		"name":       sprint.Name,
		"status":     string(sprint.Status),
		"start_date": sprint.StartDate.Format(time.RFC3339),
		"end_date":   sprint.EndDate.Format(time.RFC3339),
	}
	data, _ := json.Marshal(result)
	return mcp.NewToolResultText(string(data)), nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// resolveProject tries to find a project by key first, then by ID.
func (s *Server) resolveProject(ctx context.Context, ref string) (*models.Project, error) {
	projects, err := s.svc.ListProjects(ctx, s.caller)
	if err != nil {
		return nil, err
	}
	upper := strings.ToUpper(ref)
	for _, p := range projects {
		if p.Key == upper {
			return p, nil
		}
	}
	for _, p := range projects {
		if p.ID == ref {
			return p, nil
		}
	}
	return nil, fmt.Errorf("project not found: %s", ref)
}

// activeSprintID returns the project's ACTIVE sprint, erroring when none
// is running.
func (s *Server) activeSprintID(ctx context.Context, projectID string) (string, error) {
	sprints, err := s.svc.ListSprints(ctx, s.caller, projectID)
	if err != nil {
		return "", err
	}
	for _, sp := range sprints {
		if sp.Status == models.SprintStatusActive {
			return sp.ID, nil
		}
	}
	return "", fmt.Errorf("no active sprint; pass a sprint ID explicitly")
}

func issueResult(issue *models.Issue) map[string]any {
	return map[string]any{
		"id":          issue.ID,
		"project_id":  issue.ProjectID,
		"sprint_id":   issue.SprintID,
		"title":       issue.Title,
		"description": issue.Description,
		"status":      string(issue.Status),
		"priority":    string(issue.Priority),
		"order":       issue.Order,
		"created_at":  issue.CreatedAt.Format(time.RFC3339),
		"updated_at":  issue.UpdatedAt.Format(time.RFC3339),
	}
}
