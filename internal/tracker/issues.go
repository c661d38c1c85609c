package tracker

import (
	"context"
	"fmt"
	"strings"

	"github.com/joescharf/zira/internal/identity"
	"github.com/joescharf/zira/internal/models"
	"github.com/joescharf/zira/internal/store"
)

// CreateIssueInput holds the fields for a new issue.
type CreateIssueInput struct {
	SprintID    string
	Title       string
	Description string
	Status      models.IssueStatus   // defaults to TODO
	Priority    models.IssuePriority // defaults to MEDIUM
	AssigneeID  string               // optional, local user id
}

// CreateIssue appends a new issue to the bottom of its board column:
// rank = max existing rank in (project, status) + 1, or 0 for an empty
// column. The caller becomes the issue's reporter.
func (s *Service) CreateIssue(ctx context.Context, caller identity.Caller, projectID string, in CreateIssueInput) (*models.Issue, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("issue title is required")
	}
	if in.Status == "" {
		in.Status = models.IssueStatusTodo
	}
	if in.Priority == "" {
		in.Priority = models.IssuePriorityMedium
	}

	project, err := s.GetProject(ctx, caller, projectID)
	if err != nil {
		return nil, err
	}
	sprint, err := s.store.GetSprint(ctx, in.SprintID)
	if err != nil {
		return nil, err
	}
	if sprint.ProjectID != project.ID {
		return nil, fmt.Errorf("sprint %s: %w", in.SprintID, ErrNotFound)
	}

	reporter, err := s.EnsureUser(ctx, caller)
	if err != nil {
		return nil, err
	}

	max, err := s.store.MaxIssueOrder(ctx, project.ID, in.Status)
	if err != nil {
		return nil, err
	}

	issue := &models.Issue{
		ProjectID:   project.ID,
		SprintID:    sprint.ID,
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		ReporterID:  reporter.ID,
		AssigneeID:  in.AssigneeID,
		Order:       max + 1,
	}
	if err := s.store.CreateIssue(ctx, issue); err != nil {
		return nil, err
	}
	return issue, nil
}

// GetIssue fetches an issue visible to the caller's organization.
func (s *Service) GetIssue(ctx context.Context, caller identity.Caller, id string) (*models.Issue, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	issue, err := s.store.GetIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.GetProject(ctx, caller, issue.ProjectID); err != nil {
		return nil, fmt.Errorf("issue %s: %w", id, ErrNotFound)
	}
	return issue, nil
}

// SprintIssues lists a sprint's issues in board order.
func (s *Service) SprintIssues(ctx context.Context, caller identity.Caller, sprintID string) ([]*models.Issue, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	sprint, err := s.store.GetSprint(ctx, sprintID)
	if err != nil {
		return nil, err
	}
	if _, err := s.GetProject(ctx, caller, sprint.ProjectID); err != nil {
		return nil, fmt.Errorf("sprint %s: %w", sprintID, ErrNotFound)
	}
	return s.store.ListIssues(ctx, store.IssueListFilter{SprintID: sprintID})
}

// UserIssueFilter narrows IssuesByUser to one assignee and/or reporter.
type UserIssueFilter struct {
	AssigneeID string
	ReporterID string
}

// IssuesByUser lists issues across the caller's organization filtered by
// assignee or reporter, newest first.
func (s *Service) IssuesByUser(ctx context.Context, caller identity.Caller, filter UserIssueFilter) ([]*models.Issue, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	return s.store.ListIssues(ctx, store.IssueListFilter{
		OrganizationID: caller.OrganizationID,
		AssigneeID:     filter.AssigneeID,
		ReporterID:     filter.ReporterID,
		NewestFirst:    true,
	})
}

// UpdateIssueInput carries the mutable issue fields; empty values are
// left unchanged.
type UpdateIssueInput struct {
	Title       string
	Description string
	Status      models.IssueStatus
	Priority    models.IssuePriority
	AssigneeID  *string // nil = unchanged, empty string = unassign
}

// UpdateIssue mutates an issue's title, description, status, priority,
// or assignee. Reporter and rank are out of reach here; rank moves only
// through Reorder.
func (s *Service) UpdateIssue(ctx context.Context, caller identity.Caller, id string, in UpdateIssueInput) (*models.Issue, error) {
	issue, err := s.GetIssue(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	if in.Title != "" {
		issue.Title = in.Title
	}
	if in.Description != "" {
		issue.Description = in.Description
	}
	if in.Status != "" {
		issue.Status = in.Status
	}
	if in.Priority != "" {
		issue.Priority = in.Priority
	}
	if in.AssigneeID != nil {
		issue.AssigneeID = *in.AssigneeID
	}

	if err := s.store.UpdateIssue(ctx, issue); err != nil {
		return nil, err
	}
	return issue, nil
}

// DeleteIssue removes an issue. Only the reporter or an org admin may
// delete.
func (s *Service) DeleteIssue(ctx context.Context, caller identity.Caller, id string) error {
	issue, err := s.GetIssue(ctx, caller, id)
	if err != nil {
		return err
	}

	user, err := s.EnsureUser(ctx, caller)
	if err != nil {
		return err
	}
	if issue.ReporterID != user.ID && !caller.IsAdmin() {
		return fmt.Errorf("only the reporter or an organization admin can delete an issue: %w", ErrForbidden)
	}

	return s.store.DeleteIssue(ctx, id)
}

// IssueMove is one (issue, status, rank) triple of a board reorder.
type IssueMove struct {
	ID     string
	Status models.IssueStatus
	Order  int
}

// Reorder applies a client-computed board layout in a single all-or-
// nothing transaction. The submitted ranks are trusted as-is (no
// server-side contiguity validation); the store rejects any move whose
// issue is missing or outside the caller's organization, which aborts
// the whole batch.
func (s *Service) Reorder(ctx context.Context, caller identity.Caller, moves []IssueMove) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	if len(moves) == 0 {
		return nil
	}

	storeMoves := make([]store.IssueMove, len(moves))
	for i, m := range moves {
		if m.Status == "" {
			return fmt.Errorf("move for issue %s has no status", m.ID)
		}
		storeMoves[i] = store.IssueMove{ID: m.ID, Status: m.Status, Order: m.Order}
	}
	return s.store.ReorderIssues(ctx, caller.OrganizationID, storeMoves)
}
