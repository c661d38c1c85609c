package tracker

import (
	"context"

	"github.com/joescharf/zira/internal/identity"
	"github.com/joescharf/zira/internal/models"
	"github.com/joescharf/zira/internal/store"
)

// Board is the assembled kanban view of one sprint: its issues
// partitioned into the four status columns, sorted by rank ascending.
// A nil Sprint means the project has no sprints yet; the UI prompts
// sprint creation rather than showing an error.
type Board struct {
	Project *models.Project
	Sprint  *models.Sprint
	Columns map[models.IssueStatus][]*models.Issue
}

// AssembleBoard builds the board for a project. When sprintID is empty
// the ACTIVE sprint is preferred, falling back to the first sprint by
// creation.
func (s *Service) AssembleBoard(ctx context.Context, caller identity.Caller, projectID, sprintID string) (*Board, error) {
	project, err := s.GetProject(ctx, caller, projectID)
	if err != nil {
		return nil, err
	}

	sprints, err := s.store.ListSprints(ctx, project.ID)
	if err != nil {
		return nil, err
	}

	board := &Board{
		Project: project,
		Columns: make(map[models.IssueStatus][]*models.Issue, len(models.IssueStatuses)),
	}
	for _, status := range models.IssueStatuses {
		board.Columns[status] = []*models.Issue{}
	}
	if len(sprints) == 0 {
		return board, nil
	}

	board.Sprint = selectSprint(sprints, sprintID)

	issues, err := s.store.ListIssues(ctx, store.IssueListFilter{SprintID: board.Sprint.ID})
	if err != nil {
		return nil, err
	}
	for _, issue := range issues {
		board.Columns[issue.Status] = append(board.Columns[issue.Status], issue)
	}
	return board, nil
}

// selectSprint picks the requested sprint if present, else the single
// ACTIVE sprint, else the first sprint.
func selectSprint(sprints []*models.Sprint, sprintID string) *models.Sprint {
	if sprintID != "" {
		for _, sp := range sprints {
			if sp.ID == sprintID {
				return sp
			}
		}
	}
	for _, sp := range sprints {
		if sp.Status == models.SprintStatusActive {
			return sp
		}
	}
	return sprints[0]
}
