package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/joescharf/zira/internal/identity"
	"github.com/joescharf/zira/internal/models"
)

// CreateSprintInput holds the fields for a new sprint. The name is
// generated server-side from the project key.
type CreateSprintInput struct {
	Description string
	StartDate   time.Time
	EndDate     time.Time
}

// CreateSprint creates a PLANNED sprint named <key>-<n>. The (project,
// name) uniqueness constraint in the store turns a concurrent-creation
// name collision into a create error instead of a silent duplicate.
func (s *Service) CreateSprint(ctx context.Context, caller identity.Caller, projectID string, in CreateSprintInput) (*models.Sprint, error) {
	project, err := s.GetProject(ctx, caller, projectID)
	if err != nil {
		return nil, err
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return nil, fmt.Errorf("sprint start and end dates are required")
	}
	if !in.EndDate.After(in.StartDate) {
		return nil, fmt.Errorf("sprint end date must be after start date")
	}

	count, err := s.store.CountSprints(ctx, project.ID)
	if err != nil {
		return nil, err
	}

	sprint := &models.Sprint{
		ProjectID:   project.ID,
		Name:        project.SprintName(count + 1),
		Description: in.Description,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Status:      models.SprintStatusPlanned,
	}
	if err := s.store.CreateSprint(ctx, sprint); err != nil {
		return nil, err
	}
	return sprint, nil
}

// GetSprint fetches a sprint visible to the caller's organization.
func (s *Service) GetSprint(ctx context.Context, caller identity.Caller, id string) (*models.Sprint, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	sprint, err := s.store.GetSprint(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.GetProject(ctx, caller, sprint.ProjectID); err != nil {
		return nil, fmt.Errorf("sprint %s: %w", id, ErrNotFound)
	}
	return sprint, nil
}

// ListSprints lists a project's sprints in creation order.
func (s *Service) ListSprints(ctx context.Context, caller identity.Caller, projectID string) ([]*models.Sprint, error) {
	if _, err := s.GetProject(ctx, caller, projectID); err != nil {
		return nil, err
	}
	return s.store.ListSprints(ctx, projectID)
}

// TransitionSprint moves a sprint one step along PLANNED -> ACTIVE ->
// COMPLETED. Org admin only. Guards:
//
//   - ACTIVE: only from PLANNED, and only while the wall clock is inside
//     [startDate, endDate).
//   - COMPLETED: only from ACTIVE, and only once the wall clock has
//     reached endDate.
//
// Requiring the ACTIVE intermediate state closes the PLANNED->COMPLETED
// shortcut. Guard failures come back as *InvalidTransitionError.
func (s *Service) TransitionSprint(ctx context.Context, caller identity.Caller, sprintID string, target models.SprintStatus) (*models.Sprint, error) {
	sprint, err := s.GetSprint(ctx, caller, sprintID)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() {
		return nil, fmt.Errorf("only organization admins can update sprint status: %w", ErrForbidden)
	}

	now := s.now()
	reject := func(reason string) (*models.Sprint, error) {
		return nil, &InvalidTransitionError{
			SprintID: sprint.ID,
			From:     sprint.Status,
			To:       target,
			Reason:   reason,
		}
	}

	switch target {
	case models.SprintStatusActive:
		if sprint.Status != models.SprintStatusPlanned {
			return reject("sprint is not planned")
		}
		if now.Before(sprint.StartDate) {
			return reject("start date is in the future")
		}
		if !now.Before(sprint.EndDate) {
			return reject("end date has passed")
		}
	case models.SprintStatusCompleted:
		if sprint.Status != models.SprintStatusActive {
			return reject("sprint is not active")
		}
		if now.Before(sprint.EndDate) {
			return reject("end date has not been reached")
		}
	default:
		return reject("not a legal target status")
	}

	if err := s.store.UpdateSprintStatus(ctx, sprint.ID, target); err != nil {
		return nil, err
	}
	sprint.Status = target
	return sprint, nil
}
