// Package tracker implements the core sprint/issue lifecycle: project and
// sprint management, the board ordering engine, and board assembly. All
// operations take an explicit identity.Caller; there is no ambient auth
// state anywhere in the package.
package tracker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/joescharf/zira/internal/identity"
	"github.com/joescharf/zira/internal/models"
	"github.com/joescharf/zira/internal/store"
)

// Service wires the persistence store and the external directory into
// the tracker operations.
type Service struct {
	store store.Store
	dir   identity.Directory

	// now is replaceable in tests to pin the sprint guard clock.
	now func() time.Time
}

// NewService creates the tracker service.
func NewService(s store.Store, dir identity.Directory) *Service {
	return &Service{
		store: s,
		dir:   dir,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// requireCaller rejects requests with no user or no active organization.
func requireCaller(caller identity.Caller) error {
	if caller.UserID == "" || caller.OrganizationID == "" {
		return ErrUnauthorized
	}
	return nil
}

// EnsureUser returns the local mirror of the caller's external identity,
// creating it on first sight.
func (s *Service) EnsureUser(ctx context.Context, caller identity.Caller) (*models.User, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}

	u, err := s.store.GetUserByExternalID(ctx, caller.UserID)
	if err == nil {
		return u, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	u = &models.User{ExternalID: caller.UserID}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("provision user: %w", err)
	}
	return u, nil
}

// --- Projects ---

// CreateProjectInput holds the fields for a new project.
type CreateProjectInput struct {
	Name        string
	Key         string
	Description string
}

// CreateProject creates a project in the caller's organization. Admin
// role required. The key is normalized to uppercase and immutable after
// this point.
func (s *Service) CreateProject(ctx context.Context, caller identity.Caller, in CreateProjectInput) (*models.Project, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if !caller.IsAdmin() {
		return nil, fmt.Errorf("only organization admins can create projects: %w", ErrForbidden)
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("project name is required")
	}
	key := strings.ToUpper(strings.TrimSpace(in.Key))
	if err := models.ValidateProjectKey(key); err != nil {
		return nil, err
	}
	if _, err := s.EnsureUser(ctx, caller); err != nil {
		return nil, err
	}

	p := &models.Project{
		OrganizationID: caller.OrganizationID,
		Name:           in.Name,
		Key:            key,
		Description:    in.Description,
	}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetProject fetches a project visible to the caller's organization.
func (s *Service) GetProject(ctx context.Context, caller identity.Caller, id string) (*models.Project, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.OrganizationID != caller.OrganizationID {
		// Report foreign projects as absent rather than confirming
		// their existence.
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return p, nil
}

// ListProjects lists the caller's organization's projects, newest first.
func (s *Service) ListProjects(ctx context.Context, caller identity.Caller) ([]*models.Project, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	return s.store.ListProjects(ctx, caller.OrganizationID)
}

// DeleteProject removes a project and, through store cascade semantics,
// its sprints and issues. Admin role required.
func (s *Service) DeleteProject(ctx context.Context, caller identity.Caller, id string) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	if !caller.IsAdmin() {
		return fmt.Errorf("only organization admins can delete projects: %w", ErrForbidden)
	}
	if _, err := s.GetProject(ctx, caller, id); err != nil {
		return err
	}
	return s.store.DeleteProject(ctx, id)
}

// ListOrgMembers intersects the directory membership of the caller's
// organization with locally known users.
func (s *Service) ListOrgMembers(ctx context.Context, caller identity.Caller) ([]*models.User, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}

	members, err := s.dir.ListOrgMembers(ctx, caller.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("list org members: %w", err)
	}

	externalIDs := make([]string, 0, len(members))
	for _, m := range members {
		externalIDs = append(externalIDs, m.UserID)
	}
	return s.store.ListUsersByExternalIDs(ctx, externalIDs)
}
