package store

import (
	"context"
	"errors"

	"github.com/joescharf/zira/internal/models"
)

// ErrNotFound is returned when a referenced row does not exist. Callers
// match it with errors.Is.
var ErrNotFound = errors.New("not found")

// IssueListFilter specifies filters for listing issues. Results come
// back in board order (status, then rank within the column) unless
// NewestFirst is set.
type IssueListFilter struct {
	ProjectID      string
	SprintID       string
	OrganizationID string // scopes via the owning project
	Status         models.IssueStatus
	AssigneeID     string
	ReporterID     string
	NewestFirst    bool
}

// IssueMove is one (issue, status, rank) triple of a board reorder.
type IssueMove struct {
	ID     string
	Status models.IssueStatus
	Order  int
}

// Store defines the persistence interface for zira.
type Store interface {
	// Projects
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	GetProjectByKey(ctx context.Context, orgID, key string) (*models.Project, error)
	ListProjects(ctx context.Context, orgID string) ([]*models.Project, error)
	UpdateProject(ctx context.Context, p *models.Project) error
	DeleteProject(ctx context.Context, id string) error

	// Sprints
	CreateSprint(ctx context.Context, sprint *models.Sprint) error
	GetSprint(ctx context.Context, id string) (*models.Sprint, error)
	ListSprints(ctx context.Context, projectID string) ([]*models.Sprint, error)
	CountSprints(ctx context.Context, projectID string) (int, error)
	UpdateSprintStatus(ctx context.Context, id string, status models.SprintStatus) error

	// Issues
	CreateIssue(ctx context.Context, issue *models.Issue) error
	GetIssue(ctx context.Context, id string) (*models.Issue, error)
	ListIssues(ctx context.Context, filter IssueListFilter) ([]*models.Issue, error)
	MaxIssueOrder(ctx context.Context, projectID string, status models.IssueStatus) (int, error)
	UpdateIssue(ctx context.Context, issue *models.Issue) error
	DeleteIssue(ctx context.Context, id string) error
	// ReorderIssues applies all moves in one transaction. A move whose
	// issue is missing, or whose issue belongs to a project outside
	// orgID, aborts the whole batch.
	ReorderIssues(ctx context.Context, orgID string, moves []IssueMove) error

	// Users
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error)
	ListUsersByExternalIDs(ctx context.Context, externalIDs []string) ([]*models.User, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
