package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/zira/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Limiting to a single
	// connection serializes all DB access through Go's connection pool,
	// preventing "database is locked" errors from concurrent requests.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Set busy timeout so concurrent writes wait instead of failing immediately
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	// Create migrations tracking table
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	// Sort by filename
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		// Check if already applied
		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Projects ---

func (s *SQLiteStore) CreateProject(ctx context.Context, p *models.Project) error {
	if p.ID == "" {
		p.ID = newULID()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, organization_id, name, key, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OrganizationID, p.Name, p.Key, p.Description, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	p := &models.Project{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, organization_id, name, key, description, created_at, updated_at
		FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.OrganizationID, &p.Name, &p.Key, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) GetProjectByKey(ctx context.Context, orgID, key string) (*models.Project, error) {
	p := &models.Project{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, organization_id, name, key, description, created_at, updated_at
		FROM projects WHERE organization_id = ? AND key = ?`, orgID, key,
	).Scan(&p.ID, &p.OrganizationID, &p.Name, &p.Key, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get project by key: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) ListProjects(ctx context.Context, orgID string) ([]*models.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, organization_id, name, key, description, created_at, updated_at
		FROM projects WHERE organization_id = ? ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projects []*models.Project
	for rows.Next() {
		p := &models.Project{}
		if err := rows.Scan(&p.ID, &p.OrganizationID, &p.Name, &p.Key, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// UpdateProject persists name and description changes. The key and the
// owning organization are immutable and deliberately excluded.
func (s *SQLiteStore) UpdateProject(ctx context.Context, p *models.Project) error {
	p.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE projects SET name=?, description=?, updated_at=? WHERE id=?`,
		p.Name, p.Description, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("project %s: %w", p.ID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) DeleteProject(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return nil
}

// --- Sprints ---

func (s *SQLiteStore) CreateSprint(ctx context.Context, sprint *models.Sprint) error {
	if sprint.ID == "" {
		sprint.ID = newULID()
	}
	if sprint.Status == "" {
		sprint.Status = models.SprintStatusPlanned
	}
	now := time.Now().UTC()
	sprint.CreatedAt = now
	sprint.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sprints (id, project_id, name, description, start_date, end_date, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sprint.ID, sprint.ProjectID, sprint.Name, sprint.Description,
		sprint.StartDate, sprint.EndDate, string(sprint.Status),
		sprint.CreatedAt, sprint.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create sprint: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetSprint(ctx context.Context, id string) (*models.Sprint, error) {
	sprint := &models.Sprint{}
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, name, description, start_date, end_date, status, created_at, updated_at
		FROM sprints WHERE id = ?`, id,
	).Scan(&sprint.ID, &sprint.ProjectID, &sprint.Name, &sprint.Description,
		&sprint.StartDate, &sprint.EndDate, &status, &sprint.CreatedAt, &sprint.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sprint %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get sprint: %w", err)
	}
	sprint.Status = models.SprintStatus(status)
	return sprint, nil
}

func (s *SQLiteStore) ListSprints(ctx context.Context, projectID string) ([]*models.Sprint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, name, description, start_date, end_date, status, created_at, updated_at
		FROM sprints WHERE project_id = ? ORDER BY created_at`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list sprints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sprints []*models.Sprint
	for rows.Next() {
		sprint := &models.Sprint{}
		var status string
		if err := rows.Scan(&sprint.ID, &sprint.ProjectID, &sprint.Name, &sprint.Description,
			&sprint.StartDate, &sprint.EndDate, &status, &sprint.CreatedAt, &sprint.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan sprint: %w", err)
		}
		sprint.Status = models.SprintStatus(status)
		sprints = append(sprints, sprint)
	}
	return sprints, rows.Err()
}

func (s *SQLiteStore) CountSprints(ctx context.Context, projectID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sprints WHERE project_id = ?", projectID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count sprints: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) UpdateSprintStatus(ctx context.Context, id string, status models.SprintStatus) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE sprints SET status=?, updated_at=? WHERE id=?",
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update sprint status: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("sprint %s: %w", id, ErrNotFound)
	}
	return nil
}

// --- Issues ---

const issueColumns = `id, project_id, sprint_id, title, description, status, priority, reporter_id, assignee_id, "order", created_at, updated_at`

func (s *SQLiteStore) CreateIssue(ctx context.Context, issue *models.Issue) error {
	if issue.ID == "" {
		issue.ID = newULID()
	}
	now := time.Now().UTC()
	issue.CreatedAt = now
	issue.UpdatedAt = now

	var assignee any
	if issue.AssigneeID != "" {
		assignee = issue.AssigneeID
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO issues (id, project_id, sprint_id, title, description, status, priority, reporter_id, assignee_id, "order", created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		issue.ID, issue.ProjectID, issue.SprintID, issue.Title, issue.Description,
		string(issue.Status), string(issue.Priority),
		issue.ReporterID, assignee, issue.Order, issue.CreatedAt, issue.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create issue: %w", err)
	}
	return nil
}

func scanIssue(scan func(dest ...any) error) (*models.Issue, error) {
	issue := &models.Issue{}
	var status, priority string
	var assignee sql.NullString

	if err := scan(&issue.ID, &issue.ProjectID, &issue.SprintID, &issue.Title, &issue.Description,
		&status, &priority, &issue.ReporterID, &assignee,
		&issue.Order, &issue.CreatedAt, &issue.UpdatedAt); err != nil {
		return nil, err
	}

	issue.Status = models.IssueStatus(status)
	issue.Priority = models.IssuePriority(priority)
	if assignee.Valid {
		issue.AssigneeID = assignee.String
	}
	return issue, nil
}

func (s *SQLiteStore) GetIssue(ctx context.Context, id string) (*models.Issue, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+issueColumns+" FROM issues WHERE id = ?", id)
	issue, err := scanIssue(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("issue %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get issue: %w", err)
	}
	return issue, nil
}

func (s *SQLiteStore) ListIssues(ctx context.Context, filter IssueListFilter) ([]*models.Issue, error) {
	query := `SELECT i.id, i.project_id, i.sprint_id, i.title, i.description, i.status, i.priority, i.reporter_id, i.assignee_id, i."order", i.created_at, i.updated_at FROM issues i`
	var conditions []string
	var args []any

	if filter.OrganizationID != "" {
		query += " JOIN projects p ON p.id = i.project_id"
		conditions = append(conditions, "p.organization_id = ?")
		args = append(args, filter.OrganizationID)
	}
	if filter.ProjectID != "" {
		conditions = append(conditions, "i.project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.SprintID != "" {
		conditions = append(conditions, "i.sprint_id = ?")
		args = append(args, filter.SprintID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "i.status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.AssigneeID != "" {
		conditions = append(conditions, "i.assignee_id = ?")
		args = append(args, filter.AssigneeID)
	}
	if filter.ReporterID != "" {
		conditions = append(conditions, "i.reporter_id = ?")
		args = append(args, filter.ReporterID)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	if filter.NewestFirst {
		query += " ORDER BY i.created_at DESC"
	} else {
		// Board order: column, then rank within the column, creation
		// time as the implicit tie-break.
		query += ` ORDER BY
			CASE i.status WHEN 'TODO' THEN 0 WHEN 'IN_PROGRESS' THEN 1 WHEN 'IN_REVIEW' THEN 2 WHEN 'DONE' THEN 3 ELSE 4 END,
			i."order", i.created_at`
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var issues []*models.Issue
	for rows.Next() {
		issue, err := scanIssue(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

// MaxIssueOrder returns the highest rank in the (projectID, status)
// column, or -1 when the column is empty.
func (s *SQLiteStore) MaxIssueOrder(ctx context.Context, projectID string, status models.IssueStatus) (int, error) {
	var max int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX("order"), -1) FROM issues WHERE project_id = ? AND status = ?`,
		projectID, string(status)).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max issue order: %w", err)
	}
	return max, nil
}

// UpdateIssue persists mutable issue fields. ProjectID, SprintID, and
// ReporterID are fixed at creation and deliberately excluded.
func (s *SQLiteStore) UpdateIssue(ctx context.Context, issue *models.Issue) error {
	issue.UpdatedAt = time.Now().UTC()

	var assignee any
	if issue.AssigneeID != "" {
		assignee = issue.AssigneeID
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE issues SET title=?, description=?, status=?, priority=?, assignee_id=?, "order"=?, updated_at=?
		WHERE id=?`,
		issue.Title, issue.Description, string(issue.Status), string(issue.Priority),
		assignee, issue.Order, issue.UpdatedAt, issue.ID,
	)
	if err != nil {
		return fmt.Errorf("update issue: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("issue %s: %w", issue.ID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) DeleteIssue(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM issues WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete issue: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("issue %s: %w", id, ErrNotFound)
	}
	return nil
}

// ReorderIssues applies a full board layout in one transaction. Each
// update is constrained to projects inside orgID, so a move referencing
// a missing or cross-organization issue affects zero rows and aborts
// the batch. Either every move commits or none does.
func (s *SQLiteStore) ReorderIssues(ctx context.Context, orgID string, moves []IssueMove) error {
	if len(moves) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	for _, m := range moves {
		result, err := tx.ExecContext(ctx,
			`UPDATE issues SET status=?, "order"=?, updated_at=?
			WHERE id=? AND project_id IN (SELECT id FROM projects WHERE organization_id=?)`,
			string(m.Status), m.Order, now, m.ID, orgID,
		)
		if err != nil {
			return fmt.Errorf("reorder issue %s: %w", m.ID, err)
		}
		n, _ := result.RowsAffected()
		if n == 0 {
			return fmt.Errorf("issue %s: %w", m.ID, ErrNotFound)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// --- Users ---

func (s *SQLiteStore) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = newULID()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, external_id, name, email, image_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.ExternalID, u.Name, u.Email, u.ImageURL, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	u := &models.User{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, external_id, name, email, image_url, created_at, updated_at
		FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.ExternalID, &u.Name, &u.Email, &u.ImageURL, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *SQLiteStore) GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	u := &models.User{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, external_id, name, email, image_url, created_at, updated_at
		FROM users WHERE external_id = ?`, externalID,
	).Scan(&u.ID, &u.ExternalID, &u.Name, &u.Email, &u.ImageURL, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", externalID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user by external id: %w", err)
	}
	return u, nil
}

func (s *SQLiteStore) ListUsersByExternalIDs(ctx context.Context, externalIDs []string) ([]*models.User, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(externalIDs))
	args := make([]any, len(externalIDs))
	for i, id := range externalIDs {
		placeholders[i] = "?"
		args[i] = id
	}

	query := `SELECT id, external_id, name, email, image_url, created_at, updated_at
		FROM users WHERE external_id IN (` + strings.Join(placeholders, ",") + `) ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []*models.User
	for rows.Next() {
		u := &models.User{}
		if err := rows.Scan(&u.ID, &u.ExternalID, &u.Name, &u.Email, &u.ImageURL, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
