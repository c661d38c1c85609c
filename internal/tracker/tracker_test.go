package tracker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/zira/internal/identity"
	"github.com/joescharf/zira/internal/models"
	"github.com/joescharf/zira/internal/store"
)

var (
	admin = identity.Caller{UserID: "ext-admin", OrganizationID: "org-1", Role: identity.RoleAdmin}
	dev   = identity.Caller{UserID: "ext-dev", OrganizationID: "org-1", Role: identity.RoleMember}
	// Same person signed into a different organization.
	outsider = identity.Caller{UserID: "ext-rival", OrganizationID: "org-2", Role: identity.RoleAdmin}
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	st, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	dir := identity.NewStaticDirectory()
	dir.AddCredential("tok-admin", admin)
	dir.AddCredential("tok-dev", dev)
	dir.AddCredential("tok-rival", outsider)

	return NewService(st, dir)
}

func mustProject(t *testing.T, s *Service) *models.Project {
	t.Helper()
	p, err := s.CreateProject(context.Background(), admin, CreateProjectInput{
		Name: "Zira", Key: "ZIRA", Description: "issue tracker",
	})
	require.NoError(t, err)
	return p
}

func mustSprint(t *testing.T, s *Service, projectID string, start, end time.Time) *models.Sprint {
	t.Helper()
	sp, err := s.CreateSprint(context.Background(), admin, projectID, CreateSprintInput{
		StartDate: start, EndDate: end,
	})
	require.NoError(t, err)
	return sp
}

// --- Projects ---

func TestCreateProject_RequiresAdmin(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.CreateProject(ctx, dev, CreateProjectInput{Name: "x", Key: "X"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = s.CreateProject(ctx, identity.Caller{}, CreateProjectInput{Name: "x", Key: "X"})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestCreateProject_NormalizesKey(t *testing.T) {
	s := newTestService(t)

	p, err := s.CreateProject(context.Background(), admin, CreateProjectInput{Name: "Zira", Key: "zira"})
	require.NoError(t, err)
	assert.Equal(t, "ZIRA", p.Key)

	_, err = s.CreateProject(context.Background(), admin, CreateProjectInput{Name: "Bad", Key: "WAY-TOO-LONG-KEY"})
	assert.Error(t, err)
}

func TestDeleteProject_CascadesToSprintsAndIssues(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	p := mustProject(t, s)
	start := time.Now().UTC().Add(-time.Hour)
	sp := mustSprint(t, s, p.ID, start, start.Add(14*24*time.Hour))

	issue, err := s.CreateIssue(ctx, dev, p.ID, CreateIssueInput{SprintID: sp.ID, Title: "doomed"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteProject(ctx, admin, p.ID))

	_, err = s.GetSprint(ctx, admin, sp.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetIssue(ctx, admin, issue.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

// --- Sprint naming ---

func TestCreateSprint_GeneratedNames(t *testing.T) {
	s := newTestService(t)
	p := mustProject(t, s)

	start := time.Now().UTC()
	end := start.Add(14 * 24 * time.Hour)

	sp1 := mustSprint(t, s, p.ID, start, end)
	sp2 := mustSprint(t, s, p.ID, start, end)

	assert.Equal(t, "ZIRA-1", sp1.Name)
	assert.Equal(t, "ZIRA-2", sp2.Name)
	assert.Equal(t, models.SprintStatusPlanned, sp1.Status)
}

func TestCreateSprint_RejectsInvertedDates(t *testing.T) {
	s := newTestService(t)
	p := mustProject(t, s)

	now := time.Now().UTC()
	_, err := s.CreateSprint(context.Background(), admin, p.ID, CreateSprintInput{
		StartDate: now, EndDate: now.Add(-time.Hour),
	})
	assert.Error(t, err)
}

// --- Ordering engine ---

// Creating into a column appends at max+1; an empty column starts at 0.
func TestCreateIssue_AppendsToColumn(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	p := mustProject(t, s)
	start := time.Now().UTC().Add(-time.Hour)
	sp := mustSprint(t, s, p.ID, start, start.Add(14*24*time.Hour))

	i1, err := s.CreateIssue(ctx, dev, p.ID, CreateIssueInput{SprintID: sp.ID, Title: "first"})
	require.NoError(t, err)
	assert.Equal(t, 0, i1.Order)
	assert.Equal(t, models.IssueStatusTodo, i1.Status)
	assert.Equal(t, models.IssuePriorityMedium, i1.Priority)

	i2, err := s.CreateIssue(ctx, dev, p.ID, CreateIssueInput{SprintID: sp.ID, Title: "second"})
	require.NoError(t, err)
	assert.Equal(t, 1, i2.Order)

	// A different column has its own rank sequence.
	i3, err := s.CreateIssue(ctx, dev, p.ID, CreateIssueInput{
		SprintID: sp.ID, Title: "reviewing", Status: models.IssueStatusInReview,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, i3.Order)
}

func TestCreateIssue_SetsReporter(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	p := mustProject(t, s)
	start := time.Now().UTC().Add(-time.Hour)
	sp := mustSprint(t, s, p.ID, start, start.Add(14*24*time.Hour))

	issue, err := s.CreateIssue(ctx, dev, p.ID, CreateIssueInput{SprintID: sp.ID, Title: "x"})
	require.NoError(t, err)
	assert.NotEmpty(t, issue.ReporterID)

	u, err := s.EnsureUser(ctx, dev)
	require.NoError(t, err)
	assert.Equal(t, u.ID, issue.ReporterID)
}

func TestReorder_SwapWithinColumn(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	p := mustProject(t, s)
	start := time.Now().UTC().Add(-time.Hour)
	sp := mustSprint(t, s, p.ID, start, start.Add(14*24*time.Hour))

	i1, err := s.CreateIssue(ctx, dev, p.ID, CreateIssueInput{SprintID: sp.ID, Title: "one"})
	require.NoError(t, err)
	i2, err := s.CreateIssue(ctx, dev, p.ID, CreateIssueInput{SprintID: sp.ID, Title: "two"})
	require.NoError(t, err)

	err = s.Reorder(ctx, dev, []IssueMove{
		{ID: i2.ID, Status: models.IssueStatusTodo, Order: 0},
		{ID: i1.ID, Status: models.IssueStatusTodo, Order: 1},
	})
	require.NoError(t, err)

	issues, err := s.SprintIssues(ctx, dev, sp.ID)
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, i2.ID, issues[0].ID)
	assert.Equal(t, i1.ID, issues[1].ID)

	// No two issues in the column share a rank.
	ranks := map[int]bool{}
	for _, i := range issues {
		assert.False(t, ranks[i.Order], "duplicate rank %d", i.Order)
		ranks[i.Order] = true
	}
}

func TestReorder_CrossColumnMove(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	p := mustProject(t, s)
	start := time.Now().UTC().Add(-time.Hour)
	sp := mustSprint(t, s, p.ID, start, start.Add(14*24*time.Hour))

	i1, err := s.CreateIssue(ctx, dev, p.ID, CreateIssueInput{SprintID: sp.ID, Title: "one"})
	require.NoError(t, err)
	i2, err := s.CreateIssue(ctx, dev, p.ID, CreateIssueInput{SprintID: sp.ID, Title: "two"})
	require.NoError(t, err)

	// Drag i1 into IN_PROGRESS; i2 closes the gap in TODO.
	err = s.Reorder(ctx, dev, []IssueMove{
		{ID: i1.ID, Status: models.IssueStatusInProgress, Order: 0},
		{ID: i2.ID, Status: models.IssueStatusTodo, Order: 0},
	})
	require.NoError(t, err)

	got, err := s.GetIssue(ctx, dev, i1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IssueStatusInProgress, got.Status)
	assert.Equal(t, 0, got.Order)
}

// A batch containing one nonexistent issue leaves every issue untouched.
func TestReorder_AtomicOnMissingIssue(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	p := mustProject(t, s)
	start := time.Now().UTC().Add(-time.Hour)
	sp := mustSprint(t, s, p.ID, start, start.Add(14*24*time.Hour))

	i1, err := s.CreateIssue(ctx, dev, p.ID, CreateIssueInput{SprintID: sp.ID, Title: "one"})
	require.NoError(t, err)

	err = s.Reorder(ctx, dev, []IssueMove{
		{ID: i1.ID, Status: models.IssueStatusDone, Order: 5},
		{ID: "no-such-issue", Status: models.IssueStatusTodo, Order: 0},
	})
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := s.GetIssue(ctx, dev, i1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IssueStatusTodo, got.Status)
	assert.Equal(t, 0, got.Order)
}

// --- Cross-org isolation ---

func TestCrossOrgAccessIsNotFound(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	p := mustProject(t, s)
	start := time.Now().UTC().Add(-time.Hour)
	sp := mustSprint(t, s, p.ID, start, start.Add(14*24*time.Hour))

	issue, err := s.CreateIssue(ctx, dev, p.ID, CreateIssueInput{SprintID: sp.ID, Title: "private"})
	require.NoError(t, err)

	_, err = s.GetProject(ctx, outsider, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetIssue(ctx, outsider, issue.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetSprint(ctx, outsider, sp.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// A reorder from another org must not move the issue.
	err = s.Reorder(ctx, outsider, []IssueMove{
		{ID: issue.ID, Status: models.IssueStatusDone, Order: 0},
	})
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := s.GetIssue(ctx, dev, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IssueStatusTodo, got.Status)
}

// --- Issue deletion rights ---

func TestDeleteIssue_ReporterOrAdminOnly(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	p := mustProject(t, s)
	start := time.Now().UTC().Add(-time.Hour)
	sp := mustSprint(t, s, p.ID, start, start.Add(14*24*time.Hour))

	other := identity.Caller{UserID: "ext-other", OrganizationID: "org-1", Role: identity.RoleMember}

	issue, err := s.CreateIssue(ctx, dev, p.ID, CreateIssueInput{SprintID: sp.ID, Title: "mine"})
	require.NoError(t, err)

	err = s.DeleteIssue(ctx, other, issue.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	// Reporter may delete.
	require.NoError(t, s.DeleteIssue(ctx, dev, issue.ID))

	// Admin may delete someone else's issue.
	issue2, err := s.CreateIssue(ctx, dev, p.ID, CreateIssueInput{SprintID: sp.ID, Title: "theirs"})
	require.NoError(t, err)
	require.NoError(t, s.DeleteIssue(ctx, admin, issue2.ID))
}

// --- Sprint lifecycle ---

func TestTransitionSprint_ActiveGuard(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	p := mustProject(t, s)
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 14)
	sp := mustSprint(t, s, p.ID, start, end)

	// One second before the window opens.
	s.now = func() time.Time { return start.Add(-time.Second) }
	_, err := s.TransitionSprint(ctx, admin, sp.ID, models.SprintStatusActive)
	var ite *InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, models.SprintStatusPlanned, ite.From)

	// After the window has closed.
	s.now = func() time.Time { return end.Add(time.Second) }
	_, err = s.TransitionSprint(ctx, admin, sp.ID, models.SprintStatusActive)
	assert.ErrorAs(t, err, &ite)

	// Inside the window.
	s.now = func() time.Time { return start.Add(24 * time.Hour) }
	got, err := s.TransitionSprint(ctx, admin, sp.ID, models.SprintStatusActive)
	require.NoError(t, err)
	assert.Equal(t, models.SprintStatusActive, got.Status)
}

func TestTransitionSprint_CompletedGuard(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	p := mustProject(t, s)
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 14)
	sp := mustSprint(t, s, p.ID, start, end)

	s.now = func() time.Time { return start.Add(time.Hour) }
	_, err := s.TransitionSprint(ctx, admin, sp.ID, models.SprintStatusActive)
	require.NoError(t, err)

	// One second before the end date.
	s.now = func() time.Time { return end.Add(-time.Second) }
	_, err = s.TransitionSprint(ctx, admin, sp.ID, models.SprintStatusCompleted)
	var ite *InvalidTransitionError
	require.ErrorAs(t, err, &ite)

	// Exactly at the end date.
	s.now = func() time.Time { return end }
	got, err := s.TransitionSprint(ctx, admin, sp.ID, models.SprintStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.SprintStatusCompleted, got.Status)
}

func TestTransitionSprint_NoPlannedToCompletedShortcut(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	p := mustProject(t, s)
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 14)
	sp := mustSprint(t, s, p.ID, start, end)

	// Even well past the end date a planned sprint cannot jump straight
	// to completed.
	s.now = func() time.Time { return end.AddDate(0, 1, 0) }
	_, err := s.TransitionSprint(ctx, admin, sp.ID, models.SprintStatusCompleted)
	var ite *InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, models.SprintStatusPlanned, ite.From)
}

func TestTransitionSprint_NoBackwardTransition(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	p := mustProject(t, s)
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 14)
	sp := mustSprint(t, s, p.ID, start, end)

	s.now = func() time.Time { return start.Add(time.Hour) }
	_, err := s.TransitionSprint(ctx, admin, sp.ID, models.SprintStatusActive)
	require.NoError(t, err)

	_, err = s.TransitionSprint(ctx, admin, sp.ID, models.SprintStatusPlanned)
	var ite *InvalidTransitionError
	assert.ErrorAs(t, err, &ite)
}

func TestTransitionSprint_AdminOnly(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	p := mustProject(t, s)
	start := time.Now().UTC().Add(-time.Hour)
	sp := mustSprint(t, s, p.ID, start, start.Add(14*24*time.Hour))

	_, err := s.TransitionSprint(ctx, dev, sp.ID, models.SprintStatusActive)
	assert.ErrorIs(t, err, ErrForbidden)
}

// --- Board assembly ---

func TestAssembleBoard_EmptyProject(t *testing.T) {
	s := newTestService(t)
	p := mustProject(t, s)

	board, err := s.AssembleBoard(context.Background(), dev, p.ID, "")
	require.NoError(t, err)
	assert.Nil(t, board.Sprint, "no sprints means an empty board, not an error")
	assert.Len(t, board.Columns, 4)
}

func TestAssembleBoard_PrefersActiveSprint(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	p := mustProject(t, s)
	start := time.Now().UTC().Add(-time.Hour)
	end := start.Add(14 * 24 * time.Hour)
	sp1 := mustSprint(t, s, p.ID, start, end)
	sp2 := mustSprint(t, s, p.ID, start, end)

	// Nothing active: first sprint wins.
	board, err := s.AssembleBoard(ctx, dev, p.ID, "")
	require.NoError(t, err)
	assert.Equal(t, sp1.ID, board.Sprint.ID)

	_, err = s.TransitionSprint(ctx, admin, sp2.ID, models.SprintStatusActive)
	require.NoError(t, err)

	board, err = s.AssembleBoard(ctx, dev, p.ID, "")
	require.NoError(t, err)
	assert.Equal(t, sp2.ID, board.Sprint.ID)

	// Explicit selection overrides the active preference.
	board, err = s.AssembleBoard(ctx, dev, p.ID, sp1.ID)
	require.NoError(t, err)
	assert.Equal(t, sp1.ID, board.Sprint.ID)
}

func TestAssembleBoard_ColumnsSortedByRank(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	p := mustProject(t, s)
	start := time.Now().UTC().Add(-time.Hour)
	sp := mustSprint(t, s, p.ID, start, start.Add(14*24*time.Hour))

	i1, err := s.CreateIssue(ctx, dev, p.ID, CreateIssueInput{SprintID: sp.ID, Title: "a"})
	require.NoError(t, err)
	i2, err := s.CreateIssue(ctx, dev, p.ID, CreateIssueInput{SprintID: sp.ID, Title: "b"})
	require.NoError(t, err)
	_, err = s.CreateIssue(ctx, dev, p.ID, CreateIssueInput{
		SprintID: sp.ID, Title: "c", Status: models.IssueStatusDone,
	})
	require.NoError(t, err)

	require.NoError(t, s.Reorder(ctx, dev, []IssueMove{
		{ID: i2.ID, Status: models.IssueStatusTodo, Order: 0},
		{ID: i1.ID, Status: models.IssueStatusTodo, Order: 1},
	}))

	board, err := s.AssembleBoard(ctx, dev, p.ID, "")
	require.NoError(t, err)

	todo := board.Columns[models.IssueStatusTodo]
	require.Len(t, todo, 2)
	assert.Equal(t, i2.ID, todo[0].ID)
	assert.Equal(t, i1.ID, todo[1].ID)
	assert.Len(t, board.Columns[models.IssueStatusDone], 1)
	assert.Empty(t, board.Columns[models.IssueStatusInProgress])
}

// --- End to end ---

// Walks the full ZIRA flow: start a sprint inside its window, create two
// issues into TODO, swap them, and read the board back.
func TestSprintBoardFlow(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	p := mustProject(t, s)
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	sp := mustSprint(t, s, p.ID, t0, t0.AddDate(0, 0, 14))

	s.now = func() time.Time { return t0.AddDate(0, 0, 1) }
	active, err := s.TransitionSprint(ctx, admin, sp.ID, models.SprintStatusActive)
	require.NoError(t, err)
	require.Equal(t, models.SprintStatusActive, active.Status)

	issue1, err := s.CreateIssue(ctx, dev, p.ID, CreateIssueInput{SprintID: sp.ID, Title: "Fix bug"})
	require.NoError(t, err)
	assert.Equal(t, 0, issue1.Order)

	issue2, err := s.CreateIssue(ctx, dev, p.ID, CreateIssueInput{SprintID: sp.ID, Title: "Write docs"})
	require.NoError(t, err)
	assert.Equal(t, 1, issue2.Order)

	require.NoError(t, s.Reorder(ctx, dev, []IssueMove{
		{ID: issue2.ID, Status: models.IssueStatusTodo, Order: 0},
		{ID: issue1.ID, Status: models.IssueStatusTodo, Order: 1},
	}))

	board, err := s.AssembleBoard(ctx, dev, p.ID, "")
	require.NoError(t, err)
	require.Equal(t, sp.ID, board.Sprint.ID)

	todo := board.Columns[models.IssueStatusTodo]
	require.Len(t, todo, 2)
	assert.Equal(t, issue2.ID, todo[0].ID)
	assert.Equal(t, issue1.ID, todo[1].ID)
}

// --- Users / members ---

func TestEnsureUser_Idempotent(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	u1, err := s.EnsureUser(ctx, dev)
	require.NoError(t, err)
	u2, err := s.EnsureUser(ctx, dev)
	require.NoError(t, err)
	assert.Equal(t, u1.ID, u2.ID)
}

func TestListOrgMembers_IntersectsDirectoryWithLocalUsers(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	// Only dev has signed in; admin is in the directory but has no
	// local row yet.
	_, err := s.EnsureUser(ctx, dev)
	require.NoError(t, err)

	members, err := s.ListOrgMembers(ctx, dev)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, dev.UserID, members[0].ExternalID)
}

func TestIssuesByUser(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	p := mustProject(t, s)
	start := time.Now().UTC().Add(-time.Hour)
	sp := mustSprint(t, s, p.ID, start, start.Add(14*24*time.Hour))

	devUser, err := s.EnsureUser(ctx, dev)
	require.NoError(t, err)

	_, err = s.CreateIssue(ctx, dev, p.ID, CreateIssueInput{
		SprintID: sp.ID, Title: "assigned", AssigneeID: devUser.ID,
	})
	require.NoError(t, err)
	_, err = s.CreateIssue(ctx, admin, p.ID, CreateIssueInput{SprintID: sp.ID, Title: "unassigned"})
	require.NoError(t, err)

	byAssignee, err := s.IssuesByUser(ctx, dev, UserIssueFilter{AssigneeID: devUser.ID})
	require.NoError(t, err)
	require.Len(t, byAssignee, 1)
	assert.Equal(t, "assigned", byAssignee[0].Title)

	byReporter, err := s.IssuesByUser(ctx, dev, UserIssueFilter{ReporterID: devUser.ID})
	require.NoError(t, err)
	require.Len(t, byReporter, 1)
}
