package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/zira/internal/identity"
	"github.com/joescharf/zira/internal/models"
	"github.com/joescharf/zira/internal/output"
	"github.com/joescharf/zira/internal/tracker"
)

var (
	issueSprint   string
	issueDesc     string
	issuePriority string
	issueStatus   string
	issueTitle    string
	issueOrder    int
	issueMine     bool
	issueReported bool
	draftProject  string
	draftApply    bool
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Manage issues",
	Long:  "Create, list, update, move, and delete issues on sprint boards.",
}

var issueAddCmd = &cobra.Command{
	Use:   "add <project> <title>",
	Short: "Add an issue to a sprint",
	Long:  "Add an issue. Without --sprint it lands in the project's active sprint, at the bottom of its column.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueAddRun(args[0], args[1])
	},
}

var issueListCmd = &cobra.Command{
	Use:     "list [project]",
	Aliases: []string{"ls"},
	Short:   "List issues",
	Long:    "List a project's active-sprint issues, or with --mine / --reported, your issues across the organization.",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var projectRef string
		if len(args) > 0 {
			projectRef = args[0]
		}
		return issueListRun(projectRef)
	},
}

var issueShowCmd = &cobra.Command{
	Use:   "show <issue-id>",
	Short: "Show issue details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueShowRun(args[0])
	},
}

var issueUpdateCmd = &cobra.Command{
	Use:   "update <issue-id>",
	Short: "Update an issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueUpdateRun(args[0])
	},
}

var issueMoveCmd = &cobra.Command{
	Use:   "move <issue-id>",
	Short: "Move an issue on the board",
	Long:  "Move an issue to a column and position. Position 0 is the top of the column.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueMoveRun(args[0])
	},
}

var issueRemoveCmd = &cobra.Command{
	Use:     "remove <issue-id>",
	Aliases: []string{"rm"},
	Short:   "Delete an issue",
	Long:    "Delete an issue. Only the reporter or an organization admin may delete.",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueRemoveRun(args[0])
	},
}

var issueEnrichCmd = &cobra.Command{
	Use:   "enrich <issue-id>",
	Short: "Rewrite an issue's description with the LLM",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueEnrichRun(args[0])
	},
}

var issueDraftCmd = &cobra.Command{
	Use:   "draft <goal>",
	Short: "Draft issues from a sprint goal with the LLM",
	Long:  "Break a sprint goal into draft issues. With --project and --apply, the drafts are created in that project's active sprint.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueDraftRun(args[0])
	},
}

func init() {
	issueAddCmd.Flags().StringVar(&issueSprint, "sprint", "", "Sprint ID (default: the active sprint)")
	issueAddCmd.Flags().StringVar(&issueDesc, "desc", "", "Issue description")
	issueAddCmd.Flags().StringVar(&issuePriority, "priority", "", "Priority: LOW, MEDIUM, HIGH, URGENT (default: MEDIUM)")
	issueAddCmd.Flags().StringVar(&issueStatus, "status", "", "Board column: TODO, IN_PROGRESS, IN_REVIEW, DONE (default: TODO)")

	issueListCmd.Flags().BoolVar(&issueMine, "mine", false, "Issues assigned to me, newest first")
	issueListCmd.Flags().BoolVar(&issueReported, "reported", false, "Issues I reported, newest first")

	issueUpdateCmd.Flags().StringVar(&issueTitle, "title", "", "New title")
	issueUpdateCmd.Flags().StringVar(&issueDesc, "desc", "", "New description")
	issueUpdateCmd.Flags().StringVar(&issueStatus, "status", "", "New board column")
	issueUpdateCmd.Flags().StringVar(&issuePriority, "priority", "", "New priority")

	issueMoveCmd.Flags().StringVar(&issueStatus, "status", "", "Target board column (required)")
	issueMoveCmd.Flags().IntVar(&issueOrder, "order", 0, "Target position within the column, 0-based")
	_ = issueMoveCmd.MarkFlagRequired("status")

	issueDraftCmd.Flags().StringVar(&draftProject, "project", "", "Project key to create the drafts in")
	issueDraftCmd.Flags().BoolVar(&draftApply, "apply", false, "Create the drafted issues (requires --project)")

	issueCmd.AddCommand(issueAddCmd)
	issueCmd.AddCommand(issueListCmd)
	issueCmd.AddCommand(issueShowCmd)
	issueCmd.AddCommand(issueUpdateCmd)
	issueCmd.AddCommand(issueMoveCmd)
	issueCmd.AddCommand(issueRemoveCmd)
	issueCmd.AddCommand(issueEnrichCmd)
	issueCmd.AddCommand(issueDraftCmd)
	rootCmd.AddCommand(issueCmd)
}

func issueAddRun(projectRef, title string) error {
	svc, err := getService()
	if err != nil {
		return err
	}
	caller, err := getCaller()
	if err != nil {
		return err
	}
	ctx := context.Background()

	p, err := resolveProject(ctx, svc, caller, projectRef)
	if err != nil {
		return err
	}

	sprintID := issueSprint
	if sprintID == "" {
		sprintID, err = activeSprintID(ctx, svc, caller, p.ID)
		if err != nil {
			return err
		}
	}

	in := tracker.CreateIssueInput{
		SprintID:    sprintID,
		Title:       title,
		Description: issueDesc,
	}
	if issueStatus != "" {
		in.Status, err = models.ParseIssueStatus(strings.ToUpper(issueStatus))
		if err != nil {
			return err
		}
	}
	if issuePriority != "" {
		in.Priority, err = models.ParseIssuePriority(strings.ToUpper(issuePriority))
		if err != nil {
			return err
		}
	}

	issue, err := svc.CreateIssue(ctx, caller, p.ID, in)
	if err != nil {
		return fmt.Errorf("create issue: %w", err)
	}

	ui.Success("Created issue: %s [%s #%d]",
		output.Cyan(issue.Title), output.StatusColor(string(issue.Status)), issue.Order)
	ui.VerboseLog("ID: %s", issue.ID)
	return nil
}

func issueListRun(projectRef string) error {
	svc, err := getService()
	if err != nil {
		return err
	}
	caller, err := getCaller()
	if err != nil {
		return err
	}
	ctx := context.Background()

	if issueMine || issueReported {
		return issueListUserRun(ctx, svc, caller)
	}
	if projectRef == "" {
		return fmt.Errorf("pass a project, or use --mine / --reported")
	}

	p, err := resolveProject(ctx, svc, caller, projectRef)
	if err != nil {
		return err
	}
	sprintID, err := activeSprintID(ctx, svc, caller, p.ID)
	if err != nil {
		return err
	}

	issues, err := svc.SprintIssues(ctx, caller, sprintID)
	if err != nil {
		return err
	}
	if len(issues) == 0 {
		ui.Info("No issues in the active sprint.")
		return nil
	}

	renderIssueTable(issues)
	return nil
}

func issueListUserRun(ctx context.Context, svc *tracker.Service, caller identity.Caller) error {
	me, err := svc.EnsureUser(ctx, caller)
	if err != nil {
		return err
	}

	filter := tracker.UserIssueFilter{}
	if issueMine {
		filter.AssigneeID = me.ID
	}
	if issueReported {
		filter.ReporterID = me.ID
	}

	issues, err := svc.IssuesByUser(ctx, caller, filter)
	if err != nil {
		return err
	}
	if len(issues) == 0 {
		ui.Info("No matching issues.")
		return nil
	}

	renderIssueTable(issues)
	return nil
}

func renderIssueTable(issues []*models.Issue) {
	table := ui.Table([]string{"ID", "Title", "Status", "Pos", "Priority"})
	for _, i := range issues {
		table.Append([]string{
			i.ID,
			i.Title,
			output.StatusColor(string(i.Status)),
			fmt.Sprintf("%d", i.Order),
			output.PriorityColor(string(i.Priority)),
		})
	}
	table.Render()
}

func issueShowRun(id string) error {
	svc, err := getService()
	if err != nil {
		return err
	}
	caller, err := getCaller()
	if err != nil {
		return err
	}
	ctx := context.Background()

	issue, err := svc.GetIssue(ctx, caller, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s\n", output.Cyan(issue.Title))
	fmt.Fprintf(ui.Out, "  ID:        %s\n", issue.ID)
	fmt.Fprintf(ui.Out, "  Status:    %s (position %d)\n", output.StatusColor(string(issue.Status)), issue.Order)
	fmt.Fprintf(ui.Out, "  Priority:  %s\n", output.PriorityColor(string(issue.Priority)))
	if issue.Description != "" {
		fmt.Fprintf(ui.Out, "  Desc:      %s\n", issue.Description)
	}
	fmt.Fprintf(ui.Out, "  Reporter:  %s\n", issue.ReporterID)
	if issue.AssigneeID != "" {
		fmt.Fprintf(ui.Out, "  Assignee:  %s\n", issue.AssigneeID)
	}
	fmt.Fprintf(ui.Out, "  Created:   %s\n", timeAgo(issue.CreatedAt))
	fmt.Fprintf(ui.Out, "  Updated:   %s\n", timeAgo(issue.UpdatedAt))
	return nil
}

func issueUpdateRun(id string) error {
	svc, err := getService()
	if err != nil {
		return err
	}
	caller, err := getCaller()
	if err != nil {
		return err
	}

	in := tracker.UpdateIssueInput{
		Title:       issueTitle,
		Description: issueDesc,
	}
	if issueStatus != "" {
		in.Status, err = models.ParseIssueStatus(strings.ToUpper(issueStatus))
		if err != nil {
			return err
		}
	}
	if issuePriority != "" {
		in.Priority, err = models.ParseIssuePriority(strings.ToUpper(issuePriority))
		if err != nil {
			return err
		}
	}
	if in.Title == "" && in.Description == "" && in.Status == "" && in.Priority == "" {
		return fmt.Errorf("nothing to update; pass at least one of --title, --desc, --status, --priority")
	}

	issue, err := svc.UpdateIssue(context.Background(), caller, id, in)
	if err != nil {
		return err
	}

	ui.Success("Updated issue: %s [%s]", output.Cyan(issue.Title), output.StatusColor(string(issue.Status)))
	return nil
}

func issueMoveRun(id string) error {
	svc, err := getService()
	if err != nil {
		return err
	}
	caller, err := getCaller()
	if err != nil {
		return err
	}

	status, err := models.ParseIssueStatus(strings.ToUpper(issueStatus))
	if err != nil {
		return err
	}

	moves := []tracker.IssueMove{{ID: id, Status: status, Order: issueOrder}}
	if err := svc.Reorder(context.Background(), caller, moves); err != nil {
		return err
	}

	ui.Success("Moved issue to %s position %d", output.StatusColor(string(status)), issueOrder)
	return nil
}

func issueRemoveRun(id string) error {
	svc, err := getService()
	if err != nil {
		return err
	}
	caller, err := getCaller()
	if err != nil {
		return err
	}

	if err := svc.DeleteIssue(context.Background(), caller, id); err != nil {
		return err
	}

	ui.Success("Deleted issue %s", id)
	return nil
}

func issueEnrichRun(id string) error {
	llmClient := newLLMClient()
	if llmClient == nil {
		return fmt.Errorf("no Anthropic API key configured (set anthropic.api_key or ANTHROPIC_API_KEY)")
	}

	svc, err := getService()
	if err != nil {
		return err
	}
	caller, err := getCaller()
	if err != nil {
		return err
	}
	ctx := context.Background()

	issue, err := svc.GetIssue(ctx, caller, id)
	if err != nil {
		return err
	}

	ui.VerboseLog("Enriching %s...", issue.Title)
	description, err := llmClient.EnrichIssue(ctx, issue.Title, issue.Description)
	if err != nil {
		return fmt.Errorf("enrich issue: %w", err)
	}

	if _, err := svc.UpdateIssue(ctx, caller, issue.ID, tracker.UpdateIssueInput{
		Description: description,
	}); err != nil {
		return err
	}

	ui.Success("Enriched issue: %s", output.Cyan(issue.Title))
	fmt.Fprintf(ui.Out, "  %s\n", description)
	return nil
}

func issueDraftRun(goal string) error {
	llmClient := newLLMClient()
	if llmClient == nil {
		return fmt.Errorf("no Anthropic API key configured (set anthropic.api_key or ANTHROPIC_API_KEY)")
	}

	svc, err := getService()
	if err != nil {
		return err
	}
	caller, err := getCaller()
	if err != nil {
		return err
	}
	ctx := context.Background()

	drafts, err := llmClient.SuggestIssues(ctx, goal)
	if err != nil {
		return fmt.Errorf("draft issues: %w", err)
	}
	if len(drafts) == 0 {
		ui.Info("The model produced no drafts.")
		return nil
	}

	if !draftApply {
		table := ui.Table([]string{"Title", "Priority", "Description"})
		for _, d := range drafts {
			table.Append([]string{d.Title, output.PriorityColor(d.Priority), d.Description})
		}
		table.Render()
		ui.Info("Re-run with --project <KEY> --apply to create these.")
		return nil
	}

	if draftProject == "" {
		return fmt.Errorf("--apply requires --project")
	}
	p, err := resolveProject(ctx, svc, caller, draftProject)
	if err != nil {
		return err
	}
	sprintID, err := activeSprintID(ctx, svc, caller, p.ID)
	if err != nil {
		return err
	}

	created := 0
	for _, d := range drafts {
		in := tracker.CreateIssueInput{
			SprintID:    sprintID,
			Title:       d.Title,
			Description: d.Description,
		}
		if priority, err := models.ParseIssuePriority(strings.ToUpper(d.Priority)); err == nil {
			in.Priority = priority
		}

		if _, err := svc.CreateIssue(ctx, caller, p.ID, in); err != nil {
			ui.Warning("Skipped %q: %v", d.Title, err)
			continue
		}
		ui.Success("Created: %s", output.Cyan(d.Title))
		created++
	}

	ui.Info("Created %d of %d drafted issue(s)", created, len(drafts))
	return nil
}

// activeSprintID returns the project's ACTIVE sprint.
func activeSprintID(ctx context.Context, svc *tracker.Service, caller identity.Caller, projectID string) (string, error) {
	sprints, err := svc.ListSprints(ctx, caller, projectID)
	if err != nil {
		return "", err
	}
	for _, sp := range sprints {
		if sp.Status == models.SprintStatusActive {
			return sp.ID, nil
		}
	}
	return "", fmt.Errorf("no active sprint; pass --sprint or start one with 'zira sprint start'")
}
