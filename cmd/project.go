package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/zira/internal/identity"
	"github.com/joescharf/zira/internal/models"
	"github.com/joescharf/zira/internal/output"
	"github.com/joescharf/zira/internal/tracker"
)

var (
	projectKey  string
	projectDesc string
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
	Long:  "Create, list, show, and delete projects in your organization.",
}

var projectAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a project",
	Long:  "Create a project. The key (e.g. ZIRA) prefixes generated sprint names and is immutable.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectAddRun(args[0])
	},
}

var projectRemoveCmd = &cobra.Command{
	Use:     "remove <key-or-id>",
	Aliases: []string{"rm"},
	Short:   "Delete a project and everything in it",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectRemoveRun(args[0])
	},
}

var projectListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectListRun()
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show <key-or-id>",
	Short: "Show detailed project information",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectShowRun(args[0])
	},
}

func init() {
	projectAddCmd.Flags().StringVar(&projectKey, "key", "", "Project key, 1-10 uppercase letters/digits (required)")
	projectAddCmd.Flags().StringVar(&projectDesc, "desc", "", "Project description")
	_ = projectAddCmd.MarkFlagRequired("key")

	projectCmd.AddCommand(projectAddCmd)
	projectCmd.AddCommand(projectRemoveCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectShowCmd)
	rootCmd.AddCommand(projectCmd)
}

func projectAddRun(name string) error {
	svc, err := getService()
	if err != nil {
		return err
	}
	caller, err := getCaller()
	if err != nil {
		return err
	}

	p, err := svc.CreateProject(context.Background(), caller, tracker.CreateProjectInput{
		Name:        name,
		Key:         projectKey,
		Description: projectDesc,
	})
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}

	ui.Success("Created project: %s (%s)", output.Cyan(p.Key), p.Name)
	ui.VerboseLog("ID: %s", p.ID)
	return nil
}

func projectRemoveRun(ref string) error {
	svc, err := getService()
	if err != nil {
		return err
	}
	caller, err := getCaller()
	if err != nil {
		return err
	}
	ctx := context.Background()

	p, err := resolveProject(ctx, svc, caller, ref)
	if err != nil {
		return err
	}

	if err := svc.DeleteProject(ctx, caller, p.ID); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}

	ui.Success("Deleted project: %s (sprints and issues removed)", output.Cyan(p.Key))
	return nil
}

func projectListRun() error {
	svc, err := getService()
	if err != nil {
		return err
	}
	caller, err := getCaller()
	if err != nil {
		return err
	}
	ctx := context.Background()

	projects, err := svc.ListProjects(ctx, caller)
	if err != nil {
		return err
	}

	if len(projects) == 0 {
		ui.Info("No projects yet. Use 'zira project add <name> --key <KEY>' to get started.")
		return nil
	}

	table := ui.Table([]string{"Key", "Name", "Sprints", "Description"})
	for _, p := range projects {
		sprints, _ := svc.ListSprints(ctx, caller, p.ID)

		table.Append([]string{
			output.Cyan(p.Key),
			p.Name,
			fmt.Sprintf("%d", len(sprints)),
			p.Description,
		})
	}
	table.Render()
	return nil
}

func projectShowRun(ref string) error {
	svc, err := getService()
	if err != nil {
		return err
	}
	caller, err := getCaller()
	if err != nil {
		return err
	}
	ctx := context.Background()

	p, err := resolveProject(ctx, svc, caller, ref)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s %s\n", output.Cyan(p.Key), p.Name)
	if p.Description != "" {
		fmt.Fprintf(ui.Out, "  Desc:       %s\n", p.Description)
	}
	fmt.Fprintf(ui.Out, "  Org:        %s\n", p.OrganizationID)
	fmt.Fprintf(ui.Out, "  Created:    %s\n", timeAgo(p.CreatedAt))
	fmt.Fprintln(ui.Out)

	sprints, err := svc.ListSprints(ctx, caller, p.ID)
	if err != nil {
		return err
	}
	if len(sprints) == 0 {
		ui.Info("No sprints. Use 'zira sprint add %s' to plan one.", p.Key)
		return nil
	}

	now := time.Now().UTC()
	table := ui.Table([]string{"Sprint", "Status", "Window", "Issues"})
	for _, sp := range sprints {
		issues, _ := svc.SprintIssues(ctx, caller, sp.ID)
		window := fmt.Sprintf("%s to %s",
			sp.StartDate.Format("2006-01-02"), sp.EndDate.Format("2006-01-02"))

		table.Append([]string{
			sp.Name,
			output.SprintColor(string(sp.Status)) + " (" + sp.StatusLabel(now) + ")",
			window,
			fmt.Sprintf("%d", len(issues)),
		})
	}
	table.Render()
	return nil
}

// resolveProject finds a project by key first, then by ID.
func resolveProject(ctx context.Context, svc *tracker.Service, caller identity.Caller, ref string) (*models.Project, error) {
	projects, err := svc.ListProjects(ctx, caller)
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

// timeAgo returns a human-readable duration from a time.
func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	}
}
