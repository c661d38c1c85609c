package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/zira/internal/models"
	"github.com/joescharf/zira/internal/output"
	"github.com/joescharf/zira/internal/tracker"
)

var (
	sprintStart string
	sprintEnd   string
	sprintDesc  string
)

var sprintCmd = &cobra.Command{
	Use:   "sprint",
	Short: "Manage sprints",
	Long:  "Plan, list, start, and end sprints. Sprint names are generated from the project key.",
}

var sprintAddCmd = &cobra.Command{
	Use:   "add <project>",
	Short: "Plan a new sprint",
	Long:  "Create a PLANNED sprint. Dates are YYYY-MM-DD; the end date must follow the start date.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sprintAddRun(args[0])
	},
}

var sprintListCmd = &cobra.Command{
	Use:     "list <project>",
	Aliases: []string{"ls"},
	Short:   "List a project's sprints",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sprintListRun(args[0])
	},
}

var sprintStartCmd = &cobra.Command{
	Use:   "start <sprint-id>",
	Short: "Start a planned sprint",
	Long:  "Transition a PLANNED sprint to ACTIVE. Allowed only while the sprint window is open.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sprintTransitionRun(args[0], models.SprintStatusActive)
	},
}

var sprintEndCmd = &cobra.Command{
	Use:   "end <sprint-id>",
	Short: "End an active sprint",
	Long:  "Transition an ACTIVE sprint to COMPLETED. Allowed only once the end date has passed.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sprintTransitionRun(args[0], models.SprintStatusCompleted)
	},
}

func init() {
	sprintAddCmd.Flags().StringVar(&sprintStart, "start", "", "Start date, YYYY-MM-DD (required)")
	sprintAddCmd.Flags().StringVar(&sprintEnd, "end", "", "End date, YYYY-MM-DD (required)")
	sprintAddCmd.Flags().StringVar(&sprintDesc, "desc", "", "Sprint description")
	_ = sprintAddCmd.MarkFlagRequired("start")
	_ = sprintAddCmd.MarkFlagRequired("end")

	sprintCmd.AddCommand(sprintAddCmd)
	sprintCmd.AddCommand(sprintListCmd)
	sprintCmd.AddCommand(sprintStartCmd)
	sprintCmd.AddCommand(sprintEndCmd)
	rootCmd.AddCommand(sprintCmd)
}

func sprintAddRun(projectRef string) error {
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

	start, err := time.Parse("2006-01-02", sprintStart)
	if err != nil {
		return fmt.Errorf("invalid --start date %q: expected YYYY-MM-DD", sprintStart)
	}
	end, err := time.Parse("2006-01-02", sprintEnd)
	if err != nil {
		return fmt.Errorf("invalid --end date %q: expected YYYY-MM-DD", sprintEnd)
	}

	sprint, err := svc.CreateSprint(ctx, caller, p.ID, tracker.CreateSprintInput{
		Description: sprintDesc,
		StartDate:   start,
		EndDate:     end,
	})
	if err != nil {
		return fmt.Errorf("create sprint: %w", err)
	}

	ui.Success("Planned sprint %s (%s to %s)",
		output.Cyan(sprint.Name), sprintStart, sprintEnd)
	ui.VerboseLog("ID: %s", sprint.ID)
	return nil
}

func sprintListRun(projectRef string) error {
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

	sprints, err := svc.ListSprints(ctx, caller, p.ID)
	if err != nil {
		return err
	}
	if len(sprints) == 0 {
		ui.Info("No sprints for %s.", p.Key)
		return nil
	}

	now := time.Now().UTC()
	table := ui.Table([]string{"ID", "Sprint", "Status", "Label", "Start", "End"})
	for _, sp := range sprints {
		table.Append([]string{
			sp.ID,
			output.Cyan(sp.Name),
			output.SprintColor(string(sp.Status)),
			sp.StatusLabel(now),
			sp.StartDate.Format("2006-01-02"),
			sp.EndDate.Format("2006-01-02"),
		})
	}
	table.Render()
	return nil
}

func sprintTransitionRun(sprintID string, target models.SprintStatus) error {
	svc, err := getService()
	if err != nil {
		return err
	}
	caller, err := getCaller()
	if err != nil {
		return err
	}

	sprint, err := svc.TransitionSprint(context.Background(), caller, sprintID, target)
	if err != nil {
		return err
	}

	switch target {
	case models.SprintStatusActive:
		ui.Success("Sprint %s is now active (ends %s)",
			output.Cyan(sprint.Name), sprint.EndDate.Format("2006-01-02"))
	case models.SprintStatusCompleted:
		ui.Success("Sprint %s completed", output.Cyan(sprint.Name))
	}
	return nil
}
