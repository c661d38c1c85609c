package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/zira/internal/models"
	"github.com/joescharf/zira/internal/output"
)

var boardSprint string

var boardCmd = &cobra.Command{
	Use:   "board <project>",
	Short: "Show a project's kanban board",
	Long:  "Render the sprint board: TODO, IN_PROGRESS, IN_REVIEW, and DONE columns in board order.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return boardRun(args[0])
	},
}

func init() {
	boardCmd.Flags().StringVar(&boardSprint, "sprint", "", "Sprint ID (default: the active sprint, else the first)")
	rootCmd.AddCommand(boardCmd)
}

func boardRun(projectRef string) error {
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

	board, err := svc.AssembleBoard(ctx, caller, p.ID, boardSprint)
	if err != nil {
		return err
	}

	if board.Sprint == nil {
		ui.Info("No sprints for %s yet. Use 'zira sprint add %s' to plan one.", p.Key, p.Key)
		return nil
	}

	now := time.Now().UTC()
	fmt.Fprintf(ui.Out, "%s  %s  %s\n\n",
		output.Cyan(p.Key),
		board.Sprint.Name,
		board.Sprint.StatusLabel(now))

	headers := make([]string, len(models.IssueStatuses))
	height := 0
	for i, status := range models.IssueStatuses {
		headers[i] = fmt.Sprintf("%s (%d)", output.StatusColor(string(status)), len(board.Columns[status]))
		if n := len(board.Columns[status]); n > height {
			height = n
		}
	}

	table := ui.BoardTable(headers)
	for row := 0; row < height; row++ {
		cells := make([]string, len(models.IssueStatuses))
		for col, status := range models.IssueStatuses {
			issues := board.Columns[status]
			if row < len(issues) {
				cells[col] = formatBoardCell(issues[row])
			}
		}
		table.Append(cells)
	}
	table.Render()
	return nil
}

// formatBoardCell renders one issue as a compact board card.
func formatBoardCell(issue *models.Issue) string {
	title := issue.Title
	if len(title) > 28 {
		title = title[:25] + "..."
	}
	return fmt.Sprintf("%s %s", priorityBadge(issue.Priority), title)
}

// priorityBadge is the one-letter colored priority marker on a board card.
func priorityBadge(p models.IssuePriority) string {
	letter := string(p[:1])
	switch p {
	case models.IssuePriorityUrgent:
		return output.Red(letter)
	case models.IssuePriorityHigh:
		return output.Yellow(letter)
	case models.IssuePriorityLow:
		return output.Green(letter)
	default:
		return output.Cyan(letter)
	}
}
