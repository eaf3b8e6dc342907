package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joescharf/scrum/internal/engine"
	"github.com/joescharf/scrum/internal/models"
	"github.com/joescharf/scrum/internal/output"
)

var statusActive bool

var statusCmd = &cobra.Command{
	Use:   "status [project]",
	Short: "Show the status dashboard",
	Long: `Show a cross-project status overview or detailed status for one project.

Without arguments, shows a summary table of every project you can view.
With a project name, shows detailed status for that project.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			return projectShowRun(args[0]) // reuse project show for detail
		}
		return statusOverviewRun()
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusActive, "active", false, "Show only active projects")
	rootCmd.AddCommand(statusCmd)
}

func statusOverviewRun() error {
	e, actor, err := session()
	if err != nil {
		return err
	}
	ctx := context.Background()

	var states []models.ProjectState
	if statusActive {
		states = append(states, models.ProjectActive)
	}
	projects, err := e.Projects(ctx, actor, states...)
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		ui.Info("No projects. Use 'scrum project create <name>' to get started.")
		return nil
	}

	table := ui.Table([]string{"Project", "State", "Sprint", "Items", "Health", "Days Left"})
	for _, p := range projects {
		items, err := e.Items(ctx, actor, p.ID)
		if err != nil {
			return err
		}

		sprintName, healthStr, daysLeft := "-", "-", "-"
		sp, err := e.ActiveSprint(ctx, actor, p.ID)
		if err != nil {
			return err
		}
		if sp != nil {
			sprintName = sp.Name
			daysLeft = fmt.Sprintf("%d", models.DaysBetween(today(), sp.EndDate))
			healthStr = sprintHealth(ctx, e, actor, sp.ID)
		}

		table.Append([]string{
			output.Cyan(p.Name),
			output.StatusColor(string(p.State)),
			sprintName,
			formatItemCounts(items),
			healthStr,
			daysLeft,
		})
	}

	table.Render()
	return nil
}

func sprintHealth(ctx context.Context, e *engine.Engine, actor, sprintID string) string {
	h, err := e.SprintHealth(ctx, actor, sprintID, today())
	if err != nil {
		ui.VerboseLog("health of sprint %s: %v", sprintID, err)
		return "?"
	}
	return output.HealthColor(h.Total)
}

// formatItemCounts summarizes open and done items, e.g. "3 open, 5 done".
func formatItemCounts(items []*models.WorkItem) string {
	open, done := 0, 0
	for _, w := range items {
		switch {
		case w.State == models.ItemDone:
			done++
		case w.State.Open():
			open++
		}
	}
	if open == 0 && done == 0 {
		return "-"
	}
	return fmt.Sprintf("%d open, %d done", open, done)
}
