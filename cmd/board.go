package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/joescharf/scrum/internal/models"
	"github.com/joescharf/scrum/internal/output"
)

var (
	boardWidth   int
	burndownJSON bool
)

var boardCmd = &cobra.Command{
	Use:   "board <project>",
	Short: "Show the kanban board of the active sprint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return boardRun(args[0])
	},
}

var burndownCmd = &cobra.Command{
	Use:   "burndown <project> [sprint]",
	Short: "Show the burndown of a sprint",
	Long: `Show the ideal and actual remaining work of a sprint, one row per day,
and the sprint health score. Defaults to the active sprint.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return burndownRun(args[0], optionalArg(args, 1))
	},
}

func init() {
	boardCmd.Flags().IntVarP(&boardWidth, "width", "w", 28, "Column width")
	burndownCmd.Flags().BoolVar(&burndownJSON, "json", false, "Print the series as JSON")

	rootCmd.AddCommand(boardCmd)
	rootCmd.AddCommand(burndownCmd)
}

func boardRun(ref string) error {
	e, actor, err := session()
	if err != nil {
		return err
	}

	b, err := e.Board(context.Background(), actor, ref)
	if err != nil {
		return err
	}
	fmt.Fprintln(ui.Out, b.Render(boardWidth))
	return nil
}

func burndownRun(ref, sprintRef string) error {
	e, actor, err := session()
	if err != nil {
		return err
	}
	ctx := context.Background()

	sp, err := e.FindSprint(ctx, actor, ref, sprintRef)
	if err != nil {
		return err
	}
	series, err := e.ComputeBurndown(ctx, actor, sp.ID, today())
	if err != nil {
		return err
	}

	if burndownJSON {
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(series.Points())
	}

	fmt.Fprintf(ui.Out, "%s  %s  cost %dh over %d day(s)\n\n",
		output.Cyan(sp.Name), output.StatusColor(string(sp.State)), series.Cost, series.PlannedDays)

	table := ui.Table([]string{"Day", "Date", "Ideal", "Remaining"})
	for _, pt := range series.Points() {
		ideal, remaining := "", ""
		if pt.Ideal != nil {
			ideal = strconv.FormatFloat(*pt.Ideal, 'f', 1, 64)
		}
		if pt.Remaining != nil {
			remaining = strconv.Itoa(*pt.Remaining)
		}
		table.Append([]string{strconv.Itoa(pt.Day), pt.Date.Format(models.DateLayout), ideal, remaining})
	}
	table.Render()

	if sp.State == models.SprintPending {
		return nil
	}
	score, err := e.SprintHealth(ctx, actor, sp.ID, today())
	if err != nil {
		return err
	}
	fmt.Fprintf(ui.Out, "\nHealth: %s (capacity %d, estimates %d, progress %d, activity %d)\n",
		output.HealthColor(score.Total), score.CapacityFit, score.EstimateCoverage, score.Progress, score.ActivityRecency)
	return nil
}
