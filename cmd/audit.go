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

var auditJSON bool

var auditCmd = &cobra.Command{
	Use:   "audit <project>",
	Short: "Reconcile work item counters with the hours ledger",
	Long: `Compare each work item's worked hours with the hours rows logged
against it and print a digest of the project's ledger.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return auditRun(args[0])
	},
}

var activityCmd = &cobra.Command{
	Use:   "activity <project>",
	Short: "List the hours and transition rows of a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return activityRun(args[0])
	},
}

var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Send reminders for starts and ends scheduled today",
	RunE: func(cmd *cobra.Command, args []string) error {
		return remindRun()
	},
}

func init() {
	auditCmd.Flags().BoolVar(&auditJSON, "json", false, "Print the report as JSON")

	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(activityCmd)
	rootCmd.AddCommand(remindCmd)
}

func auditRun(ref string) error {
	e, actor, err := session()
	if err != nil {
		return err
	}

	r, err := e.Audit(context.Background(), actor, ref)
	if err != nil {
		return err
	}

	if auditJSON {
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	fmt.Fprintf(ui.Out, "Rows:        %d (%d transitions)\n", r.Rows, r.Transitions)
	fmt.Fprintf(ui.Out, "Hours:       %d\n", r.Hours)
	fmt.Fprintf(ui.Out, "Digest:      %s\n", r.Digest)
	if r.Clean() {
		ui.Success("Every work item matches the ledger")
		return nil
	}
	for _, d := range r.Drift {
		ui.Warning("#%d %s: worked %dh, ledger %dh", d.Number, d.Title, d.Worked, d.Logged)
	}
	return fmt.Errorf("%d work item(s) disagree with the ledger", len(r.Drift))
}

func activityRun(ref string) error {
	e, actor, err := session()
	if err != nil {
		return err
	}
	ctx := context.Background()

	incs, err := e.Activity(ctx, actor, ref)
	if err != nil {
		return err
	}
	if len(incs) == 0 {
		ui.Info("No activity.")
		return nil
	}

	items, err := e.Items(ctx, actor, ref)
	if err != nil {
		return err
	}
	numbers := make(map[string]int, len(items))
	for _, w := range items {
		numbers[w.ID] = w.Number
	}

	table := ui.Table([]string{"Date", "User", "Item", "Hours", "State"})
	for _, inc := range incs {
		state := ""
		if inc.State != nil {
			state = output.StatusColor(string(*inc.State))
		}
		table.Append([]string{
			inc.Date.Format(models.DateLayout),
			inc.UserID,
			"#" + strconv.Itoa(numbers[inc.ItemID]),
			strconv.Itoa(inc.Hours),
			state,
		})
	}
	table.Render()
	return nil
}

func remindRun() error {
	e, err := getEngine()
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would send today's reminders")
		return nil
	}

	sent, err := e.SendReminders(context.Background(), today())
	if err != nil {
		return err
	}
	for _, ev := range sent {
		ui.Info("%s", ev.Message())
	}
	ui.Success("Sent %d reminder(s)", len(sent))
	return nil
}
