package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/joescharf/scrum/internal/engine"
	"github.com/joescharf/scrum/internal/models"
	"github.com/joescharf/scrum/internal/output"
)

var (
	itemDescription string
	itemTitle       string
	itemPriority    int
	itemEstimate    int
	itemBacklogOnly bool
)

var itemCmd = &cobra.Command{
	Use:     "item",
	Aliases: []string{"items"},
	Short:   "Manage work items",
	Long:    "Create, edit, comment on, and move work items through the kanban pipeline.",
}

var itemCreateCmd = &cobra.Command{
	Use:   "create <project> <title>",
	Short: "Add a work item to the product backlog",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return itemCreateRun(cmd, args[0], args[1])
	},
}

var itemListCmd = &cobra.Command{
	Use:     "list <project>",
	Aliases: []string{"ls"},
	Short:   "List work items",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return itemListRun(args[0])
	},
}

var itemShowCmd = &cobra.Command{
	Use:   "show <project> <number>",
	Short: "Show a work item and its comments",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return itemShowRun(args[0], args[1])
	},
}

var itemEditCmd = &cobra.Command{
	Use:   "edit <project> <number>",
	Short: "Edit a work item",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return itemEditRun(cmd, args[0], args[1])
	},
}

var itemCommentCmd = &cobra.Command{
	Use:   "comment <project> <number> <text>",
	Short: "Comment on a work item",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return itemCommentRun(args[0], args[1], args[2])
	},
}

var itemActCmd = &cobra.Command{
	Use:   "act <project> <number> <action> [hours]",
	Short: "Apply a kanban action to a work item",
	Long: `Apply a kanban action: log, start, review, approve, reject, cancel, restore.
Logging hours on a pending item also starts it.`,
	Args: cobra.RangeArgs(3, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		return itemActRun(args[0], args[1], args[2], optionalArg(args, 3))
	},
}

var logCmd = &cobra.Command{
	Use:   "log <project> [<number> <hours>]",
	Short: "Log hours on a work item and show today's total",
	Long: `Log hours against a work item of the active sprint. With only a project,
show what you logged today against your daily availability.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 && len(args) != 3 {
			return fmt.Errorf("accepts <project> or <project> <number> <hours>, received %d arg(s)", len(args))
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 3 {
			if err := itemActRun(args[0], args[1], string(models.ActionLog), args[2]); err != nil {
				return err
			}
		}
		return hoursTodayRun(args[0])
	},
}

func init() {
	itemCreateCmd.Flags().StringVar(&itemDescription, "description", "", "Description")
	itemCreateCmd.Flags().IntVarP(&itemPriority, "priority", "p", 0, "Priority 1 (highest) to 5 (default 3)")
	itemCreateCmd.Flags().IntVarP(&itemEstimate, "estimate", "e", 0, "Estimated hours")

	itemEditCmd.Flags().StringVar(&itemTitle, "title", "", "New title")
	itemEditCmd.Flags().StringVar(&itemDescription, "description", "", "New description")
	itemEditCmd.Flags().IntVarP(&itemPriority, "priority", "p", 0, "New priority 1-5")
	itemEditCmd.Flags().IntVarP(&itemEstimate, "estimate", "e", 0, "New estimated hours")

	itemListCmd.Flags().BoolVar(&itemBacklogOnly, "backlog", false, "Only items in the product backlog")

	itemCmd.AddCommand(itemCreateCmd)
	itemCmd.AddCommand(itemListCmd)
	itemCmd.AddCommand(itemShowCmd)
	itemCmd.AddCommand(itemEditCmd)
	itemCmd.AddCommand(itemCommentCmd)
	itemCmd.AddCommand(itemActCmd)
	rootCmd.AddCommand(itemCmd)
	rootCmd.AddCommand(logCmd)
}

// findItem resolves a work item by its project-scoped number.
func findItem(ctx context.Context, e *engine.Engine, actor, ref, numberArg string) (*models.WorkItem, error) {
	n, err := parseNumber(numberArg)
	if err != nil {
		return nil, err
	}
	return e.FindItem(ctx, actor, ref, n)
}

func printItems(items []*models.WorkItem) {
	if len(items) == 0 {
		ui.Info("No work items.")
		return
	}
	table := ui.Table([]string{"#", "Title", "Priority", "State", "Estimate", "Worked"})
	for _, w := range items {
		estimate := "-"
		if w.EstimatedHours != nil {
			estimate = fmt.Sprintf("%dh", *w.EstimatedHours)
		}
		table.Append([]string{
			strconv.Itoa(w.Number),
			w.Title,
			output.PriorityLabel(w.Priority),
			output.StatusColor(string(w.State)),
			estimate,
			fmt.Sprintf("%dh", w.WorkedHours),
		})
	}
	table.Render()
}

func itemCreateRun(cmd *cobra.Command, ref, title string) error {
	e, actor, err := session()
	if err != nil {
		return err
	}

	in := engine.NewItem{Title: title, Description: itemDescription, Priority: itemPriority}
	if cmd.Flags().Changed("estimate") {
		in.EstimatedHours = &itemEstimate
	}
	if dryRun {
		ui.DryRunMsg("Would add %q to the backlog of %s", title, ref)
		return nil
	}

	w, err := e.CreateItem(context.Background(), actor, ref, in)
	if err != nil {
		return err
	}
	ui.Success("Created #%d %s", w.Number, output.Cyan(w.Title))
	return nil
}

func itemListRun(ref string) error {
	e, actor, err := session()
	if err != nil {
		return err
	}
	ctx := context.Background()

	var items []*models.WorkItem
	if itemBacklogOnly {
		items, err = e.Backlog(ctx, actor, ref)
	} else {
		items, err = e.Items(ctx, actor, ref)
	}
	if err != nil {
		return err
	}
	printItems(items)
	return nil
}

func itemShowRun(ref, numberArg string) error {
	e, actor, err := session()
	if err != nil {
		return err
	}
	ctx := context.Background()

	w, err := findItem(ctx, e, actor, ref, numberArg)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "#%d %s  %s  %s\n", w.Number, output.Cyan(w.Title),
		output.PriorityLabel(w.Priority), output.StatusColor(string(w.State)))
	if w.Description != "" {
		fmt.Fprintf(ui.Out, "  %s\n", w.Description)
	}
	estimate := "unestimated"
	if w.EstimatedHours != nil {
		estimate = fmt.Sprintf("%dh", *w.EstimatedHours)
	}
	fmt.Fprintf(ui.Out, "  Estimate: %s  Worked: %dh\n", estimate, w.WorkedHours)
	if w.SprintID != nil {
		if sp, err := e.Sprint(ctx, actor, *w.SprintID); err == nil {
			fmt.Fprintf(ui.Out, "  Sprint:   %s\n", sp.Name)
		}
	}

	comments, err := e.Comments(ctx, actor, w.ID)
	if err != nil {
		return err
	}
	if len(comments) > 0 {
		fmt.Fprintf(ui.Out, "\nComments (%d):\n", len(comments))
		for _, c := range comments {
			author := "unknown"
			if c.AuthorID != nil {
				author = *c.AuthorID
			}
			fmt.Fprintf(ui.Out, "  %s %s: %s\n", c.CreatedAt.Format("2006-01-02 15:04"), output.Cyan(author), c.Text)
		}
	}
	return nil
}

func itemEditRun(cmd *cobra.Command, ref, numberArg string) error {
	e, actor, err := session()
	if err != nil {
		return err
	}
	ctx := context.Background()

	w, err := findItem(ctx, e, actor, ref, numberArg)
	if err != nil {
		return err
	}

	var c engine.ItemChanges
	flags := cmd.Flags()
	if flags.Changed("title") {
		c.Title = &itemTitle
	}
	if flags.Changed("description") {
		c.Description = &itemDescription
	}
	if flags.Changed("priority") {
		c.Priority = &itemPriority
	}
	if flags.Changed("estimate") {
		c.EstimatedHours = &itemEstimate
	}
	if dryRun {
		ui.DryRunMsg("Would edit #%d", w.Number)
		return nil
	}

	w, err = e.EditItem(ctx, actor, w.ID, c)
	if err != nil {
		return err
	}
	ui.Success("Updated #%d %s", w.Number, output.Cyan(w.Title))
	return nil
}

func itemCommentRun(ref, numberArg, text string) error {
	e, actor, err := session()
	if err != nil {
		return err
	}
	ctx := context.Background()

	w, err := findItem(ctx, e, actor, ref, numberArg)
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would comment on #%d", w.Number)
		return nil
	}
	if _, err := e.AddComment(ctx, actor, w.ID, text); err != nil {
		return err
	}
	ui.Success("Commented on #%d", w.Number)
	return nil
}

func itemActRun(ref, numberArg, actionArg, hoursArg string) error {
	e, actor, err := session()
	if err != nil {
		return err
	}
	action, err := models.ParseWorkItemAction(actionArg)
	if err != nil {
		return err
	}
	hours := 0
	if hoursArg != "" {
		if hours, err = parseHours(hoursArg); err != nil {
			return err
		}
	}
	ctx := context.Background()

	w, err := findItem(ctx, e, actor, ref, numberArg)
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would %s #%d", action, w.Number)
		return nil
	}

	eff, err := e.ApplyWorkItemAction(ctx, actor, w.ID, action, hours, today())
	if err != nil {
		return err
	}
	if eff.Hours > 0 {
		ui.Success("Logged %dh on #%d %s", eff.Hours, w.Number, w.Title)
	}
	if eff.From != eff.To {
		ui.Success("#%d %s: %s -> %s", w.Number, w.Title,
			output.StatusColor(string(eff.From)), output.StatusColor(string(eff.To)))
	}
	return nil
}

func hoursTodayRun(ref string) error {
	e, actor, err := session()
	if err != nil {
		return err
	}

	d, err := e.HoursToday(context.Background(), actor, ref, today())
	if err != nil {
		return err
	}
	fmt.Fprintf(ui.Out, "Today %s: %dh logged of %dh available, %dh remaining\n",
		d.Date.Format(models.DateLayout), d.Logged, d.Available, d.Remaining())
	return nil
}
