package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/joescharf/scrum/internal/engine"
	"github.com/joescharf/scrum/internal/guard"
	"github.com/joescharf/scrum/internal/llm"
	"github.com/joescharf/scrum/internal/models"
	"github.com/joescharf/scrum/internal/output"
	"github.com/joescharf/scrum/internal/sprint"
)

var (
	sprintDescription string
	sprintStart       string
	sprintDays        int
	sprintName        string
	sprintDraft       bool
)

var sprintCmd = &cobra.Command{
	Use:   "sprint",
	Short: "Plan and run sprints",
	Long: `Plan sprints, staff them, fill their backlogs, and move them through
their lifecycle. A sprint is named by id or name; commands that take an
optional sprint default to the active one.`,
}

var sprintCreateCmd = &cobra.Command{
	Use:   "create <project> <name>",
	Short: "Plan a pending sprint",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sprintCreateRun(args[0], args[1])
	},
}

var sprintListCmd = &cobra.Command{
	Use:     "list <project>",
	Aliases: []string{"ls"},
	Short:   "List the sprints of a project",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sprintListRun(args[0])
	},
}

var sprintShowCmd = &cobra.Command{
	Use:   "show <project> [sprint]",
	Short: "Show a sprint's team, backlog, and capacity",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sprintShowRun(args[0], optionalArg(args, 1))
	},
}

var sprintEditCmd = &cobra.Command{
	Use:   "edit <project> <sprint>",
	Short: "Edit a sprint",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sprintEditRun(cmd, args[0], args[1])
	},
}

var sprintExtendCmd = &cobra.Command{
	Use:   "extend <project> <sprint> <end-date>",
	Short: "Move the end date of an active sprint",
	Long:  "Move the end date of an active sprint. The burndown keeps the originally planned end.",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sprintExtendRun(args[0], args[1], args[2])
	},
}

var sprintCheckCmd = &cobra.Command{
	Use:   "check <project> <sprint> <start|finish>",
	Short: "Evaluate a transition without applying it",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sprintCheckRun(args[0], args[1], args[2])
	},
}

var sprintStartCmd = &cobra.Command{
	Use:   "start <project> <sprint>",
	Short: "Start a pending sprint",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sprintStartRun(args[0], args[1])
	},
}

var sprintFinishCmd = &cobra.Command{
	Use:   "finish <project> [sprint]",
	Short: "Close a sprint and roll its open items back to the backlog",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sprintFinishRun(args[0], optionalArg(args, 1))
	},
}

var sprintMemberCmd = &cobra.Command{
	Use:   "member",
	Short: "Manage the sprint team",
}

var sprintMemberAddCmd = &cobra.Command{
	Use:   "add <project> <sprint> <user> <daily-hours>",
	Short: "Add a developer to the sprint",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sprintMemberRun(args[0], args[1], args[2], args[3], false)
	},
}

var sprintMemberHoursCmd = &cobra.Command{
	Use:   "hours <project> <sprint> <user> <daily-hours>",
	Short: "Change a member's daily availability",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sprintMemberRun(args[0], args[1], args[2], args[3], true)
	},
}

var sprintMemberRemoveCmd = &cobra.Command{
	Use:     "remove <project> <sprint> <user>",
	Aliases: []string{"rm"},
	Short:   "Remove a member from the sprint",
	Args:    cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sprintMemberRemoveRun(args[0], args[1], args[2])
	},
}

var sprintBacklogCmd = &cobra.Command{
	Use:   "backlog",
	Short: "Manage the sprint backlog",
}

var sprintBacklogAddCmd = &cobra.Command{
	Use:   "add <project> <sprint> <item> <user>",
	Short: "Plan a work item into the sprint and assign it",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sprintBacklogAddRun(args[0], args[1], args[2], args[3])
	},
}

var sprintBacklogRemoveCmd = &cobra.Command{
	Use:     "remove <project> <sprint> <item>",
	Aliases: []string{"rm"},
	Short:   "Return a work item to the product backlog",
	Args:    cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sprintBacklogRemoveRun(args[0], args[1], args[2])
	},
}

var sprintReviewCmd = &cobra.Command{
	Use:   "review <project> <sprint> [text]",
	Short: "Record or draft the sprint review",
	Long: `Record the sprint review text. With --draft, an LLM drafts the review
from the sprint backlog and burndown and the draft is recorded.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sprintReviewRun(args[0], args[1], optionalArg(args, 2))
	},
}

func init() {
	sprintCreateCmd.Flags().StringVar(&sprintDescription, "description", "", "Sprint goal")
	sprintCreateCmd.Flags().StringVar(&sprintStart, "start", "", "Start date (YYYY-MM-DD, default today)")
	sprintCreateCmd.Flags().IntVar(&sprintDays, "days", 0, "Length in days (default: project sprint length)")

	sprintEditCmd.Flags().StringVar(&sprintName, "name", "", "New name")
	sprintEditCmd.Flags().StringVar(&sprintDescription, "description", "", "New goal")
	sprintEditCmd.Flags().StringVar(&sprintStart, "start", "", "New start date (YYYY-MM-DD)")
	sprintEditCmd.Flags().IntVar(&sprintDays, "days", 0, "New length in days")

	sprintReviewCmd.Flags().BoolVar(&sprintDraft, "draft", false, "Draft the review with the LLM")

	sprintMemberCmd.AddCommand(sprintMemberAddCmd)
	sprintMemberCmd.AddCommand(sprintMemberHoursCmd)
	sprintMemberCmd.AddCommand(sprintMemberRemoveCmd)
	sprintBacklogCmd.AddCommand(sprintBacklogAddCmd)
	sprintBacklogCmd.AddCommand(sprintBacklogRemoveCmd)

	sprintCmd.AddCommand(sprintCreateCmd)
	sprintCmd.AddCommand(sprintListCmd)
	sprintCmd.AddCommand(sprintShowCmd)
	sprintCmd.AddCommand(sprintEditCmd)
	sprintCmd.AddCommand(sprintExtendCmd)
	sprintCmd.AddCommand(sprintCheckCmd)
	sprintCmd.AddCommand(sprintStartCmd)
	sprintCmd.AddCommand(sprintFinishCmd)
	sprintCmd.AddCommand(sprintMemberCmd)
	sprintCmd.AddCommand(sprintBacklogCmd)
	sprintCmd.AddCommand(sprintReviewCmd)
	rootCmd.AddCommand(sprintCmd)
}

func optionalArg(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return ""
}

func sprintCreateRun(ref, name string) error {
	e, actor, err := session()
	if err != nil {
		return err
	}

	in := engine.NewSprint{Name: name, Description: sprintDescription, StartDate: today(), Days: sprintDays}
	if sprintStart != "" {
		if in.StartDate, err = models.ParseDate(sprintStart); err != nil {
			return err
		}
	}
	if dryRun {
		ui.DryRunMsg("Would plan sprint %s starting %s", name, in.StartDate.Format(models.DateLayout))
		return nil
	}

	sp, warnings, err := e.CreateSprint(context.Background(), actor, ref, in, today())
	if err != nil {
		return err
	}
	showWarnings(warnings)
	ui.Success("Planned sprint %s %s .. %s", output.Cyan(sp.Name),
		sp.StartDate.Format(models.DateLayout), sp.EndDate.Format(models.DateLayout))
	return nil
}

func sprintListRun(ref string) error {
	e, actor, err := session()
	if err != nil {
		return err
	}

	sprints, err := e.Sprints(context.Background(), actor, ref)
	if err != nil {
		return err
	}
	if len(sprints) == 0 {
		ui.Info("No sprints. Use 'scrum sprint create' to plan one.")
		return nil
	}

	table := ui.Table([]string{"Name", "State", "Start", "End", "Days", "Baseline"})
	for _, sp := range sprints {
		baseline := "-"
		if sp.BaselineCost != nil {
			baseline = fmt.Sprintf("%dh", *sp.BaselineCost)
		}
		table.Append([]string{
			sp.Name,
			output.StatusColor(string(sp.State)),
			sp.StartDate.Format(models.DateLayout),
			sp.EndDate.Format(models.DateLayout),
			strconv.Itoa(sp.Days()),
			baseline,
		})
	}
	table.Render()
	return nil
}

func sprintShowRun(ref, sprintRef string) error {
	e, actor, err := session()
	if err != nil {
		return err
	}
	ctx := context.Background()

	sp, err := e.FindSprint(ctx, actor, ref, sprintRef)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(sp.Name), output.StatusColor(string(sp.State)))
	if sp.Description != "" {
		fmt.Fprintf(ui.Out, "  %s\n", sp.Description)
	}
	fmt.Fprintf(ui.Out, "  Dates:    %s .. %s (%d days)\n",
		sp.StartDate.Format(models.DateLayout), sp.EndDate.Format(models.DateLayout), sp.Days())

	capacity, err := e.SprintCapacity(ctx, actor, sp.ID)
	if err != nil {
		return err
	}
	fit := output.Green("fits")
	if !capacity.Fits() {
		fit = output.Red("over capacity")
	}
	fmt.Fprintf(ui.Out, "  Capacity: %dh/day, %dh total, backlog %dh (%s)\n",
		capacity.DailyCapacity, capacity.TotalCapacity, capacity.BacklogCost, fit)
	if sp.Review != "" {
		fmt.Fprintf(ui.Out, "\nReview:\n%s\n", sp.Review)
	}

	members, err := e.SprintMembers(ctx, actor, sp.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(ui.Out, "\nMembers (%d):\n", len(members))
	for _, m := range members {
		fmt.Fprintf(ui.Out, "  %-16s %dh/day  %d item(s)\n", m.UserID, m.DailyHours, len(m.ItemIDs))
	}

	items, err := e.SprintBacklog(ctx, actor, sp.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(ui.Out, "\nBacklog (%d):\n", len(items))
	printItems(items)
	return nil
}

func sprintEditRun(cmd *cobra.Command, ref, sprintRef string) error {
	e, actor, err := session()
	if err != nil {
		return err
	}
	ctx := context.Background()

	sp, err := e.FindSprint(ctx, actor, ref, sprintRef)
	if err != nil {
		return err
	}

	var c sprint.Changes
	flags := cmd.Flags()
	if flags.Changed("name") {
		c.Name = &sprintName
	}
	if flags.Changed("description") {
		c.Description = &sprintDescription
	}
	if flags.Changed("start") {
		if c.StartDate, err = parseDateFlag(sprintStart); err != nil {
			return err
		}
	}
	if flags.Changed("days") {
		c.Days = &sprintDays
	}
	if dryRun {
		ui.DryRunMsg("Would edit sprint %s", sp.Name)
		return nil
	}

	sp, err = e.EditSprint(ctx, actor, sp.ID, c)
	if err != nil {
		return err
	}
	ui.Success("Updated sprint %s", output.Cyan(sp.Name))
	return nil
}

func sprintExtendRun(ref, sprintRef, endDate string) error {
	e, actor, err := session()
	if err != nil {
		return err
	}
	end, err := models.ParseDate(endDate)
	if err != nil {
		return err
	}
	ctx := context.Background()

	sp, err := e.FindSprint(ctx, actor, ref, sprintRef)
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would extend sprint %s to %s", sp.Name, endDate)
		return nil
	}
	if _, err := e.ExtendSprint(ctx, actor, sp.ID, end); err != nil {
		return err
	}
	ui.Success("Sprint %s now ends %s", output.Cyan(sp.Name), endDate)
	return nil
}

func sprintCheckRun(ref, sprintRef, transition string) error {
	e, actor, err := session()
	if err != nil {
		return err
	}
	ctx := context.Background()

	sp, err := e.FindSprint(ctx, actor, ref, sprintRef)
	if err != nil {
		return err
	}

	var res guard.Result
	switch transition {
	case "start":
		res, err = e.CheckStartSprint(ctx, actor, sp.ID, today())
	case "finish":
		res, err = e.CheckFinishSprint(ctx, actor, sp.ID, today())
	default:
		return fmt.Errorf("unknown sprint transition: %q", transition)
	}
	if err != nil {
		return err
	}
	return reportCheck("sprint "+sp.Name, transition, res)
}

func sprintStartRun(ref, sprintRef string) error {
	e, actor, err := session()
	if err != nil {
		return err
	}
	ctx := context.Background()

	sp, err := e.FindSprint(ctx, actor, ref, sprintRef)
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would start sprint %s", sp.Name)
		return nil
	}
	warnings, err := e.StartSprint(ctx, actor, sp.ID, today())
	if err != nil {
		return err
	}
	showWarnings(warnings)
	ui.Success("Started sprint %s", output.Cyan(sp.Name))
	return nil
}

func sprintFinishRun(ref, sprintRef string) error {
	e, actor, err := session()
	if err != nil {
		return err
	}
	ctx := context.Background()

	sp, err := e.FindSprint(ctx, actor, ref, sprintRef)
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would finish sprint %s", sp.Name)
		return nil
	}
	warnings, rolled, err := e.FinishSprint(ctx, actor, sp.ID, today())
	if err != nil {
		return err
	}
	showWarnings(warnings)
	for _, w := range rolled {
		ui.Info("#%d %s returned to the product backlog", w.Number, w.Title)
	}
	ui.Success("Finished sprint %s", output.Cyan(sp.Name))
	return nil
}

func sprintMemberRun(ref, sprintRef, userID, hoursArg string, update bool) error {
	e, actor, err := session()
	if err != nil {
		return err
	}
	hours, err := parseHours(hoursArg)
	if err != nil {
		return err
	}
	ctx := context.Background()

	sp, err := e.FindSprint(ctx, actor, ref, sprintRef)
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would set %s to %dh/day in sprint %s", userID, hours, sp.Name)
		return nil
	}
	if update {
		_, err = e.SetSprintMemberHours(ctx, actor, sp.ID, userID, hours)
	} else {
		_, err = e.AddSprintMember(ctx, actor, sp.ID, userID, hours)
	}
	if err != nil {
		return err
	}
	ui.Success("%s works %dh/day in sprint %s", output.Cyan(userID), hours, sp.Name)
	return nil
}

func sprintMemberRemoveRun(ref, sprintRef, userID string) error {
	e, actor, err := session()
	if err != nil {
		return err
	}
	ctx := context.Background()

	sp, err := e.FindSprint(ctx, actor, ref, sprintRef)
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would remove %s from sprint %s", userID, sp.Name)
		return nil
	}
	if err := e.RemoveSprintMember(ctx, actor, sp.ID, userID); err != nil {
		return err
	}
	ui.Success("Removed %s from sprint %s", output.Cyan(userID), sp.Name)
	return nil
}

func sprintBacklogAddRun(ref, sprintRef, itemArg, userID string) error {
	e, actor, err := session()
	if err != nil {
		return err
	}
	ctx := context.Background()

	sp, err := e.FindSprint(ctx, actor, ref, sprintRef)
	if err != nil {
		return err
	}
	item, err := findItem(ctx, e, actor, ref, itemArg)
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would plan #%d into sprint %s for %s", item.Number, sp.Name, userID)
		return nil
	}
	if err := e.PlanItem(ctx, actor, sp.ID, item.ID, userID); err != nil {
		return err
	}
	ui.Success("Planned #%d %s into sprint %s for %s", item.Number, item.Title, sp.Name, output.Cyan(userID))
	return nil
}

func sprintBacklogRemoveRun(ref, sprintRef, itemArg string) error {
	e, actor, err := session()
	if err != nil {
		return err
	}
	ctx := context.Background()

	sp, err := e.FindSprint(ctx, actor, ref, sprintRef)
	if err != nil {
		return err
	}
	item, err := findItem(ctx, e, actor, ref, itemArg)
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would return #%d to the product backlog", item.Number)
		return nil
	}
	if err := e.UnplanItem(ctx, actor, sp.ID, item.ID); err != nil {
		return err
	}
	ui.Success("Returned #%d %s to the product backlog", item.Number, item.Title)
	return nil
}

func sprintReviewRun(ref, sprintRef, text string) error {
	e, actor, err := session()
	if err != nil {
		return err
	}
	ctx := context.Background()

	sp, err := e.FindSprint(ctx, actor, ref, sprintRef)
	if err != nil {
		return err
	}

	if sprintDraft {
		if text, err = draftReview(ctx, e, actor, ref, sp); err != nil {
			return err
		}
		fmt.Fprint(ui.Out, text)
	}
	if text == "" {
		return fmt.Errorf("review text is required (or pass --draft)")
	}
	if dryRun {
		ui.DryRunMsg("Would record the review of sprint %s", sp.Name)
		return nil
	}
	if err := e.SetSprintReview(ctx, actor, sp.ID, text); err != nil {
		return err
	}
	ui.Success("Recorded review of sprint %s", output.Cyan(sp.Name))
	return nil
}

func draftReview(ctx context.Context, e *engine.Engine, actor, ref string, sp *models.Sprint) (string, error) {
	client := newLLMClient()
	if client == nil {
		return "", fmt.Errorf("LLM not configured: set anthropic.api_key in config or ANTHROPIC_API_KEY")
	}
	p, err := e.Project(ctx, actor, ref)
	if err != nil {
		return "", err
	}
	items, err := e.SprintBacklog(ctx, actor, sp.ID)
	if err != nil {
		return "", err
	}
	series, err := e.ComputeBurndown(ctx, actor, sp.ID, today())
	if err != nil {
		return "", err
	}

	ui.Info("Drafting review of sprint %s...", sp.Name)
	draft, err := client.DraftReview(ctx, llm.NewReviewInput(p.Name, sp, items, series))
	if err != nil {
		return "", err
	}
	return draft.Text(), nil
}
