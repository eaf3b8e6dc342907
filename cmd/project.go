package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/scrum/internal/engine"
	"github.com/joescharf/scrum/internal/guard"
	"github.com/joescharf/scrum/internal/models"
	"github.com/joescharf/scrum/internal/output"
	"github.com/joescharf/scrum/internal/project"
)

var (
	projectDescription string
	projectStart       string
	projectEnd         string
	projectSprintDays  int
	projectName        string
	projectState       string
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage Scrum projects",
	Long:  "Create, edit, list, and move projects through their lifecycle.",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a pending project",
	Long:  "Create a project with the default roles. The creator becomes its Scrum Master.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectCreateRun(cmd, args[0])
	},
}

var projectListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List projects you can view",
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectListRun()
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show <project>",
	Short: "Show project details, team, and sprints",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectShowRun(args[0])
	},
}

var projectEditCmd = &cobra.Command{
	Use:   "edit <project>",
	Short: "Edit a pending or active project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectEditRun(cmd, args[0])
	},
}

var projectCheckCmd = &cobra.Command{
	Use:   "check <project> <start|finish>",
	Short: "Evaluate a transition without applying it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectCheckRun(args[0], args[1])
	},
}

var projectStartCmd = &cobra.Command{
	Use:   "start <project>",
	Short: "Start a pending project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectTransitionRun(args[0], "start")
	},
}

var projectFinishCmd = &cobra.Command{
	Use:   "finish <project>",
	Short: "Close an active project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectTransitionRun(args[0], "finish")
	},
}

var projectCancelCmd = &cobra.Command{
	Use:   "cancel <project>",
	Short: "Cancel a pending or active project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectTransitionRun(args[0], "cancel")
	},
}

var projectCalendarCmd = &cobra.Command{
	Use:   "calendar <project>",
	Short: "List the planned starts and ends of a project and its sprints",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectCalendarRun(args[0])
	},
}

func init() {
	projectCreateCmd.Flags().StringVar(&projectDescription, "description", "", "Project description")
	projectCreateCmd.Flags().StringVar(&projectStart, "start", "", "Planned start date (YYYY-MM-DD)")
	projectCreateCmd.Flags().StringVar(&projectEnd, "end", "", "Planned end date (YYYY-MM-DD)")
	projectCreateCmd.Flags().IntVar(&projectSprintDays, "sprint-days", 0, "Default sprint length in days (default from config)")

	projectEditCmd.Flags().StringVar(&projectName, "name", "", "New project name")
	projectEditCmd.Flags().StringVar(&projectDescription, "description", "", "New description")
	projectEditCmd.Flags().StringVar(&projectStart, "start", "", "New planned start date (YYYY-MM-DD)")
	projectEditCmd.Flags().StringVar(&projectEnd, "end", "", "New planned end date (YYYY-MM-DD)")
	projectEditCmd.Flags().IntVar(&projectSprintDays, "sprint-days", 0, "New default sprint length in days")

	projectListCmd.Flags().StringVar(&projectState, "state", "", "Filter by state (pending, active, closed, cancelled)")

	projectCmd.AddCommand(projectCreateCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectShowCmd)
	projectCmd.AddCommand(projectEditCmd)
	projectCmd.AddCommand(projectCheckCmd)
	projectCmd.AddCommand(projectStartCmd)
	projectCmd.AddCommand(projectFinishCmd)
	projectCmd.AddCommand(projectCancelCmd)
	projectCmd.AddCommand(projectCalendarCmd)
	rootCmd.AddCommand(projectCmd)
}

func projectCreateRun(cmd *cobra.Command, name string) error {
	e, actor, err := session()
	if err != nil {
		return err
	}

	in := engine.NewProject{Name: name, Description: projectDescription}
	if in.StartDate, err = parseDateFlag(projectStart); err != nil {
		return err
	}
	if in.EndDate, err = parseDateFlag(projectEnd); err != nil {
		return err
	}
	days := viper.GetInt("project.default_sprint_days")
	if cmd.Flags().Changed("sprint-days") {
		days = projectSprintDays
	}
	in.DefaultSprintDays = &days

	if dryRun {
		ui.DryRunMsg("Would create project %s", name)
		return nil
	}

	p, err := e.CreateProject(context.Background(), actor, in, today())
	if err != nil {
		return err
	}
	ui.Success("Created project %s (%s)", output.Cyan(p.Name), p.ID)
	return nil
}

func projectListRun() error {
	e, actor, err := session()
	if err != nil {
		return err
	}

	var states []models.ProjectState
	if projectState != "" {
		st, err := models.ParseProjectState(projectState)
		if err != nil {
			return err
		}
		states = append(states, st)
	}

	projects, err := e.Projects(context.Background(), actor, states...)
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		ui.Info("No projects. Use 'scrum project create' to create one.")
		return nil
	}

	table := ui.Table([]string{"Name", "State", "Start", "End", "Sprint Days"})
	for _, p := range projects {
		table.Append([]string{
			p.Name,
			output.StatusColor(string(p.State)),
			models.FormatDate(p.StartDate),
			models.FormatDate(p.EndDate),
			fmt.Sprintf("%d", p.SprintLength()),
		})
	}
	table.Render()
	return nil
}

func projectShowRun(ref string) error {
	e, actor, err := session()
	if err != nil {
		return err
	}
	ctx := context.Background()

	p, err := e.Project(ctx, actor, ref)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(p.Name), output.StatusColor(string(p.State)))
	if p.Description != "" {
		fmt.Fprintf(ui.Out, "  %s\n", p.Description)
	}
	fmt.Fprintf(ui.Out, "  ID:          %s\n", p.ID)
	fmt.Fprintf(ui.Out, "  Planned:     %s .. %s\n", models.FormatDate(p.StartDate), models.FormatDate(p.EndDate))
	if p.ActualStart != nil {
		fmt.Fprintf(ui.Out, "  Actual:      %s .. %s\n", models.FormatDate(p.ActualStart), models.FormatDate(p.ActualEnd))
	}
	fmt.Fprintf(ui.Out, "  Sprint days: %d\n", p.SprintLength())

	team, err := e.Team(ctx, actor, p.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(ui.Out, "\nTeam (%d):\n", len(team))
	for _, m := range team {
		fmt.Fprintf(ui.Out, "  %-16s %s\n", m.User.ID, m.Role.Name)
	}

	sprints, err := e.Sprints(ctx, actor, p.ID)
	if err != nil {
		return err
	}
	if len(sprints) > 0 {
		fmt.Fprintf(ui.Out, "\nSprints (%d):\n", len(sprints))
		for _, sp := range sprints {
			fmt.Fprintf(ui.Out, "  %-16s %s  %s .. %s\n", sp.Name, output.StatusColor(string(sp.State)),
				sp.StartDate.Format(models.DateLayout), sp.EndDate.Format(models.DateLayout))
		}
	}
	return nil
}

func projectEditRun(cmd *cobra.Command, ref string) error {
	e, actor, err := session()
	if err != nil {
		return err
	}

	var c project.Changes
	flags := cmd.Flags()
	if flags.Changed("name") {
		c.Name = &projectName
	}
	if flags.Changed("description") {
		c.Description = &projectDescription
	}
	if flags.Changed("start") {
		if c.StartDate, err = parseDateFlag(projectStart); err != nil {
			return err
		}
	}
	if flags.Changed("end") {
		if c.EndDate, err = parseDateFlag(projectEnd); err != nil {
			return err
		}
	}
	if flags.Changed("sprint-days") {
		c.DefaultSprintDays = &projectSprintDays
	}

	if dryRun {
		ui.DryRunMsg("Would edit project %s", ref)
		return nil
	}

	p, err := e.EditProject(context.Background(), actor, ref, c)
	if err != nil {
		return err
	}
	ui.Success("Updated project %s", output.Cyan(p.Name))
	return nil
}

func projectCheckRun(ref, transition string) error {
	e, actor, err := session()
	if err != nil {
		return err
	}
	ctx := context.Background()

	var res guard.Result
	switch transition {
	case "start":
		res, err = e.CheckStartProject(ctx, actor, ref, today())
	case "finish":
		res, err = e.CheckFinishProject(ctx, actor, ref, today())
	default:
		return fmt.Errorf("unknown project transition: %q", transition)
	}
	if err != nil {
		return err
	}
	return reportCheck("project "+ref, transition, res)
}

func projectTransitionRun(ref, transition string) error {
	e, actor, err := session()
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would %s project %s", transition, ref)
		return nil
	}
	ctx := context.Background()

	var warnings []string
	switch transition {
	case "start":
		warnings, err = e.StartProject(ctx, actor, ref, today())
	case "finish":
		warnings, err = e.FinishProject(ctx, actor, ref, today())
	case "cancel":
		err = e.CancelProject(ctx, actor, ref, today())
	}
	if err != nil {
		return err
	}
	showWarnings(warnings)
	ui.Success("Project %s: %s", output.Cyan(ref), transition)
	return nil
}

func projectCalendarRun(ref string) error {
	e, actor, err := session()
	if err != nil {
		return err
	}

	events, err := e.Calendar(context.Background(), actor, ref)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		ui.Info("Nothing planned.")
		return nil
	}

	table := ui.Table([]string{"Date", "Event", "Name", "Status"})
	for _, ev := range events {
		status := "planned"
		if ev.Done {
			status = output.Green("done")
		}
		table.Append([]string{
			ev.Date.Format(models.DateLayout),
			fmt.Sprintf("%s %s", ev.Subject, ev.Moment),
			ev.Name,
			status,
		})
	}
	table.Render()
	return nil
}
