package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/joescharf/scrum/internal/output"
)

var teamCmd = &cobra.Command{
	Use:   "team",
	Short: "Manage the team of a project",
}

var teamListCmd = &cobra.Command{
	Use:     "list <project>",
	Aliases: []string{"ls"},
	Short:   "List team members and their roles",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return teamListRun(args[0])
	},
}

var teamSetCmd = &cobra.Command{
	Use:     "set <project> <user> <role>",
	Aliases: []string{"add"},
	Short:   "Add a member or change their role",
	Long:    "Give a user a role on the project, replacing any role they held.",
	Args:    cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return teamSetRun(args[0], args[1], args[2])
	},
}

var teamRemoveCmd = &cobra.Command{
	Use:     "remove <project> <user>",
	Aliases: []string{"rm"},
	Short:   "Remove a member from the team",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return teamRemoveRun(args[0], args[1])
	},
}

func init() {
	teamCmd.AddCommand(teamListCmd)
	teamCmd.AddCommand(teamSetCmd)
	teamCmd.AddCommand(teamRemoveCmd)
	rootCmd.AddCommand(teamCmd)
}

func teamListRun(ref string) error {
	e, actor, err := session()
	if err != nil {
		return err
	}

	team, err := e.Team(context.Background(), actor, ref)
	if err != nil {
		return err
	}
	if len(team) == 0 {
		ui.Info("No team members.")
		return nil
	}

	table := ui.Table([]string{"User", "Name", "Role", "Permissions"})
	for _, m := range team {
		table.Append([]string{m.User.ID, m.User.Name, m.Role.Name, joinPermissions(m.Role.Permissions)})
	}
	table.Render()
	return nil
}

func teamSetRun(ref, userID, role string) error {
	e, actor, err := session()
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would give %s the role %s", userID, role)
		return nil
	}
	if err := e.AssignRole(context.Background(), actor, userID, ref, role); err != nil {
		return err
	}
	ui.Success("%s is now %s", output.Cyan(userID), role)
	return nil
}

func teamRemoveRun(ref, userID string) error {
	e, actor, err := session()
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would remove %s from the team", userID)
		return nil
	}
	if err := e.RemoveRole(context.Background(), actor, userID, ref); err != nil {
		return err
	}
	ui.Success("Removed %s from the team", output.Cyan(userID))
	return nil
}
