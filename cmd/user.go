package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/scrum/internal/models"
	"github.com/joescharf/scrum/internal/output"
)

var (
	userName  string
	userEmail string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users and global permissions",
}

var userAddCmd = &cobra.Command{
	Use:   "add <id>",
	Short: "Register a user",
	Long:  "Register a user. The first user ever registered administers the system.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return userAddRun(args[0])
	},
}

var userListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List users",
	RunE: func(cmd *cobra.Command, args []string) error {
		return userListRun()
	},
}

var userGrantCmd = &cobra.Command{
	Use:   "grant <id> [permission...]",
	Short: "Set a user's global permissions",
	Long: `Replace a user's global permissions with the listed ones.
Global permissions: create_project, administer, audit. Pass none to clear.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return userGrantRun(args[0], args[1:])
	},
}

var userPermsCmd = &cobra.Command{
	Use:   "perms <id> [project]",
	Short: "Show what a user holds globally or on a project",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		object := "global"
		if len(args) > 1 {
			object = args[1]
		}
		return userPermsRun(args[0], object)
	},
}

var userDeactivateCmd = &cobra.Command{
	Use:   "deactivate <id>",
	Short: "Disable a user account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return userActiveRun(args[0], false)
	},
}

var userActivateCmd = &cobra.Command{
	Use:   "activate <id>",
	Short: "Re-enable a user account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return userActiveRun(args[0], true)
	},
}

func init() {
	userAddCmd.Flags().StringVar(&userName, "name", "", "Display name")
	userAddCmd.Flags().StringVar(&userEmail, "email", "", "Email address (required)")

	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userGrantCmd)
	userCmd.AddCommand(userPermsCmd)
	userCmd.AddCommand(userDeactivateCmd)
	userCmd.AddCommand(userActivateCmd)
	rootCmd.AddCommand(userCmd)
}

func userAddRun(id string) error {
	e, err := getEngine()
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would register user %s <%s>", id, userEmail)
		return nil
	}

	u := &models.User{ID: id, Name: userName, Email: userEmail}
	if err := e.RegisterUser(context.Background(), u); err != nil {
		return err
	}
	ui.Success("Registered user %s", output.Cyan(u.ID))
	return nil
}

func userListRun() error {
	e, err := getEngine()
	if err != nil {
		return err
	}
	ctx := context.Background()

	users, err := e.Users(ctx)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		ui.Info("No users registered. Use 'scrum user add' to register one.")
		return nil
	}

	table := ui.Table([]string{"ID", "Name", "Email", "Active", "Global"})
	for _, u := range users {
		perms, err := e.Permissions(ctx, u.ID, "global")
		if err != nil {
			return err
		}
		active := output.Green("yes")
		if !u.Active {
			active = output.Red("no")
		}
		table.Append([]string{u.ID, u.Name, u.Email, active, joinPermissions(perms)})
	}
	table.Render()
	return nil
}

func userGrantRun(id string, names []string) error {
	e, actor, err := session()
	if err != nil {
		return err
	}
	perms, err := parsePermissions(names)
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would set global permissions of %s to [%s]", id, joinPermissions(perms))
		return nil
	}
	if err := e.SetGlobalPermissions(context.Background(), actor, id, perms); err != nil {
		return err
	}
	ui.Success("Global permissions of %s: [%s]", output.Cyan(id), joinPermissions(perms))
	return nil
}

func userPermsRun(id, object string) error {
	e, err := getEngine()
	if err != nil {
		return err
	}
	perms, err := e.Permissions(context.Background(), id, object)
	if err != nil {
		return err
	}
	fmt.Fprintf(ui.Out, "%s on %s: [%s]\n", output.Cyan(id), object, joinPermissions(perms))
	return nil
}

func userActiveRun(id string, active bool) error {
	e, actor, err := session()
	if err != nil {
		return err
	}
	verb := "Deactivated"
	if active {
		verb = "Activated"
	}
	if dryRun {
		ui.DryRunMsg("Would mark %s active=%v", id, active)
		return nil
	}
	if err := e.SetUserActive(context.Background(), actor, id, active); err != nil {
		return err
	}
	ui.Success("%s user %s", verb, output.Cyan(id))
	return nil
}

func parsePermissions(names []string) ([]models.Permission, error) {
	perms := make([]models.Permission, 0, len(names))
	for _, n := range names {
		p, err := models.ParsePermission(strings.TrimSpace(n))
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, nil
}

func joinPermissions(perms []models.Permission) string {
	names := make([]string, len(perms))
	for i, p := range models.SortPermissions(perms) {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}
