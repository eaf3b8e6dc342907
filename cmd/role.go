package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/scrum/internal/output"
	"github.com/joescharf/scrum/internal/roles"
)

var (
	rolePerms  []string
	roleFile   string
	roleFormat string
)

var roleCmd = &cobra.Command{
	Use:   "role",
	Short: "Manage the roles of a project",
	Long: `Manage project roles. A role is a named set of project permissions:
manage_team, manage_project, manage_backlog, develop.`,
}

var roleListCmd = &cobra.Command{
	Use:     "list <project>",
	Aliases: []string{"ls"},
	Short:   "List roles and their permissions",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return roleListRun(args[0])
	},
}

var roleCreateCmd = &cobra.Command{
	Use:   "create <project> <name>",
	Short: "Create a role",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return roleCreateRun(args[0], args[1])
	},
}

var roleRenameCmd = &cobra.Command{
	Use:   "rename <project> <name> <new-name>",
	Short: "Rename a role",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return roleRenameRun(args[0], args[1], args[2])
	},
}

var roleDeleteCmd = &cobra.Command{
	Use:     "delete <project> <name>",
	Aliases: []string{"rm"},
	Short:   "Delete a role nobody holds",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return roleDeleteRun(args[0], args[1])
	},
}

var roleGrantCmd = &cobra.Command{
	Use:   "grant <project> <role> <permission>",
	Short: "Add a permission to a role",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return rolePermissionRun(args[0], args[1], args[2], true)
	},
}

var roleRevokeCmd = &cobra.Command{
	Use:   "revoke <project> <role> <permission>",
	Short: "Remove a permission from a role",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return rolePermissionRun(args[0], args[1], args[2], false)
	},
}

var roleExportCmd = &cobra.Command{
	Use:   "export <project>",
	Short: "Export the roles of a project as JSON or YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return roleExportRun(args[0])
	},
}

var roleImportCmd = &cobra.Command{
	Use:   "import <project> <file>",
	Short: "Create the roles listed in a JSON or YAML file",
	Long:  "Create each listed role whose name is not taken yet. Existing roles are left untouched.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return roleImportRun(args[0], args[1])
	},
}

func init() {
	roleCreateCmd.Flags().StringSliceVarP(&rolePerms, "perm", "p", nil, "Permission to grant (repeatable)")
	roleExportCmd.Flags().StringVarP(&roleFile, "file", "f", "", "Write to file instead of stdout")
	roleExportCmd.Flags().StringVar(&roleFormat, "format", "", "Output format: json, yaml (default from file name, else json)")
	roleImportCmd.Flags().StringVar(&roleFormat, "format", "", "Input format: json, yaml (default from file name)")

	roleCmd.AddCommand(roleListCmd)
	roleCmd.AddCommand(roleCreateCmd)
	roleCmd.AddCommand(roleRenameCmd)
	roleCmd.AddCommand(roleDeleteCmd)
	roleCmd.AddCommand(roleGrantCmd)
	roleCmd.AddCommand(roleRevokeCmd)
	roleCmd.AddCommand(roleExportCmd)
	roleCmd.AddCommand(roleImportCmd)
	rootCmd.AddCommand(roleCmd)
}

func roleListRun(ref string) error {
	e, actor, err := session()
	if err != nil {
		return err
	}

	list, err := e.Roles(context.Background(), actor, ref)
	if err != nil {
		return err
	}

	table := ui.Table([]string{"Role", "Permissions"})
	for _, r := range list {
		table.Append([]string{r.Name, joinPermissions(r.Permissions)})
	}
	table.Render()
	return nil
}

func roleCreateRun(ref, name string) error {
	e, actor, err := session()
	if err != nil {
		return err
	}
	perms, err := parsePermissions(rolePerms)
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would create role %s with [%s]", name, joinPermissions(perms))
		return nil
	}

	r, err := e.CreateRole(context.Background(), actor, ref, name, perms)
	if err != nil {
		return err
	}
	ui.Success("Created role %s [%s]", output.Cyan(r.Name), joinPermissions(r.Permissions))
	return nil
}

func roleRenameRun(ref, name, newName string) error {
	e, actor, err := session()
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would rename role %s to %s", name, newName)
		return nil
	}
	if _, err := e.RenameRole(context.Background(), actor, ref, name, newName); err != nil {
		return err
	}
	ui.Success("Renamed role %s to %s", name, output.Cyan(newName))
	return nil
}

func roleDeleteRun(ref, name string) error {
	e, actor, err := session()
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would delete role %s", name)
		return nil
	}
	if err := e.DeleteRole(context.Background(), actor, ref, name); err != nil {
		return err
	}
	ui.Success("Deleted role %s", name)
	return nil
}

func rolePermissionRun(ref, name, permName string, grant bool) error {
	e, actor, err := session()
	if err != nil {
		return err
	}
	perms, err := parsePermissions([]string{permName})
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would change %s on role %s", permName, name)
		return nil
	}

	ctx := context.Background()
	if grant {
		err = e.GrantRolePermission(ctx, actor, ref, name, perms[0])
	} else {
		err = e.RevokeRolePermission(ctx, actor, ref, name, perms[0])
	}
	if err != nil {
		return err
	}
	if grant {
		ui.Success("Granted %s to role %s", perms[0], output.Cyan(name))
	} else {
		ui.Success("Revoked %s from role %s", perms[0], output.Cyan(name))
	}
	return nil
}

func roleExportRun(ref string) error {
	e, actor, err := session()
	if err != nil {
		return err
	}

	specs, err := e.ExportRoles(context.Background(), actor, ref)
	if err != nil {
		return err
	}

	format := roles.Format(strings.ToLower(roleFormat))
	if format == "" {
		format = roles.FormatForPath(roleFile)
	}
	data, err := roles.EncodeRoles(specs, format)
	if err != nil {
		return err
	}

	if roleFile == "" {
		_, err = ui.Out.Write(data)
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would write %d role(s) to %s", len(specs), roleFile)
		return nil
	}
	if err := os.WriteFile(roleFile, data, 0o644); err != nil {
		return fmt.Errorf("write role list: %w", err)
	}
	ui.Success("Exported %d role(s) to %s", len(specs), roleFile)
	return nil
}

func roleImportRun(ref, path string) error {
	e, actor, err := session()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read role list: %w", err)
	}
	format := roles.Format(strings.ToLower(roleFormat))
	if format == "" {
		format = roles.FormatForPath(path)
	}
	specs, err := roles.DecodeRoles(data, format)
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would import %d role(s) into %s", len(specs), ref)
		return nil
	}

	res, err := e.ImportRoles(context.Background(), actor, ref, specs)
	if err != nil {
		return err
	}
	for _, r := range res.Created {
		ui.Success("Created role %s [%s]", output.Cyan(r.Name), joinPermissions(r.Permissions))
	}
	for _, name := range res.Skipped {
		ui.VerboseLog("Skipped existing role %s", name)
	}
	ui.Info("Imported %d role(s), skipped %d", len(res.Created), len(res.Skipped))
	return nil
}
