package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"rivo_backend/internal/auth/policy"
	authservice "rivo_backend/internal/auth/service"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// roleFile is the on-disk shape of a roles definition:
//
//	roles:
//	  - name: admin
//	    description: Full dashboard access
//	    permissions: [view_all_clients, assign_client, change_client_stage, change_client]
type roleFile struct {
	Roles []struct {
		Name        string   `yaml:"name"`
		Description string   `yaml:"description"`
		Permissions []string `yaml:"permissions"`
	} `yaml:"roles"`
}

// RolesCmd returns the roles command group.
func RolesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roles",
		Short: "Manage roles and their permissions",
	}
	cmd.AddCommand(rolesSyncCmd())
	cmd.AddCommand(rolesPermissionsCmd())
	return cmd
}

func rolesSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Upsert roles from a YAML file",
		Long: `Upsert every role in the file and replace its permission set.
Roles that are not listed are left alone.

Examples:
  rivoctl roles sync -f deploy/roles.yaml
  cat roles.yaml | rivoctl roles sync -f -`,
		Args: cobra.NoArgs,
		RunE: runRolesSync,
	}
	cmd.Flags().StringP("file", "f", "", "YAML file with a roles list, or - for stdin (required)")
	cmd.Flags().Bool("dry-run", false, "Validate the file without writing")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runRolesSync(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("file")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	var in io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	specs, err := parseRoles(in)
	if err != nil {
		return err
	}
	if dryRun {
		for _, s := range specs {
			success(cmd, "%s: %s", s.Name, strings.Join(s.Permissions, ", "))
		}
		return nil
	}

	e, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.authService().SyncRoles(cmd.Context(), specs); err != nil {
		return err
	}
	success(cmd, "synced %d roles", len(specs))
	return nil
}

func rolesPermissionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "permissions",
		Short: "List the permission codenames the API checks",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, p := range policy.KnownPermissions {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
		},
	}
}

// parseRoles decodes and checks a roles file. Unknown permission codenames
// and duplicate role names are rejected before anything reaches the database.
func parseRoles(r io.Reader) ([]authservice.RoleSpec, error) {
	var file roleFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse roles file: %w", err)
	}
	if len(file.Roles) == 0 {
		return nil, fmt.Errorf("roles file lists no roles")
	}

	known := make(map[string]struct{}, len(policy.KnownPermissions))
	for _, p := range policy.KnownPermissions {
		known[p] = struct{}{}
	}

	seen := make(map[string]struct{}, len(file.Roles))
	specs := make([]authservice.RoleSpec, 0, len(file.Roles))
	for i, r := range file.Roles {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return nil, fmt.Errorf("role #%d has no name", i+1)
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("role %q is listed twice", name)
		}
		seen[key] = struct{}{}

		perms := make([]string, 0, len(r.Permissions))
		for _, p := range r.Permissions {
			p = strings.TrimSpace(p)
			if _, ok := known[p]; !ok {
				return nil, fmt.Errorf("role %q: unknown permission %q", name, p)
			}
			perms = append(perms, p)
		}
		specs = append(specs, authservice.RoleSpec{
			Name:        name,
			Description: strings.TrimSpace(r.Description),
			Permissions: perms,
		})
	}
	return specs, nil
}
