package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	authservice "rivo_backend/internal/auth/service"
	"rivo_backend/internal/auth/token"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const generatedPasswordBytes = 18

// UsersCmd returns the users command group.
func UsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage staff accounts",
	}
	cmd.AddCommand(usersCreateCmd())
	cmd.AddCommand(usersListCmd())
	return cmd
}

func usersCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a staff account",
		Long: `Create a staff account.

Without --password a random password is generated and printed once.

Examples:
  rivoctl users create --email ada@rivo.io --first-name Ada --role admin
  rivoctl users create --email cara@rivo.io --role csm --permission change_client
  rivoctl users create --email root@rivo.io --superuser`,
		Args: cobra.NoArgs,
		RunE: runUsersCreate,
	}

	cmd.Flags().String("email", "", "Login email (required)")
	cmd.Flags().String("password", "", "Password; generated when empty")
	cmd.Flags().String("first-name", "", "First name")
	cmd.Flags().String("last-name", "", "Last name")
	cmd.Flags().String("phone", "", "Phone number")
	cmd.Flags().String("role", "", "Role name, e.g. admin or csm")
	cmd.Flags().Bool("superuser", false, "Grant every permission")
	cmd.Flags().StringSlice("permission", nil, "Direct permission codename (repeatable)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func runUsersCreate(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	email, _ := flags.GetString("email")
	password, _ := flags.GetString("password")
	firstName, _ := flags.GetString("first-name")
	lastName, _ := flags.GetString("last-name")
	phone, _ := flags.GetString("phone")
	role, _ := flags.GetString("role")
	superuser, _ := flags.GetBool("superuser")
	perms, _ := flags.GetStringSlice("permission")

	generated := password == ""
	if generated {
		p, err := token.GenerateRandomToken(generatedPasswordBytes)
		if err != nil {
			return fmt.Errorf("generate password: %w", err)
		}
		password = p
	}

	e, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	profile, err := e.authService().CreateUser(cmd.Context(), authservice.CreateUserInput{
		Email:       email,
		Password:    password,
		FirstName:   firstName,
		LastName:    lastName,
		Phone:       phone,
		Role:        role,
		Superuser:   superuser,
		Permissions: perms,
	})
	if err != nil {
		return err
	}

	success(cmd, "created %s (%s)", profile.Email, profile.ID)
	if generated {
		fmt.Fprintf(cmd.OutOrStdout(), "  password: %s\n", color.New(color.Bold).Sprint(password))
		warn(cmd, "store this password now, it is not shown again")
	}
	return nil
}

func usersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List staff accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			users, err := e.authService().ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			if len(users) == 0 {
				warn(cmd, "no users yet; create one with 'rivoctl users create'")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "EMAIL\tNAME\tROLE\tSTATUS")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.Email, u.Name(), roleLabel(u.Role, u.IsSuperuser), statusLabel(u.IsActive))
			}
			return w.Flush()
		},
	}
}

func roleLabel(role string, superuser bool) string {
	label := role
	if label == "" {
		label = "-"
	}
	if superuser {
		label = strings.TrimPrefix(label+"+superuser", "-+")
		return color.New(color.FgHiMagenta).Sprint(label)
	}
	return label
}

func statusLabel(active bool) string {
	if active {
		return color.New(color.FgHiGreen).Sprint("active")
	}
	return color.New(color.FgRed).Sprint("inactive")
}
