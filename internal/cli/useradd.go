package cli

import (
	"context"
	"fmt"

	"github.com/authforge/authcore/users"
	"github.com/spf13/cobra"
)

type useraddOptions struct {
	email     string
	username  string
	firstName string
	lastName  string
	password  string
	role      string
}

// NewUseraddCommand creates the useradd command.
func NewUseraddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &useraddOptions{}

	cmd := &cobra.Command{
		Use:   "useradd",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := users.ParseRole(opts.role)
			if err != nil {
				return err
			}
			app, svc, err := startApp(cmd.Context(), rootOpts.settings())
			if err != nil {
				return err
			}
			defer app.Shutdown(context.WithoutCancel(cmd.Context()))

			u, err := svc.Register(cmd.Context(), users.NewUser{
				Email:     opts.email,
				Username:  opts.username,
				FirstName: opts.firstName,
				LastName:  opts.lastName,
				Password:  opts.password,
				Role:      role,
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "created user %d (%s, %s)\n", u.ID, u.Email, u.Role)
			return err
		},
	}

	cmd.Flags().StringVar(&opts.email, "email", "", "account email (required)")
	cmd.Flags().StringVar(&opts.username, "username", "", "optional unique username")
	cmd.Flags().StringVar(&opts.firstName, "first-name", "", "first name (required)")
	cmd.Flags().StringVar(&opts.lastName, "last-name", "", "last name (required)")
	cmd.Flags().StringVar(&opts.password, "password", "", "initial password (required)")
	cmd.Flags().StringVar(&opts.role, "role", string(users.RoleUser), "admin, moderator or user")
	for _, name := range []string{"email", "first-name", "last-name", "password"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}
