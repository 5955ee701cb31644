// Package cli is the authsvc command line.
package cli

import (
	"github.com/authforge/authcore/config"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	EnvFiles []string
}

// settings loads the configuration the flags point at.
func (o *RootOptions) settings() *config.Settings {
	return config.Load(o.EnvFiles...)
}

// NewRootCommand creates the root command for the authsvc CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "authsvc",
		Short: "Authentication and user management service",
		Long: `authsvc serves registration, login and token refresh over HTTP,
backed by SQLite or PostgreSQL. Every option is read from the environment,
after loading the given dotenv files.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringSliceVar(&opts.EnvFiles, "env-file", []string{config.DefaultEnvFile}, "dotenv files to load before reading the environment")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewHealthcheckCommand(opts))
	cmd.AddCommand(NewUseraddCommand(opts))

	return cmd
}
