package cli

import (
	"encoding/json"
	"fmt"

	"github.com/authforge/authcore/database"
	"github.com/spf13/cobra"
)

// NewHealthcheckCommand creates the healthcheck command. It connects once,
// prints the health report as JSON and fails when the database is
// unhealthy, which makes it usable as a container probe.
func NewHealthcheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "healthcheck",
		Short: "Check database connectivity and print the health report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := rootOpts.settings()
			db := database.NewManager(database.OptionsFromSettings(s, nil))
			defer db.Close()

			// Acquire initializes the pool; when that fails the report
			// carries the connection error rather than the bare state.
			initErr := db.WithSession(cmd.Context(), func(*database.Session) error { return nil })
			h := db.HealthCheck(cmd.Context())
			if initErr != nil && !h.Healthy() {
				h.Error = initErr.Error()
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(h); err != nil {
				return err
			}
			if !h.Healthy() {
				return fmt.Errorf("database unhealthy: %s", h.Error)
			}
			return nil
		},
	}
}
