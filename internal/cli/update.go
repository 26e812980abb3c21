package cli

import (
	"github.com/spf13/cobra"

	"github.com/openclaw/openclaw-deploy/internal/config"
	"github.com/openclaw/openclaw-deploy/internal/workflow"
)

func UpdateCmd(flags *rootFlags) *cobra.Command {
	var (
		noCache         bool
		skipHealthCheck bool
		noRollback      bool
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Rebuild the gateway image and restart the service",
		Long: "Stop the running gateway, rebuild its image without the layer cache and start " +
			"it again. Requires an existing deployment; a failed rebuild restarts the " +
			"previous services.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var overrides config.Overrides
			if noRollback {
				disabled := false
				overrides.RollbackEnabled = &disabled
			}

			app, err := newAppContext(flags, overrides)
			if err != nil {
				return err
			}
			defer app.Close()

			result := app.engine.Update(cmd.Context(), workflow.UpdateOptions{
				NoCache:         noCache,
				SkipHealthCheck: skipHealthCheck,
			})
			if !result.Success {
				reportRollback(result)
			}
			return resultError(result)
		},
	}

	cmd.Flags().BoolVar(&noCache, "no-cache", true, "Rebuild without the layer cache to pick up the latest upstream version (disable with --no-cache=false)")
	cmd.Flags().BoolVar(&skipHealthCheck, "skip-health-check", false, "Do not wait for the gateway to report healthy")
	cmd.Flags().BoolVar(&noRollback, "no-rollback", false, "Do not restart previous services when the update fails")
	return cmd
}
