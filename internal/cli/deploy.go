package cli

import (
	"github.com/spf13/cobra"

	"github.com/openclaw/openclaw-deploy/internal/config"
	"github.com/openclaw/openclaw-deploy/internal/ui"
	"github.com/openclaw/openclaw-deploy/internal/workflow"
)

func DeployCmd(flags *rootFlags) *cobra.Command {
	var (
		apiKey          string
		gatewayToken    string
		noCache         bool
		skipHealthCheck bool
		noInteractive   bool
		noRollback      bool
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Build the gateway image and start the service",
		Long: "Validate prerequisites, provision the host environment, build the gateway " +
			"image and start the service group. Safe to run over an existing deployment.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			overrides := config.Overrides{
				GatewayToken:    gatewayToken,
				AnthropicAPIKey: apiKey,
			}
			if noRollback {
				disabled := false
				overrides.RollbackEnabled = &disabled
			}

			app, err := newAppContext(flags, overrides)
			if err != nil {
				return err
			}
			defer app.Close()

			if noRollback && !noInteractive {
				if !confirm("Rollback is disabled; a failed deploy leaves artifacts behind. Continue?") {
					ui.Info("Aborted")
					return nil
				}
			}

			result := app.engine.Deploy(cmd.Context(), workflow.DeployOptions{
				NoCache:         noCache,
				SkipHealthCheck: skipHealthCheck,
			})
			if !result.Success {
				reportRollback(result)
			}
			return resultError(result)
		},
	}

	cmd.Flags().StringVar(&apiKey, "api-key", "", "Anthropic API key, used only when no other layer provides one")
	cmd.Flags().StringVar(&gatewayToken, "gateway-token", "", "Gateway auth token override")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Build the image without the layer cache")
	cmd.Flags().BoolVar(&skipHealthCheck, "skip-health-check", false, "Do not wait for the gateway to report healthy")
	cmd.Flags().BoolVar(&noInteractive, "no-interactive", false, "Never prompt for confirmation")
	cmd.Flags().BoolVar(&noRollback, "no-rollback", false, "Leave partial artifacts in place when the deploy fails")
	return cmd
}
