package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/openclaw/openclaw-deploy/internal/config"
	"github.com/openclaw/openclaw-deploy/internal/ui"
	"github.com/openclaw/openclaw-deploy/internal/workflow"
)

func CleanupCmd(flags *rootFlags) *cobra.Command {
	var (
		removeVolumes bool
		removeImage   bool
		removeEnvFile bool
		removeAll     bool
		noInteractive bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Stop the gateway and remove its Docker artifacts",
		Long: "Stop and remove the gateway containers. Volumes, the built image and the " +
			"generated .env file are only removed on request. Removals are independent: " +
			"one failure does not stop the rest.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if removeAll {
				removeVolumes = true
				removeImage = true
				removeEnvFile = true
			}

			app, err := newAppContext(flags, config.Overrides{})
			if err != nil {
				return err
			}
			defer app.Close()

			if removeVolumes && !noInteractive {
				if !confirm("Removing volumes deletes all gateway data. Continue?") {
					ui.Info("Aborted")
					return nil
				}
			}

			report := app.engine.Cleanup(cmd.Context(), workflow.CleanupOptions{
				RemoveVolumes: removeVolumes,
				RemoveImages:  removeImage,
				RemoveEnvFile: removeEnvFile,
			})
			if len(report.Removed) > 0 {
				ui.Success("Removed: %s", strings.Join(report.Removed, ", "))
			}
			if len(report.Failed) > 0 {
				ui.Warn("Failed to remove: %s", strings.Join(report.Failed, ", "))
			}
			return report.Err()
		},
	}

	cmd.Flags().BoolVar(&removeVolumes, "volumes", false, "Also remove the gateway's named volumes (deletes data)")
	cmd.Flags().BoolVar(&removeImage, "image", false, "Also remove the built gateway image")
	cmd.Flags().BoolVar(&removeEnvFile, "env-file", false, "Also remove the generated .env file")
	cmd.Flags().BoolVar(&removeAll, "all", false, "Remove containers, volumes, image and the .env file")
	cmd.Flags().BoolVar(&noInteractive, "no-interactive", false, "Never prompt for confirmation")
	return cmd
}
