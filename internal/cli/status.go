package cli

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/openclaw/openclaw-deploy/internal/config"
	"github.com/openclaw/openclaw-deploy/internal/helpers"
	"github.com/openclaw/openclaw-deploy/internal/runtime"
	"github.com/openclaw/openclaw-deploy/internal/ui"
)

func StatusCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current deployment state",
		Long: "Derive the deployment state from the container runtime. With --verbose the " +
			"resolved configuration and recent run history are included.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newAppContext(flags, config.Overrides{})
			if err != nil {
				return err
			}
			defer app.Close()

			state, err := app.engine.Status(cmd.Context(), flags.verbose)
			if err != nil {
				return err
			}

			lines := []string{
				fmt.Sprintf("Container:  %s", displayPresence(state.ContainerExists, state.Running)),
				fmt.Sprintf("Health:     %s", displayHealth(state.Health)),
				fmt.Sprintf("Gateway:    %s", state.GatewayURL),
			}
			ui.Section("Gateway status", lines)

			if flags.verbose {
				summary, err := app.snap.SummaryYAML()
				if err == nil {
					ui.Section("Configuration", []string{summary})
				}
				if len(state.RecentRuns) > 0 {
					runLines := make([]string, 0, len(state.RecentRuns))
					for _, run := range state.RecentRuns {
						runLines = append(runLines, fmt.Sprintf("%s  %-8s %-18s %s",
							run.StartedAt.Local().Format(time.DateTime), run.Workflow, run.Outcome, helpers.SafeIDPrefix(run.RunID)))
					}
					ui.Section("Recent runs", runLines)
				}
			}
			return nil
		},
	}
	return cmd
}

func displayPresence(exists, running bool) string {
	switch {
	case !exists:
		return lipgloss.NewStyle().Foreground(ui.LightGray).Render("not deployed")
	case running:
		return lipgloss.NewStyle().Foreground(ui.Green).Render("running")
	default:
		return lipgloss.NewStyle().Foreground(ui.Red).Render("stopped")
	}
}

func displayHealth(health runtime.Health) string {
	switch health {
	case runtime.HealthHealthy:
		return lipgloss.NewStyle().Foreground(ui.Green).Render(string(health))
	case runtime.HealthUnhealthy:
		return lipgloss.NewStyle().Foreground(ui.Red).Render(string(health))
	case runtime.HealthStarting:
		return lipgloss.NewStyle().Foreground(ui.Amber).Render(string(health))
	default:
		return lipgloss.NewStyle().Foreground(ui.LightGray).Render(string(health))
	}
}
