package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/openclaw/openclaw-deploy/internal/config"
)

func LogsCmd(flags *rootFlags) *cobra.Command {
	var (
		tail   int
		follow bool
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show gateway service logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newAppContext(flags, config.Overrides{})
			if err != nil {
				return err
			}
			defer app.Close()

			return app.rt.Logs(cmd.Context(), tail, follow, os.Stdout)
		},
	}

	cmd.Flags().IntVar(&tail, "tail", 100, "Number of log lines to show from the end")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep streaming new log lines")
	return cmd
}
