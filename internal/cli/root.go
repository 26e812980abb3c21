package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/openclaw/openclaw-deploy/internal/ui"
)

// rootFlags holds the values of flags shared by every command.
type rootFlags struct {
	projectDir string
	configFile string
	verbose    bool
	logFile    bool
}

func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "openclaw-deploy",
		Short:         "openclaw-deploy builds and runs the openclaw gateway with Docker",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().StringVarP(&flags.projectDir, "project-dir", "p", ".", "Path to the project checkout containing the Dockerfile and compose manifest")
	cmd.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "Path to an openclaw config file (default: discovered in the project directory)")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Verbose output, including streamed compose output")
	cmd.PersistentFlags().BoolVar(&flags.logFile, "log-file", false, "Mirror output to a run log file under the config directory")

	cmd.AddCommand(
		DeployCmd(flags),
		UpdateCmd(flags),
		CleanupCmd(flags),
		StatusCmd(flags),
		LogsCmd(flags),
		VersionCmd(),
	)
	return cmd
}

// Run executes the CLI and returns the process exit code.
func Run() int {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		ui.Error("%v", err)
		return codeFor(err)
	}
	return 0
}

// Main is the entry point used by the binary.
func Main() {
	os.Exit(Run())
}
