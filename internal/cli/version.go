package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openclaw/openclaw-deploy/internal/constants"
)

func VersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("%s %s\n", constants.AppName, constants.Version)
		},
	}
}
