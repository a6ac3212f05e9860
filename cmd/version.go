package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// set with -ldflags "-X gpuselect/cmd.Version=..."
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func FullVersion() string {
	if Version == "dev" && len(GitCommit) >= 8 && GitCommit != "unknown" {
		return "dev+" + GitCommit[:8]
	}
	return Version
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gpuselect %s (commit %s, built %s)\n", FullVersion(), GitCommit, BuildDate)
		},
	}
}
