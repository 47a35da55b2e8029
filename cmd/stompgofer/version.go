package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"stompgofer/internal/stomp"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "stompgofer %s (STOMP %s, %s)\n", version, stomp.Version, runtime.Version())
	},
}
