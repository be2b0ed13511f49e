// Command aranode runs an ARA routing node over UDP.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// configPath is the --config flag shared by every subcommand.
var configPath string

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "aranode",
		Short: "ARA ant routing node",
		Long: `aranode runs a node of the Ant Routing Algorithm, a multipath routing
protocol for mobile ad-hoc networks. The radio is emulated over UDP with a
static list of neighbors read from the configuration file.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the YAML configuration file")

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newConfigCommand())
	rootCmd.AddCommand(newTestnetCommand())

	return rootCmd
}
