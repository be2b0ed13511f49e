package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opd-ai/ara/config"
)

func newConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the configuration",
		Long: `Print the effective configuration as YAML. Without --config the
defaults are printed, which makes a starting point for a configuration file.`,
		RunE: runConfig,
	}
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	data, err := cfg.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	_, err = cmd.OutOrStdout().Write(data)
	return err
}
