// Package cmd is the kqlcore CLI, a thin cobra wrapper the way the
// teacher's cli/cmd package is a thin wrapper over sqlcode package
// functions: every subcommand here calls straight into parser/schema/
// optimize/sqlgen/execcore and prints the result.
package cmd

import (
	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:          "kqlcore",
		Short:        "kqlcore",
		SilenceUsage: true,
		Long:         `CLI for the KQL analytics core: parse, plan, emit SQL, and run pipeline queries against a configured backend.`,
	}

	configPath string
)

// Execute executes the root command.
func Execute() error {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "kqlcore.yaml", "path to the engine configuration file")
	return rootCmd.Execute()
}
