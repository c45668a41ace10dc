// patchctl drives code changes through an automated patch workflow:
// branch, apply, validate, publish, and track, with failure triage
// against the issue tracker.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/labops/patchctl/internal/config"
)

var (
	cfg          *config.Config
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "patchctl",
	Short: "Automated patch workflow against a git repository",
	Long: `patchctl automates the lifecycle of a code change: it decides the
branching strategy, creates an isolated working branch, applies the
change, validates the result, publishes a pull request, and registers
tracking issues. Validation failures are classified and deduplicated
against existing tracking issues.

Configuration comes from PATCHCTL_* environment variables and the
optional ~/.patchctl.yaml file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if outputFormat != "text" && outputFormat != "json" && outputFormat != "yaml" {
			return fmt.Errorf("invalid output format %q (want text, json, or yaml)", outputFormat)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text",
		"Output format: text, json, or yaml")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
