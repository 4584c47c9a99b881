// Command redshift-resnet drives the SDSS preprocessing pipeline:
// submitting CasJobs queries, downloading table exports, and
// checkpointing rows into content-keyed stores.
//
// Logging:
//   - Base logger is created from --log-level and --log-format
//   - Logger is passed to all components via dependency injection
//   - No global slog configuration (no slog.SetDefault)
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/KyleAMoore/Redshift-ResNet/cmd/redshift-resnet/cli"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "redshift-resnet",
		Short: "SDSS spectroscopic preprocessing pipeline",
	}

	rootCmd.PersistentFlags().String("config", "", "settings file (YAML or JSON)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, or error")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text or json")
	rootCmd.PersistentFlags().String("base-dir", "", "checkpoint base directory (overrides config)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	rootCmd.AddCommand(
		cli.NewFetchCommand(),
		cli.NewProcessCommand(),
		cli.NewInspectCommand(),
		cli.NewArchiveCommand(),
		cli.NewJobsCommand(),
		versionCmd,
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
