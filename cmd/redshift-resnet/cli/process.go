package cli

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/KyleAMoore/Redshift-ResNet/pkg/preprocess"
)

// NewProcessCommand returns the "process" command: checkpoint a
// downloaded table export into a content-keyed store.
func NewProcessCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process TABLE",
		Short: "Checkpoint a downloaded table export",
		Long: `Read the CSV export of TABLE from the data directory and save every
row into a checkpoint store keyed by --key-column. Rows the store has
already accepted are skipped, so re-running after a partial failure
writes only what is missing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := args[0]
			keyColumn, _ := cmd.Flags().GetString("key-column")

			logger, err := loggerFromCmd(cmd)
			if err != nil {
				return err
			}
			settings, err := settingsFromCmd(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			pipeline := preprocess.New("process-"+table,
				preprocess.CheckpointTable(settings.CheckpointDir, settings.DataDir, table, keyColumn, settings.MaxBatch),
			)

			runCtx := preprocess.NewContext(ctx, preprocess.WithLogger(logger))
			return pipeline.Run(runCtx)
		},
	}

	cmd.Flags().String("key-column", "specObjID", "column whose values key the checkpointed rows")
	return cmd
}
