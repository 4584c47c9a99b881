package cli

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/KyleAMoore/Redshift-ResNet/pkg/preprocess"
)

// NewFetchCommand returns the "fetch" command: materialize a table in
// MyDB through a CasJobs query, then download its CSV export.
func NewFetchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch TABLE",
		Short: "Submit a CasJobs query and download the table export",
		Long: `Submit a CasJobs query that materializes TABLE in MyDB, wait for the
job to finish, and download the CSV export into the data directory.

Submissions are recorded in a ledger keyed by query content, so
re-running the same fetch resumes an in-flight job or skips a finished
one instead of resubmitting. Omit --query when the table already
exists in MyDB.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := args[0]
			query, _ := cmd.Flags().GetString("query")
			searchContext, _ := cmd.Flags().GetString("context")

			logger, err := loggerFromCmd(cmd)
			if err != nil {
				return err
			}
			settings, err := settingsFromCmd(cmd)
			if err != nil {
				return err
			}
			if searchContext == "" {
				searchContext = settings.SearchContext
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			client, err := newClient(ctx, settings, logger)
			if err != nil {
				return err
			}

			pipeline := preprocess.New("fetch-" + table)
			if query != "" {
				ledger, err := openLedger(settings)
				if err != nil {
					return err
				}
				defer ledger.Close()
				pipeline = pipeline.Append(preprocess.EnsureTable(client, ledger, query, table, searchContext))
			}
			pipeline = pipeline.Append(preprocess.FetchTable(client, table, settings.DataDir))

			runCtx := preprocess.NewContext(ctx, preprocess.WithLogger(logger))
			return pipeline.Run(runCtx)
		},
	}

	cmd.Flags().String("query", "", "SQL that materializes the table (omit when it already exists in MyDB)")
	cmd.Flags().String("context", "", "CasJobs search context (defaults to the configured one)")
	return cmd
}
