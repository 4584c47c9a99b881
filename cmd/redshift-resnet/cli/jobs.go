package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/KyleAMoore/Redshift-ResNet/pkg/preprocess/casjobs"
)

// NewJobsCommand returns the "jobs" command tree for the submission ledger.
func NewJobsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect recorded CasJobs submissions",
	}
	cmd.PersistentFlags().StringP("output", "o", "table", "output format: table or json")
	cmd.AddCommand(newJobsListCmd())
	return cmd
}

func newJobsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List query submissions in the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := settingsFromCmd(cmd)
			if err != nil {
				return err
			}

			ledger, err := openLedger(settings)
			if err != nil {
				return err
			}
			defer ledger.Close()

			subs, err := ledger.List(cmd.Context())
			if err != nil {
				return err
			}

			p := newPrinter(outputFormat(cmd))
			if p.format == "json" {
				return p.json(subs)
			}

			rows := make([][]string, 0, len(subs))
			for _, sub := range subs {
				rows = append(rows, []string{
					strconv.FormatInt(sub.JobID, 10),
					sub.Table,
					sub.Context,
					statusName(sub.Status),
					sub.SubmittedAt.Local().Format(time.RFC3339),
				})
			}
			p.table([]string{"JOB", "TABLE", "CONTEXT", "STATUS", "SUBMITTED"}, rows)
			return nil
		},
	}
}

// statusName renders a CasJobs status code.
func statusName(status int) string {
	switch status {
	case casjobs.StatusReady:
		return "ready"
	case casjobs.StatusStarted:
		return "started"
	case casjobs.StatusCanceling:
		return "canceling"
	case casjobs.StatusCancelled:
		return "cancelled"
	case casjobs.StatusFailed:
		return "failed"
	case casjobs.StatusFinished:
		return "finished"
	}
	return fmt.Sprintf("unknown(%d)", status)
}
