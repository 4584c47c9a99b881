package preprocess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/KyleAMoore/Redshift-ResNet/pkg/preprocess/casjobs"
	"github.com/KyleAMoore/Redshift-ResNet/pkg/preprocess/checkpoint"
	pperrors "github.com/KyleAMoore/Redshift-ResNet/pkg/preprocess/errors"
	"github.com/KyleAMoore/Redshift-ResNet/pkg/preprocess/jobs"
	"github.com/KyleAMoore/Redshift-ResNet/pkg/preprocess/sdss"
)

// TableSubmitter submits CasJobs queries and waits on the resulting jobs.
// *casjobs.Client implements it.
type TableSubmitter interface {
	SubmitQuery(ctx context.Context, query, table, searchContext string) (int64, error)
	WaitForJob(ctx context.Context, jobID int64) (casjobs.JobStatus, error)
}

// TableDownloader exports MyDB tables and downloads them.
// *casjobs.Client implements it.
type TableDownloader interface {
	RequestTableExport(ctx context.Context, table string) error
	DownloadTable(ctx context.Context, table, destDir string) (string, error)
}

// EnsureTable returns a stage that makes sure a query's results are
// materialized as the named MyDB table, submitting a CasJobs job when
// needed. The ledger keeps re-runs incremental:
//
//   - a finished submission of the same query is skipped entirely
//   - an in-flight submission of the same query is waited on, not resubmitted
//   - anything else (no prior submission, a failed one, or a different
//     query text) submits fresh
//
// A searchContext of "MyDB" needs no job; the stage is then a no-op.
func EnsureTable(submitter TableSubmitter, ledger *jobs.Ledger, query, table, searchContext string) Stage {
	return Stage{
		Name: "ensure:" + table,
		Run: func(ctx Context) error {
			digest := jobs.Digest(query)

			var jobID int64
			prev, err := ledger.Find(ctx, table)
			switch {
			case err == nil && prev.QueryDigest == digest && prev.Status == casjobs.StatusFinished:
				ctx.Logger().Info("table already materialized",
					slog.String("table", table),
					slog.Int64("job_id", prev.JobID),
				)
				return nil
			case err == nil && prev.QueryDigest == digest && !terminalStatus(prev.Status):
				ctx.Logger().Info("resuming wait on submitted job",
					slog.String("table", table),
					slog.Int64("job_id", prev.JobID),
				)
				jobID = prev.JobID
			case err != nil && !errors.Is(err, jobs.ErrNotFound):
				return err
			}

			if jobID == 0 {
				jobID, err = submitter.SubmitQuery(ctx, query, table, searchContext)
				if err != nil {
					return err
				}
				if jobID == 0 {
					// MyDB context, the table already lives there.
					return nil
				}
				if err := ledger.Record(ctx, jobs.Submission{
					JobID:       jobID,
					Table:       table,
					QueryDigest: digest,
					Context:     searchContext,
					Status:      casjobs.StatusStarted,
					SubmittedAt: time.Now(),
				}); err != nil {
					return err
				}
			}

			status, err := submitter.WaitForJob(ctx, jobID)
			if err != nil {
				// A job that is genuinely still running keeps its ledger
				// status so a later run resumes the wait. Only a permanent
				// job failure is recorded as failed.
				if !pperrors.IsRetryable(err) && ctx.Err() == nil {
					_ = ledger.MarkStatus(ctx, jobID, casjobs.StatusFailed)
				}
				return err
			}
			return ledger.MarkStatus(ctx, jobID, status.Status)
		},
	}
}

func terminalStatus(status int) bool {
	return status == casjobs.StatusCancelled ||
		status == casjobs.StatusFailed ||
		status == casjobs.StatusFinished
}

// FetchTable returns a stage that requests a CSV export of a MyDB table
// and downloads it into destDir as <table>.csv.
func FetchTable(dl TableDownloader, table, destDir string) Stage {
	return Stage{
		Name: "fetch:" + table,
		Run: func(ctx Context) error {
			if err := dl.RequestTableExport(ctx, table); err != nil {
				return err
			}
			path, err := dl.DownloadTable(ctx, table, destDir)
			if err != nil {
				return err
			}
			ctx.Logger().Info("table downloaded", slog.String("path", path))
			return nil
		},
	}
}

// CheckpointTable returns a stage that reads a downloaded table export
// from dataDir and checkpoints its rows under baseDir. The store identity
// derives from the keyColumn values in row order, so re-running over the
// same slice of the same table reuses the store and only new rows are
// written; rows already present are skipped.
//
// maxObjects caps each save batch; non-positive values use
// checkpoint.DefaultMaxObjects.
func CheckpointTable(baseDir, dataDir, table, keyColumn string, maxObjects int) Stage {
	return Stage{
		Name: "checkpoint:" + table,
		Run: func(ctx Context) error {
			csvPath := filepath.Join(dataDir, table+".csv")
			f, err := os.Open(csvPath)
			if err != nil {
				return fmt.Errorf("open table export: %w", err)
			}
			defer f.Close()

			rows, err := sdss.ReadTable(f)
			if err != nil {
				return err
			}

			identity, err := sdss.DatasetGUID(rows, keyColumn)
			if err != nil {
				return err
			}

			store, err := checkpoint.Open[*sdss.Record](baseDir, identity, sdss.RecordSchema{}, checkpoint.Options[*sdss.Record]{
				MaxObjects: maxObjects,
				Logger:     ctx.Logger(),
			})
			if err != nil {
				return err
			}

			batchSize := maxObjects
			if batchSize <= 0 {
				batchSize = checkpoint.DefaultMaxObjects
			}

			var written, skipped int
			for start := 0; start < len(rows); start += batchSize {
				end := min(start+batchSize, len(rows))

				fields := make([]map[string]any, 0, end-start)
				for _, row := range rows[start:end] {
					fields = append(fields, row.Fields())
				}

				before := store.Len()
				if err := store.SaveFields(fields); err != nil {
					return err
				}
				written += store.Len() - before
				skipped += len(fields) - (store.Len() - before)
			}

			ctx.Metrics().RecordCheckpointSave(ctx, identity, written, skipped)
			ctx.Logger().Info("table checkpointed",
				slog.String("identity", identity),
				slog.Int("rows", len(rows)),
				slog.Int("written", written),
				slog.Int("skipped", skipped),
			)
			return nil
		},
	}
}
