package preprocess

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KyleAMoore/Redshift-ResNet/pkg/preprocess/casjobs"
	"github.com/KyleAMoore/Redshift-ResNet/pkg/preprocess/checkpoint"
	"github.com/KyleAMoore/Redshift-ResNet/pkg/preprocess/contenthash"
	pperrors "github.com/KyleAMoore/Redshift-ResNet/pkg/preprocess/errors"
	"github.com/KyleAMoore/Redshift-ResNet/pkg/preprocess/jobs"
	"github.com/KyleAMoore/Redshift-ResNet/pkg/preprocess/sdss"
)

// The real client must satisfy the stage interfaces.
var (
	_ TableSubmitter  = (*casjobs.Client)(nil)
	_ TableDownloader = (*casjobs.Client)(nil)
)

type fakeSubmitter struct {
	submitCalls int
	submitJobID int64
	submitErr   error

	waitCalls  int
	waitJobID  int64
	waitStatus casjobs.JobStatus
	waitErr    error
}

func (f *fakeSubmitter) SubmitQuery(_ context.Context, _, _, _ string) (int64, error) {
	f.submitCalls++
	return f.submitJobID, f.submitErr
}

func (f *fakeSubmitter) WaitForJob(_ context.Context, jobID int64) (casjobs.JobStatus, error) {
	f.waitCalls++
	f.waitJobID = jobID
	if f.waitErr != nil {
		return casjobs.JobStatus{}, f.waitErr
	}
	return f.waitStatus, nil
}

type fakeDownloader struct {
	calls       []string
	exportErr   error
	downloadErr error
	path        string
}

func (f *fakeDownloader) RequestTableExport(_ context.Context, table string) error {
	f.calls = append(f.calls, "export:"+table)
	return f.exportErr
}

func (f *fakeDownloader) DownloadTable(_ context.Context, table, _ string) (string, error) {
	f.calls = append(f.calls, "download:"+table)
	if f.downloadErr != nil {
		return "", f.downloadErr
	}
	return f.path, nil
}

func openTestLedger(t *testing.T) *jobs.Ledger {
	t.Helper()
	ledger, err := jobs.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })
	return ledger
}

const testQuery = "SELECT specObjID, z INTO mydb.specs FROM SpecObj WHERE z > 0"

func TestEnsureTable_SubmitsNewQuery(t *testing.T) {
	ledger := openTestLedger(t)
	submitter := &fakeSubmitter{
		submitJobID: 12345,
		waitStatus:  casjobs.JobStatus{JobID: 12345, Status: casjobs.StatusFinished},
	}

	stage := EnsureTable(submitter, ledger, testQuery, "specs", "DR16")
	require.NoError(t, stage.Run(testCtx()))

	assert.Equal(t, 1, submitter.submitCalls)
	assert.Equal(t, 1, submitter.waitCalls)
	assert.Equal(t, int64(12345), submitter.waitJobID)

	sub, err := ledger.Find(context.Background(), "specs")
	require.NoError(t, err)
	assert.Equal(t, int64(12345), sub.JobID)
	assert.Equal(t, jobs.Digest(testQuery), sub.QueryDigest)
	assert.Equal(t, "DR16", sub.Context)
	assert.Equal(t, casjobs.StatusFinished, sub.Status)
}

func TestEnsureTable_SkipsFinishedQuery(t *testing.T) {
	ledger := openTestLedger(t)
	require.NoError(t, ledger.Record(context.Background(), jobs.Submission{
		JobID:       7,
		Table:       "specs",
		QueryDigest: jobs.Digest(testQuery),
		Context:     "DR16",
		Status:      casjobs.StatusFinished,
	}))

	submitter := &fakeSubmitter{submitJobID: 999}
	stage := EnsureTable(submitter, ledger, testQuery, "specs", "DR16")
	require.NoError(t, stage.Run(testCtx()))

	assert.Zero(t, submitter.submitCalls)
	assert.Zero(t, submitter.waitCalls)
}

func TestEnsureTable_ResumesInFlightJob(t *testing.T) {
	ledger := openTestLedger(t)
	require.NoError(t, ledger.Record(context.Background(), jobs.Submission{
		JobID:       7,
		Table:       "specs",
		QueryDigest: jobs.Digest(testQuery),
		Context:     "DR16",
		Status:      casjobs.StatusStarted,
	}))

	submitter := &fakeSubmitter{
		waitStatus: casjobs.JobStatus{JobID: 7, Status: casjobs.StatusFinished},
	}
	stage := EnsureTable(submitter, ledger, testQuery, "specs", "DR16")
	require.NoError(t, stage.Run(testCtx()))

	assert.Zero(t, submitter.submitCalls, "in-flight job must not be resubmitted")
	assert.Equal(t, 1, submitter.waitCalls)
	assert.Equal(t, int64(7), submitter.waitJobID)

	sub, err := ledger.Find(context.Background(), "specs")
	require.NoError(t, err)
	assert.Equal(t, casjobs.StatusFinished, sub.Status)
}

func TestEnsureTable_ResubmitsAfterFailure(t *testing.T) {
	ledger := openTestLedger(t)
	require.NoError(t, ledger.Record(context.Background(), jobs.Submission{
		JobID:       7,
		Table:       "specs",
		QueryDigest: jobs.Digest(testQuery),
		Context:     "DR16",
		Status:      casjobs.StatusFailed,
	}))

	submitter := &fakeSubmitter{
		submitJobID: 8,
		waitStatus:  casjobs.JobStatus{JobID: 8, Status: casjobs.StatusFinished},
	}
	stage := EnsureTable(submitter, ledger, testQuery, "specs", "DR16")
	require.NoError(t, stage.Run(testCtx()))

	assert.Equal(t, 1, submitter.submitCalls)

	sub, err := ledger.Find(context.Background(), "specs")
	require.NoError(t, err)
	assert.Equal(t, int64(8), sub.JobID)
}

func TestEnsureTable_ResubmitsChangedQuery(t *testing.T) {
	ledger := openTestLedger(t)
	require.NoError(t, ledger.Record(context.Background(), jobs.Submission{
		JobID:       7,
		Table:       "specs",
		QueryDigest: jobs.Digest("SELECT 1"),
		Context:     "DR16",
		Status:      casjobs.StatusFinished,
	}))

	submitter := &fakeSubmitter{
		submitJobID: 8,
		waitStatus:  casjobs.JobStatus{JobID: 8, Status: casjobs.StatusFinished},
	}
	stage := EnsureTable(submitter, ledger, testQuery, "specs", "DR16")
	require.NoError(t, stage.Run(testCtx()))

	assert.Equal(t, 1, submitter.submitCalls, "edited query text is new work")
}

func TestEnsureTable_MyDBNeedsNoJob(t *testing.T) {
	ledger := openTestLedger(t)
	submitter := &fakeSubmitter{submitJobID: 0}

	stage := EnsureTable(submitter, ledger, testQuery, "specs", "MyDB")
	require.NoError(t, stage.Run(testCtx()))

	assert.Equal(t, 1, submitter.submitCalls)
	assert.Zero(t, submitter.waitCalls)

	subs, err := ledger.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, subs, "nothing to track without a job")
}

func TestEnsureTable_FailedJobMarksLedger(t *testing.T) {
	ledger := openTestLedger(t)
	submitter := &fakeSubmitter{
		submitJobID: 9,
		waitErr:     &pperrors.CasJobsError{Op: "wait", JobID: 9, Message: "syntax error near SELECT"},
	}

	stage := EnsureTable(submitter, ledger, testQuery, "specs", "DR16")
	err := stage.Run(testCtx())
	require.Error(t, err)

	sub, findErr := ledger.Find(context.Background(), "specs")
	require.NoError(t, findErr)
	assert.Equal(t, casjobs.StatusFailed, sub.Status)
}

func TestEnsureTable_StillRunningKeepsStatus(t *testing.T) {
	ledger := openTestLedger(t)
	submitter := &fakeSubmitter{
		submitJobID: 9,
		waitErr:     pperrors.Transient(errors.New("job 9 still running"), "waiting for job"),
	}

	stage := EnsureTable(submitter, ledger, testQuery, "specs", "DR16")
	err := stage.Run(testCtx())
	require.Error(t, err)

	// The wait budget ran out but the job may yet finish; a later run
	// resumes the wait instead of resubmitting.
	sub, findErr := ledger.Find(context.Background(), "specs")
	require.NoError(t, findErr)
	assert.Equal(t, casjobs.StatusStarted, sub.Status)
}

func TestFetchTable_ExportThenDownload(t *testing.T) {
	dl := &fakeDownloader{path: "data/specs.csv"}

	stage := FetchTable(dl, "specs", "data")
	require.NoError(t, stage.Run(testCtx()))

	assert.Equal(t, []string{"export:specs", "download:specs"}, dl.calls)
}

func TestFetchTable_ExportFailureSkipsDownload(t *testing.T) {
	dl := &fakeDownloader{exportErr: errors.New("export rejected")}

	stage := FetchTable(dl, "specs", "data")
	err := stage.Run(testCtx())

	require.Error(t, err)
	assert.Equal(t, []string{"export:specs"}, dl.calls)
}

// writeExport writes a table export fixture as <dir>/<table>.csv.
func writeExport(t *testing.T, dir, table, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, table+".csv"), []byte(content), 0o644))
}

const specsCSV = "specObjID,z\n1001,0.5\n1002,0.125\n1003,2.5\n"

func TestCheckpointTable_WritesRows(t *testing.T) {
	baseDir := t.TempDir()
	dataDir := t.TempDir()
	writeExport(t, dataDir, "specs", specsCSV)

	metrics := &recordingMetrics{}
	ctx := NewContext(context.Background(), WithMetricsRecorder(metrics))

	stage := CheckpointTable(baseDir, dataDir, "specs", "specObjID", 0)
	require.NoError(t, stage.Run(ctx))

	require.Len(t, metrics.saves, 1)
	identity := contenthash.Keys([]string{"1001", "1002", "1003"})
	assert.Equal(t, checkpointSave{identity: identity, written: 3, skipped: 0}, metrics.saves[0])

	// The store on disk holds the rows.
	store, err := checkpoint.Open[*sdss.Record](baseDir, identity, sdss.RecordSchema{}, checkpoint.Options[*sdss.Record]{})
	require.NoError(t, err)
	assert.Equal(t, 3, store.Len())
	assert.True(t, store.Contains("1001"))

	rec, err := store.Get("1002")
	require.NoError(t, err)
	assert.Equal(t, 0.125, rec.Redshift)
}

func TestCheckpointTable_RerunSkipsRows(t *testing.T) {
	baseDir := t.TempDir()
	dataDir := t.TempDir()
	writeExport(t, dataDir, "specs", specsCSV)

	metrics := &recordingMetrics{}
	ctx := NewContext(context.Background(), WithMetricsRecorder(metrics))

	stage := CheckpointTable(baseDir, dataDir, "specs", "specObjID", 0)
	require.NoError(t, stage.Run(ctx))
	require.NoError(t, stage.Run(ctx))

	require.Len(t, metrics.saves, 2)
	assert.Equal(t, 3, metrics.saves[0].written)
	assert.Equal(t, 0, metrics.saves[1].written)
	assert.Equal(t, 3, metrics.saves[1].skipped)
}

func TestCheckpointTable_KeepsFirstPayload(t *testing.T) {
	baseDir := t.TempDir()
	dataDir := t.TempDir()
	writeExport(t, dataDir, "specs", specsCSV)

	ctx := testCtx()
	stage := CheckpointTable(baseDir, dataDir, "specs", "specObjID", 0)
	require.NoError(t, stage.Run(ctx))

	// Same keys, different payload column: dedup is by key, so the
	// original rows stand.
	writeExport(t, dataDir, "specs", "specObjID,z\n1001,9.9\n1002,9.9\n1003,9.9\n")
	require.NoError(t, stage.Run(ctx))

	identity := contenthash.Keys([]string{"1001", "1002", "1003"})
	store, err := checkpoint.Open[*sdss.Record](baseDir, identity, sdss.RecordSchema{}, checkpoint.Options[*sdss.Record]{})
	require.NoError(t, err)

	rec, err := store.Get("1001")
	require.NoError(t, err)
	assert.Equal(t, 0.5, rec.Redshift)
}

func TestCheckpointTable_BatchesLargeTables(t *testing.T) {
	baseDir := t.TempDir()
	dataDir := t.TempDir()
	writeExport(t, dataDir, "specs", "specObjID,z\n1,0.1\n2,0.2\n3,0.3\n4,0.4\n5,0.5\n")

	metrics := &recordingMetrics{}
	ctx := NewContext(context.Background(), WithMetricsRecorder(metrics))

	// Cap of 2 forces three save batches; none may trip the size limit.
	stage := CheckpointTable(baseDir, dataDir, "specs", "specObjID", 2)
	require.NoError(t, stage.Run(ctx))

	require.Len(t, metrics.saves, 1)
	assert.Equal(t, 5, metrics.saves[0].written)

	identity := contenthash.Keys([]string{"1", "2", "3", "4", "5"})
	store, err := checkpoint.Open[*sdss.Record](baseDir, identity, sdss.RecordSchema{}, checkpoint.Options[*sdss.Record]{})
	require.NoError(t, err)
	assert.Equal(t, 5, store.Len())
}

func TestCheckpointTable_MissingKeyColumn(t *testing.T) {
	baseDir := t.TempDir()
	dataDir := t.TempDir()
	writeExport(t, dataDir, "specs", "objid,z\n1001,0.5\n")

	stage := CheckpointTable(baseDir, dataDir, "specs", "specObjID", 0)
	err := stage.Run(testCtx())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "specObjID")
}

func TestCheckpointTable_MissingExport(t *testing.T) {
	stage := CheckpointTable(t.TempDir(), t.TempDir(), "specs", "specObjID", 0)
	err := stage.Run(testCtx())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "open table export")
}
