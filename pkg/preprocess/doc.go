/*
Package preprocess orchestrates the SDSS preprocessing pipeline: submit
CasJobs queries, download the resulting table exports, and checkpoint the
rows into content-addressed object stores.

# Overview

A Pipeline is a fixed, ordered sequence of named stages. Stages close over
their own dependencies (a CasJobs client, a submission ledger, a checkpoint
base directory) and return an error to abort the run. The runner supplies
cancellation checks, panic recovery, structured logging, and optional
OpenTelemetry metrics and tracing around every stage.

Every stage is built to be re-runnable: the submission ledger keeps
finished queries from being resubmitted, and the checkpoint store skips
rows it already holds. Interrupting a run and starting it again picks up
where the previous run left off.

# Basic Usage

Build a pipeline from the built-in stage constructors and run it:

	client := casjobs.NewClient()
	if err := client.Login(ctx, user, password); err != nil {
	    log.Fatal(err)
	}
	ledger, err := jobs.Open("submissions.db")
	if err != nil {
	    log.Fatal(err)
	}
	defer ledger.Close()

	pipeline := preprocess.New("fetch-specs",
	    preprocess.EnsureTable(client, ledger, query, "specs", "DR16"),
	    preprocess.FetchTable(client, "specs", "data"),
	    preprocess.CheckpointTable("checkpoints", "data", "specs", "specObjID", 1000),
	)

	pctx := preprocess.NewContext(ctx, preprocess.WithLogger(logger))
	if err := pipeline.Run(pctx, preprocess.WithTracing(true)); err != nil {
	    log.Fatal(err)
	}

# Custom Stages

Anything that fits the StageFunc signature can be a stage:

	pipeline.Append(preprocess.Stage{
	    Name: "report",
	    Run: func(ctx preprocess.Context) error {
	        ctx.Logger().Info("dataset ready")
	        return nil
	    },
	})

# Error Handling

Run returns a typed error identifying the failing stage:

	err := pipeline.Run(pctx)
	var stageErr *preprocess.StageError
	if errors.As(err, &stageErr) {
	    log.Printf("stage %s failed: %v", stageErr.Stage, stageErr.Err)
	}

Panics inside a stage become a PanicError with the stack attached, and a
cancelled context becomes a CancellationError naming the stage that was
interrupted.

# Subpackages

	checkpoint  content-keyed, append-only object store
	contenthash SHA-1 content digests for keys and datasets
	sdss        record shape, CSV ingestion, dataset identity
	casjobs     CasJobs REST client: login, jobs, exports
	jobs        SQLite ledger of submitted queries
	archive     tar.gz bundling of dataset directories
	config      YAML/JSON settings loader
	errors      error categorization and retry/backoff
	observability logging, metrics, and tracing helpers
*/
package preprocess
