package preprocess

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/KyleAMoore/Redshift-ResNet/pkg/preprocess/observability"
)

// StageFunc is the work of one pipeline stage.
// Stages close over their own dependencies; no state is threaded between
// them. A stage that fails aborts the run.
type StageFunc func(ctx Context) error

// Stage is one named step of a pipeline.
type Stage struct {
	// Name identifies the stage in logs, metrics, and spans.
	Name string
	// Run does the stage's work.
	Run StageFunc
}

// Pipeline executes a fixed sequence of stages in order.
//
// A Pipeline is immutable once built and safe to run multiple times,
// though the stages themselves decide whether re-running is meaningful.
type Pipeline struct {
	name   string
	stages []Stage
}

// New creates a pipeline with the given name and stages.
func New(name string, stages ...Stage) *Pipeline {
	return &Pipeline{
		name:   name,
		stages: append([]Stage(nil), stages...),
	}
}

// Append adds stages to the pipeline, returning it for chaining.
func (p *Pipeline) Append(stages ...Stage) *Pipeline {
	p.stages = append(p.stages, stages...)
	return p
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string {
	return p.name
}

// StageNames returns the stage names in execution order.
func (p *Pipeline) StageNames() []string {
	names := make([]string, len(p.stages))
	for i, stage := range p.stages {
		names[i] = stage.Name
	}
	return names
}

// Run executes the stages in order.
//
// Execution flow:
//  1. Check for cancellation
//  2. Execute the next stage with panic recovery
//  3. Record logs, metrics, and spans for the stage
//  4. Repeat until all stages ran or one failed
//
// On failure, Run returns a StageError, PanicError, or CancellationError
// identifying the stage; stages after it do not execute.
//
// Example:
//
//	ctx := preprocess.NewContext(context.Background())
//	err := pipeline.Run(ctx, preprocess.WithTracing(true))
func (p *Pipeline) Run(ctx Context, opts ...RunOption) (runErr error) {
	if ctx == nil {
		return ErrNilContext
	}
	if len(p.stages) == 0 {
		return ErrNoStages
	}
	for i, stage := range p.stages {
		if stage.Name == "" {
			return fmt.Errorf("stage %d: %w", i, ErrStageName)
		}
		if stage.Run == nil {
			return fmt.Errorf("stage %d (%s): %w", i, stage.Name, ErrNilStageFunc)
		}
	}

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	// Run ID for observability (from config or context)
	runID := cfg.runID
	if runID == "" {
		runID = ctx.RunID()
	}

	// Metrics recorder (from config or context)
	metrics := cfg.metrics
	if metrics == nil {
		metrics = ctx.Metrics()
	}

	startTime := time.Now()
	observability.LogRunStart(ctx.Logger(), runID)

	// Start run span if tracing enabled
	var execCtx context.Context = ctx
	if cfg.tracingEnabled {
		var runSpan trace.Span
		execCtx, runSpan = cfg.spans.StartRunSpan(ctx, p.name, runID)
		defer func() {
			cfg.spans.EndSpanWithError(runSpan, runErr)
		}()
	}

	stageCount := 0
	stageCount, runErr = p.runStages(execCtx, ctx, runID, metrics, &cfg)

	duration := time.Since(startTime)
	durationMs := float64(duration.Milliseconds())
	metrics.RecordPipelineRun(ctx, runErr == nil, duration)

	if runErr != nil {
		observability.LogRunError(ctx.Logger(), runID, runErr, durationMs, failedStage(runErr))
	} else {
		observability.LogRunComplete(ctx.Logger(), runID, durationMs, stageCount)
	}

	return runErr
}

// runStages executes the stage sequence with per-stage observability.
// tracingCtx carries span context; ctx is the pipeline Context.
// Returns the number of stages that completed.
func (p *Pipeline) runStages(tracingCtx context.Context, ctx Context, runID string, metrics observability.MetricsRecorder, cfg *runConfig) (int, error) {
	completed := 0

	for _, stage := range p.stages {
		// Check for cancellation before executing the stage
		select {
		case <-ctx.Done():
			return completed, &CancellationError{
				Stage: stage.Name,
				Cause: ctx.Err(),
			}
		default:
		}

		observability.LogStageStart(ctx.Logger(), stage.Name)

		// Start stage span if tracing enabled
		stageTracingCtx := tracingCtx
		var stageSpan trace.Span
		if cfg.tracingEnabled {
			stageTracingCtx, stageSpan = cfg.spans.StartStageSpan(tracingCtx, stage.Name)
		}

		stageStart := time.Now()
		stageErr := p.executeStage(stageTracingCtx, ctx, stage, runID, metrics)
		stageDuration := time.Since(stageStart)

		metrics.RecordStageExecution(stageTracingCtx, stage.Name, stageDuration, stageErr)
		if cfg.tracingEnabled {
			cfg.spans.EndSpanWithError(stageSpan, stageErr)
		}

		if stageErr != nil {
			observability.LogStageError(ctx.Logger(), stage.Name, stageErr)
			return completed, stageErr
		}

		observability.LogStageComplete(ctx.Logger(), stage.Name, float64(stageDuration.Milliseconds()))
		completed++
	}

	return completed, nil
}

// executeStage executes a single stage with panic recovery.
func (p *Pipeline) executeStage(tracingCtx context.Context, base Context, stage Stage, runID string, metrics observability.MetricsRecorder) (err error) {
	stageCtx := stageContext(tracingCtx, base, runID, stage.Name, metrics)

	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{
				Stage: stage.Name,
				Value: r,
				Stack: string(debug.Stack()),
			}
		}
	}()

	if stageErr := stage.Run(stageCtx); stageErr != nil {
		// A stage surfacing its context's cancellation is a cancelled run,
		// not a stage failure.
		if cause := tracingCtx.Err(); cause != nil && errors.Is(stageErr, cause) {
			return &CancellationError{
				Stage:        stage.Name,
				Cause:        cause,
				WasExecuting: true,
			}
		}
		return &StageError{
			Stage: stage.Name,
			Err:   stageErr,
		}
	}

	return nil
}

// failedStage extracts the failing stage name from a run error.
func failedStage(err error) string {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage
	}
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		return panicErr.Stage
	}
	var cancelErr *CancellationError
	if errors.As(err, &cancelErr) {
		return cancelErr.Stage
	}
	return ""
}
