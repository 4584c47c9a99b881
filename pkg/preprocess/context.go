package preprocess

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/KyleAMoore/Redshift-ResNet/pkg/preprocess/observability"
)

// Context provides execution context to stages.
// It extends context.Context with pipeline services and metadata.
//
// Context is immutable after creation. The runner creates a derived context
// for each stage with the stage name set and the logger enriched.
type Context interface {
	context.Context

	// Services

	// Logger returns the configured logger, enriched with run and stage
	// context during execution. Never returns nil - defaults to a discard
	// logger if not configured.
	Logger() *slog.Logger

	// Metrics returns the metrics recorder. Never returns nil - defaults
	// to a no-op recorder if not configured.
	Metrics() observability.MetricsRecorder

	// Metadata

	// RunID returns the unique identifier for this pipeline run.
	// Auto-generated if not configured.
	RunID() string

	// Stage returns the stage currently executing.
	// Empty string before execution starts.
	Stage() string
}

// executionContext is the internal implementation of Context.
type executionContext struct {
	context.Context

	logger  *slog.Logger
	metrics observability.MetricsRecorder
	runID   string
	stage   string
}

// Logger returns the configured logger.
func (c *executionContext) Logger() *slog.Logger {
	return c.logger
}

// Metrics returns the metrics recorder.
func (c *executionContext) Metrics() observability.MetricsRecorder {
	return c.metrics
}

// RunID returns the run identifier.
func (c *executionContext) RunID() string {
	return c.runID
}

// Stage returns the current stage name.
func (c *executionContext) Stage() string {
	return c.stage
}

// ContextOption configures a Context.
type ContextOption func(*executionContext)

// WithLogger sets the logger for the context.
// The logger is enriched with run_id and stage during execution.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		c.logger = logger
	}
}

// WithMetricsRecorder sets the metrics recorder stages see through
// Context.Metrics.
func WithMetricsRecorder(m observability.MetricsRecorder) ContextOption {
	return func(c *executionContext) {
		c.metrics = m
	}
}

// WithContextRunID sets the run identifier for the context.
// If not set, a UUID is auto-generated. To override the identifier for a
// single run, use WithRunID() as a RunOption with Run().
func WithContextRunID(id string) ContextOption {
	return func(c *executionContext) {
		c.runID = id
	}
}

// NewContext creates an execution context from a standard context.
// The returned Context wraps the provided context.Context and adds
// pipeline services and metadata.
//
// Example:
//
//	ctx := preprocess.NewContext(context.Background(),
//	    preprocess.WithLogger(myLogger),
//	    preprocess.WithContextRunID("run-123"))
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	ec := &executionContext{
		Context: ctx,
		logger:  observability.Discard(),
		metrics: observability.NoopMetrics{},
		runID:   uuid.New().String(),
	}

	for _, opt := range opts {
		opt(ec)
	}

	return ec
}

// stageContext derives the per-stage context handed to a StageFunc.
// parent carries cancellation and any active trace span; base supplies the
// logger to enrich.
func stageContext(parent context.Context, base Context, runID, stage string, metrics observability.MetricsRecorder) *executionContext {
	return &executionContext{
		Context: parent,
		logger:  observability.EnrichLogger(base.Logger(), runID, stage),
		metrics: metrics,
		runID:   runID,
		stage:   stage,
	}
}
