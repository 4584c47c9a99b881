package preprocess

import (
	"github.com/KyleAMoore/Redshift-ResNet/pkg/preprocess/observability"
)

// runConfig holds configuration for pipeline execution.
type runConfig struct {
	runID          string
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	tracingEnabled bool
}

// defaultRunConfig returns the default execution configuration.
// A nil metrics recorder means Run inherits the context's recorder.
func defaultRunConfig() runConfig {
	return runConfig{
		spans: observability.NoopSpanManager{},
	}
}

// RunOption configures execution behavior.
type RunOption func(*runConfig)

// WithRunID overrides the run identifier used for logging, metrics, and
// tracing. Defaults to the context's run ID.
func WithRunID(id string) RunOption {
	return func(c *runConfig) {
		c.runID = id
	}
}

// WithMetrics enables OpenTelemetry metrics for this run.
// Default: inherit the context's recorder (no-op unless configured).
//
// WithMetrics(false) forces a no-op recorder even when the context
// carries one.
//
// The recorder uses the global OTel meter provider; configure it before
// running. Example:
//
//	err := pipeline.Run(ctx, preprocess.WithMetrics(true))
func WithMetrics(enabled bool) RunOption {
	return func(c *runConfig) {
		if enabled {
			c.metrics = observability.NewMetricsRecorder()
		} else {
			c.metrics = observability.NoopMetrics{}
		}
	}
}

// WithTracing enables OpenTelemetry tracing for this run: one span per run
// with a child span per stage.
//
// The spans use the global OTel tracer provider; configure it before
// running.
func WithTracing(enabled bool) RunOption {
	return func(c *runConfig) {
		c.tracingEnabled = enabled
		if enabled {
			c.spans = observability.NewSpanManager()
		} else {
			c.spans = observability.NoopSpanManager{}
		}
	}
}
