package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTracingTest creates a test tracer provider with an in-memory span recorder.
func setupTracingTest(t *testing.T) (*tracetest.InMemoryExporter, func()) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)

	originalProvider := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)

	// Update the package-level tracer
	tracer = otel.Tracer("preprocess")

	cleanup := func() {
		otel.SetTracerProvider(originalProvider)
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down tracer provider: %v", err)
		}
	}

	return exporter, cleanup
}

func TestStartRunSpan(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	t.Run("creates span with correct name and attributes", func(t *testing.T) {
		ctx := context.Background()
		_, span := StartRunSpan(ctx, "sdss-preprocess", "run-123")
		require.NotNil(t, span)

		span.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		s := spans[0]
		assert.Equal(t, "preprocess.run", s.Name)

		var pipelineName, runID string
		for _, attr := range s.Attributes {
			switch attr.Key {
			case "pipeline.name":
				pipelineName = attr.Value.AsString()
			case "run.id":
				runID = attr.Value.AsString()
			}
		}
		assert.Equal(t, "sdss-preprocess", pipelineName)
		assert.Equal(t, "run-123", runID)
	})
}

func TestStartStageSpan(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	t.Run("creates span with stage name suffix", func(t *testing.T) {
		ctx := context.Background()
		_, span := StartStageSpan(ctx, "fetch")
		require.NotNil(t, span)

		span.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		s := spans[0]
		assert.Equal(t, "preprocess.stage.fetch", s.Name)

		var stage string
		for _, attr := range s.Attributes {
			if attr.Key == "stage" {
				stage = attr.Value.AsString()
			}
		}
		assert.Equal(t, "fetch", stage)
	})

	t.Run("child spans have correct parent", func(t *testing.T) {
		exporter.Reset()

		ctx := context.Background()
		ctx, runSpan := StartRunSpan(ctx, "pipeline", "run-1")

		_, stageSpan := StartStageSpan(ctx, "checkpoint")
		stageSpan.End()

		runSpan.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 2)

		var stageData *tracetest.SpanStub
		for i := range spans {
			if spans[i].Name == "preprocess.stage.checkpoint" {
				stageData = &spans[i]
				break
			}
		}
		require.NotNil(t, stageData)
		assert.True(t, stageData.Parent.IsValid())
	})
}

func TestEndSpanWithError(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	t.Run("sets OK status for nil error", func(t *testing.T) {
		ctx := context.Background()
		_, span := StartRunSpan(ctx, "test", "run-1")

		EndSpanWithError(span, nil)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		assert.Equal(t, codes.Ok, spans[0].Status.Code)
		assert.Equal(t, "", spans[0].Status.Description)
	})

	t.Run("sets Error status and records error", func(t *testing.T) {
		exporter.Reset()

		ctx := context.Background()
		_, span := StartRunSpan(ctx, "test", "run-2")
		testErr := errors.New("something went wrong")

		EndSpanWithError(span, testErr)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		s := spans[0]
		assert.Equal(t, codes.Error, s.Status.Code)
		assert.Equal(t, "something went wrong", s.Status.Description)

		require.NotEmpty(t, s.Events)
		found := false
		for _, event := range s.Events {
			if event.Name == "exception" {
				found = true
			}
		}
		assert.True(t, found, "Expected exception event")
	})

	t.Run("nil span does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			EndSpanWithError(nil, nil)
		})
		assert.NotPanics(t, func() {
			EndSpanWithError(nil, errors.New("test"))
		})
	})
}

func TestAddSpanEvent(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	t.Run("adds event to current span", func(t *testing.T) {
		ctx := context.Background()
		ctx, span := StartRunSpan(ctx, "test", "run-1")

		AddSpanEvent(ctx, "checkpoint_saved",
			attribute.String("identity", "g1"),
			attribute.Int64("objects_written", 5),
		)

		span.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		s := spans[0]
		require.NotEmpty(t, s.Events)

		var found bool
		for _, event := range s.Events {
			if event.Name == "checkpoint_saved" {
				found = true
				var identity string
				var written int64
				for _, attr := range event.Attributes {
					switch attr.Key {
					case "identity":
						identity = attr.Value.AsString()
					case "objects_written":
						written = attr.Value.AsInt64()
					}
				}
				assert.Equal(t, "g1", identity)
				assert.Equal(t, int64(5), written)
			}
		}
		assert.True(t, found, "Expected to find checkpoint_saved event")
	})

	t.Run("no panic with no current span", func(t *testing.T) {
		ctx := context.Background()
		assert.NotPanics(t, func() {
			AddSpanEvent(ctx, "test_event")
		})
	})
}

func TestSpanManager_Interface(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	sm := NewSpanManager()
	require.NotNil(t, sm)

	t.Run("StartRunSpan via interface", func(t *testing.T) {
		ctx := context.Background()
		_, span := sm.StartRunSpan(ctx, "interface-pipeline", "run-if")
		require.NotNil(t, span)

		sm.EndSpanWithError(span, nil)

		spans := exporter.GetSpans()
		require.NotEmpty(t, spans)
	})

	t.Run("StartStageSpan via interface", func(t *testing.T) {
		exporter.Reset()

		ctx := context.Background()
		_, span := sm.StartStageSpan(ctx, "interface-stage")
		require.NotNil(t, span)

		sm.EndSpanWithError(span, nil)

		spans := exporter.GetSpans()
		require.NotEmpty(t, spans)
		assert.Equal(t, "preprocess.stage.interface-stage", spans[0].Name)
	})

	t.Run("AddSpanEvent via interface", func(t *testing.T) {
		exporter.Reset()

		ctx := context.Background()
		ctx, span := sm.StartRunSpan(ctx, "test", "run-1")

		sm.AddSpanEvent(ctx, "custom_event", attribute.String("key", "value"))

		sm.EndSpanWithError(span, nil)

		spans := exporter.GetSpans()
		require.NotEmpty(t, spans)
		require.NotEmpty(t, spans[0].Events)
	})
}
