package errors

import (
	"context"
	"log/slog"
)

// Handler coordinates retry handling for remote operations.
type Handler struct {
	retry       RetryConfig
	logger      *slog.Logger
	onExhausted func(err error)
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// NewHandler creates a new error handler with the given options.
func NewHandler(opts ...HandlerOption) *Handler {
	h := &Handler{
		retry:  DefaultRetry,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(cfg RetryConfig) HandlerOption {
	return func(h *Handler) {
		h.retry = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithOnExhausted sets a callback for when all retries are exhausted.
func WithOnExhausted(fn func(err error)) HandlerOption {
	return func(h *Handler) {
		h.onExhausted = fn
	}
}

// Execute runs a function with retry handling.
func (h *Handler) Execute(
	ctx context.Context,
	fn func(ctx context.Context) error,
) error {
	result := WithRetryContext(ctx, h.retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	if result.Err != nil {
		if result.Attempts > 1 {
			h.logger.Warn("operation failed after retries",
				"attempts", result.Attempts,
				"error", result.Err,
			)
		}
		if h.onExhausted != nil {
			h.onExhausted(result.Err)
		}
	}
	return result.Err
}

// ExecuteWithValue runs a function with retry handling and returns a value.
func ExecuteWithValue[T any](
	ctx context.Context,
	h *Handler,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	result := WithRetryContext(ctx, h.retry, fn)
	if result.Err != nil {
		if result.Attempts > 1 {
			h.logger.Warn("operation failed after retries",
				"attempts", result.Attempts,
				"error", result.Err,
			)
		}
		if h.onExhausted != nil {
			h.onExhausted(result.Err)
		}
	}
	return result.Value, result.Err
}
