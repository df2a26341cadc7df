package mediator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/reactivities/reactivities/internal/metrics"
)

// Logging logs every dispatch with its duration. Failures other than
// validation errors are logged at warn level.
func Logging(logger *slog.Logger) Behavior {
	return func(ctx context.Context, name string, request any, next Next) (any, error) {
		start := time.Now()
		result, err := next(ctx, request)

		attrs := []any{
			slog.String("request", name),
			slog.Duration("duration", time.Since(start)),
		}

		var validationErr *ValidationError
		switch {
		case err == nil:
			logger.DebugContext(ctx, "request handled", attrs...)
		case errors.As(err, &validationErr):
			logger.DebugContext(ctx, "request rejected", append(attrs, slog.Any("fields", validationErr.Fields))...)
		default:
			logger.WarnContext(ctx, "request failed", append(attrs, slog.String("error", err.Error()))...)
		}

		return result, err
	}
}

// Metrics records per-request latency and outcome.
func Metrics(recorder metrics.Recorder) Behavior {
	return func(ctx context.Context, name string, request any, next Next) (any, error) {
		start := time.Now()
		result, err := next(ctx, request)

		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		recorder.ObserveRequest(name, outcome, time.Since(start))

		return result, err
	}
}

// Validator is implemented by requests that can check themselves.
type Validator interface {
	Validate() error
}

// Validation rejects requests whose Validate method fails before the
// handler runs.
func Validation() Behavior {
	return func(ctx context.Context, name string, request any, next Next) (any, error) {
		if v, ok := request.(Validator); ok {
			if err := v.Validate(); err != nil {
				return nil, err
			}
		}
		return next(ctx, request)
	}
}
