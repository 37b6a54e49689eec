package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// DetachTraceContext returns a fresh background context that only carries
// the span context of ctx. Work started from it outlives the request that
// triggered it while staying linked to the same trace.
func DetachTraceContext(ctx context.Context) context.Context {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return context.Background()
	}
	return trace.ContextWithRemoteSpanContext(context.Background(), sc)
}

// FireAndForget runs fn in its own goroutine on a detached context. The
// caller never waits for it. Errors and panics are logged and dropped.
// done, when non-nil, is called after fn returns.
func FireAndForget(ctx context.Context, logger *slog.Logger, task string, fn func(context.Context) error, done func()) {
	bg := DetachTraceContext(ctx)
	go func() {
		if done != nil {
			defer done()
		}
		defer func() {
			if r := recover(); r != nil {
				logger.ErrorContext(bg, "background task panicked",
					"task", task,
					"panic", fmt.Sprint(r),
				)
			}
		}()
		if err := fn(bg); err != nil {
			logger.WarnContext(bg, "background task failed",
				"task", task,
				"error", err,
			)
		}
	}()
}
