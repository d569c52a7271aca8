package observe

import (
	"context"
	"time"
)

// FetchFunc is the signature of an instrumented route call.
type FetchFunc func(ctx context.Context, route RouteMeta, input any) (any, error)

// Middleware wraps route fetches with tracing, metrics, and logging.
//
// Contract:
//   - Concurrency: Wrap returns a FetchFunc that is safe for concurrent use.
//   - Context: the span context is passed to the wrapped function.
//   - Errors: errors are recorded and returned unchanged.
//   - Ownership: input and output values are passed through untouched.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a Middleware. Nil components are replaced by no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = newNoopTracer()
	}
	if metrics == nil {
		metrics = &noopMetrics{}
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Wrap wraps fn with tracing, metrics, and logging.
func (m *Middleware) Wrap(fn FetchFunc) FetchFunc {
	return func(ctx context.Context, route RouteMeta, input any) (any, error) {
		ctx, span := m.tracer.StartSpan(ctx, route)
		start := time.Now()

		result, err := fn(ctx, route, input)

		duration := time.Since(start)
		m.tracer.EndSpan(span, err)
		m.metrics.RecordFetch(ctx, route, duration, err)

		logger := m.logger.WithRoute(route)
		fields := []Field{
			{Key: "duration_ms", Value: float64(duration.Microseconds()) / 1000},
		}
		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			logger.Warn(ctx, "route fetch failed", fields...)
		} else {
			logger.Debug(ctx, "route fetch completed", fields...)
		}

		return result, err
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
