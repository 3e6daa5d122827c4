package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// GraphQLMetrics holds instruments recorded per GraphQL request and per mutation.
type GraphQLMetrics struct {
	requestDuration metric.Float64Histogram
	requestCounter  metric.Int64Counter
	errorCounter    metric.Int64Counter
	activeRequests  metric.Int64UpDownCounter
	resultsCount    metric.Int64Histogram
	mutations       metric.Int64Counter
	signins         metric.Int64Counter
}

// InitGraphQLMetrics initializes GraphQL-specific metrics
func InitGraphQLMetrics() (*GraphQLMetrics, error) {
	meter := otel.Meter(MeterName)

	requestDuration, err := meter.Float64Histogram(
		"graphql.request.duration",
		metric.WithDescription("Duration of GraphQL requests in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request duration histogram: %w", err)
	}

	requestCounter, err := meter.Int64Counter(
		"graphql.requests.total",
		metric.WithDescription("Total number of GraphQL requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}

	errorCounter, err := meter.Int64Counter(
		"graphql.errors.total",
		metric.WithDescription("Total number of GraphQL requests that returned errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create error counter: %w", err)
	}

	activeRequests, err := meter.Int64UpDownCounter(
		"graphql.requests.active",
		metric.WithDescription("Number of active GraphQL requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active requests counter: %w", err)
	}

	resultsCount, err := meter.Int64Histogram(
		"graphql.results.count",
		metric.WithDescription("Number of records returned by collection fields"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create results count histogram: %w", err)
	}

	mutations, err := meter.Int64Counter(
		"graphql.mutations.total",
		metric.WithDescription("Total number of generated mutations executed"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mutation counter: %w", err)
	}

	signins, err := meter.Int64Counter(
		"graphql.signin.total",
		metric.WithDescription("Total number of signinUser attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create signin counter: %w", err)
	}

	return &GraphQLMetrics{
		requestDuration: requestDuration,
		requestCounter:  requestCounter,
		errorCounter:    errorCounter,
		activeRequests:  activeRequests,
		resultsCount:    resultsCount,
		mutations:       mutations,
		signins:         signins,
	}, nil
}

// RecordRequest records a GraphQL request with its duration and outcome
func (m *GraphQLMetrics) RecordRequest(ctx context.Context, duration time.Duration, hasErrors bool, operationType string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("operation_type", operationType),
		attribute.Bool("has_errors", hasErrors),
	)
	m.requestDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	m.requestCounter.Add(ctx, 1, attrs)

	if hasErrors {
		m.errorCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation_type", operationType),
		))
	}
}

// RecordResultsCount records the number of records a collection field returned.
func (m *GraphQLMetrics) RecordResultsCount(ctx context.Context, count int64, entity string) {
	if m == nil {
		return
	}
	m.resultsCount.Record(ctx, count, metric.WithAttributes(
		attribute.String("entity", entity),
	))
}

// RecordMutation counts a create, update or delete against an entity.
func (m *GraphQLMetrics) RecordMutation(ctx context.Context, op, entity string, success bool) {
	if m == nil {
		return
	}
	m.mutations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("entity", entity),
		attribute.Bool("success", success),
	))
}

// RecordSignin counts a signinUser attempt. outcome is "success" or an error code.
func (m *GraphQLMetrics) RecordSignin(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.signins.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// IncrementActiveRequests increments the active requests counter
func (m *GraphQLMetrics) IncrementActiveRequests(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeRequests.Add(ctx, 1)
}

// DecrementActiveRequests decrements the active requests counter
func (m *GraphQLMetrics) DecrementActiveRequests(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeRequests.Add(ctx, -1)
}

// InitMetrics initializes all custom metrics and returns the GraphQLMetrics instance
func InitMetrics(logger *slog.Logger) (*GraphQLMetrics, error) {
	metrics, err := InitGraphQLMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GraphQL metrics: %w", err)
	}

	logger.Info("custom GraphQL metrics initialized")
	return metrics, nil
}

type graphQLMetricsContextKey struct{}

// ContextWithGraphQLMetrics stores GraphQL metrics in the provided context.
func ContextWithGraphQLMetrics(ctx context.Context, metrics *GraphQLMetrics) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, graphQLMetricsContextKey{}, metrics)
}

// GraphQLMetricsFromContext retrieves GraphQL metrics from the context.
// The result may be nil; every recording method tolerates a nil receiver.
func GraphQLMetricsFromContext(ctx context.Context) *GraphQLMetrics {
	if ctx == nil {
		return nil
	}
	metrics, _ := ctx.Value(graphQLMetricsContextKey{}).(*GraphQLMetrics)
	return metrics
}
