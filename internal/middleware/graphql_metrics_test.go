package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"model-graphql/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestGraphQLMetricsMiddleware_OperationTypeMutation(t *testing.T) {
	handler, reader := setupGraphQLMetricsMiddleware(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"createPost":{"post":{"id":"UG9zdDox"}}}}`))
	}))

	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":"mutation Make { createPost(input: {title: \"x\"}) { post { id } } }","operationName":"Make"}`))
	req.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	rm := collectMetrics(t, reader)
	assert.EqualValues(t, 1, sumInt64Value(rm, "graphql.requests.total", "mutation", boolPtr(false)))
	assert.Zero(t, sumInt64Value(rm, "graphql.errors.total", "mutation", nil))
}

func TestGraphQLMetricsMiddleware_HTTP200WithGraphQLErrors(t *testing.T) {
	handler, reader := setupGraphQLMetricsMiddleware(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":null,"errors":[{"message":"Insufficient Permissions"}]}`))
	}))

	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":"query { allPosts { id } }"}`))
	req.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	rm := collectMetrics(t, reader)
	assert.EqualValues(t, 1, sumInt64Value(rm, "graphql.requests.total", "query", boolPtr(true)))
	assert.EqualValues(t, 1, sumInt64Value(rm, "graphql.errors.total", "query", nil))
}

func TestGraphQLMetricsMiddleware_FallbackToUnknownOperationType(t *testing.T) {
	handler, reader := setupGraphQLMetricsMiddleware(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":`))
	req.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	rm := collectMetrics(t, reader)
	assert.EqualValues(t, 1, sumInt64Value(rm, "graphql.requests.total", "unknown", boolPtr(true)))
}

func TestGraphQLMetricsMiddleware_UsesAnalyzedRequestAndExposesRecorder(t *testing.T) {
	var fromCtx *observability.GraphQLMetrics
	handler, reader := setupGraphQLMetricsMiddleware(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = observability.GraphQLMetricsFromContext(r.Context())
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))

	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`not json`))
	req = req.WithContext(WithRequestInfo(req.Context(), observability.RequestInfo{OperationType: "mutation"}))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, fromCtx)
	rm := collectMetrics(t, reader)
	assert.EqualValues(t, 1, sumInt64Value(rm, "graphql.requests.total", "mutation", boolPtr(false)))
}

func TestGraphQLMetricsMiddleware_SkipsGET(t *testing.T) {
	handler, reader := setupGraphQLMetricsMiddleware(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Nil(t, observability.GraphQLMetricsFromContext(r.Context()))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/graphql", nil))

	rm := collectMetrics(t, reader)
	assert.Zero(t, sumInt64Value(rm, "graphql.requests.total", "unknown", nil))
}

func TestResponseHasGraphQLErrors(t *testing.T) {
	assert.False(t, responseHasGraphQLErrors(nil))
	assert.False(t, responseHasGraphQLErrors([]byte(`{"data":{}}`)))
	assert.False(t, responseHasGraphQLErrors([]byte(`{"errors":null}`)))
	assert.False(t, responseHasGraphQLErrors([]byte(`{"errors":[]}`)))
	assert.False(t, responseHasGraphQLErrors([]byte(`<html>`)))
	assert.True(t, responseHasGraphQLErrors([]byte(` {"errors":[{"message":"x"}]} `)))
}

func setupGraphQLMetricsMiddleware(t *testing.T, next http.Handler) (http.Handler, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	oldProvider := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
		otel.SetMeterProvider(oldProvider)
	})

	metrics, err := observability.InitGraphQLMetrics()
	if err != nil {
		t.Fatalf("failed to initialize GraphQL metrics: %v", err)
	}
	return GraphQLMetricsMiddleware(metrics)(next), reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return rm
}

func sumInt64Value(rm metricdata.ResourceMetrics, metricName, operationType string, hasErrors *bool) int64 {
	var total int64
	for _, scope := range rm.ScopeMetrics {
		for _, metric := range scope.Metrics {
			if metric.Name != metricName {
				continue
			}
			sum, ok := metric.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, point := range sum.DataPoints {
				if !matchOperation(point.Attributes, operationType) {
					continue
				}
				if hasErrors != nil && !matchHasErrors(point.Attributes, *hasErrors) {
					continue
				}
				total += point.Value
			}
		}
	}
	return total
}

func matchOperation(attrs attribute.Set, operationType string) bool {
	for _, kv := range attrs.ToSlice() {
		if string(kv.Key) == "operation_type" {
			return kv.Value.AsString() == operationType
		}
	}
	return false
}

func matchHasErrors(attrs attribute.Set, hasErrors bool) bool {
	for _, kv := range attrs.ToSlice() {
		if string(kv.Key) == "has_errors" {
			return kv.Value.AsBool() == hasErrors
		}
	}
	return false
}

func boolPtr(v bool) *bool {
	return &v
}
