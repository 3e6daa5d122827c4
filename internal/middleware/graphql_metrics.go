package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"model-graphql/internal/observability"
)

// GraphQLMetricsMiddleware records request metrics and exposes the recorder
// to resolvers through the request context.
func GraphQLMetricsMiddleware(metrics *observability.GraphQLMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// GraphiQL page loads are not GraphQL requests.
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			ctx := observability.ContextWithGraphQLMetrics(r.Context(), metrics)
			r = r.WithContext(ctx)

			metrics.IncrementActiveRequests(ctx)
			defer metrics.DecrementActiveRequests(ctx)

			start := time.Now()

			operationType := "unknown"
			info, ok := RequestInfoFromContext(ctx)
			if !ok {
				info = AnalyzeGraphQLRequest(r)
			}
			if info.OperationType != "" {
				operationType = info.OperationType
			}

			wrapped := newStatusRecorder(w)
			wrapped.capture = true
			next.ServeHTTP(wrapped, r)

			hasErrors := wrapped.statusCode >= 400 || responseHasGraphQLErrors(wrapped.body)
			metrics.RecordRequest(ctx, time.Since(start), hasErrors, operationType)
		})
	}
}

func responseHasGraphQLErrors(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return false
	}

	var payload struct {
		Errors json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return false
	}

	errorsValue := bytes.TrimSpace(payload.Errors)
	if len(errorsValue) == 0 || bytes.Equal(errorsValue, []byte("null")) {
		return false
	}

	var errorsList []json.RawMessage
	if err := json.Unmarshal(errorsValue, &errorsList); err != nil {
		return false
	}
	return len(errorsList) > 0
}
