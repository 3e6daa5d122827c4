package middleware

import (
	"log/slog"
	"net/http"

	"model-graphql/internal/logging"
	"model-graphql/internal/observability"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// TracerName is the instrumentation scope for GraphQL execution spans.
const TracerName = "model-graphql/graphql"

// GraphQLTracingMiddleware instruments GraphQL execution with an inner span.
func GraphQLTracingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, ok := RequestInfoFromContext(r.Context())
			if !ok || info.DocumentSize == 0 {
				next.ServeHTTP(w, r)
				return
			}

			ctx, span := otel.Tracer(TracerName).Start(r.Context(), "graphql.execute")
			defer span.End()
			if spanCtx := span.SpanContext(); spanCtx.IsValid() {
				reqLogger := logging.FromContext(ctx).WithFields(
					slog.String("trace_id", spanCtx.TraceID().String()),
					slog.String("span_id", spanCtx.SpanID().String()),
				)
				ctx = logging.WithLogger(ctx, reqLogger)
			}

			if span.IsRecording() {
				span.SetAttributes(observability.GraphQLSpanAttributes(info)...)
			}

			wrapped := newStatusRecorder(w)
			next.ServeHTTP(wrapped, r.WithContext(ctx))

			if span.IsRecording() {
				span.SetAttributes(attribute.Int("http.response.status_code", wrapped.statusCode))
				if wrapped.statusCode >= 500 {
					span.SetStatus(codes.Error, http.StatusText(wrapped.statusCode))
				}
			}
		})
	}
}
