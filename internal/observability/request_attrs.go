package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RequestInfo describes one GraphQL request for spans and log lines.
type RequestInfo struct {
	OperationName string
	OperationType string
	OperationHash string
	UserID        string
	Fingerprint   string
	DocumentSize  int
	FieldCount    int
	Depth         int
}

// GraphQLSpanAttributes builds span attributes for a request.
func GraphQLSpanAttributes(info RequestInfo) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 8)
	if info.OperationName != "" {
		attrs = append(attrs, attribute.String("graphql.operation.name", info.OperationName))
	}
	if info.OperationType != "" {
		attrs = append(attrs, attribute.String("graphql.operation.type", info.OperationType))
	}
	if info.OperationHash != "" {
		attrs = append(attrs, attribute.String("graphql.document.hash", info.OperationHash))
	}
	if info.DocumentSize > 0 {
		attrs = append(attrs, attribute.Int("graphql.document.size_bytes", info.DocumentSize))
	}
	if info.FieldCount > 0 {
		attrs = append(attrs,
			attribute.Int("graphql.query.field_count", info.FieldCount),
			attribute.Int("graphql.query.depth", info.Depth),
		)
	}
	if info.UserID != "" {
		attrs = append(attrs, attribute.Bool("auth.authenticated", true))
	}
	if info.Fingerprint != "" {
		attrs = append(attrs, attribute.String("schema.fingerprint", info.Fingerprint))
	}
	return attrs
}

// GraphQLLogFields builds structured log fields for a request, including the trace id when present.
func GraphQLLogFields(ctx context.Context, info RequestInfo) []any {
	fields := make([]any, 0, 6)
	if info.OperationName != "" {
		fields = append(fields, slog.String("operation_name", info.OperationName))
	}
	if info.OperationType != "" {
		fields = append(fields, slog.String("operation_type", info.OperationType))
	}
	if info.OperationHash != "" {
		fields = append(fields, slog.String("operation_hash", info.OperationHash))
	}
	if info.UserID != "" {
		fields = append(fields, slog.String("user_id", info.UserID))
	}
	if info.Fingerprint != "" {
		fields = append(fields, slog.String("schema_fingerprint", info.Fingerprint))
	}
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		fields = append(fields, slog.String("trace_id", spanCtx.TraceID().String()))
	}
	return fields
}
