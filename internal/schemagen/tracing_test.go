package schemagen

import (
	"context"
	"testing"

	"model-graphql/internal/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func installResolverSpanRecorder(t *testing.T) (*tracetest.SpanRecorder, func()) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	tp.RegisterSpanProcessor(recorder)

	oldProvider := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)

	return recorder, func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(oldProvider)
	}
}

func findEndedSpanByName(spans []sdktrace.ReadOnlySpan, name string) sdktrace.ReadOnlySpan {
	for _, span := range spans {
		if span.Name() == name {
			return span
		}
	}
	return nil
}

func readSpanString(attrs []attribute.KeyValue, key string) string {
	for _, attr := range attrs {
		if string(attr.Key) == key {
			return attr.Value.AsString()
		}
	}
	return ""
}

func TestCollectionResolverEmitsSpan(t *testing.T) {
	recorder, cleanup := installResolverSpanRecorder(t)
	defer cleanup()

	h := newHarness(t, ModeRelay)
	h.insert(t, "Post", store.Record{"title": "traced"})
	h.mustExec(t, `{ allPosts { totalCount } }`, nil)

	span := findEndedSpanByName(recorder.Ended(), "graphql.collection")
	if span == nil {
		t.Fatalf("expected graphql.collection span")
	}
	if got := readSpanString(span.Attributes(), "graphql.entity"); got != "Post" {
		t.Fatalf("graphql.entity = %q, want Post", got)
	}
	if got := readSpanString(span.Attributes(), "graphql.resolver.outcome"); got != "success" {
		t.Fatalf("graphql.resolver.outcome = %q, want success", got)
	}
}

func TestSigninFailureSpanIsTypedFailure(t *testing.T) {
	recorder, cleanup := installResolverSpanRecorder(t)
	defer cleanup()

	h := newHarness(t, ModeSimple)
	result := h.exec(`mutation { signinUser(email: "nobody@b.com", password: "x") { token } }`, nil)
	if len(result.Errors) == 0 {
		t.Fatalf("expected sign-in to fail")
	}

	span := findEndedSpanByName(recorder.Ended(), "graphql.mutation.signin")
	if span == nil {
		t.Fatalf("expected graphql.mutation.signin span")
	}
	if got := readSpanString(span.Attributes(), "graphql.resolver.outcome"); got != "typed_failure" {
		t.Fatalf("graphql.resolver.outcome = %q, want typed_failure", got)
	}
}
