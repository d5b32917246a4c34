package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(previous) })
	return recorder
}

func attrs(span sdktrace.ReadOnlySpan) map[attribute.Key]string {
	out := make(map[attribute.Key]string)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value.Emit()
	}
	return out
}

func TestStartDatabaseSpan(t *testing.T) {
	recorder := setupTestTracer(t)

	tests := []struct {
		name          string
		operation     SpanOperation
		opts          []DatabaseSpanOption
		expectedName  string
		expectedAttrs map[attribute.Key]string
	}{
		{
			name:          "bare query",
			operation:     SpanOperationDBQuery,
			expectedName:  "DB db.query",
			expectedAttrs: map[attribute.Key]string{"db.operation": "db.query"},
		},
		{
			name:      "search with entity and statement",
			operation: SpanOperationDBQuery,
			opts: []DatabaseSpanOption{
				WithDBTable("tutors_public"),
				WithDBSystem("postgres"),
				WithDBStatement("SELECT COUNT(*) FROM tutors t WHERE (t.validated = TRUE)"),
			},
			expectedName: "DB db.query tutors_public",
			expectedAttrs: map[attribute.Key]string{
				"db.operation": "db.query",
				"db.table":     "tutors_public",
				"db.system":    "postgres",
				"db.statement": "SELECT COUNT(*) FROM tutors t WHERE (t.validated = TRUE)",
			},
		},
		{
			name:          "ledger transaction",
			operation:     SpanOperationDBTx,
			opts:          []DatabaseSpanOption{WithDBTable("enrollments")},
			expectedName:  "DB db.transaction enrollments",
			expectedAttrs: map[attribute.Key]string{"db.operation": "db.transaction", "db.table": "enrollments"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder.Reset()
			_, span := StartDatabaseSpan(context.Background(), tt.operation, tt.opts...)
			span.End()

			spans := recorder.Ended()
			if len(spans) != 1 {
				t.Fatalf("expected 1 span, got %d", len(spans))
			}
			got := spans[0]
			if got.Name() != tt.expectedName {
				t.Errorf("expected span name %q, got %q", tt.expectedName, got.Name())
			}
			if got.SpanKind() != trace.SpanKindClient {
				t.Errorf("expected client span, got %v", got.SpanKind())
			}
			recorded := attrs(got)
			for key, want := range tt.expectedAttrs {
				if recorded[key] != want {
					t.Errorf("attribute %s = %q, want %q", key, recorded[key], want)
				}
			}
		})
	}
}

func TestStartCacheSpan(t *testing.T) {
	recorder := setupTestTracer(t)

	_, span := StartCacheSpan(context.Background(), SpanOperationCacheIncr,
		WithCacheSystem("redis"),
		WithCacheKey("ratelimit:10.0.0.1"),
	)
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 || spans[0].Name() != "CACHE cache.incr" {
		t.Fatalf("unexpected spans: %v", spans)
	}
	recorded := attrs(spans[0])
	if recorded["cache.system"] != "redis" || recorded["cache.key"] != "ratelimit:10.0.0.1" {
		t.Fatalf("unexpected attributes: %v", recorded)
	}
}

func TestSpanNestsUnderParent(t *testing.T) {
	recorder := setupTestTracer(t)

	ctx, parent := otel.Tracer("http").Start(context.Background(), "POST /api/tutors/search")
	_, child := StartDatabaseSpan(ctx, SpanOperationDBQuery, WithDBTable("tutors"))
	child.End()
	parent.End()

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Parent().SpanID() != spans[1].SpanContext().SpanID() {
		t.Fatal("database span is not a child of the request span")
	}
}

func TestRecordErrorAndSuccess(t *testing.T) {
	recorder := setupTestTracer(t)

	_, failed := StartDatabaseSpan(context.Background(), SpanOperationDBUpdate)
	RecordError(failed, errors.New("deadlock detected"))
	failed.End()

	_, ok := StartDatabaseSpan(context.Background(), SpanOperationDBUpdate)
	RecordError(ok, nil)
	RecordSuccess(ok)
	ok.End()

	spans := recorder.Ended()
	if spans[0].Status().Code != codes.Error || spans[0].Status().Description != "deadlock detected" {
		t.Fatalf("unexpected failed status: %+v", spans[0].Status())
	}
	if len(spans[0].Events()) == 0 {
		t.Fatal("expected an exception event")
	}
	if spans[1].Status().Code != codes.Ok {
		t.Fatalf("unexpected ok status: %+v", spans[1].Status())
	}
}
