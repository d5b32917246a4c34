package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SpanOperation names a traced operation.
type SpanOperation string

const (
	SpanOperationDBQuery  SpanOperation = "db.query"
	SpanOperationDBUpdate SpanOperation = "db.update"
	SpanOperationDBTx     SpanOperation = "db.transaction"

	// SpanOperationCacheIncr is a counter increment on the key-value store backing rate limits.
	SpanOperationCacheIncr SpanOperation = "cache.incr"
)

// StartDatabaseSpan starts a client span for a database operation.
func StartDatabaseSpan(ctx context.Context, operation SpanOperation, opts ...DatabaseSpanOption) (context.Context, trace.Span) {
	spanOpts := &databaseSpanOptions{
		attributes: []attribute.KeyValue{attribute.String("db.operation", string(operation))},
	}
	for _, opt := range opts {
		opt(spanOpts)
	}

	spanName := fmt.Sprintf("DB %s", operation)
	if spanOpts.table != "" {
		spanName = fmt.Sprintf("DB %s %s", operation, spanOpts.table)
	}

	ctx, span := otel.Tracer("database").Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(spanOpts.attributes...)
	return ctx, span
}

// DatabaseSpanOption configures a database span.
type DatabaseSpanOption func(*databaseSpanOptions)

type databaseSpanOptions struct {
	table      string
	attributes []attribute.KeyValue
}

// WithDBTable sets the table, or the search entity, the span works on.
func WithDBTable(table string) DatabaseSpanOption {
	return func(opts *databaseSpanOptions) {
		opts.table = table
		opts.attributes = append(opts.attributes, attribute.String("db.table", table))
	}
}

// WithDBSystem sets the database system ("postgres", "mysql").
func WithDBSystem(system string) DatabaseSpanOption {
	return func(opts *databaseSpanOptions) {
		opts.attributes = append(opts.attributes, attribute.String("db.system", system))
	}
}

// WithDBStatement records the parameterized statement. Bound values are never recorded.
func WithDBStatement(statement string) DatabaseSpanOption {
	return func(opts *databaseSpanOptions) {
		opts.attributes = append(opts.attributes, attribute.String("db.statement", statement))
	}
}

// StartCacheSpan starts a client span for a key-value store operation.
func StartCacheSpan(ctx context.Context, operation SpanOperation, opts ...CacheSpanOption) (context.Context, trace.Span) {
	spanOpts := &cacheSpanOptions{
		attributes: []attribute.KeyValue{attribute.String("cache.operation", string(operation))},
	}
	for _, opt := range opts {
		opt(spanOpts)
	}

	ctx, span := otel.Tracer("cache").Start(ctx, fmt.Sprintf("CACHE %s", operation), trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(spanOpts.attributes...)
	return ctx, span
}

// CacheSpanOption configures a cache span.
type CacheSpanOption func(*cacheSpanOptions)

type cacheSpanOptions struct {
	attributes []attribute.KeyValue
}

// WithCacheSystem sets the store system, e.g. "redis".
func WithCacheSystem(system string) CacheSpanOption {
	return func(opts *cacheSpanOptions) {
		opts.attributes = append(opts.attributes, attribute.String("cache.system", system))
	}
}

// WithCacheKey sets the key touched by the operation.
func WithCacheKey(key string) CacheSpanOption {
	return func(opts *cacheSpanOptions) {
		opts.attributes = append(opts.attributes, attribute.String("cache.key", key))
	}
}

// RecordError marks span as failed with err. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// RecordSuccess sets the span status to OK.
func RecordSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}
