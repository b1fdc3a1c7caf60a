package cache

import (
	"context"

	"github.com/getsentry/sentry-go"
)

// StartCacheSpan opens a tracing span for a cache operation when a sentry
// hub is present on the context, and returns nil otherwise. Callers pass
// the returned span to FinishSpan unconditionally.
func StartCacheSpan(ctx context.Context, backend, operation string, params map[string]interface{}) *sentry.Span {
	if sentry.GetHubFromContext(ctx) == nil {
		return nil
	}

	span := sentry.StartSpan(ctx, "cache."+backend+"."+operation)
	if span == nil {
		return nil
	}
	span.Description = "cache." + backend + "." + operation
	span.Op = "db.cache"
	span.SetData("cache", backend)
	span.SetData("operation", operation)
	for k, v := range params {
		span.SetData(k, v)
	}
	return span
}

// FinishSpan finishes the span if one was started.
func FinishSpan(span *sentry.Span) {
	if span != nil {
		span.Finish()
	}
}

// SetSpanError records a failed cache operation on the span.
func SetSpanError(span *sentry.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.Status = sentry.SpanStatusInternalError
	span.SetData("error", err.Error())
}
