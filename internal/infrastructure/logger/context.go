package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey    contextKey = "logger"
	requestIDKey contextKey = "request_id"
	tenantIDKey  contextKey = "tenant_id"
	eventIDKey   contextKey = "event_id"
)

// WithContext attaches logger to ctx
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger attached to ctx, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// WithRequestID stores the request id on ctx
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithTenantID stores the tenant id on ctx. The unit of work refuses to open
// for any other tenant while it is set.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

// WithEventID stores the inbound event id on ctx
func WithEventID(ctx context.Context, eventID string) context.Context {
	return context.WithValue(ctx, eventIDKey, eventID)
}

// GetRequestID returns the request id on ctx, or ""
func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// GetTenantID returns the tenant id on ctx, or ""
func GetTenantID(ctx context.Context) string {
	return stringValue(ctx, tenantIDKey)
}

// GetEventID returns the inbound event id on ctx, or ""
func GetEventID(ctx context.Context) string {
	return stringValue(ctx, eventIDKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

// Fields returns the correlation fields carried on ctx: trace and span ids
// from the active span, then request, tenant and event ids when set.
func Fields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	for _, kv := range []struct {
		name  string
		value string
	}{
		{"request_id", GetRequestID(ctx)},
		{"tenant_id", GetTenantID(ctx)},
		{"event_id", GetEventID(ctx)},
	} {
		if kv.value != "" {
			fields = append(fields, zap.String(kv.name, kv.value))
		}
	}
	return fields
}

// L returns the context logger enriched with the correlation fields of ctx.
//
//	logger.L(ctx).Info("journal entry posted", zap.Int64("journal_number", n))
func L(ctx context.Context) *zap.Logger {
	return For(ctx, FromContext(ctx))
}

// For enriches base with the correlation fields of ctx
func For(ctx context.Context, base *zap.Logger) *zap.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	fields := Fields(ctx)
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}
