package interceptor

import (
	"context"

	"github.com/advdv/bpipe"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var loggerKey = bpipe.NewKey[*zap.Logger]("logger")

// Logger stores a request-scoped logger in the bag. It carries the method, the path and, when
// [RequestID] ran before it, the request id.
func Logger(base *zap.Logger) bpipe.Interceptor {
	return bpipe.InterceptorFunc(func(r *bpipe.Request, next bpipe.Next) (*bpipe.Response, error) {
		fields := []zap.Field{
			zap.String("method", r.Method()),
			zap.String("path", r.Path()),
		}
		if id := GetRequestID(r); id != "" {
			fields = append(fields, zap.String("request_id", id))
		}

		bpipe.Set(r, loggerKey, base.With(fields...))

		return next(nil), nil
	})
}

// Log returns the request-scoped logger, correlated with the current span if there is one.
func Log(r *bpipe.Request) *zap.Logger {
	l, ok := bpipe.Get(r, loggerKey)
	if !ok {
		panic("interceptor: no logger in request; is the Logger interceptor configured?")
	}
	return l.With(traceFields(r.Context())...)
}

func traceFields(ctx context.Context) []zap.Field {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}
