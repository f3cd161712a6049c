package interceptor

import (
	"github.com/advdv/bpipe"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/advdv/bpipe/interceptor"

// Tracing starts a span per traversal. When the transport already started a span the
// traversal span is its child; otherwise it is a server span continuing the trace found in the
// request headers. The span is renamed to the matched route pattern once the table ran.
func Tracing(tp trace.TracerProvider, prop propagation.TextMapPropagator) bpipe.Interceptor {
	tracer := tp.Tracer(tracerName)

	return bpipe.InterceptorFunc(func(r *bpipe.Request, next bpipe.Next) (*bpipe.Response, error) {
		ctx, kind := r.Context(), trace.SpanKindInternal
		if !trace.SpanContextFromContext(ctx).IsValid() {
			ctx, kind = prop.Extract(ctx, propagation.HeaderCarrier(r.Header())), trace.SpanKindServer
		}

		ctx, span := tracer.Start(ctx, r.Method()+" "+r.Path(),
			trace.WithSpanKind(kind),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method()),
				attribute.String("url.path", r.Path()),
			))

		var resp *bpipe.Response
		defer func() {
			if rt, ok := bpipe.MatchedRoute(r); ok {
				span.SetName(r.Method() + " " + rt.Pattern())
				span.SetAttributes(attribute.String("http.route", rt.Pattern()))
			}

			switch {
			case resp == nil:
				span.SetStatus(codes.Error, "pipeline fault")
			case resp.Status() >= 500:
				span.SetAttributes(attribute.Int("http.response.status_code", resp.Status()))
				span.SetStatus(codes.Error, "")
			default:
				span.SetAttributes(attribute.Int("http.response.status_code", resp.Status()))
			}

			span.End()
		}()

		resp = next(r.WithContext(ctx))

		return resp, nil
	})
}
