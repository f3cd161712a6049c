package interceptor_test

import (
	"net/http"
	"testing"

	"github.com/advdv/bpipe"
	"github.com/advdv/bpipe/interceptor"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func attrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	m := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		m[kv.Key] = kv.Value
	}
	return m
}

func TestTracing(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	core, logs := observer.New(zapcore.InfoLevel)

	mux := bpipe.NewServeMux()
	mux.Use(
		interceptor.Tracing(tp, propagation.TraceContext{}),
		interceptor.Logger(zap.New(core)),
	)
	mux.HandleFunc("GET /items/{id}", func(r *bpipe.Request) (*bpipe.Response, error) {
		interceptor.Log(r).Info("in handler")
		return ok(r)
	})
	mux.HandleFunc("GET /fail", func(*bpipe.Request) (*bpipe.Response, error) {
		return nil, errors.New("boom")
	})

	t.Run("continues the incoming trace", func(t *testing.T) {
		req := get("/items/42")
		req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
		rec := serve(t, mux, req)
		require.Equal(t, http.StatusOK, rec.Code)

		spans := sr.Ended()
		require.Len(t, spans, 1)
		span := spans[0]
		require.Equal(t, "GET /items/{id}", span.Name())
		require.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", span.SpanContext().TraceID().String())
		require.Equal(t, "00f067aa0ba902b7", span.Parent().SpanID().String())
		require.Equal(t, int64(200), attrs(span)["http.response.status_code"].AsInt64())
		require.Equal(t, "/items/{id}", attrs(span)["http.route"].AsString())

		entries := logs.FilterMessage("in handler").All()
		require.Len(t, entries, 1)
		require.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entries[0].ContextMap()["trace_id"])
		require.Equal(t, span.SpanContext().SpanID().String(), entries[0].ContextMap()["span_id"])
	})

	t.Run("marks faults", func(t *testing.T) {
		rec := serve(t, mux, get("/fail"))
		require.Equal(t, http.StatusInternalServerError, rec.Code)

		spans := sr.Ended()
		span := spans[len(spans)-1]
		require.Equal(t, "GET /fail", span.Name())
		require.Equal(t, codes.Error, span.Status().Code)
		require.False(t, span.Parent().IsValid())
	})
}

func TestTracingNestsUnderTransportSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	pipe, err := bpipe.Build([]bpipe.Interceptor{
		interceptor.Tracing(tp, propagation.TraceContext{}),
	}, bpipe.HandlerFunc(ok))
	require.NoError(t, err)

	ctx, outer := tp.Tracer("transport").Start(t.Context(), "transport")
	r := bpipe.NewRequest(ctx, http.MethodGet, "/", nil, http.Header{
		"Traceparent": {"00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"},
	}, nil)
	pipe.Serve(r)
	outer.End()

	spans := sr.Ended()
	require.Len(t, spans, 2)
	require.Equal(t, outer.SpanContext().SpanID(), spans[0].Parent().SpanID())
	require.Equal(t, trace.SpanKindInternal, spans[0].SpanKind())
}
