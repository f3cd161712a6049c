// Package interceptor holds the interceptors most pipelines want at their outer edge: request
// ids, request-scoped logging, access logs, deadlines, rate limiting, metrics, tracing and API
// key checks.
//
// The usual order, outermost first:
//
//	mux.Use(
//	    interceptor.RequestID(),
//	    interceptor.Tracing(tp, prop),
//	    interceptor.Logger(logs),
//	    interceptor.AccessLog(),
//	    metrics,
//	    interceptor.Deadline(10*time.Second),
//	    limiter,
//	)
//
// Faults unwind past interceptors that already called next. Interceptors that must observe
// every traversal (access logs, metrics, tracing) notice the unwinding in a deferred function.
package interceptor
