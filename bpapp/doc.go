// Package bpapp runs a bpipe pipeline as a batteries-included service.
//
// An app is an fx graph: the environment is parsed with caarlos0/env, a zap logger and an
// OpenTelemetry tracer provider are created from it, and a [Mux] is prepared with the
// interceptors every service wants (request ids, tracing, request-scoped logging, access logs,
// prometheus metrics, deadlines and optional rate limiting). The routing function registers
// routes; when the app starts the readiness and metrics endpoints are added, the route table is
// sealed and the server starts listening.
//
//	type Env struct {
//	    bpapp.BaseEnvironment
//	    AdminKeySecret string `env:"ADMIN_KEY_SECRET,required"`
//	}
//
//	func main() {
//	    bpapp.NewApp[Env](func(m *bpapp.Mux, rt *bpapp.Runtime[Env]) {
//	        m.HandleFunc("GET /items/{id}", getItem, bpipe.WithName("get-item"))
//	        m.HandleFunc("DELETE /items/{id}", deleteItem,
//	            bpipe.WithInterceptors(rt.RequireAPIKey(rt.Env().AdminKeySecret, "key")))
//	    }).Run()
//	}
//
// # Environment
//
//   - BP_PORT, BP_SERVICE_NAME: required.
//   - BP_READINESS_CHECK_PATH (/healthz), BP_METRICS_PATH (/metrics).
//   - BP_LOG_LEVEL (info), BP_OTEL_EXPORTER (stdout, xrayudp or none).
//   - BP_REQUEST_TIMEOUT (30s): per-request deadline; server timeouts are derived from it.
//   - BP_MAX_BODY_BYTES (4 MiB), BP_RATE_LIMIT_RPS (0 disables), BP_RATE_LIMIT_BURST (20).
//   - BP_H2C: serve cleartext HTTP/2.
//   - AWS_REGION, BP_GATEWAY_ACCESS_LOG_GROUP: optional.
//
// # Lambda
//
// Behind Lambda Web Adapter the x-amzn-lambda-context header is parsed, available through
// [LWA], and bounds the request context by the invocation deadline. With BP_OTEL_EXPORTER set
// to xrayudp spans go to the X-Ray daemon with Lambda resource attributes.
//
// AWS_LWA_ERROR_STATUS_CODES tells the adapter which responses are invocation errors, so
// queue-triggered invocations are retried instead of dropped. It is required when
// AWS_LAMBDA_FUNCTION_NAME is set and must cover [FaultStatusCodes]: 500 for faults and 504
// for exceeded deadlines. Use "500-599" unless there is a reason not to.
package bpapp
