package bpapptest

import (
	"strconv"
	"testing"
)

// Env provides a chainable builder for setting [bpapp.BaseEnvironment] env vars via
// t.Setenv. Create one with [SetBaseEnv].
type Env struct {
	t testing.TB
}

// SetBaseEnv sets all [bpapp.BaseEnvironment] env vars to test defaults. Port is required
// because each test must use a unique port to avoid collisions.
//
// Defaults:
//   - BP_SERVICE_NAME: "test"
//   - BP_READINESS_CHECK_PATH: "/health"
//   - BP_OTEL_EXPORTER: "none"
//   - BP_LOG_LEVEL: "warn"
//   - AWS_REGION: "us-east-1"
//   - AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY: "test"
func SetBaseEnv(t testing.TB, port int) *Env {
	t.Helper()
	t.Setenv("BP_PORT", strconv.Itoa(port))
	t.Setenv("BP_SERVICE_NAME", "test")
	t.Setenv("BP_READINESS_CHECK_PATH", "/health")
	t.Setenv("BP_OTEL_EXPORTER", "none")
	t.Setenv("BP_LOG_LEVEL", "warn")
	t.Setenv("AWS_REGION", "us-east-1")
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	return &Env{t: t}
}

// ServiceName overrides BP_SERVICE_NAME.
func (e *Env) ServiceName(name string) *Env {
	e.t.Helper()
	e.t.Setenv("BP_SERVICE_NAME", name)
	return e
}

// ReadinessCheckPath overrides BP_READINESS_CHECK_PATH.
func (e *Env) ReadinessCheckPath(path string) *Env {
	e.t.Helper()
	e.t.Setenv("BP_READINESS_CHECK_PATH", path)
	return e
}

// RequestTimeout overrides BP_REQUEST_TIMEOUT.
func (e *Env) RequestTimeout(d string) *Env {
	e.t.Helper()
	e.t.Setenv("BP_REQUEST_TIMEOUT", d)
	return e
}

// RateLimit overrides BP_RATE_LIMIT_RPS and BP_RATE_LIMIT_BURST.
func (e *Env) RateLimit(rps string, burst int) *Env {
	e.t.Helper()
	e.t.Setenv("BP_RATE_LIMIT_RPS", rps)
	e.t.Setenv("BP_RATE_LIMIT_BURST", strconv.Itoa(burst))
	return e
}

// MaxBodyBytes overrides BP_MAX_BODY_BYTES.
func (e *Env) MaxBodyBytes(n int) *Env {
	e.t.Helper()
	e.t.Setenv("BP_MAX_BODY_BYTES", strconv.Itoa(n))
	return e
}

// ErrorStatusCodes sets AWS_LWA_ERROR_STATUS_CODES.
func (e *Env) ErrorStatusCodes(expr string) *Env {
	e.t.Helper()
	e.t.Setenv("AWS_LWA_ERROR_STATUS_CODES", expr)
	return e
}

// OnLambda sets AWS_LAMBDA_FUNCTION_NAME as the Lambda runtime does.
func (e *Env) OnLambda(function string) *Env {
	e.t.Helper()
	e.t.Setenv("AWS_LAMBDA_FUNCTION_NAME", function)
	return e
}
