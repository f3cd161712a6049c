package bpapp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/advdv/bpipe"
)

// DefaultDeadlineBuffer is reserved before the Lambda deadline for error responses and cleanup.
const DefaultDeadlineBuffer = 500 * time.Millisecond

// LWAContext is the Lambda execution context passed by Lambda Web Adapter in the
// x-amzn-lambda-context header.
type LWAContext struct {
	RequestID          string       `json:"request_id"`
	Deadline           int64        `json:"deadline"`
	InvokedFunctionARN string       `json:"invoked_function_arn"`
	XRayTraceID        string       `json:"xray_trace_id"`
	EnvConfig          LWAEnvConfig `json:"env_config"`
}

// LWAEnvConfig contains Lambda function environment configuration.
type LWAEnvConfig struct {
	FunctionName string `json:"function_name"`
	Memory       int    `json:"memory"`
	Version      string `json:"version"`
	LogGroup     string `json:"log_group"`
	LogStream    string `json:"log_stream"`
}

// DeadlineTime returns the invocation deadline, the zero time when unknown.
func (lc *LWAContext) DeadlineTime() time.Time {
	if lc.Deadline == 0 {
		return time.Time{}
	}
	return time.UnixMilli(lc.Deadline)
}

var lwaKey = bpipe.NewKey[*LWAContext]("lwa_context")

// LWA returns the Lambda context of the request, nil when not running behind Lambda Web Adapter.
func LWA(r *bpipe.Request) *LWAContext {
	lc, _ := bpipe.Get(r, lwaKey)
	return lc
}

// LambdaDeadline parses the x-amzn-lambda-context header and bounds the traversal by the
// invocation deadline minus buffer. Without the header the request passes through unchanged.
func LambdaDeadline(buffer time.Duration) bpipe.Interceptor {
	if buffer <= 0 {
		buffer = DefaultDeadlineBuffer
	}

	return bpipe.InterceptorFunc(func(r *bpipe.Request, next bpipe.Next) (*bpipe.Response, error) {
		header := r.Header().Get("X-Amzn-Lambda-Context")
		if header == "" {
			return next(nil), nil
		}

		var lc LWAContext
		if err := json.Unmarshal([]byte(header), &lc); err != nil {
			return next(nil), nil
		}
		bpipe.Set(r, lwaKey, &lc)

		deadline := lc.DeadlineTime()
		if deadline.IsZero() || time.Until(deadline.Add(-buffer)) <= 0 {
			return next(nil), nil
		}

		ctx, cancel := context.WithDeadline(r.Context(), deadline.Add(-buffer))
		defer cancel()

		return next(r.WithContext(ctx)), nil
	})
}

// ServerTimeouts derives the http.Server timeouts from the request timeout. They are outer
// bounds; the per-request deadline interceptors fire first.
func ServerTimeouts(requestTimeout, buffer time.Duration) (readHeader, read, write, idle time.Duration) {
	if buffer <= 0 {
		buffer = DefaultDeadlineBuffer
	}

	timeout := requestTimeout + buffer
	readHeader = min(timeout, 5*time.Second)

	return readHeader, timeout, timeout, timeout
}
