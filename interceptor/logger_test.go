package interceptor_test

import (
	"net/http"
	"testing"

	"github.com/advdv/bpipe"
	"github.com/advdv/bpipe/interceptor"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedMux(t *testing.T) (*bpipe.ServeMux, *observer.ObservedLogs) {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	mux := bpipe.NewServeMux()
	mux.Use(interceptor.RequestID(), interceptor.Logger(zap.New(core)), interceptor.AccessLog())

	return mux, logs
}

func TestLog(t *testing.T) {
	mux, logs := newObservedMux(t)
	mux.HandleFunc("GET /items/{id}", func(r *bpipe.Request) (*bpipe.Response, error) {
		interceptor.Log(r).Info("loading item", zap.String("id", r.Param("id")))
		return ok(r)
	})

	req := get("/items/7")
	req.Header.Set(interceptor.RequestIDHeader, "rid-1")
	serve(t, mux, req)

	entries := logs.FilterMessage("loading item").All()
	require.Len(t, entries, 1)
	require.Equal(t, map[string]any{
		"method":     "GET",
		"path":       "/items/7",
		"request_id": "rid-1",
		"id":         "7",
	}, entries[0].ContextMap())
}

func TestLogWithoutLogger(t *testing.T) {
	mux := bpipe.NewServeMux()
	mux.HandleFunc("GET /", func(r *bpipe.Request) (*bpipe.Response, error) {
		interceptor.Log(r).Info("unreachable")
		return ok(r)
	})

	rec := serve(t, mux, get("/"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAccessLog(t *testing.T) {
	for _, tt := range []struct {
		name    string
		handler bpipe.HandlerFunc
		target  string
		level   zapcore.Level
		message string
		status  int64
		route   string
	}{
		{
			name: "success", target: "/items/1", level: zapcore.InfoLevel,
			message: "request completed", status: 200, route: "/items/{id}",
			handler: ok,
		},
		{
			name: "client error", target: "/items/1", level: zapcore.WarnLevel,
			message: "request completed", status: 409, route: "/items/{id}",
			handler: func(r *bpipe.Request) (*bpipe.Response, error) {
				return bpipe.Text(r, http.StatusConflict, "taken"), nil
			},
		},
		{
			name: "unmatched", target: "/nope", level: zapcore.WarnLevel,
			message: "request completed", status: 404, route: "unmatched",
			handler: ok,
		},
		{
			name: "fault", target: "/items/1", level: zapcore.ErrorLevel,
			message: "request aborted by fault", route: "/items/{id}",
			handler: func(*bpipe.Request) (*bpipe.Response, error) {
				return nil, errors.New("boom")
			},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			mux, logs := newObservedMux(t)
			mux.HandleFunc("GET /items/{id}", tt.handler)

			serve(t, mux, get(tt.target))

			entries := logs.FilterMessage(tt.message).All()
			require.Len(t, entries, 1)
			require.Equal(t, tt.level, entries[0].Level)

			fields := entries[0].ContextMap()
			require.Equal(t, tt.route, fields["route"])
			require.Contains(t, fields, "duration")
			if tt.status != 0 {
				require.Equal(t, tt.status, fields["status"])
			} else {
				require.NotContains(t, fields, "status")
			}
		})
	}
}
