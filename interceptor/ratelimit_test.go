package interceptor_test

import (
	"net/http"
	"testing"

	"github.com/advdv/bpipe"
	"github.com/advdv/bpipe/interceptor"
	"github.com/stretchr/testify/require"
)

func TestRateLimit(t *testing.T) {
	limiter := interceptor.NewRateLimiter(0.001, 1)
	t.Cleanup(limiter.Close)

	mux := bpipe.NewServeMux()
	mux.Use(limiter)
	mux.HandleFunc("GET /", ok)

	pipe, err := mux.Build()
	require.NoError(t, err)
	h := bpipe.ToStd(pipe, bpipe.NewTestLogger(t))

	from := func(addr string) int {
		rec, req := newRecorder(), get("/")
		req.RemoteAddr = addr
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			require.Equal(t, "1000", rec.Header().Get("Retry-After"))
		}
		return rec.Code
	}

	require.Equal(t, http.StatusOK, from("10.0.0.1:1234"))
	require.Equal(t, http.StatusTooManyRequests, from("10.0.0.1:4321"))
	require.Equal(t, http.StatusOK, from("10.0.0.2:1234"))
	require.Equal(t, 2, limiter.Len())
}

func TestRateLimitKeyFunc(t *testing.T) {
	limiter := interceptor.NewRateLimiter(0.001, 2, interceptor.WithKeyFunc(func(r *bpipe.Request) string {
		return r.Header().Get("X-Tenant")
	}))
	t.Cleanup(limiter.Close)

	mux := bpipe.NewServeMux()
	mux.Use(limiter)
	mux.HandleFunc("GET /", ok)

	codes := []int{}
	for range 3 {
		req := get("/")
		req.Header.Set("X-Tenant", "acme")
		codes = append(codes, serve(t, mux, req).Code)
	}
	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestClientIP(t *testing.T) {
	req := get("/")
	req.RemoteAddr = "192.0.2.1:5555"
	require.Equal(t, "192.0.2.1", interceptor.ClientIP(bpipe.FromHTTP(req)))

	req.Header.Set("X-Forwarded-For", " 198.51.100.7 , 10.0.0.1")
	require.Equal(t, "198.51.100.7", interceptor.ClientIP(bpipe.FromHTTP(req)))

	r := bpipe.NewRequest(t.Context(), http.MethodGet, "/", nil, nil, nil)
	require.Empty(t, interceptor.ClientIP(r))
}
