package interceptor_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/advdv/bpipe"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, mux *bpipe.ServeMux, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()

	pipe, err := mux.Build()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	bpipe.ToStd(pipe, bpipe.NewTestLogger(t)).ServeHTTP(rec, req)

	return rec
}

func post(target string) *http.Request {
	return httptest.NewRequest(http.MethodPost, target, nil)
}

func newRecorder() *httptest.ResponseRecorder { return httptest.NewRecorder() }

func get(target string) *http.Request {
	return httptest.NewRequest(http.MethodGet, target, nil)
}

func ok(r *bpipe.Request) (*bpipe.Response, error) {
	return bpipe.Text(r, http.StatusOK, "ok"), nil
}
