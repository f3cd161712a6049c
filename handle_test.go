package bpipe_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/advdv/bpipe"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func handleBar(r *bpipe.Request) (*bpipe.Response, error) {
	resp := bpipe.NewResponse(r, http.StatusCreated)
	if err := resp.SetHeader("Is-Bar", "rab"); err != nil {
		return nil, err
	}
	if _, err := io.WriteString(resp, "hello foo, at "+r.Path()); err != nil {
		return nil, err
	}

	if r.Path() == "/trigger-error" {
		return nil, errors.New("triggered error")
	}

	return resp, nil
}

func TestToStdBasic(t *testing.T) {
	logs := bpipe.NewTestLogger(t)
	pipe, err := bpipe.Build(nil, bpipe.HandlerFunc(handleBar), bpipe.WithLogger(logs))
	require.NoError(t, err)

	rec, req := httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/bar", nil)
	bpipe.ToStd(pipe, logs).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, `rab`, rec.Header().Get("Is-Bar"))
	require.Equal(t, `hello foo, at /bar`, rec.Body.String())
}

func TestToStdDefaultError(t *testing.T) {
	logs := bpipe.NewTestLogger(t)
	pipe, err := bpipe.Build(nil, bpipe.HandlerFunc(handleBar), bpipe.WithLogger(logs))
	require.NoError(t, err)

	rec, req := httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/trigger-error", nil)
	bpipe.ToStd(pipe, logs).ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, ``, rec.Header().Get("Is-Bar"))
	require.Equal(t, `Internal Server Error`+"\n", rec.Body.String())
	require.Equal(t, int64(1), logs.NumLogFault)
}

func TestToStdBodyWriterError(t *testing.T) {
	logs := bpipe.NewTestLogger(t)
	pipe, err := bpipe.Build(nil, bpipe.HandlerFunc(func(r *bpipe.Request) (*bpipe.Response, error) {
		resp := bpipe.NewResponse(r, http.StatusOK)
		return resp, resp.SetBodyWriter(func(w io.Writer) error {
			_, _ = io.WriteString(w, "partial")
			return errors.New("stream broke")
		})
	}))
	require.NoError(t, err)

	rec, req := httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)
	bpipe.ToStd(pipe, logs).ServeHTTP(rec, req)

	require.Equal(t, "partial", rec.Body.String())
	require.Equal(t, int64(1), logs.NumLogWriteError)
}

func TestToStdClientGone(t *testing.T) {
	logs := bpipe.NewTestLogger(t)
	ctx, cancel := context.WithCancel(context.Background())

	pipe, err := bpipe.Build(nil, bpipe.HandlerFunc(func(r *bpipe.Request) (*bpipe.Response, error) {
		cancel()
		return bpipe.Text(r, http.StatusOK, "too late"), nil
	}))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequestWithContext(ctx, http.MethodGet, "/", nil)
	bpipe.ToStd(pipe, logs).ServeHTTP(rec, req)

	require.False(t, rec.Flushed)
	require.Empty(t, rec.Body.String())
	require.Equal(t, int64(0), logs.NumLogFault)
}
