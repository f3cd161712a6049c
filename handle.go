package bpipe

import (
	"bytes"
	"net/http"
)

// Handler is the terminal call target of a chain. Returning an error is a pipeline fault: the
// executor unwinds to its boundary and renders the error.
type Handler interface {
	Handle(r *Request) (*Response, error)
}

// HandlerFunc allow casting a function to implement [Handler].
type HandlerFunc func(r *Request) (*Response, error)

// Handle implements the [Handler] interface.
func (f HandlerFunc) Handle(r *Request) (*Response, error) { return f(r) }

// Next runs the remainder of the chain and yields its response. Passing nil continues with the
// same request. It may be called at most once per traversal.
type Next func(r *Request) *Response

// Interceptor inspects a request, decides to continue by calling next or short-circuits by
// producing the response itself, and may post-process the response on the way back.
type Interceptor interface {
	Intercept(r *Request, next Next) (*Response, error)
}

// InterceptorFunc allow casting a function to implement [Interceptor].
type InterceptorFunc func(r *Request, next Next) (*Response, error)

// Intercept implements the [Interceptor] interface.
func (f InterceptorFunc) Intercept(r *Request, next Next) (*Response, error) { return f(r, next) }

// StdHandler adapts a standard library handler. Whatever it writes becomes the response; it
// cannot return errors, so it owns its error responses.
func StdHandler(h http.Handler) Handler {
	return HandlerFunc(func(r *Request) (*Response, error) {
		req, err := r.toStd()
		if err != nil {
			return nil, err
		}

		rec := &stdRecorder{header: http.Header{}}
		h.ServeHTTP(rec, req)

		resp := NewResponse(r, rec.statusOrOK())
		for k, vs := range rec.header {
			for _, v := range vs {
				if err := resp.AddHeader(k, v); err != nil {
					return nil, err
				}
			}
		}
		if _, err := resp.Write(rec.body.Bytes()); err != nil {
			return nil, err
		}

		return resp, nil
	})
}

type stdRecorder struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (w *stdRecorder) Header() http.Header { return w.header }

func (w *stdRecorder) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
}

func (w *stdRecorder) Write(p []byte) (int, error) {
	w.WriteHeader(http.StatusOK)
	return w.body.Write(p)
}

func (w *stdRecorder) statusOrOK() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// ToStd converts a pipeline into a standard library http.Handler. Faults are rendered by the
// pipeline; when the client went away before the response is ready nothing is written.
func ToStd(p *Pipeline, logs Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		resp := p.Serve(FromHTTP(req))
		if req.Context().Err() != nil {
			return
		}

		hdr := w.Header()
		for k, vs := range resp.header {
			hdr[k] = vs
		}
		w.WriteHeader(resp.Status())

		if req.Method == http.MethodHead {
			return
		}
		if _, err := resp.WriteTo(w); err != nil {
			logs.LogWriteError(err)
		}
	})
}
