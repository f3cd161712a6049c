package bpipe

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Response is produced exactly once per traversal, by the terminal handler or by an interceptor
// that short-circuits. Interceptors may change it on the way back. Once the executor finalized
// it, every mutator returns [ErrResponseFinalized]. When the transport cancelled the request,
// mutators do nothing.
type Response struct {
	root   context.Context
	status int
	header http.Header
	body   bytes.Buffer
	writer func(io.Writer) error
	final  bool
}

// NewResponse creates a response for the request with the given status. A status outside
// 100-599 is kept as is; the executor faults on it when the response is returned.
func NewResponse(r *Request, status int) *Response {
	return &Response{root: r.tr.root, status: status, header: http.Header{}}
}

// Text creates a plain text response.
func Text(r *Request, status int, body string) *Response {
	resp := NewResponse(r, status)
	_ = resp.SetHeader("Content-Type", "text/plain; charset=utf-8")
	_, _ = resp.Write([]byte(body))
	return resp
}

// JSON creates a response with v encoded as JSON.
func JSON(r *Request, status int, v any) (*Response, error) {
	resp := NewResponse(r, status)
	if err := resp.SetHeader("Content-Type", "application/json"); err != nil {
		return nil, err
	}
	if err := json.NewEncoder(resp).Encode(v); err != nil {
		return nil, errors.Wrap(err, "encode json response")
	}
	return resp, nil
}

func validStatus(code int) bool { return code >= 100 && code <= 599 }

// mutable reports whether a mutation should be applied; ok is false with a nil error when the
// request is gone.
func (w *Response) mutable() (ok bool, err error) {
	if w.final {
		return false, errors.WithStack(ErrResponseFinalized)
	}
	if w.root != nil && w.root.Err() != nil {
		return false, nil
	}
	return true, nil
}

func (w *Response) Status() int { return w.status }

// Header returns a copy of the response headers.
func (w *Response) Header() http.Header { return w.header.Clone() }

// Body returns the buffered body. It is empty for responses with a body writer.
func (w *Response) Body() []byte { return w.body.Bytes() }

// Finalized reports whether the response left the pipeline.
func (w *Response) Finalized() bool { return w.final }

// SetStatus changes the status code.
func (w *Response) SetStatus(code int) error {
	if !validStatus(code) {
		return errors.Newf("invalid status code %d", code)
	}
	if ok, err := w.mutable(); !ok {
		return err
	}
	w.status = code
	return nil
}

func (w *Response) SetHeader(key, value string) error {
	if ok, err := w.mutable(); !ok {
		return err
	}
	w.header.Set(key, value)
	return nil
}

func (w *Response) AddHeader(key, value string) error {
	if ok, err := w.mutable(); !ok {
		return err
	}
	w.header.Add(key, value)
	return nil
}

func (w *Response) DelHeader(key string) error {
	if ok, err := w.mutable(); !ok {
		return err
	}
	w.header.Del(key)
	return nil
}

// Write appends to the buffered body.
func (w *Response) Write(p []byte) (int, error) {
	if ok, err := w.mutable(); !ok {
		if err != nil {
			return 0, err
		}
		return len(p), nil
	}
	if w.writer != nil {
		return 0, errors.New("response has a body writer")
	}
	return w.body.Write(p)
}

// SetBodyWriter replaces the body with a function that writes it lazily when the transport
// sends the response.
func (w *Response) SetBodyWriter(fn func(io.Writer) error) error {
	if ok, err := w.mutable(); !ok {
		return err
	}
	w.body.Reset()
	w.writer = fn
	return nil
}

// Reset drops the headers and body so the response can be formulated anew.
func (w *Response) Reset() error {
	if ok, err := w.mutable(); !ok {
		return err
	}
	w.header = http.Header{}
	w.body.Reset()
	w.writer = nil
	return nil
}

// WriteTo writes the body to dst.
func (w *Response) WriteTo(dst io.Writer) (int64, error) {
	if w.writer == nil {
		n, err := dst.Write(w.body.Bytes())
		return int64(n), err
	}

	cw := &countingWriter{w: dst}
	err := w.writer(cw)
	return cw.n, err
}

func (w *Response) finalize() { w.final = true }

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
