package bpipe

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"

	"github.com/cockroachdb/errors"
)

// ErrBodyTooLarge is wrapped (with [CodeRequestEntityTooLarge]) when a request body exceeds the
// pipeline's body limit.
var ErrBodyTooLarge = errors.New("request body too large")

// Params holds the route parameters extracted by the route table.
type Params map[string]string

// Get returns the parameter or an empty string.
func (p Params) Get(name string) string { return p[name] }

// traversal is the state of one pipeline execution. It is shared by every shallow copy of the
// request that started it.
type traversal struct {
	root   context.Context
	bag    map[any]any
	params Params
	render FaultRenderer

	body      io.Reader
	limit     int64
	bodyDone  bool
	bodyBytes []byte
	bodyErr   error

	std *http.Request
}

// Request is the pipeline's view of an inbound request. It is immutable except for the context
// bag, which interceptors use to hand values to each other.
type Request struct {
	ctx    context.Context
	method string
	path   string
	header http.Header
	query  url.Values
	tr     *traversal
}

// NewRequest creates a request as handed over by a transport. The body is read lazily and at
// most once. Header keys are canonicalized so lookups are case-insensitive.
func NewRequest(
	ctx context.Context, method, path string, query url.Values, header http.Header, body io.Reader,
) *Request {
	if path == "" {
		path = "/"
	}
	if query == nil {
		query = url.Values{}
	}

	canon := make(http.Header, len(header))
	for k, vs := range header {
		ck := http.CanonicalHeaderKey(k)
		canon[ck] = append(canon[ck], vs...)
	}

	return &Request{
		ctx:    ctx,
		method: method,
		path:   path,
		header: canon,
		query:  query,
		tr: &traversal{
			root:   ctx,
			bag:    map[any]any{},
			params: Params{},
			body:   body,
		},
	}
}

// FromHTTP creates a request from a standard library request.
func FromHTTP(req *http.Request) *Request {
	r := NewRequest(req.Context(), req.Method, req.URL.Path, req.URL.Query(), req.Header, req.Body)
	r.tr.std = req
	return r
}

func (r *Request) Context() context.Context { return r.ctx }
func (r *Request) Method() string           { return r.method }
func (r *Request) Path() string             { return r.path }
func (r *Request) Query() url.Values        { return r.query }

// Header returns the request headers. Callers must not modify them.
func (r *Request) Header() http.Header { return r.header }

// Params returns the route parameters, empty before the route table matched the request.
func (r *Request) Params() Params { return r.tr.params }

// Param returns a single route parameter.
func (r *Request) Param(name string) string { return r.tr.params[name] }

// MediaType returns the media type of the Content-Type header without its parameters.
func (r *Request) MediaType() string {
	mt, _, err := mime.ParseMediaType(r.header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return mt
}

// Body reads the request body. The first call consumes the underlying reader; later calls
// return the same bytes or the same error.
func (r *Request) Body() ([]byte, error) {
	tr := r.tr
	if tr.bodyDone {
		return tr.bodyBytes, tr.bodyErr
	}
	tr.bodyDone = true

	if tr.body == nil || tr.body == http.NoBody {
		return nil, nil
	}

	src := tr.body
	if tr.limit > 0 {
		src = io.LimitReader(src, tr.limit+1)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(src); err != nil {
		tr.bodyErr = errors.Wrap(err, "read request body")
		return nil, tr.bodyErr
	}

	if tr.limit > 0 && int64(buf.Len()) > tr.limit {
		tr.bodyErr = NewError(CodeRequestEntityTooLarge,
			errors.Wrapf(ErrBodyTooLarge, "limit is %d bytes", tr.limit))
		return nil, tr.bodyErr
	}

	tr.bodyBytes = buf.Bytes()
	return tr.bodyBytes, nil
}

// WithContext returns a shallow copy carrying ctx. The copy shares the bag, body and route
// parameters of r.
func (r *Request) WithContext(ctx context.Context) *Request {
	r2 := *r
	r2.ctx = ctx
	return &r2
}

// WithPath returns a shallow copy with a different path.
func (r *Request) WithPath(path string) *Request {
	if path == "" {
		path = "/"
	}
	r2 := *r
	r2.path = path
	return &r2
}

// SetValue stores a value in the traversal's context bag.
func (r *Request) SetValue(key, val any) { r.tr.bag[key] = val }

// Value reads a value from the traversal's context bag.
func (r *Request) Value(key any) (any, bool) {
	v, ok := r.tr.bag[key]
	return v, ok
}

// Std returns the standard library request the traversal started from, or nil when the request
// came from another transport.
func (r *Request) Std() *http.Request { return r.tr.std }

// Key is a typed context bag key. Keys are compared by identity, so two keys with the same name
// never collide.
type Key[T any] struct{ name string }

// NewKey creates a typed bag key. The name only shows up in String.
func NewKey[T any](name string) *Key[T] { return &Key[T]{name: name} }

func (k *Key[T]) String() string { return "bpipe.Key(" + k.name + ")" }

// Set stores v under the typed key.
func Set[T any](r *Request, k *Key[T], v T) { r.SetValue(k, v) }

// Get reads the value stored under the typed key.
func Get[T any](r *Request, k *Key[T]) (T, bool) {
	v, ok := r.Value(k)
	if !ok {
		var zero T
		return zero, false
	}
	tv, ok := v.(T)
	return tv, ok
}

// toStd converts the request for a standard library handler.
func (r *Request) toStd() (*http.Request, error) {
	body, err := r.Body()
	if err != nil {
		return nil, err
	}

	u := &url.URL{Path: r.path, RawQuery: r.query.Encode()}
	req, err := http.NewRequestWithContext(r.ctx, r.method, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "init standard request")
	}

	req.Header = r.header.Clone()
	if std := r.tr.std; std != nil {
		req.Host = std.Host
		req.RemoteAddr = std.RemoteAddr
		req.Proto, req.ProtoMajor, req.ProtoMinor = std.Proto, std.ProtoMajor, std.ProtoMinor
	}
	for k, v := range r.tr.params {
		req.SetPathValue(k, v)
	}

	return req, nil
}

func (r *Request) renderFault(err error) *Response {
	if r.tr.render != nil {
		if resp := r.tr.render(r, err); resp != nil {
			return resp
		}
	}
	return RenderFault(r, err)
}
