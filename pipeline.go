package bpipe

import (
	"reflect"

	"github.com/cockroachdb/errors"
)

// FaultRenderer turns a pipeline fault into the response sent to the client. Returning nil
// falls back to [RenderFault].
type FaultRenderer func(r *Request, err error) *Response

// PipelineOption configures a pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets the logger faults and write errors are reported to.
func WithLogger(l Logger) PipelineOption { return func(p *Pipeline) { p.logs = l } }

// WithFaultRenderer sets how faults are rendered by [Pipeline.Serve].
func WithFaultRenderer(f FaultRenderer) PipelineOption { return func(p *Pipeline) { p.render = f } }

// WithMaxBodyBytes limits how much of a request body is read. Zero means no limit.
func WithMaxBodyBytes(n int64) PipelineOption { return func(p *Pipeline) { p.maxBody = n } }

// Pipeline is an ordered chain of interceptors around a terminal handler. It is safe for
// concurrent use; each request gets its own traversal.
type Pipeline struct {
	chain
	logs    Logger
	render  FaultRenderer
	maxBody int64
}

// Build composes the interceptors, in order, around terminal. The terminal may be nil as long as
// there is at least one interceptor; requests that run off the end of such a chain get a 404.
func Build(interceptors []Interceptor, terminal Handler, opts ...PipelineOption) (*Pipeline, error) {
	if len(interceptors) == 0 && isNil(terminal) {
		return nil, configErrorf("no interceptors and no terminal handler")
	}
	if terminal != nil && isNil(terminal) {
		return nil, configErrorf("terminal handler is a typed nil")
	}
	for i, ic := range interceptors {
		if isNil(ic) {
			return nil, configErrorf("interceptor %d is nil", i)
		}
	}

	p := &Pipeline{
		chain: chain{
			interceptors: append([]Interceptor(nil), interceptors...),
			terminal:     terminal,
		},
		logs:   NewNopLogger(),
		render: RenderFault,
	}
	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Execute runs one traversal. The response is finalized before it is returned. Faults, panics
// included, are returned as err with a nil response.
func (p *Pipeline) Execute(r *Request) (resp *Response, err error) {
	p.prepare(r)

	defer func() {
		if v := recover(); v != nil {
			resp, err = nil, faultOf(v)
		}
	}()

	resp = p.invoke(r, 0)
	resp.finalize()

	return resp, nil
}

// Serve runs one traversal and always produces a finalized response: faults are logged and
// rendered.
func (p *Pipeline) Serve(r *Request) *Response {
	resp, err := p.Execute(r)
	if err == nil {
		return resp
	}

	if code := CodeOf(err); code == CodeUnknown || code >= CodeInternalServerError {
		p.logs.LogFault(err)
	}

	resp = r.renderFault(err)
	resp.finalize()

	return resp
}

// Handle lets a pipeline be mounted inside another one. Faults unwind to the outer boundary.
func (p *Pipeline) Handle(r *Request) (*Response, error) {
	if p.maxBody > 0 && r.tr.limit == 0 {
		r.tr.limit = p.maxBody
	}
	return p.invoke(r, 0), nil
}

func (p *Pipeline) prepare(r *Request) {
	if p.maxBody > 0 && r.tr.limit == 0 {
		r.tr.limit = p.maxBody
	}
	r.tr.render = p.render
}

// chain nests interceptors around a terminal. Faults travel as panics carrying *fault so that
// interceptors already past their next call are skipped on the way out.
type chain struct {
	interceptors []Interceptor
	terminal     Handler
}

type fault struct{ err error }

func (c *chain) invoke(r *Request, idx int) *Response {
	if idx == len(c.interceptors) {
		if c.terminal == nil {
			return r.renderFault(NewError(CodeNotFound, ErrNotFound))
		}
		return must(c.terminal.Handle(r))
	}

	called := false
	next := func(nr *Request) *Response {
		if called {
			panic(&fault{errors.WithStack(ErrReentrantInvocation)})
		}
		called = true

		if nr == nil {
			nr = r
		}
		return c.invoke(nr, idx+1)
	}

	return must(c.interceptors[idx].Intercept(r, next))
}

func must(resp *Response, err error) *Response {
	if err != nil {
		panic(&fault{err})
	}
	if resp == nil {
		panic(&fault{errors.New("handler returned a nil response without an error")})
	}
	if !validStatus(resp.status) {
		panic(&fault{errors.Newf("response has invalid status code %d", resp.status)})
	}
	return resp
}

func faultOf(v any) error {
	switch v := v.(type) {
	case *fault:
		return v.err
	case error:
		return errors.Wrap(v, "panic")
	default:
		return errors.Newf("panic: %v", v)
	}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() { //nolint:exhaustive
	case reflect.Pointer, reflect.Func, reflect.Map, reflect.Interface, reflect.Slice, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
