package bpipe

import (
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
)

// RouteOption configures a single route registered on a [ServeMux].
type RouteOption func(*routeConfig)

type routeConfig struct {
	name         string
	interceptors []Interceptor
}

// WithName names the route for [ServeMux.Reverse].
func WithName(name string) RouteOption {
	return func(c *routeConfig) { c.name = name }
}

// WithInterceptors wraps only this route's handler, inside the global interceptors.
func WithInterceptors(ics ...Interceptor) RouteOption {
	return func(c *routeConfig) { c.interceptors = append(c.interceptors, ics...) }
}

// ServeMux assembles global interceptors and a route table into one pipeline. Registration
// mistakes are collected and reported together by [ServeMux.Build].
type ServeMux struct {
	table        *Table
	opts         []PipelineOption
	errs         []error
	interceptors struct {
		captured bool
		buffered []Interceptor
	}
}

// NewServeMux creates a new ServeMux. The options are applied to the pipeline it builds.
func NewServeMux(opts ...PipelineOption) *ServeMux {
	return &ServeMux{table: NewTable(), opts: opts}
}

// Use appends global interceptors. They run in the order given, before route matching, and
// must be added before the first route is registered.
func (m *ServeMux) Use(ics ...Interceptor) {
	if m.interceptors.captured {
		m.errs = append(m.errs, configErrorf("cannot call Use() after calling Handle"))
		return
	}
	m.interceptors.buffered = append(m.interceptors.buffered, ics...)
}

// Handle registers a handler for a "METHOD /pattern" string. Without a method the route
// accepts every method.
func (m *ServeMux) Handle(pattern string, handler Handler, opts ...RouteOption) {
	m.interceptors.captured = true

	var cfg routeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	method, path := splitMethodPattern(pattern)

	rt, err := m.table.Register(method, path, handler, cfg.interceptors...)
	if err != nil {
		m.errs = append(m.errs, err)
		return
	}

	if cfg.name != "" {
		if err := m.table.Name(cfg.name, rt); err != nil {
			m.errs = append(m.errs, err)
		}
	}
}

// HandleFunc handles the request given the pattern using a function.
func (m *ServeMux) HandleFunc(pattern string, handler HandlerFunc, opts ...RouteOption) {
	m.Handle(pattern, handler, opts...)
}

// HandleStd registers a standard library [http.Handler] for the given pattern.
func (m *ServeMux) HandleStd(pattern string, handler http.Handler, opts ...RouteOption) {
	m.Handle(pattern, StdHandler(handler), opts...)
}

// Build seals the route table and returns the pipeline, or every registration error joined.
func (m *ServeMux) Build() (*Pipeline, error) {
	if len(m.errs) > 0 {
		return nil, errors.Mark(errors.Join(m.errs...), ErrConfiguration)
	}

	m.table.Seal()

	return Build(m.interceptors.buffered, m.table, m.opts...)
}

// Reverse returns the url based on the name and parameter values.
func (m *ServeMux) Reverse(name string, vals ...string) (string, error) {
	return m.table.Reverse(name, vals...)
}

// Routes lists the registered routes in registration order.
func (m *ServeMux) Routes() []*Route { return m.table.Routes() }

func splitMethodPattern(pattern string) (method, path string) {
	method, path, ok := strings.Cut(strings.TrimSpace(pattern), " ")
	if !ok {
		return "", method
	}
	return method, strings.TrimLeft(path, " ")
}
