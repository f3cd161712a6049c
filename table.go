package bpipe

import (
	"net/http"
	"sync/atomic"

	"github.com/advdv/bpipe/internal/pathpattern"
	"github.com/samber/lo"
)

// Route is a registered (method, pattern) pair with its handler and per-route interceptors.
type Route struct {
	method  string
	pattern *pathpattern.Pattern
	name    string
	chain
}

// Method returns the route's method, empty when it accepts any method.
func (rt *Route) Method() string { return rt.method }

// Pattern returns the route's path pattern.
func (rt *Route) Pattern() string { return rt.pattern.String() }

// Name returns the name the route was registered under, if any.
func (rt *Route) Name() string { return rt.name }

// NumInterceptors returns how many per-route interceptors wrap the handler.
func (rt *Route) NumInterceptors() int { return len(rt.interceptors) }

// Handle runs the per-route interceptors and the route's handler.
func (rt *Route) Handle(r *Request) (*Response, error) {
	return rt.invoke(r, 0), nil
}

func (rt *Route) accepts(method string) bool {
	return rt.method == "" || rt.method == method
}

// Table maps (method, path pattern) pairs to routes. Registration happens at startup; once
// sealed the table is read-only and safe for concurrent matching.
type Table struct {
	routes []*Route
	keys   map[string]*Route
	names  map[string]*Route
	sealed atomic.Bool
}

// NewTable inits an empty route table.
func NewTable() *Table {
	return &Table{keys: map[string]*Route{}, names: map[string]*Route{}}
}

// Register adds a route. An empty method accepts any method. Duplicates compare patterns
// structurally: "/a/{x}" and "/a/{y}" are the same pattern.
func (t *Table) Register(method, pattern string, handler Handler, interceptors ...Interceptor) (*Route, error) {
	if t.sealed.Load() {
		return nil, configErrorf("register %s %q: table is sealed", method, pattern)
	}
	if isNil(handler) {
		return nil, configErrorf("register %s %q: nil handler", method, pattern)
	}
	for i, ic := range interceptors {
		if isNil(ic) {
			return nil, configErrorf("register %s %q: interceptor %d is nil", method, pattern, i)
		}
	}

	pat, err := pathpattern.ParsePattern(pattern)
	if err != nil {
		return nil, configWrapf(err, "register %s %q", method, pattern)
	}

	key := method + " " + pat.Key()
	if prev, exists := t.keys[key]; exists {
		return nil, configErrorf("register %s %q: conflicts with %q", method, pattern, prev.Pattern())
	}

	rt := &Route{
		method:  method,
		pattern: pat,
		chain: chain{
			interceptors: append([]Interceptor(nil), interceptors...),
			terminal:     handler,
		},
	}

	t.keys[key] = rt
	t.routes = append(t.routes, rt)

	return rt, nil
}

// Seal ends registration.
func (t *Table) Seal() { t.sealed.Store(true) }

// Routes returns the registered routes in registration order.
func (t *Table) Routes() []*Route { return append([]*Route(nil), t.routes...) }

// Match finds the best route for the request. When several patterns match, the one with more
// literal segments before its first wildcard wins, then the one registered first. HEAD requests
// fall back to GET routes.
func (t *Table) Match(method, path string) (*Route, Params, error) {
	parts := pathpattern.SplitPath(path)

	rt, params, allowed := t.find(method, parts)
	if rt == nil && method == http.MethodHead {
		rt, params, _ = t.find(http.MethodGet, parts)
	}

	switch {
	case rt != nil:
		return rt, params, nil
	case len(allowed) > 0:
		return nil, nil, NewError(CodeMethodNotAllowed, &MethodNotAllowedError{Allowed: allowed})
	default:
		return nil, nil, NewError(CodeNotFound, ErrNotFound)
	}
}

func (t *Table) find(method string, parts []string) (best *Route, bestParams Params, allowed []string) {
	for _, rt := range t.routes {
		params := Params{}
		if !rt.pattern.Match(parts, params) {
			continue
		}

		if !rt.accepts(method) {
			allowed = append(allowed, rt.method)
			continue
		}

		if best == nil || rt.pattern.LiteralPrefix() > best.pattern.LiteralPrefix() {
			best, bestParams = rt, params
		}
	}

	if lo.Contains(allowed, http.MethodGet) {
		allowed = append(allowed, http.MethodHead)
	}

	return best, bestParams, lo.Uniq(allowed)
}

var routeKey = NewKey[*Route]("route")

// MatchedRoute returns the route the table dispatched the request to.
func MatchedRoute(r *Request) (*Route, bool) { return Get(r, routeKey) }

// Handle makes the table the terminal dispatcher of a pipeline. Route errors are rendered here,
// so interceptors see 404 and 405 responses like any other.
func (t *Table) Handle(r *Request) (*Response, error) {
	rt, params, err := t.Match(r.Method(), r.Path())
	if err != nil {
		return r.renderFault(err), nil
	}

	r.tr.params = params
	Set(r, routeKey, rt)

	return rt.Handle(r)
}
