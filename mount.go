package bpipe

import (
	"net/http"
	"strings"
)

const mountParam = "mountpath"

// Mount mounts a Handler on a sub-path pattern. The mounted handler receives requests with the
// mount prefix stripped from the path. Global interceptors see the original path; the strip
// happens after them. The prefix may contain parameters but no catch-all.
func (m *ServeMux) Mount(pattern string, handler Handler, opts ...RouteOption) {
	method, prefix := splitMethodPattern(pattern)
	prefix = strings.TrimSuffix(prefix, "/")

	full := prefix + "/{" + mountParam + "...}"
	if method != "" {
		full = method + " " + full
	}

	m.Handle(full, stripPrefix(handler), opts...)
}

// MountStd mounts a standard library [http.Handler] on a sub-path pattern.
func (m *ServeMux) MountStd(pattern string, handler http.Handler, opts ...RouteOption) {
	m.Mount(pattern, StdHandler(handler), opts...)
}

func stripPrefix(handler Handler) Handler {
	return HandlerFunc(func(r *Request) (*Response, error) {
		return handler.Handle(r.WithPath("/" + r.Param(mountParam)))
	})
}
