package bpipe

import (
	"context"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
)

// RenderFault is the default [FaultRenderer]. Errors carrying a client error code show their
// message; an uncoded deadline error is a bare 504 and everything else a bare 500 so internals
// do not leak.
func RenderFault(r *Request, err error) *Response {
	code := CodeOf(err)
	switch {
	case code == CodeUnknown && errors.Is(err, context.DeadlineExceeded):
		code = CodeGatewayTimeout
	case code == CodeUnknown:
		code = CodeInternalServerError
	}

	msg := http.StatusText(int(code))
	if herr, ok := asError(err); ok && code < CodeInternalServerError {
		msg = herr.err.Error()
	}

	resp := Text(r, int(code), msg+"\n")
	_ = resp.SetHeader("X-Content-Type-Options", "nosniff")

	var mna *MethodNotAllowedError
	if errors.As(err, &mna) && len(mna.Allowed) > 0 {
		_ = resp.SetHeader("Allow", strings.Join(mna.Allowed, ", "))
	}

	return resp
}
