package interceptor

import (
	"context"
	"time"

	"github.com/advdv/bpipe"
)

// Deadline bounds the rest of the traversal with a context timeout. An earlier deadline that
// is already on the request context wins.
func Deadline(timeout time.Duration) bpipe.Interceptor {
	return bpipe.InterceptorFunc(func(r *bpipe.Request, next bpipe.Next) (*bpipe.Response, error) {
		if timeout <= 0 {
			return next(nil), nil
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		return next(r.WithContext(ctx)), nil
	})
}

// RemainingTime returns the duration until the request's deadline, zero if it has none or it
// already passed.
func RemainingTime(r *bpipe.Request) time.Duration {
	deadline, ok := r.Context().Deadline()
	if !ok {
		return 0
	}
	return max(time.Until(deadline), 0)
}
