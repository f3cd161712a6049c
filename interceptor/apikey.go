package interceptor

import (
	"context"
	"crypto/subtle"

	"github.com/advdv/bpipe"
	"github.com/cockroachdb/errors"
)

var (
	// ErrMissingAPIKey is wrapped with [bpipe.CodeUnauthorized] when the key header is absent.
	ErrMissingAPIKey = errors.New("missing api key")

	// ErrInvalidAPIKey is wrapped with [bpipe.CodeForbidden] when the key does not match.
	ErrInvalidAPIKey = errors.New("invalid api key")
)

// KeySource yields the expected API key. It is called per request so rotated secrets are
// picked up; sources are expected to cache.
type KeySource func(ctx context.Context) (string, error)

// APIKey requires the header to carry the key returned by source.
func APIKey(header string, source KeySource) bpipe.Interceptor {
	return bpipe.InterceptorFunc(func(r *bpipe.Request, next bpipe.Next) (*bpipe.Response, error) {
		got := r.Header().Get(header)
		if got == "" {
			return nil, bpipe.NewError(bpipe.CodeUnauthorized, ErrMissingAPIKey)
		}

		want, err := source(r.Context())
		if err != nil {
			return nil, errors.Wrap(err, "load api key")
		}

		if want == "" || subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			return nil, bpipe.NewError(bpipe.CodeForbidden, ErrInvalidAPIKey)
		}

		return next(nil), nil
	})
}

// StaticKey is a [KeySource] for a fixed key.
func StaticKey(key string) KeySource {
	return func(context.Context) (string, error) { return key, nil }
}
