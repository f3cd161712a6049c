package interceptor

import (
	"github.com/advdv/bpipe"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request correlation id in both directions.
const RequestIDHeader = "X-Request-ID"

var requestIDKey = bpipe.NewKey[string]("request_id")

// RequestID reuses the X-Request-ID header of the request or generates a new UUID. The id is
// stored in the bag and echoed on the response.
func RequestID() bpipe.Interceptor {
	return bpipe.InterceptorFunc(func(r *bpipe.Request, next bpipe.Next) (*bpipe.Response, error) {
		id := r.Header().Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		bpipe.Set(r, requestIDKey, id)

		resp := next(nil)
		if err := resp.SetHeader(RequestIDHeader, id); err != nil {
			return nil, err
		}

		return resp, nil
	})
}

// GetRequestID returns the id assigned by [RequestID], or an empty string.
func GetRequestID(r *bpipe.Request) string {
	id, _ := bpipe.Get(r, requestIDKey)
	return id
}
