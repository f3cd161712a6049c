package binding

import (
	"encoding/json"
	"net/http"

	"github.com/advdv/bpipe"
	"github.com/cockroachdb/errors"
)

// ProblemTitle is the title of validation problem documents.
const ProblemTitle = "One or more validation errors occurred."

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Errors Result `json:"errors"`
}

// Problem renders a failed validation result as an RFC 7807 problem document with status 400.
func Problem(r *bpipe.Request, res Result) (*bpipe.Response, error) {
	body, err := json.Marshal(problem{
		Type:   "https://tools.ietf.org/html/rfc9110#section-15.5.1",
		Title:  ProblemTitle,
		Status: http.StatusBadRequest,
		Errors: res,
	})
	if err != nil {
		return nil, errors.Wrap(err, "encode problem document")
	}

	resp := bpipe.NewResponse(r, http.StatusBadRequest)
	if err := resp.SetHeader("Content-Type", "application/problem+json"); err != nil {
		return nil, err
	}
	if _, err := resp.Write(body); err != nil {
		return nil, err
	}

	return resp, nil
}

type inputKey[T any] struct{}

// Input returns the value a [Gate] bound for this request.
func Input[T any](r *bpipe.Request) (T, bool) {
	v, ok := r.Value(inputKey[T]{})
	if !ok {
		var zero T
		return zero, false
	}
	tv, ok := v.(T)
	return tv, ok
}

// Gate binds and validates T before the rest of the chain runs. Invalid input short-circuits
// with a problem document; a body that cannot be parsed is a fault. Valid input is available
// downstream through [Input].
func Gate[T any](d *Descriptor) bpipe.Interceptor {
	return bpipe.InterceptorFunc(func(r *bpipe.Request, next bpipe.Next) (*bpipe.Response, error) {
		v, notes, err := Bind[T](r, d)
		if err != nil {
			return nil, err
		}

		if res := Validate(v, notes, d); !res.IsValid() {
			return Problem(r, res)
		}

		r.SetValue(inputKey[T]{}, v)

		return next(r), nil
	})
}

// Handle adapts a function that takes validated input. Invalid input is answered with a problem
// document and fn does not run.
func Handle[T any](d *Descriptor, fn func(r *bpipe.Request, in T) (*bpipe.Response, error)) bpipe.Handler {
	return bpipe.HandlerFunc(func(r *bpipe.Request) (*bpipe.Response, error) {
		v, notes, err := Bind[T](r, d)
		if err != nil {
			return nil, err
		}

		if res := Validate(v, notes, d); !res.IsValid() {
			return Problem(r, res)
		}

		return fn(r, v)
	})
}

// HandleResult adapts a function that decides itself what to do with the validation result.
func HandleResult[T any](
	d *Descriptor, fn func(r *bpipe.Request, in T, res Result) (*bpipe.Response, error),
) bpipe.Handler {
	return bpipe.HandlerFunc(func(r *bpipe.Request) (*bpipe.Response, error) {
		v, notes, err := Bind[T](r, d)
		if err != nil {
			return nil, err
		}

		return fn(r, v, Validate(v, notes, d))
	})
}
