// Package bpipe provides an HTTP request-processing pipeline: an ordered chain of interceptors
// around a route table that dispatches to error-returning handlers.
//
// # Overview
//
// A [Pipeline] takes a [Request] from a transport and always gives back a [Response]. On the way
// in every [Interceptor] may inspect the request, store values in its context bag, or
// short-circuit by producing the response itself. On the way out the same interceptors see the
// response in reverse order. A minimal example:
//
//	mux := bpipe.NewServeMux()
//	mux.Use(bpipe.InterceptorFunc(func(r *bpipe.Request, next bpipe.Next) (*bpipe.Response, error) {
//	    resp := next(r)
//	    return resp, resp.SetHeader("X-Served-By", "bpipe")
//	}))
//	mux.HandleFunc("GET /items/{id}", func(r *bpipe.Request) (*bpipe.Response, error) {
//	    item, err := db.GetItem(r.Param("id"))
//	    if err != nil {
//	        return nil, bpipe.NewError(bpipe.CodeNotFound, err)
//	    }
//	    return bpipe.JSON(r, http.StatusOK, item)
//	}, bpipe.WithName("get-item"))
//
//	pipe, err := mux.Build()
//	if err != nil {
//	    log.Fatal(err) // every registration mistake, joined
//	}
//	http.ListenAndServe(":8080", bpipe.ToStd(pipe, bpipe.NewNopLogger()))
//
// # Short-circuit and Faults
//
// An interceptor that does not call next short-circuits: nothing registered after it runs,
// while interceptors before it still post-process its response. Calling next twice fails the
// traversal with [ErrReentrantInvocation].
//
// Returning an error (or panicking) is a fault. The traversal unwinds to the executor boundary
// at once: interceptors already past their next call do not get to post-process.
// [Pipeline.Execute] hands the fault to the caller, [Pipeline.Serve] renders it:
//
//   - [*Error] (created with [NewError]): uses the error's code, and its message for 4xx codes
//   - Other errors: logged and converted to 500 Internal Server Error
//
// # Route Table
//
// Patterns consist of literal segments, "{name}" segments that match one non-empty path
// segment and an optional trailing "{name...}" that matches the rest of the path. When several
// patterns match, the one with more literal segments before its first wildcard wins, then the
// one registered first. A path matched only for other methods yields 405 with an Allow header;
// no match at all yields 404.
//
// # Named Routes and URL Reversing
//
//	mux.HandleFunc("GET /users/{id}", getUser, bpipe.WithName("get-user"))
//	url, err := mux.Reverse("get-user", "123") // returns "/users/123"
//
// # Binding and Validation
//
// Package binding turns request data into typed values and validates them against declarative
// rules. Package interceptor has ready-made interceptors for request ids, logging, rate
// limiting, metrics and tracing.
package bpipe
