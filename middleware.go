package bpipe

// Chain groups interceptors into one. The interceptor given first is the outermost, as with
// [ServeMux.Use].
func Chain(ics ...Interceptor) Interceptor {
	ics = append([]Interceptor(nil), ics...)

	return InterceptorFunc(func(r *Request, next Next) (*Response, error) {
		c := chain{
			interceptors: ics,
			terminal: HandlerFunc(func(r *Request) (*Response, error) {
				return next(r), nil
			}),
		}
		return c.invoke(r, 0), nil
	})
}
