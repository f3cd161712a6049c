package interceptor

import (
	"time"

	"github.com/advdv/bpipe"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AccessLog writes one entry per traversal through the request-scoped logger, so it must run
// inside [Logger]. Server errors are logged at error level, client errors at warn level.
// Traversals that end in a fault are logged at error level without a status; the pipeline
// boundary renders those.
func AccessLog() bpipe.Interceptor {
	return bpipe.InterceptorFunc(func(r *bpipe.Request, next bpipe.Next) (*bpipe.Response, error) {
		start := time.Now()
		logs := Log(r)

		var resp *bpipe.Response
		defer func() {
			fields := []zap.Field{
				zap.Duration("duration", time.Since(start)),
				zap.String("route", routeLabel(r)),
			}
			if resp == nil {
				logs.Error("request aborted by fault", fields...)
				return
			}

			fields = append(fields, zap.Int("status", resp.Status()), zap.Int("bytes", len(resp.Body())))
			logs.Log(levelFor(resp.Status()), "request completed", fields...)
		}()

		resp = next(nil)

		return resp, nil
	})
}

func levelFor(status int) zapcore.Level {
	switch {
	case status >= 500:
		return zapcore.ErrorLevel
	case status >= 400:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

// routeLabel is the matched route pattern, or "unmatched" when the table found none.
func routeLabel(r *bpipe.Request) string {
	rt, ok := bpipe.MatchedRoute(r)
	if !ok {
		return "unmatched"
	}
	return rt.Pattern()
}
