package bpapp

import (
	"context"
	"fmt"
	"net/http"

	"github.com/advdv/bpipe"
	"github.com/advdv/bpipe/interceptor"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Mux is the app's route registry.
type Mux = bpipe.ServeMux

// ServerConfig holds optional configuration for the HTTP server.
type ServerConfig struct {
	HealthHandler bpipe.HandlerFunc
	Interceptors  []bpipe.Interceptor
}

// MuxParams holds the dependencies of [NewMux].
type MuxParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Env        Environment
	Logger     *zap.Logger
	TracerProv trace.TracerProvider
	Propagator propagation.TextMapPropagator
	Metrics    *interceptor.Metrics
	Config     ServerConfig
}

// NewMux creates the mux with the app-wide interceptors installed, outermost first: request
// id, tracing, logging, access log, metrics, Lambda and request deadlines, rate limiting and
// whatever [WithInterceptors] added.
func NewMux(p MuxParams) *Mux {
	env := p.Env.base()

	mux := bpipe.NewServeMux(
		bpipe.WithLogger(newPipelineLogger(p.Logger)),
		bpipe.WithMaxBodyBytes(env.MaxBodyBytes),
	)

	mux.Use(
		interceptor.RequestID(),
		interceptor.Tracing(p.TracerProv, p.Propagator),
		interceptor.Logger(p.Logger),
		interceptor.AccessLog(),
		p.Metrics,
		LambdaDeadline(DefaultDeadlineBuffer),
		interceptor.Deadline(env.RequestTimeout),
	)

	if env.RateLimitRPS > 0 {
		limiter := interceptor.NewRateLimiter(env.RateLimitRPS, env.RateLimitBurst)
		p.Lifecycle.Append(fx.StopHook(limiter.Close))
		mux.Use(limiter)
	}

	mux.Use(p.Config.Interceptors...)

	return mux
}

// NewRegistry creates the prometheus registry served on BP_METRICS_PATH.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func provideMetrics(reg *prometheus.Registry) (*interceptor.Metrics, error) {
	return interceptor.NewMetrics(reg, "bpipe")
}

// ServerParams holds the dependencies for creating an HTTP server.
type ServerParams struct {
	fx.In

	Env        Environment
	Mux        *Mux
	Logger     *zap.Logger
	Registry   *prometheus.Registry
	TracerProv trace.TracerProvider
	Propagator propagation.TextMapPropagator
	Config     ServerConfig
}

// NewServer creates the HTTP server. Its handler is installed when the app starts, after all
// routes are registered.
func NewServer(p ServerParams) *http.Server {
	readHeader, read, write, idle := ServerTimeouts(p.Env.base().RequestTimeout, DefaultDeadlineBuffer)

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", p.Env.base().Port),
		ReadHeaderTimeout: readHeader,
		ReadTimeout:       read,
		WriteTimeout:      write,
		IdleTimeout:       idle,
	}
}

// BuildHandler registers the health and metrics endpoints, seals the mux and returns the
// transport handler. Registration mistakes surface here, aborting startup.
func BuildHandler(p ServerParams) (http.Handler, error) {
	env := p.Env.base()

	health := p.Config.HealthHandler
	if health == nil {
		health = defaultHealthHandler
	}
	p.Mux.HandleFunc("GET "+env.ReadinessCheckPath, health)
	p.Mux.HandleStd("GET "+env.MetricsPath, promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{}))

	pipe, err := p.Mux.Build()
	if err != nil {
		return nil, errors.Wrap(err, "build pipeline")
	}

	handler := bpipe.ToStd(pipe, newPipelineLogger(p.Logger))
	handler = withTransportSpan(p.TracerProv, p.Propagator, env.ServiceName,
		env.ReadinessCheckPath, env.MetricsPath)(handler)

	if env.H2C {
		handler = h2c.NewHandler(handler, &http2.Server{})
	}

	return handler, nil
}

func startServerHook(lc fx.Lifecycle, server *http.Server, p ServerParams) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			handler, err := BuildHandler(p)
			if err != nil {
				return err
			}
			server.Handler = handler

			p.Logger.Info("starting server", zap.String("addr", server.Addr), zap.Bool("h2c", p.Env.base().H2C))
			go func() {
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					p.Logger.Error("server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			p.Logger.Info("stopping server")
			return server.Shutdown(ctx)
		},
	})
}

func defaultHealthHandler(r *bpipe.Request) (*bpipe.Response, error) {
	return bpipe.Text(r, http.StatusOK, "ok"), nil
}
