package main

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/advdv/bpipe"
	"github.com/advdv/bpipe/bpapp"
	"github.com/advdv/bpipe/bpfast"
	"github.com/advdv/bpipe/interceptor"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Env configures the demo on top of the shared app environment.
type Env struct {
	bpapp.BaseEnvironment

	AdminKey       string `env:"BPIPE_ADMIN_KEY"`
	AdminKeySecret string `env:"BPIPE_ADMIN_KEY_SECRET"`
	AdminKeyPath   string `env:"BPIPE_ADMIN_KEY_PATH" envDefault:"admin"`
}

// ServeCmd runs the demo API.
type ServeCmd struct {
	Transport string `kong:"enum='std,fasthttp',default='std',help='HTTP server implementation (${enum}).'"`
}

// Run serves until the context is cancelled.
func (c *ServeCmd) Run(rc *runContext) error {
	if c.Transport == "fasthttp" {
		return serveFast(rc.ctx)
	}

	app := bpapp.NewApp[Env](func(mux *bpapp.Mux, rt *bpapp.Runtime[Env]) error {
		env := rt.Env()

		var admin bpipe.Interceptor
		switch {
		case env.AdminKeySecret != "":
			admin = rt.RequireAPIKey(env.AdminKeySecret, env.AdminKeyPath)
		case env.AdminKey != "":
			admin = interceptor.APIKey(bpapp.APIKeyHeader, interceptor.StaticKey(env.AdminKey))
		}

		return registerDemo(mux, admin)
	})
	if err := app.Err(); err != nil {
		return errors.Wrap(err, "init app")
	}

	return app.Start(rc.ctx)
}

// serveFast runs the demo on fasthttp. Tracing and secrets are not wired here, so the admin
// key can only be given directly.
func serveFast(ctx context.Context) error {
	env, err := bpapp.ParseEnv[Env]()()
	if err != nil {
		return errors.Wrap(err, "parse environment")
	}

	logs, err := bpapp.NewLogger(env)
	if err != nil {
		return errors.Wrap(err, "init logger")
	}
	defer logs.Sync() //nolint:errcheck

	reg := bpapp.NewRegistry()
	metrics, err := interceptor.NewMetrics(reg, "bpipe")
	if err != nil {
		return err
	}

	pipeLogs := bpipe.NewZapLogger(logs.Named("bpipe"))
	mux := bpipe.NewServeMux(bpipe.WithLogger(pipeLogs), bpipe.WithMaxBodyBytes(env.MaxBodyBytes))
	mux.Use(
		interceptor.RequestID(),
		interceptor.Logger(logs),
		interceptor.AccessLog(),
		metrics,
		interceptor.Deadline(env.RequestTimeout),
	)

	if env.RateLimitRPS > 0 {
		limiter := interceptor.NewRateLimiter(env.RateLimitRPS, env.RateLimitBurst,
			interceptor.WithKeyFunc(bpfast.ClientIP))
		defer limiter.Close()
		mux.Use(limiter)
	}

	var admin bpipe.Interceptor
	if env.AdminKey != "" {
		admin = interceptor.APIKey(bpapp.APIKeyHeader, interceptor.StaticKey(env.AdminKey))
	}

	mux.HandleFunc("GET "+env.ReadinessCheckPath, func(r *bpipe.Request) (*bpipe.Response, error) {
		return bpipe.Text(r, http.StatusOK, "ok"), nil
	})
	mux.HandleStd("GET "+env.MetricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	if err := registerDemo(mux, admin); err != nil {
		return err
	}

	pipe, err := mux.Build()
	if err != nil {
		return errors.Wrap(err, "build pipeline")
	}

	_, read, write, idle := bpapp.ServerTimeouts(env.RequestTimeout, bpapp.DefaultDeadlineBuffer)
	srv := bpfast.NewServer(pipe, pipeLogs, bpfast.ServerConfig{
		Name:         env.ServiceName,
		ReadTimeout:  read,
		WriteTimeout: write,
		IdleTimeout:  idle,
		MaxBodyBytes: int(env.MaxBodyBytes),
	})

	addr := net.JoinHostPort("", strconv.Itoa(env.Port))
	logs.Info("serving", zap.String("addr", addr), zap.String("transport", "fasthttp"))

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe(addr) }()

	select {
	case err := <-errc:
		return errors.Wrap(err, "listen and serve")
	case <-ctx.Done():
		return errors.Wrap(srv.Shutdown(), "shutdown")
	}
}
